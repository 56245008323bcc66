package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"legalcase/internal/model"
	"legalcase/internal/repository"
	"legalcase/internal/storage"
)

var (
	ErrIDRequired       = errors.New("id is required")
	ErrCaseNotFound     = errors.New("case not found")
	ErrDocumentNotFound = errors.New("document not found")

	// ErrFormRecording reports that a form-value operation produced no
	// recordable event. It surfaces to the caller because a silently dropped
	// form value breaks replay.
	ErrFormRecording = errors.New("form value recording produced no event")
)

// EventPublisher is the slice of the event publisher the services need.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.DomainEvent) error
	PublishAll(ctx context.Context, c *model.Case) error
}

// UpdateCase carries the mutable case attributes; nil fields are left
// untouched.
type UpdateCase struct {
	Title       *string
	Description *string
}

// CaseListResult is the service-level DTO for paginated cases.
type CaseListResult struct {
	Items []model.Case `json:"data"`
	Total int          `json:"total"`
}

// CaseService defines the case lifecycle use cases. Every mutating operation
// follows the same cycle: load the aggregate, apply one guarded operation,
// save once, flush the buffered events.
type CaseService interface {
	Create(ctx context.Context, title, description, profileID, clientID string) (*model.Case, error)
	Get(ctx context.Context, id string) (*model.Case, error)
	Update(ctx context.Context, id string, upd UpdateCase) (*model.Case, error)
	Delete(ctx context.Context, id string) error
	ListByProfile(ctx context.Context, profileID string, limit, offset int) (*CaseListResult, error)
	ListByClient(ctx context.Context, clientID string, limit, offset int) (*CaseListResult, error)

	StartAutoFilling(ctx context.Context, id string) (*model.Case, error)
	CompleteAutoFilling(ctx context.Context, id string) (*model.Case, error)
	PutOnHold(ctx context.Context, id, reason string) (*model.Case, error)
	Resume(ctx context.Context, id string) (*model.Case, error)
	Submit(ctx context.Context, id, submittedBy string) (*model.Case, error)
	Approve(ctx context.Context, id, approvedBy, comments string) (*model.Case, error)
	Deny(ctx context.Context, id, deniedBy, reason string) (*model.Case, error)
}

type caseService struct {
	repo          repository.CaseRepository
	publisher     EventPublisher
	store         storage.Storage
	presignExpiry time.Duration
}

// NewCaseService constructs a new CaseService.
func NewCaseService(repo repository.CaseRepository, publisher EventPublisher, store storage.Storage, presignExpiry time.Duration) CaseService {
	return &caseService{repo: repo, publisher: publisher, store: store, presignExpiry: presignExpiry}
}

func (s *caseService) Create(ctx context.Context, title, description, profileID, clientID string) (*model.Case, error) {
	c := model.NewCase(clientID, profileID, title, description)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishAll(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the case with its documents, each enriched with a presigned
// download URL. URL generation is best-effort: a storage hiccup must not make
// the case unreadable.
func (s *caseService) Get(ctx context.Context, id string) (*model.Case, error) {
	c, err := s.findCase(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range c.Documents {
		if d.StorageID == "" {
			continue
		}
		u, err := s.store.PresignGet(ctx, d.StorageID, s.presignExpiry)
		if err != nil {
			log.Printf("presign download url for document %s: %v", d.ID, err)
			continue
		}
		d.DownloadURL = u
	}
	return c, nil
}

func (s *caseService) Update(ctx context.Context, id string, upd UpdateCase) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error {
		if upd.Title != nil {
			c.Title = *upd.Title
		}
		if upd.Description != nil {
			c.Description = *upd.Description
		}
		return nil
	})
}

func (s *caseService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if _, err := s.findCase(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *caseService) ListByProfile(ctx context.Context, profileID string, limit, offset int) (*CaseListResult, error) {
	res, err := s.repo.ListByProfileID(ctx, profileID, pageQuery(limit, offset))
	if err != nil {
		return nil, err
	}
	return &CaseListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *caseService) ListByClient(ctx context.Context, clientID string, limit, offset int) (*CaseListResult, error) {
	res, err := s.repo.ListByClientID(ctx, clientID, pageQuery(limit, offset))
	if err != nil {
		return nil, err
	}
	return &CaseListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *caseService) StartAutoFilling(ctx context.Context, id string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error { return c.InitiateAutoFilling() })
}

func (s *caseService) CompleteAutoFilling(ctx context.Context, id string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error { return c.CompleteAutoFilling() })
}

func (s *caseService) PutOnHold(ctx context.Context, id, reason string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error {
		c.PutOnHold(reason)
		return nil
	})
}

func (s *caseService) Resume(ctx context.Context, id string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error { return c.ResumeFromHold() })
}

func (s *caseService) Submit(ctx context.Context, id, submittedBy string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error { return c.SubmitCase(submittedBy) })
}

func (s *caseService) Approve(ctx context.Context, id, approvedBy, comments string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error { return c.ApproveCase(approvedBy, comments) })
}

func (s *caseService) Deny(ctx context.Context, id, deniedBy, reason string) (*model.Case, error) {
	return s.withCase(ctx, id, func(c *model.Case) error { return c.DenyCase(deniedBy, reason) })
}

// withCase runs one guarded aggregate operation inside a load-save-publish
// cycle. Guard violations abort before the save, leaving the stored case and
// the event log untouched.
func (s *caseService) withCase(ctx context.Context, id string, op func(*model.Case) error) (*model.Case, error) {
	c, err := s.findCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := op(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishAll(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *caseService) findCase(ctx context.Context, id string) (*model.Case, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

func pageQuery(limit, offset int) repository.PageQuery {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return repository.PageQuery{Limit: limit, Offset: offset}
}
