package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"legalcase/internal/analyzer"
	"legalcase/internal/events"
	"legalcase/internal/model"
	"legalcase/internal/repository"
	"legalcase/internal/storage"
)

// DocumentService runs the document classification pipeline: uploads attach
// pending documents and schedule post-commit analysis; analyzer callbacks
// reclassify each document in place.
type DocumentService interface {
	// UploadDocuments attaches one pending document per resolvable storage
	// reference and returns the created document ids. An existing document
	// with the same storage reference is replaced, not duplicated. Analysis
	// is scheduled only after the case has been persisted.
	UploadDocuments(ctx context.Context, caseID string, storageIDs []string) ([]string, error)

	// GetDocument returns one document of the case.
	GetDocument(ctx context.Context, caseID, documentID string) (*model.Document, error)

	// ListDocuments returns all documents of the case.
	ListDocuments(ctx context.Context, caseID string) ([]*model.Document, error)

	// ApplyAnalysis is the classification callback: it reloads the case and
	// swaps the document's variant in place, or marks it REJECTED when the
	// analysis failed. Analyzer failures never propagate past the affected
	// document.
	ApplyAnalysis(ctx context.Context, caseID, documentID string, res analyzer.Result) error
}

type documentService struct {
	repo      repository.CaseRepository
	store     storage.Storage
	analyze   analyzer.Analyzer
	publisher EventPublisher
	runner    events.TaskRunner

	presignExpiry time.Duration
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(repo repository.CaseRepository, store storage.Storage, an analyzer.Analyzer, publisher EventPublisher, runner events.TaskRunner, presignExpiry time.Duration) DocumentService {
	return &documentService{
		repo:          repo,
		store:         store,
		analyze:       an,
		publisher:     publisher,
		runner:        runner,
		presignExpiry: presignExpiry,
	}
}

func (s *documentService) UploadDocuments(ctx context.Context, caseID string, storageIDs []string) ([]string, error) {
	if caseID == "" {
		return nil, ErrIDRequired
	}

	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	details, err := s.store.GetFileDetails(ctx, storageIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage references: %w", err)
	}
	byID := make(map[string]storage.FileDetails, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}

	now := time.Now().UTC()
	var createdIDs []string
	for _, storageID := range storageIDs {
		info, ok := byID[storageID]
		if !ok {
			log.Printf("no file details for storage reference %s, skipping", storageID)
			continue
		}

		// Re-upload replaces, never duplicates.
		c.RemoveDocumentsByStorageID(storageID)

		doc := &model.Document{
			ID:          uuid.NewString(),
			Title:       info.OriginalName,
			Description: "Uploaded document",
			FilePath:    info.StoragePath,
			FileType:    info.FileType,
			FileSize:    info.FileSize,
			StorageID:   storageID,
			Type:        "OTHER",
			Status:      model.DocumentPending,
			CreatedAt:   now,
		}
		c.AddSupportingDocument(doc)
		createdIDs = append(createdIDs, doc.ID)
	}

	if len(createdIDs) > 0 {
		c.InitiateLlmAnalysis("document_analysis")
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishAll(ctx, c); err != nil {
		return nil, err
	}

	// Analysis runs only after the write above is durable.
	pending := pendingDocumentIDs(c)
	s.runner.Go(func(taskCtx context.Context) {
		s.analyzePending(taskCtx, caseID, pending)
	})

	log.Printf("uploaded %d documents for case %s", len(createdIDs), caseID)
	return createdIDs, nil
}

func pendingDocumentIDs(c *model.Case) []string {
	var ids []string
	for _, d := range c.Documents {
		if d.Status == model.DocumentPending {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// analyzePending runs one analysis per pending document concurrently. One
// slow or failing document never blocks the others.
func (s *documentService) analyzePending(ctx context.Context, caseID string, documentIDs []string) {
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		log.Printf("load case %s for analysis: %v", caseID, err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, documentID := range documentIDs {
		doc := c.FindDocument(documentID)
		if doc == nil {
			continue
		}
		storageID := doc.StorageID
		docID := documentID
		g.Go(func() error {
			url, err := s.store.PresignGet(gctx, storageID, s.presignExpiry)
			var res analyzer.Result
			if err != nil {
				res = analyzer.ErrorResult(fmt.Sprintf("presign document url: %v", err))
			} else {
				res = s.analyze.Analyze(gctx, url)
			}
			if err := s.ApplyAnalysis(gctx, caseID, docID, res); err != nil {
				log.Printf("apply analysis for document %s: %v", docID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *documentService) ApplyAnalysis(ctx context.Context, caseID, documentID string, res analyzer.Result) error {
	// Serialized per case: two documents finishing analysis at once cannot
	// overwrite each other's save.
	unlock := lockCase(caseID)
	defer unlock()

	// Reload fresh: the in-memory copy from upload time may be stale by now.
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCaseNotFound
		}
		return err
	}

	doc := c.FindDocument(documentID)
	if doc == nil {
		// Replaced by a later upload while the analysis was in flight.
		log.Printf("document %s no longer owned by case %s, dropping analysis result", documentID, caseID)
		return nil
	}

	if res.Failed() {
		return s.rejectDocument(ctx, c, doc, res.Err)
	}

	doc.Category = res.DocumentCategory
	doc.Type = res.DocumentType
	doc.MetadataJSON = mapToJSON(res.ExtractedData)
	doc.UpdatedAt = time.Now().UTC()

	switch res.DocumentCategory {
	case model.CategoryQuestionnaire:
		pct := 0
		if res.Complete {
			pct = 100
		}
		doc.CompletionPercentage = &pct
	case model.CategoryProfile:
		verified := res.Complete
		doc.IdentityVerified = &verified
	}

	if res.Complete {
		doc.Status = model.DocumentComplete
	} else {
		doc.Status = model.DocumentIncomplete
	}

	if res.Complete {
		if err := c.MarkDocumentComplete(doc.ID, doc.Title); err != nil {
			return err
		}
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return err
	}
	return s.publisher.PublishAll(ctx, c)
}

// rejectDocument is the terminal failure path: status REJECTED, error and
// timestamp captured in the metadata blob, no retry.
func (s *documentService) rejectDocument(ctx context.Context, c *model.Case, doc *model.Document, errMsg string) error {
	log.Printf("analysis failed for document %s: %s", doc.ID, errMsg)

	doc.Status = model.DocumentRejected
	doc.MetadataJSON = mapToJSON(map[string]any{
		"error":     errMsg,
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	})
	doc.UpdatedAt = time.Now().UTC()

	return s.repo.Save(ctx, c)
}

func (s *documentService) GetDocument(ctx context.Context, caseID, documentID string) (*model.Document, error) {
	if caseID == "" || documentID == "" {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	doc := c.FindDocument(documentID)
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *documentService) ListDocuments(ctx context.Context, caseID string) ([]*model.Document, error) {
	if caseID == "" {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c.Documents, nil
}

func mapToJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		log.Printf("serialize metadata: %v", err)
		return "{}"
	}
	return string(b)
}
