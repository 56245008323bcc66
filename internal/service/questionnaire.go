package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"legalcase/internal/model"
	"legalcase/internal/repository"
	"legalcase/internal/storage"
)

// QuestionnaireSubmission is one completed questionnaire for a case.
type QuestionnaireSubmission struct {
	CaseID            string            `json:"case_id"`
	QuestionnaireID   string            `json:"questionnaire_id"`
	QuestionnaireName string            `json:"questionnaire_name"`
	QuestionnaireType string            `json:"questionnaire_type"`
	Responses         map[string]string `json:"responses"`
}

// QuestionnaireResult reports the outcome of a submission.
type QuestionnaireResult struct {
	ID              string    `json:"id,omitempty"`
	QuestionnaireID string    `json:"questionnaire_id"`
	CaseID          string    `json:"case_id"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Message         string    `json:"message"`
}

// QuestionnaireService turns questionnaire submissions into completed
// questionnaire documents: the responses are archived as a PDF in object
// storage and attached to the case at 100% completion.
type QuestionnaireService interface {
	Submit(ctx context.Context, sub QuestionnaireSubmission) (*QuestionnaireResult, error)
}

type questionnaireService struct {
	repo      repository.CaseRepository
	store     storage.Storage
	publisher EventPublisher
}

// NewQuestionnaireService constructs a new QuestionnaireService.
func NewQuestionnaireService(repo repository.CaseRepository, store storage.Storage, publisher EventPublisher) QuestionnaireService {
	return &questionnaireService{repo: repo, store: store, publisher: publisher}
}

func (s *questionnaireService) Submit(ctx context.Context, sub QuestionnaireSubmission) (*QuestionnaireResult, error) {
	log.Printf("processing questionnaire submission %s for case %s", sub.QuestionnaireID, sub.CaseID)

	c, err := s.repo.FindByID(ctx, sub.CaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	title := "Questionnaire Response: " + sub.QuestionnaireID
	pdf := buildQuestionnairePDF(title, sub.Responses)

	key := fmt.Sprintf("questionnaires/%s_%d.pdf", sub.QuestionnaireName, time.Now().UnixMilli())
	objInfo, err := s.store.Put(ctx, key, bytes.NewReader(pdf), storage.PutObjectOptions{
		Size:        int64(len(pdf)),
		ContentType: "application/pdf",
		Metadata:    map[string]string{"Original-Filename": key},
	})
	if err != nil {
		log.Printf("upload questionnaire pdf for case %s: %v", sub.CaseID, err)
		return s.failedResult(sub, "Failed to upload questionnaire PDF"), nil
	}

	responsesJSON, err := json.Marshal(sub.Responses)
	if err != nil {
		return s.failedResult(sub, "Failed to process questionnaire responses"), nil
	}

	pct := 100
	now := time.Now().UTC()
	doc := &model.Document{
		ID:                   uuid.NewString(),
		Title:                title,
		Description:          "Questionnaire submission response",
		FilePath:             objInfo.Key,
		FileType:             "application/pdf",
		FileSize:             objInfo.Size,
		StorageID:            key,
		Type:                 "QUESTIONNAIRE",
		Status:               model.DocumentComplete,
		MetadataJSON:         string(responsesJSON),
		QuestionnaireType:    sub.QuestionnaireType,
		CompletionPercentage: &pct,
		CreatedAt:            now,
	}
	c.AddQuestionnaireDocument(doc)
	if err := c.MarkQuestionnaireComplete(doc.ID, title); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishAll(ctx, c); err != nil {
		return nil, err
	}

	return &QuestionnaireResult{
		ID:              doc.ID,
		QuestionnaireID: sub.QuestionnaireID,
		CaseID:          sub.CaseID,
		Status:          "COMPLETED",
		SubmittedAt:     now,
		Message:         "Questionnaire submitted successfully",
	}, nil
}

func (s *questionnaireService) failedResult(sub QuestionnaireSubmission, msg string) *QuestionnaireResult {
	return &QuestionnaireResult{
		QuestionnaireID: sub.QuestionnaireID,
		CaseID:          sub.CaseID,
		Status:          "FAILED",
		SubmittedAt:     time.Now().UTC(),
		Message:         msg,
	}
}
