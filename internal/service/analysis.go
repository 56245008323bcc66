package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"legalcase/internal/model"
	"legalcase/internal/repository"
)

// AnalysisService decides when a case should undergo a new analysis run. It
// reacts to document completion events and rate-limits the trigger so a burst
// of completions yields a single run.
type AnalysisService interface {
	// CheckAndTrigger starts a new analysis run if the case qualifies.
	// Returns whether a run was triggered.
	CheckAndTrigger(ctx context.Context, caseID string) (bool, error)

	// ShouldAnalyze reports whether the case qualifies for a run right now.
	ShouldAnalyze(ctx context.Context, c *model.Case) (bool, error)

	// LastAnalysisTime returns when the case last entered analysis, or nil.
	LastAnalysisTime(ctx context.Context, caseID string) (*time.Time, error)
}

type analysisService struct {
	repo        repository.CaseRepository
	eventLog    repository.EventLogRepository
	publisher   EventPublisher
	minInterval time.Duration
}

// NewAnalysisService constructs a new AnalysisService. minInterval bounds how
// often a single case may enter analysis.
func NewAnalysisService(repo repository.CaseRepository, eventLog repository.EventLogRepository, publisher EventPublisher, minInterval time.Duration) AnalysisService {
	if minInterval <= 0 {
		minInterval = time.Hour
	}
	return &analysisService{repo: repo, eventLog: eventLog, publisher: publisher, minInterval: minInterval}
}

func (s *analysisService) CheckAndTrigger(ctx context.Context, caseID string) (bool, error) {
	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrCaseNotFound
		}
		return false, err
	}

	ok, err := s.ShouldAnalyze(ctx, c)
	if err != nil || !ok {
		return false, err
	}

	log.Printf("triggering analysis for case %s", caseID)
	c.InitiateLlmAnalysis("document_analysis")
	if err := s.repo.Save(ctx, c); err != nil {
		return false, err
	}
	if err := s.publisher.PublishAll(ctx, c); err != nil {
		return false, err
	}
	return true, nil
}

func (s *analysisService) ShouldAnalyze(ctx context.Context, c *model.Case) (bool, error) {
	if !c.HasCompletedDocumentsForAnalysis() {
		return false, nil
	}

	last, err := s.LastAnalysisTime(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return time.Since(*last) > s.minInterval, nil
}

func (s *analysisService) LastAnalysisTime(ctx context.Context, caseID string) (*time.Time, error) {
	return s.eventLog.LastOccurrence(ctx, caseID, model.EventLlmAnalysisInitiated)
}
