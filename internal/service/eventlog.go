package service

import (
	"context"

	"legalcase/internal/repository"
)

// EventLogService exposes the case audit trail for reading.
type EventLogService interface {
	// CaseEvents returns every log entry for the case in occurrence order.
	CaseEvents(ctx context.Context, caseID string) ([]repository.EventLogEntry, error)

	// CaseEventsByType restricts the listing to one event type.
	CaseEventsByType(ctx context.Context, caseID, eventType string) ([]repository.EventLogEntry, error)
}

type eventLogService struct {
	cases    repository.CaseRepository
	eventLog repository.EventLogRepository
}

// NewEventLogService constructs a new EventLogService.
func NewEventLogService(cases repository.CaseRepository, eventLog repository.EventLogRepository) EventLogService {
	return &eventLogService{cases: cases, eventLog: eventLog}
}

func (s *eventLogService) CaseEvents(ctx context.Context, caseID string) ([]repository.EventLogEntry, error) {
	if err := s.requireCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.eventLog.ListByCase(ctx, caseID)
}

func (s *eventLogService) CaseEventsByType(ctx context.Context, caseID, eventType string) ([]repository.EventLogEntry, error) {
	if err := s.requireCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.eventLog.ListByCaseAndType(ctx, caseID, eventType)
}

func (s *eventLogService) requireCase(ctx context.Context, caseID string) error {
	if caseID == "" {
		return ErrIDRequired
	}
	exists, err := s.cases.ExistsByID(ctx, caseID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCaseNotFound
	}
	return nil
}
