package mocks

import (
	"context"
	"time"

	"legalcase/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockEventLogRepository struct {
	mock.Mock
}

func (m *MockEventLogRepository) Append(ctx context.Context, e *repository.EventLogEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEventLogRepository) ListByCase(ctx context.Context, caseID string) ([]repository.EventLogEntry, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.EventLogEntry), args.Error(1)
}

func (m *MockEventLogRepository) ListByCaseAndType(ctx context.Context, caseID, eventType string) ([]repository.EventLogEntry, error) {
	args := m.Called(ctx, caseID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.EventLogEntry), args.Error(1)
}

func (m *MockEventLogRepository) LastOccurrence(ctx context.Context, caseID, eventType string) (*time.Time, error) {
	args := m.Called(ctx, caseID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}
