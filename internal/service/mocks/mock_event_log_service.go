package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalcase/internal/repository"
)

type MockEventLogService struct {
	mock.Mock
}

func (m *MockEventLogService) CaseEvents(ctx context.Context, caseID string) ([]repository.EventLogEntry, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.EventLogEntry), args.Error(1)
}

func (m *MockEventLogService) CaseEventsByType(ctx context.Context, caseID, eventType string) ([]repository.EventLogEntry, error) {
	args := m.Called(ctx, caseID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.EventLogEntry), args.Error(1)
}
