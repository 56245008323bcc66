package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalcase/internal/service"
)

type MockFormValueService struct {
	mock.Mock
}

func (m *MockFormValueService) RecordValues(ctx context.Context, caseID, formID, formName, pageID, pageName string, values map[string]string) ([]service.FormValueRecord, error) {
	args := m.Called(ctx, caseID, formID, formName, pageID, pageName, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.FormValueRecord), args.Error(1)
}

func (m *MockFormValueService) RecordInputValue(ctx context.Context, caseID, formID, formName, pageID, pageName, inputID, inputType, inputValue string) (*service.FormValueRecord, error) {
	args := m.Called(ctx, caseID, formID, formName, pageID, pageName, inputID, inputType, inputValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormValueRecord), args.Error(1)
}

func (m *MockFormValueService) AllRecords(ctx context.Context, caseID string) ([]service.FormValueRecord, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.FormValueRecord), args.Error(1)
}

func (m *MockFormValueService) ClearRecords(ctx context.Context, caseID, formID string) error {
	args := m.Called(ctx, caseID, formID)
	return args.Error(0)
}

func (m *MockFormValueService) Replay(ctx context.Context, caseID, formID string) (*service.FormReplay, error) {
	args := m.Called(ctx, caseID, formID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FormReplay), args.Error(1)
}
