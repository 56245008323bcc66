package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalcase/internal/model"
	"legalcase/internal/service"
)

type MockCaseService struct {
	mock.Mock
}

func (m *MockCaseService) Create(ctx context.Context, title, description, profileID, clientID string) (*model.Case, error) {
	args := m.Called(ctx, title, description, profileID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) Get(ctx context.Context, id string) (*model.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) Update(ctx context.Context, id string, upd service.UpdateCase) (*model.Case, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCaseService) ListByProfile(ctx context.Context, profileID string, limit, offset int) (*service.CaseListResult, error) {
	args := m.Called(ctx, profileID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CaseListResult), args.Error(1)
}

func (m *MockCaseService) ListByClient(ctx context.Context, clientID string, limit, offset int) (*service.CaseListResult, error) {
	args := m.Called(ctx, clientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CaseListResult), args.Error(1)
}

func (m *MockCaseService) StartAutoFilling(ctx context.Context, id string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id))
}

func (m *MockCaseService) CompleteAutoFilling(ctx context.Context, id string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id))
}

func (m *MockCaseService) PutOnHold(ctx context.Context, id, reason string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id, reason))
}

func (m *MockCaseService) Resume(ctx context.Context, id string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id))
}

func (m *MockCaseService) Submit(ctx context.Context, id, submittedBy string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id, submittedBy))
}

func (m *MockCaseService) Approve(ctx context.Context, id, approvedBy, comments string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id, approvedBy, comments))
}

func (m *MockCaseService) Deny(ctx context.Context, id, deniedBy, reason string) (*model.Case, error) {
	return m.caseResult(m.Called(ctx, id, deniedBy, reason))
}

func (m *MockCaseService) caseResult(args mock.Arguments) (*model.Case, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}
