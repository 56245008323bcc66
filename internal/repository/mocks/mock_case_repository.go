package mocks

import (
	"context"

	"legalcase/internal/model"
	"legalcase/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) Create(ctx context.Context, c *model.Case) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCaseRepository) Save(ctx context.Context, c *model.Case) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCaseRepository) FindByID(ctx context.Context, id string) (*model.Case, error) {
	args := m.Called(ctx, id)
	if f, ok := args.Get(0).(func(context.Context, string) *model.Case); ok {
		return f(ctx, id), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCaseRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCaseRepository) ListByProfileID(ctx context.Context, profileID string, pq repository.PageQuery) (*repository.PageResult[model.Case], error) {
	args := m.Called(ctx, profileID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Case]), args.Error(1)
}

func (m *MockCaseRepository) ListByClientID(ctx context.Context, clientID string, pq repository.PageQuery) (*repository.PageResult[model.Case], error) {
	args := m.Called(ctx, clientID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Case]), args.Error(1)
}
