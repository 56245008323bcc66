package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalcase/internal/service"
)

type MockQuestionnaireService struct {
	mock.Mock
}

func (m *MockQuestionnaireService) Submit(ctx context.Context, sub service.QuestionnaireSubmission) (*service.QuestionnaireResult, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QuestionnaireResult), args.Error(1)
}
