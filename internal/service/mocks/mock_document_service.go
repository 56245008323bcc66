package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"legalcase/internal/analyzer"
	"legalcase/internal/model"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) UploadDocuments(ctx context.Context, caseID string, storageIDs []string) ([]string, error) {
	args := m.Called(ctx, caseID, storageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, caseID, documentID string) (*model.Document, error) {
	args := m.Called(ctx, caseID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, caseID string) ([]*model.Document, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Document), args.Error(1)
}

func (m *MockDocumentService) ApplyAnalysis(ctx context.Context, caseID, documentID string, res analyzer.Result) error {
	args := m.Called(ctx, caseID, documentID, res)
	return args.Error(0)
}
