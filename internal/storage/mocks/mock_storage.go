package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"legalcase/internal/storage"
)

// MockStorage is a mock implementation of storage.Storage for testing.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetFileDetails(ctx context.Context, ids []string) ([]storage.FileDetails, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.FileDetails), args.Error(1)
}

func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key, r, opt)
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}
