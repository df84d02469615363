package redis

import (
	"context"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockCatalogStore mocks the CatalogStore interface
type MockCatalogStore struct {
	mock.Mock
}

func (m *MockCatalogStore) Get(ctx context.Context, owner string) ([]domain.DocumentRef, bool, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.DocumentRef), args.Bool(1), args.Error(2)
}

func (m *MockCatalogStore) Set(ctx context.Context, owner string, docs []domain.DocumentRef) error {
	args := m.Called(ctx, owner, docs)
	return args.Error(0)
}

func (m *MockCatalogStore) Invalidate(ctx context.Context, owner string) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

// MockQAService mocks the QAService interface
type MockQAService struct {
	mock.Mock
}

func (m *MockQAService) Ask(ctx context.Context, question, documentID string) (*domain.Answer, error) {
	args := m.Called(ctx, question, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

func (m *MockQAService) History(ctx context.Context) ([]domain.HistoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HistoryItem), args.Error(1)
}

func (m *MockQAService) Upload(ctx context.Context, upload domain.Upload) (*domain.DocumentRef, error) {
	args := m.Called(ctx, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentRef), args.Error(1)
}

func (m *MockQAService) Documents(ctx context.Context) ([]domain.DocumentRef, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentRef), args.Error(1)
}

func (m *MockQAService) DeleteDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}
