package turn

import (
	"context"
	"time"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/reconcile"
	"github.com/stretchr/testify/mock"
)

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

// MockReconciler mocks the Reconciler interface
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Schedule(delay time.Duration) {
	m.Called(delay)
}

func (m *MockReconciler) Merge(ctx context.Context) (reconcile.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(reconcile.Result), args.Error(1)
}

func (m *MockReconciler) Prune(ctx context.Context) (reconcile.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(reconcile.Result), args.Error(1)
}
