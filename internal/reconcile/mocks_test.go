package reconcile

import (
	"context"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockHistoryFetcher mocks the HistoryFetcher interface
type MockHistoryFetcher struct {
	mock.Mock
}

func (m *MockHistoryFetcher) History(ctx context.Context) ([]domain.HistoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HistoryItem), args.Error(1)
}
