package middleware

import (
	"context"

	"github.com/Rrens/docqa/internal/repository/redis"
	"github.com/stretchr/testify/mock"
)

// MockLimiter mocks the Limiter interface
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (redis.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(redis.Decision), args.Error(1)
}
