package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"auth without message", NewError(KindAuth, "", nil), "Invalid username or password"},
		{"auth with message", NewError(KindAuth, "Token expired", nil), "Token expired"},
		{"validation", NewError(KindValidation, "A user with that username already exists.", nil), "A user with that username already exists."},
		{"validation without message", NewError(KindValidation, "", nil), "Invalid request"},
		{"server hides detail", NewError(KindServer, "traceback", nil), "Server error. Please try again later."},
		{"network", NewError(KindNetwork, "dial tcp", errors.New("refused")), "Network error. Please check your connection."},
		{"not found", NewError(KindNotFound, "", nil), "Document not found."},
		{"wrapped", fmt.Errorf("failed to list documents: %w", NewError(KindNetwork, "", nil)), "Network error. Please check your connection."},
		{"unclassified", errors.New("boom"), "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrUnknownDocument))
	assert.Equal(t, KindServer, KindOf(errors.New("plain")))
	assert.True(t, IsKind(fmt.Errorf("x: %w", ErrEmptyQuestion), KindValidation))
	assert.False(t, IsKind(ErrNoSession, KindAuth))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindNetwork, "request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "network: request failed: connection reset", err.Error())
	assert.Equal(t, "not_found: Document not found.", ErrUnknownDocument.Error())
}
