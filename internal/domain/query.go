package domain

import (
	"context"
	"time"
)

// QuestionRequest represents a question submitted against the bound document
type QuestionRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Answer is the QA service reply to a question
type Answer struct {
	Text string `json:"answer"`
	// HistoryID is set when the service acknowledges the persisted pair.
	HistoryID string `json:"history_id,omitempty"`
}

// HistoryItem is one persisted question/answer pair
type HistoryItem struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

// QAService is the document question-answering collaborator
type QAService interface {
	Ask(ctx context.Context, question, documentID string) (*Answer, error)
	History(ctx context.Context) ([]HistoryItem, error)
	Upload(ctx context.Context, upload Upload) (*DocumentRef, error)
	Documents(ctx context.Context) ([]DocumentRef, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// HistoryFetcher is the subset of QAService the reconciler needs
type HistoryFetcher interface {
	History(ctx context.Context) ([]HistoryItem, error)
}
