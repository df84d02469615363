package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a conversation entry
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// EntryStatus tracks whether an entry has been confirmed by the server
type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSettled EntryStatus = "settled"
	StatusFailed  EntryStatus = "failed"
)

// Entry id namespaces. Local ids never collide with server-derived ones.
const (
	LocalIDPrefix  = "local-"
	ServerIDPrefix = "srv-"
	WelcomeEntryID = "welcome"
)

// WelcomeText is the pinned greeting shown at the top of every transcript
const WelcomeText = "Hello! I'm your QNA assistant. Upload a document and ask questions about it!"

// ConversationEntry is one line of the transcript
type ConversationEntry struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	Status     EntryStatus `json:"status"`
	SourcePair string      `json:"source_pair,omitempty"` // assistant -> user entry id
	HistoryID  string      `json:"history_id,omitempty"`  // server-acknowledged pair id, if any
}

// IsPending reports whether the entry still awaits confirmation
func (e ConversationEntry) IsPending() bool {
	return e.Status == StatusPending
}

// IsLocal reports whether the entry id was generated on this side
func (e ConversationEntry) IsLocal() bool {
	return strings.HasPrefix(e.ID, LocalIDPrefix)
}

// NewLocalID generates a namespaced id for an optimistic entry
func NewLocalID() string {
	return LocalIDPrefix + uuid.New().String()
}

// QuestionEntryID returns the user entry id derived from a history item
func QuestionEntryID(historyID string) string {
	return ServerIDPrefix + historyID + "-q"
}

// AnswerEntryID returns the assistant entry id derived from a history item
func AnswerEntryID(historyID string) string {
	return ServerIDPrefix + historyID + "-a"
}

// WelcomeEntry builds the pinned greeting entry
func WelcomeEntry(at time.Time) ConversationEntry {
	return ConversationEntry{
		ID:        WelcomeEntryID,
		Role:      RoleAssistant,
		Content:   WelcomeText,
		CreatedAt: at,
		Status:    StatusSettled,
	}
}
