package turn

import (
	"context"
	"sync"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/metrics"
)

// Kind is the type of user action a turn carries
type Kind string

const (
	KindQuestion Kind = "question"
	KindUpload   Kind = "upload"
	KindDelete   Kind = "delete"
)

// State is a step in a turn's lifecycle
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingContext      State = "awaiting_context"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateSending              State = "sending"
	StateUploading            State = "uploading"
	StateDeleting             State = "deleting"

	// terminal
	StateSettled  State = "settled"
	StateFailed   State = "failed"
	StateRejected State = "rejected"
	StateDeclined State = "declined"
)

// Terminal reports whether no further transition can follow
func (s State) Terminal() bool {
	switch s {
	case StateSettled, StateFailed, StateRejected, StateDeclined:
		return true
	}
	return false
}

// Result is the terminal outcome of a turn
type Result struct {
	Kind     Kind                `json:"kind"`
	State    State               `json:"state"`
	EntryID  string              `json:"entry_id,omitempty"`
	Answer   *domain.Answer      `json:"answer,omitempty"`
	Document *domain.DocumentRef `json:"document,omitempty"`
	Err      error               `json:"-"`
}

// Turn is the handle returned for every submission. It completes exactly once.
type Turn struct {
	kind Kind

	mu      sync.Mutex
	state   State
	entryID string
	result  Result
	done    chan struct{}
}

func newTurn(kind Kind) *Turn {
	return &Turn{
		kind:  kind,
		state: StateIdle,
		done:  make(chan struct{}),
	}
}

// Kind returns the turn kind
func (t *Turn) Kind() Kind {
	return t.kind
}

// State returns the current lifecycle state
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// EntryID returns the id of the transcript entry tracking this turn, if any
func (t *Turn) EntryID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entryID
}

// Done is closed once the turn reached a terminal state
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn completes or ctx ends. Abandoning the wait
// does not cancel the turn.
func (t *Turn) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.result, t.result.Err
	case <-ctx.Done():
		return Result{Kind: t.kind, State: t.State(), EntryID: t.EntryID()}, ctx.Err()
	}
}

func (t *Turn) advance(state State, entryID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	if entryID != "" {
		t.entryID = entryID
	}
}

func (t *Turn) finish(res Result) {
	t.mu.Lock()
	res.Kind = t.kind
	if res.EntryID == "" {
		res.EntryID = t.entryID
	}
	t.state = res.State
	t.entryID = res.EntryID
	t.result = res
	t.mu.Unlock()

	metrics.ObserveTurn(string(t.kind), string(res.State))
	close(t.done)
}
