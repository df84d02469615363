package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/metrics"
	"github.com/Rrens/docqa/internal/transcript"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result describes what a merge did
type Result string

const (
	Merged  Result = "merged"
	Skipped Result = "skipped"
)

const defaultFetchTimeout = 15 * time.Second

// Options configures a Reconciler
type Options struct {
	FetchTimeout time.Duration
	Logger       *zerolog.Logger
}

// Reconciler merges the authoritative history into a transcript store
type Reconciler struct {
	store   *transcript.Store
	fetcher domain.HistoryFetcher
	timeout time.Duration
	log     zerolog.Logger

	mu        sync.Mutex // serializes merges
	lastCount int

	tmu    sync.Mutex
	seq    uint64
	timers map[uint64]*time.Timer
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a reconciler for one session
func New(store *transcript.Store, fetcher domain.HistoryFetcher, opts Options) *Reconciler {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		store:   store,
		fetcher: fetcher,
		timeout: opts.FetchTimeout,
		log:     logger.With().Str("component", "reconciler").Logger(),
		timers:  make(map[uint64]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Merge fetches the history and folds it into the store. On fetch failure
// the store is left as it was.
func (r *Reconciler) Merge(ctx context.Context) (Result, error) {
	return r.merge(ctx, true)
}

// Prune is Merge with the fetched history taken as complete: acknowledged
// local pairs the server does not list are dropped instead of kept.
func (r *Reconciler) Prune(ctx context.Context) (Result, error) {
	return r.merge(ctx, false)
}

func (r *Reconciler) merge(ctx context.Context, keepAcked bool) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.fetcher.History(ctx)
	if err != nil {
		metrics.ObserveReconcile(metrics.ReconcileFailed)
		r.log.Warn().Err(err).Msg("failed to fetch chat history")
		return "", fmt.Errorf("failed to fetch chat history: %w", err)
	}

	converted, seen := Convert(items)
	applied := r.store.Apply(func(current []domain.ConversationEntry) ([]string, []domain.ConversationEntry, bool) {
		p := plan(current, r.store.Pinned(), seen, keepAcked)
		if len(converted) == r.lastCount && !p.hasPending && !p.hasLocalTurn {
			return nil, nil, false
		}
		return p.remove, converted, true
	})
	if !applied {
		metrics.ObserveReconcile(metrics.ReconcileSkipped)
		return Skipped, nil
	}

	r.lastCount = len(converted)
	metrics.ObserveReconcile(metrics.ReconcileMerged)
	r.log.Debug().Int("entries", len(converted)).Msg("merged chat history")
	return Merged, nil
}

type mergePlan struct {
	remove []string
	// hasPending is set when an in-flight entry sits in the store.
	hasPending bool
	// hasLocalTurn is set when a settled local question would be replaced,
	// so the merge must run even if the server count did not move.
	hasLocalTurn bool
}

// plan lists the settled entries the authoritative set replaces. Pending
// entries stay, and so do acknowledged pairs the server does not list yet
// when keepAcked is set.
func plan(current []domain.ConversationEntry, pinned int, seen map[string]struct{}, keepAcked bool) mergePlan {
	var p mergePlan
	for _, e := range current[pinned:] {
		if e.IsPending() {
			p.hasPending = true
			continue
		}
		if keepAcked && e.HistoryID != "" && e.IsLocal() {
			if _, visible := seen[e.HistoryID]; !visible {
				continue
			}
		}
		if e.IsLocal() && e.Role == domain.RoleUser {
			p.hasLocalTurn = true
		}
		p.remove = append(p.remove, e.ID)
	}
	return p
}

// Convert turns history items into settled entry pairs, oldest first. It
// also returns the set of history ids present.
func Convert(items []domain.HistoryItem) ([]domain.ConversationEntry, map[string]struct{}) {
	ordered := make([]domain.HistoryItem, len(items))
	for i, it := range items {
		ordered[len(items)-1-i] = it // server lists newest first
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	seen := make(map[string]struct{}, len(items))
	out := make([]domain.ConversationEntry, 0, 2*len(items))
	for _, it := range ordered {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		q := domain.ConversationEntry{
			ID:        domain.QuestionEntryID(it.ID),
			Role:      domain.RoleUser,
			Content:   it.Question,
			CreatedAt: it.CreatedAt,
			Status:    domain.StatusSettled,
			HistoryID: it.ID,
		}
		a := domain.ConversationEntry{
			ID:         domain.AnswerEntryID(it.ID),
			Role:       domain.RoleAssistant,
			Content:    it.Answer,
			CreatedAt:  it.CreatedAt,
			Status:     domain.StatusSettled,
			SourcePair: q.ID,
			HistoryID:  it.ID,
		}
		out = append(out, q, a)
	}
	return out, seen
}

// Schedule runs a merge after delay. Fetch errors are logged and dropped.
func (r *Reconciler) Schedule(delay time.Duration) {
	r.tmu.Lock()
	defer r.tmu.Unlock()

	if r.closed {
		return
	}
	r.seq++
	key := r.seq
	r.timers[key] = time.AfterFunc(delay, func() {
		r.tmu.Lock()
		delete(r.timers, key)
		r.tmu.Unlock()

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		_, _ = r.Merge(ctx)
	})
}

// Pending returns the number of merges waiting on a timer
func (r *Reconciler) Pending() int {
	r.tmu.Lock()
	defer r.tmu.Unlock()
	return len(r.timers)
}

// Close stops scheduled merges and aborts any fetch they started
func (r *Reconciler) Close() {
	r.tmu.Lock()
	defer r.tmu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
	r.cancel()
}
