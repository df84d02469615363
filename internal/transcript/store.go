package transcript

import (
	"sync"

	"github.com/Rrens/docqa/internal/domain"
)

// Outcome resolves a pending entry. Follow, if set, is appended in the same step.
type Outcome struct {
	Status    domain.EntryStatus
	HistoryID string
	Follow    *domain.ConversationEntry
}

// Store is the ordered, deduplicated conversation log
type Store struct {
	mu      sync.RWMutex
	pinned  int
	entries []domain.ConversationEntry
	index   map[string]int
	pairs   map[string]string // sourcePair -> entry id
}

// NewStore creates a store whose first entries stay pinned at the top
func NewStore(pinned ...domain.ConversationEntry) *Store {
	s := &Store{
		index: make(map[string]int),
		pairs: make(map[string]string),
	}
	for _, e := range pinned {
		if s.appendLocked(e) {
			s.pinned++
		}
	}
	return s
}

// Append adds an entry at the end. It returns false when the id or the
// source pair is already present.
func (s *Store) Append(entry domain.ConversationEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry)
}

func (s *Store) appendLocked(entry domain.ConversationEntry) bool {
	if _, ok := s.index[entry.ID]; ok {
		return false
	}
	if entry.SourcePair != "" {
		if _, ok := s.pairs[entry.SourcePair]; ok {
			return false
		}
		s.pairs[entry.SourcePair] = entry.ID
	}
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return true
}

// Resolve sets the status of an entry in place and appends the follow-up
// entry, if any. It returns false if the id is unknown.
func (s *Store) Resolve(id string, outcome Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	if outcome.Status != "" {
		s.entries[i].Status = outcome.Status
	}
	if outcome.HistoryID != "" {
		s.entries[i].HistoryID = outcome.HistoryID
	}
	if outcome.Follow != nil {
		s.appendLocked(*outcome.Follow)
	}
	return true
}

// Supersede swaps the entry with the given id for another one at the same position
func (s *Store) Supersede(id string, entry domain.ConversationEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	if other, exists := s.index[entry.ID]; exists && other != i {
		return false
	}

	old := s.entries[i]
	if entry.SourcePair != "" {
		if owner, taken := s.pairs[entry.SourcePair]; taken && owner != old.ID {
			return false
		}
	}
	if old.SourcePair != "" {
		delete(s.pairs, old.SourcePair)
	}
	if entry.SourcePair != "" {
		s.pairs[entry.SourcePair] = entry.ID
	}
	delete(s.index, old.ID)
	s.entries[i] = entry
	s.index[entry.ID] = i
	return true
}

// Replace removes the listed entries and merges the inserted ones by
// creation time. Pending and pinned entries are never removed.
func (s *Store) Replace(remove []string, insert []domain.ConversationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(remove, insert)
}

// Plan decides, from the current entries, what Apply should replace.
// Returning ok=false leaves the store untouched.
type Plan func(current []domain.ConversationEntry) (remove []string, insert []domain.ConversationEntry, ok bool)

// Apply runs plan and the resulting replace under one write lock, so no
// append or resolve can slip in between the decision and the change.
func (s *Store) Apply(plan Plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]domain.ConversationEntry, len(s.entries))
	copy(current, s.entries)
	remove, insert, ok := plan(current)
	if !ok {
		return false
	}
	s.replaceLocked(remove, insert)
	return true
}

func (s *Store) replaceLocked(remove []string, insert []domain.ConversationEntry) {
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}

	head := s.entries[:s.pinned]
	kept := make([]domain.ConversationEntry, 0, len(s.entries))
	for _, e := range s.entries[s.pinned:] {
		if _, ok := drop[e.ID]; ok && !e.IsPending() {
			continue
		}
		kept = append(kept, e)
	}

	merged := make([]domain.ConversationEntry, 0, len(head)+len(kept)+len(insert))
	merged = append(merged, head...)
	merged = append(merged, mergeByTime(kept, insert)...)
	s.rebuildLocked(merged)
}

// mergeByTime interleaves two sequences. An inserted entry is placed before
// the first kept entry created strictly after it.
func mergeByTime(kept, insert []domain.ConversationEntry) []domain.ConversationEntry {
	out := make([]domain.ConversationEntry, 0, len(kept)+len(insert))
	i, j := 0, 0
	for i < len(kept) && j < len(insert) {
		if kept[i].CreatedAt.After(insert[j].CreatedAt) {
			out = append(out, insert[j])
			j++
			continue
		}
		out = append(out, kept[i])
		i++
	}
	out = append(out, kept[i:]...)
	return append(out, insert[j:]...)
}

func (s *Store) rebuildLocked(entries []domain.ConversationEntry) {
	s.entries = make([]domain.ConversationEntry, 0, len(entries))
	s.index = make(map[string]int, len(entries))
	s.pairs = make(map[string]string)
	for _, e := range entries {
		s.appendLocked(e)
	}
}

// Snapshot returns a copy of the transcript in order
func (s *Store) Snapshot() []domain.ConversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ConversationEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns a copy of a single entry
func (s *Store) Get(id string) (domain.ConversationEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.ConversationEntry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Pinned returns the number of pinned leading entries
func (s *Store) Pinned() int {
	return s.pinned
}
