package binding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/docqa/internal/domain"
)

// Binding tracks the active document and the catalog it is chosen from
type Binding struct {
	mu      sync.RWMutex
	current string
	catalog []domain.DocumentRef
}

// New creates an empty binding
func New() *Binding {
	return &Binding{}
}

// AddToCatalog inserts or updates a document. New documents go last.
func (b *Binding) AddToCatalog(doc domain.DocumentRef) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.indexLocked(doc.ID); i >= 0 {
		b.catalog[i] = doc
		return
	}
	b.catalog = append(b.catalog, doc)
}

// SetCurrent binds a catalog member. Binding anything else is a programming error.
func (b *Binding) SetCurrent(doc domain.DocumentRef) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.indexLocked(doc.ID) < 0 {
		panic(fmt.Sprintf("binding: document %q is not in the catalog", doc.ID))
	}
	b.current = doc.ID
}

// Select binds the catalog member with the given id. It reports false when
// no such member exists.
func (b *Binding) Select(id string) (domain.DocumentRef, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexLocked(id)
	if i < 0 {
		return domain.DocumentRef{}, false
	}
	b.current = id
	return b.catalog[i], true
}

// Bind adds the document to the catalog and makes it current in one step
func (b *Binding) Bind(doc domain.DocumentRef) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.indexLocked(doc.ID); i >= 0 {
		b.catalog[i] = doc
	} else {
		b.catalog = append(b.catalog, doc)
	}
	b.current = doc.ID
}

// RemoveFromCatalog drops a document and clears current if it pointed there
func (b *Binding) RemoveFromCatalog(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexLocked(id)
	if i < 0 {
		return false
	}
	b.catalog = append(b.catalog[:i], b.catalog[i+1:]...)
	if b.current == id {
		b.current = ""
	}
	return true
}

// ReplaceCatalog swaps in a freshly listed catalog, ordered by upload time
func (b *Binding) ReplaceCatalog(docs []domain.DocumentRef) {
	catalog := make([]domain.DocumentRef, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		catalog = append(catalog, d)
	}
	sort.SliceStable(catalog, func(i, j int) bool {
		return catalog[i].UploadedAt.Before(catalog[j].UploadedAt)
	})

	b.mu.Lock()
	defer b.mu.Unlock()

	b.catalog = catalog
	if _, ok := seen[b.current]; !ok {
		b.current = ""
	}
}

// Current returns the bound document, or nil
func (b *Binding) Current() *domain.DocumentRef {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.current == "" {
		return nil
	}
	doc := b.catalog[b.indexLocked(b.current)]
	return &doc
}

// Lookup finds a catalog member by id
func (b *Binding) Lookup(id string) (domain.DocumentRef, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i := b.indexLocked(id); i >= 0 {
		return b.catalog[i], true
	}
	return domain.DocumentRef{}, false
}

// Catalog returns the documents in display order
func (b *Binding) Catalog() []domain.DocumentRef {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.DocumentRef, len(b.catalog))
	copy(out, b.catalog)
	return out
}

// Snapshot returns current and catalog read under one lock
func (b *Binding) Snapshot() domain.BindingSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := domain.BindingSnapshot{Catalog: make([]domain.DocumentRef, len(b.catalog))}
	copy(snap.Catalog, b.catalog)
	if b.current != "" {
		doc := b.catalog[b.indexLocked(b.current)]
		snap.Current = &doc
	}
	return snap
}

func (b *Binding) indexLocked(id string) int {
	for i, d := range b.catalog {
		if d.ID == id {
			return i
		}
	}
	return -1
}
