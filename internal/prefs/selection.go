// Package prefs holds the operator's persisted UI state: which products are
// selected for bulk actions and which columns an export should carry.
//
// Both stores are the single source of truth for their data. Every mutation
// is written through to the kv.Store before it returns; if the write fails
// the in-memory state is rolled back and the error is returned.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogdesk/internal/kv"
)

// ErrEmptyID is returned when a selection operation is given a blank id.
var ErrEmptyID = errors.New("prefs: empty product id")

// Entry is one product's selection state. Entries are never removed;
// clearing only flips Selected so AddedAt history survives.
type Entry struct {
	ID       string    `json:"id"`
	Selected bool      `json:"selected"`
	AddedAt  time.Time `json:"addedAt"`
}

// Option configures a SelectionStore.
type Option func(*SelectionStore)

// WithClock overrides the time source used for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(s *SelectionStore) { s.now = now }
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *SelectionStore) { s.logger = l }
}

// SelectionStore is the persisted selection set, kept in insertion order.
type SelectionStore struct {
	store  kv.Store
	key    string
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
	index   map[string]int
}

// NewSelectionStore loads the selection set from store.
//
// A missing key starts an empty set. A blob written by another schema
// version is logged and ignored; it is only overwritten by the next
// mutation.
func NewSelectionStore(ctx context.Context, store kv.Store, opts ...Option) (*SelectionStore, error) {
	s := &SelectionStore{
		store:  store,
		key:    kv.KeySelection,
		now:    time.Now,
		logger: slog.Default(),
		index:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	var entries []Entry
	err := store.Get(ctx, s.key, &entries)
	switch {
	case err == nil:
	case errors.Is(err, kv.ErrNotFound):
	case errors.Is(err, kv.ErrSchemaVersion):
		s.logger.Warn("ignoring selection saved by another schema version", "key", s.key, "error", err)
		entries = nil
	default:
		return nil, fmt.Errorf("load selection: %w", err)
	}

	s.entries, s.index = compact(entries)
	return s, nil
}

// compact drops blank ids and keeps the first entry for duplicated ids.
func compact(in []Entry) ([]Entry, map[string]int) {
	out := make([]Entry, 0, len(in))
	index := make(map[string]int, len(in))
	for _, e := range in {
		if e.ID == "" {
			continue
		}
		if _, dup := index[e.ID]; dup {
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out, index
}

// Toggle flips the flag for id, creating a selected entry if none exists.
// It returns the new flag.
func (s *SelectionStore) Toggle(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}

	var selected bool
	err := s.mutate(ctx, func(st *state) {
		e := st.upsert(id, false, s.now())
		e.Selected = !e.Selected
		selected = e.Selected
	})
	return selected, err
}

// SelectAll marks every id selected. Entries that are already selected keep
// their AddedAt.
func (s *SelectionStore) SelectAll(ctx context.Context, ids []string) error {
	if err := checkIDs(ids); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *state) {
		now := s.now()
		for _, id := range ids {
			st.upsert(id, false, now).Selected = true
		}
	})
}

// ClearAll deselects every entry without removing any.
func (s *SelectionStore) ClearAll(ctx context.Context) error {
	return s.mutate(ctx, func(st *state) {
		for i := range st.entries {
			st.entries[i].Selected = false
		}
	})
}

// Invert flips every id in ids; ids not yet seen become selected.
func (s *SelectionStore) Invert(ctx context.Context, ids []string) error {
	if err := checkIDs(ids); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *state) {
		now := s.now()
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			// A repeated id in one call flips once.
			if seen[id] {
				continue
			}
			seen[id] = true

			e := st.upsert(id, false, now)
			e.Selected = !e.Selected
		}
	})
}

// SelectedIDs returns every selected id in the store, in entry order,
// including ids selected from a differently filtered view.
func (s *SelectionStore) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Selected {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// IsSelected reports the flag for id; unknown ids are not selected.
func (s *SelectionStore) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	return ok && s.entries[i].Selected
}

// Entries returns a copy of every entry.
func (s *SelectionStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// RecentlyAdded returns up to n entries, newest AddedAt first, whether or
// not they are still selected.
func (s *SelectionStore) RecentlyAdded(n int) []Entry {
	out := s.Entries()
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

type state struct {
	entries []Entry
	index   map[string]int
}

// upsert returns the entry for id, appending one with the given flag and
// addedAt if absent.
func (st *state) upsert(id string, selected bool, addedAt time.Time) *Entry {
	if i, ok := st.index[id]; ok {
		return &st.entries[i]
	}
	st.index[id] = len(st.entries)
	st.entries = append(st.entries, Entry{ID: id, Selected: selected, AddedAt: addedAt})
	return &st.entries[len(st.entries)-1]
}

// mutate applies fn to a copy of the state, persists it, and only then
// swaps it in.
func (s *SelectionStore) mutate(ctx context.Context, fn func(*state)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &state{
		entries: slices.Clone(s.entries),
		index:   make(map[string]int, len(s.index)),
	}
	for id, i := range s.index {
		next.index[id] = i
	}

	fn(next)

	if next.entries == nil {
		next.entries = []Entry{}
	}
	if err := s.store.Set(ctx, s.key, next.entries); err != nil {
		return fmt.Errorf("persist selection: %w", err)
	}

	s.entries, s.index = next.entries, next.index
	return nil
}

func checkIDs(ids []string) error {
	for _, id := range ids {
		if id == "" {
			return ErrEmptyID
		}
	}
	return nil
}
