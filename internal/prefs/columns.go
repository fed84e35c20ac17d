package prefs

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/JonMunkholm/catalogdesk/internal/kv"
)

var (
	// ErrUnknownColumn is returned by Save for a column outside the known set.
	ErrUnknownColumn = errors.New("prefs: unknown column")

	// ErrNoColumns is returned by Save when no columns remain after cleanup.
	ErrNoColumns = errors.New("prefs: at least one column is required")
)

// ColumnStore persists the ordered list of export columns. Saves replace
// the list wholesale.
type ColumnStore struct {
	store    kv.Store
	key      string
	known    map[string]bool
	defaults []string
}

// NewColumnStore returns a store that accepts names from known and falls
// back to defaults when nothing has been saved.
func NewColumnStore(store kv.Store, known, defaults []string) *ColumnStore {
	k := make(map[string]bool, len(known))
	for _, c := range known {
		k[c] = true
	}
	return &ColumnStore{
		store:    store,
		key:      kv.KeyColumns,
		known:    k,
		defaults: slices.Clone(defaults),
	}
}

// Load returns the saved columns, or the defaults if none are saved or the
// saved list was written by another schema version.
func (c *ColumnStore) Load(ctx context.Context) ([]string, error) {
	var cols []string
	err := c.store.Get(ctx, c.key, &cols)
	switch {
	case err == nil:
		return cols, nil
	case errors.Is(err, kv.ErrNotFound), errors.Is(err, kv.ErrSchemaVersion):
		return slices.Clone(c.defaults), nil
	default:
		return nil, fmt.Errorf("load columns: %w", err)
	}
}

// Save validates cols, removes duplicates keeping the first occurrence, and
// persists the result. The cleaned list is returned.
func (c *ColumnStore) Save(ctx context.Context, cols []string) ([]string, error) {
	clean := make([]string, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if !c.known[col] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		if seen[col] {
			continue
		}
		seen[col] = true
		clean = append(clean, col)
	}
	if len(clean) == 0 {
		return nil, ErrNoColumns
	}

	if err := c.store.Set(ctx, c.key, clean); err != nil {
		return nil, fmt.Errorf("persist columns: %w", err)
	}
	return clean, nil
}
