package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

// Memory is an in-process Store for tests and database-less demos.
type Memory struct {
	mu       sync.RWMutex
	products []catalog.Product
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns a store seeded with products.
func NewMemory(products ...catalog.Product) *Memory {
	m := &Memory{now: time.Now}
	if len(products) > 0 {
		_, _ = m.Insert(context.Background(), products)
	}
	return m
}

func (m *Memory) All(ctx context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	out := slices.Clone(m.products)
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b catalog.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) DeleteWhere(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoIDs
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.products)
	m.products = slices.DeleteFunc(m.products, func(p catalog.Product) bool {
		return drop[p.ID]
	})
	return before - len(m.products), nil
}

func (m *Memory) Insert(ctx context.Context, products []catalog.Product) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}

		if i := slices.IndexFunc(m.products, func(q catalog.Product) bool { return q.ID == p.ID }); i >= 0 {
			p.CreatedAt = m.products[i].CreatedAt
			m.products[i] = p
			continue
		}
		m.products = append(m.products, p)
	}
	return len(products), nil
}
