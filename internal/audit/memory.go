package audit

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryCapacity is used when NewMemory is given a non-positive size.
const DefaultMemoryCapacity = 500

// Memory keeps the most recent entries in a fixed-size ring.
type Memory struct {
	mu    sync.RWMutex
	buf   []Entry
	next  int
	full  bool
	clock func() time.Time
}

var (
	_ Sink   = (*Memory)(nil)
	_ Lister = (*Memory)(nil)
)

// NewMemory returns a ring holding up to capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{buf: make([]Entry, capacity), clock: time.Now}
}

func (m *Memory) Record(ctx context.Context, e Entry) {
	e = e.normalize(ctx, m.clock())

	m.mu.Lock()
	m.buf[m.next] = e
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (m *Memory) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}
