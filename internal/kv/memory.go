package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store, used in tests and when persistence is
// disabled. Values are kept encoded so behavior matches the durable stores.
type MemoryStore struct {
	maxBytes int64

	mu     sync.RWMutex
	values map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. maxBytes <= 0 means unlimited.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{maxBytes: maxBytes, values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string, v any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return decode(raw, v)
}

func (s *MemoryStore) Set(ctx context.Context, key string, v any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := encode(v, s.maxBytes, time.Now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.values[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Raw returns the encoded envelope stored under key.
func (s *MemoryStore) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.values[key]
	return raw, ok
}

// PutRaw stores an already-encoded blob, bypassing the envelope.
// Useful for simulating data written by another schema version.
func (s *MemoryStore) PutRaw(key string, raw []byte) {
	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
}
