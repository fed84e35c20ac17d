// Package kv is the persistent key-value cache behind the operator's local
// state: the selection set, the chosen export columns, the review template
// and the saved-for-later product mirror.
//
// Values are JSON blobs wrapped in a versioned envelope. A blob written by a
// different schema version is reported as ErrSchemaVersion rather than being
// decoded into the wrong shape. Writes are synchronous and last-writer-wins;
// there is no cross-process coordination.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is the envelope version written by this build.
const SchemaVersion = 1

// Well-known keys.
const (
	KeySelection     = "selectedProducts"
	KeyColumns       = "exportColumns"
	KeyTemplate      = "reviewTemplate"
	KeySavedProducts = "selectedProductsForUsers"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("kv: key not found")

	// ErrSchemaVersion is returned by Get when the stored envelope was
	// written with a different schema version.
	ErrSchemaVersion = errors.New("kv: unsupported schema version")

	// ErrQuotaExceeded is returned by Set when the encoded value is larger
	// than the store's per-value limit.
	ErrQuotaExceeded = errors.New("kv: storage quota exceeded")

	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Store is a string-keyed JSON blob store.
type Store interface {
	// Get decodes the value stored under key into v, which must be a pointer.
	Get(ctx context.Context, key string, v any) error

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, v any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// encode wraps v in the current envelope. maxBytes <= 0 means unlimited.
func encode(v any, maxBytes int64, now time.Time) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("kv: marshal value: %w", err)
	}

	out, err := json.Marshal(envelope{Version: SchemaVersion, SavedAt: now.UTC(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("kv: marshal envelope: %w", err)
	}

	if maxBytes > 0 && int64(len(out)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrQuotaExceeded, len(out), maxBytes)
	}
	return out, nil
}

// decode unwraps an envelope into v.
func decode(raw []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("kv: unmarshal envelope: %w", err)
	}
	if env.Version != SchemaVersion {
		return fmt.Errorf("%w: found %d, want %d", ErrSchemaVersion, env.Version, SchemaVersion)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("kv: unmarshal value: %w", err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
