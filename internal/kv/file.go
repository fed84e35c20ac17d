package kv

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
)

// tempFilePattern is the pattern for in-flight writes. Leftovers from a crash
// are removed when the store is opened.
const tempFilePattern = "kv-*.tmp"

// FileStore keeps one JSON file per key inside a directory.
//
// Writes go to a temp file, are synced, then renamed over the target so a
// crash never leaves a half-written value behind.
type FileStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (creating if needed) a store rooted at dir.
// maxBytes limits the encoded size of a single value; 0 disables the limit.
func NewFileStore(dir string, maxBytes int64) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("kv: create dir %s: %w", abs, err)
	}

	s := &FileStore{
		dir:      abs,
		maxBytes: maxBytes,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	s.removeTempFiles()
	return s, nil
}

// Dir returns the absolute directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Get(ctx context.Context, key string, v any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	lock := s.lockFor(path)
	lock.Lock()
	raw, err := os.ReadFile(path)
	lock.Unlock()

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("kv: read %s: %w", key, err)
	}
	return decode(raw, v)
}

func (s *FileStore) Set(ctx context.Context, key string, v any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	data, err := encode(v, s.maxBytes, s.now())
	if err != nil {
		return err
	}

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	return s.writeAtomic(path, data)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("kv: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Best effort cleanup; after a successful rename the temp file is gone.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("kv: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("kv: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("kv: rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func (s *FileStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, fileName(key)), nil
}

func (s *FileStore) removeTempFiles() {
	matches, err := filepath.Glob(filepath.Join(s.dir, tempFilePattern))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// fileNameReplacer strips path separators and characters Windows rejects.
var fileNameReplacer = strings.NewReplacer(
	"..", "-",
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "-",
	"\"", "-",
	"<", "-",
	">", "-",
	"|", "-",
)

// fileName builds a readable, collision-free name for key: the kebab-cased
// key plus a hash of the original so keys that sanitize to the same text
// still map to different files.
func fileName(key string) string {
	readable := strcase.ToKebab(fileNameReplacer.Replace(key))
	if len(readable) > 64 {
		readable = readable[:64]
	}

	h := fnv.New64a()
	h.Write([]byte(key))

	return fmt.Sprintf("%s-%016x.json", readable, h.Sum64())
}
