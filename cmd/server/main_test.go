package main

import (
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/catalogdesk/internal/config"
	"github.com/JonMunkholm/catalogdesk/internal/kv"
)

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := openKV(ctx, config.StorageConfig{Backend: config.StorageMemory})
	if err != nil {
		t.Fatalf("openKV(memory) error = %v", err)
	}
	closeFn()
	if _, ok := store.(*kv.MemoryStore); !ok {
		t.Errorf("openKV(memory) = %T, want *kv.MemoryStore", store)
	}

	store, closeFn, err = openKV(ctx, config.StorageConfig{Backend: config.StorageFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("openKV(file) error = %v", err)
	}
	closeFn()
	if _, ok := store.(*kv.FileStore); !ok {
		t.Errorf("openKV(file) = %T, want *kv.FileStore", store)
	}
}

func TestOpenKV_RedisUnreachable(t *testing.T) {
	_, _, err := openKV(context.Background(), config.StorageConfig{
		Backend:   config.StorageRedis,
		RedisAddr: "127.0.0.1:1",
	})
	if err == nil {
		t.Fatal("openKV(redis) error = nil, want ping failure")
	}
	if !strings.Contains(err.Error(), "ping redis") {
		t.Errorf("openKV(redis) error = %v, want it to come from DialRedis", err)
	}
}
