package testsupport

import (
	"context"
	"testing"

	"reelforge/internal/checkpoint"
	"reelforge/internal/config"
)

// MustOpenStore opens a checkpoint.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a run for tests using the provided store.
func NewRun(t testing.TB, store *checkpoint.Store, id, inputJSON string) *checkpoint.Run {
	t.Helper()

	run, err := store.CreateRun(context.Background(), id, inputJSON)
	if err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
