package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	if err := os.WriteFile(path, []byte(`{"periods":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	w, err := WatchFile(ctx, path, func(context.Context) error {
		reloaded <- struct{}{}
		return nil
	}, 100*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer w.Close()

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"periods":[{"nodes":[],"edges":[],"plants":[]}]}`), 0o644); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("reload not triggered")
	}
	select {
	case <-reloaded:
		t.Fatalf("burst of writes triggered more than one reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchFileMissingDirectory(t *testing.T) {
	_, err := WatchFile(context.Background(), filepath.Join(t.TempDir(), "nope", "results.json"), func(context.Context) error { return nil }, 0, nil)
	if err == nil {
		t.Fatalf("expected WatchFile on a missing directory to fail")
	}
}
