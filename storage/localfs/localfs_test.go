package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"nullbytes.dev/wipecert/cidutil"
	"nullbytes.dev/wipecert/storage"
	"nullbytes.dev/wipecert/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return cas
	})
}

func TestLocalFS_DetectsOutOfBandCorruption(t *testing.T) {
	ctx := context.Background()
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte(`{"cert":{"a":1},"sig":"S1"}`)
	id, err := cas.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := cas.Get(ctx, id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := cas.Put(ctx, orig); err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}
	if want := cidutil.String(orig); id.String() != want {
		t.Fatalf("unexpected CID: got %s want %s", id, want)
	}
}

func TestLocalFS_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cas, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := cas.Put(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(cas.pathFor(id)))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != id.String() {
		t.Fatalf("unexpected shard contents: %v", entries)
	}
}

func TestLocalFS_PingAndCancel(t *testing.T) {
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := storage.Ping(context.Background(), cas); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cas.Put(ctx, []byte("x")); err == nil {
		t.Fatalf("expected Put to fail on canceled context")
	}
	if err := os.RemoveAll(cas.Root()); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := cas.Ping(context.Background()); err == nil {
		t.Fatalf("expected Ping to fail after root removal")
	}
}
