package sweeper

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o640); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to age %s: %v", name, err)
	}
	return path
}

func TestSweepRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	ttl := time.Hour

	expired := writeAged(t, dir, "old.pdf", ttl+time.Minute)
	fresh := writeAged(t, dir, "new.pdf", ttl-time.Minute)

	sw := New([]string{dir}, ttl, time.Hour, nil)
	removed, err := sw.Sweep()
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Fatalf("expired file should be removed, stat err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file should survive: %v", err)
	}
}

func TestSweepSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	ttl := time.Hour

	sub := filepath.Join(dir, "subdir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	old := time.Now().Add(-2 * ttl)
	if err := os.Chtimes(sub, old, old); err != nil {
		t.Fatalf("failed to age subdir: %v", err)
	}

	sw := New([]string{dir}, ttl, time.Hour, nil)
	if _, err := sw.Sweep(); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Fatalf("directories must not be swept: %v", err)
	}
}

func TestSweepMissingDirectory(t *testing.T) {
	sw := New([]string{"/nonexistent/sweep-dir"}, time.Hour, time.Hour, nil)

	removed, err := sw.Sweep()
	if err != nil {
		t.Fatalf("missing directory should not be an error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}

func TestSweepMultipleDirs(t *testing.T) {
	uploads := t.TempDir()
	converted := t.TempDir()
	ttl := time.Hour

	writeAged(t, uploads, "a.docx", 2*ttl)
	writeAged(t, converted, "b.pdf", 2*ttl)

	sw := New([]string{uploads, converted}, ttl, time.Hour, nil)
	removed, err := sw.Sweep()
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
}
