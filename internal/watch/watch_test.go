package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kcube/kcube/internal/kcube"
)

func waitForChange(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Changes():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcherReportsFileCreation(t *testing.T) {
	root := t.TempDir()
	w, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	go w.Run()

	if err := os.WriteFile(filepath.Join(root, "note.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitForChange(t, w, 2*time.Second) {
		t.Fatal("expected a change notification")
	}
}

func TestWatcherIgnoresKcubeDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, kcube.KcubeDir), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	go w.Run()

	if err := os.WriteFile(filepath.Join(root, kcube.KcubeDir, "index.db"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if waitForChange(t, w, 500*time.Millisecond) {
		t.Fatal("expected no change notification for a write under .kcube")
	}
}

func TestWatcherSuspendResume(t *testing.T) {
	root := t.TempDir()
	w, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	go w.Run()

	w.Suspend()
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if waitForChange(t, w, 500*time.Millisecond) {
		t.Fatal("expected no change notification while suspended")
	}

	w.Resume()
	if err := os.WriteFile(filepath.Join(root, "b.md"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitForChange(t, w, 2*time.Second) {
		t.Fatal("expected a change notification after resume")
	}
}

func TestWatcherWatchesNewlyCreatedSubdirectories(t *testing.T) {
	root := t.TempDir()
	w, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	go w.Run()

	sub := filepath.Join(root, "notes")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Drain the directory-creation notification itself.
	waitForChange(t, w, 2*time.Second)

	// Give fsnotify a moment to register the new watch before writing into it.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "child.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitForChange(t, w, 2*time.Second) {
		t.Fatal("expected a change notification for a file inside a newly created subdirectory")
	}
}
