package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// chdir switches to dir for the duration of the test, restoring the
// previous working directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func TestAddCommitStatusLogRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	if err := runInit(tmp); err != nil {
		t.Fatalf("init: %v", err)
	}

	notePath := filepath.Join(tmp, "note.md")
	if err := os.WriteFile(notePath, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runAdd(nil, []string{"."}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := runStatus(nil, nil); err != nil {
		t.Fatalf("status after add: %v", err)
	}

	commitMessage = "first commit"
	if err := runCommit(nil, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := runStatus(nil, nil); err != nil {
		t.Fatalf("status after commit: %v", err)
	}
	if err := runLog(nil, nil); err != nil {
		t.Fatalf("log: %v", err)
	}

	if err := os.WriteFile(notePath, []byte("hello again"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runAdd(nil, []string{notePath}); err != nil {
		t.Fatalf("add modified: %v", err)
	}
	if err := runReset(nil, nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
}

func TestRestoreSingleFile(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	if err := runInit(tmp); err != nil {
		t.Fatalf("init: %v", err)
	}

	notePath := filepath.Join(tmp, "note.md")
	if err := os.WriteFile(notePath, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runAdd(nil, []string{"."}); err != nil {
		t.Fatalf("add: %v", err)
	}
	commitMessage = "v1"
	if err := runCommit(nil, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}

	repo, err := findVaultOrErr(tmp)
	if err != nil {
		t.Fatal(err)
	}
	history, err := repo.GetHistory(context.Background(), "")
	repo.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 version, got %d", len(history))
	}
	versionHash := history[0].Hash

	if err := os.WriteFile(notePath, []byte("v2 uncommitted"), 0o644); err != nil {
		t.Fatal(err)
	}

	restoreHard = false
	if err := runRestore(nil, []string{versionHash, "note.md"}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	data, err := os.ReadFile(notePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1" {
		t.Fatalf("expected restored content %q, got %q", "v1", string(data))
	}
}
