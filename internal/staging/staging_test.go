package staging

import (
	"path/filepath"
	"testing"
)

func TestReadMissingFileReturnsEmptyMap(t *testing.T) {
	tmp := t.TempDir()
	a := New(filepath.Join(tmp, "staging.json"))

	m, err := a.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	a := New(filepath.Join(tmp, "staging.json"))

	want := map[string]string{
		"note1.md": "abc123",
		"note2.md": Deleted,
	}
	if err := a.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := a.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(want) || got["note1.md"] != "abc123" || got["note2.md"] != Deleted {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClearEmptiesStagingArea(t *testing.T) {
	tmp := t.TempDir()
	a := New(filepath.Join(tmp, "staging.json"))

	if err := a.Write(map[string]string{"a.md": "h1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := a.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	got, err := a.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map after Clear, got %v", got)
	}
}
