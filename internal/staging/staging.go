// Package staging implements the staging-area JSON document: a mapping
// from vault-relative path to blob hash, with the sentinel value Deleted
// meaning "remove this tracked path in the next commit".
package staging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Deleted is the sentinel staging value meaning "this tracked path is to
// be removed in the next commit".
const Deleted = "_DELETED_"

// Area is the staging document for one vault, backed by a single JSON
// file that is rewritten wholesale on every change.
type Area struct {
	path string
}

// New returns an Area backed by the file at path (normally
// <vault>/.kcube/staging.json).
func New(path string) *Area {
	return &Area{path: path}
}

// Read returns the current staging map. A missing file is treated as an
// empty map, matching the Python reference's _read_staging_area.
func (a *Area) Read() (map[string]string, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading staging area: %w", err)
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing staging area: %w", err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// Write atomically rewrites the staging document (temp file + rename, per
// spec §9's atomic-write requirement for staging.json).
func (a *Area) Write(m map[string]string) error {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".staging-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp staging file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp staging file: %w", err)
	}

	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp staging file: %w", err)
	}
	return nil
}

// Clear empties the staging document, as commit and a pathless reset do.
func (a *Area) Clear() error {
	return a.Write(map[string]string{})
}
