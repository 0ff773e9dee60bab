// Package store implements the flat content-addressed object store: for a
// blob hash H, its compressed bytes live at versions/<H[0:2]>/<H[2:]>.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kcube/kcube/internal/kcube"
)

// Store is the on-disk blob store rooted at a vault's .kcube/versions
// directory.
type Store struct {
	root string
}

// New returns a Store rooted at versionsPath (normally
// <vault>/.kcube/versions).
func New(versionsPath string) *Store {
	return &Store{root: versionsPath}
}

// pathFor returns the on-disk path for a blob hash, validating that the
// hash cannot be used to escape root the way a path-traversal attempt would
// escape a storage base directory (same check shape the teacher uses for
// user-supplied path components).
func (s *Store) pathFor(hash string) (string, error) {
	if len(hash) < 3 {
		return "", fmt.Errorf("invalid blob hash %q", hash)
	}

	full := filepath.Join(s.root, hash[:2], hash[2:])
	cleanFull := filepath.Clean(full)
	cleanRoot := filepath.Clean(s.root)

	rel, err := filepath.Rel(cleanRoot, cleanFull)
	if err != nil {
		return "", fmt.Errorf("invalid blob path: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid blob hash %q: escapes store root", hash)
	}
	return cleanFull, nil
}

// Has reports whether a blob file for hash exists on disk.
func (s *Store) Has(hash string) (bool, error) {
	path, err := s.pathFor(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// WriteCompressed writes already-zlib-compressed bytes for hash, atomically
// (write to a sibling temp file, then rename). A no-op if the blob already
// exists on disk.
func (s *Store) WriteCompressed(hash string, compressed []byte) error {
	path, err := s.pathFor(hash)
	if err != nil {
		return err
	}

	if exists, err := s.Has(hash); err != nil {
		return err
	} else if exists {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp blob file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp blob file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp blob file: %w", err)
	}
	return nil
}

// Write compresses raw content and writes it under its blob hash, returning
// the hash.
func (s *Store) Write(content []byte) (hash string, compressed []byte, err error) {
	compressed, err = kcube.CompressBlob(content)
	if err != nil {
		return "", nil, err
	}
	hash = kcube.HashBlob(compressed)
	if err := s.WriteCompressed(hash, compressed); err != nil {
		return "", nil, err
	}
	return hash, compressed, nil
}

// ReadCompressed returns the raw (still-compressed) bytes for hash, as
// needed when relaying blobs to the server verbatim.
func (s *Store) ReadCompressed(hash string) ([]byte, error) {
	path, err := s.pathFor(hash)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kcube.NewError(kcube.ErrCorruptStore, fmt.Sprintf("blob file missing for %s", hash), err)
		}
		return nil, err
	}
	return content, nil
}

// Read returns the decompressed content for hash.
func (s *Store) Read(hash string) ([]byte, error) {
	compressed, err := s.ReadCompressed(hash)
	if err != nil {
		return nil, err
	}
	return kcube.DecompressBlob(compressed)
}
