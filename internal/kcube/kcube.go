// Package kcube provides the small shared primitives every other package
// builds on: content hashing, blob compression, canonical timestamps, and
// vault-root discovery.
package kcube

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zlib"
)

// KcubeDir is the name of the metadata directory at the root of every vault.
const KcubeDir = ".kcube"

// HashBlob returns the hex-encoded SHA-256 digest of content.
func HashBlob(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CompressBlob zlib-compresses content.
func CompressBlob(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressBlob reverses CompressBlob.
func DecompressBlob(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// FormatTimestamp renders a Unix timestamp the way the CLI displays it in
// log/status output.
func FormatTimestamp(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

// FindVaultRoot walks upward from path looking for the first ancestor
// (inclusive) containing a .kcube directory. Returns "" if none is found.
func FindVaultRoot(path string) (string, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	for {
		info, err := os.Stat(filepath.Join(current, KcubeDir))
		if err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}
