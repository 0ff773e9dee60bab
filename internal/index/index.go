// Package index wraps the embedded relational store (blobs, versions,
// version_files, config) that backs a single vault, using the pure-Go
// modernc.org/sqlite driver behind database/sql so the CLI never needs a
// cgo toolchain.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kcube/kcube/internal/kcube"
)

const schema = `
CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blobs (
	hash TEXT PRIMARY KEY,
	uncompressed_size INTEGER NOT NULL,
	compressed_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	hash TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	message_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS version_files (
	version_hash TEXT NOT NULL,
	file_path TEXT NOT NULL,
	blob_hash TEXT NOT NULL,
	PRIMARY KEY (version_hash, file_path),
	FOREIGN KEY (version_hash) REFERENCES versions(hash),
	FOREIGN KEY (blob_hash) REFERENCES blobs(hash)
);
`

// Version is a version row together with its decoded message.
type Version struct {
	Hash      string
	Timestamp int64
	Message   Message
}

// Message is the small structured record carried inside every version.
type Message struct {
	Summary        string   `json:"summary"`
	Type           string   `json:"type,omitempty"`
	Related        []string `json:"related,omitempty"`
	RevertedCommit string   `json:"reverted_commit,omitempty"`
}

// VersionData is a full version record, including its manifest, as needed
// for upload to the sync server.
type VersionData struct {
	Hash      string
	Timestamp int64
	Message   Message
	Manifest  map[string]string
}

// DB is an open index database for one vault.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path and enables
// foreign-key enforcement, as the index schema's FKs require.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index db: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return &DB{conn: conn}, nil
}

// InitSchema creates the schema tables if they don't already exist. Safe to
// call on every open.
func (db *DB) InitSchema() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetLatestVersionHash returns the hash of the version with the greatest
// timestamp, or "" if the vault has no versions yet.
func (db *DB) GetLatestVersionHash(ctx context.Context) (string, error) {
	var hash string
	err := db.conn.QueryRowContext(ctx,
		"SELECT hash FROM versions ORDER BY timestamp DESC LIMIT 1").Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// GetVersionManifest returns the path->blob_hash mapping for versionHash.
func (db *DB) GetVersionManifest(ctx context.Context, versionHash string) (map[string]string, error) {
	manifest := make(map[string]string)
	if versionHash == "" {
		return manifest, nil
	}
	rows, err := db.conn.QueryContext(ctx,
		"SELECT file_path, blob_hash FROM version_files WHERE version_hash = ?", versionHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		manifest[path] = hash
	}
	return manifest, rows.Err()
}

// BlobExists reports whether hash has a blobs row.
func (db *DB) BlobExists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, "SELECT 1 FROM blobs WHERE hash = ? LIMIT 1", hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertBlob records a new blob's sizes.
func (db *DB) InsertBlob(ctx context.Context, hash string, uncompressedSize, compressedSize int64) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO blobs (hash, uncompressed_size, compressed_size) VALUES (?, ?, ?)",
		hash, uncompressedSize, compressedSize)
	return err
}

// InsertVersion inserts a version row and its version_files rows as a
// single transaction.
func (db *DB) InsertVersion(ctx context.Context, versionHash string, timestamp int64, message Message, manifest map[string]string) error {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO versions (hash, timestamp, message_json) VALUES (?, ?, ?)",
		versionHash, timestamp, string(messageJSON)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO version_files (version_hash, file_path, blob_hash) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for path, blobHash := range manifest {
		if _, err := stmt.ExecContext(ctx, versionHash, path, blobHash); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetVersionHistory returns versions ordered by timestamp descending,
// optionally filtered to those containing filePath in their manifest.
func (db *DB) GetVersionHistory(ctx context.Context, filePath string) ([]Version, error) {
	var rows *sql.Rows
	var err error

	if filePath != "" {
		rows, err = db.conn.QueryContext(ctx, `
			SELECT v.hash, v.timestamp, v.message_json
			FROM versions v
			JOIN version_files vf ON v.hash = vf.version_hash
			WHERE vf.file_path = ?
			ORDER BY v.timestamp DESC`, filePath)
	} else {
		rows, err = db.conn.QueryContext(ctx,
			"SELECT hash, timestamp, message_json FROM versions ORDER BY timestamp DESC")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		var messageJSON string
		if err := rows.Scan(&v.Hash, &v.Timestamp, &messageJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(messageJSON), &v.Message); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindVersionByPrefix resolves a hash prefix to exactly one version hash.
// Returns kcube.ErrAmbiguousVersion for >1 matches, kcube.ErrUnknownVersion
// for 0 matches.
func (db *DB) FindVersionByPrefix(ctx context.Context, prefix string) (string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT hash FROM versions WHERE hash LIKE ?", prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return "", err
		}
		matches = append(matches, hash)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", kcube.NewError(kcube.ErrUnknownVersion, fmt.Sprintf("no version matches prefix %q", prefix), nil)
	case 1:
		return matches[0], nil
	default:
		return "", kcube.NewError(kcube.ErrAmbiguousVersion, fmt.Sprintf("prefix %q matches %d versions", prefix, len(matches)), nil)
	}
}

// GetBlobHashForFileInVersion returns the blob hash for filePath within
// versionHash's manifest, or "" if absent.
func (db *DB) GetBlobHashForFileInVersion(ctx context.Context, versionHash, filePath string) (string, error) {
	var hash string
	err := db.conn.QueryRowContext(ctx,
		"SELECT blob_hash FROM version_files WHERE version_hash = ? AND file_path = ?",
		versionHash, filePath).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// GetAllVersionHashes returns every version hash in the database.
func (db *DB) GetAllVersionHashes(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT hash FROM versions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// GetAllBlobHashes returns every blob hash in the database.
func (db *DB) GetAllBlobHashes(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT hash FROM blobs")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// GetVersionData returns the full record for versionHash (including its
// manifest) for upload to the sync server, or nil if not found.
func (db *DB) GetVersionData(ctx context.Context, versionHash string) (*VersionData, error) {
	var timestamp int64
	var messageJSON string
	err := db.conn.QueryRowContext(ctx,
		"SELECT timestamp, message_json FROM versions WHERE hash = ?", versionHash).
		Scan(&timestamp, &messageJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var message Message
	if err := json.Unmarshal([]byte(messageJSON), &message); err != nil {
		return nil, err
	}

	manifest, err := db.GetVersionManifest(ctx, versionHash)
	if err != nil {
		return nil, err
	}

	return &VersionData{
		Hash:      versionHash,
		Timestamp: timestamp,
		Message:   message,
		Manifest:  manifest,
	}, nil
}

// BulkInsertVersions idempotently inserts downloaded version records and
// their manifest rows (INSERT OR IGNORE), as one transaction.
func (db *DB) BulkInsertVersions(ctx context.Context, versions []VersionData) error {
	if len(versions) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	versionStmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO versions (hash, timestamp, message_json) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer versionStmt.Close()

	fileStmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO version_files (version_hash, file_path, blob_hash) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer fileStmt.Close()

	for _, v := range versions {
		messageJSON, err := json.Marshal(v.Message)
		if err != nil {
			return err
		}
		if _, err := versionStmt.ExecContext(ctx, v.Hash, v.Timestamp, string(messageJSON)); err != nil {
			return err
		}
		for path, blobHash := range v.Manifest {
			if _, err := fileStmt.ExecContext(ctx, v.Hash, path, blobHash); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetConfig and SetConfig back the `config` table's optional future use
// (spec §4.2); not yet exercised by any CLI command but kept available for
// callers that want a per-vault key/value slot alongside config.json.
func (db *DB) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (db *DB) SetConfig(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}
