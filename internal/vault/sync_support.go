package vault

import (
	"context"

	"github.com/kcube/kcube/internal/index"
	"github.com/kcube/kcube/internal/kcube"
)

// The methods in this file expose just enough of the repository's index
// database and object store for internal/sync to drive reconciliation
// without reaching into Repository's unexported fields.

// AllVersionHashes returns every version hash known locally.
func (r *Repository) AllVersionHashes(ctx context.Context) ([]string, error) {
	return r.db.GetAllVersionHashes(ctx)
}

// AllBlobHashes returns every blob hash known locally.
func (r *Repository) AllBlobHashes(ctx context.Context) ([]string, error) {
	return r.db.GetAllBlobHashes(ctx)
}

// LatestVersionHash returns the current HEAD, or "" if the vault is empty.
func (r *Repository) LatestVersionHash(ctx context.Context) (string, error) {
	return r.db.GetLatestVersionHash(ctx)
}

// VersionData returns the full record (including manifest) for hash, for
// upload to the sync server.
func (r *Repository) VersionData(ctx context.Context, hash string) (*index.VersionData, error) {
	return r.db.GetVersionData(ctx, hash)
}

// BulkInsertVersions idempotently inserts downloaded version records.
func (r *Repository) BulkInsertVersions(ctx context.Context, versions []index.VersionData) error {
	return r.db.BulkInsertVersions(ctx, versions)
}

// ReadBlobCompressed returns the still-compressed bytes for hash, as
// needed to relay blobs to the server verbatim.
func (r *Repository) ReadBlobCompressed(hash string) ([]byte, error) {
	return r.store.ReadCompressed(hash)
}

// WriteDownloadedBlob writes a blob downloaded from the server (already
// zlib-compressed) and records it in the index.
func (r *Repository) WriteDownloadedBlob(ctx context.Context, hash string, compressed []byte) error {
	if err := r.store.WriteCompressed(hash, compressed); err != nil {
		return err
	}
	exists, err := r.db.BlobExists(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	decompressed, err := kcube.DecompressBlob(compressed)
	if err != nil {
		return err
	}
	return r.db.InsertBlob(ctx, hash, int64(len(decompressed)), int64(len(compressed)))
}
