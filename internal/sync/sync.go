// Package sync implements the stateless protocol driver that reconciles a
// repository's local version set with a server's, uploading and
// downloading versions and the blobs they reference.
package sync

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/index"
	"github.com/kcube/kcube/internal/vault"
)

// Direction classifies which way a sync moved data, used by the daemon to
// decide whether to emit a sync event and whether to checkout afterward.
type Direction string

const (
	DirectionNone          Direction = "none"
	DirectionUpload        Direction = "upload"
	DirectionDownload      Direction = "download"
	DirectionBidirectional Direction = "bidirectional"
)

// Result is the outcome of one Sync call.
type Result struct {
	VersionsUploaded   int
	VersionsDownloaded int
}

// HasChanges reports whether anything moved in either direction.
func (r Result) HasChanges() bool {
	return r.VersionsUploaded > 0 || r.VersionsDownloaded > 0
}

// Direction derives the direction label the daemon uses.
func (r Result) Direction() Direction {
	switch {
	case r.VersionsUploaded > 0 && r.VersionsDownloaded > 0:
		return DirectionBidirectional
	case r.VersionsUploaded > 0:
		return DirectionUpload
	case r.VersionsDownloaded > 0:
		return DirectionDownload
	default:
		return DirectionNone
	}
}

// Synchronizer drives one repository's reconciliation against one API
// client for a given server-side vault id.
type Synchronizer struct {
	repo    *vault.Repository
	client  *api.Client
	vaultID string
}

// New returns a Synchronizer for repo, authenticated client, and
// server-side vaultID.
func New(repo *vault.Repository, client *api.Client, vaultID string) *Synchronizer {
	return &Synchronizer{repo: repo, client: client, vaultID: vaultID}
}

// Sync computes the version-set diff with the server and pushes/pulls in
// both directions as needed.
func (s *Synchronizer) Sync(ctx context.Context) (Result, error) {
	localVersions, err := s.repo.AllVersionHashes(ctx)
	if err != nil {
		return Result{}, err
	}

	state, err := s.client.CheckSyncState(ctx, s.vaultID, localVersions)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		VersionsUploaded:   len(state.VersionsToUpload),
		VersionsDownloaded: len(state.VersionsToDownload),
	}

	if len(state.VersionsToUpload) > 0 {
		if err := s.push(ctx, state.VersionsToUpload); err != nil {
			return result, err
		}
	}
	if len(state.VersionsToDownload) > 0 {
		if err := s.pull(ctx, state.VersionsToDownload); err != nil {
			return result, err
		}
	}

	return result, nil
}

// push uploads every blob the manifests of hashes reference, then the
// version records themselves (blobs first, so the server never holds a
// version pointing at a blob it doesn't have, per spec §5's sync-atomicity
// rule).
func (s *Synchronizer) push(ctx context.Context, hashes []string) error {
	var versionsData []*index.VersionData
	blobHashes := map[string]bool{}

	for _, h := range hashes {
		data, err := s.repo.VersionData(ctx, h)
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		versionsData = append(versionsData, data)
		for _, blobHash := range data.Manifest {
			blobHashes[blobHash] = true
		}
	}

	var blobsPayload []api.BlobPayload
	for blobHash := range blobHashes {
		compressed, err := s.repo.ReadBlobCompressed(blobHash)
		if err != nil {
			return fmt.Errorf("reading blob %s: %w", blobHash, err)
		}
		blobsPayload = append(blobsPayload, api.BlobPayload{
			Hash:       blobHash,
			ContentB64: base64.StdEncoding.EncodeToString(compressed),
		})
	}

	if len(blobsPayload) > 0 {
		if err := s.client.UploadBlobs(ctx, s.vaultID, blobsPayload); err != nil {
			return err
		}
	}

	versionsPayload := make([]api.VersionPayload, 0, len(versionsData))
	for _, v := range versionsData {
		versionsPayload = append(versionsPayload, toVersionPayload(v))
	}
	if len(versionsPayload) > 0 {
		if err := s.client.UploadVersions(ctx, s.vaultID, versionsPayload); err != nil {
			return err
		}
	}

	return nil
}

// pull downloads version records by hash, then the blobs they reference
// that aren't already present locally, writing blobs before inserting
// versions.
func (s *Synchronizer) pull(ctx context.Context, hashes []string) error {
	versionsData, err := s.client.DownloadVersions(ctx, s.vaultID, hashes)
	if err != nil {
		return err
	}

	blobsNeeded := map[string]bool{}
	for _, v := range versionsData {
		for _, blobHash := range v.Manifest {
			blobsNeeded[blobHash] = true
		}
	}

	localBlobs, err := s.repo.AllBlobHashes(ctx)
	if err != nil {
		return err
	}
	localSet := make(map[string]bool, len(localBlobs))
	for _, h := range localBlobs {
		localSet[h] = true
	}

	var toDownload []string
	for h := range blobsNeeded {
		if !localSet[h] {
			toDownload = append(toDownload, h)
		}
	}

	if len(toDownload) > 0 {
		downloaded, err := s.client.DownloadBlobs(ctx, s.vaultID, toDownload)
		if err != nil {
			return err
		}
		for _, blob := range downloaded {
			compressed, err := base64.StdEncoding.DecodeString(blob.ContentB64)
			if err != nil {
				return fmt.Errorf("decoding blob %s: %w", blob.Hash, err)
			}
			if err := s.repo.WriteDownloadedBlob(ctx, blob.Hash, compressed); err != nil {
				return err
			}
		}
	}

	records := make([]index.VersionData, 0, len(versionsData))
	for _, v := range versionsData {
		records = append(records, index.VersionData{
			Hash:      v.Hash,
			Timestamp: v.Timestamp,
			Message: index.Message{
				Summary:        v.Message.Summary,
				Type:           v.Message.Type,
				Related:        v.Message.Related,
				RevertedCommit: v.Message.RevertedCommit,
			},
			Manifest: v.Manifest,
		})
	}

	return s.repo.BulkInsertVersions(ctx, records)
}

func toVersionPayload(v *index.VersionData) api.VersionPayload {
	return api.VersionPayload{
		Hash:      v.Hash,
		Timestamp: v.Timestamp,
		Message: api.MessagePayload{
			Summary:        v.Message.Summary,
			Type:           v.Message.Type,
			Related:        v.Message.Related,
			RevertedCommit: v.Message.RevertedCommit,
		},
		Manifest: v.Manifest,
	}
}
