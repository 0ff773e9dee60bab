// Package vault implements the repository engine: the status diff, and
// the add/commit/reset/revert/restore/log operations that move data
// between the working tree, the staging area, and the last committed
// version.
package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kcube/kcube/internal/config"
	"github.com/kcube/kcube/internal/index"
	"github.com/kcube/kcube/internal/kcube"
	"github.com/kcube/kcube/internal/staging"
	"github.com/kcube/kcube/internal/store"
)

const (
	versionsSubdir = "versions"
	indexFileName  = "index.db"
	stagingFile    = "staging.json"
	configFile     = "config.json"
)

// Repository is a single vault's engine: its path, its index database, its
// object store, and its staging area.
type Repository struct {
	VaultPath string

	kcubePath string
	db        *index.DB
	store     *store.Store
	staging   *staging.Area
	configPath string
}

// Initialize creates a new vault at path. Fails with ErrAlreadyAVault if
// any ancestor of path (inclusive) already contains a .kcube directory.
func Initialize(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if root, err := kcube.FindVaultRoot(absPath); err != nil {
		return nil, err
	} else if root != "" {
		return nil, kcube.NewError(kcube.ErrAlreadyAVault, fmt.Sprintf("a vault already exists at %s", root), nil)
	}

	kcubePath := filepath.Join(absPath, kcube.KcubeDir)
	versionsPath := filepath.Join(kcubePath, versionsSubdir)

	if err := os.MkdirAll(versionsPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault directories: %w", err)
	}

	db, err := index.Open(filepath.Join(kcubePath, indexFileName))
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	cfgPath := filepath.Join(kcubePath, configFile)
	cfg := &config.VaultConfig{Version: config.SchemaVersion}
	if err := cfg.Save(cfgPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{
		VaultPath:  absPath,
		kcubePath:  kcubePath,
		db:         db,
		store:      store.New(versionsPath),
		staging:    staging.New(filepath.Join(kcubePath, stagingFile)),
		configPath: cfgPath,
	}, nil
}

// Find walks upward from path looking for an existing vault. Returns nil,
// nil (not an error) if none is found.
func Find(path string) (*Repository, error) {
	root, err := kcube.FindVaultRoot(path)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, nil
	}
	return open(root)
}

func open(root string) (*Repository, error) {
	kcubePath := filepath.Join(root, kcube.KcubeDir)
	db, err := index.Open(filepath.Join(kcubePath, indexFileName))
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{
		VaultPath:  root,
		kcubePath:  kcubePath,
		db:         db,
		store:      store.New(filepath.Join(kcubePath, versionsSubdir)),
		staging:    staging.New(filepath.Join(kcubePath, stagingFile)),
		configPath: filepath.Join(kcubePath, configFile),
	}, nil
}

// Close releases the index database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Config loads the repository's local config document.
func (r *Repository) Config() (*config.VaultConfig, error) {
	return config.LoadVaultConfig(r.configPath)
}

// SaveConfig persists the repository's local config document.
func (r *Repository) SaveConfig(cfg *config.VaultConfig) error {
	return cfg.Save(r.configPath)
}

// relPath converts an absolute path under the vault to a vault-relative,
// forward-slashed path.
func (r *Repository) relPath(absPath string) (string, error) {
	rel, err := filepath.Rel(r.VaultPath, absPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", kcube.NewError(kcube.ErrPathOutsideVault, absPath, nil)
	}
	return filepath.ToSlash(rel), nil
}

// absPath converts a vault-relative path back to an absolute filesystem path.
func (r *Repository) absPath(relPath string) string {
	return filepath.Join(r.VaultPath, filepath.FromSlash(relPath))
}

// walkWorkTree returns every regular file under the vault root, excluding
// .kcube, as a set of vault-relative forward-slashed paths.
func (r *Repository) walkWorkTree() ([]string, error) {
	var files []string
	err := filepath.Walk(r.VaultPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(r.VaultPath, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if parts[0] == kcube.KcubeDir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// hashWorkingFile reads and compresses absPath, returning the blob hash
// the same way add does, so status and add never disagree.
func hashWorkingFile(absPath string) (hash string, compressed []byte, err error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", nil, err
	}
	compressed, err = kcube.CompressBlob(content)
	if err != nil {
		return "", nil, err
	}
	return kcube.HashBlob(compressed), compressed, nil
}

// GetStatus computes the six-way staged/unstaged/untracked diff described
// in spec §4.3: last-commit manifest (L), staged manifest (S), working
// tree (W).
func (r *Repository) GetStatus(ctx context.Context) (*Status, error) {
	latestHash, err := r.db.GetLatestVersionHash(ctx)
	if err != nil {
		return nil, err
	}
	lastManifest, err := r.db.GetVersionManifest(ctx, latestHash)
	if err != nil {
		return nil, err
	}

	stagedManifest, err := r.staging.Read()
	if err != nil {
		return nil, err
	}

	workFiles, err := r.walkWorkTree()
	if err != nil {
		return nil, err
	}
	workTree := make(map[string]string, len(workFiles))
	for _, rel := range workFiles {
		hash, _, err := hashWorkingFile(r.absPath(rel))
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", rel, err)
		}
		workTree[rel] = hash
	}

	status := &Status{}

	stagedVsLast := unionKeys(stagedManifest, lastManifest)
	for _, path := range stagedVsLast {
		stagedHash, inStaged := stagedManifest[path]
		lastHash, inLast := lastManifest[path]
		if !inStaged || stagedHash == lastHash {
			continue
		}
		switch {
		case stagedHash == staging.Deleted:
			status.StagedDeleted = append(status.StagedDeleted, path)
		case !inLast:
			status.StagedNew = append(status.StagedNew, path)
		default:
			status.StagedModified = append(status.StagedModified, path)
		}
	}

	expected := make(map[string]string, len(lastManifest)+len(stagedManifest))
	for path, hash := range lastManifest {
		expected[path] = hash
	}
	for path, hash := range stagedManifest {
		expected[path] = hash
	}

	workVsExpected := unionKeys(workTree, expected)
	for _, path := range workVsExpected {
		workHash, inWork := workTree[path]
		expectedHash, inExpected := expected[path]
		switch {
		case !inWork && inExpected && expectedHash != staging.Deleted:
			status.UnstagedDeleted = append(status.UnstagedDeleted, path)
		case inWork && inExpected && expectedHash != staging.Deleted && workHash != expectedHash:
			status.UnstagedModified = append(status.UnstagedModified, path)
		}
	}

	for _, path := range workFiles {
		_, inStaged := stagedManifest[path]
		_, inLast := lastManifest[path]
		if !inStaged && !inLast {
			status.Untracked = append(status.Untracked, path)
		}
	}
	sort.Strings(status.Untracked)

	return status, nil
}

func unionKeys(a, b map[string]string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Add stages the given paths (files, directories, or paths that no longer
// exist). Deletions are only recognized for tracked paths that lie under a
// directory the caller explicitly passed (so `add .` sees every deletion;
// `add note1.md` only sees note1.md's own deletion) — this resolves the
// ambiguity spec §9's Open Questions flags in the source across drafts.
func (r *Repository) Add(ctx context.Context, paths []string) error {
	stagingData, err := r.staging.Read()
	if err != nil {
		return err
	}

	latestHash, err := r.db.GetLatestVersionHash(ctx)
	if err != nil {
		return err
	}
	lastManifest, err := r.db.GetVersionManifest(ctx, latestHash)
	if err != nil {
		return err
	}

	dirsToProcess := map[string]bool{}
	filesToProcess := map[string]bool{}

	for _, p := range paths {
		absP, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if _, relErr := r.relPath(absP); relErr != nil {
			return relErr
		}

		info, statErr := os.Stat(absP)
		switch {
		case statErr == nil && info.IsDir():
			dirsToProcess[absP] = true
			err := filepath.Walk(absP, func(path string, fi os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				rel, _ := filepath.Rel(r.VaultPath, path)
				parts := strings.Split(rel, string(filepath.Separator))
				if len(parts) > 0 && parts[0] == kcube.KcubeDir {
					if fi.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if !fi.IsDir() {
					filesToProcess[path] = true
				}
				return nil
			})
			if err != nil {
				return err
			}
		case statErr == nil:
			filesToProcess[absP] = true
		default:
			// Path no longer exists; still track it so the deletion pass
			// below notices it if it was under an explicitly-passed scope.
			filesToProcess[absP] = true
		}
	}

	// Deletion pass: every previously tracked path, restricted to ones in
	// scope of what the caller explicitly passed.
	trackedBefore := map[string]bool{}
	for path := range lastManifest {
		trackedBefore[path] = true
	}
	for path := range stagingData {
		trackedBefore[path] = true
	}

	vaultRootInDirs := dirsToProcess[r.VaultPath]

	for trackedRel := range trackedBefore {
		trackedAbs := r.absPath(trackedRel)

		inScope := vaultRootInDirs
		if !inScope {
			for d := range dirsToProcess {
				if isUnderDir(trackedAbs, d) {
					inScope = true
					break
				}
			}
		}
		if !inScope && !filesToProcess[trackedAbs] {
			continue
		}

		if _, err := os.Stat(trackedAbs); os.IsNotExist(err) {
			if stagingData[trackedRel] != staging.Deleted {
				stagingData[trackedRel] = staging.Deleted
			}
		}
	}

	// New/modified pass.
	for fileAbs := range filesToProcess {
		info, err := os.Stat(fileAbs)
		if err != nil || info.IsDir() {
			continue
		}

		rel, err := r.relPath(fileAbs)
		if err != nil {
			return err
		}

		hash, compressed, err := hashWorkingFile(fileAbs)
		if err != nil {
			return err
		}

		if stagingData[rel] == hash {
			continue
		}

		stagingData[rel] = hash

		exists, err := r.db.BlobExists(ctx, hash)
		if err != nil {
			return err
		}
		if !exists {
			content, err := os.ReadFile(fileAbs)
			if err != nil {
				return err
			}
			if err := r.store.WriteCompressed(hash, compressed); err != nil {
				return err
			}
			if err := r.db.InsertBlob(ctx, hash, int64(len(content)), int64(len(compressed))); err != nil {
				return err
			}
		}
	}

	return r.staging.Write(stagingData)
}

func isUnderDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Reset removes the given paths from the staging area, or clears the
// entire staging area if paths is empty.
func (r *Repository) Reset(ctx context.Context, paths []string) error {
	stagingData, err := r.staging.Read()
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		return r.staging.Clear()
	}

	for _, p := range paths {
		absP, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		rel, err := r.relPath(absP)
		if err != nil {
			return err
		}
		delete(stagingData, rel)
	}

	return r.staging.Write(stagingData)
}

// Commit builds a new manifest from the staging map applied onto the last
// commit, hashes it, and persists it as a new version. Fails with
// ErrEmptyStagingCommit if nothing is staged.
func (r *Repository) Commit(ctx context.Context, message index.Message) (string, error) {
	stagedChanges, err := r.staging.Read()
	if err != nil {
		return "", err
	}
	if len(stagedChanges) == 0 {
		return "", kcube.NewError(kcube.ErrEmptyStagingCommit, "nothing staged", nil)
	}

	latestHash, err := r.db.GetLatestVersionHash(ctx)
	if err != nil {
		return "", err
	}
	newManifest, err := r.db.GetVersionManifest(ctx, latestHash)
	if err != nil {
		return "", err
	}

	for path, blobHash := range stagedChanges {
		if blobHash == staging.Deleted {
			delete(newManifest, path)
		} else {
			newManifest[path] = blobHash
		}
	}

	timestamp := time.Now().Unix()
	versionHash, err := canonicalVersionHash(timestamp, message, newManifest)
	if err != nil {
		return "", err
	}

	if err := r.db.InsertVersion(ctx, versionHash, timestamp, message, newManifest); err != nil {
		return "", err
	}

	if err := r.staging.Clear(); err != nil {
		return "", err
	}

	return versionHash, nil
}

// GetHistory returns versions ordered by timestamp descending, optionally
// filtered to those containing relPath in their manifest.
func (r *Repository) GetHistory(ctx context.Context, relPath string) ([]index.Version, error) {
	return r.db.GetVersionHistory(ctx, relPath)
}

// Revert resolves versionPrefix to version T, finds its parent P (the
// version with the largest timestamp strictly less than T's), and commits
// a new version that restores every path T touched back to P's value.
func (r *Repository) Revert(ctx context.Context, versionPrefix string) (string, error) {
	targetHash, err := r.db.FindVersionByPrefix(ctx, versionPrefix)
	if err != nil {
		return "", err
	}

	targetData, err := r.db.GetVersionData(ctx, targetHash)
	if err != nil {
		return "", err
	}

	parentHash, err := r.findParentVersion(ctx, targetData.Timestamp)
	if err != nil {
		return "", err
	}
	parentManifest, err := r.db.GetVersionManifest(ctx, parentHash)
	if err != nil {
		return "", err
	}

	latestHash, err := r.db.GetLatestVersionHash(ctx)
	if err != nil {
		return "", err
	}
	if latestHash == "" {
		return "", kcube.NewError(kcube.ErrUnknownVersion, "vault has no versions to revert onto", nil)
	}
	headManifest, err := r.db.GetVersionManifest(ctx, latestHash)
	if err != nil {
		return "", err
	}

	newManifest := make(map[string]string, len(headManifest))
	for k, v := range headManifest {
		newManifest[k] = v
	}

	for path, targetBlob := range targetData.Manifest {
		parentBlob, inParent := parentManifest[path]
		if !inParent {
			delete(newManifest, path)
		} else if parentBlob != targetBlob {
			newManifest[path] = parentBlob
		}
	}
	for path, parentBlob := range parentManifest {
		if _, inTarget := targetData.Manifest[path]; !inTarget {
			newManifest[path] = parentBlob
		}
	}

	message := index.Message{
		Type:           "Revert",
		Summary:        fmt.Sprintf("Revert commit %s", shortHash(targetHash)),
		RevertedCommit: targetHash,
	}

	timestamp := time.Now().Unix()
	versionHash, err := canonicalVersionHash(timestamp, message, newManifest)
	if err != nil {
		return "", err
	}
	if err := r.db.InsertVersion(ctx, versionHash, timestamp, message, newManifest); err != nil {
		return "", err
	}

	return versionHash, nil
}

func (r *Repository) findParentVersion(ctx context.Context, beforeTimestamp int64) (string, error) {
	all, err := r.db.GetVersionHistory(ctx, "")
	if err != nil {
		return "", err
	}
	var parent string
	var parentTS int64 = -1
	for _, v := range all {
		if v.Timestamp < beforeTimestamp && v.Timestamp > parentTS {
			parent = v.Hash
			parentTS = v.Timestamp
		}
	}
	return parent, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// Restore resolves versionPrefix and, depending on whether relPath is
// given, restores a single file or the whole vault. hard additionally
// deletes every untracked file not present in the target manifest.
func (r *Repository) Restore(ctx context.Context, versionPrefix string, relPath string, hard bool) error {
	versionHash, err := r.db.FindVersionByPrefix(ctx, versionPrefix)
	if err != nil {
		return err
	}

	if relPath != "" {
		return r.restoreSingleFile(ctx, relPath, versionHash)
	}
	return r.restoreFullVault(ctx, versionHash, hard)
}

func (r *Repository) restoreSingleFile(ctx context.Context, relPath, versionHash string) error {
	blobHash, err := r.db.GetBlobHashForFileInVersion(ctx, versionHash, relPath)
	if err != nil {
		return err
	}

	targetPath := r.absPath(relPath)

	if blobHash == "" {
		if _, err := os.Stat(targetPath); err == nil {
			return os.Remove(targetPath)
		}
		return nil
	}

	content, err := r.store.Read(blobHash)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(targetPath, content, 0o644)
}

func (r *Repository) restoreFullVault(ctx context.Context, versionHash string, hard bool) error {
	targetManifest, err := r.db.GetVersionManifest(ctx, versionHash)
	if err != nil {
		return err
	}

	latestHash, err := r.db.GetLatestVersionHash(ctx)
	if err != nil {
		return err
	}
	lastManifest, err := r.db.GetVersionManifest(ctx, latestHash)
	if err != nil {
		return err
	}
	stagedManifest, err := r.staging.Read()
	if err != nil {
		return err
	}

	filesToCheck := map[string]bool{}
	for p := range lastManifest {
		filesToCheck[p] = true
	}
	for p := range stagedManifest {
		filesToCheck[p] = true
	}

	for path, blobHash := range targetManifest {
		content, err := r.store.Read(blobHash)
		if err != nil {
			return err
		}
		target := r.absPath(path)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return err
		}
		delete(filesToCheck, path)
	}

	for path := range filesToCheck {
		if _, inTarget := targetManifest[path]; inTarget {
			continue
		}
		target := r.absPath(path)
		if _, err := os.Stat(target); err == nil {
			if err := os.Remove(target); err != nil {
				return err
			}
		}
	}

	if hard {
		workFiles, err := r.walkWorkTree()
		if err != nil {
			return err
		}
		for _, path := range workFiles {
			if _, inTarget := targetManifest[path]; inTarget {
				continue
			}
			target := r.absPath(path)
			if _, err := os.Stat(target); err == nil {
				if err := os.Remove(target); err != nil {
					return err
				}
			}
		}
	}

	return r.staging.Clear()
}
