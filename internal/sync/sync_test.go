package sync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/index"
	"github.com/kcube/kcube/internal/vault"
)

// fakeServer is a minimal in-memory stand-in for the K-Cube sync server,
// used only inside this test file — the real server is an external
// collaborator outside this module's scope.
type fakeServer struct {
	mu       sync.Mutex
	versions map[string]api.VersionPayload
	blobs    map[string]string // hash -> content_b64
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		versions: map[string]api.VersionPayload{},
		blobs:    map[string]string{},
	}
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vaults/v1/sync/check", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			LocalVersionHashes []string `json:"local_version_hashes"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		local := map[string]bool{}
		for _, h := range body.LocalVersionHashes {
			local[h] = true
		}

		var toDownload []string
		for h := range f.versions {
			if !local[h] {
				toDownload = append(toDownload, h)
			}
		}
		var toUpload []string
		for h := range local {
			if _, ok := f.versions[h]; !ok {
				toUpload = append(toUpload, h)
			}
		}

		json.NewEncoder(w).Encode(api.SyncCheckResult{
			VersionsToUpload:   toUpload,
			VersionsToDownload: toDownload,
		})
	})

	mux.HandleFunc("/api/v1/vaults/v1/sync/blobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost {
			var body struct {
				Blobs []api.BlobPayload `json:"blobs"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			for _, b := range body.Blobs {
				f.blobs[b.Hash] = b.ContentB64
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		hashes := r.URL.Query()["h"]
		var out []api.BlobPayload
		for _, h := range hashes {
			if content, ok := f.blobs[h]; ok {
				out = append(out, api.BlobPayload{Hash: h, ContentB64: content})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"blobs": out})
	})

	mux.HandleFunc("/api/v1/vaults/v1/sync/versions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost {
			var body struct {
				Versions []api.VersionPayload `json:"versions"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			for _, v := range body.Versions {
				f.versions[v.Hash] = v
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		hashes := r.URL.Query()["h"]
		var out []api.VersionPayload
		for _, h := range hashes {
			if v, ok := f.versions[h]; ok {
				out = append(out, v)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"versions": out})
	})

	return mux
}

func newVault(t *testing.T) *vault.Repository {
	t.Helper()
	tmp := t.TempDir()
	repo, err := vault.Initialize(tmp)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTwoClientSyncExchangesVersionsAndBlobs(t *testing.T) {
	ctx := context.Background()
	f := newFakeServer()
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	client, err := api.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	c1 := newVault(t)
	c2 := newVault(t)

	xPath := filepath.Join(c1.VaultPath, "x.md")
	if err := os.WriteFile(xPath, []byte("X contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c1.Add(ctx, []string{xPath}); err != nil {
		t.Fatalf("c1.Add: %v", err)
	}
	if _, err := c1.Commit(ctx, index.Message{Summary: "add x"}); err != nil {
		t.Fatalf("c1.Commit: %v", err)
	}

	s1 := New(c1, client, "v1")
	result, err := s1.Sync(ctx)
	if err != nil {
		t.Fatalf("c1 sync: %v", err)
	}
	if result.VersionsUploaded != 1 || result.Direction() != DirectionUpload {
		t.Fatalf("expected c1 to upload 1 version, got %+v (%s)", result, result.Direction())
	}

	s2 := New(c2, client, "v1")
	result, err = s2.Sync(ctx)
	if err != nil {
		t.Fatalf("c2 sync: %v", err)
	}
	if result.VersionsDownloaded != 1 {
		t.Fatalf("expected c2 to download 1 version, got %+v", result)
	}

	latest, err := c2.LatestVersionHash(ctx)
	if err != nil {
		t.Fatalf("c2.LatestVersionHash: %v", err)
	}
	if err := c2.Restore(ctx, latest, "", true); err != nil {
		t.Fatalf("c2.Restore: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(c2.VaultPath, "x.md"))
	if err != nil {
		t.Fatalf("reading checked-out file: %v", err)
	}
	if string(content) != "X contents" {
		t.Fatalf("got %q, want %q", content, "X contents")
	}

	// Re-running check immediately should now see no further downloads.
	again, err := client.CheckSyncState(ctx, "v1", mustAllVersions(t, ctx, c2))
	if err != nil {
		t.Fatalf("CheckSyncState: %v", err)
	}
	if len(again.VersionsToDownload) != 0 {
		t.Fatalf("expected no further downloads, got %v", again.VersionsToDownload)
	}

	// C2 commits y.md and syncs; C1 should then pick it up while keeping x.md.
	yPath := filepath.Join(c2.VaultPath, "y.md")
	if err := os.WriteFile(yPath, []byte("Y contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c2.Add(ctx, []string{yPath}); err != nil {
		t.Fatalf("c2.Add: %v", err)
	}
	if _, err := c2.Commit(ctx, index.Message{Summary: "add y"}); err != nil {
		t.Fatalf("c2.Commit: %v", err)
	}
	if _, err := s2.Sync(ctx); err != nil {
		t.Fatalf("c2 second sync: %v", err)
	}

	result, err = s1.Sync(ctx)
	if err != nil {
		t.Fatalf("c1 second sync: %v", err)
	}
	if result.VersionsDownloaded != 1 {
		t.Fatalf("expected c1 to download 1 version, got %+v", result)
	}

	latest, err = c1.LatestVersionHash(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c1.Restore(ctx, latest, "", true); err != nil {
		t.Fatalf("c1.Restore: %v", err)
	}

	if _, err := os.Stat(filepath.Join(c1.VaultPath, "x.md")); err != nil {
		t.Fatalf("expected x.md to still be present on c1: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c1.VaultPath, "y.md")); err != nil {
		t.Fatalf("expected y.md to appear on c1: %v", err)
	}
}

func mustAllVersions(t *testing.T, ctx context.Context, repo *vault.Repository) []string {
	t.Helper()
	hashes, err := repo.AllVersionHashes(ctx)
	if err != nil {
		t.Fatalf("AllVersionHashes: %v", err)
	}
	return hashes
}

func TestBase64RoundTripMatchesBlobHash(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("compressed-bytes"))
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "compressed-bytes" {
		t.Fatalf("got %q", decoded)
	}
}
