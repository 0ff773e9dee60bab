package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/vault"
)

// fakeAPI is a minimal stand-in for the sync server covering just what
// validation and a single sync step touch.
type fakeAPI struct {
	mu       sync.Mutex
	versions map[string]api.VersionPayload
	blobs    map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{versions: map[string]api.VersionPayload{}, blobs: map[string]string{}}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vaults/vault-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Vault{ID: "vault-1", Name: "notes"})
	})
	mux.HandleFunc("/api/v1/vaults/vault-1/sync/check", func(w http.ResponseWriter, r *http.Request) {
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
		var toUpload []string
		for h := range local {
			if _, ok := f.versions[h]; !ok {
				toUpload = append(toUpload, h)
			}
		}
		json.NewEncoder(w).Encode(api.SyncCheckResult{VersionsToUpload: toUpload})
	})
	mux.HandleFunc("/api/v1/vaults/vault-1/sync/blobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			Blobs []api.BlobPayload `json:"blobs"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, b := range body.Blobs {
			f.blobs[b.Hash] = b.ContentB64
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/vaults/vault-1/sync/versions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			Versions []api.VersionPayload `json:"versions"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, v := range body.Versions {
			f.versions[v.Hash] = v
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newLinkedVault(t *testing.T) (*vault.Repository, string) {
	t.Helper()
	tmp := t.TempDir()
	repo, err := vault.Initialize(tmp)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cfg, err := repo.Config()
	if err != nil {
		t.Fatal(err)
	}
	cfg.VaultID = "vault-1"
	if err := repo.SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}
	repo.Close()
	return nil, tmp
}

func TestWorkerValidatesThenMonitorsThenStops(t *testing.T) {
	f := newFakeAPI()
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	client, err := api.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	_, vaultPath := newLinkedVault(t)

	w := New(vaultPath, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	var gotValidationSucceeded, gotFinished bool
	deadline := time.After(5 * time.Second)

	w.Stop()

drain:
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				break drain
			}
			switch ev.Kind {
			case EventValidationSucceeded:
				gotValidationSucceeded = true
			case EventFinished:
				gotFinished = true
			case EventValidationFailed:
				t.Fatalf("unexpected validation failure: %v", ev.Err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for worker events")
		}
	}

	if !gotValidationSucceeded {
		t.Fatal("expected validation_succeeded event")
	}
	if !gotFinished {
		t.Fatal("expected finished event")
	}
}

func TestWorkerValidationFailsWithoutVaultID(t *testing.T) {
	f := newFakeAPI()
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	client, err := api.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	tmp := t.TempDir()
	repo, err := vault.Initialize(tmp)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	repo.Close()

	w := New(tmp, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	var gotValidationFailed, gotFinished bool
	deadline := time.After(5 * time.Second)
drain:
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				break drain
			}
			switch ev.Kind {
			case EventValidationFailed:
				gotValidationFailed = true
			case EventFinished:
				gotFinished = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for worker events")
		}
	}

	if !gotValidationFailed {
		t.Fatal("expected validation_failed event")
	}
	if !gotFinished {
		t.Fatal("expected finished event even after validation failure")
	}
}

func TestWorkerManualSyncTriggersSyncStep(t *testing.T) {
	f := newFakeAPI()
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	client, err := api.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	_, vaultPath := newLinkedVault(t)
	if err := os.WriteFile(filepath.Join(vaultPath, "note.md"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(vaultPath, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	deadline := time.After(5 * time.Second)
validation:
	for {
		select {
		case ev := <-w.Events():
			switch ev.Kind {
			case EventValidationSucceeded:
				break validation
			case EventValidationFailed:
				t.Fatalf("validation failed: %v", ev.Err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for validation")
		}
	}

	w.TriggerSync()

	var gotSyncFinished bool
	deadline = time.After(5 * time.Second)
	for !gotSyncFinished {
		select {
		case ev := <-w.Events():
			switch ev.Kind {
			case EventSyncFinished:
				gotSyncFinished = true
			case EventSyncError:
				t.Fatalf("unexpected sync error: %v", ev.Err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for sync_finished")
		}
	}

	w.Stop()
	for range w.Events() {
	}
}
