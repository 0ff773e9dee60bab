// Package daemon implements the supervisor that owns one worker per
// monitored vault: it spawns, stops, and restarts workers from the global
// config, fans out their status events, and exposes the vault lifecycle
// operations (add, remove, create, clone, link, delete) the CLI/UI drive.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/config"
	"github.com/kcube/kcube/internal/kcube"
	ksync "github.com/kcube/kcube/internal/sync"
	"github.com/kcube/kcube/internal/vault"
	"github.com/kcube/kcube/internal/worker"
)

type workerHandle struct {
	w      *worker.Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns a vault_path → worker map and the global config that
// seeds it, per spec §4.7.
type Supervisor struct {
	mu         sync.Mutex
	configPath string
	cfg        *config.GlobalConfig
	client     *api.Client
	workers    map[string]*workerHandle
	events     chan worker.Event
}

// New constructs a Supervisor reading/writing the global config at
// configPath. Call Start to spawn the initial set of workers.
func New(configPath string) (*Supervisor, error) {
	cfg, err := config.LoadGlobalConfig(configPath)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		configPath: configPath,
		cfg:        cfg,
		workers:    map[string]*workerHandle{},
		events:     make(chan worker.Event, 64),
	}

	if cfg.RemoteURL != "" {
		client, err := api.New(cfg.RemoteURL, cfg.APIToken)
		if err != nil {
			return nil, err
		}
		s.client = client
	}

	return s, nil
}

// Events is the fan-out of every worker's status events, tagged by
// VaultPath, for a supervisor-level consumer (CLI, daemon log, future UI).
func (s *Supervisor) Events() <-chan worker.Event {
	return s.events
}

// Start spawns one worker per configured vault path, per spec §4.7's
// startup behavior.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restartAllLocked()
}

// restartAllLocked stops every running worker, waits for each to emit
// EventFinished, then spawns a fresh worker per currently configured path.
// Serialized per spec §4.7's "no new worker starts until all previous
// workers have emitted finished" rule, so two workers never race on the
// same vault.
func (s *Supervisor) restartAllLocked() {
	s.stopAllLocked()

	if s.client == nil {
		return
	}
	for _, path := range s.cfg.VaultPaths {
		s.startWorkerLocked(path)
	}
}

func (s *Supervisor) startWorkerLocked(vaultPath string) {
	w := worker.New(vaultPath, s.client)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	handle := &workerHandle{w: w, cancel: cancel, done: done}
	s.workers[vaultPath] = handle

	go func() {
		defer close(done)
		go w.Run(ctx)
		for ev := range w.Events() {
			if ev.Kind == worker.EventSyncError && isAuthError(ev.Err) {
				go s.handleAuthFailure()
			}
			s.events <- ev
		}
	}()
}

// isAuthError reports whether err is a kcube.Error of kind ErrAuth.
func isAuthError(err error) bool {
	var kerr *kcube.Error
	return errors.As(err, &kerr) && kerr.Kind == kcube.ErrAuth
}

// handleAuthFailure stops every worker and clears the stored credentials,
// mirroring Logout, in reaction to a syncing step reporting an auth error.
// Runs in its own goroutine so it never blocks the event-forwarding
// goroutine that detected the failure (stopAllLocked waits on every
// worker's done channel, including the caller's own, which can only close
// once this call returns).
func (s *Supervisor) handleAuthFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}
	s.stopAllLocked()
	s.client = nil
	s.cfg.APIToken = ""
	s.cfg.UserEmail = ""
	s.saveConfigLocked()
}

// stopAllLocked signals every worker to stop, cancels its context so an
// in-flight syncing step's HTTP requests are aborted, and blocks until each
// has emitted finished (its Events() channel closed).
func (s *Supervisor) stopAllLocked() {
	var waiters []chan struct{}
	for _, h := range s.workers {
		h.w.Stop()
		h.cancel()
		waiters = append(waiters, h.done)
	}
	for _, done := range waiters {
		<-done
	}
	s.workers = map[string]*workerHandle{}
}

// RestartAll stops and respawns every worker from the current config.
func (s *Supervisor) RestartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restartAllLocked()
}

// AddVault registers an already-initialized local vault path and restarts
// all workers so it picks up a worker.
func (s *Supervisor) AddVault(vaultPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return err
	}
	s.cfg.AddVaultPath(abs)
	if err := s.saveConfigLocked(); err != nil {
		return err
	}
	s.restartAllLocked()
	return nil
}

// RemoveVault stops monitoring vaultPath (without touching its on-disk
// contents or server-side record) and restarts all workers.
func (s *Supervisor) RemoveVault(vaultPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return err
	}
	s.cfg.RemoveVaultPath(abs)
	if err := s.saveConfigLocked(); err != nil {
		return err
	}
	s.restartAllLocked()
	return nil
}

// CreateVault allocates a server-side vault id, initializes a new local
// vault at targetPath, links the two, and adds it to the monitored set.
func (s *Supervisor) CreateVault(ctx context.Context, targetPath, name string) (*api.Vault, error) {
	if s.client == nil {
		return nil, kcube.NewError(kcube.ErrAuth, "not logged in", nil)
	}

	serverVault, err := s.client.CreateVault(ctx, name, "")
	if err != nil {
		return nil, err
	}

	repo, err := vault.Initialize(targetPath)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}
	cfg.VaultID = serverVault.ID
	cfg.RemoteURL = s.cfg.RemoteURL
	if err := repo.SaveConfig(cfg); err != nil {
		return nil, err
	}

	if err := s.AddVault(targetPath); err != nil {
		return nil, err
	}
	return serverVault, nil
}

// CloneVault initializes a new local vault at targetPath already linked to
// vaultID, runs one synchronizer pass to pull its full history, checks out
// the latest version, and adds it to the monitored set.
func (s *Supervisor) CloneVault(ctx context.Context, targetPath, vaultID string) error {
	if s.client == nil {
		return kcube.NewError(kcube.ErrAuth, "not logged in", nil)
	}

	repo, err := vault.Initialize(targetPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	cfg.VaultID = vaultID
	cfg.RemoteURL = s.cfg.RemoteURL
	if err := repo.SaveConfig(cfg); err != nil {
		return err
	}

	synchronizer := ksync.New(repo, s.client, vaultID)
	if _, err := synchronizer.Sync(ctx); err != nil {
		return err
	}

	latest, err := repo.LatestVersionHash(ctx)
	if err != nil {
		return err
	}
	if latest != "" {
		if err := repo.Restore(ctx, latest, "", true); err != nil {
			return err
		}
	}

	return s.AddVault(targetPath)
}

// LinkVault registers an existing local vault (already containing a
// vault_id) as monitored, after confirming the server still recognizes
// that id for the current token.
func (s *Supervisor) LinkVault(ctx context.Context, vaultPath string) error {
	if s.client == nil {
		return kcube.NewError(kcube.ErrAuth, "not logged in", nil)
	}

	repo, err := vault.Find(vaultPath)
	if err != nil {
		return err
	}
	if repo == nil {
		return kcube.NewError(kcube.ErrNotAVault, vaultPath, nil)
	}
	defer repo.Close()

	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	if cfg.VaultID == "" {
		return fmt.Errorf("vault at %s has no vault_id to link", vaultPath)
	}

	if _, err := s.client.GetVaultDetails(ctx, cfg.VaultID); err != nil {
		return err
	}

	return s.AddVault(vaultPath)
}

// DeleteVault deletes vaultID server-side and unregisters the first local
// path whose config references it, if any.
func (s *Supervisor) DeleteVault(ctx context.Context, vaultID string) error {
	if s.client == nil {
		return kcube.NewError(kcube.ErrAuth, "not logged in", nil)
	}

	if err := s.client.DeleteVault(ctx, vaultID); err != nil {
		return err
	}

	s.mu.Lock()
	paths := append([]string(nil), s.cfg.VaultPaths...)
	s.mu.Unlock()

	for _, path := range paths {
		repo, err := vault.Find(path)
		if err != nil || repo == nil {
			continue
		}
		cfg, err := repo.Config()
		repo.Close()
		if err != nil {
			continue
		}
		if cfg.VaultID == vaultID {
			return s.RemoveVault(path)
		}
	}
	return nil
}

// TriggerManualSync requests an immediate sync step on the worker
// monitoring vaultPath. Returns an error if no such worker is running.
func (s *Supervisor) TriggerManualSync(vaultPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return err
	}
	h, ok := s.workers[abs]
	if !ok {
		return fmt.Errorf("no worker is monitoring %s", vaultPath)
	}
	h.w.TriggerSync()
	return nil
}

// Logout stops every worker and clears the stored credentials.
func (s *Supervisor) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllLocked()
	s.client = nil
	s.cfg.APIToken = ""
	s.cfg.UserEmail = ""
	return s.saveConfigLocked()
}

// Login authenticates against remoteURL, stores the resulting token, and
// restarts all workers so they pick up the new client.
func (s *Supervisor) Login(ctx context.Context, remoteURL, email, password string, register bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := api.New(remoteURL, "")
	if err != nil {
		return err
	}

	if register {
		if err := client.Register(ctx, email, password); err != nil {
			return err
		}
	}

	token, err := client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.cfg.RemoteURL = remoteURL
	s.cfg.APIToken = token
	s.cfg.UserEmail = email
	if err := s.saveConfigLocked(); err != nil {
		return err
	}

	s.client = client.WithToken(token)
	s.restartAllLocked()
	return nil
}

func (s *Supervisor) saveConfigLocked() error {
	return s.cfg.Save(s.configPath)
}

// Shutdown stops every worker, for process-exit cleanup.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAllLocked()
}

// ProposeVaultID returns a fresh client-generated UUID, for a caller that
// wants to pre-assign a vault id before the server round trip
// (api.Client.CreateVault accepts one). No operation in this package calls it.
func ProposeVaultID() string {
	return uuid.NewString()
}
