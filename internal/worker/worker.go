// Package worker implements the per-vault state machine that validates a
// vault against the server, monitors it for changes, debounces bursts of
// filesystem activity into a single sync step, and checks out whatever the
// sync step downloads.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kcube/kcube/internal/api"
	"github.com/kcube/kcube/internal/index"
	"github.com/kcube/kcube/internal/kcube"
	ksync "github.com/kcube/kcube/internal/sync"
	"github.com/kcube/kcube/internal/vault"
	"github.com/kcube/kcube/internal/watch"
)

// DebounceInterval is the fixed delay between the last observed change and
// the worker entering its syncing step.
const DebounceInterval = 2 * time.Second

// State is one of the worker's lifecycle states.
type State string

const (
	StateValidating State = "validating"
	StateMonitoring State = "monitoring"
	StateSyncing    State = "syncing"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// EventKind names the structured status events a worker emits, per spec
// §4.6; a frontend or CLI decides how to render them.
type EventKind string

const (
	EventValidationSucceeded EventKind = "validation_succeeded"
	EventValidationFailed    EventKind = "validation_failed"
	EventSyncStarted         EventKind = "sync_started"
	EventSyncFinished        EventKind = "sync_finished"
	EventSyncError           EventKind = "sync_error"
	EventFinished            EventKind = "finished"
)

// Event is one status update from a worker, tagged with the vault path it
// concerns so a supervisor fanning out many workers' channels can tell them
// apart.
type Event struct {
	VaultPath string
	Kind      EventKind
	Direction ksync.Direction
	Result    ksync.Result
	Err       error
}

// Worker runs one vault's validate/monitor/sync loop.
type Worker struct {
	vaultPath string
	vaultID   string
	client    *api.Client

	events     chan Event
	stop       chan struct{}
	manualSync chan struct{}

	state State
}

// New constructs a Worker for vaultPath. Call Run to start it.
func New(vaultPath string, client *api.Client) *Worker {
	return &Worker{
		vaultPath:  vaultPath,
		client:     client,
		events:     make(chan Event, 8),
		stop:       make(chan struct{}),
		manualSync: make(chan struct{}, 1),
		state:      StateValidating,
	}
}

// Events delivers the worker's status updates. The channel is closed once
// the worker has emitted EventFinished.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// TriggerSync requests an immediate syncing step; it fuses with the
// debounce timer. At most one trigger is queued: one that arrives during an
// in-flight sync runs one more syncing step after the current one finishes,
// and further triggers before then are dropped.
func (w *Worker) TriggerSync() {
	select {
	case w.manualSync <- struct{}{}:
	default:
	}
}

// Stop signals the worker to finish its current step (if any) and exit.
// Run emits EventFinished and closes Events() once it does.
func (w *Worker) Stop() {
	close(w.stop)
}

// emit delivers e, blocking until the buffered channel has room. Callers
// must keep draining Events() until it closes (after EventFinished) so this
// never blocks forever.
func (w *Worker) emit(e Event) {
	e.VaultPath = w.vaultPath
	w.events <- e
}

// Run drives the worker's full lifecycle. It blocks until the worker is
// stopped (via Stop) or validation fails, and is meant to be launched in
// its own goroutine by the supervisor.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.events)

	w.state = StateValidating
	repo, err := w.validate(ctx)
	if err != nil {
		w.emit(Event{Kind: EventValidationFailed, Err: err})
		w.state = StateStopped
		w.emit(Event{Kind: EventFinished})
		return
	}
	defer repo.Close()
	w.emit(Event{Kind: EventValidationSucceeded})

	watcher, err := watch.New(w.vaultPath)
	if err != nil {
		w.emit(Event{Kind: EventValidationFailed, Err: err})
		w.state = StateStopped
		w.emit(Event{Kind: EventFinished})
		return
	}
	defer watcher.Close()
	go watcher.Run()

	synchronizer := ksync.New(repo, w.client, w.vaultID)

	w.state = StateMonitoring
	w.monitorLoop(ctx, repo, watcher, synchronizer)

	w.state = StateStopped
	w.emit(Event{Kind: EventFinished})
}

// validate loads the repository at vaultPath, requires a vault_id, and
// confirms the server recognizes it for the current token.
func (w *Worker) validate(ctx context.Context) (*vault.Repository, error) {
	repo, err := vault.Find(w.vaultPath)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, kcube.NewError(kcube.ErrNotAVault, w.vaultPath, nil)
	}

	cfg, err := repo.Config()
	if err != nil {
		repo.Close()
		return nil, err
	}
	if cfg.VaultID == "" {
		repo.Close()
		return nil, fmt.Errorf("vault at %s has no vault_id", w.vaultPath)
	}
	w.vaultID = cfg.VaultID

	if _, err := w.client.GetVaultDetails(ctx, cfg.VaultID); err != nil {
		repo.Close()
		return nil, err
	}

	return repo, nil
}

// monitorLoop is the monitoring ⇄ syncing cycle: each watcher event resets
// a debounce timer, manual-sync requests fuse with it, and either firing
// enters exactly one syncing step before returning to monitoring.
func (w *Worker) monitorLoop(ctx context.Context, repo *vault.Repository, watcher *watch.Watcher, synchronizer *ksync.Synchronizer) {
	timer := time.NewTimer(DebounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	timerActive := false

	for {
		select {
		case <-w.stop:
			if timerActive {
				timer.Stop()
			}
			return

		case <-watcher.Changes():
			if timerActive {
				if !timer.Stop() {
					<-timer.C
				}
			}
			timer.Reset(DebounceInterval)
			timerActive = true

		case <-w.manualSync:
			if timerActive {
				if !timer.Stop() {
					<-timer.C
				}
				timerActive = false
			}
			w.state = StateSyncing
			w.runSyncStep(ctx, repo, watcher, synchronizer)
			w.state = StateMonitoring

		case <-timer.C:
			timerActive = false
			w.state = StateSyncing
			w.runSyncStep(ctx, repo, watcher, synchronizer)
			w.state = StateMonitoring
		}
	}
}

// runSyncStep performs spec §4.6's syncing step: auto-commit any dirty
// working tree, reconcile with the server, and checkout any downloaded
// versions under watcher suspension.
func (w *Worker) runSyncStep(ctx context.Context, repo *vault.Repository, watcher *watch.Watcher, synchronizer *ksync.Synchronizer) {
	if err := w.autoCommitIfDirty(ctx, repo); err != nil {
		w.emit(Event{Kind: EventSyncError, Err: err})
		return
	}

	result, err := synchronizer.Sync(ctx)
	if err != nil {
		w.emit(Event{Kind: EventSyncError, Err: err})
		return
	}

	direction := result.Direction()
	if direction != ksync.DirectionNone {
		w.emit(Event{Kind: EventSyncStarted, Direction: direction})
	}

	if result.VersionsDownloaded > 0 {
		watcher.Suspend()
		latest, err := repo.LatestVersionHash(ctx)
		if err == nil && latest != "" {
			err = repo.Restore(ctx, latest, "", true)
		}
		watcher.Resume()
		if err != nil {
			w.emit(Event{Kind: EventSyncError, Err: err})
			return
		}
	}

	w.emit(Event{Kind: EventSyncFinished, Result: result})
}

func (w *Worker) autoCommitIfDirty(ctx context.Context, repo *vault.Repository) error {
	status, err := repo.GetStatus(ctx)
	if err != nil {
		return err
	}
	if status.IsClean() {
		return nil
	}

	if err := repo.Add(ctx, []string{repo.VaultPath}); err != nil {
		return err
	}
	_, err = repo.Commit(ctx, index.Message{Type: "Auto", Summary: "Auto-sync changes"})
	if err != nil {
		var kerr *kcube.Error
		if errors.As(err, &kerr) && kerr.Kind == kcube.ErrEmptyStagingCommit {
			return nil
		}
		return err
	}
	return nil
}
