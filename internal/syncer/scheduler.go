// Package syncer schedules encrypted backup uploads to the remote store.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/snapshot"
)

// State of the scheduler.
type State string

const (
	// StateIdle means no sync is needed or running.
	StateIdle State = "idle"
	// StateDue means a sync has been decided but not yet started.
	StateDue State = "due"
	// StateSyncing means an export and upload are in flight.
	StateSyncing State = "syncing"
	// StateFailed means the last sync exhausted its retries. The state is
	// re-enterable: the next check tries again.
	StateFailed State = "failed"
)

// Frequency selects when a periodic sync becomes due.
type Frequency string

const (
	// FrequencyManual never becomes due on its own; only SyncNow uploads.
	FrequencyManual Frequency = "manual"
	// FrequencyOnClose fires exactly once per application close event,
	// regardless of how recently the last sync ran.
	FrequencyOnClose Frequency = "on_close"
	// FrequencyDaily syncs when the last sync is at least a day old.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly syncs when the last sync is at least a week old.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly syncs when the last sync is at least 30 days old.
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency converts a user-supplied frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyManual, FrequencyOnClose, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("%w: unknown sync frequency %q", common.ErrInvalidConfig, s)
	}
}

// Interval returns the minimum age of the last sync before a periodic
// frequency becomes due. The second return is false for the event-driven
// frequencies.
func (f Frequency) Interval() (time.Duration, bool) {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour, true
	case FrequencyWeekly:
		return 7 * 24 * time.Hour, true
	case FrequencyMonthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Event is an external occurrence pushed into the scheduler. The scheduler
// holds no timers of its own beyond the periodic tick in Run; everything
// else arrives as an event.
type Event int

const (
	// EventStart is sent once when the application starts.
	EventStart Event = iota
	// EventTick is the periodic timer check.
	EventTick
	// EventClose is sent once when the application is closing.
	EventClose
	// EventManual is an explicit user-triggered sync request.
	EventManual
)

// lastSyncKey is the settings key holding the last successful sync time.
const lastSyncKey = "sync.last_timestamp"

// Scheduler decides when to produce a snapshot and push it to the remote
// store, and recovers from transient upload failures.
type Scheduler struct {
	store      service.Storage
	remote     service.ObjectStore
	now        func() time.Time
	events     chan Event
	passphrase string
	frequency  Frequency
	retry      service.RetryOptions
	mu         sync.Mutex
	state      State
}

// New creates a scheduler. It does not start checking until Run is called.
func New(store service.Storage, remote service.ObjectStore, passphrase string, frequency Frequency, retry service.RetryOptions) *Scheduler {
	return &Scheduler{
		store:      store,
		remote:     remote,
		passphrase: passphrase,
		frequency:  frequency,
		retry:      retry,
		state:      StateIdle,
		events:     make(chan Event, 8),
		now:        time.Now,
	}
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Signal pushes an event into the scheduler. It never blocks; if the event
// buffer is full the event is dropped, which is safe because the next tick
// re-evaluates the same condition.
func (s *Scheduler) Signal(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Run processes events until ctx is canceled. A periodic tick re-checks the
// schedule so a missed event never wedges the scheduler; tick is also the
// retry cadence after a failed sync.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Minute
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.Signal(EventStart)

	for {
		select {
		case <-ctx.Done():
			// Cancellation is the application going away. Give an
			// on_close schedule its final check before leaving; the
			// check needs a live context to upload with.
			s.Check(context.WithoutCancel(ctx), EventClose)
			return ctx.Err()
		case <-ticker.C:
			s.Check(ctx, EventTick)
		case ev := <-s.events:
			s.Check(ctx, ev)
			if ev == EventClose {
				return nil
			}
		}
	}
}

// Check evaluates whether a sync is due for the given event and performs it
// if so. Sync failures are absorbed into StateFailed and retried on the next
// check; they never propagate as a crash.
func (s *Scheduler) Check(ctx context.Context, ev Event) {
	if !s.due(ctx, ev) {
		return
	}

	s.setState(StateDue)
	if err := s.syncOnce(ctx); err != nil {
		slog.Error("scheduled sync failed", "error", err, "state", StateFailed)
	}
}

func (s *Scheduler) due(ctx context.Context, ev Event) bool {
	if ev == EventManual {
		return true
	}

	switch s.frequency {
	case FrequencyManual:
		return false
	case FrequencyOnClose:
		return ev == EventClose
	}

	interval, ok := s.frequency.Interval()
	if !ok {
		return false
	}

	last, err := s.lastSync(ctx)
	if err != nil {
		slog.Warn("failed to read last sync time", "error", err)
		return false
	}
	if last.IsZero() {
		return true
	}
	return s.now().Sub(last) >= interval
}

// SyncNow performs an immediate export and upload, regardless of schedule.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	s.setState(StateDue)
	return s.syncOnce(ctx)
}

func (s *Scheduler) syncOnce(ctx context.Context) error {
	s.setState(StateSyncing)

	snap, err := s.store.Export(ctx)
	if err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("failed to export ledger: %w", err)
	}

	data, err := snapshot.EncodeWithPassphrase(snap, s.passphrase)
	if err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := BackupName(s.now())

	result := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		_, err := s.remote.Put(attemptCtx, name, data)
		return err
	}, s.retry)

	if !result.Succeeded() {
		s.setState(StateFailed)
		return fmt.Errorf("failed to push snapshot after %d attempts: %w", len(result.Attempts), result.Err)
	}

	if err := s.store.SetSetting(ctx, lastSyncKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("failed to record sync time: %w", err)
	}

	s.setState(StateIdle)
	slog.Info("backup synced", "name", name, "bytes", len(data), "attempts", len(result.Attempts))
	return nil
}

// LatestBackup returns the handle of the most recent remote backup.
func (s *Scheduler) LatestBackup(ctx context.Context) (service.Handle, error) {
	var latest service.Handle

	result := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		handles, err := s.remote.ListHandles(attemptCtx)
		if err != nil {
			return err
		}
		if len(handles) == 0 {
			return common.Permanent(fmt.Errorf("%w: no remote backups", common.ErrNotFound))
		}
		latest = handles[0]
		return nil
	}, s.retry)

	if !result.Succeeded() {
		return service.Handle{}, result.Err
	}
	return latest, nil
}

// Pull downloads the given remote backup with retries.
func (s *Scheduler) Pull(ctx context.Context, h service.Handle) ([]byte, error) {
	var data []byte

	result := common.WithRetry(ctx, func(attemptCtx context.Context) error {
		var err error
		data, err = s.remote.Get(attemptCtx, h)
		return err
	}, s.retry)

	if !result.Succeeded() {
		return nil, result.Err
	}
	return data, nil
}

func (s *Scheduler) lastSync(ctx context.Context) (time.Time, error) {
	value, err := s.store.GetSetting(ctx, lastSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}

	last, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad last sync timestamp %q: %w", value, err)
	}
	return last, nil
}

// BackupName builds a unique archive name stamped with the given time.
func BackupName(now time.Time) string {
	return fmt.Sprintf("goblin_backup_%s_%s.tgob",
		now.UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
}
