package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/model"
	"github.com/InViSiB0B/TreasureGoblin/internal/remote"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/snapshot"
	"github.com/InViSiB0B/TreasureGoblin/internal/storage"
)

const testPassphrase = "test-passphrase"

func fastRetry() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		AttemptTimeout: time.Second,
	}
}

func createTestScheduler(t *testing.T, frequency Frequency) (*Scheduler, service.Storage, *remote.MockStore) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	mock := remote.NewMockStore()
	sched := New(store, mock, testPassphrase, frequency, fastRetry())
	return sched, store, mock
}

func setLastSync(t *testing.T, store service.Storage, at time.Time) {
	t.Helper()
	require.NoError(t, store.SetSetting(context.Background(),
		lastSyncKey, at.UTC().Format(time.RFC3339)))
}

func TestCheck_WeeklyDue(t *testing.T) {
	sched, store, mock := createTestScheduler(t, FrequencyWeekly)
	ctx := context.Background()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }
	setLastSync(t, store, now.Add(-8*24*time.Hour))

	sched.Check(ctx, EventTick)

	assert.Equal(t, 1, mock.PutCallCount)
	assert.Equal(t, StateIdle, sched.State())

	// The sync time was advanced, so an immediate re-check is not due.
	sched.Check(ctx, EventTick)
	assert.Equal(t, 1, mock.PutCallCount)
}

func TestCheck_WeeklyNotDue(t *testing.T) {
	sched, store, mock := createTestScheduler(t, FrequencyWeekly)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }
	setLastSync(t, store, now.Add(-24*time.Hour))

	sched.Check(context.Background(), EventTick)

	assert.Equal(t, 0, mock.PutCallCount)
	assert.Equal(t, StateIdle, sched.State())
}

func TestCheck_NeverSyncedIsDue(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyDaily)

	sched.Check(context.Background(), EventStart)

	assert.Equal(t, 1, mock.PutCallCount)
}

func TestCheck_ManualFrequency(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyManual)
	ctx := context.Background()

	// No automatic trigger ever fires.
	for _, ev := range []Event{EventStart, EventTick, EventClose} {
		sched.Check(ctx, ev)
	}
	assert.Equal(t, 0, mock.PutCallCount)

	// An explicit request always does.
	sched.Check(ctx, EventManual)
	assert.Equal(t, 1, mock.PutCallCount)
}

func TestCheck_OnCloseFrequency(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyOnClose)
	ctx := context.Background()

	sched.Check(ctx, EventStart)
	sched.Check(ctx, EventTick)
	assert.Equal(t, 0, mock.PutCallCount)

	sched.Check(ctx, EventClose)
	assert.Equal(t, 1, mock.PutCallCount)
}

func TestRun_StartCheckSyncs(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyDaily)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx, time.Hour) }()

	// Never synced, so the start event alone is already due.
	require.Eventually(t, func() bool { return mock.PutCalls() == 1 },
		2*time.Second, 5*time.Millisecond)

	// The sync time was just recorded, so closing does not sync again.
	sched.Signal(EventClose)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the close event")
	}
	assert.Equal(t, 1, mock.PutCalls())
}

func TestRun_CancellationDeliversCloseCheck(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyOnClose)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx, time.Hour) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	// An on_close schedule gets exactly one final sync on the way out.
	assert.Equal(t, 1, mock.PutCalls())
	assert.Equal(t, StateIdle, sched.State())
}

func TestSyncNow_UploadsDecodableArchive(t *testing.T) {
	sched, store, mock := createTestScheduler(t, FrequencyManual)
	ctx := context.Background()

	grocery, err := store.GetCategoryByKey(ctx, "Grocery", model.KindExpense)
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, &model.Transaction{
		Date:       time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount:     1250,
		CategoryID: grocery.ID,
	})
	require.NoError(t, err)

	require.NoError(t, sched.SyncNow(ctx))

	handles, err := mock.ListHandles(ctx)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.True(t, strings.HasPrefix(handles[0].Name, "goblin_backup_"))
	assert.True(t, strings.HasSuffix(handles[0].Name, ".tgob"))

	data, err := mock.Get(ctx, handles[0])
	require.NoError(t, err)
	snap, err := snapshot.DecodeWithPassphrase(data, testPassphrase)
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 1)

	last, err := store.GetSetting(ctx, lastSyncKey)
	require.NoError(t, err)
	assert.NotEmpty(t, last)
}

func TestSyncNow_TransientFailureRetries(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyManual)

	mock.FailPutsThenSucceed(1, common.Transient(errors.New("drive hiccup")))

	require.NoError(t, sched.SyncNow(context.Background()))
	assert.Equal(t, StateIdle, sched.State())
}

func TestSyncNow_FailedStateIsReenterable(t *testing.T) {
	sched, store, mock := createTestScheduler(t, FrequencyManual)
	ctx := context.Background()

	mock.SetPutError(common.Permanent(errors.New("quota exhausted")))
	err := sched.SyncNow(ctx)
	require.Error(t, err)
	assert.Equal(t, StateFailed, sched.State())

	// Failure must not record a sync time.
	last, err := store.GetSetting(ctx, lastSyncKey)
	require.NoError(t, err)
	assert.Empty(t, last)

	// Once the remote recovers, the same scheduler syncs again.
	mock.Reset()
	require.NoError(t, sched.SyncNow(ctx))
	assert.Equal(t, StateIdle, sched.State())
}

func TestLatestBackupAndPull(t *testing.T) {
	sched, _, mock := createTestScheduler(t, FrequencyManual)
	ctx := context.Background()

	_, err := sched.LatestBackup(ctx)
	require.Error(t, err, "no backups yet")

	require.NoError(t, sched.SyncNow(ctx))
	require.NoError(t, sched.SyncNow(ctx))

	latest, err := sched.LatestBackup(ctx)
	require.NoError(t, err)

	handles, err := mock.ListHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, handles[0], latest, "latest must be the newest handle")

	data, err := sched.Pull(ctx, latest)
	require.NoError(t, err)
	_, err = snapshot.DecodeWithPassphrase(data, testPassphrase)
	require.NoError(t, err)
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"manual", "on_close", "daily", "weekly", "monthly"} {
		freq, err := ParseFrequency(valid)
		require.NoError(t, err)
		assert.Equal(t, Frequency(valid), freq)
	}

	_, err := ParseFrequency("hourly")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestFrequency_Interval(t *testing.T) {
	tests := []struct {
		frequency Frequency
		want      time.Duration
		periodic  bool
	}{
		{FrequencyDaily, 24 * time.Hour, true},
		{FrequencyWeekly, 7 * 24 * time.Hour, true},
		{FrequencyMonthly, 30 * 24 * time.Hour, true},
		{FrequencyManual, 0, false},
		{FrequencyOnClose, 0, false},
	}

	for _, tt := range tests {
		interval, ok := tt.frequency.Interval()
		assert.Equal(t, tt.periodic, ok, "%s", tt.frequency)
		assert.Equal(t, tt.want, interval, "%s", tt.frequency)
	}
}
