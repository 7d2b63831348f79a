package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/internal/channels"
	"github.com/davidortega/channelsync-backend/internal/health"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

type stubAdapter struct {
	channel enums.Channel
	caps    channels.CapabilitySet

	mu        sync.Mutex
	pushErr   error
	pushes    []channels.AvailabilityPush
	rates     []channels.RatePush
	cancelled []string
	calls     int
}

func (a *stubAdapter) Channel() enums.Channel { return a.channel }

func (a *stubAdapter) Capabilities() channels.CapabilitySet { return a.caps }

func (a *stubAdapter) PullReservations(context.Context, models.ChannelMapping) ([]channels.Reservation, error) {
	return nil, nil
}

func (a *stubAdapter) PushAvailability(_ context.Context, _ models.ChannelMapping, push channels.AvailabilityPush) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.pushErr != nil {
		return a.pushErr
	}
	a.pushes = append(a.pushes, push)
	return nil
}

func (a *stubAdapter) PushRate(_ context.Context, _ models.ChannelMapping, push channels.RatePush) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.pushErr != nil {
		return a.pushErr
	}
	a.rates = append(a.rates, push)
	return nil
}

func (a *stubAdapter) CancelReservation(_ context.Context, _ models.ChannelMapping, externalID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.pushErr != nil {
		return a.pushErr
	}
	a.cancelled = append(a.cancelled, externalID)
	return nil
}

func (a *stubAdapter) Health(context.Context) error { return nil }

func (a *stubAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func setupSchedulerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS channel_mappings (
  id TEXT PRIMARY KEY,
  room_type_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  ota_room_id TEXT NOT NULL,
  ota_property_id TEXT,
  ical_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS sync_dead_letters (
  id TEXT PRIMARY KEY,
  channel TEXT NOT NULL,
  room_type_id TEXT NOT NULL,
  date DATETIME NOT NULL,
  kind TEXT NOT NULL,
  target_version INTEGER NOT NULL,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  failed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(ddl).Error)
	return conn
}

type schedulerFixture struct {
	svc     *service
	adapter *stubAdapter
	monitor *health.Monitor
	letters DeadLetterRepository
	roomID  uuid.UUID
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSchedulerFixture(t *testing.T, cfg config.SyncConfig, caps ...channels.Capability) *schedulerFixture {
	t.Helper()

	conn := setupSchedulerTestDB(t)
	roomID := uuid.New()
	mapping := &models.ChannelMapping{
		ID:         uuid.New(),
		RoomTypeID: roomID,
		Channel:    enums.ChannelBookingCom,
		OTARoomID:  "bk-101",
		IsActive:   true,
	}
	require.NoError(t, conn.Create(mapping).Error)

	if len(caps) == 0 {
		caps = []channels.Capability{
			channels.CapPullReservations,
			channels.CapPushAvailability,
			channels.CapPushRate,
		}
	}
	adapter := &stubAdapter{
		channel: enums.ChannelBookingCom,
		caps:    channels.NewCapabilitySet(caps...),
	}
	registry := channels.NewRegistry()
	require.NoError(t, registry.Register(adapter))

	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	monitor := health.NewMonitor()
	letters := NewDeadLetterRepository(conn)

	svc, err := NewService(ServiceParams{
		Registry:    registry,
		Rooms:       rooms.NewRepository(conn),
		DeadLetters: letters,
		Monitor:     monitor,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config:      cfg,
		Now:         clock.Now,
	})
	require.NoError(t, err)

	return &schedulerFixture{
		svc:     svc.(*service),
		adapter: adapter,
		monitor: monitor,
		letters: letters,
		roomID:  roomID,
		clock:   clock,
	}
}

func availabilityTask(roomID uuid.UUID, date time.Time, available int, version int64) Task {
	return Task{
		Channel:       enums.ChannelBookingCom,
		RoomTypeID:    roomID,
		Date:          date,
		Kind:          enums.TaskKindAvailability,
		TargetVersion: version,
		Available:     available,
	}
}

func TestEnqueueCoalescesNewerVersion(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	ctx := context.Background()
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 5, 1)))
	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 4, 2)))
	assert.Equal(t, 1, f.svc.PendingCount(enums.ChannelBookingCom))

	f.svc.dispatchAll(ctx)

	require.Len(t, f.adapter.pushes, 1)
	assert.Equal(t, 4, f.adapter.pushes[0].Available)
	assert.Equal(t, int64(2), f.adapter.pushes[0].TargetVersion)
}

func TestEnqueueDropsOlderVersion(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	ctx := context.Background()
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 4, 7)))
	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 9, 3)))

	f.svc.dispatchAll(ctx)

	require.Len(t, f.adapter.pushes, 1)
	assert.Equal(t, int64(7), f.adapter.pushes[0].TargetVersion)
}

func TestEnqueueValidatesTask(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	ctx := context.Background()

	err := f.svc.Enqueue(ctx, Task{Channel: "voyager", Kind: enums.TaskKindAvailability})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = f.svc.Enqueue(ctx, Task{
		Channel:    enums.ChannelBookingCom,
		RoomTypeID: f.roomID,
		Date:       time.Now(),
		Kind:       enums.TaskKindCancellation,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDispatchSuccessClearsQueue(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	ctx := context.Background()
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 3, 1)))
	f.svc.dispatchAll(ctx)

	assert.Equal(t, 0, f.svc.PendingCount(enums.ChannelBookingCom))
	snapshot := f.monitor.Snapshot()
	for _, entry := range snapshot {
		if entry.Channel == enums.ChannelBookingCom {
			assert.Equal(t, 1.0, entry.SuccessRate)
			assert.Equal(t, enums.CircuitClosed, entry.CircuitState)
		}
	}
}

func TestStaleVersionDropsTask(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	f.adapter.pushErr = pkgerrors.New(pkgerrors.CodeStaleVersion, "version superseded")
	ctx := context.Background()
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 3, 1)))
	f.svc.dispatchAll(ctx)

	assert.Equal(t, 0, f.svc.PendingCount(enums.ChannelBookingCom))
	letters, err := f.letters.List(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestRejectedDeadLettersImmediately(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	f.adapter.pushErr = pkgerrors.New(pkgerrors.CodeChannelRejected, "room unknown to channel")
	ctx := context.Background()
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 3, 1)))
	f.svc.dispatchAll(ctx)

	assert.Equal(t, 0, f.svc.PendingCount(enums.ChannelBookingCom))
	letters, err := f.letters.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, enums.TaskKindAvailability, letters[0].Kind)
	require.NotNil(t, letters[0].LastError)
	assert.Contains(t, *letters[0].LastError, "room unknown")
}

func TestCapabilityGateDeadLetters(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{}, channels.CapPushAvailability)
	ctx := context.Background()
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, Task{
		Channel:       enums.ChannelBookingCom,
		RoomTypeID:    f.roomID,
		Date:          date,
		Kind:          enums.TaskKindRate,
		TargetVersion: 1,
		Rate:          decimal.NewFromInt(150),
		Currency:      "USD",
	}))
	f.svc.dispatchAll(ctx)

	// Adapter never called: the gate fires before the wire.
	assert.Equal(t, 0, f.adapter.callCount())
	letters, err := f.letters.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, enums.TaskKindRate, letters[0].Kind)
}

func TestRetriesBackOffThenDeadLetter(t *testing.T) {
	cfg := config.SyncConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffCap:  time.Minute,
	}
	f := newSchedulerFixture(t, cfg)
	f.adapter.pushErr = pkgerrors.New(pkgerrors.CodeChannelUnavailable, "connection refused")
	ctx := context.Background()
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 3, 1)))

	// Attempt 1 fails and requeues with backoff.
	f.svc.dispatchAll(ctx)
	assert.Equal(t, 1, f.adapter.callCount())
	assert.Equal(t, 1, f.svc.PendingCount(enums.ChannelBookingCom))

	// Not yet due: dispatch is a no-op.
	f.svc.dispatchAll(ctx)
	assert.Equal(t, 1, f.adapter.callCount())

	f.clock.Advance(2 * time.Second)
	f.svc.dispatchAll(ctx)
	assert.Equal(t, 2, f.adapter.callCount())

	f.clock.Advance(5 * time.Second)
	f.svc.dispatchAll(ctx)
	assert.Equal(t, 3, f.adapter.callCount())

	// Third failure exhausted the budget.
	assert.Equal(t, 0, f.svc.PendingCount(enums.ChannelBookingCom))
	letters, err := f.letters.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 3, letters[0].AttemptCount)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := config.SyncConfig{
		FailureThreshold: 5,
		CooldownWindow:   time.Minute,
		MaxAttempts:      100,
		BackoffBase:      time.Millisecond,
	}
	f := newSchedulerFixture(t, cfg)
	f.adapter.pushErr = pkgerrors.New(pkgerrors.CodeChannelUnavailable, "gateway timeout")
	ctx := context.Background()
	date := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, date, 3, 1)))
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Second)
		f.svc.dispatchAll(ctx)
	}
	assert.Equal(t, 5, f.adapter.callCount())

	// Open circuit: the queued task stays put and the adapter is spared.
	f.clock.Advance(time.Second)
	f.svc.dispatchAll(ctx)
	assert.Equal(t, 5, f.adapter.callCount())
	assert.Equal(t, 1, f.svc.PendingCount(enums.ChannelBookingCom))

	for _, entry := range f.monitor.Snapshot() {
		if entry.Channel == enums.ChannelBookingCom {
			assert.Equal(t, enums.CircuitOpen, entry.CircuitState)
		}
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	cfg := config.SyncConfig{
		FailureThreshold: 2,
		CooldownWindow:   time.Minute,
		MaxAttempts:      100,
		BackoffBase:      time.Millisecond,
		BatchSize:        10,
	}
	f := newSchedulerFixture(t, cfg)
	f.adapter.pushErr = pkgerrors.New(pkgerrors.CodeChannelUnavailable, "gateway timeout")
	ctx := context.Background()

	base := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(f.roomID, base.AddDate(0, 0, day), 3, 1)))
	}

	// Two failures trip the breaker.
	f.svc.dispatchAll(ctx)
	f.clock.Advance(time.Second)
	f.svc.dispatchAll(ctx)
	require.GreaterOrEqual(t, f.adapter.callCount(), 2)
	callsWhenOpen := f.adapter.callCount()

	// Cooldown elapses while the channel is still down: the cycle admits
	// exactly one probe even with a full batch queued.
	f.clock.Advance(2 * time.Minute)
	f.svc.dispatchAll(ctx)
	assert.Equal(t, callsWhenOpen+1, f.adapter.callCount())

	// The failed probe reopened the circuit.
	f.clock.Advance(time.Second)
	f.svc.dispatchAll(ctx)
	assert.Equal(t, callsWhenOpen+1, f.adapter.callCount())

	// Channel recovers; the probe succeeds and the queue drains.
	f.adapter.pushErr = nil
	f.clock.Advance(2 * time.Minute)
	f.svc.dispatchAll(ctx)
	f.clock.Advance(time.Second)
	f.svc.dispatchAll(ctx)
	assert.Equal(t, 0, f.svc.PendingCount(enums.ChannelBookingCom))
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	b := newBreaker(2, time.Minute, clock.Now)

	require.True(t, b.Allow())
	b.Failure()
	require.True(t, b.Allow())
	opened := b.Failure()
	assert.True(t, opened)
	assert.Equal(t, enums.CircuitOpen, b.State())
	assert.False(t, b.Allow())

	clock.Advance(2 * time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, enums.CircuitHalfOpen, b.State())
	assert.False(t, b.Allow())

	// Probe fails: straight back to open with a fresh cooldown.
	b.Failure()
	assert.Equal(t, enums.CircuitOpen, b.State())
	assert.False(t, b.Allow())

	clock.Advance(2 * time.Minute)
	assert.True(t, b.Allow())
	b.Success()
	assert.Equal(t, enums.CircuitClosed, b.State())
}

func TestMissingMappingDeadLetters(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	ctx := context.Background()

	// A task for a room with no mapping is parked for the operator.
	roomID := uuid.New()
	require.NoError(t, f.svc.Enqueue(ctx, availabilityTask(roomID, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), 3, 1)))
	f.svc.dispatchAll(ctx)

	assert.Equal(t, 0, f.adapter.callCount())
	letters, err := f.letters.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
}

func TestCancellationDispatch(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{})
	ctx := context.Background()

	require.NoError(t, f.svc.Enqueue(ctx, Task{
		Channel:       enums.ChannelBookingCom,
		RoomTypeID:    f.roomID,
		Date:          time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC),
		Kind:          enums.TaskKindCancellation,
		TargetVersion: 4,
		ExternalID:    "BK-778899",
	}))
	f.svc.dispatchAll(ctx)

	require.Len(t, f.adapter.cancelled, 1)
	assert.Equal(t, "BK-778899", f.adapter.cancelled[0])
}

func TestBackoffCapsAtConfiguredCeiling(t *testing.T) {
	f := newSchedulerFixture(t, config.SyncConfig{
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  4 * time.Second,
	})

	assert.Equal(t, 500*time.Millisecond, f.svc.backoff(1))
	assert.Equal(t, time.Second, f.svc.backoff(2))
	assert.Equal(t, 2*time.Second, f.svc.backoff(3))
	assert.Equal(t, 4*time.Second, f.svc.backoff(4))
	assert.Equal(t, 4*time.Second, f.svc.backoff(12))
}

func TestDeadLetterRepositoryListAndDelete(t *testing.T) {
	conn := setupSchedulerTestDB(t)
	repo := NewDeadLetterRepository(conn)
	ctx := context.Background()

	letter := &models.SyncDeadLetter{
		Channel:       enums.ChannelExpedia,
		RoomTypeID:    uuid.New(),
		Date:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Kind:          enums.TaskKindAvailability,
		TargetVersion: 9,
		AttemptCount:  8,
		FailedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, letter))

	expedia := enums.ChannelExpedia
	letters, err := repo.List(ctx, &expedia, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)

	agoda := enums.ChannelAgoda
	letters, err = repo.List(ctx, &agoda, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)

	deleted, err := repo.Delete(ctx, letter.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, letter.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
