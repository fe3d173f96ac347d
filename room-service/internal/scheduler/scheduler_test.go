package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/pkg/database"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/identity"
	"github.com/weiawesome/wes-io-live/room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/room-service/internal/position"
	"github.com/weiawesome/wes-io-live/room-service/internal/presence"
	"github.com/weiawesome/wes-io-live/room-service/internal/ratelimit"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
	"github.com/weiawesome/wes-io-live/room-service/internal/service"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) ProduceRoomEvent(ctx context.Context, event *kafka.RoomEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockProducer) Close() error {
	return m.Called().Error(0)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	states []*domain.StateMessage
}

func (b *recordingBroadcaster) Publish(ctx context.Context, roomID string, msg interface{}, snapshot bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := msg.(*domain.StateMessage); ok && snapshot {
		b.states = append(b.states, st)
	}
	return nil
}

func (b *recordingBroadcaster) CloseRoom(ctx context.Context, roomID string, msg interface{}) error {
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.states)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var base = time.UnixMilli(1_700_000_000_000)

func newRepo(t *testing.T) *repository.GormRoomRepository {
	t.Helper()
	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.RoomModel{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return repository.NewGormRoomRepository(db)
}

func scheduledRoom(t *testing.T, repo repository.RoomRepository, startsAt time.Time) *domain.Room {
	t.Helper()
	room := &domain.Room{
		Name:                   "premiere",
		CreatedBy:              "owner-1",
		InviteCode:             "SCHED" + startsAt.Format("150405.000"),
		PlaybackRate:           1.0,
		BroadcastStatus:        domain.BroadcastScheduled,
		PlaybackState:          domain.PlaybackStopped,
		BroadcastStartTimeType: "10",
		ScheduledStartTime:     domain.Int64Ptr(startsAt.UnixMilli()),
	}
	require.NoError(t, repo.Create(context.Background(), room))
	return room
}

func liveRoom(t *testing.T, repo repository.RoomRepository, startedAt time.Time, code string) *domain.Room {
	t.Helper()
	room := &domain.Room{
		Name:                   "stream",
		CreatedBy:              "owner-1",
		InviteCode:             code,
		PlaybackRate:           1.0,
		BroadcastStatus:        domain.BroadcastLive,
		PlaybackState:          domain.PlaybackPlaying,
		BroadcastStartTimeType: domain.StartNow,
		ActualStartTime:        domain.Int64Ptr(startedAt.UnixMilli()),
	}
	require.NoError(t, repo.Create(context.Background(), room))
	return room
}

func TestPromoteDue_Idempotent(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	clk := &clock{now: base}
	bc := &recordingBroadcaster{}
	producer := new(mockProducer)
	producer.On("ProduceRoomEvent", mock.Anything, mock.MatchedBy(func(e *kafka.RoomEvent) bool {
		return e.Type == kafka.EventBroadcastLive
	})).Return(nil).Once()

	s := New(repo, bc, producer, config.SchedulerConfig{}).WithClock(clk.Now)

	due := scheduledRoom(t, repo, base.Add(10*time.Minute))
	later := scheduledRoom(t, repo, base.Add(time.Hour))

	assert.Equal(t, 0, s.PromoteDue(ctx))

	clk.Advance(10 * time.Minute)
	assert.Equal(t, 1, s.PromoteDue(ctx))
	assert.Equal(t, 0, s.PromoteDue(ctx))

	got, err := repo.GetByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastLive, got.BroadcastStatus)
	assert.Equal(t, domain.PlaybackPlaying, got.PlaybackState)
	require.NotNil(t, got.ActualStartTime)
	assert.Equal(t, clk.Now().UnixMilli(), *got.ActualStartTime)
	assert.Equal(t, int64(0), got.CurrentTimeMs)
	assert.Equal(t, int64(0), got.ServerManagedTime)

	untouched, err := repo.GetByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastScheduled, untouched.BroadcastStatus)

	assert.Equal(t, 1, bc.count())
	producer.AssertExpectations(t)

	clk.Advance(15 * time.Second)
	assert.Equal(t, int64(15_000), position.Calculate(got, clk.Now()).PositionMs)
}

func TestPromoteDue_ZeroDelayRoomGoesLiveOnFirstTick(t *testing.T) {
	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.RoomModel{}, &domain.UserModel{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	ctx := context.Background()
	clk := &clock{now: base}
	rooms := repository.NewGormRoomRepository(db)
	bc := &recordingBroadcaster{}
	svc := service.NewRoomService(service.Deps{
		Rooms:       rooms,
		Identity:    identity.NewService(repository.NewGormUserRepository(db)),
		Presence:    presence.NewTracker(nil),
		Limiter:     ratelimit.NewRoomLimiter(time.Second),
		Broadcaster: bc,
	}, service.Options{Now: clk.Now})

	room, err := svc.CreateRoom(ctx, &domain.CreateRoomRequest{
		Name:                   "premiere",
		Username:               "alice",
		BroadcastStartTimeType: "0",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastScheduled, room.BroadcastStatus)
	require.NotNil(t, room.ScheduledStartTime)
	assert.Equal(t, base.UnixMilli(), *room.ScheduledStartTime)

	before, err := svc.Sync(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.PositionMs)
	assert.Equal(t, domain.PlaybackStopped, before.PlaybackState)

	s := New(rooms, bc, nil, config.SchedulerConfig{}).WithClock(clk.Now)
	assert.Equal(t, 1, s.PromoteDue(ctx))

	clk.Advance(7 * time.Second)
	state, err := svc.Sync(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastLive, state.BroadcastStatus)
	assert.Equal(t, domain.PlaybackPlaying, state.PlaybackState)
	assert.Equal(t, int64(7_000), state.PositionMs)
}

func TestReconcile_PersistsPosition(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	clk := &clock{now: base}
	s := New(repo, nil, nil, config.SchedulerConfig{}).WithClock(clk.Now)

	playing := liveRoom(t, repo, base, "PLAY0001")
	paused := liveRoom(t, repo, base, "PAUS0001")
	_, err := repo.UpdateFn(ctx, paused.ID, func(r *domain.Room) error {
		r.PlaybackState = domain.PlaybackPaused
		r.CurrentTimeMs = 2_500
		return nil
	})
	require.NoError(t, err)
	scheduledRoom(t, repo, base.Add(time.Hour))

	clk.Advance(20 * time.Second)
	assert.Equal(t, 2, s.Reconcile(ctx))

	got, err := repo.GetByID(ctx, playing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), got.ServerManagedTime)
	assert.Equal(t, int64(20_000), got.CurrentTimeMs)
	assert.Equal(t, int64(20_000), position.Calculate(got, clk.Now()).PositionMs)

	got, err = repo.GetByID(ctx, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500), got.ServerManagedTime)
	assert.Equal(t, domain.PlaybackPaused, got.PlaybackState)
}

func TestCleanup_EndsStaleRooms(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	clk := &clock{now: base}
	bc := &recordingBroadcaster{}
	producer := new(mockProducer)
	producer.On("ProduceRoomEvent", mock.Anything, mock.MatchedBy(func(e *kafka.RoomEvent) bool {
		return e.Type == kafka.EventBroadcastEnded
	})).Return(nil).Once()

	s := New(repo, bc, producer, config.SchedulerConfig{Retention: 24 * time.Hour}).WithClock(clk.Now)

	stale := liveRoom(t, repo, base.Add(-25*time.Hour), "STALE001")
	fresh := liveRoom(t, repo, base.Add(-time.Hour), "FRESH001")

	assert.Equal(t, 1, s.Cleanup(ctx))
	assert.Equal(t, 0, s.Cleanup(ctx))

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastEnded, got.BroadcastStatus)
	assert.Equal(t, domain.PlaybackStopped, got.PlaybackState)
	assert.Equal(t, (25 * time.Hour).Milliseconds(), got.ServerManagedTime)

	clk.Advance(time.Hour)
	res := position.Calculate(got, clk.Now())
	assert.Equal(t, (25 * time.Hour).Milliseconds(), res.PositionMs)
	assert.Equal(t, domain.PlaybackStopped, res.State)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastLive, got.BroadcastStatus)

	require.Equal(t, 1, bc.count())
	assert.Equal(t, domain.BroadcastEnded, bc.states[0].BroadcastStatus)
	producer.AssertExpectations(t)
}

func TestSchedulerLoop(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	room := scheduledRoom(t, repo, time.Now().Add(-time.Second))

	s := New(repo, nil, kafka.NoopProducer{}, config.SchedulerConfig{
		PromotionInterval: 10 * time.Millisecond,
		ReconcileInterval: 10 * time.Millisecond,
		CleanupInterval:   time.Hour,
	})
	s.Start(ctx)

	require.Eventually(t, func() bool {
		got, err := repo.GetByID(ctx, room.ID)
		return err == nil && got.BroadcastStatus == domain.BroadcastLive
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
