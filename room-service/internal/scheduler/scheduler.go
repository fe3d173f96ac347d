package scheduler

import (
	"context"
	"errors"
	"time"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/room-service/internal/position"
	"github.com/weiawesome/wes-io-live/room-service/internal/relay"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
	"github.com/weiawesome/wes-io-live/room-service/internal/service"
)

const (
	taskPromote   = "promote"
	taskReconcile = "reconcile"
	taskCleanup   = "cleanup"
)

// errSkip aborts an update whose row no longer qualifies.
var errSkip = errors.New("room no longer qualifies")

// Scheduler promotes scheduled rooms, persists live positions and ends stale
// broadcasts.
type Scheduler struct {
	rooms       repository.RoomRepository
	broadcaster relay.Broadcaster
	events      kafka.Producer
	cfg         config.SchedulerConfig
	now         func() time.Time
	quit        chan struct{}
	doneCh      chan struct{}
}

// New creates a new Scheduler.
func New(rooms repository.RoomRepository, broadcaster relay.Broadcaster, events kafka.Producer, cfg config.SchedulerConfig) *Scheduler {
	if events == nil {
		events = kafka.NoopProducer{}
	}
	return &Scheduler{
		rooms:       rooms,
		broadcaster: broadcaster,
		events:      events,
		cfg:         cfg,
		now:         time.Now,
		quit:        make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// WithClock replaces time.Now.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start launches the scheduler in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the scheduler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (s *Scheduler) Stop() {
	close(s.quit)
}

// Done returns a channel that is closed when the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	promote := time.NewTicker(orDefault(s.cfg.PromotionInterval, 5*time.Second))
	defer promote.Stop()
	reconcile := time.NewTicker(orDefault(s.cfg.ReconcileInterval, 5*time.Second))
	defer reconcile.Stop()
	cleanup := time.NewTicker(orDefault(s.cfg.CleanupInterval, time.Hour))
	defer cleanup.Stop()

	s.PromoteDue(ctx)

	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-promote.C:
			s.PromoteDue(ctx)
		case <-reconcile.C:
			s.Reconcile(ctx)
		case <-cleanup.C:
			s.Cleanup(ctx)
		}
	}
}

// PromoteDue turns every scheduled room whose start time has passed into a
// live, playing room starting at zero. It returns the number promoted.
func (s *Scheduler) PromoteDue(ctx context.Context) int {
	l := pkglog.L().With().Str(pkglog.FieldTask, taskPromote).Logger()
	now := s.now()

	rooms, err := s.rooms.ListByStatus(ctx, domain.BroadcastScheduled)
	if err != nil {
		l.Error().Err(err).Msg("scheduler: failed to list scheduled rooms")
		return 0
	}

	promoted := 0
	for i := range rooms {
		if !position.PromotionDue(&rooms[i], now) {
			continue
		}
		room, err := s.rooms.UpdateFn(ctx, rooms[i].ID, func(r *domain.Room) error {
			if !position.PromotionDue(r, now) {
				return errSkip
			}
			r.BroadcastStatus = domain.BroadcastLive
			r.PlaybackState = domain.PlaybackPlaying
			r.ActualStartTime = domain.Int64Ptr(domain.UnixMs(now))
			r.CurrentTimeMs = 0
			r.ServerManagedTime = 0
			return nil
		})
		if err != nil {
			if !skipped(err) {
				l.Error().Err(err).Str(pkglog.FieldRoomID, rooms[i].ID).Msg("scheduler: failed to promote room")
			}
			continue
		}

		promoted++
		l.Info().Str(pkglog.FieldRoomID, room.ID).Msg("scheduler: room is live")
		s.announce(ctx, room, now)
		s.emit(ctx, kafka.EventBroadcastLive, room, 0, now)
	}
	return promoted
}

// Reconcile persists the computed position of every live room into
// server_managed_time and current_time_ms. It returns the number of rooms written.
func (s *Scheduler) Reconcile(ctx context.Context) int {
	l := pkglog.L().With().Str(pkglog.FieldTask, taskReconcile).Logger()
	now := s.now()

	rooms, err := s.rooms.ListByStatus(ctx, domain.BroadcastLive)
	if err != nil {
		l.Error().Err(err).Msg("scheduler: failed to list live rooms")
		return 0
	}

	written := 0
	for i := range rooms {
		_, err := s.rooms.UpdateFn(ctx, rooms[i].ID, func(r *domain.Room) error {
			if r.BroadcastStatus != domain.BroadcastLive {
				return errSkip
			}
			pos := position.Calculate(r, now).PositionMs
			r.ServerManagedTime = pos
			r.CurrentTimeMs = pos
			return nil
		})
		if err != nil {
			if !skipped(err) {
				l.Warn().Err(err).Str(pkglog.FieldRoomID, rooms[i].ID).Msg("scheduler: failed to reconcile room")
			}
			continue
		}
		written++
	}

	if written > 0 {
		l.Debug().Int("count", written).Msg("scheduler: reconciliation complete")
	}
	return written
}

// Cleanup ends live rooms that started longer than the retention ago. The
// position at the moment of ending is frozen. It returns the number ended.
func (s *Scheduler) Cleanup(ctx context.Context) int {
	l := pkglog.L().With().Str(pkglog.FieldTask, taskCleanup).Logger()
	now := s.now()
	retention := orDefault(s.cfg.Retention, 24*time.Hour)

	rooms, err := s.rooms.ListByStatus(ctx, domain.BroadcastLive)
	if err != nil {
		l.Error().Err(err).Msg("scheduler: failed to list live rooms")
		return 0
	}

	ended := 0
	for i := range rooms {
		if !position.CleanupDue(&rooms[i], now, retention) {
			continue
		}
		var finalPos int64
		room, err := s.rooms.UpdateFn(ctx, rooms[i].ID, func(r *domain.Room) error {
			if !position.CleanupDue(r, now, retention) {
				return errSkip
			}
			finalPos = position.Calculate(r, now).PositionMs
			r.ServerManagedTime = finalPos
			r.CurrentTimeMs = finalPos
			r.BroadcastStatus = domain.BroadcastEnded
			r.PlaybackState = domain.PlaybackStopped
			return nil
		})
		if err != nil {
			if !skipped(err) {
				l.Error().Err(err).Str(pkglog.FieldRoomID, rooms[i].ID).Msg("scheduler: failed to end room")
			}
			continue
		}

		ended++
		l.Info().
			Str(pkglog.FieldRoomID, room.ID).
			Int64(pkglog.FieldPositionMs, finalPos).
			Msg("scheduler: broadcast ended")
		s.announce(ctx, room, now)
		s.emit(ctx, kafka.EventBroadcastEnded, room, finalPos, now)
	}
	return ended
}

func (s *Scheduler) announce(ctx context.Context, room *domain.Room, now time.Time) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, room.ID, service.StateMessage(room, now), true); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str(pkglog.FieldRoomID, room.ID).Msg("scheduler: failed to fan out state")
	}
}

func (s *Scheduler) emit(ctx context.Context, eventType string, room *domain.Room, positionMs int64, now time.Time) {
	if err := s.events.ProduceRoomEvent(ctx, kafka.NewRoomEvent(eventType, room, "", positionMs, now)); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str(pkglog.FieldRoomID, room.ID).Str("event_type", eventType).Msg("scheduler: failed to produce room event")
	}
}

// skipped reports whether an update was abandoned because the row changed
// underneath the scan.
func skipped(err error) bool {
	return errors.Is(err, errSkip) || errors.Is(err, repository.ErrRoomNotFound)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
