package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/audit"
	"github.com/weiawesome/wes-io-live/room-service/internal/catalog"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/room-service/internal/position"
	"github.com/weiawesome/wes-io-live/room-service/internal/relay"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
)

// errNoChange aborts an UpdateFn without writing.
var errNoChange = errors.New("no change")

// Deps are the collaborators of the room service.
type Deps struct {
	Rooms       repository.RoomRepository
	Identity    Identity
	Catalog     Catalog
	Presence    Presence
	Limiter     RateLimiter
	Broadcaster relay.Broadcaster
	Events      kafka.Producer
}

// Options tune the room service.
type Options struct {
	// PauseWhenEmpty freezes a playing room when its last viewer leaves.
	PauseWhenEmpty bool
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// roomServiceImpl implements RoomService interface.
type roomServiceImpl struct {
	rooms       repository.RoomRepository
	identity    Identity
	catalog     Catalog
	presence    Presence
	limiter     RateLimiter
	broadcaster relay.Broadcaster
	events      kafka.Producer
	opts        Options
}

// NewRoomService creates a new room service.
func NewRoomService(deps Deps, opts Options) RoomService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Events == nil {
		deps.Events = kafka.NoopProducer{}
	}
	return &roomServiceImpl{
		rooms:       deps.Rooms,
		identity:    deps.Identity,
		catalog:     deps.Catalog,
		presence:    deps.Presence,
		limiter:     deps.Limiter,
		broadcaster: deps.Broadcaster,
		events:      deps.Events,
		opts:        opts,
	}
}

// CreateRoom creates a new room, live now or scheduled some minutes ahead.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.RoomResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError(MsgNameRequired)
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, validationError(MsgUsernameRequired)
	}

	startType := strings.TrimSpace(req.BroadcastStartTimeType)
	if startType == "" {
		startType = domain.StartNow
	}
	delayMinutes := 0
	if startType != domain.StartNow {
		minutes, err := strconv.Atoi(startType)
		if err != nil || minutes < 0 {
			return nil, validationError(MsgInvalidStartType)
		}
		delayMinutes = minutes
	}

	var movie *domain.Movie
	var movieID *string
	if req.MovieID != nil && strings.TrimSpace(*req.MovieID) != "" {
		id := strings.TrimSpace(*req.MovieID)
		m, err := s.catalog.GetMovie(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrMovieNotFound) {
				return nil, ErrMovieNotFound
			}
			return nil, fmt.Errorf("failed to look up movie: %w", err)
		}
		movie = m
		movieID = &id
	}

	ownerID, err := s.identity.ResolveOrCreate(ctx, username)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	nowMs := domain.UnixMs(now)
	room := &domain.Room{
		ID:                     uuid.New().String(),
		Name:                   name,
		CreatedBy:              ownerID,
		CreatedByName:          username,
		MovieID:                movieID,
		InviteCode:             newInviteCode(),
		PlaybackRate:           1.0,
		BroadcastStartTimeType: startType,
	}
	if startType == domain.StartNow {
		room.BroadcastStatus = domain.BroadcastLive
		room.PlaybackState = domain.PlaybackPlaying
		room.ActualStartTime = domain.Int64Ptr(nowMs)
	} else {
		room.BroadcastStatus = domain.BroadcastScheduled
		room.PlaybackState = domain.PlaybackStopped
		room.ScheduledStartTime = domain.Int64Ptr(nowMs + int64(delayMinutes)*int64(time.Minute/time.Millisecond))
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	audit.LogWithDetail(ctx, audit.ActionCreateRoom, ownerID, room.ID, startType, "room created")
	s.emit(ctx, kafka.EventRoomCreated, room, ownerID, 0, now)
	res := position.Calculate(room, now)
	s.publish(ctx, room.ID, stateMessage(room, res, now), true)

	resp := s.toResponse(room, res)
	resp.Movie = movie
	return &resp, nil
}

// GetRoom retrieves a room with its current position.
func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*domain.RoomResponse, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	resp := s.toResponse(room, position.Calculate(room, s.opts.Now()))
	resp.Movie = s.lookupMovie(ctx, room.MovieID)
	return &resp, nil
}

// ListRoomsByOwner lists the rooms a display name owns, newest first.
func (s *roomServiceImpl) ListRoomsByOwner(ctx context.Context, username string) ([]domain.RoomResponse, error) {
	ownerID, err := s.identity.Resolve(username)
	if err != nil {
		return nil, validationError(MsgUsernameRequired)
	}

	rooms, err := s.rooms.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	responses := make([]domain.RoomResponse, len(rooms))
	for i := range rooms {
		responses[i] = s.toResponse(&rooms[i], position.Calculate(&rooms[i], now))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range responses {
		i := i
		if responses[i].MovieID == nil {
			continue
		}
		g.Go(func() error {
			responses[i].Movie = s.lookupMovie(gctx, responses[i].MovieID)
			return nil
		})
	}
	_ = g.Wait()

	return responses, nil
}

// DeleteRoom deletes a room owned by username and disconnects its subscribers.
func (s *roomServiceImpl) DeleteRoom(ctx context.Context, roomID, username string) error {
	userID, err := s.identity.Resolve(username)
	if err != nil {
		return validationError(MsgUsernameRequired)
	}

	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(userID) {
		audit.LogWithDetail(ctx, audit.ActionDenied, userID, roomID, "delete", "room delete denied")
		return ErrNotRoomOwner
	}

	deleted, err := s.rooms.Delete(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if !deleted {
		return ErrRoomNotFound
	}

	now := s.opts.Now()
	s.presence.Forget(roomID)
	s.limiter.Forget(roomID)

	closed := &domain.RoomClosedMessage{Type: domain.MsgTypeClosed, RoomID: roomID, Timestamp: domain.UnixMs(now)}
	if err := s.broadcaster.CloseRoom(ctx, roomID, closed); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to close room fan-out")
	}

	audit.Log(ctx, audit.ActionDeleteRoom, userID, roomID, "room deleted")
	s.emit(ctx, kafka.EventRoomDeleted, room, userID, position.Calculate(room, now).PositionMs, now)
	return nil
}

// SetPlayback applies a host play or pause.
func (s *roomServiceImpl) SetPlayback(ctx context.Context, roomID, username, action string) (*domain.SyncResponse, error) {
	switch action {
	case domain.ActionPlay, domain.ActionPause:
	case domain.ActionSeek:
		return nil, validationError(domain.ErrSeekDisabled)
	default:
		return nil, validationError(MsgInvalidAction)
	}

	userID, err := s.identity.Resolve(username)
	if err != nil {
		return nil, validationError(MsgUsernameRequired)
	}

	now := s.opts.Now()
	nowMs := domain.UnixMs(now)

	room, err := s.rooms.UpdateFn(ctx, roomID, func(r *domain.Room) error {
		if !r.IsOwner(userID) {
			return ErrNotRoomOwner
		}
		if r.BroadcastStatus != domain.BroadcastLive {
			return validationError(MsgRoomNotLive)
		}

		pos := position.Calculate(r, now).PositionMs
		r.CurrentTimeMs = pos
		if action == domain.ActionPause {
			r.PlaybackState = domain.PlaybackPaused
			return nil
		}
		if r.PlaybackState == domain.PlaybackPaused || r.ActualStartTime == nil {
			r.ActualStartTime = domain.Int64Ptr(nowMs - pos)
		}
		r.PlaybackState = domain.PlaybackPlaying
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotRoomOwner) {
			audit.LogWithDetail(ctx, audit.ActionDenied, userID, roomID, action, "playback control denied")
		}
		return nil, s.translate(err)
	}

	res := position.Calculate(room, now)

	auditAction := audit.ActionPlay
	if action == domain.ActionPause {
		auditAction = audit.ActionPause
	}
	audit.LogWithDetail(ctx, auditAction, userID, roomID, strconv.FormatInt(res.PositionMs, 10), "playback changed")

	s.publish(ctx, roomID, &domain.ControlMessage{
		Type:       domain.MsgTypeControl,
		RoomID:     roomID,
		Action:     action,
		Username:   username,
		PositionMs: res.PositionMs,
		Timestamp:  nowMs,
	}, false)
	s.publish(ctx, roomID, stateMessage(room, res, now), true)
	s.emit(ctx, kafka.EventPlaybackChanged, room, userID, res.PositionMs, now)

	return syncResponse(room, res, now), nil
}

// Sync returns the authoritative position from the freshest stored row.
func (s *roomServiceImpl) Sync(ctx context.Context, roomID string) (*domain.SyncResponse, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	return syncResponse(room, position.Calculate(room, now), now), nil
}

// ServerTime returns the room's clock view.
func (s *roomServiceImpl) ServerTime(ctx context.Context, roomID string) (*domain.ServerTimeResponse, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	return &domain.ServerTimeResponse{
		ServerTime:         position.Calculate(room, now).PositionMs,
		CurrentTime:        domain.UnixMs(now),
		BroadcastStatus:    room.BroadcastStatus,
		ScheduledStartTime: room.ScheduledStartTime,
		ActualStartTime:    room.ActualStartTime,
	}, nil
}

// Heartbeat records the host's reported position. At most one heartbeat per
// room is admitted per limiter interval; the rest are dropped.
func (s *roomServiceImpl) Heartbeat(ctx context.Context, roomID, username string, positionMs int64) (*domain.SyncResponse, error) {
	userID, err := s.identity.Resolve(username)
	if err != nil {
		return nil, validationError(MsgUsernameRequired)
	}

	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsOwner(userID) {
		return nil, ErrNotRoomOwner
	}
	if room.BroadcastStatus != domain.BroadcastLive {
		return nil, validationError(MsgRoomNotLive)
	}

	now := s.opts.Now()
	if !s.limiter.Allow(roomID, now) {
		return nil, ErrRateLimited
	}

	if positionMs < 0 {
		positionMs = 0
	}
	nowMs := domain.UnixMs(now)

	updated, err := s.rooms.UpdateFn(ctx, roomID, func(r *domain.Room) error {
		if !r.IsOwner(userID) {
			return ErrNotRoomOwner
		}
		if r.BroadcastStatus != domain.BroadcastLive {
			return validationError(MsgRoomNotLive)
		}
		// Leaving Paused or Stopped resumes from the reported position.
		if r.PlaybackState != domain.PlaybackPlaying || r.ActualStartTime == nil {
			r.ActualStartTime = domain.Int64Ptr(nowMs - positionMs)
		}
		r.CurrentTimeMs = positionMs
		r.PlaybackState = domain.PlaybackPlaying
		return nil
	})
	if err != nil {
		err = s.translate(err)
		if errors.Is(err, ErrNotRoomOwner) || errors.Is(err, ErrValidation) || errors.Is(err, ErrRoomNotFound) {
			return nil, err
		}
		// Heartbeats are advisory; the next one or the next reconcile tick retries.
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to persist heartbeat")
		return syncResponse(room, position.Calculate(room, now), now), nil
	}

	return syncResponse(updated, position.Calculate(updated, now), now), nil
}

// Join adds a viewer. A duplicate join changes nothing and is not fanned out.
func (s *roomServiceImpl) Join(ctx context.Context, roomID, username string) (*domain.JoinResult, error) {
	userID, err := s.identity.Resolve(username)
	if err != nil {
		return nil, validationError(MsgUsernameRequired)
	}
	if _, err := s.getRoom(ctx, roomID); err != nil {
		return nil, err
	}

	added := s.presence.Join(roomID, userID)
	result := &domain.JoinResult{
		RoomID:    roomID,
		UserID:    userID,
		Username:  strings.TrimSpace(username),
		Duplicate: !added,
		Count:     s.presence.Count(roomID),
	}

	if added {
		s.publish(ctx, roomID, &domain.PresenceMessage{
			Type:        domain.MsgTypeUserJoin,
			RoomID:      roomID,
			UserID:      userID,
			Username:    result.Username,
			ViewerCount: result.Count,
			Timestamp:   domain.UnixMs(s.opts.Now()),
		}, false)
	}
	return result, nil
}

// Leave removes a viewer. Leaving a room one is not in is a no-op.
func (s *roomServiceImpl) Leave(ctx context.Context, roomID, username string) error {
	userID, err := s.identity.Resolve(username)
	if err != nil {
		return validationError(MsgUsernameRequired)
	}

	if !s.presence.Leave(ctx, roomID, userID) {
		return nil
	}

	s.publish(ctx, roomID, &domain.PresenceMessage{
		Type:        domain.MsgTypeUserLeave,
		RoomID:      roomID,
		UserID:      userID,
		Username:    strings.TrimSpace(username),
		ViewerCount: s.presence.Count(roomID),
		Timestamp:   domain.UnixMs(s.opts.Now()),
	}, false)
	return nil
}

// Chat stamps and fans out an opaque chat payload.
func (s *roomServiceImpl) Chat(ctx context.Context, roomID string, payload map[string]interface{}) (map[string]interface{}, error) {
	if len(payload) == 0 {
		return nil, validationError(MsgChatPayloadMissing)
	}
	if _, err := s.getRoom(ctx, roomID); err != nil {
		return nil, err
	}

	msg := domain.ChatMessage(roomID, payload, domain.UnixMs(s.opts.Now()))
	s.publish(ctx, roomID, msg, false)
	return msg, nil
}

// Control relays a control action. Seeks never touch the room.
func (s *roomServiceImpl) Control(ctx context.Context, roomID, username, action string) (*domain.ControlMessage, error) {
	if action != domain.ActionSeek {
		state, err := s.SetPlayback(ctx, roomID, username, action)
		if err != nil {
			return nil, err
		}
		return &domain.ControlMessage{
			Type:       domain.MsgTypeControl,
			RoomID:     roomID,
			Action:     action,
			Username:   username,
			PositionMs: state.PositionMs,
			Timestamp:  state.ServerTime,
		}, nil
	}

	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	msg := &domain.ControlMessage{
		Type:       domain.MsgTypeControl,
		RoomID:     roomID,
		Action:     action,
		Username:   username,
		PositionMs: position.Calculate(room, now).PositionMs,
		Error:      domain.ErrSeekDisabled,
		Timestamp:  domain.UnixMs(now),
	}
	s.publish(ctx, roomID, msg, false)
	return msg, nil
}

// SaveOnEmpty freezes the room's computed position when its last viewer leaves.
// Store errors are logged and dropped.
func (s *roomServiceImpl) SaveOnEmpty(ctx context.Context, roomID string) {
	l := log.Ctx(ctx)
	now := s.opts.Now()

	room, err := s.rooms.UpdateFn(ctx, roomID, func(r *domain.Room) error {
		if r.BroadcastStatus != domain.BroadcastLive {
			return errNoChange
		}
		res := position.Calculate(r, now)
		r.CurrentTimeMs = res.PositionMs
		r.PlaybackState = res.State
		if s.opts.PauseWhenEmpty && res.State == domain.PlaybackPlaying {
			r.PlaybackState = domain.PlaybackPaused
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errNoChange) && !errors.Is(err, repository.ErrRoomNotFound) {
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to save position on empty room")
		}
		return
	}

	res := position.Calculate(room, now)
	l.Info().
		Str(log.FieldRoomID, roomID).
		Int64(log.FieldPositionMs, res.PositionMs).
		Str(log.FieldPlaybackState, room.PlaybackState.String()).
		Msg("room empty, position saved")
	s.publish(ctx, roomID, stateMessage(room, res, now), true)
}

func (s *roomServiceImpl) getRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, s.translate(err)
	}
	return room, nil
}

func (s *roomServiceImpl) translate(err error) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		return ErrRoomNotFound
	}
	return err
}

func (s *roomServiceImpl) lookupMovie(ctx context.Context, movieID *string) *domain.Movie {
	if movieID == nil || s.catalog == nil {
		return nil
	}
	movie, err := s.catalog.GetMovie(ctx, *movieID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("movie_id", *movieID).Msg("failed to enrich room with movie")
		return nil
	}
	return movie
}

func (s *roomServiceImpl) toResponse(room *domain.Room, res position.Result) domain.RoomResponse {
	resp := room.ToResponse()
	resp.CurrentPositionMs = res.PositionMs
	resp.ViewerCount = s.presence.Count(room.ID)
	return resp
}

// publish fans a message out. Failures are logged; the mutation stands.
func (s *roomServiceImpl) publish(ctx context.Context, roomID string, msg interface{}, snapshot bool) {
	if err := s.broadcaster.Publish(ctx, roomID, msg, snapshot); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to fan out room message")
	}
}

func (s *roomServiceImpl) emit(ctx context.Context, eventType string, room *domain.Room, userID string, positionMs int64, now time.Time) {
	if err := s.events.ProduceRoomEvent(ctx, kafka.NewRoomEvent(eventType, room, userID, positionMs, now)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, room.ID).Str("event_type", eventType).Msg("failed to produce room event")
	}
}

func stateMessage(room *domain.Room, res position.Result, now time.Time) *domain.StateMessage {
	return &domain.StateMessage{
		Type:            domain.MsgTypeState,
		RoomID:          room.ID,
		BroadcastStatus: room.BroadcastStatus,
		PlaybackState:   res.State,
		PlaybackRate:    room.PlaybackRate,
		PositionMs:      res.PositionMs,
		ActualStartTime: room.ActualStartTime,
		MovieID:         room.MovieID,
		Timestamp:       domain.UnixMs(now),
	}
}

// StateMessage builds the state snapshot of room at now.
func StateMessage(room *domain.Room, now time.Time) *domain.StateMessage {
	return stateMessage(room, position.Calculate(room, now), now)
}

func syncResponse(room *domain.Room, res position.Result, now time.Time) *domain.SyncResponse {
	return &domain.SyncResponse{
		RoomID:          room.ID,
		PositionMs:      res.PositionMs,
		PlaybackState:   res.State,
		PlaybackRate:    room.PlaybackRate,
		BroadcastStatus: room.BroadcastStatus,
		ServerTime:      domain.UnixMs(now),
	}
}

// newInviteCode returns eight upper-case hex characters.
func newInviteCode() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
