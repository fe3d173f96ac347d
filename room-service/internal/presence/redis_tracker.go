package presence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
)

// leaveScript removes a member and returns the remaining cardinality, or -1
// when the member was not present.
var leaveScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then
	return -1
end
return redis.call('SCARD', KEYS[1])
`)

const redisOpTimeout = 2 * time.Second

// RedisTracker keeps presence sets in Redis so every instance behind the
// pub/sub relay sees the same viewers. A join racing the last leave on
// another instance can observe the room frozen by save-on-empty.
type RedisTracker struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	onEmpty EmptyFunc
}

// NewRedisTracker connects to Redis. ttl bounds how long a set outlives its
// last join when instances die without leaving.
func NewRedisTracker(cfg config.RedisConfig, prefix string, ttl time.Duration) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTrackerFromClient(client, prefix, ttl), nil
}

// NewRedisTrackerFromClient wraps an existing client.
func NewRedisTrackerFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, prefix: prefix, ttl: ttl}
}

// SetOnEmpty replaces the save-on-empty hook. Call before the tracker is shared.
func (t *RedisTracker) SetOnEmpty(fn EmptyFunc) {
	t.onEmpty = fn
}

func (t *RedisTracker) roomKey(roomID string) string {
	return fmt.Sprintf("%s:presence:room:%s", t.prefix, roomID)
}

// Join adds identity to the room. It returns false when identity was already
// present or Redis failed.
func (t *RedisTracker) Join(roomID, identity string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := t.roomKey(roomID)
	pipe := t.client.TxPipeline()
	added := pipe.SAdd(ctx, key, identity)
	if t.ttl > 0 {
		pipe.Expire(ctx, key, t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to add viewer to presence set")
		return false
	}
	return added.Val() == 1
}

// Leave removes identity and reports whether it was present. Removing the
// last member runs the save-on-empty hook.
func (t *RedisTracker) Leave(ctx context.Context, roomID, identity string) bool {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	remaining, err := leaveScript.Run(opCtx, t.client, []string{t.roomKey(roomID)}, identity).Int64()
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to remove viewer from presence set")
		return false
	}
	if remaining < 0 {
		return false
	}
	if remaining == 0 && t.onEmpty != nil {
		t.onEmpty(ctx, roomID)
	}
	return true
}

// Count returns the number of viewers in the room.
func (t *RedisTracker) Count(roomID string) int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := t.client.SCard(ctx, t.roomKey(roomID)).Result()
	if err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to count viewers")
		return 0
	}
	return int(n)
}

// Members returns the room's identities, sorted.
func (t *RedisTracker) Members(roomID string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	members, err := t.client.SMembers(ctx, t.roomKey(roomID)).Result()
	if err != nil {
		return nil
	}
	sort.Strings(members)
	return members
}

// Forget drops the room's set without running the hook.
func (t *RedisTracker) Forget(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := t.client.Del(ctx, t.roomKey(roomID)).Err(); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to drop presence set")
	}
}

// Close closes the Redis client.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}
