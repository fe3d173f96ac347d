package cache

import (
	"context"
	"time"
)

// MovieCacheResult is the cached catalog entry. URLs are not cached since
// presigned links expire.
type MovieCacheResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	HLSPath string `json:"hls_path"`
	Status  string `json:"status"`
}

type MovieCache interface {
	Get(ctx context.Context, key string) (*MovieCacheResult, error)
	Set(ctx context.Context, key string, result *MovieCacheResult, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKeyByID(movieID string) string
	Close() error
}
