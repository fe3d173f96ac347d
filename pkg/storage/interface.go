package storage

import (
	"context"
	"fmt"
	"time"
)

// Storage resolves stored media objects (HLS manifests and segments) to URLs
// a player can fetch.
type Storage interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL for key. Backends that sign URLs honour expires;
	// public backends ignore it.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Drivers.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New builds the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case DriverLocal, "":
		return NewLocalStorage(cfg.Local)
	case DriverS3:
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
}
