package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalConfig holds configuration for filesystem-backed media.
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
	// PublicURL is where BasePath is served from, e.g. "http://cdn.local/media".
	PublicURL string `mapstructure:"public_url"`
}

// LocalStorage serves media from a directory exposed under a public URL.
type LocalStorage struct {
	basePath  string
	publicURL string
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		cfg.BasePath = "./data/media"
	}
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &LocalStorage{
		basePath:  absPath,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// cleanKey normalises key and rejects anything escaping the base directory.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	return k, nil
}

// Exists reports whether key is a regular file under the base path.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filepath.Join(s.basePath, filepath.FromSlash(k)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", k, err)
	}
	return !info.IsDir(), nil
}

// GetURL joins key onto the public URL. Without a public URL it returns the
// slash-separated key so callers can mount it themselves.
func (s *LocalStorage) GetURL(ctx context.Context, key string, _ time.Duration) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.publicURL == "" {
		return "/" + k, nil
	}
	return url.JoinPath(s.publicURL, k)
}
