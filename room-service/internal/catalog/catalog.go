// Package catalog resolves movie ids to playable media.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/storage"
	"github.com/weiawesome/wes-io-live/room-service/internal/cache"
	"github.com/weiawesome/wes-io-live/room-service/internal/consumer"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
)

var ErrMovieNotFound = errors.New("movie not found")

// Service looks movies up through the cache and resolves their HLS URL.
type Service struct {
	repo      repository.MovieRepository
	cache     cache.MovieCache
	store     storage.Storage
	cacheTTL  time.Duration
	urlExpiry time.Duration
	sf        singleflight.Group
}

// NewService creates a catalog Service. store may be nil, in which case movies
// carry no HLS URL.
func NewService(repo repository.MovieRepository, movieCache cache.MovieCache, store storage.Storage, cacheTTL, urlExpiry time.Duration) *Service {
	if movieCache == nil {
		movieCache = cache.NoopMovieCache{}
	}
	return &Service{
		repo:      repo,
		cache:     movieCache,
		store:     store,
		cacheTTL:  cacheTTL,
		urlExpiry: urlExpiry,
	}
}

// GetMovie returns the movie with its playable URL.
func (s *Service) GetMovie(ctx context.Context, movieID string) (*domain.Movie, error) {
	key := s.cache.BuildKeyByID(movieID)

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.fetchWithCache(ctx, movieID, key)
	})
	if err != nil {
		return nil, err
	}

	cached, ok := result.(*cache.MovieCacheResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	movie := &domain.Movie{
		ID:      cached.ID,
		Title:   cached.Title,
		HLSPath: cached.HLSPath,
		Status:  cached.Status,
	}
	s.resolveURL(ctx, movie)
	return movie, nil
}

// Exists reports whether movieID is in the catalog.
func (s *Service) Exists(ctx context.Context, movieID string) (bool, error) {
	_, err := s.GetMovie(ctx, movieID)
	if err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Invalidate drops the cached entry for movieID.
func (s *Service) Invalidate(ctx context.Context, movieID string) error {
	return s.cache.Delete(ctx, s.cache.BuildKeyByID(movieID))
}

// HandleMovieUpdated drops the cached entry of a movie whose status or media
// changed, so the next lookup sees the new HLS path.
func (s *Service) HandleMovieUpdated(ctx context.Context, event *consumer.MovieUpdatedEvent) error {
	if err := s.Invalidate(ctx, event.MovieID); err != nil {
		return fmt.Errorf("failed to invalidate movie %s: %w", event.MovieID, err)
	}
	l := log.Ctx(ctx)
	l.Debug().Str("movie_id", event.MovieID).Str("status", event.Status).Msg("movie cache invalidated")
	return nil
}

func (s *Service) fetchWithCache(ctx context.Context, movieID, key string) (*cache.MovieCacheResult, error) {
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		// Log error but continue to fetch from DB
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	movie, err := s.repo.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie from repository: %w", err)
	}

	result := &cache.MovieCacheResult{
		ID:      movie.ID,
		Title:   movie.Title,
		HLSPath: movie.HLSPath,
		Status:  movie.Status,
	}

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache set error")
	}

	return result, nil
}

func (s *Service) resolveURL(ctx context.Context, movie *domain.Movie) {
	if s.store == nil || movie.HLSPath == "" || movie.Status != domain.MovieStatusReady {
		return
	}

	url, err := s.store.GetURL(ctx, movie.HLSPath, s.urlExpiry)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("movie_id", movie.ID).Msg("failed to resolve hls url")
		return
	}
	movie.HLSURL = url
}
