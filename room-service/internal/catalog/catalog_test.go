package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/room-service/internal/cache"
	"github.com/weiawesome/wes-io-live/room-service/internal/consumer"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
)

type mockMovieRepo struct {
	mock.Mock
}

func (m *mockMovieRepo) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	args := m.Called(ctx, id)
	if mv, ok := args.Get(0).(*domain.Movie); ok {
		return mv, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStorage) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, expires)
	return args.String(0), args.Error(1)
}

// memCache is an in-process MovieCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*cache.MovieCacheResult
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*cache.MovieCacheResult)}
}

func (c *memCache) Get(ctx context.Context, key string) (*cache.MovieCacheResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if r, ok := c.entries[key]; ok {
		return r, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *memCache) Set(ctx context.Context, key string, result *cache.MovieCacheResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memCache) BuildKeyByID(movieID string) string { return "test:movie:" + movieID }

func (c *memCache) Close() error { return nil }

func readyMovie() *domain.Movie {
	return &domain.Movie{
		ID:      "m-1",
		Title:   "Big Buck Bunny",
		HLSPath: "movies/m-1/master.m3u8",
		Status:  domain.MovieStatusReady,
	}
}

func TestService_GetMovie_CachesAndResolvesURL(t *testing.T) {
	repo := new(mockMovieRepo)
	store := new(mockStorage)
	mc := newMemCache()
	svc := NewService(repo, mc, store, time.Minute, time.Hour)
	ctx := context.Background()

	repo.On("GetByID", ctx, "m-1").Return(readyMovie(), nil).Once()
	store.On("GetURL", ctx, "movies/m-1/master.m3u8", time.Hour).
		Return("https://cdn.local/movies/m-1/master.m3u8", nil)

	movie, err := svc.GetMovie(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Big Buck Bunny", movie.Title)
	assert.Equal(t, "https://cdn.local/movies/m-1/master.m3u8", movie.HLSURL)

	// Second lookup is served from the cache.
	movie, err = svc.GetMovie(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.local/movies/m-1/master.m3u8", movie.HLSURL)

	repo.AssertNumberOfCalls(t, "GetByID", 1)
	store.AssertNumberOfCalls(t, "GetURL", 2)
}

func TestService_GetMovie_NotFound(t *testing.T) {
	repo := new(mockMovieRepo)
	svc := NewService(repo, newMemCache(), nil, time.Minute, time.Hour)

	repo.On("GetByID", mock.Anything, "m-404").Return(nil, repository.ErrMovieNotFound)

	_, err := svc.GetMovie(context.Background(), "m-404")
	assert.ErrorIs(t, err, ErrMovieNotFound)

	ok, err := svc.Exists(context.Background(), "m-404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_GetMovie_CacheErrorFallsBackToRepo(t *testing.T) {
	repo := new(mockMovieRepo)
	mc := newMemCache()
	mc.getErr = errors.New("redis down")
	svc := NewService(repo, mc, nil, time.Minute, time.Hour)

	repo.On("GetByID", mock.Anything, "m-1").Return(readyMovie(), nil)

	movie, err := svc.GetMovie(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", movie.ID)
	assert.Empty(t, movie.HLSURL)
}

func TestService_GetMovie_NotReadyHasNoURL(t *testing.T) {
	repo := new(mockMovieRepo)
	store := new(mockStorage)
	svc := NewService(repo, nil, store, time.Minute, time.Hour)

	m := readyMovie()
	m.Status = domain.MovieStatusProcessing
	repo.On("GetByID", mock.Anything, "m-1").Return(m, nil)

	movie, err := svc.GetMovie(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Empty(t, movie.HLSURL)
	store.AssertNotCalled(t, "GetURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_GetMovie_StorageErrorKeepsMovie(t *testing.T) {
	repo := new(mockMovieRepo)
	store := new(mockStorage)
	svc := NewService(repo, newMemCache(), store, time.Minute, time.Hour)

	repo.On("GetByID", mock.Anything, "m-1").Return(readyMovie(), nil)
	store.On("GetURL", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("presign failed"))

	movie, err := svc.GetMovie(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Big Buck Bunny", movie.Title)
	assert.Empty(t, movie.HLSURL)
}

// slowRepo blocks until released so concurrent lookups overlap.
type slowRepo struct {
	calls   int32
	release chan struct{}
}

func (r *slowRepo) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	atomic.AddInt32(&r.calls, 1)
	<-r.release
	return readyMovie(), nil
}

func TestService_GetMovie_SingleflightCollapsesMisses(t *testing.T) {
	repo := &slowRepo{release: make(chan struct{})}
	svc := NewService(repo, newMemCache(), nil, time.Minute, time.Hour)

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetMovie(context.Background(), "m-1")
			assert.NoError(t, err)
		}()
	}

	// Give the callers time to pile up on the in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.calls))
}

func TestService_Invalidate(t *testing.T) {
	repo := new(mockMovieRepo)
	mc := newMemCache()
	svc := NewService(repo, mc, nil, time.Minute, time.Hour)
	ctx := context.Background()

	repo.On("GetByID", mock.Anything, "m-1").Return(readyMovie(), nil).Twice()

	_, err := svc.GetMovie(ctx, "m-1")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, "m-1"))
	_, err = svc.GetMovie(ctx, "m-1")
	require.NoError(t, err)

	repo.AssertNumberOfCalls(t, "GetByID", 2)
}

func TestService_HandleMovieUpdated(t *testing.T) {
	repo := new(mockMovieRepo)
	mc := newMemCache()
	svc := NewService(repo, mc, nil, time.Minute, time.Hour)
	ctx := context.Background()

	processing := readyMovie()
	processing.Status = domain.MovieStatusProcessing
	repo.On("GetByID", mock.Anything, "m-1").Return(processing, nil).Once()
	repo.On("GetByID", mock.Anything, "m-1").Return(readyMovie(), nil).Once()

	mv, err := svc.GetMovie(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MovieStatusProcessing, mv.Status)

	require.NoError(t, svc.HandleMovieUpdated(ctx, &consumer.MovieUpdatedEvent{MovieID: "m-1", Status: "ready"}))

	mv, err = svc.GetMovie(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MovieStatusReady, mv.Status)
	repo.AssertExpectations(t)
}
