package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
)

func TestGormUserRepository_FirstOrCreate(t *testing.T) {
	repo := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.FirstOrCreate(ctx, &domain.UserModel{ID: "u-1", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)

	again, err := repo.FirstOrCreate(ctx, &domain.UserModel{ID: "u-1", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.CreatedAt.Unix(), again.CreatedAt.Unix())

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)

	_, err = repo.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGormMovieRepository_GetByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormMovieRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.MovieModel{
		ID:      "m-1",
		Title:   "Big Buck Bunny",
		HLSPath: "movies/m-1/master.m3u8",
		Status:  domain.MovieStatusReady,
	}).Error)

	movie, err := repo.GetByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Big Buck Bunny", movie.Title)
	assert.Equal(t, "movies/m-1/master.m3u8", movie.HLSPath)

	_, err = repo.GetByID(ctx, "m-2")
	assert.ErrorIs(t, err, ErrMovieNotFound)
}
