package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newVideo(title, ownerID string) *domain.Video {
	return &domain.Video{
		ID:      uuid.NewString(),
		Title:   title,
		OwnerID: ownerID,
		Status:  domain.VideoStatusDownloading,
	}
}

func TestVideoRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository(openTestDB(t))
	require.NoError(t, repo.Init(ctx))

	video := newVideo("ep1.mp4", "owner-1")
	video.StoragePath = "torrents/show"
	require.NoError(t, repo.Create(ctx, video))

	got, err := repo.Get(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, "ep1.mp4", got.Title)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, "torrents/show", got.StoragePath)
	assert.Equal(t, domain.VideoStatusDownloading, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestVideoRepositoryGetMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository(openTestDB(t))
	require.NoError(t, repo.Init(ctx))

	_, err := repo.Get(ctx, "no-such-id")
	assert.Error(t, err)
}

func TestVideoRepositoryUpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository(openTestDB(t))
	require.NoError(t, repo.Init(ctx))

	video := newVideo("ep1.mp4", "owner-1")
	require.NoError(t, repo.Create(ctx, video))

	require.NoError(t, repo.UpdateStatus(ctx, video.ID, domain.VideoStatusProcessing))
	got, err := repo.Get(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusProcessing, got.Status)
}

func TestVideoRepositoryProcessedIsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository(openTestDB(t))
	require.NoError(t, repo.Init(ctx))

	video := newVideo("ep1.mp4", "owner-1")
	require.NoError(t, repo.Create(ctx, video))
	require.NoError(t, repo.MarkProcessed(ctx, video.ID, "users/owner-1/videos/x", "users/owner-1/videos/x/thumbnail.jpg", 120, 1920, 1080, 5000))

	// a late failure path must not demote a finished record
	require.NoError(t, repo.UpdateStatus(ctx, video.ID, domain.VideoStatusFailed))

	got, err := repo.Get(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoStatusProcessed, got.Status)
	assert.Equal(t, 120, got.DurationSeconds)
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, 1080, got.Height)
	assert.Equal(t, int64(5000), got.SizeBytes)
}

func TestVideoRepositoryListByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoRepository(openTestDB(t))
	require.NoError(t, repo.Init(ctx))

	require.NoError(t, repo.Create(ctx, newVideo("mine-a.mp4", "owner-1")))
	require.NoError(t, repo.Create(ctx, newVideo("mine-b.mp4", "owner-1")))
	require.NoError(t, repo.Create(ctx, newVideo("theirs.mp4", "owner-2")))

	mine, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, v := range mine {
		assert.Equal(t, "owner-1", v.OwnerID)
	}

	none, err := repo.ListByOwner(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
