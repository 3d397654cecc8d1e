package repository

import (
	"context"

	"streamhub/internal/domain"
)

// VideoRepository exposes persistence operations for catalog Video rows.
// Every mutation commits on its own so partial pipeline state is always
// externally observable.
type VideoRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, video *domain.Video) error
	// UpdateStatus advances the status of a video. A row that already
	// reached PROCESSED is never regressed.
	UpdateStatus(ctx context.Context, id string, status domain.VideoStatus) error
	// MarkProcessed records the final media metadata and flips the row to
	// PROCESSED in a single statement.
	MarkProcessed(ctx context.Context, id, storagePath, thumbnailPath string, durationSeconds, width, height int, sizeBytes int64) error
	Get(ctx context.Context, id string) (*domain.Video, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Video, error)
}

// PlaylistRepository manages playlists and their position mappings.
type PlaylistRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, playlist *domain.Playlist) error
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, entry domain.PlaylistEntry) error
	Get(ctx context.Context, id string) (*domain.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Playlist, error)
	ListEntries(ctx context.Context, playlistID string) ([]domain.PlaylistEntry, error)
	CountEntries(ctx context.Context, playlistID string) (int, error)
}

// JobRepository is the durable ingestion queue. Enqueue appends, ClaimNext
// hands out the oldest pending job to the single worker.
type JobRepository interface {
	Init(ctx context.Context) error
	Enqueue(ctx context.Context, job *domain.IngestionJob) (int64, error)
	// ClaimNext marks the oldest pending job as running and returns it.
	// Returns (nil, nil) when the queue is empty.
	ClaimNext(ctx context.Context) (*domain.IngestionJob, error)
	UpdateProgress(ctx context.Context, id int64, progress int) error
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	// ResetRunning flips running jobs back to pending. Called once at boot
	// to recover work interrupted by a crash.
	ResetRunning(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.IngestionJob, error)
}
