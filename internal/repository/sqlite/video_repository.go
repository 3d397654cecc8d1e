package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streamhub/internal/domain"
	"streamhub/internal/repository"
)

const createVideosTable = `
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	storage_path TEXT NOT NULL DEFAULT '',
	thumbnail_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_videos_owner_id ON videos(owner_id);
`

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) repository.VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createVideosTable); err != nil {
		return fmt.Errorf("create videos table: %w", err)
	}
	return nil
}

func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO videos (id, title, owner_id, storage_path, thumbnail_path, status, duration_seconds, width, height, size_bytes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		video.Title,
		video.OwnerID,
		video.StoragePath,
		video.ThumbnailPath,
		string(video.Status),
		video.DurationSeconds,
		video.Width,
		video.Height,
		video.SizeBytes,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) UpdateStatus(ctx context.Context, id string, status domain.VideoStatus) error {
	// PROCESSED is terminal; the guard keeps late failure paths from
	// regressing a row that already finished.
	_, err := r.db.ExecContext(ctx, `
UPDATE videos
SET status=?, updated_at=?
WHERE id=? AND status != ?`,
		string(status),
		time.Now().UTC(),
		id,
		string(domain.VideoStatusProcessed),
	)
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	return nil
}

func (r *VideoRepository) MarkProcessed(ctx context.Context, id, storagePath, thumbnailPath string, durationSeconds, width, height int, sizeBytes int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE videos
SET storage_path=?, thumbnail_path=?, status=?, duration_seconds=?, width=?, height=?, size_bytes=?, updated_at=?
WHERE id=?`,
		storagePath,
		thumbnailPath,
		string(domain.VideoStatusProcessed),
		durationSeconds,
		width,
		height,
		sizeBytes,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark video processed: %w", err)
	}
	return nil
}

func (r *VideoRepository) Get(ctx context.Context, id string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, owner_id, storage_path, thumbnail_path, status, duration_seconds, width, height, size_bytes, created_at, updated_at
FROM videos
WHERE id=?`,
		id,
	)
	return scanVideo(row)
}

func (r *VideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Video, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, owner_id, storage_path, thumbnail_path, status, duration_seconds, width, height, size_bytes, created_at, updated_at
FROM videos
WHERE owner_id=?
ORDER BY created_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

func scanVideo(scanner interface {
	Scan(dest ...any) error
}) (*domain.Video, error) {
	var (
		video  domain.Video
		status string
	)
	if err := scanner.Scan(
		&video.ID,
		&video.Title,
		&video.OwnerID,
		&video.StoragePath,
		&video.ThumbnailPath,
		&status,
		&video.DurationSeconds,
		&video.Width,
		&video.Height,
		&video.SizeBytes,
		&video.CreatedAt,
		&video.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("video not found")
		}
		return nil, fmt.Errorf("scan video: %w", err)
	}
	video.Status = domain.VideoStatus(status)
	return &video, nil
}
