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

const createPlaylistsTables = `
CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_playlists_owner_id ON playlists(owner_id);
CREATE TABLE IF NOT EXISTS playlist_videos (
	playlist_id TEXT NOT NULL,
	video_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (playlist_id, video_id),
	UNIQUE (playlist_id, position),
	FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
	FOREIGN KEY(video_id) REFERENCES videos(id)
);
`

type PlaylistRepository struct {
	db *sql.DB
}

func NewPlaylistRepository(db *sql.DB) repository.PlaylistRepository {
	return &PlaylistRepository{db: db}
}

func (r *PlaylistRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPlaylistsTables); err != nil {
		return fmt.Errorf("create playlist tables: %w", err)
	}
	return nil
}

func (r *PlaylistRepository) Create(ctx context.Context, playlist *domain.Playlist) error {
	playlist.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO playlists (id, title, owner_id, created_at)
VALUES (?, ?, ?, ?)`,
		playlist.ID,
		playlist.Title,
		playlist.OwnerID,
		playlist.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

func (r *PlaylistRepository) AddVideo(ctx context.Context, entry domain.PlaylistEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO playlist_videos (playlist_id, video_id, position)
VALUES (?, ?, ?)`,
		entry.PlaylistID,
		entry.VideoID,
		entry.Position,
	)
	if err != nil {
		return fmt.Errorf("insert playlist entry: %w", err)
	}
	return nil
}

func (r *PlaylistRepository) Get(ctx context.Context, id string) (*domain.Playlist, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, owner_id, created_at
FROM playlists
WHERE id=?`, id)
	return scanPlaylist(row)
}

func (r *PlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Playlist, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, owner_id, created_at
FROM playlists
WHERE owner_id=?
ORDER BY created_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []domain.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *playlist)
	}
	return playlists, rows.Err()
}

func (r *PlaylistRepository) ListEntries(ctx context.Context, playlistID string) ([]domain.PlaylistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT playlist_id, video_id, position
FROM playlist_videos
WHERE playlist_id=?
ORDER BY position ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("query playlist entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.PlaylistEntry
	for rows.Next() {
		var entry domain.PlaylistEntry
		if err := rows.Scan(&entry.PlaylistID, &entry.VideoID, &entry.Position); err != nil {
			return nil, fmt.Errorf("scan playlist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *PlaylistRepository) CountEntries(ctx context.Context, playlistID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM playlist_videos WHERE playlist_id=?`, playlistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count playlist entries: %w", err)
	}
	return count, nil
}

func scanPlaylist(row interface {
	Scan(dest ...any) error
}) (*domain.Playlist, error) {
	var playlist domain.Playlist
	if err := row.Scan(
		&playlist.ID,
		&playlist.Title,
		&playlist.OwnerID,
		&playlist.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("playlist not found")
		}
		return nil, fmt.Errorf("scan playlist: %w", err)
	}
	return &playlist, nil
}
