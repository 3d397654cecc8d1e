package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"streamhub/internal/domain"
	"streamhub/internal/repository"
)

// CatalogService is the pipeline's write surface over the catalog plus the
// read surface used by the API. Each call commits on its own; the worker
// relies on that to leave observable partial state behind after every step.
type CatalogService interface {
	CreateVideo(ctx context.Context, title, ownerID, storagePath string) (*domain.Video, error)
	SetVideoStatus(ctx context.Context, id string, status domain.VideoStatus) error
	MarkVideoProcessed(ctx context.Context, id, storagePath, thumbnailPath string, durationSeconds, width, height int, sizeBytes int64) error
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	ListVideos(ctx context.Context, ownerID string) ([]domain.Video, error)

	CreatePlaylist(ctx context.Context, title, ownerID string) (*domain.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	AddToPlaylist(ctx context.Context, playlistID, videoID string, position int) error
	GetPlaylist(ctx context.Context, id string) (*domain.Playlist, error)
	ListPlaylists(ctx context.Context, ownerID string) ([]domain.Playlist, error)
	ListPlaylistEntries(ctx context.Context, playlistID string) ([]domain.PlaylistEntry, error)
	CountPlaylistEntries(ctx context.Context, playlistID string) (int, error)
}

type catalogService struct {
	videos    repository.VideoRepository
	playlists repository.PlaylistRepository
}

func NewCatalogService(videos repository.VideoRepository, playlists repository.PlaylistRepository) CatalogService {
	return &catalogService{
		videos:    videos,
		playlists: playlists,
	}
}

func (s *catalogService) CreateVideo(ctx context.Context, title, ownerID, storagePath string) (*domain.Video, error) {
	if title == "" {
		return nil, errors.New("video title is required")
	}
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}

	video := &domain.Video{
		ID:          uuid.NewString(),
		Title:       title,
		OwnerID:     ownerID,
		StoragePath: storagePath,
		Status:      domain.VideoStatusDownloading,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

func (s *catalogService) SetVideoStatus(ctx context.Context, id string, status domain.VideoStatus) error {
	return s.videos.UpdateStatus(ctx, id, status)
}

func (s *catalogService) MarkVideoProcessed(ctx context.Context, id, storagePath, thumbnailPath string, durationSeconds, width, height int, sizeBytes int64) error {
	return s.videos.MarkProcessed(ctx, id, storagePath, thumbnailPath, durationSeconds, width, height, sizeBytes)
}

func (s *catalogService) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	return s.videos.Get(ctx, id)
}

func (s *catalogService) ListVideos(ctx context.Context, ownerID string) ([]domain.Video, error) {
	return s.videos.ListByOwner(ctx, ownerID)
}

func (s *catalogService) CreatePlaylist(ctx context.Context, title, ownerID string) (*domain.Playlist, error) {
	if title == "" {
		return nil, errors.New("playlist title is required")
	}

	playlist := &domain.Playlist{
		ID:      uuid.NewString(),
		Title:   title,
		OwnerID: ownerID,
	}
	if err := s.playlists.Create(ctx, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

func (s *catalogService) DeletePlaylist(ctx context.Context, id string) error {
	return s.playlists.Delete(ctx, id)
}

func (s *catalogService) AddToPlaylist(ctx context.Context, playlistID, videoID string, position int) error {
	return s.playlists.AddVideo(ctx, domain.PlaylistEntry{
		PlaylistID: playlistID,
		VideoID:    videoID,
		Position:   position,
	})
}

func (s *catalogService) GetPlaylist(ctx context.Context, id string) (*domain.Playlist, error) {
	return s.playlists.Get(ctx, id)
}

func (s *catalogService) ListPlaylists(ctx context.Context, ownerID string) ([]domain.Playlist, error) {
	return s.playlists.ListByOwner(ctx, ownerID)
}

func (s *catalogService) ListPlaylistEntries(ctx context.Context, playlistID string) ([]domain.PlaylistEntry, error) {
	return s.playlists.ListEntries(ctx, playlistID)
}

func (s *catalogService) CountPlaylistEntries(ctx context.Context, playlistID string) (int, error) {
	return s.playlists.CountEntries(ctx, playlistID)
}
