package domain

import "time"

type VideoStatus string

const (
	VideoStatusDownloading VideoStatus = "DOWNLOADING"
	VideoStatusProcessing  VideoStatus = "PROCESSING"
	VideoStatusProcessed   VideoStatus = "PROCESSED"
	VideoStatusFailed      VideoStatus = "FAILED"
)

// Video is a single catalog entry for one media file discovered in a torrent.
// Its status only moves forward: DOWNLOADING -> PROCESSING -> PROCESSED/FAILED.
type Video struct {
	ID              string
	Title           string
	OwnerID         string
	StoragePath     string
	ThumbnailPath   string
	Status          VideoStatus
	DurationSeconds int
	Width           int
	Height          int
	SizeBytes       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Playlist groups the videos of a multi-file torrent, in discovery order.
type Playlist struct {
	ID        string
	Title     string
	OwnerID   string
	CreatedAt time.Time
}

// PlaylistEntry maps a video into a playlist at a fixed zero-based position.
type PlaylistEntry struct {
	PlaylistID string
	VideoID    string
	Position   int
}
