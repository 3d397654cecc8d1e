package domain

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IngestionJob is one unit of "acquire and process this torrent for this
// owner". Jobs are persisted so submitted work survives a restart; the
// worker claims them strictly in submission order.
type IngestionJob struct {
	ID           int64
	MagnetLink   string
	OwnerID      string
	TorrentName  string
	Status       JobStatus
	Progress     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}
