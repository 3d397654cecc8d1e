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

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	magnet_link TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	torrent_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	started_at DATETIME NULL,
	finished_at DATETIME NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// JobRepository persists the ingestion queue so submitted jobs survive a
// process restart.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) repository.JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createJobsTable); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	return nil
}

func (r *JobRepository) Enqueue(ctx context.Context, job *domain.IngestionJob) (int64, error) {
	now := time.Now().UTC()
	job.Status = domain.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO jobs (magnet_link, owner_id, torrent_name, status, progress, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, 0, '', ?, ?)`,
		job.MagnetLink,
		job.OwnerID,
		job.TorrentName,
		string(job.Status),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("job last insert id: %w", err)
	}
	job.ID = id
	return id, nil
}

func (r *JobRepository) ClaimNext(ctx context.Context) (*domain.IngestionJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
SELECT id, magnet_link, owner_id, torrent_name, status, progress, error_message, created_at, updated_at, started_at, finished_at
FROM jobs
WHERE status=?
ORDER BY id ASC
LIMIT 1`, string(domain.JobStatusPending))

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE jobs
SET status=?, started_at=?, updated_at=?
WHERE id=?`,
		string(domain.JobStatusRunning),
		now,
		now,
		job.ID,
	); err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	return job, nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id int64, progress int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET progress=?, updated_at=?
WHERE id=?`,
		progress,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (r *JobRepository) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status=?, progress=100, finished_at=?, updated_at=?
WHERE id=?`,
		string(domain.JobStatusCompleted),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status=?, error_message=?, finished_at=?, updated_at=?
WHERE id=?`,
		string(domain.JobStatusFailed),
		errorMessage,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

func (r *JobRepository) ResetRunning(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status=?, updated_at=?
WHERE status=?`,
		string(domain.JobStatusPending),
		time.Now().UTC(),
		string(domain.JobStatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rows affected: %w", err)
	}
	return affected, nil
}

func (r *JobRepository) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM jobs WHERE status=?`, string(domain.JobStatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

func (r *JobRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.IngestionJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, magnet_link, owner_id, torrent_name, status, progress, error_message, created_at, updated_at, started_at, finished_at
FROM jobs
WHERE owner_id=?
ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...any) error
}) (*domain.IngestionJob, error) {
	var (
		job        domain.IngestionJob
		status     string
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID,
		&job.MagnetLink,
		&job.OwnerID,
		&job.TorrentName,
		&status,
		&job.Progress,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}
