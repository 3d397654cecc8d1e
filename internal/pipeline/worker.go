package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"streamhub/internal/domain"
	"streamhub/internal/downloader"
	"streamhub/internal/media"
	"streamhub/internal/repository"
	"streamhub/internal/service"
	"streamhub/internal/storage"
)

// Processor turns one source file into a streaming package under outputDir.
type Processor interface {
	ProcessVideo(ctx context.Context, path, outputDir string) (*media.Result, error)
}

type Config struct {
	DownloadRoot string
	StorageRoot  string
	// Mirror enables best-effort replication of finished packages to
	// object storage when a bucket is set.
	Mirror storage.UploadOptions
	Logger *logrus.Logger
}

// Worker drains the durable ingestion queue one job at a time: resolve
// magnet metadata, create catalog placeholders, download, discover, then
// transcode each file with per-file failure isolation.
type Worker struct {
	cfg       Config
	acquirer  downloader.Acquirer
	processor Processor
	catalog   service.CatalogService
	jobs      repository.JobRepository
	mirror    storage.Service

	notify chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg Config, acquirer downloader.Acquirer, processor Processor, catalog service.CatalogService, jobs repository.JobRepository, mirror storage.Service) *Worker {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Worker{
		cfg:       cfg,
		acquirer:  acquirer,
		processor: processor,
		catalog:   catalog,
		jobs:      jobs,
		mirror:    mirror,
		notify:    make(chan struct{}, 1),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.DownloadRoot, 0o755); err != nil {
		return fmt.Errorf("create download root: %w", err)
	}
	if err := os.MkdirAll(w.cfg.StorageRoot, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run()
	w.cfg.Logger.Infof("ingestion worker started, downloads: %s, storage: %s", w.cfg.DownloadRoot, w.cfg.StorageRoot)
	return nil
}

func (w *Worker) Shutdown() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.cfg.Logger.Info("ingestion worker stopped")
}

// Enqueue appends a job to the durable queue and returns its id together
// with the current queue depth. It never waits for pipeline completion.
func (w *Worker) Enqueue(ctx context.Context, magnetLink, ownerID, torrentName string) (int64, int, error) {
	if magnetLink == "" {
		return 0, 0, errors.New("magnet link is required")
	}
	if ownerID == "" {
		return 0, 0, errors.New("owner id is required")
	}

	job := &domain.IngestionJob{
		MagnetLink:  magnetLink,
		OwnerID:     ownerID,
		TorrentName: torrentName,
	}
	id, err := w.jobs.Enqueue(ctx, job)
	if err != nil {
		return 0, 0, err
	}

	depth, err := w.jobs.PendingCount(ctx)
	if err != nil {
		depth = 0
	}

	w.kick()
	return id, depth, nil
}

// Resume recovers jobs interrupted by a crash: running rows go back to
// pending and the queue is kicked.
func (w *Worker) Resume(ctx context.Context) error {
	reset, err := w.jobs.ResetRunning(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		w.cfg.Logger.Infof("requeued %d interrupted job(s)", reset)
	}
	w.kick()
	return nil
}

func (w *Worker) kick() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	// periodic re-check covers signals lost while a job was running
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		w.drain()
		select {
		case <-w.ctx.Done():
			return
		case <-w.notify:
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain() {
	for {
		if w.ctx.Err() != nil {
			return
		}
		job, err := w.jobs.ClaimNext(w.ctx)
		if err != nil {
			w.cfg.Logger.Errorf("claim job: %v", err)
			return
		}
		if job == nil {
			return
		}
		w.runJob(job)
	}
}

func (w *Worker) runJob(job *domain.IngestionJob) {
	logger := w.cfg.Logger.WithField("job_id", job.ID)
	logger.Infof("job started: %s", job.MagnetLink)

	if err := w.process(w.ctx, job); err != nil {
		logger.Errorf("job failed: %v", err)
		if mErr := w.jobs.MarkFailed(context.Background(), job.ID, err.Error()); mErr != nil {
			logger.Errorf("persist job failure: %v", mErr)
		}
		return
	}

	if err := w.jobs.MarkCompleted(context.Background(), job.ID); err != nil {
		logger.Errorf("persist job completion: %v", err)
		return
	}
	logger.Info("job completed")
}

// process drives one job through the ingestion state machine. Job-level
// failures return an error after marking every unfinished record FAILED;
// file-level failures are absorbed per record and never abort siblings.
func (w *Worker) process(ctx context.Context, job *domain.IngestionJob) error {
	logger := w.cfg.Logger.WithField("job_id", job.ID)

	info, err := w.acquirer.GetInfo(ctx, job.MagnetLink)
	if err != nil {
		// nothing was written yet; the job simply dies
		return fmt.Errorf("resolve metadata: %w", err)
	}
	logger.Infof("torrent %q: %d file(s), %d bytes", info.Name, info.FileCount, info.TotalSize)

	candidates := videoCandidates(info)
	if len(candidates) == 0 {
		return errors.New("torrent contains no video files")
	}

	folderName := job.TorrentName
	if folderName == "" {
		folderName = "torrent_" + uuid.NewString()[:8]
	}

	// one placeholder per file, committed before the download starts so
	// in-flight work is visible in the catalog
	records := make([]*domain.Video, 0, len(candidates))
	for _, candidate := range candidates {
		record, err := w.catalog.CreateVideo(ctx, filepath.Base(candidate), job.OwnerID, folderName)
		if err != nil {
			w.failRecords(records)
			return fmt.Errorf("create video record: %w", err)
		}
		records = append(records, record)
	}
	logger.Infof("created %d video record(s)", len(records))

	var playlist *domain.Playlist
	if len(records) > 1 {
		playlist, err = w.catalog.CreatePlaylist(ctx, info.Name, job.OwnerID)
		if err != nil {
			w.failRecords(records)
			return fmt.Errorf("create playlist: %w", err)
		}
		logger.Infof("created playlist %q", playlist.Title)
	}

	dest := filepath.Join(w.cfg.DownloadRoot, folderName)
	downloadPath, err := w.acquirer.Download(ctx, job.MagnetLink, dest, w.progressFunc(job.ID))
	if err != nil {
		w.failRecords(records)
		w.reapEmptyPlaylist(playlist, 0)
		return fmt.Errorf("download: %w", err)
	}

	found := Discover(downloadPath)
	if len(found) == 0 {
		w.failRecords(records)
		w.reapEmptyPlaylist(playlist, 0)
		return errors.New("no video files found after download")
	}

	byName := make(map[string]string, len(found))
	for _, p := range found {
		byName[filepath.Base(p)] = p
	}

	processed := 0
	for idx, record := range records {
		recLogger := logger.WithField("video_id", record.ID)

		srcPath, ok := byName[record.Title]
		if !ok {
			recLogger.Warnf("downloaded file missing for %q", record.Title)
			w.failRecord(record)
			continue
		}

		if err := w.catalog.SetVideoStatus(ctx, record.ID, domain.VideoStatusProcessing); err != nil {
			recLogger.Errorf("set processing status: %v", err)
			w.failRecord(record)
			continue
		}

		relPath := path.Join("users", job.OwnerID, "videos", record.ID)
		outputDir := filepath.Join(w.cfg.StorageRoot, filepath.FromSlash(relPath))

		result, err := w.processor.ProcessVideo(ctx, srcPath, outputDir)
		if err != nil {
			recLogger.Errorf("process video: %v", err)
			w.failRecord(record)
			continue
		}

		if err := w.catalog.MarkVideoProcessed(ctx, record.ID, relPath, path.Join(relPath, "thumbnail.jpg"), int(result.Duration), result.Width, result.Height, result.SizeBytes); err != nil {
			recLogger.Errorf("mark processed: %v", err)
			w.failRecord(record)
			continue
		}
		processed++
		recLogger.Infof("processed %dx%d, variants: %v", result.Width, result.Height, result.Variants)

		if playlist != nil {
			if err := w.catalog.AddToPlaylist(ctx, playlist.ID, record.ID, idx); err != nil {
				recLogger.Errorf("add to playlist at position %d: %v", idx, err)
			}
		}

		w.mirrorOutput(ctx, relPath, outputDir, recLogger)
	}

	logger.Infof("summary: %d total, %d processed, %d failed", len(records), processed, len(records)-processed)
	w.reapEmptyPlaylist(playlist, processed)
	return nil
}

// videoCandidates filters the metadata file list with the discovery
// allow-list and orders it exactly the way Discover will, so record order
// and playlist positions line up with the downloaded files.
func videoCandidates(info *downloader.TorrentInfo) []string {
	var candidates []string
	for _, f := range info.Files {
		if IsVideoFile(f.Path) {
			candidates = append(candidates, f.Path)
		}
	}
	SortByBasename(candidates)
	return candidates
}

func (w *Worker) progressFunc(jobID int64) downloader.ProgressFunc {
	lastPercent := -1
	return func(completed, total int64) {
		percent := 0
		if total > 0 {
			percent = int(completed * 100 / total)
		}
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		if err := w.jobs.UpdateProgress(context.Background(), jobID, percent); err != nil {
			w.cfg.Logger.WithField("job_id", jobID).Warnf("update progress: %v", err)
		}
	}
}

// failRecord flips a record to FAILED. The repository guard keeps records
// that already reached PROCESSED untouched.
func (w *Worker) failRecord(record *domain.Video) {
	if err := w.catalog.SetVideoStatus(context.Background(), record.ID, domain.VideoStatusFailed); err != nil {
		w.cfg.Logger.WithField("video_id", record.ID).Errorf("persist failure status: %v", err)
	}
}

func (w *Worker) failRecords(records []*domain.Video) {
	for _, record := range records {
		w.failRecord(record)
	}
}

// reapEmptyPlaylist removes a playlist whose job produced no playable
// output, so failed jobs leave no dangling playlist rows behind.
func (w *Worker) reapEmptyPlaylist(playlist *domain.Playlist, processed int) {
	if playlist == nil || processed > 0 {
		return
	}
	if err := w.catalog.DeletePlaylist(context.Background(), playlist.ID); err != nil {
		w.cfg.Logger.Warnf("delete empty playlist %s: %v", playlist.ID, err)
	}
}

func (w *Worker) mirrorOutput(ctx context.Context, relPath, outputDir string, logger *logrus.Entry) {
	if w.mirror == nil || w.cfg.Mirror.Bucket == "" {
		return
	}

	opts := w.cfg.Mirror
	if opts.KeyPrefix != "" {
		opts.KeyPrefix = opts.KeyPrefix + "/" + relPath
	} else {
		opts.KeyPrefix = relPath
	}

	dest, err := w.mirror.UploadDirectory(ctx, outputDir, opts)
	if err != nil {
		// mirroring is best-effort; the local package is authoritative
		logger.Warnf("mirror upload: %v", err)
		return
	}
	logger.Infof("mirrored to %s", dest)
}
