package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/domain"
	"streamhub/internal/downloader"
	"streamhub/internal/media"
	"streamhub/internal/repository"
	"streamhub/internal/repository/sqlite"
	"streamhub/internal/service"
)

type fakeAcquirer struct {
	info        *downloader.TorrentInfo
	infoErr     error
	downloadErr error
	// files written into the destination on Download, rel path -> nothing
	files []string
}

func (f *fakeAcquirer) GetInfo(ctx context.Context, magnetLink string) (*downloader.TorrentInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeAcquirer) Download(ctx context.Context, magnetLink, dest string, progress downloader.ProgressFunc) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	for _, rel := range f.files {
		path := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			return "", err
		}
	}
	if progress != nil {
		progress(100, 100)
	}
	return dest, nil
}

type fakeProcessor struct {
	failNames map[string]bool
	processed []string
}

func (p *fakeProcessor) ProcessVideo(ctx context.Context, path, outputDir string) (*media.Result, error) {
	name := filepath.Base(path)
	if p.failNames[name] {
		return nil, &media.ProbeError{Path: path, Err: errors.New("no video stream")}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	p.processed = append(p.processed, name)
	return &media.Result{
		Variants:  []string{"360p"},
		Duration:  42,
		Width:     640,
		Height:    360,
		SizeBytes: 4,
	}, nil
}

type workerEnv struct {
	worker    *Worker
	catalog   service.CatalogService
	jobs      repository.JobRepository
	acquirer  *fakeAcquirer
	processor *fakeProcessor
}

func newWorkerEnv(t *testing.T, acquirer *fakeAcquirer, processor *fakeProcessor) *workerEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	videoRepo := sqlite.NewVideoRepository(db)
	playlistRepo := sqlite.NewPlaylistRepository(db)
	jobRepo := sqlite.NewJobRepository(db)
	require.NoError(t, videoRepo.Init(ctx))
	require.NoError(t, playlistRepo.Init(ctx))
	require.NoError(t, jobRepo.Init(ctx))

	catalog := service.NewCatalogService(videoRepo, playlistRepo)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	worker := NewWorker(Config{
		DownloadRoot: filepath.Join(t.TempDir(), "downloads"),
		StorageRoot:  filepath.Join(t.TempDir(), "storage"),
		Logger:       logger,
	}, acquirer, processor, catalog, jobRepo, nil)

	return &workerEnv{
		worker:    worker,
		catalog:   catalog,
		jobs:      jobRepo,
		acquirer:  acquirer,
		processor: processor,
	}
}

func torrentInfo(name string, files ...string) *downloader.TorrentInfo {
	info := &downloader.TorrentInfo{Name: name, FileCount: len(files)}
	for _, f := range files {
		info.Files = append(info.Files, downloader.FileInfo{Path: f, Size: 100})
		info.TotalSize += 100
	}
	return info
}

func testJob(owner string) *domain.IngestionJob {
	return &domain.IngestionJob{ID: 1, MagnetLink: "magnet:?xt=urn:btih:test", OwnerID: owner}
}

func videosByTitle(t *testing.T, env *workerEnv, owner string) map[string]domain.Video {
	t.Helper()
	videos, err := env.catalog.ListVideos(context.Background(), owner)
	require.NoError(t, err)
	byTitle := make(map[string]domain.Video, len(videos))
	for _, v := range videos {
		byTitle[v.Title] = v
	}
	return byTitle
}

func TestProcessMultiFileAssignsPlaylistPositionsInDiscoveryOrder(t *testing.T) {
	files := []string{"b.mp4", "A.mkv", "c.avi"}
	env := newWorkerEnv(t,
		&fakeAcquirer{info: torrentInfo("My Show", files...), files: files},
		&fakeProcessor{},
	)

	require.NoError(t, env.worker.process(context.Background(), testJob("owner-1")))

	byTitle := videosByTitle(t, env, "owner-1")
	require.Len(t, byTitle, 3)
	for _, title := range files {
		assert.Equal(t, domain.VideoStatusProcessed, byTitle[title].Status, title)
	}

	playlists, err := env.catalog.ListPlaylists(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, "My Show", playlists[0].Title)

	entries, err := env.catalog.ListPlaylistEntries(context.Background(), playlists[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// discovery order: A.mkv, b.mp4, c.avi
	wantOrder := []string{"A.mkv", "b.mp4", "c.avi"}
	for i, entry := range entries {
		assert.Equal(t, i, entry.Position)
		assert.Equal(t, byTitle[wantOrder[i]].ID, entry.VideoID)
	}
}

func TestProcessSingleFileCreatesNoPlaylist(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{info: torrentInfo("Solo", "movie.mp4"), files: []string{"movie.mp4"}},
		&fakeProcessor{},
	)

	require.NoError(t, env.worker.process(context.Background(), testJob("owner-1")))

	byTitle := videosByTitle(t, env, "owner-1")
	require.Len(t, byTitle, 1)
	assert.Equal(t, domain.VideoStatusProcessed, byTitle["movie.mp4"].Status)

	playlists, err := env.catalog.ListPlaylists(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, playlists)
}

func TestProcessOneFailureDoesNotAbortSiblings(t *testing.T) {
	files := []string{"a.mp4", "b.mp4", "c.mp4"}
	env := newWorkerEnv(t,
		&fakeAcquirer{info: torrentInfo("Season", files...), files: files},
		&fakeProcessor{failNames: map[string]bool{"b.mp4": true}},
	)

	require.NoError(t, env.worker.process(context.Background(), testJob("owner-1")))

	byTitle := videosByTitle(t, env, "owner-1")
	assert.Equal(t, domain.VideoStatusProcessed, byTitle["a.mp4"].Status)
	assert.Equal(t, domain.VideoStatusFailed, byTitle["b.mp4"].Status)
	assert.Equal(t, domain.VideoStatusProcessed, byTitle["c.mp4"].Status)

	playlists, err := env.catalog.ListPlaylists(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, playlists, 1)

	entries, err := env.catalog.ListPlaylistEntries(context.Background(), playlists[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// gap at the failed index is preserved
	assert.Equal(t, byTitle["a.mp4"].ID, entries[0].VideoID)
	assert.Equal(t, 0, entries[0].Position)
	assert.Equal(t, byTitle["c.mp4"].ID, entries[1].VideoID)
	assert.Equal(t, 2, entries[1].Position)
}

func TestProcessDownloadFailureFailsAllRecords(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{
			info:        torrentInfo("Dup", "a.mp4", "b.mp4"),
			downloadErr: fmt.Errorf("%w: /tmp/dup", downloader.ErrDestinationExists),
		},
		&fakeProcessor{},
	)

	err := env.worker.process(context.Background(), testJob("owner-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, downloader.ErrDestinationExists)

	byTitle := videosByTitle(t, env, "owner-1")
	require.Len(t, byTitle, 2)
	for title, v := range byTitle {
		assert.Equal(t, domain.VideoStatusFailed, v.Status, title)
	}

	// the pre-created playlist is reaped: no playlist or mapping rows remain
	playlists, err := env.catalog.ListPlaylists(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, playlists)
}

func TestProcessMetadataFailureWritesNothing(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{infoErr: errors.New("no peers")},
		&fakeProcessor{},
	)

	err := env.worker.process(context.Background(), testJob("owner-1"))
	require.Error(t, err)

	videos, err := env.catalog.ListVideos(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestProcessNoVideoFilesAborts(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{info: torrentInfo("Docs", "readme.txt", "cover.jpg")},
		&fakeProcessor{},
	)

	err := env.worker.process(context.Background(), testJob("owner-1"))
	require.Error(t, err)

	videos, err := env.catalog.ListVideos(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestProcessMissingDownloadedFileFailsOnlyThatRecord(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{
			info:  torrentInfo("Partial", "a.mp4", "b.mp4"),
			files: []string{"a.mp4"}, // b.mp4 never materializes
		},
		&fakeProcessor{},
	)

	require.NoError(t, env.worker.process(context.Background(), testJob("owner-1")))

	byTitle := videosByTitle(t, env, "owner-1")
	assert.Equal(t, domain.VideoStatusProcessed, byTitle["a.mp4"].Status)
	assert.Equal(t, domain.VideoStatusFailed, byTitle["b.mp4"].Status)
}

func TestEnqueueAndRunJob(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{info: torrentInfo("Solo", "movie.mp4"), files: []string{"movie.mp4"}},
		&fakeProcessor{},
	)
	ctx := context.Background()
	env.worker.ctx, env.worker.cancel = context.WithCancel(ctx)
	defer env.worker.cancel()

	jobID, depth, err := env.worker.Enqueue(ctx, "magnet:?xt=urn:btih:test", "owner-1", "Solo")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	env.worker.drain()

	jobs, err := env.jobs.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)
	assert.Equal(t, domain.JobStatusCompleted, jobs[0].Status)
	assert.Equal(t, 100, jobs[0].Progress)
}

func TestRunJobRecordsFailure(t *testing.T) {
	env := newWorkerEnv(t,
		&fakeAcquirer{infoErr: errors.New("metadata timed out")},
		&fakeProcessor{},
	)
	ctx := context.Background()
	env.worker.ctx, env.worker.cancel = context.WithCancel(ctx)
	defer env.worker.cancel()

	_, _, err := env.worker.Enqueue(ctx, "magnet:?xt=urn:btih:test", "owner-1", "")
	require.NoError(t, err)

	env.worker.drain()

	jobs, err := env.jobs.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].ErrorMessage, "metadata timed out")
}
