package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/storage"
	"github.com/sirupsen/logrus"
)

// ErrDestinationExists is returned when a download destination folder is
// already present; prior downloads are never overwritten.
var ErrDestinationExists = errors.New("download destination already exists")

// ErrMetadataTimeout is returned when magnet metadata does not arrive
// within the configured bound.
var ErrMetadataTimeout = errors.New("torrent metadata timed out")

// FileInfo describes one file advertised by a torrent's metadata.
type FileInfo struct {
	Path string
	Size int64
}

// TorrentInfo is the metadata resolved from a magnet link, before any
// content is downloaded.
type TorrentInfo struct {
	Name      string
	InfoHash  string
	TotalSize int64
	FileCount int
	Files     []FileInfo
}

// ProgressFunc receives completed/total byte counts while a download runs.
type ProgressFunc func(completed, total int64)

// Acquirer resolves magnet metadata and performs blocking downloads.
type Acquirer interface {
	GetInfo(ctx context.Context, magnetLink string) (*TorrentInfo, error)
	Download(ctx context.Context, magnetLink, dest string, progress ProgressFunc) (string, error)
}

type Config struct {
	// DataDir is the torrent client scratch root. Actual downloads are
	// stored under the destination passed to Download.
	DataDir        string
	StatusInterval time.Duration
	// MetadataTimeout bounds GetInfo; zero blocks indefinitely.
	MetadataTimeout time.Duration
	TrackerList     []string
	Logger          *logrus.Logger
}

// Client is the anacrolix-backed Acquirer.
type Client struct {
	cfg    Config
	client *torrent.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if len(cfg.TrackerList) == 0 {
		cfg.TrackerList = defaultTrackers()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = cfg.DataDir
	clientConfig.NoUpload = false
	clientConfig.Seed = false

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create torrent client: %w", err)
	}

	return &Client{cfg: cfg, client: client}, nil
}

func (c *Client) Close() {
	c.client.Close()
}

// GetInfo resolves magnet metadata only; the torrent is dropped once the
// file list has been copied out.
func (c *Client) GetInfo(ctx context.Context, magnetLink string) (*TorrentInfo, error) {
	t, err := c.client.AddMagnet(magnetLink)
	if err != nil {
		return nil, fmt.Errorf("add magnet: %w", err)
	}
	defer t.Drop()

	for _, tracker := range c.cfg.TrackerList {
		t.AddTrackers([][]string{{tracker}})
	}

	if err := c.waitForInfo(ctx, t); err != nil {
		return nil, err
	}

	info := t.Info()
	if info == nil {
		return nil, fmt.Errorf("missing torrent info")
	}

	files := make([]FileInfo, 0, len(t.Files()))
	for _, f := range t.Files() {
		files = append(files, FileInfo{
			Path: f.Path(),
			Size: f.Length(),
		})
	}

	return &TorrentInfo{
		Name:      info.BestName(),
		InfoHash:  t.InfoHash().HexString(),
		TotalSize: info.TotalLength(),
		FileCount: len(files),
		Files:     files,
	}, nil
}

// Download fetches the torrent's content into dest, blocking until every
// piece is present. The caller observes progress through the callback at
// the configured status interval.
func (c *Client) Download(ctx context.Context, magnetLink, dest string, progress ProgressFunc) (string, error) {
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat destination: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	spec, err := torrent.TorrentSpecFromMagnetUri(magnetLink)
	if err != nil {
		return "", fmt.Errorf("parse magnet: %w", err)
	}
	spec.Storage = storage.NewFile(dest)
	for _, tracker := range c.cfg.TrackerList {
		spec.Trackers = append(spec.Trackers, []string{tracker})
	}

	t, _, err := c.client.AddTorrentSpec(spec)
	if err != nil {
		return "", fmt.Errorf("add torrent: %w", err)
	}
	defer t.Drop()

	if err := c.waitForInfo(ctx, t); err != nil {
		return "", err
	}

	total := t.Length()
	t.DownloadAll()

	logger := c.cfg.Logger.WithField("torrent", t.Name())
	logger.Infof("download started into %s", dest)

	ticker := time.NewTicker(c.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			completed := t.BytesCompleted()
			if progress != nil {
				progress(completed, total)
			}
			if t.BytesMissing() == 0 {
				logger.Info("download completed")
				return dest, nil
			}
		}
	}
}

func (c *Client) waitForInfo(ctx context.Context, t *torrent.Torrent) error {
	if c.cfg.MetadataTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.MetadataTimeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrMetadataTimeout
		}
		return ctx.Err()
	case <-t.GotInfo():
		return nil
	}
}

func defaultTrackers() []string {
	return []string{
		"udp://tracker.opentrackr.org:1337/announce",
		"udp://tracker.openbittorrent.com:6969/announce",
		"udp://open.stealth.si:80/announce",
		"udp://exodus.desync.com:6969/announce",
		"http://tracker.opentrackr.org:1337/announce",
		"http://tracker.openbittorrent.com:80/announce",
		"udp://tracker.torrent.eu.org:451/announce",
		"udp://tracker.moeking.me:6969/announce",
	}
}

var _ Acquirer = (*Client)(nil)
