package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds explicit transcoder settings; nothing is read from globals.
type Config struct {
	FFmpegPath     string
	FFprobePath    string
	SegmentSeconds int
	Presets        []Preset
	Logger         *logrus.Logger
}

// Result aggregates what the caller persists after a successful run.
type Result struct {
	Variants  []string
	Duration  float64
	Width     int
	Height    int
	SizeBytes int64
}

// Transcoder turns a single source file into a segmented adaptive-bitrate
// package: one HLS rendition per admissible preset, a master playlist, and
// a thumbnail.
type Transcoder struct {
	cfg Config
}

func NewTranscoder(cfg Config) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 6
	}
	if len(cfg.Presets) == 0 {
		cfg.Presets = DefaultPresets
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Transcoder{cfg: cfg}
}

// ProcessVideo runs probe -> select -> transcode -> master playlist ->
// thumbnail. Any probe or encode failure aborts with a descriptive error;
// partial output on disk is left for the caller to discard.
func (t *Transcoder) ProcessVideo(ctx context.Context, path, outputDir string) (*Result, error) {
	info, err := t.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	variants := SelectVariants(info.Width, info.Height, t.cfg.Presets)
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrNoVariants, info.Width, info.Height)
	}

	if err := t.Transcode(ctx, path, outputDir, variants, info.HasAudio); err != nil {
		return nil, err
	}
	if err := t.BuildMasterPlaylist(outputDir, variants); err != nil {
		return nil, err
	}
	if err := t.GenerateThumbnail(ctx, path, outputDir, info.Duration); err != nil {
		return nil, err
	}

	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name
	}
	return &Result{
		Variants:  names,
		Duration:  info.Duration,
		Width:     info.Width,
		Height:    info.Height,
		SizeBytes: info.SizeBytes,
	}, nil
}

// Transcode encodes one HLS rendition per variant into its own
// subdirectory. A second call over the same outputDir overwrites prior
// output.
func (t *Transcoder) Transcode(ctx context.Context, path, outputDir string, variants []Preset, hasAudio bool) error {
	for _, variant := range variants {
		variantDir := filepath.Join(outputDir, variant.Name)
		if err := os.MkdirAll(variantDir, 0o755); err != nil {
			return &EncodeError{Path: path, Variant: variant.Name, Err: fmt.Errorf("create variant dir: %w", err)}
		}

		args := buildVariantArgs(path, variantDir, variant, t.cfg.SegmentSeconds, hasAudio)
		t.cfg.Logger.Debugf("ffmpeg %s", strings.Join(args, " "))

		cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return &EncodeError{
				Path:    path,
				Variant: variant.Name,
				Err:     fmt.Errorf("%w: %s", err, tailLines(stderr.String(), 5)),
			}
		}
	}
	return nil
}

// buildVariantArgs maps exactly one video stream and, when present, the
// first audio track; a silent source is encoded without audio.
func buildVariantArgs(path, variantDir string, variant Preset, segmentSeconds int, hasAudio bool) []string {
	args := []string{
		"-i", path,
		"-map", "0:v:0",
	}
	if hasAudio {
		args = append(args, "-map", "0:a:0")
	}
	args = append(args,
		"-vf", fmt.Sprintf("scale=%d:%d", variant.Width, variant.Height),
		"-c:v", "libx264",
		"-b:v", fmt.Sprintf("%d", variant.Bitrate),
		"-maxrate", fmt.Sprintf("%d", variant.Bitrate),
		"-bufsize", fmt.Sprintf("%d", variant.Bitrate*2),
	)
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(variantDir, "seg_%03d.ts"),
		"-y", filepath.Join(variantDir, "index.m3u8"),
	)
	return args
}

// BuildMasterPlaylist writes master.m3u8 enumerating the variants in the
// same order SelectVariants produced them.
func (t *Transcoder) BuildMasterPlaylist(outputDir string, variants []Preset) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, variant := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", variant.Bitrate, variant.Width, variant.Height)
		fmt.Fprintf(&b, "%s/index.m3u8\n", variant.Name)
	}

	masterPath := filepath.Join(outputDir, "master.m3u8")
	if err := os.WriteFile(masterPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}
	return nil
}

// GenerateThumbnail extracts one frame and writes it as thumbnail.jpg.
func (t *Transcoder) GenerateThumbnail(ctx context.Context, path, outputDir string, duration float64) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	offset := thumbnailOffset(duration)
	args := []string{
		"-ss", fmt.Sprintf("%.2f", offset),
		"-i", path,
		"-vframes", "1",
		"-f", "image2",
		"-y", filepath.Join(outputDir, "thumbnail.jpg"),
	}

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extract thumbnail from %s: %w: %s", path, err, tailLines(stderr.String(), 5))
	}
	return nil
}

// thumbnailOffset picks a frame offset of 30% into the video, clamped to
// [5, duration-2]. Very short clips fall back to the first frame.
func thumbnailOffset(duration float64) float64 {
	if duration <= 7 {
		return 0
	}
	offset := duration * 0.3
	if offset < 5 {
		offset = 5
	}
	if max := duration - 2; offset > max {
		offset = max
	}
	return offset
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
