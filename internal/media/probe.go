package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// SourceInfo carries the intrinsic metadata of a probed source file.
type SourceInfo struct {
	Width     int
	Height    int
	Duration  float64
	SizeBytes int64
	HasAudio  bool
}

// ffprobe JSON wire types. ffprobe reports numbers as strings.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

// Probe runs a single ffprobe JSON call against path.
func (t *Transcoder) Probe(ctx context.Context, path string) (*SourceInfo, error) {
	cmd := exec.CommandContext(ctx, t.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}

	info, err := parseProbeJSON(out)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	return info, nil
}

func parseProbeJSON(data []byte) (*SourceInfo, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var info SourceInfo
	foundVideo := false
	for _, stream := range raw.Streams {
		switch stream.CodecType {
		case "video":
			if !foundVideo {
				info.Width = stream.Width
				info.Height = stream.Height
				foundVideo = true
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !foundVideo {
		return nil, errors.New("no video stream")
	}
	if info.Width == 0 || info.Height == 0 {
		return nil, errors.New("video stream has no resolution")
	}

	if d := strings.TrimSpace(raw.Format.Duration); d != "" {
		duration, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", d, err)
		}
		info.Duration = duration
	}
	if s := strings.TrimSpace(raw.Format.Size); s != "" {
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse size %q: %w", s, err)
		}
		info.SizeBytes = size
	}

	return &info, nil
}
