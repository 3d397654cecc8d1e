package media

import (
	"errors"
	"fmt"
)

// ErrNoVariants is returned when the source resolution is below every
// preset, leaving no playable output to produce.
var ErrNoVariants = errors.New("source resolution below all presets")

// ProbeError indicates the source could not be probed or carries no
// decodable video stream. Fatal for that single file only.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// EncodeError indicates ffmpeg failed while producing one variant.
type EncodeError struct {
	Path    string
	Variant string
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s variant %s: %v", e.Path, e.Variant, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
