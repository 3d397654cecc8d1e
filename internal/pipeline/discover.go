package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Recognized video file extensions (lowercase, with leading dot).
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".mpeg": true,
	".mpg":  true,
	".m4v":  true,
	".3gp":  true,
	".3g2":  true,
	".ts":   true,
	".vob":  true,
	".ogv":  true,
}

// IsVideoFile reports whether name carries a recognized video extension.
// The same allow-list filters torrent metadata before any download starts.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Discover walks root and returns every recognized video file, sorted
// case-insensitively by filename (ties broken by full path). The ordering
// is reused verbatim for playlist positions, so it must be stable across
// invocations. A missing or empty root yields an empty result, not an
// error.
func Discover(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtree: skip rather than fail the whole scan
			return nil
		}
		if !d.IsDir() && IsVideoFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})

	SortByBasename(files)
	return files
}

// SortByBasename orders paths the way Discover does.
func SortByBasename(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		a := strings.ToLower(filepath.Base(paths[i]))
		b := strings.ToLower(filepath.Base(paths[j]))
		if a != b {
			return a < b
		}
		return paths[i] < paths[j]
	})
}
