package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscoverSortsCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.mp4"))
	writeFile(t, filepath.Join(root, "sub", "A.mkv"))
	writeFile(t, filepath.Join(root, "c.avi"))

	found := Discover(root)
	require.Len(t, found, 3)
	assert.Equal(t, "A.mkv", filepath.Base(found[0]))
	assert.Equal(t, "b.mp4", filepath.Base(found[1]))
	assert.Equal(t, "c.avi", filepath.Base(found[2]))
}

func TestDiscoverIgnoresUnrecognizedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "movie.mp4"))
	writeFile(t, filepath.Join(root, "notes.txt"))
	writeFile(t, filepath.Join(root, "cover.jpg"))
	writeFile(t, filepath.Join(root, "sample.srt"))

	found := Discover(root)
	require.Len(t, found, 1)
	assert.Equal(t, "movie.mp4", filepath.Base(found[0]))
}

func TestDiscoverRecursesSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "season1", "ep1.mkv"))
	writeFile(t, filepath.Join(root, "season1", "extras", "ep0.webm"))
	writeFile(t, filepath.Join(root, "ep2.ts"))

	found := Discover(root)
	assert.Len(t, found, 3)
}

func TestDiscoverMissingRoot(t *testing.T) {
	found := Discover(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, found)
}

func TestDiscoverIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Zed.mp4"))
	writeFile(t, filepath.Join(root, "alpha.mkv"))
	writeFile(t, filepath.Join(root, "Mid.avi"))

	first := Discover(root)
	second := Discover(root)
	assert.Equal(t, first, second)
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("movie.mp4"))
	assert.True(t, IsVideoFile("MOVIE.MKV"))
	assert.True(t, IsVideoFile("dir/clip.webm"))
	assert.False(t, IsVideoFile("track.mp3"))
	assert.False(t, IsVideoFile("readme"))
	assert.False(t, IsVideoFile("archive.zip"))
}
