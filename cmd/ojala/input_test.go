package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPaths(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"a.png b.pdf", []string{"a.png", "b.pdf"}},
		{`'/tmp/my file.png'`, []string{"/tmp/my file.png"}},
		{`"/tmp/a b.pdf" c.png`, []string{"/tmp/a b.pdf", "c.png"}},
		{`/tmp/my\ file.png`, []string{"/tmp/my file.png"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{"", nil},
	}
	for _, tt := range tests {
		got, err := splitPaths(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitPaths(`'open`)
	assert.Error(t, err)
}

func TestDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a b.png")
	b := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(a, []byte("png"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("%PDF"), 0644))

	paths, ok := droppedFiles("'" + a + "' " + b + " ")
	require.True(t, ok)
	assert.Equal(t, []string{a, b}, paths)

	paths, ok = droppedFiles("file://" + b)
	require.True(t, ok)
	assert.Equal(t, []string{b}, paths)

	_, ok = droppedFiles("describe " + b)
	assert.False(t, ok, "text mixed with paths is a message")

	_, ok = droppedFiles(dir)
	assert.False(t, ok, "directories are not files")

	_, ok = droppedFiles("hello there")
	assert.False(t, ok)
}

func TestOpenSourcesSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(good, []byte("png"), 0644))

	sources, errs := openSources([]string{good, filepath.Join(dir, "missing.png")})
	require.Len(t, sources, 1)
	assert.Equal(t, "a.png", sources[0].Name())
	assert.Equal(t, "image/png", sources[0].MediaType())
	assert.Len(t, errs, 1)
}

func TestEnsureHistoryDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureHistoryDir(filepath.Join(dir, "nested", "history")))
	assert.DirExists(t, filepath.Join(dir, "nested"))
	require.NoError(t, ensureHistoryDir(""))

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	err := ensureHistoryDir(filepath.Join(blocker, "sub", "history"))
	assert.ErrorContains(t, err, "create ")
}
