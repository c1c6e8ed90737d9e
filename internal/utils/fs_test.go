package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownFiles(t *testing.T) {
	dir := t.TempDir()

	for _, p := range []string{
		"b.md",
		"a.MD",
		filepath.Join("2024", "c.md"),
		"notes.txt",
		".draft.md",
		filepath.Join(".git", "x.md"),
	} {
		require.NoError(t, WriteFile(filepath.Join(dir, p), []byte("# x")))
	}

	files, err := MarkdownFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/c.md", "a.MD", "b.md"}, files)

	_, err = MarkdownFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, WriteFile(filepath.Join(src, "css", "site.css"), []byte("body{}")))
	require.NoError(t, WriteFile(filepath.Join(src, "favicon.ico"), []byte{0, 1, 2}))

	n, err := CopyDir(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ReadToString(filepath.Join(dst, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", got)
	assert.True(t, FileExists(filepath.Join(dst, "favicon.ico")))

	n, err = CopyDir(filepath.Join(src, "nope"), dst)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemoveDirContents(t *testing.T) {
	dir := t.TempDir()

	// Create nested structure
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("B"), 0o644))

	// Sanity
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Greater(t, len(entries), 0)

	// Remove contents
	require.NoError(t, RemoveDirContents(dir))

	// Directory should exist but be empty
	after, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, after, 0)
	assert.True(t, DirExists(dir))
}
