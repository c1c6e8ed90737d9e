package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	interTagGap = regexp.MustCompile(`>\s+<`)
)

// TempSite creates a temporary site directory with an empty posts folder
func TempSite(t *testing.T, name string) string {
	t.Helper()
	siteDir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Join(siteDir, "posts"), 0o755))
	return siteDir
}

// WritePost writes a Markdown article into the site's posts folder
func WritePost(t *testing.T, siteDir, name, content string) {
	t.Helper()
	WriteFile(t, siteDir, filepath.Join("posts", name), content)
}

// WriteFile writes content to a file in the test directory
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()
	fullPath := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
}

// ReadFile reads content from a test file
func ReadFile(t *testing.T, dir, path string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, path))
	require.NoError(t, err)
	return string(content)
}

// NormalizeHTML collapses whitespace so markup can be compared loosely
func NormalizeHTML(html string) string {
	html = whitespace.ReplaceAllString(html, " ")
	html = interTagGap.ReplaceAllString(html, "><")
	return strings.TrimSpace(html)
}
