package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieResolver_Locate(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "cookies.txt")
	second := filepath.Join(dir, "youtube_cookies.txt")
	require.NoError(t, os.WriteFile(second, []byte("# cookies"), 0644))

	resolver := NewCookieResolver([]string{first, second})

	// Only the second candidate exists.
	path, ok := resolver.Locate()
	require.True(t, ok)
	assert.Equal(t, second, path)

	// With both present, order wins.
	require.NoError(t, os.WriteFile(first, []byte("# cookies"), 0644))
	path, ok = resolver.Locate()
	require.True(t, ok)
	assert.Equal(t, first, path)
}

func TestCookieResolver_Absent(t *testing.T) {
	dir := t.TempDir()
	resolver := NewCookieResolver([]string{
		filepath.Join(dir, "nope.txt"),
		"",
	})

	_, ok := resolver.Locate()
	assert.False(t, ok)
	assert.Nil(t, resolver.Args())
}

func TestCookieResolver_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	resolver := NewCookieResolver([]string{dir})

	_, ok := resolver.Locate()
	assert.False(t, ok)
}

func TestCookieResolver_Args(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("# cookies"), 0644))

	resolver := NewCookieResolver([]string{path})
	assert.Equal(t, []string{"--cookies", path}, resolver.Args())
}
