package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestInspector(t *testing.T, binary string) *MediaInspector {
	t.Helper()
	log := zap.NewNop()
	runner := NewAuthRunner(NewCookieResolver(nil), log)
	return NewMediaInspector(binary, runner, log)
}

func TestMediaInspector_Info(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh", `
echo "WARNING: some noise first"
echo '{"title":"Concert","uploader":"","channel":"The Band","thumbnail":"https://example.com/t.jpg","duration":245.5,"formats":[`+
		`{"format_id":"sb0","ext":"mhtml","acodec":"none","vcodec":"none"},`+
		`{"format_id":"140","ext":"m4a","format_note":"medium","abr":129.4,"acodec":"mp4a.40.2","vcodec":"none"},`+
		`{"format_id":"299","ext":"mp4","resolution":"1920x1080","acodec":"none","vcodec":"avc1.64002a"},`+
		`{"format_id":"22","ext":"mp4","resolution":"1280x720","acodec":"mp4a.40.2","vcodec":"avc1.64001F"}]}'`)
	inspector := newTestInspector(t, script)

	info, err := inspector.Info(context.Background(), "https://example.com/v")
	require.NoError(t, err)

	assert.Equal(t, "Concert", info.Title)
	// Uploader is empty, so the channel name stands in.
	assert.Equal(t, "The Band", info.Author)
	assert.Equal(t, 245.5, info.DurationSec)
	assert.False(t, info.RequiresCredentials)

	// The storyboard track is dropped; real formats survive.
	require.Len(t, info.Formats, 3)
	assert.Equal(t, "140", info.Formats[0].ID)
	assert.True(t, info.Formats[0].AudioOnly)
	assert.True(t, info.Formats[0].HasAudio)
	assert.Equal(t, "299", info.Formats[1].ID)
	assert.False(t, info.Formats[1].HasAudio)
	assert.Equal(t, "22", info.Formats[2].ID)
	assert.True(t, info.Formats[2].HasAudio)
	assert.False(t, info.Formats[2].AudioOnly)
}

func TestMediaInspector_CredentialedProbe(t *testing.T) {
	dir := t.TempDir()
	cookiePath := writeCookieFile(t, dir)
	script := writeScript(t, dir, "probe.sh",
		`echo '{"title":"Members Only","formats":[]}'`)

	log := zap.NewNop()
	runner := NewAuthRunner(NewCookieResolver([]string{cookiePath}), log)
	inspector := NewMediaInspector(script, runner, log)

	info, err := inspector.Info(context.Background(), "https://example.com/v")
	require.NoError(t, err)
	assert.Equal(t, "Members Only", info.Title)
	assert.True(t, info.RequiresCredentials)
}

func TestMediaInspector_ProbeFailure(t *testing.T) {
	inspector := newTestInspector(t, "/nonexistent/probe")

	_, err := inspector.Info(context.Background(), "https://example.com/v")
	assert.Error(t, err)
}

func TestMediaInspector_MalformedMetadata(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh", `echo "not json at all"`)
	inspector := newTestInspector(t, script)

	_, err := inspector.Info(context.Background(), "https://example.com/v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed media metadata")
}
