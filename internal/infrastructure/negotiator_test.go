package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

func newTestNegotiator(t *testing.T, binary string) *FormatNegotiator {
	t.Helper()
	runner := NewAuthRunner(NewCookieResolver(nil), zap.NewNop())
	return NewFormatNegotiator(binary, runner, zap.NewNop())
}

func TestNegotiator_InspectAudioOnly(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh",
		`echo '{"acodec": "mp4a.40.2", "vcodec": "none"}'`)

	n := newTestNegotiator(t, script)
	plan, usedCreds := n.Inspect(context.Background(),
		domain.MediaTarget{URL: "https://example.com/v"}, "140", false)

	require.NotNil(t, plan)
	assert.False(t, usedCreds)
	assert.Equal(t, domain.PlanSourceInspected, plan.Source)
	assert.True(t, plan.HasAudio)
	assert.True(t, plan.IsAudioOnly)
	assert.Equal(t, "140", plan.FormatExpression)
	assert.Equal(t, domain.ContainerAudio, plan.Container)
	assert.False(t, plan.NeedsPostProcess)
}

func TestNegotiator_InspectVideoOnly(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh",
		`echo '{"acodec": "none", "vcodec": "avc1.64002a"}'`)

	n := newTestNegotiator(t, script)
	plan, _ := n.Inspect(context.Background(),
		domain.MediaTarget{URL: "https://example.com/v"}, "299", false)

	require.NotNil(t, plan)
	assert.Equal(t, domain.PlanSourceInspected, plan.Source)
	assert.False(t, plan.HasAudio)
	assert.False(t, plan.IsAudioOnly)
	assert.True(t, plan.NeedsMerge())
	assert.Equal(t, "299+bestaudio", plan.FormatExpression)
	assert.Equal(t, domain.ContainerMP4, plan.Container)
	assert.True(t, plan.NeedsPostProcess)
}

func TestNegotiator_InspectCombined(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh",
		`echo '{"acodec": "mp4a.40.2", "vcodec": "avc1.64002a"}'`)

	n := newTestNegotiator(t, script)
	plan, _ := n.Inspect(context.Background(),
		domain.MediaTarget{URL: "https://example.com/v"}, "22", false)

	assert.True(t, plan.HasAudio)
	assert.False(t, plan.IsAudioOnly)
	assert.False(t, plan.NeedsMerge())
	assert.Equal(t, "22", plan.FormatExpression)
	// Combined formats still get remuxed into a clean MP4.
	assert.True(t, plan.NeedsPostProcess)
}

func TestNegotiator_InspectSkipsWarningLines(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh", `
echo 'WARNING: some extractor noise'
echo '{"acodec": "mp4a.40.2", "vcodec": "none"}'`)

	n := newTestNegotiator(t, script)
	plan, _ := n.Inspect(context.Background(),
		domain.MediaTarget{URL: "https://example.com/v"}, "140", false)

	assert.Equal(t, domain.PlanSourceInspected, plan.Source)
	assert.True(t, plan.IsAudioOnly)
}

func TestNegotiator_HeuristicFallback(t *testing.T) {
	n := newTestNegotiator(t, "/nonexistent/probe-binary")

	tests := []struct {
		name         string
		formatID     string
		combinedHint bool
		hasAudio     bool
		isAudioOnly  bool
		expr         string
	}{
		{"known audio-only id", "140", false, true, true, "140"},
		{"unknown id without hint", "299", false, false, false, "299+bestaudio"},
		{"unknown id with combined hint", "22", true, true, false, "22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, _ := n.Inspect(context.Background(),
				domain.MediaTarget{URL: "https://example.com/v"}, tt.formatID, tt.combinedHint)

			// The inspection failure never reaches the caller.
			require.NotNil(t, plan)
			assert.Equal(t, domain.PlanSourceHeuristic, plan.Source)
			assert.Equal(t, tt.hasAudio, plan.HasAudio)
			assert.Equal(t, tt.isAudioOnly, plan.IsAudioOnly)
			assert.Equal(t, tt.expr, plan.FormatExpression)
		})
	}
}

func TestNegotiator_MalformedProbeOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh", `echo 'not json at all'`)

	n := newTestNegotiator(t, script)
	plan, _ := n.Inspect(context.Background(),
		domain.MediaTarget{URL: "https://example.com/v"}, "140", false)

	require.NotNil(t, plan)
	assert.Equal(t, domain.PlanSourceHeuristic, plan.Source)
	assert.True(t, plan.IsAudioOnly)
}
