package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownload(t *testing.T) {
	dl := NewDownload("https://example.com/watch?v=abc", "299")

	assert.NotEmpty(t, dl.ID)
	assert.Equal(t, StatusProcessing, dl.Status)
	assert.Equal(t, "299", dl.FormatID)
	assert.False(t, dl.IsTerminal())
}

func TestDownload_ApplyPlan(t *testing.T) {
	dl := NewDownload("https://example.com/watch?v=abc", "299")
	plan := &FormatPlan{
		RequestedFormatID: "299",
		FormatExpression:  "299+bestaudio",
		Container:         ContainerMP4,
		Source:            PlanSourceInspected,
		NeedsPostProcess:  true,
	}

	dl.ApplyPlan(plan)

	assert.Equal(t, "299+bestaudio", dl.FormatExpr)
	assert.Equal(t, "mp4", dl.Container)
	assert.Equal(t, "inspected", dl.PlanSource)
}

func TestDownload_Lifecycle(t *testing.T) {
	dl := NewDownload("https://example.com/watch?v=abc", "299")

	dl.MarkMerging()
	assert.Equal(t, StatusMerging, dl.Status)
	assert.False(t, dl.IsTerminal())

	dl.MarkCompleted("/staging/dl_1_abcd.mp4", "dl_1_abcd.mp4")
	assert.Equal(t, StatusCompleted, dl.Status)
	assert.Equal(t, 100, dl.Progress)
	require.NotNil(t, dl.CompletedAt)
	assert.True(t, dl.IsTerminal())
}

func TestDownload_TerminalStates(t *testing.T) {
	failed := NewDownload("https://example.com/a", "140")
	failed.MarkFailed("merge failed")
	assert.True(t, failed.IsTerminal())
	assert.Equal(t, "merge failed", failed.ErrorMessage)

	cancelled := NewDownload("https://example.com/b", "140")
	cancelled.MarkCancelled()
	assert.True(t, cancelled.IsTerminal())
}

func TestFormatPlan_NeedsMerge(t *testing.T) {
	videoOnly := &FormatPlan{HasAudio: false, IsAudioOnly: false}
	assert.True(t, videoOnly.NeedsMerge())

	combined := &FormatPlan{HasAudio: true, IsAudioOnly: false}
	assert.False(t, combined.NeedsMerge())

	audioOnly := &FormatPlan{HasAudio: true, IsAudioOnly: true}
	assert.False(t, audioOnly.NeedsMerge())
}
