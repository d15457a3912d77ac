package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		ok       bool
		percent  float64
		sizeMB   float64
		speedMBs float64
		eta      string
	}{
		{
			name:     "full download line",
			line:     `[download]  45.5% of 50.00MiB at 1.23MiB/s ETA 00:12`,
			ok:       true,
			percent:  45.5,
			sizeMB:   50.0,
			speedMBs: 1.23,
			eta:      "00:12",
		},
		{
			name:    "gigabyte size",
			line:    `[download] 100% of 2.00GiB`,
			ok:      true,
			percent: 100,
			sizeMB:  2048,
		},
		{
			name:    "kilobyte size",
			line:    `[download]  10.0% of 512.00KiB`,
			ok:      true,
			percent: 10,
			sizeMB:  0.5,
		},
		{
			name:    "estimated size",
			line:    `[download]  3.2% of ~ 120.50MiB at 500.00KiB/s ETA 04:00`,
			ok:      true,
			percent: 3.2,
			sizeMB:  120.5,
		},
		{
			name:    "hours in eta",
			line:    `[download]  1.0% of 4.00GiB at 1.00MiB/s ETA 1:08:15`,
			ok:      true,
			percent: 1.0,
			sizeMB:  4096,
			eta:     "1:08:15",
		},
		{
			name: "destination line carries no progress",
			line: `[download] Destination: /tmp/video.mp4`,
			ok:   false,
		},
		{
			name: "merger line carries no progress",
			line: `[Merger] Merging formats into "/tmp/video.mp4"`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, ok := ParseProgressLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.percent, update.Percent, 0.001)
			assert.InDelta(t, tt.sizeMB, update.SizeMB, 0.001)
			if tt.speedMBs > 0 {
				assert.InDelta(t, tt.speedMBs, update.SpeedMBs, 0.001)
			}
			if tt.eta != "" {
				assert.Equal(t, tt.eta, update.ETA)
			}
		})
	}
}

func TestIsMergeLine(t *testing.T) {
	assert.True(t, IsMergeLine(`[Merger] Merging formats into "/tmp/out.mp4"`))
	assert.True(t, IsMergeLine(`[VideoRemuxer] Remuxing video from ts to mp4`))
	assert.False(t, IsMergeLine(`[download]  45.5% of 50.00MiB`))
}

func TestIsErrorLine(t *testing.T) {
	assert.True(t, IsErrorLine(`ERROR: unable to extract video data`))
	assert.True(t, IsErrorLine(`Unable to download webpage: HTTP Error 403`))
	// Thumbnail warnings are noise, not failures.
	assert.False(t, IsErrorLine(`WARNING: unable to download video thumbnail`))
	assert.False(t, IsErrorLine(`[download]  45.5% of 50.00MiB`))
}

func TestProgressState_SingleStream(t *testing.T) {
	state := NewProgressState(false)

	percent, emit := state.Observe(ProgressUpdate{Percent: 10.2, SizeMB: 50})
	require.True(t, emit)
	assert.Equal(t, 10, percent)

	// Fractional repeats within the same floor are suppressed.
	_, emit = state.Observe(ProgressUpdate{Percent: 10.9, SizeMB: 50})
	assert.False(t, emit)

	percent, emit = state.Observe(ProgressUpdate{Percent: 11.5, SizeMB: 50})
	require.True(t, emit)
	assert.Equal(t, 11, percent)
}

func TestProgressState_TwoStreams(t *testing.T) {
	state := NewProgressState(true)

	// First stream: 10MB.
	_, emit := state.Observe(ProgressUpdate{Percent: 10, SizeMB: 10})
	require.True(t, emit)
	_, emit = state.Observe(ProgressUpdate{Percent: 48, SizeMB: 10})
	require.True(t, emit)

	// A clearly different size means the tool moved to the second
	// stream; the first banks in full.
	percent, _ := state.Observe(ProgressUpdate{Percent: 5, SizeMB: 90})
	assert.True(t, state.FirstStreamDone)
	assert.InDelta(t, 90.0, state.SecondStreamMB, 0.001)
	assert.Equal(t, 14, percent) // (10 + 4.5) / 100

	// 10MB done plus 50% of 90MB = 55% combined.
	percent, emit = state.Observe(ProgressUpdate{Percent: 50, SizeMB: 90})
	require.True(t, emit)
	assert.Equal(t, 55, percent)
	assert.InDelta(t, 55.0, state.Combined(), 0.001)
}

func TestProgressState_SizeWithinTolerance(t *testing.T) {
	state := NewProgressState(true)

	state.Observe(ProgressUpdate{Percent: 10, SizeMB: 50})
	// 0.05MB drift is a rounding artifact, not a second stream.
	state.Observe(ProgressUpdate{Percent: 20, SizeMB: 50.05})

	assert.False(t, state.FirstStreamDone)
	assert.InDelta(t, 0.0, state.SecondStreamMB, 0.001)
}

func TestProgressState_SingleStreamEstimateDrift(t *testing.T) {
	state := NewProgressState(false)

	// Estimated totals wander as the tool refines them; with one stream
	// that drift must never be read as a stream boundary.
	percent, emit := state.Observe(ProgressUpdate{Percent: 50, SizeMB: 4.0})
	require.True(t, emit)
	assert.Equal(t, 50, percent)

	percent, emit = state.Observe(ProgressUpdate{Percent: 60, SizeMB: 4.6})
	require.True(t, emit)
	assert.Equal(t, 60, percent)
	assert.False(t, state.FirstStreamDone)
	assert.InDelta(t, 60.0, state.Combined(), 0.001)
}

func TestProgressState_UnknownSize(t *testing.T) {
	state := NewProgressState(false)

	// Without any size figure, the raw percent is the best available.
	percent, emit := state.Observe(ProgressUpdate{Percent: 30})
	require.True(t, emit)
	assert.Equal(t, 30, percent)
}

func TestProgressState_MonotonicEmission(t *testing.T) {
	state := NewProgressState(true)

	var emitted []int
	updates := []float64{0, 1.2, 1.8, 5, 4.5, 5.9, 6.1, 99.9, 100}
	for _, p := range updates {
		if percent, emit := state.Observe(ProgressUpdate{Percent: p, SizeMB: 100}); emit {
			emitted = append(emitted, percent)
		}
	}

	assert.Equal(t, []int{0, 1, 5, 6, 99, 100}, emitted)
	for i := 1; i < len(emitted); i++ {
		assert.Greater(t, emitted[i], emitted[i-1])
	}
}

func TestToMegabytes(t *testing.T) {
	assert.InDelta(t, 2048, toMegabytes(2, "GiB"), 0.001)
	assert.InDelta(t, 1, toMegabytes(1, "MiB"), 0.001)
	assert.InDelta(t, 0.25, toMegabytes(256, "KiB"), 0.001)
	assert.InDelta(t, 1.0/1024/1024, toMegabytes(1, "B"), 1e-9)
}
