package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Phase represents the orchestrator's position in the download lifecycle
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseMerging     Phase = "merging"
	PhaseComplete    Phase = "complete"
	PhaseFailed      Phase = "failed"
)

// ProgressUpdate is the structured delta extracted from a single line of
// tool output. SizeMB is the reported total size of the stream currently
// being downloaded, normalized to megabytes; zero means the line carried
// no size figure.
type ProgressUpdate struct {
	Percent  float64
	SizeMB   float64
	SpeedMBs float64
	ETA      string
}

// yt-dlp progress lines look like:
//   [download]  45.5% of 50.00MiB at 1.23MiB/s ETA 00:12
// Both stdout and stderr carry them, and not every line matches.
var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	sizePattern    = regexp.MustCompile(`of\s+~?\s*(\d+(?:\.\d+)?)\s*([KMG]?i?B)`)
	speedPattern   = regexp.MustCompile(`at\s+(\d+(?:\.\d+)?)\s*([KMG]?i?B)/s`)
	etaPattern     = regexp.MustCompile(`ETA\s+(\d{1,2}:\d{2}(?::\d{2})?)`)
)

// ParseProgressLine extracts progress information from one line of the
// extraction tool's output. It returns false when the line carries no
// percentage; such lines are simply not progress lines.
func ParseProgressLine(line string) (ProgressUpdate, bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return ProgressUpdate{}, false
	}

	var update ProgressUpdate
	update.Percent, _ = strconv.ParseFloat(m[1], 64)

	if m := sizePattern.FindStringSubmatch(line); m != nil {
		value, _ := strconv.ParseFloat(m[1], 64)
		update.SizeMB = toMegabytes(value, m[2])
	}
	if m := speedPattern.FindStringSubmatch(line); m != nil {
		value, _ := strconv.ParseFloat(m[1], 64)
		update.SpeedMBs = toMegabytes(value, m[2])
	}
	if m := etaPattern.FindStringSubmatch(line); m != nil {
		update.ETA = m[1]
	}

	return update, true
}

// toMegabytes converts a size figure with a binary-prefix unit to
// megabytes. Conversion is 1024-based throughout.
func toMegabytes(value float64, unit string) float64 {
	switch strings.ToUpper(strings.TrimSuffix(strings.TrimSuffix(unit, "B"), "i")) {
	case "G":
		return value * 1024
	case "M":
		return value
	case "K":
		return value / 1024
	default:
		return value / (1024 * 1024)
	}
}

// mergeMarkers are substrings the tool prints when it hands off to the
// remux/merge post-processor.
var mergeMarkers = []string{
	"[Merger]",
	"Merging formats",
	"[ffmpeg] Merging",
	"[VideoRemuxer]",
	"Remuxing",
}

// IsMergeLine reports whether a line marks the start of the merge/remux
// phase.
func IsMergeLine(line string) bool {
	for _, marker := range mergeMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// errorMarkers are substrings that indicate the tool has hit a hard
// failure even though the process may not have exited yet.
var errorMarkers = []string{
	"ERROR:",
	"Unable to download webpage",
}

// IsErrorLine reports whether a line carries an explicit tool error.
func IsErrorLine(line string) bool {
	for _, marker := range errorMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// streamSizeTolerance is how far (in MB) a newly reported total size may
// drift from the first stream's before it is read as the tool having
// moved on to a second stream.
const streamSizeTolerance = 0.1

// ProgressState tracks combined progress for one active download across
// the tool's two sequential streams (video then audio, when a merge is
// in play). One instance per in-flight download; never shared.
type ProgressState struct {
	FirstStreamMB   float64
	SecondStreamMB  float64
	FirstStreamDone bool
	CurrentPercent  float64
	LastEmitted     int
	Phase           Phase

	twoPhase      bool
	accumulatedMB float64
}

// NewProgressState returns a fresh state in the downloading phase with
// nothing emitted yet. twoPhase enables second-stream detection; a
// single-stream download must not treat a drifting size estimate as a
// stream boundary.
func NewProgressState(twoPhase bool) *ProgressState {
	return &ProgressState{LastEmitted: -1, Phase: PhaseDownloading, twoPhase: twoPhase}
}

// Observe folds one parsed update into the state and reports the floored
// combined percentage along with whether it should be emitted. Emission
// happens only when the floor strictly increases, so the event stream
// stays monotonic and deduplicated.
func (s *ProgressState) Observe(update ProgressUpdate) (int, bool) {
	if s.twoPhase && update.SizeMB > 0 {
		switch {
		case s.FirstStreamMB == 0:
			s.FirstStreamMB = update.SizeMB
		case !s.FirstStreamDone && math.Abs(update.SizeMB-s.FirstStreamMB) > streamSizeTolerance:
			// The tool reports each stream's total size; a new total
			// means the first stream finished and the second began.
			s.FirstStreamDone = true
			s.SecondStreamMB = update.SizeMB
			s.accumulatedMB += s.FirstStreamMB
		}
	}

	s.CurrentPercent = update.Percent

	combined := int(math.Floor(s.Combined()))
	if combined <= s.LastEmitted {
		return combined, false
	}
	s.LastEmitted = combined
	return combined, true
}

// Combined returns the unified percentage across both streams: completed
// streams count in full, the current stream by its in-progress fraction.
func (s *ProgressState) Combined() float64 {
	total := s.FirstStreamMB + s.SecondStreamMB
	if total == 0 {
		return s.CurrentPercent
	}

	current := s.FirstStreamMB
	if s.FirstStreamDone {
		current = s.SecondStreamMB
	}
	done := s.accumulatedMB + s.CurrentPercent/100*current
	return done / total * 100
}
