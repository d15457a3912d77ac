package infrastructure

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// audioOnlyFormatIDs are well-known audio-only format identifiers, used
// only when the inspection call itself fails and the plan has to be
// classified from the identifier alone.
var audioOnlyFormatIDs = map[string]bool{
	"139": true,
	"140": true,
	"141": true,
	"171": true,
	"249": true,
	"250": true,
	"251": true,
	"599": true,
	"600": true,
}

// formatProbe is the slice of the tool's single-format JSON metadata the
// negotiator cares about.
type formatProbe struct {
	ACodec string `json:"acodec"`
	VCodec string `json:"vcodec"`
}

// FormatNegotiator decides, for a requested format, whether it already
// carries audio or needs a supplementary audio stream merged in, and
// which container the result is delivered in.
type FormatNegotiator struct {
	binary string
	runner *AuthRunner
	logger *zap.Logger
}

// NewFormatNegotiator creates a new format negotiator
func NewFormatNegotiator(binary string, runner *AuthRunner, logger *zap.Logger) *FormatNegotiator {
	return &FormatNegotiator{binary: binary, runner: runner, logger: logger}
}

// Inspect probes the target for exactly the requested format and builds
// the plan from the reported codecs. If the probe fails it falls back to
// identifier heuristics. Degraded, but never an error: a caller always
// gets a usable plan. The returned usedCredentials flag records the
// authentication state the probe succeeded in, so the download that
// follows can be made in the same state.
func (n *FormatNegotiator) Inspect(ctx context.Context, target domain.MediaTarget, formatID string, combinedHint bool) (*domain.FormatPlan, bool) {
	result, err := n.runner.Run(ctx, n.binary,
		"-j", "--no-download", "-f", formatID, target.URL)
	if err != nil {
		n.logger.Warn("Format inspection failed, using identifier heuristics",
			zap.String("format_id", formatID), zap.Error(err))
		return n.heuristicPlan(formatID, combinedHint), false
	}

	var probe formatProbe
	if jsonErr := json.Unmarshal(firstJSONLine(result.Output), &probe); jsonErr != nil {
		n.logger.Warn("Format inspection output malformed, using identifier heuristics",
			zap.String("format_id", formatID), zap.Error(jsonErr))
		return n.heuristicPlan(formatID, combinedHint), result.UsedCredentials
	}

	hasAudio := probe.ACodec != "" && probe.ACodec != "none"
	isAudioOnly := probe.VCodec == "" || probe.VCodec == "none"

	return buildPlan(formatID, hasAudio, isAudioOnly, domain.PlanSourceInspected), result.UsedCredentials
}

// heuristicPlan classifies a format from its identifier alone. Known
// audio-only ids are treated as self-contained audio; an explicit
// combined hint from the caller is trusted; anything else is assumed to
// be video-only and gets a merge.
func (n *FormatNegotiator) heuristicPlan(formatID string, combinedHint bool) *domain.FormatPlan {
	if audioOnlyFormatIDs[formatID] {
		return buildPlan(formatID, true, true, domain.PlanSourceHeuristic)
	}
	return buildPlan(formatID, combinedHint, false, domain.PlanSourceHeuristic)
}

// buildPlan derives the downstream decisions from the audio/video
// classification. Any MP4 delivery needs post-processing: combined
// formats get a container remux, video-only formats get a merge.
func buildPlan(formatID string, hasAudio, isAudioOnly bool, source domain.PlanSource) *domain.FormatPlan {
	plan := &domain.FormatPlan{
		RequestedFormatID: formatID,
		HasAudio:          hasAudio,
		IsAudioOnly:       isAudioOnly,
		FormatExpression:  formatID,
		Container:         domain.ContainerMP4,
		Source:            source,
	}
	if !hasAudio {
		plan.FormatExpression = formatID + "+bestaudio"
	}
	if isAudioOnly {
		plan.Container = domain.ContainerAudio
	}
	plan.NeedsPostProcess = plan.Container == domain.ContainerMP4
	return plan
}

// firstJSONLine returns the first non-empty line of the tool's output.
// Inspection mode emits single-line JSON, but warnings can precede it
// on some targets.
func firstJSONLine(output []byte) []byte {
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "{") {
			return []byte(line)
		}
	}
	return output
}
