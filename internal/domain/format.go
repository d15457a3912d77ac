package domain

// MediaTarget identifies the remote media a caller wants downloaded.
// It is immutable once created.
type MediaTarget struct {
	URL   string
	Title string
}

// OutputContainer is the container the finished artifact is delivered in.
type OutputContainer string

const (
	// ContainerAudio streams the format as-is, no post-processing.
	ContainerAudio OutputContainer = "m4a"
	// ContainerMP4 requires a remux or merge step before delivery.
	ContainerMP4 OutputContainer = "mp4"
)

// PlanSource records how a FormatPlan was decided.
type PlanSource string

const (
	// PlanSourceInspected means the plan came from a successful
	// single-format metadata probe of the extraction tool.
	PlanSourceInspected PlanSource = "inspected"
	// PlanSourceHeuristic means the probe failed and the plan was
	// classified from the format identifier alone. Correctness is
	// reduced in this mode, not removed.
	PlanSourceHeuristic PlanSource = "heuristic"
)

// FormatPlan is the negotiated decision for one download request.
// It is computed once and never mutated.
type FormatPlan struct {
	RequestedFormatID string          `json:"requested_format_id"`
	HasAudio          bool            `json:"has_audio"`
	IsAudioOnly       bool            `json:"is_audio_only"`
	FormatExpression  string          `json:"format_expression"`
	Container         OutputContainer `json:"container"`
	NeedsPostProcess  bool            `json:"needs_post_process"`
	Source            PlanSource      `json:"source"`
}

// NeedsMerge reports whether a supplementary audio stream must be
// downloaded and merged in.
func (p *FormatPlan) NeedsMerge() bool {
	return !p.HasAudio && !p.IsAudioOnly
}
