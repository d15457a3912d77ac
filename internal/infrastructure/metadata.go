package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// FormatVariant is one selectable format offered by a media resource.
type FormatVariant struct {
	ID         string  `json:"id"`
	Ext        string  `json:"ext,omitempty"`
	Note       string  `json:"note,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	AudioBR    float64 `json:"abr,omitempty"`
	HasAudio   bool    `json:"has_audio"`
	AudioOnly  bool    `json:"audio_only"`
}

// MediaInfo is the caller-facing summary of a media resource.
// RequiresCredentials records whether the probe only succeeded in
// credentialed mode; callers must pass that decision through to the
// download request so negotiation and retrieval see the same formats.
type MediaInfo struct {
	Title               string          `json:"title"`
	Author              string          `json:"author,omitempty"`
	Thumbnail           string          `json:"thumbnail,omitempty"`
	DurationSec         float64         `json:"duration_sec,omitempty"`
	RequiresCredentials bool            `json:"requires_credentials"`
	Formats             []FormatVariant `json:"formats"`
}

type infoProbe struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Channel   string  `json:"channel"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Formats   []struct {
		FormatID   string  `json:"format_id"`
		Ext        string  `json:"ext"`
		FormatNote string  `json:"format_note"`
		Resolution string  `json:"resolution"`
		ABR        float64 `json:"abr"`
		ACodec     string  `json:"acodec"`
		VCodec     string  `json:"vcodec"`
	} `json:"formats"`
}

// MediaInspector builds caller-facing metadata summaries through the
// same authenticated runner the downloads use.
type MediaInspector struct {
	binary string
	runner *AuthRunner
	logger *zap.Logger
}

// NewMediaInspector creates a new media inspector
func NewMediaInspector(binary string, runner *AuthRunner, logger *zap.Logger) *MediaInspector {
	return &MediaInspector{binary: binary, runner: runner, logger: logger}
}

// Info probes the target in JSON-metadata mode and summarizes it.
func (m *MediaInspector) Info(ctx context.Context, url string) (*MediaInfo, error) {
	result, err := m.runner.Run(ctx, m.binary, "-j", "--no-download", url)
	if err != nil {
		return nil, fmt.Errorf("media inspection failed: %w", err)
	}

	var probe infoProbe
	if err := json.Unmarshal(firstJSONLine(result.Output), &probe); err != nil {
		return nil, fmt.Errorf("malformed media metadata: %w", err)
	}

	info := &MediaInfo{
		Title:               probe.Title,
		Author:              probe.Uploader,
		Thumbnail:           probe.Thumbnail,
		DurationSec:         probe.Duration,
		RequiresCredentials: result.UsedCredentials,
	}
	if info.Author == "" {
		info.Author = probe.Channel
	}

	for _, f := range probe.Formats {
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		audioOnly := f.VCodec == "" || f.VCodec == "none"
		if !hasAudio && audioOnly {
			// Storyboard/images track, not selectable media.
			continue
		}
		info.Formats = append(info.Formats, FormatVariant{
			ID:         f.FormatID,
			Ext:        f.Ext,
			Note:       f.FormatNote,
			Resolution: f.Resolution,
			AudioBR:    f.ABR,
			HasAudio:   hasAudio,
			AudioOnly:  audioOnly,
		})
	}

	m.logger.Debug("Media inspected",
		zap.String("url", url),
		zap.String("title", info.Title),
		zap.Int("formats", len(info.Formats)),
		zap.Bool("requires_credentials", info.RequiresCredentials))

	return info, nil
}
