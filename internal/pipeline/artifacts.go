package pipeline

import "reelforge/internal/media"

// Stage names in execution order.
const (
	StageScript   = "script"
	StageEnhance  = "enhance"
	StageSegment  = "segment"
	StageNarrate  = "narrate"
	StageAlign    = "align"
	StagePlan     = "plan"
	StageDescribe = "describe"
	StageImages   = "images"
	StageClips    = "clips"
	StageAssemble = "assemble"
)

// StageOrder is the canonical stage sequence of a run.
var StageOrder = []string{
	StageScript,
	StageEnhance,
	StageSegment,
	StageNarrate,
	StageAlign,
	StagePlan,
	StageDescribe,
	StageImages,
	StageClips,
	StageAssemble,
}

// Input is the brief a run starts from.
type Input struct {
	Topic string `json:"topic"`
	Style string `json:"style,omitempty"`
	// TargetSegments caps how many narration beats the script asks
	// for. Zero lets the model decide.
	TargetSegments int `json:"target_segments,omitempty"`
}

// QualityOutcome records how the script quality gate resolved.
type QualityOutcome struct {
	State    string  `json:"state"`
	Score    float64 `json:"score"`
	Attempts int     `json:"attempts"`
	Feedback string  `json:"feedback,omitempty"`
}

// ScriptArtifact is the structured script produced by the script
// stage. SpokenLines returns the full spoken sequence.
type ScriptArtifact struct {
	Title     string         `json:"title"`
	Hook      string         `json:"hook"`
	Narration []string       `json:"narration"`
	CTA       string         `json:"cta,omitempty"`
	Quality   QualityOutcome `json:"quality"`
}

// SpokenLines returns hook, narration beats, and call to action in
// speaking order, skipping empty entries.
func (s ScriptArtifact) SpokenLines() []string {
	lines := make([]string, 0, len(s.Narration)+2)
	if s.Hook != "" {
		lines = append(lines, s.Hook)
	}
	for _, beat := range s.Narration {
		if beat != "" {
			lines = append(lines, beat)
		}
	}
	if s.CTA != "" {
		lines = append(lines, s.CTA)
	}
	return lines
}

// EnhanceArtifact carries the delivery-annotated variant of every
// spoken line, index-aligned with ScriptArtifact.SpokenLines.
type EnhanceArtifact struct {
	Lines []string `json:"lines"`
}

// SegmentsArtifact is the ordered narration segmentation.
type SegmentsArtifact struct {
	Segments []media.TextSegment `json:"segments"`
}

// NarrationArtifact points at the synthesized audio and carries its
// word timestamps. Audio bytes live in the staging directory.
type NarrationArtifact struct {
	AudioPath  string                `json:"audio_path"`
	DurationMS int64                 `json:"duration_ms"`
	Words      []media.WordTimestamp `json:"words"`
}

// TimingsArtifact is the alignment output.
type TimingsArtifact struct {
	Timings []media.SegmentTiming `json:"timings"`
}

// PlanArtifact is the visual plan.
type PlanArtifact struct {
	Units []media.VisualUnit `json:"units"`
}

// UnitPrompt is one visual unit's generation brief. Fallback marks
// prompts recovered from the segment text after a failed description
// call.
type UnitPrompt struct {
	SegmentIndex int    `json:"segment_index"`
	UnitIndex    int    `json:"unit_index"`
	ImagePrompt  string `json:"image_prompt"`
	Motion       string `json:"motion,omitempty"`
	Fallback     bool   `json:"fallback,omitempty"`
}

// DescribeArtifact carries every unit's generation brief.
type DescribeArtifact struct {
	Prompts []UnitPrompt `json:"prompts"`
}

// UnitAsset is one generated file bound to its visual unit.
type UnitAsset struct {
	SegmentIndex int    `json:"segment_index"`
	UnitIndex    int    `json:"unit_index"`
	Path         string `json:"path"`
}

// AssetsArtifact lists the files a fan-out stage produced.
type AssetsArtifact struct {
	Assets []UnitAsset `json:"assets"`
}

// FinalArtifact is the assembled video.
type FinalArtifact struct {
	VideoPath  string `json:"video_path"`
	DurationMS int64  `json:"duration_ms"`
}
