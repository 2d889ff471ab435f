// Package media holds the domain types shared across pipeline stages:
// narration segments, word-level speech timings, derived segment
// timings, and the per-segment visual plan.
package media

import "fmt"

// TextSegment is one ordered unit of narration. Raw carries the plain
// script text; Enhanced optionally carries a delivery-annotated variant
// used for speech synthesis. Both describe the same spoken content.
type TextSegment struct {
	Index    int    `json:"index"`
	Raw      string `json:"raw"`
	Enhanced string `json:"enhanced,omitempty"`
}

// SpokenText returns the variant handed to speech synthesis, preferring
// the enhanced track when present.
func (s TextSegment) SpokenText() string {
	if s.Enhanced != "" {
		return s.Enhanced
	}
	return s.Raw
}

// WordTimestamp is one word of the synthesized audio track with its
// offsets in milliseconds. Produced once per narration and never
// mutated afterwards.
type WordTimestamp struct {
	Word    string `json:"word"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// SegmentTiming binds a segment index to a contiguous span of the audio
// track. A valid timing sequence is non-overlapping, increasing in
// index order, and covers the full track.
type SegmentTiming struct {
	Index   int   `json:"index"`
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`
}

// DurationMS returns the span length.
func (t SegmentTiming) DurationMS() int64 {
	return t.EndMS - t.StartMS
}

// VisualUnit is one visual slot inside a segment. Unit durations for a
// segment always sum to that segment's duration exactly.
type VisualUnit struct {
	SegmentIndex int   `json:"segment_index"`
	UnitIndex    int   `json:"unit_index"`
	DurationMS   int64 `json:"duration_ms"`
}

// ValidateTimings checks the structural invariants of a timing
// sequence against the source audio duration. Tolerance is one
// millisecond of rounding at the tail.
func ValidateTimings(timings []SegmentTiming, totalDurationMS int64) error {
	var prevEnd int64
	for i, timing := range timings {
		if timing.Index != i {
			return fmt.Errorf("timing %d carries index %d", i, timing.Index)
		}
		if timing.StartMS != prevEnd {
			return fmt.Errorf("segment %d starts at %dms, expected %dms", i, timing.StartMS, prevEnd)
		}
		if timing.EndMS < timing.StartMS {
			return fmt.Errorf("segment %d ends before it starts", i)
		}
		prevEnd = timing.EndMS
	}
	diff := totalDurationMS - prevEnd
	if diff < -1 || diff > 1 {
		return fmt.Errorf("timings cover %dms of a %dms track", prevEnd, totalDurationMS)
	}
	return nil
}
