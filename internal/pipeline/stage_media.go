package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/scheduler"
	"reelforge/internal/services"
	"reelforge/internal/services/speech"
)

// stageNarrate synthesizes the enhanced track into one linear audio
// file and captures its word timestamps.
func (o *Orchestrator) stageNarrate(ctx context.Context, rs *runState) (any, error) {
	if rs.segments == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageNarrate, "segments artifact missing", nil)
	}
	parts := make([]string, 0, len(rs.segments.Segments))
	for _, segment := range rs.segments.Segments {
		parts = append(parts, segment.SpokenText())
	}
	text := strings.Join(parts, " ")

	res := rs.sched.Submit(ctx, scheduler.Task{
		Capability: speech.Capability,
		Label:      "narrate",
		Do: func(ctx context.Context) (any, error) {
			return o.deps.Speech.Synthesize(ctx, text)
		},
	})
	if res.Err != nil {
		return nil, res.Err
	}
	narration := res.Value.(speech.Narration)
	if narration.DurationMS() <= 0 {
		return nil, services.Wrap(services.ErrValidation, speech.Capability, StageNarrate, "narration has no word timing", nil)
	}

	audioPath := filepath.Join(o.cfg.Paths.StagingDir, rs.run.ID, "narration.mp3")
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageNarrate, "create staging directory", err)
	}
	if err := os.WriteFile(audioPath, narration.Audio, 0o644); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageNarrate, "write narration audio", err)
	}

	artifact := &NarrationArtifact{
		AudioPath:  audioPath,
		DurationMS: narration.DurationMS(),
		Words:      narration.Words,
	}
	rs.narration = artifact
	return artifact, nil
}

// stageAlign maps the segments onto the narration's word timestamps.
func (o *Orchestrator) stageAlign(ctx context.Context, rs *runState) (any, error) {
	if rs.segments == nil || rs.narration == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageAlign, "segments or narration artifact missing", nil)
	}
	timings, err := o.align.Align(rs.segments.Segments, rs.narration.Words, rs.narration.DurationMS)
	if err != nil {
		return nil, err
	}
	artifact := &TimingsArtifact{Timings: timings}
	rs.timings = artifact
	return artifact, nil
}

// stagePlan derives each segment's visual units from its timing.
func (o *Orchestrator) stagePlan(ctx context.Context, rs *runState) (any, error) {
	if rs.timings == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StagePlan, "timings artifact missing", nil)
	}
	units, err := o.plan.PlanAll(rs.timings.Timings)
	if err != nil {
		return nil, err
	}
	artifact := &PlanArtifact{Units: units}
	rs.planOut = artifact
	return artifact, nil
}
