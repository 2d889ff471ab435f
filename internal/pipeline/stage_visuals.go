package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"reelforge/internal/assembler"
	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
	"reelforge/internal/scheduler"
	"reelforge/internal/services"
	"reelforge/internal/services/clipgen"
	"reelforge/internal/services/imagegen"
	"reelforge/internal/services/textgen"
)

type describeDoc struct {
	ImagePrompt string `json:"image_prompt"`
	Motion      string `json:"motion"`
}

// stageDescribe writes one image prompt per visual unit. Best-effort:
// a failed description falls back to the segment's own text rather
// than failing the stage.
func (o *Orchestrator) stageDescribe(ctx context.Context, rs *runState) (any, error) {
	if rs.segments == nil || rs.planOut == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageDescribe, "segments or plan artifact missing", nil)
	}
	units := rs.planOut.Units
	unitCounts := make(map[int]int)
	for _, unit := range units {
		unitCounts[unit.SegmentIndex]++
	}
	segmentText := make(map[int]string, len(rs.segments.Segments))
	for _, segment := range rs.segments.Segments {
		segmentText[segment.Index] = segment.Raw
	}

	o.beginFanout(rs.run.ID, len(units))
	tasks := make([]scheduler.Task, len(units))
	for i, unit := range units {
		text := segmentText[unit.SegmentIndex]
		unitIndex := unit.UnitIndex
		count := unitCounts[unit.SegmentIndex]
		tasks[i] = scheduler.Task{
			Capability: textgen.Capability,
			Label:      fmt.Sprintf("describe-%d-%d", unit.SegmentIndex, unit.UnitIndex),
			Do: func(ctx context.Context) (any, error) {
				content, err := o.deps.TextGen.CompleteJSON(ctx, describeSystemPrompt, describeUserPrompt(rs.input, text, unitIndex, count))
				if err != nil {
					return nil, err
				}
				var doc describeDoc
				if err := textgen.DecodeJSON(content, &doc); err != nil {
					return nil, services.Wrap(services.ErrValidation, textgen.Capability, "describe", "decode description", err)
				}
				return doc, nil
			},
			Done: func() { o.noteFanoutItem(rs.run.ID) },
		}
	}
	results := rs.sched.RunAll(ctx, tasks)

	prompts := make([]UnitPrompt, len(units))
	fallbacks := 0
	for i, unit := range units {
		prompt := UnitPrompt{SegmentIndex: unit.SegmentIndex, UnitIndex: unit.UnitIndex}
		if res := results[i]; res.Err == nil {
			doc := res.Value.(describeDoc)
			prompt.ImagePrompt = doc.ImagePrompt
			prompt.Motion = doc.Motion
		} else {
			prompt.ImagePrompt = segmentText[unit.SegmentIndex]
			prompt.Fallback = true
			fallbacks++
		}
		prompts[i] = prompt
	}
	if fallbacks > 0 {
		logging.WithContext(ctx, o.logger).Warn("descriptions fell back to segment text",
			logging.Int("fallbacks", fallbacks),
			logging.Int("units", len(units)),
			logging.String(logging.FieldEventType, "describe_fallback"))
	}
	artifact := &DescribeArtifact{Prompts: prompts}
	rs.prompts = artifact
	return artifact, nil
}

// stageImages renders one image per visual unit. Hard requirement:
// any terminal failure fails the stage, though finished images stay in
// the staging directory for a later resume to reuse manually.
func (o *Orchestrator) stageImages(ctx context.Context, rs *runState) (any, error) {
	if rs.prompts == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageImages, "describe artifact missing", nil)
	}
	prompts := rs.prompts.Prompts
	imageDir := filepath.Join(o.cfg.Paths.StagingDir, rs.run.ID, "images")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageImages, "create image directory", err)
	}

	o.beginFanout(rs.run.ID, len(prompts))
	tasks := make([]scheduler.Task, len(prompts))
	for i, prompt := range prompts {
		path := filepath.Join(imageDir, assetName(prompt.SegmentIndex, prompt.UnitIndex, "png"))
		text := prompt.ImagePrompt
		tasks[i] = scheduler.Task{
			Capability: imagegen.Capability,
			Label:      fmt.Sprintf("image-%d-%d", prompt.SegmentIndex, prompt.UnitIndex),
			Do: func(ctx context.Context) (any, error) {
				image, err := o.deps.Images.Generate(ctx, text)
				if err != nil {
					return nil, err
				}
				if err := os.WriteFile(path, image, 0o644); err != nil {
					return nil, services.Wrap(services.ErrPersistence, imagegen.Capability, "image", "write image", err)
				}
				return path, nil
			},
			Done: func() { o.noteFanoutItem(rs.run.ID) },
		}
	}
	results := rs.sched.RunAll(ctx, tasks)
	if err := scheduler.FirstError(results); err != nil {
		return nil, err
	}

	assets := make([]UnitAsset, len(prompts))
	for i, prompt := range prompts {
		assets[i] = UnitAsset{
			SegmentIndex: prompt.SegmentIndex,
			UnitIndex:    prompt.UnitIndex,
			Path:         results[i].Value.(string),
		}
	}
	artifact := &AssetsArtifact{Assets: assets}
	rs.images = artifact
	return artifact, nil
}

// stageClips animates every unit image for its planned duration. Hard
// requirement, same policy as images.
func (o *Orchestrator) stageClips(ctx context.Context, rs *runState) (any, error) {
	if rs.images == nil || rs.prompts == nil || rs.planOut == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageClips, "image, describe, or plan artifact missing", nil)
	}
	clipDir := filepath.Join(o.cfg.Paths.StagingDir, rs.run.ID, "clips")
	if err := os.MkdirAll(clipDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageClips, "create clip directory", err)
	}

	durations := make(map[string]int64, len(rs.planOut.Units))
	for _, unit := range rs.planOut.Units {
		durations[unitKey(unit.SegmentIndex, unit.UnitIndex)] = unit.DurationMS
	}
	motions := make(map[string]string, len(rs.prompts.Prompts))
	for _, prompt := range rs.prompts.Prompts {
		motions[unitKey(prompt.SegmentIndex, prompt.UnitIndex)] = prompt.Motion
	}

	images := rs.images.Assets
	o.beginFanout(rs.run.ID, len(images))
	tasks := make([]scheduler.Task, len(images))
	for i, image := range images {
		key := unitKey(image.SegmentIndex, image.UnitIndex)
		duration := durations[key]
		motion := motions[key]
		imagePath := image.Path
		clipPath := filepath.Join(clipDir, assetName(image.SegmentIndex, image.UnitIndex, "mp4"))
		tasks[i] = scheduler.Task{
			Capability: clipgen.Capability,
			Label:      fmt.Sprintf("clip-%d-%d", image.SegmentIndex, image.UnitIndex),
			Do: func(ctx context.Context) (any, error) {
				still, err := os.ReadFile(imagePath)
				if err != nil {
					return nil, services.Wrap(services.ErrPersistence, clipgen.Capability, "clip", "read unit image", err)
				}
				clip, err := o.deps.Clips.Animate(ctx, still, motion, duration)
				if err != nil {
					return nil, err
				}
				if err := os.WriteFile(clipPath, clip, 0o644); err != nil {
					return nil, services.Wrap(services.ErrPersistence, clipgen.Capability, "clip", "write clip", err)
				}
				return clipPath, nil
			},
			Done: func() { o.noteFanoutItem(rs.run.ID) },
		}
	}
	results := rs.sched.RunAll(ctx, tasks)
	if err := scheduler.FirstError(results); err != nil {
		return nil, err
	}

	assets := make([]UnitAsset, len(images))
	for i, image := range images {
		assets[i] = UnitAsset{
			SegmentIndex: image.SegmentIndex,
			UnitIndex:    image.UnitIndex,
			Path:         results[i].Value.(string),
		}
	}
	artifact := &AssetsArtifact{Assets: assets}
	rs.clips = artifact
	return artifact, nil
}

// stageAssemble concatenates the clips in narrative order and muxes
// the narration track.
func (o *Orchestrator) stageAssemble(ctx context.Context, rs *runState) (any, error) {
	if rs.clips == nil || rs.narration == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageAssemble, "clips or narration artifact missing", nil)
	}
	clips := append([]UnitAsset(nil), rs.clips.Assets...)
	sort.Slice(clips, func(a, b int) bool {
		if clips[a].SegmentIndex != clips[b].SegmentIndex {
			return clips[a].SegmentIndex < clips[b].SegmentIndex
		}
		return clips[a].UnitIndex < clips[b].UnitIndex
	})
	paths := make([]string, len(clips))
	for i, clip := range clips {
		paths[i] = clip.Path
	}

	// ffmpeg renders into staging; the deliverable is copied out with
	// integrity verification so a partial write never lands in output.
	renderPath := filepath.Join(o.cfg.Paths.StagingDir, rs.run.ID, "render.mp4")
	if err := o.deps.Assembler.Assemble(ctx, assembler.Request{
		ClipPaths:  paths,
		AudioPath:  rs.narration.AudioPath,
		OutputPath: renderPath,
	}); err != nil {
		return nil, err
	}
	outputPath := filepath.Join(o.cfg.Paths.OutputDir, rs.run.ID+".mp4")
	if err := fileutil.CopyVerified(renderPath, outputPath); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageAssemble, "publish final video", err)
	}
	_ = os.Remove(renderPath)
	artifact := &FinalArtifact{VideoPath: outputPath, DurationMS: rs.narration.DurationMS}
	rs.final = artifact
	return artifact, nil
}

func assetName(segmentIndex, unitIndex int, ext string) string {
	return fmt.Sprintf("seg%02d_unit%02d.%s", segmentIndex, unitIndex, ext)
}

func unitKey(segmentIndex, unitIndex int) string {
	return fmt.Sprintf("%d:%d", segmentIndex, unitIndex)
}
