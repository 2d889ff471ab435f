package pipeline

import (
	"context"
	"fmt"
	"strings"

	"reelforge/internal/logging"
	"reelforge/internal/media"
	"reelforge/internal/qualitygate"
	"reelforge/internal/scheduler"
	"reelforge/internal/services"
	"reelforge/internal/services/textgen"
)

type scriptDoc struct {
	Title     string   `json:"title"`
	Hook      string   `json:"hook"`
	Narration []string `json:"narration"`
	CTA       string   `json:"cta"`
}

type judgeDoc struct {
	OverallScore  float64 `json:"overall_score"`
	Pass          bool    `json:"pass"`
	RevisionNotes string  `json:"revision_notes"`
}

// invalidScript is a gate-visible production failure: the model
// responded, but not with a usable script. The evaluator turns it into
// a failing verdict so the gate re-prompts with corrective feedback
// instead of burning scheduler retries.
type invalidScript struct {
	reason string
}

// stageScript generates the structured script, quality-gated when
// enabled.
func (o *Orchestrator) stageScript(ctx context.Context, rs *runState) (any, error) {
	produce := func(ctx context.Context, feedback []string) (any, error) {
		res := rs.sched.Submit(ctx, scheduler.Task{
			Capability: textgen.Capability,
			Label:      "script",
			Do: func(ctx context.Context) (any, error) {
				return o.deps.TextGen.CompleteJSON(ctx, scriptSystemPrompt, scriptUserPrompt(rs.input, feedback))
			},
		})
		if res.Err != nil {
			return nil, res.Err
		}
		var doc scriptDoc
		if err := textgen.DecodeJSON(res.Value.(string), &doc); err != nil {
			return invalidScript{reason: err.Error()}, nil
		}
		if reason := validateScript(doc, rs.input); reason != "" {
			return invalidScript{reason: reason}, nil
		}
		return &ScriptArtifact{
			Title:     strings.TrimSpace(doc.Title),
			Hook:      strings.TrimSpace(doc.Hook),
			Narration: trimAll(doc.Narration),
			CTA:       strings.TrimSpace(doc.CTA),
		}, nil
	}

	evaluate := func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
		if invalid, ok := artifact.(invalidScript); ok {
			return qualitygate.Verdict{
				Feedback: "the previous response did not match the required schema: " + invalid.reason,
			}, nil
		}
		script := artifact.(*ScriptArtifact)
		res := rs.sched.Submit(ctx, scheduler.Task{
			Capability: textgen.Capability,
			Label:      "script-judge",
			Do: func(ctx context.Context) (any, error) {
				return o.deps.TextGen.CompleteJSON(ctx, judgeSystemPrompt, judgeUserPrompt(*script))
			},
		})
		if res.Err != nil {
			return qualitygate.Verdict{}, res.Err
		}
		var verdict judgeDoc
		if err := textgen.DecodeJSON(res.Value.(string), &verdict); err != nil {
			return qualitygate.Verdict{}, services.Wrap(services.ErrValidation, textgen.Capability, "script-judge", "decode verdict", err)
		}
		return qualitygate.Verdict{
			Pass:     verdict.Pass && verdict.OverallScore >= float64(o.cfg.Quality.MinScore),
			Score:    verdict.OverallScore,
			Feedback: strings.TrimSpace(verdict.RevisionNotes),
		}, nil
	}

	if !o.cfg.Quality.Enabled {
		artifact, err := produce(ctx, nil)
		if err != nil {
			return nil, err
		}
		if invalid, ok := artifact.(invalidScript); ok {
			return nil, services.Wrap(services.ErrValidation, textgen.Capability, "script", invalid.reason, nil)
		}
		script := artifact.(*ScriptArtifact)
		script.Quality = QualityOutcome{State: string(qualitygate.StateAccepted), Attempts: 1}
		rs.script = script
		return script, nil
	}

	gate := qualitygate.New(o.cfg.Quality.MaxAttempts, o.logger)
	res, err := gate.Run(ctx, produce, evaluate)
	if err != nil {
		return nil, err
	}
	if invalid, ok := res.Artifact.(invalidScript); ok {
		return nil, services.Wrap(services.ErrValidation, textgen.Capability, "script", "no attempt produced a usable script: "+invalid.reason, nil)
	}
	script := res.Artifact.(*ScriptArtifact)
	script.Quality = QualityOutcome{
		State:    string(res.State),
		Score:    res.Verdict.Score,
		Attempts: res.Attempts,
		Feedback: res.Verdict.Feedback,
	}
	if !res.Accepted() {
		logging.WithContext(ctx, o.logger).Warn("proceeding with best unaccepted script",
			logging.Float64("score", res.Verdict.Score),
			logging.Int("attempts", res.Attempts),
			logging.String(logging.FieldEventType, "quality_exhausted"))
	}
	rs.script = script
	return script, nil
}

func validateScript(doc scriptDoc, input Input) string {
	if strings.TrimSpace(doc.Hook) == "" {
		return "hook is empty"
	}
	if len(trimAll(doc.Narration)) == 0 {
		return "narration has no beats"
	}
	if input.TargetSegments > 0 && len(trimAll(doc.Narration)) != input.TargetSegments {
		return fmt.Sprintf("expected %d narration beats, got %d", input.TargetSegments, len(trimAll(doc.Narration)))
	}
	return ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// stageEnhance produces the delivery-annotated track, index-aligned
// with the spoken lines.
func (o *Orchestrator) stageEnhance(ctx context.Context, rs *runState) (any, error) {
	if rs.script == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageEnhance, "script artifact missing", nil)
	}
	lines := rs.script.SpokenLines()
	res := rs.sched.Submit(ctx, scheduler.Task{
		Capability: textgen.Capability,
		Label:      "enhance",
		Do: func(ctx context.Context) (any, error) {
			return o.deps.TextGen.CompleteJSON(ctx, enhanceSystemPrompt, enhanceUserPrompt(lines))
		},
	})
	if res.Err != nil {
		return nil, res.Err
	}
	var doc EnhanceArtifact
	if err := textgen.DecodeJSON(res.Value.(string), &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, textgen.Capability, StageEnhance, "decode enhanced lines", err)
	}
	if len(doc.Lines) != len(lines) {
		return nil, services.Wrap(services.ErrValidation, textgen.Capability, StageEnhance,
			fmt.Sprintf("expected %d enhanced lines, got %d", len(lines), len(doc.Lines)), nil)
	}
	rs.enhanced = &doc
	return &doc, nil
}

// stageSegment pairs the raw and enhanced tracks into ordered
// narration segments.
func (o *Orchestrator) stageSegment(ctx context.Context, rs *runState) (any, error) {
	if rs.script == nil || rs.enhanced == nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", StageSegment, "script or enhance artifact missing", nil)
	}
	raw := rs.script.SpokenLines()
	if len(raw) != len(rs.enhanced.Lines) {
		return nil, services.Wrap(services.ErrValidation, "pipeline", StageSegment,
			fmt.Sprintf("raw and enhanced tracks misaligned: %d vs %d lines", len(raw), len(rs.enhanced.Lines)), nil)
	}
	segments := make([]media.TextSegment, len(raw))
	for i := range raw {
		segments[i] = media.TextSegment{Index: i, Raw: raw[i], Enhanced: rs.enhanced.Lines[i]}
	}
	artifact := &SegmentsArtifact{Segments: segments}
	rs.segments = artifact
	return artifact, nil
}
