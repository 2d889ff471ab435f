// Package pipeline drives a run through its stage sequence: strictly
// ordered stages, a durable checkpoint after each one, resume from the
// first undone stage, and artifact-preserving failure. Fan-out stages
// parallelize internally through the scheduler; the orchestrator never
// runs two stages at once.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/alignment"
	"reelforge/internal/assembler"
	"reelforge/internal/checkpoint"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/planner"
	"reelforge/internal/scheduler"
	"reelforge/internal/services"
	"reelforge/internal/services/speech"
)

// TextGenerator produces structured JSON completions.
type TextGenerator interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SpeechSynthesizer renders narration audio with word timestamps.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (speech.Narration, error)
}

// ImageGenerator renders one image per prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ClipGenerator animates a still image into a clip.
type ClipGenerator interface {
	Animate(ctx context.Context, image []byte, motion string, durationMS int64) ([]byte, error)
}

// VideoAssembler produces the final video from clips and audio.
type VideoAssembler interface {
	Assemble(ctx context.Context, req assembler.Request) error
}

// Notifier receives run lifecycle events. Implementations must be
// non-blocking best-effort; failures are never surfaced to the run.
type Notifier interface {
	RunCompleted(ctx context.Context, runID, videoPath string)
	RunFailed(ctx context.Context, runID, stage, cause string)
}

// Deps carries the external capabilities a run needs.
type Deps struct {
	TextGen   TextGenerator
	Speech    SpeechSynthesizer
	Images    ImageGenerator
	Clips     ClipGenerator
	Assembler VideoAssembler
	Notifier  Notifier
}

// PipelineError reports which stage failed and which stages completed
// before it. Artifacts of completed stages stay on durable storage.
type PipelineError struct {
	RunID     string
	Stage     string
	Completed []string
	Cause     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("run %s failed at stage %s (completed: %s): %v",
		e.RunID, e.Stage, strings.Join(e.Completed, ","), e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Orchestrator owns run state. One orchestrator serves many runs;
// each run gets its own scheduler so cancellation stays scoped.
type Orchestrator struct {
	cfg    *config.Config
	store  *checkpoint.Store
	deps   Deps
	align  *alignment.Engine
	plan   *planner.Planner
	logger *slog.Logger

	mu       sync.Mutex
	progress map[string]*progressState
}

type progressState struct {
	stageIndex int
	itemsDone  int
	itemsTotal int
}

// New builds an orchestrator over a checkpoint store and capability
// clients.
func New(cfg *config.Config, store *checkpoint.Store, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		deps:     deps,
		align:    alignment.New(cfg, logger),
		plan:     planner.New(cfg),
		logger:   logger.With(logging.String(logging.FieldComponent, "pipeline")),
		progress: make(map[string]*progressState),
	}
}

type runState struct {
	run       *checkpoint.Run
	input     Input
	sched     *scheduler.Scheduler
	completed map[string]bool

	script    *ScriptArtifact
	enhanced  *EnhanceArtifact
	segments  *SegmentsArtifact
	narration *NarrationArtifact
	timings   *TimingsArtifact
	planOut   *PlanArtifact
	prompts   *DescribeArtifact
	images    *AssetsArtifact
	clips     *AssetsArtifact
	final     *FinalArtifact
}

type stageDef struct {
	name string
	fn   func(ctx context.Context, rs *runState) (any, error)
}

func (o *Orchestrator) stages() []stageDef {
	return []stageDef{
		{StageScript, o.stageScript},
		{StageEnhance, o.stageEnhance},
		{StageSegment, o.stageSegment},
		{StageNarrate, o.stageNarrate},
		{StageAlign, o.stageAlign},
		{StagePlan, o.stagePlan},
		{StageDescribe, o.stageDescribe},
		{StageImages, o.stageImages},
		{StageClips, o.stageClips},
		{StageAssemble, o.stageAssemble},
	}
}

// ErrRunNotFound reports a run ID with no stored run behind it.
var ErrRunNotFound = errors.New("run not found")

// Run starts a new run from the brief and drives it to completion.
func (o *Orchestrator) Run(ctx context.Context, input Input) (*FinalArtifact, error) {
	rs, err := o.newRunState(ctx, input)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, rs)
}

// Start creates a run and drives it in the background. The returned
// run ID answers Status and Resume calls immediately.
func (o *Orchestrator) Start(ctx context.Context, input Input) (string, error) {
	rs, err := o.newRunState(ctx, input)
	if err != nil {
		return "", err
	}
	go func() {
		_, _ = o.execute(context.WithoutCancel(ctx), rs)
	}()
	return rs.run.ID, nil
}

// Resume continues a run from the first stage without a checkpoint.
// Completed stages are never re-executed.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*FinalArtifact, error) {
	rs, err := o.loadRunState(ctx, runID)
	if err != nil {
		return nil, err
	}
	if rs.run.Status == checkpoint.StatusComplete {
		if rs.final == nil {
			return nil, services.Wrap(services.ErrPersistence, "pipeline", "resume", "complete run has no final artifact", nil)
		}
		return rs.final, nil
	}
	if err := o.markRunning(ctx, rs); err != nil {
		return nil, err
	}
	return o.execute(ctx, rs)
}

// StartResume resumes a run in the background. Resuming an already
// complete run is a no-op.
func (o *Orchestrator) StartResume(ctx context.Context, runID string) error {
	rs, err := o.loadRunState(ctx, runID)
	if err != nil {
		return err
	}
	if rs.run.Status == checkpoint.StatusComplete {
		return nil
	}
	if err := o.markRunning(ctx, rs); err != nil {
		return err
	}
	go func() {
		_, _ = o.execute(context.WithoutCancel(ctx), rs)
	}()
	return nil
}

func (o *Orchestrator) newRunState(ctx context.Context, input Input) (*runState, error) {
	if strings.TrimSpace(input.Topic) == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "topic required", nil)
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "encode input", err)
	}
	run, err := o.store.CreateRun(ctx, uuid.NewString(), string(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "run", "create run", err)
	}
	return &runState{
		run:       run,
		input:     input,
		sched:     scheduler.New(o.cfg, o.logger),
		completed: make(map[string]bool),
	}, nil
}

func (o *Orchestrator) loadRunState(ctx context.Context, runID string) (*runState, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "resume", "load run", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rs := &runState{
		run:       run,
		sched:     scheduler.New(o.cfg, o.logger),
		completed: make(map[string]bool),
	}
	if run.InputJSON != "" {
		if err := json.Unmarshal([]byte(run.InputJSON), &rs.input); err != nil {
			return nil, services.Wrap(services.ErrValidation, "pipeline", "resume", "decode run input", err)
		}
	}
	records, err := o.store.LoadLatest(ctx, runID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "resume", "load checkpoints", err)
	}
	for _, record := range records {
		if err := rs.restore(record); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "pipeline", "resume", "decode checkpoint for stage "+record.Stage, err)
		}
	}
	return rs, nil
}

func (o *Orchestrator) markRunning(ctx context.Context, rs *runState) error {
	rs.run.Status = checkpoint.StatusRunning
	rs.run.ErrorMessage = ""
	if err := o.store.UpdateRun(ctx, rs.run); err != nil {
		return services.Wrap(services.ErrPersistence, "pipeline", "resume", "mark run running", err)
	}
	return nil
}

// restore rehydrates one stage's artifact into the run state and marks
// the stage complete.
func (rs *runState) restore(record checkpoint.Record) error {
	var err error
	switch record.Stage {
	case StageScript:
		rs.script = &ScriptArtifact{}
		err = record.Artifact.Decode(rs.script)
	case StageEnhance:
		rs.enhanced = &EnhanceArtifact{}
		err = record.Artifact.Decode(rs.enhanced)
	case StageSegment:
		rs.segments = &SegmentsArtifact{}
		err = record.Artifact.Decode(rs.segments)
	case StageNarrate:
		rs.narration = &NarrationArtifact{}
		err = record.Artifact.Decode(rs.narration)
	case StageAlign:
		rs.timings = &TimingsArtifact{}
		err = record.Artifact.Decode(rs.timings)
	case StagePlan:
		rs.planOut = &PlanArtifact{}
		err = record.Artifact.Decode(rs.planOut)
	case StageDescribe:
		rs.prompts = &DescribeArtifact{}
		err = record.Artifact.Decode(rs.prompts)
	case StageImages:
		rs.images = &AssetsArtifact{}
		err = record.Artifact.Decode(rs.images)
	case StageClips:
		rs.clips = &AssetsArtifact{}
		err = record.Artifact.Decode(rs.clips)
	case StageAssemble:
		rs.final = &FinalArtifact{}
		err = record.Artifact.Decode(rs.final)
	default:
		return fmt.Errorf("unknown stage %q", record.Stage)
	}
	if err != nil {
		return err
	}
	rs.completed[record.Stage] = true
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, rs *runState) (*FinalArtifact, error) {
	runID := rs.run.ID
	runCtx := services.WithRunID(ctx, runID)
	logger := logging.WithContext(runCtx, o.logger)
	defer o.clearProgress(runID)

	for index, stage := range o.stages() {
		if rs.completed[stage.name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			rs.sched.Cancel()
			return nil, o.pause(rs, stage.name, services.Wrap(nil, "pipeline", stage.name, "run interrupted", err))
		}
		stageCtx := services.WithStage(runCtx, stage.name)
		stageLogger := logging.WithContext(stageCtx, o.logger)

		rs.run.CurrentStage = stage.name
		if err := o.store.UpdateRun(context.WithoutCancel(ctx), rs.run); err != nil {
			return nil, o.fail(rs, stage.name, services.Wrap(services.ErrPersistence, "pipeline", stage.name, "persist stage transition", err))
		}
		o.setStageProgress(runID, index)

		started := time.Now()
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_started"))
		payload, err := stage.fn(stageCtx, rs)
		if err != nil {
			rs.sched.Cancel()
			stageLogger.Error("stage failed",
				logging.Error(err),
				logging.Duration("elapsed", time.Since(started)),
				logging.String(logging.FieldEventType, "stage_failed"))
			return nil, o.fail(rs, stage.name, err)
		}

		artifact, err := checkpoint.NewArtifact(stage.name, payload)
		if err != nil {
			return nil, o.fail(rs, stage.name, services.Wrap(services.ErrPersistence, "pipeline", stage.name, "encode artifact", err))
		}
		if err := o.store.Save(context.WithoutCancel(ctx), runID, stage.name, artifact); err != nil {
			return nil, o.fail(rs, stage.name, services.Wrap(services.ErrPersistence, "pipeline", stage.name, "write checkpoint", err))
		}
		rs.completed[stage.name] = true
		stageLogger.Info("stage completed",
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "stage_completed"))
	}

	rs.run.Status = checkpoint.StatusComplete
	rs.run.CurrentStage = ""
	if err := o.store.UpdateRun(context.WithoutCancel(ctx), rs.run); err != nil {
		return nil, o.fail(rs, StageAssemble, services.Wrap(services.ErrPersistence, "pipeline", "complete", "mark run complete", err))
	}
	logger.Info("run complete",
		logging.String("video", rs.final.VideoPath),
		logging.String(logging.FieldEventType, "run_completed"))
	if o.deps.Notifier != nil {
		o.deps.Notifier.RunCompleted(context.WithoutCancel(ctx), runID, rs.final.VideoPath)
	}
	return rs.final, nil
}

// pause marks an interrupted run paused so a later resume picks it up
// at the next unfinished stage. Pausing sends no failure notification.
func (o *Orchestrator) pause(rs *runState, stage string, cause error) error {
	rs.run.Status = checkpoint.StatusPaused
	rs.run.CurrentStage = stage
	rs.run.ErrorMessage = ""
	if err := o.store.UpdateRun(context.Background(), rs.run); err != nil {
		o.logger.Error("failed to persist run pause",
			logging.String(logging.FieldRunID, rs.run.ID),
			logging.Error(err))
	}
	return &PipelineError{RunID: rs.run.ID, Stage: stage, Completed: rs.completedStages(), Cause: cause}
}

// fail marks the run failed, preserving every checkpointed artifact,
// and reports the failed stage.
func (o *Orchestrator) fail(rs *runState, stage string, cause error) error {
	rs.run.Status = checkpoint.StatusFailed
	rs.run.CurrentStage = stage
	rs.run.ErrorMessage = services.Message(cause)
	if err := o.store.UpdateRun(context.Background(), rs.run); err != nil {
		o.logger.Error("failed to persist run failure",
			logging.String(logging.FieldRunID, rs.run.ID),
			logging.Error(err))
	}
	if o.deps.Notifier != nil {
		o.deps.Notifier.RunFailed(context.Background(), rs.run.ID, stage, services.Message(cause))
	}
	return &PipelineError{RunID: rs.run.ID, Stage: stage, Completed: rs.completedStages(), Cause: cause}
}

func (rs *runState) completedStages() []string {
	completed := make([]string, 0, len(rs.completed))
	for _, name := range StageOrder {
		if rs.completed[name] {
			completed = append(completed, name)
		}
	}
	return completed
}

// ArtifactInfo is one checkpointed artifact in a status view.
type ArtifactInfo struct {
	Stage     string    `json:"stage"`
	Type      string    `json:"type"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus is the externally visible state of one run.
type RunStatus struct {
	RunID        string         `json:"run_id"`
	Status       string         `json:"status"`
	CurrentStage string         `json:"current_stage,omitempty"`
	Progress     float64        `json:"progress"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Artifacts    []ArtifactInfo `json:"artifacts"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Status reports a run's stage, progress fraction, and artifact list.
func (o *Orchestrator) Status(ctx context.Context, runID string) (*RunStatus, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "status", "load run", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	records, err := o.store.LoadLatest(ctx, runID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "status", "load checkpoints", err)
	}
	status := &RunStatus{
		RunID:        run.ID,
		Status:       string(run.Status),
		CurrentStage: run.CurrentStage,
		Progress:     o.progressFor(run, len(records)),
		ErrorMessage: run.ErrorMessage,
		Artifacts:    make([]ArtifactInfo, 0, len(records)),
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
	for _, record := range records {
		status.Artifacts = append(status.Artifacts, ArtifactInfo{
			Stage:     record.Stage,
			Type:      record.Artifact.Type,
			Seq:       record.Seq,
			CreatedAt: record.CreatedAt,
		})
	}
	return status, nil
}

// List returns the status of every known run, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]*RunStatus, error) {
	runs, err := o.store.ListRuns(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "pipeline", "list", "list runs", err)
	}
	statuses := make([]*RunStatus, 0, len(runs))
	for _, run := range runs {
		status, err := o.Status(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (o *Orchestrator) progressFor(run *checkpoint.Run, checkpoints int) float64 {
	total := len(StageOrder)
	if run.Status == checkpoint.StatusComplete {
		return 1
	}
	o.mu.Lock()
	var state progressState
	live := false
	if tracked := o.progress[run.ID]; tracked != nil {
		state = *tracked
		live = true
	}
	o.mu.Unlock()
	if live {
		fraction := float64(state.stageIndex)
		if state.itemsTotal > 0 {
			fraction += float64(state.itemsDone) / float64(state.itemsTotal)
		}
		return fraction / float64(total)
	}
	if checkpoints > total {
		checkpoints = total
	}
	return float64(checkpoints) / float64(total)
}

func (o *Orchestrator) setStageProgress(runID string, stageIndex int) {
	o.mu.Lock()
	o.progress[runID] = &progressState{stageIndex: stageIndex}
	o.mu.Unlock()
}

// beginFanout records how many items the active fan-out stage holds.
func (o *Orchestrator) beginFanout(runID string, total int) {
	o.mu.Lock()
	if state, ok := o.progress[runID]; ok {
		state.itemsTotal = total
		state.itemsDone = 0
	}
	o.mu.Unlock()
}

// noteFanoutItem marks one fan-out item terminal.
func (o *Orchestrator) noteFanoutItem(runID string) {
	o.mu.Lock()
	if state, ok := o.progress[runID]; ok && state.itemsDone < state.itemsTotal {
		state.itemsDone++
	}
	o.mu.Unlock()
}

func (o *Orchestrator) clearProgress(runID string) {
	o.mu.Lock()
	delete(o.progress, runID)
	o.mu.Unlock()
}
