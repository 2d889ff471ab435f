// Package qualitygate wraps a generation step in a bounded
// produce/evaluate/retry loop. A failing verdict feeds its revision
// notes back into the next attempt; when the attempt budget runs out
// the best-scoring attempt is returned rather than discarded.
package qualitygate

import (
	"context"
	"log/slog"

	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// State labels one point of the gate's lifecycle. Accepted and
// Exhausted are terminal.
type State string

const (
	StateAttempting State = "attempting"
	StateEvaluating State = "evaluating"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// Verdict is one evaluation of one attempt. Score is on a 1-10 scale;
// Feedback carries the revision notes handed to the next attempt.
type Verdict struct {
	Pass     bool    `json:"pass"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

// ProduceFunc generates one candidate artifact. The feedback slice
// holds the revision notes of every prior failed attempt, oldest first.
type ProduceFunc func(ctx context.Context, feedback []string) (any, error)

// EvaluateFunc scores one candidate artifact.
type EvaluateFunc func(ctx context.Context, artifact any) (Verdict, error)

// Result is the gate's terminal outcome. State is Accepted when a
// verdict passed, Exhausted when the budget ran out; an Exhausted
// result still carries the best-scoring artifact seen.
type Result struct {
	State    State
	Artifact any
	Verdict  Verdict
	Attempts int
}

// Accepted reports whether the artifact passed evaluation.
func (r Result) Accepted() bool {
	return r.State == StateAccepted
}

// Gate runs the produce/evaluate loop with a hard attempt ceiling.
type Gate struct {
	maxAttempts int
	logger      *slog.Logger
}

// New builds a gate. maxAttempts below 1 is treated as 1.
func New(maxAttempts int, logger *slog.Logger) *Gate {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		maxAttempts: maxAttempts,
		logger:      logger.With(logging.String(logging.FieldComponent, "qualitygate")),
	}
}

// Run drives produce and evaluate until a verdict passes or the
// attempt budget is spent. Producer and evaluator errors abort the
// gate; a non-passing verdict does not.
func (g *Gate) Run(ctx context.Context, produce ProduceFunc, evaluate EvaluateFunc) (Result, error) {
	if produce == nil || evaluate == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "qualitygate", "run", "producer and evaluator are required", nil)
	}
	logger := logging.WithContext(ctx, g.logger)

	var feedback []string
	var best Result
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		artifact, err := produce(ctx, feedback)
		if err != nil {
			return Result{State: StateAttempting, Attempts: attempt}, err
		}
		verdict, err := evaluate(ctx, artifact)
		if err != nil {
			return Result{State: StateEvaluating, Attempts: attempt}, err
		}
		if verdict.Pass {
			logger.Info("attempt accepted",
				logging.Int("attempt", attempt),
				logging.Float64("score", verdict.Score))
			return Result{State: StateAccepted, Artifact: artifact, Verdict: verdict, Attempts: attempt}, nil
		}
		if best.Artifact == nil || verdict.Score > best.Verdict.Score {
			best = Result{Artifact: artifact, Verdict: verdict}
		}
		if verdict.Feedback != "" {
			feedback = append(feedback, verdict.Feedback)
		}
		logger.Warn("attempt rejected",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", g.maxAttempts),
			logging.Float64("score", verdict.Score),
			logging.String(logging.FieldEventType, "quality_rejected"))
	}

	best.State = StateExhausted
	best.Attempts = g.maxAttempts
	logger.Warn("attempt budget exhausted, keeping best attempt",
		logging.Int("attempts", g.maxAttempts),
		logging.Float64("best_score", best.Verdict.Score),
		logging.String(logging.FieldEventType, "quality_exhausted"),
		logging.String(logging.FieldErrorHint, "raise max_attempts or review the evaluator threshold"))
	return best, nil
}
