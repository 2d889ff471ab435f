package qualitygate_test

import (
	"context"
	"errors"
	"testing"

	"reelforge/internal/qualitygate"
)

func TestRunAcceptsPassingAttempt(t *testing.T) {
	gate := qualitygate.New(3, nil)
	res, err := gate.Run(context.Background(),
		func(ctx context.Context, feedback []string) (any, error) {
			return "draft", nil
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			return qualitygate.Verdict{Pass: true, Score: 9}, nil
		},
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Accepted() || res.State != qualitygate.StateAccepted {
		t.Fatalf("expected accepted result, got %+v", res)
	}
	if res.Artifact != "draft" || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunFeedsRejectionNotesIntoRetries(t *testing.T) {
	gate := qualitygate.New(3, nil)
	var seen [][]string
	res, err := gate.Run(context.Background(),
		func(ctx context.Context, feedback []string) (any, error) {
			seen = append(seen, append([]string(nil), feedback...))
			return len(seen), nil
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			if artifact.(int) < 3 {
				return qualitygate.Verdict{Score: float64(artifact.(int)), Feedback: "needs a stronger hook"}, nil
			}
			return qualitygate.Verdict{Pass: true, Score: 8}, nil
		},
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Attempts != 3 || !res.Accepted() {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 productions, got %d", len(seen))
	}
	if len(seen[0]) != 0 {
		t.Fatalf("first attempt should have no feedback, got %v", seen[0])
	}
	if len(seen[2]) != 2 || seen[2][0] != "needs a stronger hook" {
		t.Fatalf("third attempt should carry both notes, got %v", seen[2])
	}
}

func TestRunReturnsBestAttemptOnExhaustion(t *testing.T) {
	gate := qualitygate.New(3, nil)
	scores := []float64{4, 7, 5}
	attempt := 0
	res, err := gate.Run(context.Background(),
		func(ctx context.Context, feedback []string) (any, error) {
			attempt++
			return attempt, nil
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			return qualitygate.Verdict{Score: scores[artifact.(int)-1], Feedback: "weak"}, nil
		},
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != qualitygate.StateExhausted {
		t.Fatalf("expected exhausted state, got %s", res.State)
	}
	if res.Artifact != 2 || res.Verdict.Score != 7 {
		t.Fatalf("expected the best-scoring attempt, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("result reports %d attempts", res.Attempts)
	}
	if attempt != 3 {
		t.Fatalf("gate ran %d productions, budget is 3", attempt)
	}
}

func TestRunNeverExceedsAttemptBudget(t *testing.T) {
	gate := qualitygate.New(2, nil)
	productions := 0
	if _, err := gate.Run(context.Background(),
		func(ctx context.Context, feedback []string) (any, error) {
			productions++
			return productions, nil
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			return qualitygate.Verdict{Score: 1}, nil
		},
	); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if productions != 2 {
		t.Fatalf("expected 2 productions, got %d", productions)
	}
}

func TestRunPropagatesProducerError(t *testing.T) {
	gate := qualitygate.New(3, nil)
	boom := errors.New("provider down")
	res, err := gate.Run(context.Background(),
		func(ctx context.Context, feedback []string) (any, error) {
			return nil, boom
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			return qualitygate.Verdict{Pass: true}, nil
		},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if res.State != qualitygate.StateAttempting {
		t.Fatalf("expected attempting state on producer failure, got %s", res.State)
	}
}

func TestRunPropagatesEvaluatorError(t *testing.T) {
	gate := qualitygate.New(3, nil)
	boom := errors.New("judge unavailable")
	res, err := gate.Run(context.Background(),
		func(ctx context.Context, feedback []string) (any, error) {
			return "draft", nil
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			return qualitygate.Verdict{}, boom
		},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected evaluator error, got %v", err)
	}
	if res.State != qualitygate.StateEvaluating {
		t.Fatalf("expected evaluating state on evaluator failure, got %s", res.State)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	gate := qualitygate.New(3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gate.Run(ctx,
		func(ctx context.Context, feedback []string) (any, error) {
			t.Fatal("producer should not run after cancellation")
			return nil, nil
		},
		func(ctx context.Context, artifact any) (qualitygate.Verdict, error) {
			return qualitygate.Verdict{}, nil
		},
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
