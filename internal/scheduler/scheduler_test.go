package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/scheduler"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

func newScheduler(t *testing.T, limits config.CapabilityLimits) *scheduler.Scheduler {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSchedulerLimits(limits))
	return scheduler.New(cfg, nil)
}

func TestSubmitReturnsValueOnSuccess(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{MaxInFlight: 1, MaxAttempts: 3})
	res := sched.Submit(context.Background(), scheduler.Task{
		Capability: "text-generation",
		Label:      "script",
		Do: func(ctx context.Context) (any, error) {
			return "hello", nil
		},
	})
	if res.Err != nil {
		t.Fatalf("Submit returned error: %v", res.Err)
	}
	if res.Value != "hello" {
		t.Fatalf("unexpected value %v", res.Value)
	}
	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight: 1,
		MaxAttempts: 3,
		BaseDelayMS: 1,
		MaxDelayMS:  2,
	})
	var calls atomic.Int32
	res := sched.Submit(context.Background(), scheduler.Task{
		Capability: "speech-synthesis",
		Do: func(ctx context.Context) (any, error) {
			if calls.Add(1) < 3 {
				return nil, services.Wrap(services.ErrTransient, "speech-synthesis", "synthesize", "upstream hiccup", nil)
			}
			return 42, nil
		},
	})
	if res.Err != nil {
		t.Fatalf("Submit returned error: %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", res.Attempts)
	}
}

func TestSubmitStopsOnNonRetryableError(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{MaxInFlight: 1, MaxAttempts: 5, BaseDelayMS: 1})
	var calls atomic.Int32
	res := sched.Submit(context.Background(), scheduler.Task{
		Capability: "text-generation",
		Do: func(ctx context.Context) (any, error) {
			calls.Add(1)
			return nil, services.Wrap(services.ErrValidation, "text-generation", "complete", "malformed output", nil)
		},
	})
	if res.Err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(res.Err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", res.Err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight: 1,
		MaxAttempts: 3,
		BaseDelayMS: 1,
		MaxDelayMS:  2,
	})
	var calls atomic.Int32
	res := sched.Submit(context.Background(), scheduler.Task{
		Capability: "image-generation",
		Do: func(ctx context.Context) (any, error) {
			calls.Add(1)
			return nil, services.Wrap(services.ErrRateLimited, "image-generation", "generate", "quota exceeded", nil)
		},
	})
	if res.Err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if res.Attempts != 3 {
		t.Fatalf("result reported %d attempts", res.Attempts)
	}
}

func TestSubmitEnforcesConcurrencyLimit(t *testing.T) {
	const limit = 2
	sched := newScheduler(t, config.CapabilityLimits{MaxInFlight: limit, MaxAttempts: 1})

	var mu sync.Mutex
	inFlight := 0
	peak := 0

	tasks := make([]scheduler.Task, 8)
	for i := range tasks {
		tasks[i] = scheduler.Task{
			Capability: "clip-generation",
			Label:      fmt.Sprintf("clip-%d", i),
			Do: func(ctx context.Context) (any, error) {
				mu.Lock()
				inFlight++
				if inFlight > peak {
					peak = inFlight
				}
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil, nil
			},
		}
	}
	results := sched.RunAll(context.Background(), tasks)
	if err := scheduler.FirstError(results); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if peak > limit {
		t.Fatalf("observed %d concurrent attempts, limit is %d", peak, limit)
	}
}

func TestSubmitSpacesDispatchesByMinInterval(t *testing.T) {
	const interval = 30
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight:   4,
		MinIntervalMS: interval,
		MaxAttempts:   1,
	})
	var mu sync.Mutex
	var starts []time.Time
	tasks := make([]scheduler.Task, 3)
	for i := range tasks {
		tasks[i] = scheduler.Task{
			Capability: "speech-synthesis",
			Do: func(ctx context.Context) (any, error) {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil, nil
			},
		}
	}
	if err := scheduler.FirstError(sched.RunAll(context.Background(), tasks)); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if len(starts) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(starts))
	}
	first := starts[0]
	last := starts[0]
	for _, ts := range starts[1:] {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	if elapsed := last.Sub(first); elapsed < 2*interval*time.Millisecond {
		t.Fatalf("dispatches too close together: span %v", elapsed)
	}
}

func TestRunAllCollectsFailuresWithoutCancellingSiblings(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight: 2,
		MaxAttempts: 2,
		BaseDelayMS: 1,
		MaxDelayMS:  2,
	})
	tasks := make([]scheduler.Task, 5)
	for i := range tasks {
		idx := i
		tasks[i] = scheduler.Task{
			Capability: "image-generation",
			Label:      fmt.Sprintf("image-%d", i),
			Do: func(ctx context.Context) (any, error) {
				if idx == 2 {
					return nil, services.Wrap(services.ErrTransient, "image-generation", "generate", "persistent outage", nil)
				}
				return idx, nil
			},
		}
	}
	results := sched.RunAll(context.Background(), tasks)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	failures := 0
	for i, res := range results {
		if res.Index != i {
			t.Fatalf("result %d carries index %d", i, res.Index)
		}
		if res.Err != nil {
			failures++
			if res.Index != 2 {
				t.Fatalf("unexpected failure at index %d: %v", res.Index, res.Err)
			}
			if res.Attempts != 2 {
				t.Fatalf("failed task used %d attempts, expected 2", res.Attempts)
			}
			continue
		}
		if res.Value != res.Index {
			t.Fatalf("result %d carries value %v", i, res.Value)
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one failure, got %d", failures)
	}
}

func TestDoneFiresForEveryTerminalOutcome(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight: 2,
		MaxAttempts: 2,
		BaseDelayMS: 1,
		MaxDelayMS:  2,
	})
	var done atomic.Int32
	tasks := make([]scheduler.Task, 4)
	for i := range tasks {
		idx := i
		tasks[i] = scheduler.Task{
			Capability: "clip-generation",
			Label:      fmt.Sprintf("clip-%d", i),
			Do: func(ctx context.Context) (any, error) {
				switch idx {
				case 1:
					return nil, services.Wrap(services.ErrTransient, "clip-generation", "animate", "persistent outage", nil)
				case 2:
					return nil, services.Wrap(services.ErrValidation, "clip-generation", "animate", "bad motion spec", nil)
				default:
					return idx, nil
				}
			},
			Done: func() { done.Add(1) },
		}
	}
	results := sched.RunAll(context.Background(), tasks)
	if got := done.Load(); got != 4 {
		t.Fatalf("Done fired %d times, expected once per task", got)
	}
	if err := scheduler.FirstError(results); err == nil {
		t.Fatal("expected at least one failure")
	}
}

func TestCancelStopsAdmission(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight: 1,
		MaxAttempts: 5,
		BaseDelayMS: 20,
		MaxDelayMS:  40,
	})
	var calls atomic.Int32
	done := make(chan scheduler.Result, 1)
	go func() {
		done <- sched.Submit(context.Background(), scheduler.Task{
			Capability: "text-generation",
			Do: func(ctx context.Context) (any, error) {
				calls.Add(1)
				return nil, services.Wrap(services.ErrTransient, "text-generation", "complete", "flaky", nil)
			},
		})
	}()
	time.Sleep(5 * time.Millisecond)
	sched.Cancel()
	res := <-done
	if res.Err == nil {
		t.Fatal("expected error from cancelled scheduler")
	}
	if got := calls.Load(); got >= 5 {
		t.Fatalf("cancel did not curb retries, saw %d attempts", got)
	}
}

func TestSubmitHonorsContextWhileWaiting(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{MaxInFlight: 1, MaxAttempts: 1})
	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Submit(context.Background(), scheduler.Task{
			Capability: "assembly",
			Do: func(ctx context.Context) (any, error) {
				<-block
				return nil, nil
			},
		})
	}()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := sched.Submit(ctx, scheduler.Task{
		Capability: "assembly",
		Do: func(ctx context.Context) (any, error) {
			return nil, nil
		},
	})
	if res.Err == nil {
		t.Fatal("expected error while waiting for a slot")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", res.Err)
	}
	close(block)
	wg.Wait()
}

func TestAttemptTimeoutIsRetryable(t *testing.T) {
	sched := newScheduler(t, config.CapabilityLimits{
		MaxInFlight:           1,
		MaxAttempts:           2,
		BaseDelayMS:           1,
		MaxDelayMS:            2,
		AttemptTimeoutSeconds: 1,
	})
	var calls atomic.Int32
	res := sched.Submit(context.Background(), scheduler.Task{
		Capability: "speech-synthesis",
		Do: func(ctx context.Context) (any, error) {
			if calls.Add(1) == 1 {
				return nil, fmt.Errorf("synthesize: %w", context.DeadlineExceeded)
			}
			return "ok", nil
		},
	})
	if res.Err != nil {
		t.Fatalf("Submit returned error: %v", res.Err)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected deadline failure to be retried, attempts=%d", res.Attempts)
	}
}
