package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// Task is one unit of work bound to a named capability. Do performs a
// single attempt; the scheduler owns retries, so Do must not retry
// internally. Done, when set, is called exactly once as the task
// reaches a terminal outcome, whether it succeeded or not.
type Task struct {
	Capability string
	Label      string
	Do         func(ctx context.Context) (any, error)
	Done       func()
}

// Result is the terminal outcome of one task. Err is nil on success.
type Result struct {
	Label    string
	Index    int
	Value    any
	Err      error
	Attempts int
}

type capability struct {
	limits config.CapabilityLimits
	sem    chan struct{}

	mu       sync.Mutex
	nextSlot time.Time
}

// Scheduler admits tasks to external capabilities under per-capability
// concurrency and rate limits, retrying transient failures with
// exponential backoff. Safe for concurrent use.
type Scheduler struct {
	cfg    *config.Config
	logger *slog.Logger
	rng    *jitterSource

	mu           sync.Mutex
	capabilities map[string]*capability
	cancelled    bool
}

// ErrCancelled reports that the scheduler stopped admitting work before
// the task could be dispatched.
var ErrCancelled = errors.New("scheduler cancelled")

// New builds a scheduler over the configured capability limits.
func New(cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:          cfg,
		logger:       logger.With(logging.String(logging.FieldComponent, "scheduler")),
		rng:          newJitterSource(),
		capabilities: make(map[string]*capability),
	}
}

// Cancel stops admission. Tasks waiting for a slot fail with
// ErrCancelled; in-flight attempts run to completion but are not
// retried.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *Scheduler) capabilityFor(name string) *capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.capabilities[name]; ok {
		return cp
	}
	limits := s.cfg.LimitsFor(name)
	if limits.MaxInFlight <= 0 {
		limits.MaxInFlight = 1
	}
	if limits.MaxAttempts <= 0 {
		limits.MaxAttempts = 1
	}
	cp := &capability{
		limits: limits,
		sem:    make(chan struct{}, limits.MaxInFlight),
	}
	s.capabilities[name] = cp
	return cp
}

func (s *Scheduler) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Submit runs one task to a terminal outcome: success, a non-retryable
// failure, or retry exhaustion. Every attempt, including retries,
// re-acquires the capability's concurrency slot and rate window so a
// retrying task cannot starve its siblings.
func (s *Scheduler) Submit(ctx context.Context, task Task) Result {
	res := Result{Label: task.Label}
	if task.Done != nil {
		defer task.Done()
	}
	if task.Do == nil {
		res.Err = services.Wrap(services.ErrConfiguration, task.Capability, "submit", "task has no work function", nil)
		return res
	}
	cp := s.capabilityFor(task.Capability)
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldCapability, task.Capability),
		logging.String("task", task.Label),
	)

	var lastErr error
	for attempt := 1; attempt <= cp.limits.MaxAttempts; attempt++ {
		if err := s.admit(ctx, cp); err != nil {
			res.Err = services.Wrap(nil, task.Capability, "admit", "admission aborted", err)
			return res
		}
		res.Attempts = attempt
		value, err := s.runAttempt(ctx, cp, task)
		cp.release()
		if err == nil {
			res.Value = value
			return res
		}
		lastErr = err
		if !services.IsRetryable(err) {
			logger.Warn("task failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldEventType, "task_failed"))
			res.Err = err
			return res
		}
		if attempt == cp.limits.MaxAttempts || s.isCancelled() {
			break
		}
		delay := s.backoffDelay(cp.limits, attempt)
		logger.Warn("task attempt failed, retrying",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", cp.limits.MaxAttempts),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "task_retry"))
		if err := sleepContext(ctx, delay); err != nil {
			res.Err = services.Wrap(nil, task.Capability, "backoff", "wait aborted", err)
			return res
		}
	}
	logger.Error("task exhausted retries",
		logging.Int("attempts", res.Attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldEventType, "task_exhausted"),
		logging.String(logging.FieldErrorHint, "check provider status or raise max_attempts"))
	res.Err = lastErr
	return res
}

// RunAll fans tasks out across their capabilities and joins on all of
// them. Failures are collected, never propagated to siblings; the
// returned slice is ordered by the input index.
func (s *Scheduler) RunAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, t Task) {
			defer wg.Done()
			res := s.Submit(ctx, t)
			res.Index = idx
			results[idx] = res
		}(i, task)
	}
	wg.Wait()
	sort.SliceStable(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	return results
}

// FirstError returns the first failure in a result set, or nil when
// every task succeeded.
func FirstError(results []Result) error {
	for _, res := range results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// admit waits for a concurrency slot, then for the capability's next
// rate window. The slot is held until release.
func (s *Scheduler) admit(ctx context.Context, cp *capability) error {
	if s.isCancelled() {
		return ErrCancelled
	}
	select {
	case cp.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	wait := cp.reserveSlot()
	if wait > 0 {
		if err := sleepContext(ctx, wait); err != nil {
			cp.release()
			return err
		}
	}
	if s.isCancelled() {
		cp.release()
		return ErrCancelled
	}
	return nil
}

// reserveSlot claims the next dispatch window and returns how long the
// caller must wait before using it.
func (c *capability) reserveSlot() time.Duration {
	interval := time.Duration(c.limits.MinIntervalMS) * time.Millisecond
	if interval <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	slot := c.nextSlot
	if slot.Before(now) {
		slot = now
	}
	c.nextSlot = slot.Add(interval)
	return slot.Sub(now)
}

func (c *capability) release() {
	<-c.sem
}

// runAttempt executes one attempt under the per-attempt deadline. The
// attempt context is detached from run cancellation so an in-flight
// provider call can finish and its result still be recorded.
func (s *Scheduler) runAttempt(ctx context.Context, cp *capability, task Task) (any, error) {
	attemptCtx := context.WithoutCancel(ctx)
	timeout := time.Duration(cp.limits.AttemptTimeoutSeconds) * time.Second
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(attemptCtx, timeout)
		defer cancel()
	}
	value, err := task.Do(attemptCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, services.Wrap(services.ErrTimeout, task.Capability, "attempt", "attempt deadline exceeded", err)
	}
	return value, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
