// Package scheduler executes work items against named external
// capabilities under two per-capability constraints: a concurrency
// semaphore bounding in-flight calls, and a fixed-interval rate limiter
// admitting one dispatch per window. Transient failures are retried
// with exponential backoff and jitter up to a configured attempt cap.
// RunAll is the fan-out/join barrier used by pipeline stages: it
// returns only after every item reaches a terminal state, and one
// item's failure never cancels its siblings.
package scheduler
