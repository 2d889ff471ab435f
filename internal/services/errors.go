package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: connection resets,
	// 5xx-equivalent responses, upstream hiccups.
	ErrTransient = errors.New("transient failure")
	// ErrTimeout marks a per-attempt deadline expiry. Retried like a
	// transient failure.
	ErrTimeout = errors.New("timeout")
	// ErrRateLimited marks an explicit rejection by a provider's rate
	// limiter. Retried after backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation marks structured output that does not conform to the
	// requested schema. Never retried by the scheduler; the owning stage
	// decides whether to re-invoke generation with corrective feedback.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrPersistence marks a checkpoint write failure. Fatal: continuing
	// without durable checkpoints would break the resume guarantee.
	ErrPersistence = errors.New("persistence error")
)

// Wrap tags err with a sentinel marker and capability/operation context so
// callers can classify it with errors.Is while keeping the full chain.
func Wrap(marker error, capability, operation, message string, err error) error {
	detail := buildDetail(capability, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the scheduler should spend retry budget on err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

// Message extracts the human-readable portion of a classified error,
// stripping the leading sentinel prefix when present.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	for _, marker := range []error{ErrTransient, ErrTimeout, ErrRateLimited, ErrValidation, ErrConfiguration, ErrPersistence} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimPrefix(text, prefix)
		}
	}
	return text
}

func buildDetail(capability, operation, message string) string {
	parts := make([]string, 0, 3)
	if capability = strings.TrimSpace(capability); capability != "" {
		parts = append(parts, capability)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
