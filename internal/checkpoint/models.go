package checkpoint

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusFailed   Status = "failed"
	StatusComplete Status = "complete"
)

var allStatuses = []Status{
	StatusRunning,
	StatusPaused,
	StatusFailed,
	StatusComplete,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a run in this status will make no further progress.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusComplete
}

// Artifact is the opaque product of one stage: a type tag plus a JSON payload.
// Bulk media lives in the run's staging directory; payloads carry paths.
type Artifact struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewArtifact marshals payload into an Artifact tagged with typeName.
func NewArtifact(typeName string, payload any) (Artifact, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Type: typeName, Payload: raw}, nil
}

// Decode unmarshals the artifact payload into target.
func (a Artifact) Decode(target any) error {
	return json.Unmarshal(a.Payload, target)
}

// Run represents one pipeline run persisted in SQLite.
type Run struct {
	ID           string
	Status       Status
	CurrentStage string
	InputJSON    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Record is one durable checkpoint: the artifact a stage produced,
// with the run-scoped sequence number assigned at write time.
type Record struct {
	RunID     string
	Seq       int64
	Stage     string
	Artifact  Artifact
	CreatedAt time.Time
}
