package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSnapshotVersion = errors.New("workflow: snapshot version mismatch")
	ErrSnapshotExpired = errors.New("workflow: snapshot expired")
)

// Snapshot is a persisted copy of the workflow state. A zero ExpiresAt
// never expires.
type Snapshot struct {
	Version   string
	State     State
	Timestamp time.Time
	ExpiresAt time.Time
}

func (s Snapshot) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type snapshotDocument struct {
	Version   string        `json:"version"`
	Data      stateDocument `json:"data"`
	Timestamp int64         `json:"timestamp"`
	ExpiresAt int64         `json:"expiresAt,omitempty"`
}

type stateDocument struct {
	CurrentStep      Step              `json:"currentStep"`
	CompletedSteps   []Step            `json:"completedSteps"`
	Data             Data              `json:"data"`
	ValidationErrors map[string]string `json:"validationErrors"`
	IsLoading        bool              `json:"isLoading"`
}

// EncodeSnapshot writes the completed set as an ordered list and timestamps
// as unix milliseconds. IsLoading is always written false.
func EncodeSnapshot(snapshot Snapshot) ([]byte, error) {
	state := snapshot.State.Clone()
	doc := snapshotDocument{
		Version: snapshot.Version,
		Data: stateDocument{
			CurrentStep:      state.CurrentStep,
			CompletedSteps:   state.CompletedSteps.List(),
			Data:             state.Data,
			ValidationErrors: state.ValidationErrors,
		},
		Timestamp: snapshot.Timestamp.UnixMilli(),
	}
	if !snapshot.ExpiresAt.IsZero() {
		doc.ExpiresAt = snapshot.ExpiresAt.UnixMilli()
	}
	return json.Marshal(doc)
}

// DecodeSnapshot parses payload without checking version or expiry.
func DecodeSnapshot(payload []byte) (Snapshot, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("workflow: decode snapshot: %w", err)
	}
	if strings.TrimSpace(doc.Version) == "" {
		return Snapshot{}, fmt.Errorf("workflow: snapshot version missing")
	}
	if doc.Data.CurrentStep.Index() < 0 {
		return Snapshot{}, fmt.Errorf("workflow: snapshot current step %q unknown", doc.Data.CurrentStep)
	}

	state := InitialState()
	state.CurrentStep = doc.Data.CurrentStep
	for _, step := range doc.Data.CompletedSteps {
		if step.Index() < 0 {
			return Snapshot{}, fmt.Errorf("workflow: snapshot completed step %q unknown", step)
		}
		state.CompletedSteps.Add(step)
	}
	state.Data = doc.Data.Data.Clone()
	for field, message := range doc.Data.ValidationErrors {
		state.ValidationErrors[field] = message
	}

	snapshot := Snapshot{
		Version:   doc.Version,
		State:     state,
		Timestamp: time.UnixMilli(doc.Timestamp),
	}
	if doc.ExpiresAt > 0 {
		snapshot.ExpiresAt = time.UnixMilli(doc.ExpiresAt)
	}
	return snapshot, nil
}

// Rehydrate decodes payload and rejects it when the version differs from
// version or it has expired at now.
func Rehydrate(payload []byte, version string, now time.Time) (State, error) {
	snapshot, err := DecodeSnapshot(payload)
	if err != nil {
		return State{}, err
	}
	if snapshot.Version != version {
		return State{}, fmt.Errorf("%w: got %q want %q", ErrSnapshotVersion, snapshot.Version, version)
	}
	if snapshot.Expired(now) {
		return State{}, ErrSnapshotExpired
	}
	return snapshot.State, nil
}
