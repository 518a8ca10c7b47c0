package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
)

const (
	CheckpointKeyPrefix = "onboarding:workflow:checkpoint:"

	CauseLoad              = "onboarding.workflow.load"
	CauseCheckpointRestore = "onboarding.workflow.checkpoint.restore"
)

// Change describes one state transition. Cause is the action type, or one
// of the Cause constants for transitions that did not come from Dispatch.
type Change struct {
	Cause    string
	Previous State
	Current  State
}

type Option func(*Store)

func WithSnapshotStore(snapshots SnapshotStore) Option {
	return func(s *Store) {
		if snapshots != nil {
			s.snapshots = snapshots
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = clock.Resolve(c)
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// WithConfig applies the storage key, schema version and TTL. Empty values
// keep the defaults.
func WithConfig(cfg core.WorkflowConfig) Option {
	return func(s *Store) {
		if key := strings.TrimSpace(cfg.StorageKey); key != "" {
			s.key = key
		}
		if version := strings.TrimSpace(cfg.Version); version != "" {
			s.version = version
		}
		if cfg.TTL > 0 {
			s.ttl = cfg.TTL
		}
	}
}

// Store owns the workflow state. Every change goes through Reduce, is
// persisted as a versioned snapshot and then published to subscribers.
type Store struct {
	snapshots SnapshotStore
	clock     clock.Clock
	key       string
	version   string
	ttl       time.Duration
	logger    core.Logger
	metrics   core.MetricsRecorder
	obs       core.Instrumentation

	mu          sync.Mutex
	state       State
	subscribers core.Observers[Change]
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		snapshots: NewMemorySnapshotStore(),
		clock:     clock.Real(),
		key:       core.DefaultWorkflowStorageKey,
		version:   core.DefaultWorkflowVersion,
		ttl:       core.DefaultWorkflowTTL,
		state:     InitialState(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.obs = core.NewInstrumentation("onboarding.workflow", s.logger, s.metrics)
	return s
}

func (s *Store) StorageKey() string { return s.key }

func (s *Store) Version() string { return s.version }

// Load replaces the in-memory state with the persisted snapshot. Missing,
// malformed, expired or version-mismatched snapshots yield the initial state;
// the last three are also deleted from storage.
func (s *Store) Load(ctx context.Context) State {
	loaded := s.readSnapshot(ctx)

	s.mu.Lock()
	previous := s.state
	s.state = loaded
	s.mu.Unlock()

	if !reflect.DeepEqual(previous, loaded) {
		s.subscribers.Publish(ctx, Change{Cause: CauseLoad, Previous: previous.Clone(), Current: loaded.Clone()})
	}
	return loaded.Clone()
}

func (s *Store) readSnapshot(ctx context.Context) State {
	payload, err := s.snapshots.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			s.obs.LogWarn(ctx, "workflow snapshot read failed", map[string]any{
				"key":   s.key,
				"error": err.Error(),
			})
		}
		return InitialState()
	}

	state, err := Rehydrate(payload, s.version, s.clock.Now())
	if err != nil {
		s.obs.LogInfo(ctx, "workflow snapshot discarded", map[string]any{
			"key":    s.key,
			"reason": err.Error(),
		})
		if deleteErr := s.snapshots.Delete(ctx, s.key); deleteErr != nil {
			s.obs.LogWarn(ctx, "workflow snapshot delete failed", map[string]any{
				"key":   s.key,
				"error": deleteErr.Error(),
			})
		}
		return InitialState()
	}
	return state
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch validates action, reduces it into the state and persists the
// result when it changed. Persistence failures are logged, never returned.
func (s *Store) Dispatch(ctx context.Context, action Action) (State, error) {
	if action == nil {
		return s.State(), core.NewBadInputError("workflow: action is required")
	}
	if err := action.Validate(); err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	previous := s.state
	next := Reduce(previous, action)
	changed := !reflect.DeepEqual(previous, next)
	if changed {
		s.state = next
	}
	_, reset := action.(Reset)
	switch {
	case reset:
		s.clearLocked(ctx)
	case changed:
		s.persistLocked(ctx, next)
	}
	s.mu.Unlock()

	if changed {
		s.subscribers.Publish(ctx, Change{Cause: action.Type(), Previous: previous.Clone(), Current: next.Clone()})
	}
	return next.Clone(), nil
}

func (s *Store) persistLocked(ctx context.Context, state State) {
	startedAt := time.Now()
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	payload, err := EncodeSnapshot(Snapshot{
		Version:   s.version,
		State:     state,
		Timestamp: now,
		ExpiresAt: expiresAt,
	})
	if err == nil {
		err = s.snapshots.Put(ctx, s.key, payload, expiresAt)
	}
	s.obs.ObserveOperation(ctx, startedAt, "workflow.persist", err, map[string]any{
		"key":  s.key,
		"step": string(state.CurrentStep),
	})
}

func (s *Store) clearLocked(ctx context.Context) {
	if err := s.snapshots.Delete(ctx, s.key); err != nil {
		s.obs.LogWarn(ctx, "workflow snapshot delete failed", map[string]any{
			"key":   s.key,
			"error": err.Error(),
		})
	}
}

// Subscribe registers fn for state changes and returns its disposer.
func (s *Store) Subscribe(fn func(context.Context, Change)) func() {
	return s.subscribers.Subscribe(fn)
}

// Close drops every subscriber.
func (s *Store) Close() {
	s.subscribers.Clear()
}

// Checkpoint writes the current state under label. Checkpoints never expire
// and are independent of the primary snapshot.
func (s *Store) Checkpoint(ctx context.Context, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return core.NewValidationError("label", "checkpoint label is required")
	}
	state := s.State()
	payload, err := EncodeSnapshot(Snapshot{
		Version:   s.version,
		State:     state,
		Timestamp: s.clock.Now(),
	})
	if err != nil {
		return core.MapError(err)
	}
	if err := s.snapshots.Put(ctx, CheckpointKeyPrefix+label, payload, time.Time{}); err != nil {
		return core.MapError(fmt.Errorf("workflow: write checkpoint %q: %w", label, err))
	}
	return nil
}

// Checkpoints lists stored checkpoint labels in lexical order.
func (s *Store) Checkpoints(ctx context.Context) ([]string, error) {
	keys, err := s.snapshots.Keys(ctx, CheckpointKeyPrefix)
	if err != nil {
		return nil, core.MapError(fmt.Errorf("workflow: list checkpoints: %w", err))
	}
	labels := make([]string, 0, len(keys))
	for _, key := range keys {
		if label := strings.TrimPrefix(key, CheckpointKeyPrefix); label != "" && label != key {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// RestoreCheckpoint makes the checkpointed state current and persists it as
// the primary snapshot.
func (s *Store) RestoreCheckpoint(ctx context.Context, label string) (State, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return s.State(), core.NewValidationError("label", "checkpoint label is required")
	}
	payload, err := s.snapshots.Get(ctx, CheckpointKeyPrefix+label)
	if errors.Is(err, ErrSnapshotNotFound) {
		return s.State(), core.NewBadInputError(fmt.Sprintf("workflow: checkpoint %q not found", label))
	}
	if err != nil {
		return s.State(), core.MapError(fmt.Errorf("workflow: read checkpoint %q: %w", label, err))
	}
	restored, err := Rehydrate(payload, s.version, s.clock.Now())
	if err != nil {
		return s.State(), core.NewBadInputError(fmt.Sprintf("workflow: checkpoint %q unusable: %v", label, err))
	}

	s.mu.Lock()
	previous := s.state
	s.state = restored
	s.persistLocked(ctx, restored)
	s.mu.Unlock()

	s.subscribers.Publish(ctx, Change{Cause: CauseCheckpointRestore, Previous: previous.Clone(), Current: restored.Clone()})
	return restored.Clone(), nil
}

// DeleteCheckpoint removes label. Missing checkpoints are not an error.
func (s *Store) DeleteCheckpoint(ctx context.Context, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return core.NewValidationError("label", "checkpoint label is required")
	}
	if err := s.snapshots.Delete(ctx, CheckpointKeyPrefix+label); err != nil {
		return core.MapError(fmt.Errorf("workflow: delete checkpoint %q: %w", label, err))
	}
	return nil
}
