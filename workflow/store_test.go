package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
)

var storeEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(snapshots SnapshotStore, c clock.Clock) *Store {
	return NewStore(WithSnapshotStore(snapshots), WithClock(c))
}

func dispatchAll(t *testing.T, store *Store, actions ...Action) State {
	t.Helper()
	var state State
	for _, action := range actions {
		next, err := store.Dispatch(context.Background(), action)
		if err != nil {
			t.Fatalf("dispatch %s: %v", action.Type(), err)
		}
		state = next
	}
	return state
}

func TestStore_PersistsAndReloadsBeforeExpiry(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	manual := clock.NewManual(storeEpoch)
	store := newTestStore(snapshots, manual)

	want := dispatchAll(t, store,
		SetField{Field: FieldBusinessCategory, Value: "retail"},
		Advance{},
		SetField{Field: FieldPhoneNumber, Value: "0501234567"},
		Advance{},
		MarkVerified{Flag: FlagOTPVerified},
		SetField{Field: FieldBusinessProfile, Value: &BusinessProfile{CRNumber: "1010101010", LegalName: "Acme"}},
		SetLoading{Loading: true},
	)

	expiresAt, ok := snapshots.ExpiresAt(core.DefaultWorkflowStorageKey)
	if !ok || !expiresAt.Equal(storeEpoch.Add(24*time.Hour)) {
		t.Fatalf("expected 24h expiry hint, got %v (%v)", expiresAt, ok)
	}

	manual.Advance(23 * time.Hour)
	reloaded := newTestStore(snapshots, manual).Load(context.Background())

	if reloaded.CurrentStep != want.CurrentStep {
		t.Fatalf("expected current step %s, got %s", want.CurrentStep, reloaded.CurrentStep)
	}
	if !reloaded.CompletedSteps.Equal(want.CompletedSteps) {
		t.Fatalf("expected completed %v, got %v", want.CompletedSteps.List(), reloaded.CompletedSteps.List())
	}
	if reloaded.Data.BusinessProfile == nil || *reloaded.Data.BusinessProfile != *want.Data.BusinessProfile {
		t.Fatalf("expected business profile to survive, got %+v", reloaded.Data.BusinessProfile)
	}
	want.Data.BusinessProfile, reloaded.Data.BusinessProfile = nil, nil
	if reloaded.Data != want.Data {
		t.Fatalf("expected data %+v, got %+v", want.Data, reloaded.Data)
	}
	if reloaded.IsLoading {
		t.Fatalf("expected loading flag to rehydrate false")
	}
}

func TestStore_SnapshotDocumentShape(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	store := newTestStore(snapshots, clock.NewManual(storeEpoch))
	dispatchAll(t, store,
		SetField{Field: FieldBusinessCategory, Value: "retail"},
		Advance{},
	)

	payload, err := snapshots.Get(context.Background(), core.DefaultWorkflowStorageKey)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if doc["version"] != "1.0" {
		t.Fatalf("expected version 1.0, got %v", doc["version"])
	}
	if doc["timestamp"] != float64(storeEpoch.UnixMilli()) {
		t.Fatalf("expected unix ms timestamp, got %v", doc["timestamp"])
	}
	if doc["expiresAt"] != float64(storeEpoch.Add(24*time.Hour).UnixMilli()) {
		t.Fatalf("expected unix ms expiry, got %v", doc["expiresAt"])
	}
	data, _ := doc["data"].(map[string]any)
	completed, _ := data["completedSteps"].([]any)
	if data["currentStep"] != "phone-number" || len(completed) != 1 || completed[0] != "business-category" {
		t.Fatalf("unexpected state document: %v", data)
	}
}

func TestStore_DiscardsOldSchemaVersion(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	old := NewStore(WithSnapshotStore(snapshots), WithClock(clock.NewManual(storeEpoch)), WithConfig(core.WorkflowConfig{Version: "0.9"}))
	dispatchAll(t, old,
		SetField{Field: FieldBusinessCategory, Value: "retail"},
		Advance{},
	)

	current := newTestStore(snapshots, clock.NewManual(storeEpoch))
	state := current.Load(context.Background())
	if state.CurrentStep != FirstStep() || state.CompletedSteps.Len() != 0 || state.Data.BusinessCategory != "" {
		t.Fatalf("expected clean initial state, got %+v", state)
	}
	if _, err := snapshots.Get(context.Background(), core.DefaultWorkflowStorageKey); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected stale snapshot deleted, got %v", err)
	}
}

func TestStore_DiscardsExpiredAndMalformedSnapshots(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	manual := clock.NewManual(storeEpoch)
	dispatchAll(t, newTestStore(snapshots, manual), SetField{Field: FieldBusinessCategory, Value: "retail"})

	manual.Advance(24 * time.Hour)
	if state := newTestStore(snapshots, manual).Load(context.Background()); state.Data.BusinessCategory != "" {
		t.Fatalf("expected expired snapshot to be ignored, got %+v", state.Data)
	}

	_ = snapshots.Put(context.Background(), core.DefaultWorkflowStorageKey, []byte(`{"version":"1.0","data":{"currentStep":"warp"}}`), time.Time{})
	if state := newTestStore(snapshots, manual).Load(context.Background()); state.CurrentStep != FirstStep() {
		t.Fatalf("expected malformed snapshot to be ignored, got %s", state.CurrentStep)
	}
}

func TestStore_PersistenceFailureIsSwallowed(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	snapshots.FailWith(errors.New("quota exceeded"))
	store := newTestStore(snapshots, clock.NewManual(storeEpoch))

	state, err := store.Dispatch(context.Background(), SetField{Field: FieldBusinessCategory, Value: "retail"})
	if err != nil {
		t.Fatalf("expected persistence failure to be swallowed, got %v", err)
	}
	if state.Data.BusinessCategory != "retail" || store.State().Data.BusinessCategory != "retail" {
		t.Fatalf("expected in-memory state to stay authoritative")
	}
	if loaded := store.Load(context.Background()); loaded.Data.BusinessCategory != "" {
		t.Fatalf("expected unreadable storage to load initial state")
	}
}

func TestStore_DispatchRejectsInvalidActions(t *testing.T) {
	store := newTestStore(NewMemorySnapshotStore(), clock.NewManual(storeEpoch))
	if _, err := store.Dispatch(context.Background(), nil); err == nil {
		t.Fatalf("expected nil action to fail")
	}
	_, err := store.Dispatch(context.Background(), SetStep{Step: StepGlobalScreening})
	if err == nil || !core.HasTextCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for route-only step, got %v", err)
	}
}

func TestStore_SubscribersSeeChangesOnly(t *testing.T) {
	store := newTestStore(NewMemorySnapshotStore(), clock.NewManual(storeEpoch))
	var changes []Change
	dispose := store.Subscribe(func(_ context.Context, change Change) {
		changes = append(changes, change)
	})

	dispatchAll(t, store,
		SetField{Field: FieldBusinessCategory, Value: "retail"},
		SetField{Field: FieldBusinessCategory, Value: "retail"},
		Advance{},
		Advance{},
	)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[1].Cause != TypeAdvance || changes[1].Previous.CurrentStep != StepBusinessCategory || changes[1].Current.CurrentStep != StepPhoneNumber {
		t.Fatalf("unexpected change: %+v", changes[1])
	}

	dispose()
	dispatchAll(t, store, Reset{})
	if len(changes) != 2 {
		t.Fatalf("expected no delivery after dispose")
	}
}

func TestStore_ResetClearsPersistedSnapshot(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	store := newTestStore(snapshots, clock.NewManual(storeEpoch))
	dispatchAll(t, store, SetField{Field: FieldBusinessCategory, Value: "retail"}, Reset{})

	if _, err := snapshots.Get(context.Background(), core.DefaultWorkflowStorageKey); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected reset to delete the snapshot, got %v", err)
	}
}

func TestStore_Checkpoints(t *testing.T) {
	snapshots := NewMemorySnapshotStore()
	manual := clock.NewManual(storeEpoch)
	store := newTestStore(snapshots, manual)
	ctx := context.Background()

	dispatchAll(t, store, SetField{Field: FieldBusinessCategory, Value: "retail"}, Advance{})
	if err := store.Checkpoint(ctx, "after-category"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	dispatchAll(t, store, SetField{Field: FieldPhoneNumber, Value: "0501234567"}, Advance{})
	if err := store.Checkpoint(ctx, "after-phone"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	labels, err := store.Checkpoints(ctx)
	if err != nil {
		t.Fatalf("checkpoints: %v", err)
	}
	if strings.Join(labels, ",") != "after-category,after-phone" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if expiresAt, _ := snapshots.ExpiresAt(CheckpointKeyPrefix + "after-category"); !expiresAt.IsZero() {
		t.Fatalf("expected checkpoints to carry no expiry")
	}

	manual.Advance(48 * time.Hour)
	restored, err := store.RestoreCheckpoint(ctx, "after-category")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.CurrentStep != StepPhoneNumber || restored.Data.PhoneNumber != "" {
		t.Fatalf("unexpected restored state %+v", restored)
	}
	if reloaded := newTestStore(snapshots, manual).Load(ctx); reloaded.CurrentStep != StepPhoneNumber {
		t.Fatalf("expected restored state to become the primary snapshot, got %s", reloaded.CurrentStep)
	}

	if _, err := store.RestoreCheckpoint(ctx, "missing"); err == nil {
		t.Fatalf("expected missing checkpoint to fail")
	}
	if err := store.Checkpoint(ctx, "  "); err == nil {
		t.Fatalf("expected empty label to fail")
	}
	if err := store.DeleteCheckpoint(ctx, "after-phone"); err != nil {
		t.Fatalf("delete checkpoint: %v", err)
	}
	if labels, _ := store.Checkpoints(ctx); len(labels) != 1 {
		t.Fatalf("expected one label left, got %v", labels)
	}
}
