package redisstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/workflow"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSnapshotStore_UsesNativeTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	manual := clock.NewManual(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	store, err := NewSnapshotStore(client, WithClock(manual))
	if err != nil {
		t.Fatalf("new snapshot store: %v", err)
	}

	if err := store.Put(ctx, "onboarding:workflow:state", []byte(`{"v":1}`), manual.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("onboarding::onboarding:workflow:state") {
		t.Fatalf("expected namespaced key in redis, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("onboarding::onboarding:workflow:state"); ttl != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %v", ttl)
	}

	payload, err := store.Get(ctx, "onboarding:workflow:state")
	if err != nil || string(payload) != `{"v":1}` {
		t.Fatalf("unexpected get result %s (%v)", payload, err)
	}

	mr.FastForward(24 * time.Hour)
	if _, err := store.Get(ctx, "onboarding:workflow:state"); !errors.Is(err, workflow.ErrSnapshotNotFound) {
		t.Fatalf("expected expired key to be missing, got %v", err)
	}
}

func TestSnapshotStore_PastExpiryDeletesAndZeroExpiryPersists(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	manual := clock.NewManual(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	store, _ := NewSnapshotStore(client, WithClock(manual), WithNamespace("test"))

	if err := store.Put(ctx, "checkpoint", []byte(`{}`), time.Time{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("test::checkpoint"); ttl != 0 {
		t.Fatalf("expected no ttl for zero expiry, got %v", ttl)
	}
	if err := store.Put(ctx, "checkpoint", []byte(`{}`), manual.Now().Add(-time.Second)); err != nil {
		t.Fatalf("put past expiry: %v", err)
	}
	if mr.Exists("test::checkpoint") {
		t.Fatalf("expected past expiry to delete the key")
	}
}

func TestSnapshotStore_KeysStripsNamespace(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store, _ := NewSnapshotStore(client)

	for _, key := range []string{
		workflow.CheckpointKeyPrefix + "b",
		workflow.CheckpointKeyPrefix + "a",
		"onboarding:workflow:state",
	} {
		if err := store.Put(ctx, key, []byte(`{}`), time.Time{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	keys, err := store.Keys(ctx, workflow.CheckpointKeyPrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := workflow.CheckpointKeyPrefix + "a," + workflow.CheckpointKeyPrefix + "b"
	if strings.Join(keys, ",") != want {
		t.Fatalf("expected %s, got %v", want, keys)
	}
}

func TestSnapshotStore_BacksWorkflowCheckpoints(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	manual := clock.NewManual(time.Now().UTC())
	snapshots, _ := NewSnapshotStore(client, WithClock(manual))
	store := workflow.NewStore(workflow.WithSnapshotStore(snapshots), workflow.WithClock(manual))

	if _, err := store.Dispatch(ctx, workflow.SetField{Field: workflow.FieldBusinessCategory, Value: "retail"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := store.Checkpoint(ctx, "category"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if _, err := store.Dispatch(ctx, workflow.Reset{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	restored, err := store.RestoreCheckpoint(ctx, "category")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Data.BusinessCategory != "retail" {
		t.Fatalf("unexpected restored state %+v", restored.Data)
	}
}

func TestCredentialStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store, err := NewCredentialStore(client, "merchant-1")
	if err != nil {
		t.Fatalf("new credential store: %v", err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, credentials.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := mr.HGet("onboarding::credentials:merchant-1", "access_token"); got != "access-1" {
		t.Fatalf("expected access token in hash, got %q", got)
	}
	pair, err := store.Load(ctx)
	if err != nil || pair.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected pair %+v (%v)", pair, err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected cleared pair to be missing, got %v", err)
	}
	if _, err := NewCredentialStore(client, " "); err == nil {
		t.Fatalf("expected empty subject to fail")
	}
}
