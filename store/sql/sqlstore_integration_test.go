package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/credentials"
	sqlstore "github.com/goliatone/go-onboarding/store/sql"
	"github.com/goliatone/go-onboarding/workflow"
	persistence "github.com/goliatone/go-persistence-bun"
)

var testEpoch = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestOpen_AppliesSchemaOnSQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"onboarding_snapshots", "onboarding_credentials"} {
		var name string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &name); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if name != table {
			t.Fatalf("expected %s table, got %q", table, name)
		}
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := sqlstore.Open(context.Background(), sqlstore.Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
}

func TestSnapshotStore_PutGetOverwriteDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	manual := clock.NewManual(testEpoch)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithClock(manual))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.SnapshotStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, workflow.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Put(ctx, "onboarding:workflow:state", []byte(`{"v":1}`), testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "onboarding:workflow:state", []byte(`{"v":2}`), testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	payload, err := store.Get(ctx, "onboarding:workflow:state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(payload) != `{"v":2}` {
		t.Fatalf("expected overwritten payload, got %s", payload)
	}

	var rows int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM onboarding_snapshots").Scan(ctx, &rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single row per key, got %d", rows)
	}

	if err := store.Delete(ctx, "onboarding:workflow:state"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "onboarding:workflow:state"); !errors.Is(err, workflow.ErrSnapshotNotFound) {
		t.Fatalf("expected deleted key to be missing, got %v", err)
	}
}

func TestSnapshotStore_ExpiryAndKeys(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	manual := clock.NewManual(testEpoch)
	store, err := sqlstore.NewSnapshotStore(client.DB(), sqlstore.WithClock(manual))
	if err != nil {
		t.Fatalf("new snapshot store: %v", err)
	}

	mustPut(t, store, "onboarding:workflow:state", testEpoch.Add(time.Minute))
	mustPut(t, store, workflow.CheckpointKeyPrefix+"b", time.Time{})
	mustPut(t, store, workflow.CheckpointKeyPrefix+"a", time.Time{})
	mustPut(t, store, "onboarding:workflow:checkpoints_index", time.Time{})

	keys, err := store.Keys(ctx, workflow.CheckpointKeyPrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := workflow.CheckpointKeyPrefix + "a," + workflow.CheckpointKeyPrefix + "b"
	if strings.Join(keys, ",") != want {
		t.Fatalf("expected %s, got %v", want, keys)
	}

	manual.Advance(time.Minute)
	if _, err := store.Get(ctx, "onboarding:workflow:state"); !errors.Is(err, workflow.ErrSnapshotNotFound) {
		t.Fatalf("expected expired row to read as missing, got %v", err)
	}
	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged row, got %d", purged)
	}
	if _, err := store.Get(ctx, workflow.CheckpointKeyPrefix+"a"); err != nil {
		t.Fatalf("expected checkpoint without expiry to survive, got %v", err)
	}
}

func TestSnapshotStore_BacksWorkflowStore(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	manual := clock.NewManual(testEpoch)
	snapshots, err := sqlstore.NewSnapshotStore(client.DB(), sqlstore.WithClock(manual))
	if err != nil {
		t.Fatalf("new snapshot store: %v", err)
	}

	first := workflow.NewStore(workflow.WithSnapshotStore(snapshots), workflow.WithClock(manual))
	for _, action := range []workflow.Action{
		workflow.SetField{Field: workflow.FieldBusinessCategory, Value: "retail"},
		workflow.Advance{},
		workflow.SetField{Field: workflow.FieldPhoneNumber, Value: "0501234567"},
	} {
		if _, err := first.Dispatch(ctx, action); err != nil {
			t.Fatalf("dispatch %s: %v", action.Type(), err)
		}
	}
	if err := first.Checkpoint(ctx, "phone"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	second := workflow.NewStore(workflow.WithSnapshotStore(snapshots), workflow.WithClock(manual))
	state := second.Load(ctx)
	if state.CurrentStep != workflow.StepPhoneNumber || state.Data.PhoneNumber != "0501234567" {
		t.Fatalf("unexpected reloaded state %+v", state)
	}
	labels, err := second.Checkpoints(ctx)
	if err != nil || len(labels) != 1 || labels[0] != "phone" {
		t.Fatalf("expected phone checkpoint, got %v (%v)", labels, err)
	}
}

func TestCredentialStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.CredentialStore()
	other, err := factory.CredentialStoreFor("merchant-2")
	if err != nil {
		t.Fatalf("scoped credential store: %v", err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Save(ctx, credentials.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, credentials.Pair{AccessToken: "access-2", RefreshToken: "refresh-1"}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := other.Save(ctx, credentials.Pair{AccessToken: "other", RefreshToken: "other-refresh"}); err != nil {
		t.Fatalf("save other: %v", err)
	}

	pair, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pair.AccessToken != "access-2" || pair.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected pair %+v", pair)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected cleared pair to be missing, got %v", err)
	}
	if pair, err := other.Load(ctx); err != nil || pair.AccessToken != "other" {
		t.Fatalf("expected other subject untouched, got %+v (%v)", pair, err)
	}
}

func mustPut(t *testing.T, store *sqlstore.SnapshotStore, key string, expiresAt time.Time) {
	t.Helper()
	if err := store.Put(context.Background(), key, []byte(`{}`), expiresAt); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()
	dsn := fmt.Sprintf(
		"file:onboarding-test-%d?mode=memory&cache=shared",
		time.Now().UnixNano(),
	)
	client, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Driver:      "sqlite3",
		DSN:         dsn,
		PingTimeout: time.Second,
		Identifier:  "go-onboarding-tests",
	})
	if err != nil {
		t.Fatalf("open sqlite client: %v", err)
	}
	return client, func() {
		_ = client.Close()
	}
}
