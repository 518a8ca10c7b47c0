package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/workflow"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Option func(*options)

type options struct {
	clock clock.Clock
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = clock.Resolve(c)
	}
}

func resolveOptions(opts []Option) options {
	resolved := options{clock: clock.Real()}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// SnapshotStore keeps workflow snapshots in the onboarding_snapshots table.
// Rows past their expires_at read as missing.
type SnapshotStore struct {
	db    *bun.DB
	repo  repository.Repository[*snapshotRecord]
	clock clock.Clock
}

func NewSnapshotStore(db *bun.DB, opts ...Option) (*SnapshotStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*snapshotRecord](db, snapshotHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid snapshot repository wiring: %w", err)
		}
	}
	return &SnapshotStore{
		db:    db,
		repo:  repo,
		clock: resolveOptions(opts).clock,
	}, nil
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	key = strings.TrimSpace(key)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("storage_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0].expired(s.clock.Now()) {
		return nil, workflow.ErrSnapshotNotFound
	}
	return []byte(records[0].Payload), nil
}

func (s *SnapshotStore) Put(ctx context.Context, key string, payload []byte, expiresAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: snapshot key is required")
	}
	now := s.clock.Now().UTC()
	var expiry *time.Time
	if !expiresAt.IsZero() {
		value := expiresAt.UTC()
		expiry = &value
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findSnapshotTx(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			_, createErr := s.repo.CreateTx(ctx, tx, &snapshotRecord{
				ID:         uuid.NewString(),
				StorageKey: key,
				Payload:    string(payload),
				ExpiresAt:  expiry,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			return createErr
		}
		record.Payload = string(payload)
		record.ExpiresAt = expiry
		record.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(record).
			Column("payload", "expires_at", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*snapshotRecord)(nil)).
		Where("storage_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

// Keys lists unexpired keys starting with prefix in lexical order.
func (s *SnapshotStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	var records []snapshotRecord
	err := s.db.NewSelect().
		Model(&records).
		Column("storage_key", "expires_at").
		Where("?TableAlias.storage_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		OrderExpr("?TableAlias.storage_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	keys := make([]string, 0, len(records))
	for i := range records {
		if records[i].expired(now) || !strings.HasPrefix(records[i].StorageKey, prefix) {
			continue
		}
		keys = append(keys, records[i].StorageKey)
	}
	return keys, nil
}

// PurgeExpired deletes rows whose expiry has passed and reports how many
// were removed.
func (s *SnapshotStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*snapshotRecord)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", s.clock.Now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func findSnapshotTx(ctx context.Context, tx bun.Tx, key string) (*snapshotRecord, error) {
	record := &snapshotRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.storage_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
