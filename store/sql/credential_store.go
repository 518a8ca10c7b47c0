package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/credentials"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultCredentialSubject = "default"

// CredentialStore persists the token pair of one subject in the
// onboarding_credentials table.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	subject string
	clock   clock.Clock
}

func NewCredentialStore(db *bun.DB, subject string, opts ...Option) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultCredentialSubject
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:      db,
		repo:    repo,
		subject: subject,
		clock:   resolveOptions(opts).clock,
	}, nil
}

func (s *CredentialStore) Subject() string {
	if s == nil {
		return ""
	}
	return s.subject
}

func (s *CredentialStore) Load(ctx context.Context) (credentials.Pair, error) {
	if s == nil || s.repo == nil {
		return credentials.Pair{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("subject", "=", s.subject),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return credentials.Pair{}, err
	}
	if len(records) == 0 {
		return credentials.Pair{}, credentials.ErrNotFound
	}
	return credentials.Pair{
		AccessToken:  records[0].AccessToken,
		RefreshToken: records[0].RefreshToken,
	}, nil
}

func (s *CredentialStore) Save(ctx context.Context, pair credentials.Pair) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	now := s.clock.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &credentialRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.subject = ?", s.subject).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			_, createErr := s.repo.CreateTx(ctx, tx, &credentialRecord{
				ID:           uuid.NewString(),
				Subject:      s.subject,
				AccessToken:  pair.AccessToken,
				RefreshToken: pair.RefreshToken,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			return createErr
		}
		if err != nil {
			return err
		}
		record.AccessToken = pair.AccessToken
		record.RefreshToken = pair.RefreshToken
		record.UpdatedAt = now
		_, err = tx.NewUpdate().
			Model(record).
			Column("access_token", "refresh_token", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("subject = ?", s.subject).
		Exec(ctx)
	return err
}
