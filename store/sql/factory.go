package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Config describes the database connection. It satisfies the configuration
// contract of go-persistence-bun.
type Config struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
	Identifier  string
}

func (c Config) GetDebug() bool { return c.Debug }

func (c Config) GetDriver() string { return c.Driver }

func (c Config) GetServer() string { return c.DSN }

func (c Config) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c Config) GetOtelIdentifier() string {
	if strings.TrimSpace(c.Identifier) == "" {
		return "go-onboarding"
	}
	return c.Identifier
}

// Open connects to the database, selects the bun dialect for the driver and
// applies the onboarding schema.
func Open(ctx context.Context, cfg Config) (*persistence.Client, error) {
	dialectName, err := migrations.DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	driver := "sqlite3"
	var dialect schema.Dialect = sqlitedialect.New()
	if dialectName == migrations.DialectPostgres {
		driver = "postgres"
		dialect = pgdialect.New()
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if dialectName == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	if err := migrations.Apply(ctx, client, dialectName); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RepositoryFactory builds the stores over one bun database.
type RepositoryFactory struct {
	db *bun.DB

	snapshotStore   *SnapshotStore
	credentialStore *CredentialStore
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...Option) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryFromDB(db, opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...Option) (*RepositoryFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	snapshotStore, err := NewSnapshotStore(db, opts...)
	if err != nil {
		return nil, err
	}
	credentialStore, err := NewCredentialStore(db, DefaultCredentialSubject, opts...)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{
		db:              db,
		snapshotStore:   snapshotStore,
		credentialStore: credentialStore,
	}, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) SnapshotStore() *SnapshotStore {
	if f == nil {
		return nil
	}
	return f.snapshotStore
}

// CachedSnapshotStore wraps the snapshot store with cacheService.
func (f *RepositoryFactory) CachedSnapshotStore(cacheService repositorycache.CacheService) (*CachedSnapshotStore, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	return NewCachedSnapshotStore(f.snapshotStore, cacheService)
}

func (f *RepositoryFactory) CredentialStore() *CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

// CredentialStoreFor returns a credential store scoped to subject.
func (f *RepositoryFactory) CredentialStoreFor(subject string, opts ...Option) (*CredentialStore, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	return NewCredentialStore(f.db, subject, opts...)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
