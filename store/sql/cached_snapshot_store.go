package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/workflow"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const snapshotCacheKeyPrefix = "go-onboarding::snapshot::v1"

// CachedSnapshotStore serves Get through a read-through cache and evicts
// the entry on every write to the same key.
type CachedSnapshotStore struct {
	base  workflow.SnapshotStore
	cache repositorycache.CacheService
}

func NewCachedSnapshotStore(
	base workflow.SnapshotStore,
	cacheService repositorycache.CacheService,
) (*CachedSnapshotStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base snapshot store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: snapshot cache service is required")
	}
	return &CachedSnapshotStore{base: base, cache: cacheService}, nil
}

// SnapshotCacheKey returns go-onboarding::snapshot::v1::<key> with the
// storage key URL-path escaped.
func SnapshotCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: snapshot key is required")
	}
	return snapshotCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedSnapshotStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached snapshot store is not configured")
	}
	cacheKey, err := SnapshotCacheKey(key)
	if err != nil {
		return nil, err
	}
	payload, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]byte, error) {
		return s.base.Get(ctx, strings.TrimSpace(key))
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), payload...), nil
}

func (s *CachedSnapshotStore) Put(ctx context.Context, key string, payload []byte, expiresAt time.Time) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached snapshot store is not configured")
	}
	if err := s.base.Put(ctx, key, payload, expiresAt); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedSnapshotStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached snapshot store is not configured")
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedSnapshotStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached snapshot store is not configured")
	}
	return s.base.Keys(ctx, prefix)
}

func (s *CachedSnapshotStore) evict(ctx context.Context, key string) error {
	cacheKey, err := SnapshotCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
