package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/workflow"
	"github.com/redis/go-redis/v9"
)

const DefaultNamespace = "onboarding"

type Option func(*options)

type options struct {
	namespace string
	clock     clock.Clock
}

// WithNamespace prefixes every redis key with namespace and a separator.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = strings.TrimSpace(namespace)
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = clock.Resolve(c)
	}
}

func resolveOptions(opts []Option) options {
	resolved := options{namespace: DefaultNamespace, clock: clock.Real()}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// SnapshotStore keeps workflow snapshots as plain redis strings and uses
// the native key TTL for expiry.
type SnapshotStore struct {
	client    redis.Cmdable
	namespace string
	clock     clock.Clock
}

func NewSnapshotStore(client redis.Cmdable, opts ...Option) (*SnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	resolved := resolveOptions(opts)
	return &SnapshotStore{
		client:    client,
		namespace: resolved.namespace,
		clock:     resolved.clock,
	}, nil
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, workflow.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Put writes payload with a TTL derived from expiresAt. An expiry that has
// already passed removes the key instead.
func (s *SnapshotStore) Put(ctx context.Context, key string, payload []byte, expiresAt time.Time) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("redisstore: snapshot key is required")
	}
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.clock.Now())
		if ttl <= 0 {
			return s.Delete(ctx, key)
		}
	}
	return s.client.Set(ctx, s.redisKey(key), payload, ttl).Err()
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// Keys scans for keys under prefix and returns them without the namespace,
// sorted.
func (s *SnapshotStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.redisKey(escapeGlob(prefix)) + "*"
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), s.keyPrefix())
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return dedupe(keys), nil
}

// TTL reports the remaining lifetime of key, or a negative value for keys
// without expiry.
func (s *SnapshotStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, s.redisKey(key)).Result()
}

func (s *SnapshotStore) keyPrefix() string {
	if s.namespace == "" {
		return ""
	}
	return s.namespace + "::"
}

func (s *SnapshotStore) redisKey(key string) string {
	return s.keyPrefix() + strings.TrimSpace(key)
}

func escapeGlob(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}

// SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		out = append(out, key)
	}
	return out
}
