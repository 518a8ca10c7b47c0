package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrSnapshotNotFound = errors.New("workflow: snapshot not found")

// SnapshotStore is the durable key/value backend for workflow snapshots.
// expiresAt is a hint for backends with native expiry; a zero value means
// the entry never expires. Get returns ErrSnapshotNotFound for missing keys.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemorySnapshotStore keeps snapshots in process. It does not evict; expiry
// is enforced by the snapshot itself on load.
type MemorySnapshotStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	err     error
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{entries: map[string]memoryEntry{}}
}

// FailWith makes every later call return err, or restores normal behaviour
// when err is nil.
func (s *MemorySnapshotStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemorySnapshotStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), entry.payload...), nil
}

func (s *MemorySnapshotStore) Put(_ context.Context, key string, payload []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries[key] = memoryEntry{payload: append([]byte(nil), payload...), expiresAt: expiresAt}
	return nil
}

func (s *MemorySnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.entries, key)
	return nil
}

func (s *MemorySnapshotStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ExpiresAt reports the expiry hint stored with key.
func (s *MemorySnapshotStore) ExpiresAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry.expiresAt, ok
}
