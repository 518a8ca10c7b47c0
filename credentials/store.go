package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("credentials: not found")

// Pair is the access/refresh token pair for the signed in merchant.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (p Pair) IsZero() bool {
	return strings.TrimSpace(p.AccessToken) == "" && strings.TrimSpace(p.RefreshToken) == ""
}

// Store persists the pair across restarts. Load returns ErrNotFound when
// nothing is stored.
type Store interface {
	Load(ctx context.Context) (Pair, error)
	Save(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu     sync.Mutex
	pair   Pair
	saved  bool
	clears int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return Pair{}, ErrNotFound
	}
	return s.pair, nil
}

func (s *MemoryStore) Save(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.saved = true
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.saved = false
	s.clears++
	return nil
}

// Clears reports how many times Clear was called.
func (s *MemoryStore) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

var _ Store = (*MemoryStore)(nil)
