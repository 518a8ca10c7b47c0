package redisstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-onboarding/credentials"
	"github.com/redis/go-redis/v9"
)

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
)

// CredentialStore keeps the token pair of one subject in a redis hash.
type CredentialStore struct {
	client redis.Cmdable
	key    string
}

func NewCredentialStore(client redis.Cmdable, subject string, opts ...Option) (*CredentialStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, fmt.Errorf("redisstore: credential subject is required")
	}
	resolved := resolveOptions(opts)
	key := "credentials:" + subject
	if resolved.namespace != "" {
		key = resolved.namespace + "::" + key
	}
	return &CredentialStore{client: client, key: key}, nil
}

func (s *CredentialStore) Load(ctx context.Context) (credentials.Pair, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return credentials.Pair{}, err
	}
	if len(values) == 0 {
		return credentials.Pair{}, credentials.ErrNotFound
	}
	return credentials.Pair{
		AccessToken:  values[fieldAccessToken],
		RefreshToken: values[fieldRefreshToken],
	}, nil
}

func (s *CredentialStore) Save(ctx context.Context, pair credentials.Pair) error {
	return s.client.HSet(ctx, s.key,
		fieldAccessToken, pair.AccessToken,
		fieldRefreshToken, pair.RefreshToken,
	).Err()
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
