package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type snapshotRecord struct {
	bun.BaseModel `bun:"table:onboarding_snapshots,alias:ons"`

	ID         string     `bun:"id,pk"`
	StorageKey string     `bun:"storage_key,notnull"`
	Payload    string     `bun:"payload,notnull"`
	ExpiresAt  *time.Time `bun:"expires_at,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:onboarding_credentials,alias:oc"`

	ID           string    `bun:"id,pk"`
	Subject      string    `bun:"subject,notnull"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *snapshotRecord) expired(now time.Time) bool {
	return r != nil && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
