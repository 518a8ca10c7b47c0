package redisstore

import (
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/workflow"
)

var (
	_ workflow.SnapshotStore = (*SnapshotStore)(nil)
	_ credentials.Store      = (*CredentialStore)(nil)
)
