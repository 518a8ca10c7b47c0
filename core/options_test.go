package core

import (
	"context"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := ResolveConfig(context.Background(), Config{}, nil, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.AppName != DefaultAppName {
		t.Fatalf("expected default app name, got %q", cfg.AppName)
	}
	if cfg.Workflow.TTL != DefaultWorkflowTTL {
		t.Fatalf("expected 24h ttl, got %s", cfg.Workflow.TTL)
	}
	if cfg.Workflow.Version != DefaultWorkflowVersion {
		t.Fatalf("expected version 1.0, got %q", cfg.Workflow.Version)
	}
	if cfg.Verification.PollInterval != DefaultVerificationPoll {
		t.Fatalf("expected default poll interval, got %s", cfg.Verification.PollInterval)
	}
	if len(cfg.Credentials.PublicPaths) == 0 {
		t.Fatalf("expected default public paths")
	}
}

func TestResolveConfig_LayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(MapConfigLoader{Values: map[string]any{
		"app_name": "from-config",
		"verification": map[string]any{
			"poll_interval": "5s",
			"session_ttl":   "2m",
		},
		"actions": map[string]any{
			"max_retries": 5,
		},
	}})

	cfg, err := ResolveConfig(context.Background(), Config{
		AppName: "from-runtime",
	}, provider, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.AppName != "from-runtime" {
		t.Fatalf("expected runtime value to win, got %q", cfg.AppName)
	}
	if cfg.Verification.PollInterval != 5*time.Second {
		t.Fatalf("expected config layer poll interval, got %s", cfg.Verification.PollInterval)
	}
	if cfg.Verification.SessionTTL != 2*time.Minute {
		t.Fatalf("expected config layer session ttl, got %s", cfg.Verification.SessionTTL)
	}
	if cfg.Actions.MaxRetries != 5 {
		t.Fatalf("expected config layer max retries, got %d", cfg.Actions.MaxRetries)
	}
	if cfg.Workflow.StorageKey != DefaultWorkflowStorageKey {
		t.Fatalf("expected default storage key to survive, got %q", cfg.Workflow.StorageKey)
	}
}

func TestResolveConfig_InvalidDurationFails(t *testing.T) {
	provider := NewCfgxConfigProvider(MapConfigLoader{Values: map[string]any{
		"workflow": map[string]any{"ttl": "soon"},
	}})
	if _, err := ResolveConfig(context.Background(), Config{}, provider, nil); err == nil {
		t.Fatalf("expected invalid duration to fail")
	}
}

func TestResolveConfig_UsesCustomProvider(t *testing.T) {
	loaded := DefaultConfig()
	loaded.Workflow.Version = "2.0"
	cfg, err := ResolveConfig(context.Background(), Config{}, &fixedConfigProvider{cfg: loaded}, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.Workflow.Version != "2.0" {
		t.Fatalf("expected provider version, got %q", cfg.Workflow.Version)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Credentials.LoginPath = "login"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected relative login path to fail validation")
	}
	cfg = DefaultConfig()
	cfg.Workflow.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero ttl to fail validation")
	}
	cfg = DefaultConfig()
	cfg.Verification.SessionTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero session ttl to fail validation")
	}
}
