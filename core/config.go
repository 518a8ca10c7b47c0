package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAppName              = "onboarding"
	DefaultRefreshPath          = "/auth/refresh"
	DefaultAPITimeout           = 30 * time.Second
	DefaultWorkflowStorageKey   = "onboarding:workflow:state"
	DefaultWorkflowVersion      = "1.0"
	DefaultWorkflowTTL          = 24 * time.Hour
	DefaultVerificationPoll     = 3 * time.Second
	DefaultVerificationTTL      = 90 * time.Second
	DefaultVerificationInitiate = "/verification/initiate"
	DefaultVerificationStatus   = "/verification/status"
	DefaultActionMaxRetries     = 3
	DefaultRefreshLeadWindow    = 30 * time.Second
	DefaultLoginPath            = "/login"
)

// DefaultPublicPaths are surfaces reachable without credentials. A forced
// logout never redirects away from them.
var DefaultPublicPaths = []string{"/login", "/register", "/onboarding/public"}

type APIConfig struct {
	BaseURL     string        `koanf:"base_url" mapstructure:"base_url"`
	RefreshPath string        `koanf:"refresh_path" mapstructure:"refresh_path"`
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type WorkflowConfig struct {
	StorageKey string        `koanf:"storage_key" mapstructure:"storage_key"`
	Version    string        `koanf:"version" mapstructure:"version"`
	TTL        time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type VerificationConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
	SessionTTL   time.Duration `koanf:"session_ttl" mapstructure:"session_ttl"`
	InitiatePath string        `koanf:"initiate_path" mapstructure:"initiate_path"`
	StatusPath   string        `koanf:"status_path" mapstructure:"status_path"`
}

type ActionsConfig struct {
	MaxRetries int           `koanf:"max_retries" mapstructure:"max_retries"`
	Debounce   time.Duration `koanf:"debounce" mapstructure:"debounce"`
}

type CredentialsConfig struct {
	RefreshLeadWindow time.Duration `koanf:"refresh_lead_window" mapstructure:"refresh_lead_window"`
	LoginPath         string        `koanf:"login_path" mapstructure:"login_path"`
	PublicPaths       []string      `koanf:"public_paths" mapstructure:"public_paths"`
}

type Config struct {
	AppName      string             `koanf:"app_name" mapstructure:"app_name"`
	API          APIConfig          `koanf:"api" mapstructure:"api"`
	Workflow     WorkflowConfig     `koanf:"workflow" mapstructure:"workflow"`
	Verification VerificationConfig `koanf:"verification" mapstructure:"verification"`
	Actions      ActionsConfig      `koanf:"actions" mapstructure:"actions"`
	Credentials  CredentialsConfig  `koanf:"credentials" mapstructure:"credentials"`
}

func DefaultConfig() Config {
	return Config{
		AppName: DefaultAppName,
		API: APIConfig{
			RefreshPath: DefaultRefreshPath,
			Timeout:     DefaultAPITimeout,
		},
		Workflow: WorkflowConfig{
			StorageKey: DefaultWorkflowStorageKey,
			Version:    DefaultWorkflowVersion,
			TTL:        DefaultWorkflowTTL,
		},
		Verification: VerificationConfig{
			PollInterval: DefaultVerificationPoll,
			SessionTTL:   DefaultVerificationTTL,
			InitiatePath: DefaultVerificationInitiate,
			StatusPath:   DefaultVerificationStatus,
		},
		Actions: ActionsConfig{
			MaxRetries: DefaultActionMaxRetries,
		},
		Credentials: CredentialsConfig{
			RefreshLeadWindow: DefaultRefreshLeadWindow,
			LoginPath:         DefaultLoginPath,
			PublicPaths:       append([]string(nil), DefaultPublicPaths...),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return fmt.Errorf("core: app_name is required")
	}
	if strings.TrimSpace(c.Workflow.StorageKey) == "" {
		return fmt.Errorf("core: workflow.storage_key is required")
	}
	if strings.TrimSpace(c.Workflow.Version) == "" {
		return fmt.Errorf("core: workflow.version is required")
	}
	if c.Workflow.TTL <= 0 {
		return fmt.Errorf("core: workflow.ttl must be positive")
	}
	if c.Verification.PollInterval <= 0 {
		return fmt.Errorf("core: verification.poll_interval must be positive")
	}
	if c.Verification.SessionTTL <= 0 {
		return fmt.Errorf("core: verification.session_ttl must be positive")
	}
	if c.Actions.MaxRetries < 0 {
		return fmt.Errorf("core: actions.max_retries must not be negative")
	}
	if c.Actions.Debounce < 0 {
		return fmt.Errorf("core: actions.debounce must not be negative")
	}
	if c.Credentials.RefreshLeadWindow < 0 {
		return fmt.Errorf("core: credentials.refresh_lead_window must not be negative")
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Credentials.LoginPath), "/") {
		return fmt.Errorf("core: credentials.login_path must be an absolute path")
	}
	return nil
}
