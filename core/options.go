package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// MapConfigLoader serves a fixed raw configuration tree.
type MapConfigLoader struct {
	Values map[string]any
}

func (l MapConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = MapConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	raw, err = normalizeDurations(raw)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig layers defaults, provider loaded values and runtime
// overrides, in that order of precedence.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, MapError(err)
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, MapError(err)
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.AppName) != "" {
		layer["app_name"] = cfg.AppName
	}

	api := map[string]any{}
	putString(api, "base_url", cfg.API.BaseURL, includeZero)
	putString(api, "refresh_path", cfg.API.RefreshPath, includeZero)
	putDuration(api, "timeout", cfg.API.Timeout, includeZero)
	putSection(layer, "api", api)

	workflow := map[string]any{}
	putString(workflow, "storage_key", cfg.Workflow.StorageKey, includeZero)
	putString(workflow, "version", cfg.Workflow.Version, includeZero)
	putDuration(workflow, "ttl", cfg.Workflow.TTL, includeZero)
	putSection(layer, "workflow", workflow)

	verification := map[string]any{}
	putDuration(verification, "poll_interval", cfg.Verification.PollInterval, includeZero)
	putDuration(verification, "session_ttl", cfg.Verification.SessionTTL, includeZero)
	putString(verification, "initiate_path", cfg.Verification.InitiatePath, includeZero)
	putString(verification, "status_path", cfg.Verification.StatusPath, includeZero)
	putSection(layer, "verification", verification)

	actions := map[string]any{}
	if includeZero || cfg.Actions.MaxRetries != 0 {
		actions["max_retries"] = cfg.Actions.MaxRetries
	}
	putDuration(actions, "debounce", cfg.Actions.Debounce, includeZero)
	putSection(layer, "actions", actions)

	credentials := map[string]any{}
	putDuration(credentials, "refresh_lead_window", cfg.Credentials.RefreshLeadWindow, includeZero)
	putString(credentials, "login_path", cfg.Credentials.LoginPath, includeZero)
	if includeZero || len(cfg.Credentials.PublicPaths) > 0 {
		credentials["public_paths"] = append([]string(nil), cfg.Credentials.PublicPaths...)
	}
	putSection(layer, "credentials", credentials)
	return layer
}

func putString(section map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		section[key] = value
	}
}

func putDuration(section map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		section[key] = value
	}
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}

var durationKeys = map[string][]string{
	"api":          {"timeout"},
	"workflow":     {"ttl"},
	"verification": {"poll_interval", "session_ttl"},
	"actions":      {"debounce"},
	"credentials":  {"refresh_lead_window"},
}

// normalizeDurations parses duration strings such as "3s" found in raw
// configuration so they decode into time.Duration fields.
func normalizeDurations(raw map[string]any) (map[string]any, error) {
	for section, keys := range durationKeys {
		values, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		copied := make(map[string]any, len(values))
		for key, value := range values {
			copied[key] = value
		}
		for _, key := range keys {
			text, ok := copied[key].(string)
			if !ok {
				continue
			}
			parsed, err := time.ParseDuration(strings.TrimSpace(text))
			if err != nil {
				return nil, fmt.Errorf("core: invalid duration for %s.%s: %w", section, key, err)
			}
			copied[key] = parsed
		}
		raw[section] = copied
	}
	return raw, nil
}
