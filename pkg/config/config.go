// Package config is the TOML-backed configuration layer: agent defaults
// (model selection, max steps, default send mode) plus the MCP server
// list, loaded from disk or written out fresh on first run.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/provider/claude"
	"github.com/arborist-ai/turnloop/pkg/provider/gemini"
	"github.com/arborist-ai/turnloop/pkg/provider/openai"
	"github.com/arborist-ai/turnloop/pkg/session"
)

type ProviderType string

const (
	ProviderClaude ProviderType = "claude"
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
)

// ProviderConfig is one named model backend a Config can select by name,
// letting a single config file describe several candidate providers
// (e.g. claude and a local openai-compatible endpoint) and pick between
// them without a code change.
type ProviderConfig struct {
	ConfigName    string       `toml:"name"`
	Type          ProviderType `toml:"type"`
	BaseURL       string       `toml:"base_url,omitempty"`
	APIKey        string       `toml:"api_key,omitempty"`
	APIKeyFromEnv string       `toml:"api_key_env,omitempty"`
	Model         string       `toml:"model_name,omitempty"`
	Backend       string       `toml:"backend,omitempty"`
	Project       string       `toml:"project,omitempty"`
	Location      string       `toml:"location,omitempty"`
}

// NewAdapter constructs the concrete model.Adapter this provider config
// names.
func (p ProviderConfig) NewAdapter(ctx context.Context) (model.Adapter, error) {
	switch p.Type {
	case ProviderClaude:
		cfg := claude.DefaultConfig()
		if p.BaseURL != "" {
			cfg.BaseURL = p.BaseURL
		}
		if p.Model != "" {
			cfg.Model = p.Model
		}
		cfg.APIKey = p.APIKey
		if p.APIKeyFromEnv != "" {
			cfg.APIKeyFromEnv = p.APIKeyFromEnv
		}
		return claude.New(cfg)
	case ProviderOpenAI:
		return openai.New(openai.Config{
			BaseURL:       p.BaseURL,
			APIKey:        p.APIKey,
			APIKeyFromEnv: p.APIKeyFromEnv,
			Model:         p.Model,
		})
	case ProviderGemini:
		cfg := gemini.DefaultConfig()
		if p.Model != "" {
			cfg.Model = p.Model
		}
		cfg.APIKey = p.APIKey
		cfg.Backend = p.Backend
		cfg.Project = p.Project
		cfg.Location = p.Location
		return gemini.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}

// Config is the on-disk configuration of one turnloop agent: which
// provider to use, the defaults a Session inherits, and the MCP servers
// to source extra tools from.
type Config struct {
	Providers       []ProviderConfig `toml:"provider"`
	ProviderName    string           `toml:"provider_name"`
	SystemPrompt    string           `toml:"system_prompt,omitempty"`
	MaxSteps        int              `toml:"max_steps,omitempty"`
	DefaultSendMode string           `toml:"default_send_mode,omitempty"`
	LogLevel        slog.Level       `toml:"-"`
	LogLevelText    string           `toml:"log_level,omitempty"`
	MCPServers      []MCPConfig      `toml:"mcp"`
}

// SendMode returns the configured default send mode, or session's own
// zero-value default ("steer") if unset.
func (c *Config) SendMode() session.SendMode {
	if c.DefaultSendMode == "" {
		return session.ModeSteer
	}
	return session.SendMode(c.DefaultSendMode)
}

// selectedProvider resolves ProviderName against Providers.
func (c *Config) selectedProvider() (ProviderConfig, error) {
	for _, p := range c.Providers {
		if p.ConfigName == c.ProviderName {
			return p, nil
		}
	}
	return ProviderConfig{}, errors.New("provider config not found")
}

// NewAdapter resolves ProviderName against Providers and constructs that
// provider's model.Adapter.
func (c *Config) NewAdapter(ctx context.Context) (model.Adapter, error) {
	p, err := c.selectedProvider()
	if err != nil {
		return nil, err
	}
	return p.NewAdapter(ctx)
}

// ModelName is the selected provider's model name, for display and for
// session.Config.Model (informational only -- the loop does not feed it
// back to the adapter, which already has its model baked in).
func (c *Config) ModelName() string {
	p, err := c.selectedProvider()
	if err != nil {
		return ""
	}
	return p.Model
}

func defaultConfig() *Config {
	return &Config{
		Providers: []ProviderConfig{
			{ConfigName: "claude", Type: ProviderClaude, Model: "claude-sonnet-4-5"},
		},
		ProviderName: "claude",
		MaxSteps:     100,
		LogLevelText: "info",
	}
}

// Load reads the config file under the user's config directory, writing
// out defaultConfig() on first run so a fresh install has something to
// edit rather than failing with "no such file".
func Load() (*Config, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(userConfigDir, "turnloop")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, err
	}

	configFile := filepath.Join(configDir, "config.toml")
	cfg := defaultConfig()
	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(configFile, data, 0o644); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = &Config{}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.LogLevelText == "" {
		cfg.LogLevel = slog.LevelInfo
	} else if err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelText)); err != nil {
		return nil, fmt.Errorf("parsing log_level: %w", err)
	}
	return cfg, nil
}
