package config

import (
	"testing"

	"github.com/arborist-ai/turnloop/pkg/session"
)

func TestConfig_SendMode_DefaultsToSteer(t *testing.T) {
	c := &Config{}
	if got := c.SendMode(); got != session.ModeSteer {
		t.Fatalf("SendMode() = %q, want %q", got, session.ModeSteer)
	}
	c.DefaultSendMode = "queue"
	if got := c.SendMode(); got != session.ModeQueue {
		t.Fatalf("SendMode() after setting queue = %q, want %q", got, session.ModeQueue)
	}
}

func TestConfig_SelectedProvider_NotFoundErrors(t *testing.T) {
	c := &Config{ProviderName: "ghost"}
	_, err := c.selectedProvider()
	if err == nil {
		t.Fatal("expected an error selecting an unregistered provider name")
	}
}

func TestConfig_SelectedProvider_Found(t *testing.T) {
	c := &Config{
		Providers:    []ProviderConfig{{ConfigName: "claude", Type: ProviderClaude, Model: "claude-sonnet-4-5"}},
		ProviderName: "claude",
	}
	p, err := c.selectedProvider()
	if err != nil {
		t.Fatalf("selectedProvider: %v", err)
	}
	if p.Model != "claude-sonnet-4-5" {
		t.Fatalf("p.Model = %q, want %q", p.Model, "claude-sonnet-4-5")
	}
}

func TestConfig_ModelName(t *testing.T) {
	c := &Config{
		Providers:    []ProviderConfig{{ConfigName: "claude", Type: ProviderClaude, Model: "claude-sonnet-4-5"}},
		ProviderName: "claude",
	}
	if got := c.ModelName(); got != "claude-sonnet-4-5" {
		t.Fatalf("ModelName() = %q, want %q", got, "claude-sonnet-4-5")
	}

	c2 := &Config{ProviderName: "ghost"}
	if got := c2.ModelName(); got != "" {
		t.Fatalf("ModelName() for an unknown provider = %q, want \"\"", got)
	}
}

func TestDefaultConfig_SelectsItsOwnProvider(t *testing.T) {
	c := defaultConfig()
	if _, err := c.selectedProvider(); err != nil {
		t.Fatalf("defaultConfig's own ProviderName must resolve against its Providers list: %v", err)
	}
}

func TestProviderConfig_NewAdapter_UnknownTypeErrors(t *testing.T) {
	p := ProviderConfig{Type: "not-a-real-provider"}
	_, err := p.NewAdapter(nil) //nolint:staticcheck // no network call happens before the type switch errors
	if err == nil {
		t.Fatal("expected an error constructing an adapter for an unknown provider type")
	}
}
