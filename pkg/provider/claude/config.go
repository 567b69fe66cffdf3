package claude

import (
	"fmt"
	"os"
)

// Config configures one Claude adapter instance.
type Config struct {
	BaseURL          string
	APIKey           string
	APIKeyFromEnv    string
	AnthropicVersion string
	Model            string
	MaxTokens        int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://api.anthropic.com/",
		APIKeyFromEnv:    "ANTHROPIC_API_KEY",
		AnthropicVersion: "2023-06-01",
		Model:            "claude-sonnet-4-5",
		MaxTokens:        32768,
	}
}

func (c Config) resolveAPIKey() (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.APIKeyFromEnv == "" {
		return "", fmt.Errorf("either APIKey or APIKeyFromEnv must be set")
	}
	key := os.Getenv(c.APIKeyFromEnv)
	if key == "" {
		return "", fmt.Errorf("env variable %s not defined", c.APIKeyFromEnv)
	}
	return key, nil
}
