package gemini

import (
	"google.golang.org/genai"
)

// Config configures one Gemini adapter instance.
type Config struct {
	Model           string
	APIKey          string
	Backend         string
	Project         string
	Location        string
	ExcludeThoughts bool
}

func (c Config) clientConfig() *genai.ClientConfig {
	backend := genai.BackendUnspecified
	switch c.Backend {
	case genai.BackendGeminiAPI.String():
		backend = genai.BackendGeminiAPI
	case genai.BackendVertexAI.String():
		backend = genai.BackendVertexAI
	}
	return &genai.ClientConfig{
		APIKey:   c.APIKey,
		Backend:  backend,
		Project:  c.Project,
		Location: c.Location,
	}
}

func DefaultConfig() Config {
	return Config{Model: "gemini-2.5-flash"}
}
