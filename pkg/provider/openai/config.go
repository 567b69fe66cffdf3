package openai

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"

	"github.com/arborist-ai/turnloop/pkg/tool"
)

// Config configures one OpenAI Responses API adapter.
type Config struct {
	BaseURL       string
	APIKey        string
	APIKeyFromEnv string
	Model         string
}

func (c Config) requestOptions() ([]option.RequestOption, error) {
	var opts []option.RequestOption
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	switch {
	case c.APIKeyFromEnv != "":
		key := os.Getenv(c.APIKeyFromEnv)
		if key == "" {
			return nil, fmt.Errorf("env variable %s not defined", c.APIKeyFromEnv)
		}
		opts = append(opts, option.WithAPIKey(key))
	case c.APIKey != "":
		opts = append(opts, option.WithAPIKey(c.APIKey))
	default:
		return nil, fmt.Errorf("either APIKey or APIKeyFromEnv must be set")
	}
	return opts, nil
}

func convertToolDef(d tool.Definition) (responses.ToolUnionParam, error) {
	encoded, err := json.Marshal(d.Parameters)
	if err != nil {
		return responses.ToolUnionParam{}, err
	}
	parameters := map[string]any{}
	if err := json.Unmarshal(encoded, &parameters); err != nil {
		return responses.ToolUnionParam{}, err
	}
	return responses.ToolUnionParam{
		OfFunction: &responses.FunctionToolParam{
			Parameters:  parameters,
			Name:        d.Name,
			Description: param.NewOpt(d.Description),
			Type:        "function",
		},
	}, nil
}
