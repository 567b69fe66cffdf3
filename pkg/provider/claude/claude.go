// Package claude is a model.Adapter backed by the Anthropic Messages API:
// a hand-rolled streaming HTTP client over the Messages API's
// text/event-stream responses, rather than a generated SDK.
package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/arborist-ai/turnloop/pkg/logctx"
	"github.com/arborist-ai/turnloop/pkg/model"
)

type Adapter struct {
	cfg    Config
	apiKey string
	url    *url.URL
	client *http.Client
}

func New(cfg Config) (*Adapter, error) {
	apiKey, err := cfg.resolveAPIKey()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, "/v1/messages")
	return &Adapter{cfg: cfg, apiKey: apiKey, url: u, client: &http.Client{}}, nil
}

func (a *Adapter) Send(ctx context.Context, req model.Request) (model.Response, error) {
	log := logctx.From(ctx, "model-claude")
	log.Debug("send", "model", a.cfg.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wm, err := toWireMessage(m)
		if err != nil {
			return nil, fmt.Errorf("claude: %w", err)
		}
		messages = append(messages, wm)
	}

	body, err := marshalRequest(requestBody{
		Model:     a.cfg.Model,
		Messages:  messages,
		MaxTokens: a.cfg.MaxTokens,
		Stream:    true,
		System:    req.System,
		Thinking:  &thinkingConfig{BudgetTokens: 8192, Type: "enabled"},
		Tools:     wireTools(req.Tools),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", a.cfg.AnthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		log.Error("request failed", "error", err)
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		log.Error("non-2xx response", "status", resp.StatusCode, "body", string(data))
		return nil, errors.New(string(data))
	}
	log.Debug("response stream opened", "status", resp.StatusCode)
	return newResponse(resp.Body), nil
}
