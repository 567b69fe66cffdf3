// Package mcp adapts Model Context Protocol servers into tool.Tool
// values. Tool.Execute returns a single string, so multi-modal MCP
// content (images, audio) is dropped and only text content is surfaced.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arborist-ai/turnloop/pkg/logctx"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

type transportFactory interface {
	newTransport() mcp.Transport
}

type commandFactory struct{ command []string }

func (f *commandFactory) newTransport() mcp.Transport {
	return &mcp.CommandTransport{Command: exec.Command(f.command[0], f.command[1:]...)}
}

type httpFactory struct {
	endpoint string
	headers  http.Header
}

type headerAddingRoundTripper struct {
	headers http.Header
	base    http.RoundTripper
}

func (rt *headerAddingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	for k, v := range rt.headers {
		if _, ok := r.Header[k]; !ok {
			r.Header[k] = v
		}
	}
	return rt.base.RoundTrip(r)
}

func (f *httpFactory) newTransport() mcp.Transport {
	t := &mcp.SSEClientTransport{Endpoint: f.endpoint}
	if len(f.headers) > 0 {
		t.HTTPClient = &http.Client{Transport: &headerAddingRoundTripper{headers: f.headers, base: http.DefaultTransport}}
	}
	return t
}

// Client owns one lazily-connected session to an MCP server and hands out
// tool.Tool wrappers for every tool it advertises.
type Client struct {
	name    string
	client  *mcp.Client
	factory transportFactory

	mu      sync.Mutex
	session *mcp.ClientSession
}

func newClient(name string) *Client {
	return &Client{
		name:   name,
		client: mcp.NewClient(&mcp.Implementation{Name: "turnloop", Version: "v0.1.0"}, nil),
	}
}

func NewCommandClient(name string, command []string) *Client {
	c := newClient(name)
	c.factory = &commandFactory{command: command}
	return c
}

func NewHTTPClient(name, endpoint string, headers map[string]string) *Client {
	var h http.Header
	if len(headers) > 0 {
		h = http.Header{}
		for k, v := range headers {
			h.Add(k, v)
		}
	}
	c := newClient(name)
	c.factory = &httpFactory{endpoint: endpoint, headers: h}
	return c
}

func (c *Client) getSession(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}
	sess, err := c.client.Connect(ctx, c.factory.newTransport(), nil)
	if err != nil {
		return nil, err
	}
	c.session = sess
	return sess, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// Tools lists every tool the server advertises, across pages, wrapped as
// tool.Tool.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	sess, err := c.getSession(ctx)
	if err != nil {
		return nil, err
	}
	var results []tool.Tool
	var cursor string
	for {
		page, err := sess.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, t := range page.Tools {
			schema, err := convertSchema(t.InputSchema)
			if err != nil {
				return nil, err
			}
			results = append(results, &mcpTool{client: c, name: t.Name, description: t.Description, params: schema})
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return results, nil
}

func convertSchema(raw any) (*jsonschema.Schema, error) {
	if raw == nil {
		return &jsonschema.Schema{}, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(encoded, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

type mcpTool struct {
	client      *Client
	name        string
	description string
	params      *jsonschema.Schema
}

func (t *mcpTool) Name() string                     { return t.name }
func (t *mcpTool) Description() string              { return t.description }
func (t *mcpTool) Parameters() *jsonschema.Schema    { return t.params }

func (t *mcpTool) Execute(ctx context.Context, input map[string]any) (string, error) {
	log := logctx.From(ctx, "mcp-tool")
	log.Debug("call", "server", t.client.name, "tool", t.name, "input", input)

	sess, err := t.client.getSession(ctx)
	if err != nil {
		log.Error("session unavailable", "server", t.client.name, "error", err)
		return "", err
	}
	result, err := sess.CallTool(ctx, &mcp.CallToolParams{Name: t.name, Arguments: input})
	if err != nil {
		log.Error("call failed", "server", t.client.name, "tool", t.name, "error", err)
		return "", err
	}
	var text strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if result.IsError {
		log.Debug("call returned an error result", "server", t.client.name, "tool", t.name)
		return "", tool.NewError(errors.New(text.String()))
	}
	return text.String(), nil
}
