package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/arborist-ai/turnloop/pkg/tool"
	"github.com/arborist-ai/turnloop/pkg/tool/builtin"
	"github.com/arborist-ai/turnloop/pkg/tool/mcp"
)

// MCPConfig defines a configuration to connect to one MCP server.
type MCPConfig struct {
	Name           string            `toml:"name"`
	Command        []string          `toml:"command,omitempty"`
	Endpoint       string            `toml:"endpoint,omitempty"`
	RequestHeaders map[string]string `toml:"request_headers,omitempty"`
}

func (c MCPConfig) newClient() (*mcp.Client, error) {
	switch {
	case len(c.Command) > 0:
		return mcp.NewCommandClient(c.Name, c.Command), nil
	case c.Endpoint != "":
		return mcp.NewHTTPClient(c.Name, c.Endpoint, c.RequestHeaders), nil
	default:
		return nil, fmt.Errorf("mcp server %q: either command or endpoint must be set", c.Name)
	}
}

// BuildTools assembles the full tool.Tool set for an Agent: the builtins
// plus every tool advertised by a configured MCP server. An MCP tool whose
// name matches a built-in or an earlier MCP tool is dropped, so a name
// collision always resolves to the built-in. Built-ins are appended last.
func (c *Config) BuildTools(ctx context.Context) ([]tool.Tool, error) {
	names := make([]string, 0, len(c.MCPServers))
	byName := map[string]MCPConfig{}
	for _, mc := range c.MCPServers {
		if _, dup := byName[mc.Name]; !dup {
			names = append(names, mc.Name)
		}
		byName[mc.Name] = mc
	}
	sort.Strings(names)

	builtins := builtin.All()
	seen := map[string]bool{}
	for _, t := range builtins {
		seen[t.Name()] = true
	}
	var out []tool.Tool
	for _, name := range names {
		client, err := byName[name].newClient()
		if err != nil {
			return nil, err
		}
		tools, err := client.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: %w", name, err)
		}
		for _, t := range tools {
			if seen[t.Name()] {
				continue
			}
			seen[t.Name()] = true
			out = append(out, t)
		}
	}

	for _, t := range builtins {
		out = append(out, t)
	}
	return out, nil
}
