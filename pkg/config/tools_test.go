package config

import "testing"

func TestMCPConfig_NewClient_RequiresCommandOrEndpoint(t *testing.T) {
	_, err := MCPConfig{Name: "nothing-configured"}.newClient()
	if err == nil {
		t.Fatal("expected an error when neither command nor endpoint is set")
	}
}

func TestMCPConfig_NewClient_AcceptsCommandAndEndpointTogether(t *testing.T) {
	c, err := MCPConfig{Name: "both", Command: []string{"some-binary"}, Endpoint: "http://example.com"}.newClient()
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if c == nil {
		t.Fatal("newClient returned a nil client")
	}
}

func TestMCPConfig_NewClient_HTTPEndpoint(t *testing.T) {
	c, err := MCPConfig{Name: "http-server", Endpoint: "http://example.com/mcp"}.newClient()
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if c == nil {
		t.Fatal("newClient returned a nil client")
	}
}

func TestConfig_BuildTools_IncludesBuiltinsWithNoMCPServersConfigured(t *testing.T) {
	c := &Config{}
	tools, err := c.BuildTools(nil) //nolint:staticcheck // no MCP server configured, ctx is never touched
	if err != nil {
		t.Fatalf("BuildTools: %v", err)
	}
	if len(tools) != 5 {
		t.Fatalf("len(tools) = %d, want 5 builtins with no MCP servers configured", len(tools))
	}
}
