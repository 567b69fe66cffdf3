// Package builtin provides the runtime-backed tools every agent gets by
// default: command execution and file read/write/edit/search, each
// implemented against the runtime.Runtime boundary rather than touching
// the filesystem or a shell directly.
package builtin

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/arborist-ai/turnloop/pkg/tool"
)

// definition adapts a typed (Req) -> Resp function into a tool.Tool:
// Execute unmarshals input into Req, calls proc, and flattens Resp into
// the single string the tool.Tool contract returns.
type definition[Req any, Resp any] struct {
	name        string
	description string
	proc        func(ctx context.Context, req Req) (Resp, error)
}

func (d *definition[Req, Resp]) Name() string        { return d.name }
func (d *definition[Req, Resp]) Description() string { return d.description }

func (d *definition[Req, Resp]) Parameters() *jsonschema.Schema {
	var req Req
	return tool.SchemaOf(&req)
}

func (d *definition[Req, Resp]) Execute(ctx context.Context, input map[string]any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	var req Req
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", err
	}
	resp, err := d.proc(ctx, req)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func newTool[Req any, Resp any](name, description string, proc func(context.Context, Req) (Resp, error)) tool.Tool {
	return &definition[Req, Resp]{name: name, description: description, proc: proc}
}

// All returns the default tool set: exec_command plus the file tools.
func All() []tool.Tool {
	return []tool.Tool{
		ExecCommand(),
		ReadFile(),
		WriteFile(),
		EditFile(),
		SearchFiles(),
	}
}
