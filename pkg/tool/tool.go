// Package tool defines the Tool contract: a pure description plus an
// execute function, stateless with respect to the turn loop.
package tool

import (
	"context"

	"github.com/invopop/jsonschema"
)

// Tool is the contract every externally-executed tool implements.
// Execute returning a string is the tool result surfaced to the model;
// returning an error signals failure -- the loop converts it to an error
// tool-result (see loop.executeOne).
type Tool interface {
	Name() string
	Description() string
	Parameters() *jsonschema.Schema
	Execute(ctx context.Context, input map[string]any) (string, error)
}

// Definition is what gets handed to a model adapter: everything about a
// Tool except its execute function -- a name, description, and input
// schema a model can be told about without being able to call it itself.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

func ToDefinition(t Tool) Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

func Definitions(tools []Tool) []Definition {
	defs := make([]Definition, len(tools))
	for i, t := range tools {
		defs[i] = ToDefinition(t)
	}
	return defs
}

// Error wraps a failure raised by a Tool's Execute. The loop unwraps it to
// obtain the message surfaced to the model as the tool's textual result.
type Error struct {
	err error
}

func NewError(err error) *Error { return &Error{err: err} }

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

// Reflector is shared by every Definition-from-struct helper in
// tool/builtin so every tool's schema is produced the same way, with
// inline (non-$ref) nested types.
var Reflector = &jsonschema.Reflector{DoNotReference: true}

// SchemaOf reflects a Go value's type into the JSON Schema a Definition's
// Parameters field requires.
func SchemaOf(v any) *jsonschema.Schema {
	return Reflector.Reflect(v)
}
