package mcp

import "testing"

func TestConvertSchema_Nil(t *testing.T) {
	schema, err := convertSchema(nil)
	if err != nil {
		t.Fatalf("convertSchema(nil): %v", err)
	}
	if schema == nil {
		t.Fatal("convertSchema(nil) returned a nil schema, want the zero value")
	}
}

func TestConvertSchema_RoundTripsJSONSchemaObject(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
	schema, err := convertSchema(raw)
	if err != nil {
		t.Fatalf("convertSchema: %v", err)
	}
	if schema.Type != "object" {
		t.Fatalf("schema.Type = %q, want %q", schema.Type, "object")
	}
	if schema.Properties == nil {
		t.Fatal("schema.Properties is nil, want the converted \"name\" property")
	}
	if _, ok := schema.Properties.Get("name"); !ok {
		t.Fatal("converted schema is missing the \"name\" property")
	}
}

func TestConvertSchema_InvalidInputErrors(t *testing.T) {
	// A value json.Marshal cannot encode (a channel) must surface as an
	// error, not a panic.
	_, err := convertSchema(make(chan int))
	if err == nil {
		t.Fatal("expected an error converting an unmarshalable schema value")
	}
}
