// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides a typed HTTP client for the Ollama API.
package ollamaflow

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// =============================================================================
// STRUCTURED OUTPUT
// =============================================================================

// FormatJSON is the format value that constrains the model to emit
// syntactically valid JSON without a specific schema.
var FormatJSON = json.RawMessage(`"json"`)

// SchemaFor reflects a Go value into a JSON Schema suitable for the
// Format field of a request. Struct tags drive the schema the same way
// they drive encoding/json: field names from `json:"..."` tags, extra
// constraints from `jsonschema:"..."` tags.
func SchemaFor(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		// Inline everything: the Ollama format field takes a single
		// self-contained schema object, not a $defs-referencing document.
		DoNotReference: true,
		ExpandedStruct: true,
	}

	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal schema", Cause: err}
	}
	return data, nil
}

// formatFrom normalizes the schema argument of the structured helpers:
// raw schema bytes and the FormatJSON literal pass through, maps are
// marshaled, anything else is reflected into a schema.
func formatFrom(schema any) (json.RawMessage, error) {
	switch s := schema.(type) {
	case nil:
		return FormatJSON, nil
	case json.RawMessage:
		return s, nil
	case string:
		return json.Marshal(s)
	case map[string]any:
		data, err := json.Marshal(s)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal schema", Cause: err}
		}
		return data, nil
	default:
		return SchemaFor(schema)
	}
}

// GenerateStructured sends a completion request whose response is
// constrained by schema: a Go value to reflect, a map, raw schema bytes,
// or nil for plain JSON mode.
func (c *Client) GenerateStructured(ctx context.Context, req *GenerateRequest, schema any) (*GenerateResponse, error) {
	format, err := formatFrom(schema)
	if err != nil {
		return nil, err
	}

	r := *req
	r.Format = format
	return c.Generate(ctx, &r)
}

// ChatStructured sends a chat request whose response is constrained by
// schema, with the same schema argument forms as GenerateStructured.
func (c *Client) ChatStructured(ctx context.Context, req *ChatRequest, schema any) (*ChatResponse, error) {
	format, err := formatFrom(schema)
	if err != nil {
		return nil, err
	}

	r := *req
	r.Format = format
	return c.Chat(ctx, &r)
}

// ParseStructured decodes a structured model response into out.
// The model occasionally wraps output in whitespace; anything that is
// not a single valid JSON document is an error.
func ParseStructured(data string, out any) error {
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to parse structured response", Cause: err}
	}
	return nil
}
