// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides a typed HTTP client for the Ollama API.
package ollamaflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type person struct {
	Name  string `json:"name" jsonschema:"required"`
	Age   int    `json:"age" jsonschema:"required"`
	Email string `json:"email,omitempty"`
}

// =============================================================================
// SCHEMA REFLECTION TESTS
// =============================================================================

func TestSchemaFor(t *testing.T) {
	schema, err := SchemaFor(person{})
	if err != nil {
		t.Fatalf("SchemaFor failed: %v", err)
	}

	var decoded struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(schema, &decoded); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if decoded.Type != "object" {
		t.Errorf("type = %q, want 'object'", decoded.Type)
	}
	for _, field := range []string{"name", "age", "email"} {
		if _, ok := decoded.Properties[field]; !ok {
			t.Errorf("schema missing property %q: %s", field, schema)
		}
	}
	if len(decoded.Required) < 2 {
		t.Errorf("required = %v, want name and age", decoded.Required)
	}

	// The format field takes one self-contained object, so nothing may
	// be hidden behind references
	if strings.Contains(string(schema), "$ref") {
		t.Errorf("schema must be inlined, found $ref: %s", schema)
	}
}

func TestFormatFrom(t *testing.T) {
	tests := []struct {
		name   string
		schema any
		want   string
	}{
		{"nil means json mode", nil, `"json"`},
		{"raw passes through", json.RawMessage(`{"type":"object"}`), `{"type":"object"}`},
		{"string json literal", "json", `"json"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := formatFrom(tc.schema)
			if err != nil {
				t.Fatalf("formatFrom failed: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("formatFrom = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFormatFrom_Map(t *testing.T) {
	got, err := formatFrom(map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("formatFrom failed: %v", err)
	}
	if !strings.Contains(string(got), `"type":"object"`) {
		t.Errorf("formatFrom = %s", got)
	}
}

func TestFormatFrom_Struct(t *testing.T) {
	got, err := formatFrom(person{})
	if err != nil {
		t.Fatalf("formatFrom failed: %v", err)
	}
	if !strings.Contains(string(got), `"properties"`) {
		t.Errorf("formatFrom should reflect structs into schemas: %s", got)
	}
}

// =============================================================================
// STRUCTURED REQUEST TESTS
// =============================================================================

func TestGenerateStructured_SetsFormat(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"format":{`) {
			t.Errorf("body missing schema format: %s", body)
		}
		if !strings.Contains(string(body), `"name"`) {
			t.Errorf("schema missing reflected field: %s", body)
		}
		writeJSON(w, GenerateResponse{Response: `{"name":"Ada","age":36}`, Done: true})
	}))

	resp, err := client.GenerateStructured(context.Background(), &GenerateRequest{
		Model:  "m",
		Prompt: "Describe Ada",
	}, person{})
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}

	var p person
	if err := ParseStructured(resp.Response, &p); err != nil {
		t.Fatalf("ParseStructured failed: %v", err)
	}
	if p.Name != "Ada" || p.Age != 36 {
		t.Errorf("parsed = %+v", p)
	}
}

func TestChatStructured_JSONMode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"format":"json"`) {
			t.Errorf("body missing json format: %s", body)
		}
		writeJSON(w, ChatResponse{Message: NewAssistantMessage(`{"ok":true}`), Done: true})
	}))

	resp, err := client.ChatStructured(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []Message{NewUserMessage("Answer in JSON")},
	}, nil)
	if err != nil {
		t.Fatalf("ChatStructured failed: %v", err)
	}

	var out map[string]any
	if err := ParseStructured(resp.Message.Content, &out); err != nil {
		t.Fatalf("ParseStructured failed: %v", err)
	}
}

func TestParseStructured_RejectsNonJSON(t *testing.T) {
	var p person
	err := ParseStructured("Sure! Here is the JSON you asked for: {...}", &p)
	if err == nil {
		t.Fatal("expected parse failure for prose response")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeInvalidResponse {
		t.Errorf("error = %v, want invalid response", err)
	}
}
