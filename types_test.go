// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides a typed HTTP client for the Ollama API.
package ollamaflow

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != "user" {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}

	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("Response")

	if msg.Role != "assistant" {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}

	if msg.Content != "Response" {
		t.Errorf("Content = %q, want 'Response'", msg.Content)
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are a helpful assistant")

	if msg.Role != "system" {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage("search", "Tool output")

	if msg.Role != "tool" {
		t.Errorf("Role = %q, want 'tool'", msg.Role)
	}

	if msg.ToolName != "search" {
		t.Errorf("ToolName = %q, want 'search'", msg.ToolName)
	}

	if msg.Content != "Tool output" {
		t.Errorf("Content = %q, want 'Tool output'", msg.Content)
	}
}

func TestMessage_HasToolCalls(t *testing.T) {
	// Without tool calls
	msg := NewAssistantMessage("Response")
	if msg.HasToolCalls() {
		t.Error("HasToolCalls should be false without tool calls")
	}

	// With tool calls
	msg.ToolCalls = []ToolCall{{Function: ToolFunction{Name: "test"}}}
	if !msg.HasToolCalls() {
		t.Error("HasToolCalls should be true with tool calls")
	}
}

// =============================================================================
// EMBED INPUT TESTS
// =============================================================================

func TestEmbedInput_MarshalSingle(t *testing.T) {
	data, err := json.Marshal(EmbedInput{"hello"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// A single element marshals as a bare string
	if string(data) != `"hello"` {
		t.Errorf("Marshal = %s, want %q", data, `"hello"`)
	}
}

func TestEmbedInput_MarshalMultiple(t *testing.T) {
	data, err := json.Marshal(EmbedInput{"one", "two"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if string(data) != `["one","two"]` {
		t.Errorf("Marshal = %s, want a JSON array", data)
	}
}

func TestEmbedInput_UnmarshalBothForms(t *testing.T) {
	var in EmbedInput
	if err := json.Unmarshal([]byte(`"solo"`), &in); err != nil {
		t.Fatalf("Unmarshal string failed: %v", err)
	}
	if len(in) != 1 || in[0] != "solo" {
		t.Errorf("Unmarshal string = %v", in)
	}

	if err := json.Unmarshal([]byte(`["a","b"]`), &in); err != nil {
		t.Fatalf("Unmarshal list failed: %v", err)
	}
	if len(in) != 2 {
		t.Errorf("Unmarshal list = %v", in)
	}

	if err := json.Unmarshal([]byte(`42`), &in); err == nil {
		t.Error("Unmarshal should reject a number")
	}
}

// =============================================================================
// RESPONSE METRIC TESTS
// =============================================================================

func TestChatResponse_TokensPerSecond(t *testing.T) {
	tests := []struct {
		name         string
		evalCount    int
		evalDuration int64
		want         float64
	}{
		{"normal", 100, int64(time.Second), 100.0},
		{"zero duration", 100, 0, 0.0},
		{"fast", 1000, int64(100 * time.Millisecond), 10000.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := &ChatResponse{
				EvalCount:    tc.evalCount,
				EvalDuration: tc.evalDuration,
			}

			got := resp.TokensPerSecond()

			// Allow small floating point differences
			if tc.want != 0 && (got < tc.want*0.99 || got > tc.want*1.01) {
				t.Errorf("TokensPerSecond() = %f, want %f", got, tc.want)
			}
			if tc.want == 0 && got != 0 {
				t.Errorf("TokensPerSecond() = %f, want 0", got)
			}
		})
	}
}

func TestGenerateResponse_Metrics(t *testing.T) {
	resp := &GenerateResponse{
		PromptEvalDuration: int64(500 * time.Millisecond),
		TotalDuration:      int64(2 * time.Second),
		EvalCount:          60,
		EvalDuration:       int64(time.Second),
	}

	if resp.TTFT() != 500*time.Millisecond {
		t.Errorf("TTFT() = %v, want 500ms", resp.TTFT())
	}

	if resp.TotalTime() != 2*time.Second {
		t.Errorf("TotalTime() = %v, want 2s", resp.TotalTime())
	}

	if tps := resp.TokensPerSecond(); tps < 59 || tps > 61 {
		t.Errorf("TokensPerSecond() = %f, want ~60", tps)
	}
}

func TestEmbedResponse_Dimensions(t *testing.T) {
	resp := &EmbedResponse{}
	if resp.Dimensions() != 0 {
		t.Errorf("Dimensions() = %d, want 0 for empty response", resp.Dimensions())
	}

	resp.Embeddings = [][]float64{{0.1, 0.2, 0.3}}
	if resp.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", resp.Dimensions())
	}
}

// =============================================================================
// MODEL INFO TESTS
// =============================================================================

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "B"},
		{8 * 1024, "KB"},
		{3 * 1024 * 1024, "MB"},
		{2 * 1024 * 1024 * 1024, "GB"},
	}

	for _, tc := range tests {
		m := &ModelInfo{Size: tc.size}
		got := m.FormatSize()

		if !strings.HasSuffix(got, tc.want) {
			t.Errorf("FormatSize(%d) = %q, want suffix %q", tc.size, got, tc.want)
		}
	}
}

// =============================================================================
// TOOL DEFINITION TESTS
// =============================================================================

func TestTool_Definition(t *testing.T) {
	tool := Tool{
		Type: "function",
		Function: ToolSchema{
			Name:        "search",
			Description: "Search the web",
			Parameters: ToolParameters{
				Type: "object",
				Properties: map[string]ToolProperty{
					"query": {
						Type:        "string",
						Description: "Search query",
					},
					"limit": {
						Type:        "integer",
						Description: "Max results",
						Default:     10,
					},
				},
				Required: []string{"query"},
			},
		},
	}

	if tool.Type != "function" {
		t.Errorf("Type = %q", tool.Type)
	}

	if len(tool.Function.Parameters.Properties) != 2 {
		t.Errorf("Properties length = %d", len(tool.Function.Parameters.Properties))
	}

	if len(tool.Function.Parameters.Required) != 1 {
		t.Errorf("Required length = %d", len(tool.Function.Parameters.Required))
	}
}

// =============================================================================
// WIRE SHAPE TESTS
// =============================================================================

func TestGenerateRequest_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(&GenerateRequest{Model: "llama3", Prompt: "Hi"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	body := string(data)

	// Stream is always explicit, everything optional is omitted
	if !strings.Contains(body, `"stream":false`) {
		t.Errorf("body missing explicit stream field: %s", body)
	}
	for _, field := range []string{"suffix", "images", "think", "format", "system", "template", "raw", "keep_alive", "context"} {
		if strings.Contains(body, `"`+field+`"`) {
			t.Errorf("body should omit empty %q: %s", field, body)
		}
	}
}

func TestChatRequest_Format(t *testing.T) {
	req := &ChatRequest{
		Model:    "qwen2.5:7b",
		Messages: []Message{NewUserMessage("Hi")},
		Format:   FormatJSON,
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if !strings.Contains(string(data), `"format":"json"`) {
		t.Errorf("body missing json format: %s", data)
	}
}
