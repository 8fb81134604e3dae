// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides a typed HTTP client for the Ollama API.
package ollamaflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role      string     `json:"role"`                 // "user", "assistant", "system", "tool"
	Content   string     `json:"content"`              // The message content
	Images    []string   `json:"images,omitempty"`     // Base64-encoded images
	ToolCalls []ToolCall `json:"tool_calls,omitempty"` // Tool calls requested by assistant
	ToolName  string     `json:"tool_name,omitempty"`  // Name of the tool that produced this result
}

// ToolCall represents a tool invocation from the model.
type ToolCall struct {
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name and arguments.
type ToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// GenerateRequest is the request body for the /api/generate endpoint.
type GenerateRequest struct {
	Model     string          `json:"model"`                // Model name (e.g., "qwen2.5:14b")
	Prompt    string          `json:"prompt"`               // Prompt text
	Suffix    string          `json:"suffix,omitempty"`     // Text appended after the model response
	Images    []string        `json:"images,omitempty"`     // Base64-encoded images
	Think     bool            `json:"think,omitempty"`      // Enable thinking mode
	Format    json.RawMessage `json:"format,omitempty"`     // "json" or a JSON Schema
	Options   *Options        `json:"options,omitempty"`    // Model parameters
	System    string          `json:"system,omitempty"`     // System message
	Template  string          `json:"template,omitempty"`   // Custom prompt template
	Stream    bool            `json:"stream"`               // Enable streaming
	Raw       bool            `json:"raw,omitempty"`        // Bypass prompt templating
	KeepAlive string          `json:"keep_alive,omitempty"` // How long the model stays loaded (e.g., "5m")
	Context   []int           `json:"context,omitempty"`    // Previous context for continuations (deprecated upstream)
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model     string          `json:"model"`                // Model name
	Messages  []Message       `json:"messages"`             // Conversation history
	Tools     []Tool          `json:"tools,omitempty"`      // Available tools for function calling
	Format    json.RawMessage `json:"format,omitempty"`     // "json" or a JSON Schema
	Options   *Options        `json:"options,omitempty"`    // Model parameters
	Stream    bool            `json:"stream"`               // Enable streaming
	KeepAlive string          `json:"keep_alive,omitempty"` // How long the model stays loaded
}

// EmbedInput is the input for the embed endpoint: one or more texts.
// A single element marshals as a bare JSON string, matching the wire
// shape the server documents for the scalar form.
type EmbedInput []string

// MarshalJSON implements json.Marshaler.
func (in EmbedInput) MarshalJSON() ([]byte, error) {
	if len(in) == 1 {
		return json.Marshal(in[0])
	}
	return json.Marshal([]string(in))
}

// UnmarshalJSON implements json.Unmarshaler, accepting both forms.
func (in *EmbedInput) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*in = EmbedInput{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("embed input must be a string or a list of strings: %w", err)
	}
	*in = EmbedInput(many)
	return nil
}

// EmbedRequest is the request body for the /api/embed endpoint.
type EmbedRequest struct {
	Model     string     `json:"model"`                // Model name
	Input     EmbedInput `json:"input"`                // Input text(s)
	Truncate  *bool      `json:"truncate,omitempty"`   // Truncate inputs exceeding the context window
	Options   *Options   `json:"options,omitempty"`    // Model parameters
	KeepAlive string     `json:"keep_alive,omitempty"` // How long the model stays loaded
}

// Tool represents a tool definition for function calling.
type Tool struct {
	Type     string     `json:"type"`     // Always "function"
	Function ToolSchema `json:"function"` // Function definition
}

// ToolSchema defines a tool's interface.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters defines the parameters schema for a tool.
type ToolParameters struct {
	Type       string                  `json:"type"` // "object"
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

// ToolProperty defines a single parameter property using JSON Schema.
type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`    // Allowed values for string type
	Default     any      `json:"default,omitempty"` // Default value for the parameter
}

// Options contains model parameters for inference.
type Options struct {
	// Sampling parameters
	Temperature      float64 `json:"temperature,omitempty"`       // 0.0-2.0, default 0.8
	TopK             int     `json:"top_k,omitempty"`             // Default 40
	TopP             float64 `json:"top_p,omitempty"`             // 0.0-1.0, default 0.9
	RepeatPenalty    float64 `json:"repeat_penalty,omitempty"`    // Default 1.1
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`  // Default 0.0
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"` // Default 0.0

	// Context parameters
	NumCtx     int `json:"num_ctx,omitempty"`     // Context window size, default 2048
	NumPredict int `json:"num_predict,omitempty"` // Max tokens to generate, -1 for unlimited

	// Performance parameters
	NumGPU    int `json:"num_gpu,omitempty"`    // Number of GPU layers to use
	NumThread int `json:"num_thread,omitempty"` // Number of threads for inference
	NumBatch  int `json:"num_batch,omitempty"`  // Batch size for prompt processing

	// Stopping
	Stop []string `json:"stop,omitempty"` // Stop sequences

	// Seed for reproducibility
	Seed int `json:"seed,omitempty"` // Random seed
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateResponse is the response from the /api/generate endpoint.
type GenerateResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	Context            []int     `json:"context,omitempty"`
	TotalDuration      int64     `json:"total_duration,omitempty"`       // nanoseconds
	LoadDuration       int64     `json:"load_duration,omitempty"`        // nanoseconds
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`    // number of tokens in prompt
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"` // nanoseconds
	EvalCount          int       `json:"eval_count,omitempty"`           // number of tokens generated
	EvalDuration       int64     `json:"eval_duration,omitempty"`        // nanoseconds
}

// ChatResponse is the response from the /api/chat endpoint.
type ChatResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Message            Message   `json:"message"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	TotalDuration      int64     `json:"total_duration,omitempty"`
	LoadDuration       int64     `json:"load_duration,omitempty"`
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"`
	EvalCount          int       `json:"eval_count,omitempty"`
	EvalDuration       int64     `json:"eval_duration,omitempty"`
}

// EmbedResponse is the response from the /api/embed endpoint.
type EmbedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float64 `json:"embeddings"`
	TotalDuration   int64       `json:"total_duration,omitempty"`
	LoadDuration    int64       `json:"load_duration,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo contains information about a model.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from the /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ShowModelRequest is the request for the /api/show endpoint.
type ShowModelRequest struct {
	Name string `json:"name"`
}

// ShowModelResponse is the response from the /api/show endpoint.
type ShowModelResponse struct {
	License    string       `json:"license"`
	Modelfile  string       `json:"modelfile"`
	Parameters string       `json:"parameters"`
	Template   string       `json:"template"`
	Details    ModelDetails `json:"details"`
}

// =============================================================================
// HELPER METHODS
// =============================================================================

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// NewToolResultMessage creates a tool result message.
func NewToolResultMessage(toolName, content string) Message {
	return Message{Role: "tool", Content: content, ToolName: toolName}
}

// HasToolCalls returns true if the message contains tool calls.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// TokensPerSecond calculates the generation speed from a response.
func (r *ChatResponse) TokensPerSecond() float64 {
	return tokensPerSecond(r.EvalCount, r.EvalDuration)
}

// TTFT returns the time to first token (prompt evaluation time).
func (r *ChatResponse) TTFT() time.Duration {
	return time.Duration(r.PromptEvalDuration)
}

// TotalTime returns the total generation time.
func (r *ChatResponse) TotalTime() time.Duration {
	return time.Duration(r.TotalDuration)
}

// TokensPerSecond calculates the generation speed from a response.
func (r *GenerateResponse) TokensPerSecond() float64 {
	return tokensPerSecond(r.EvalCount, r.EvalDuration)
}

// TTFT returns the time to first token (prompt evaluation time).
func (r *GenerateResponse) TTFT() time.Duration {
	return time.Duration(r.PromptEvalDuration)
}

// TotalTime returns the total generation time.
func (r *GenerateResponse) TotalTime() time.Duration {
	return time.Duration(r.TotalDuration)
}

func tokensPerSecond(count int, durationNs int64) float64 {
	if durationNs == 0 {
		return 0
	}
	seconds := float64(durationNs) / 1e9
	return float64(count) / seconds
}

// Dimensions returns the width of the embedding vectors, or 0 when the
// response carries none.
func (r *EmbedResponse) Dimensions() int {
	if len(r.Embeddings) == 0 {
		return 0
	}
	return len(r.Embeddings[0])
}

// FormatSize formats the model size in human-readable form.
func (m *ModelInfo) FormatSize() string {
	const (
		KB = 1 << 10
		MB = 1 << 20
		GB = 1 << 30
	)

	switch {
	case m.Size >= GB:
		return fmt.Sprintf("%.1f GB", float64(m.Size)/GB)
	case m.Size >= MB:
		return fmt.Sprintf("%.1f MB", float64(m.Size)/MB)
	case m.Size >= KB:
		return fmt.Sprintf("%.1f KB", float64(m.Size)/KB)
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}
