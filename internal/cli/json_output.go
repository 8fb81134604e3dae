// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Provides a standardized JSON envelope for all CLI commands so output
// can be piped into jq or log aggregation without scraping text.
package cli

import (
	"encoding/json"
	"os"
	"time"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
// Human-readable messages should go to stderr when JSON mode is enabled.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData represents the data returned by the ask command.
type AskData struct {
	Response     string  `json:"response"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TokensPerSec float64 `json:"tokens_per_sec"`
	DurationMs   int64   `json:"duration_ms"`
}

// ModelData represents one model in the models command output.
type ModelData struct {
	Name         string `json:"name"`
	Size         string `json:"size"`
	SizeBytes    int64  `json:"size_bytes"`
	Family       string `json:"family,omitempty"`
	Parameters   string `json:"parameters,omitempty"`
	Quantization string `json:"quantization,omitempty"`
	ModifiedAt   string `json:"modified_at,omitempty"`
}

// EmbedData represents the data returned by the embed command.
type EmbedData struct {
	Model      string      `json:"model"`
	Dimensions int         `json:"dimensions"`
	Count      int         `json:"count"`
	Embeddings [][]float64 `json:"embeddings,omitempty"`
}

// StatusData represents the data returned by the status command.
type StatusData struct {
	Server  StatusServerInfo  `json:"server"`
	Config  StatusConfigInfo  `json:"config"`
	History StatusHistoryInfo `json:"history"`
}

// StatusServerInfo contains server information for the status command.
type StatusServerInfo struct {
	URL      string   `json:"url"`
	Running  bool     `json:"running"`
	Models   int      `json:"models"`
	ModelSet []string `json:"model_names,omitempty"`
}

// StatusConfigInfo contains configuration info for the status command.
type StatusConfigInfo struct {
	Path           string `json:"path"`
	DefaultModel   string `json:"default_model"`
	KeepAlive      string `json:"keep_alive"`
	SkipModelCheck bool   `json:"skip_model_check"`
}

// StatusHistoryInfo contains history info for the status command.
type StatusHistoryInfo struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Count   int    `json:"count"`
}

// HistoryEntryData represents one exchange in history command output.
type HistoryEntryData struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	Model        string `json:"model"`
	Kind         string `json:"kind"`
	Prompt       string `json:"prompt"`
	Reply        string `json:"reply,omitempty"`
	PromptTokens int    `json:"prompt_tokens"`
	ReplyTokens  int    `json:"reply_tokens"`
	DurationMs   int64  `json:"duration_ms"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
