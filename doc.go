// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides a typed HTTP client for the Ollama API.
//
// The package covers the completion, chat and embedding endpoints of a
// local Ollama server, with both blocking and streaming variants, model
// management helpers, and structured (JSON Schema constrained) output.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role, content, images and tool calls
//   - GenerateRequest / ChatRequest / EmbedRequest: typed request bodies
//   - StreamChunk: a single decoded chunk of a streaming response
//   - StreamReader: NDJSON streaming response reader with pooled variant
//
// # Usage
//
// Create a client and send a chat request:
//
//	client := ollamaflow.NewClient()
//	resp, err := client.Chat(ctx, &ollamaflow.ChatRequest{
//	    Model:    "qwen2.5:7b",
//	    Messages: []ollamaflow.Message{ollamaflow.NewUserMessage("Hello")},
//	})
//
// For streaming responses:
//
//	err := client.ChatStream(ctx, req, func(chunk ollamaflow.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
//
// For structured output, reflect a Go struct into a JSON Schema and let
// the model fill it:
//
//	type Person struct {
//	    Name string `json:"name"`
//	    Age  int    `json:"age"`
//	}
//	resp, err := client.GenerateStructured(ctx, req, Person{})
//	var p Person
//	err = ollamaflow.ParseStructured(resp.Response, &p)
//
// # Model Checking
//
// By default the client verifies that a requested model is present on the
// server (via a cached /api/tags listing) before sending a request, so a
// typo fails fast with ErrModelNotFound instead of a slow server error.
// Set ClientConfig.SkipModelCheck to disable the pre-check.
package ollamaflow
