// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollamaflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/jeranaias/ollamaflow"
)

// Basic completion against a local server.
func ExampleClient_Generate() {
	client := ollamaflow.NewClient()

	resp, err := client.Generate(context.Background(), &ollamaflow.GenerateRequest{
		Model:  "llama3:8b",
		Prompt: "Why is the sky blue? Answer in one sentence.",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Response)
}

// Multi-turn chat with a system prompt.
func ExampleClient_Chat() {
	client := ollamaflow.NewClient()

	resp, err := client.Chat(context.Background(), &ollamaflow.ChatRequest{
		Model: "qwen2.5:7b",
		Messages: []ollamaflow.Message{
			ollamaflow.NewSystemMessage("You answer in haiku."),
			ollamaflow.NewUserMessage("Describe the ocean."),
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(resp.Message.Content)
}

// Streaming tokens to stdout as they arrive.
func ExampleClient_GenerateStream() {
	client := ollamaflow.NewClient()

	err := client.GenerateStream(context.Background(), &ollamaflow.GenerateRequest{
		Model:  "llama3:8b",
		Prompt: "Count from one to five.",
	}, func(chunk ollamaflow.StreamChunk) {
		fmt.Print(chunk.Content)
	})
	if err != nil {
		log.Fatal(err)
	}
}

// Constrained output: reflect a Go struct into a JSON Schema, let the
// model fill it, and parse the reply back.
func ExampleClient_GenerateStructured() {
	type Country struct {
		Name       string `json:"name" jsonschema:"required"`
		Capital    string `json:"capital" jsonschema:"required"`
		Population int    `json:"population"`
	}

	client := ollamaflow.NewClient()

	resp, err := client.GenerateStructured(context.Background(), &ollamaflow.GenerateRequest{
		Model:  "llama3:8b",
		Prompt: "Tell me about Canada.",
	}, Country{})
	if err != nil {
		log.Fatal(err)
	}

	var country Country
	if err := ollamaflow.ParseStructured(resp.Response, &country); err != nil {
		log.Fatal(err)
	}

	fmt.Println(country.Capital)
}

// Embeddings for similarity search.
func ExampleClient_EmbedTexts() {
	client := ollamaflow.NewClient()

	vectors, err := client.EmbedTexts(context.Background(), "nomic-embed-text",
		"The sky is blue",
		"Water is wet",
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(len(vectors))
}
