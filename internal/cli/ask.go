// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot prompt command with streaming output.
//
// The ask command sends a single prompt and streams the reply to
// stdout. In JSON mode or with --schema, the full response is fetched
// non-streaming so the output is one well-formed document.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jeranaias/ollamaflow"
	"github.com/jeranaias/ollamaflow/internal/config"
	"github.com/jeranaias/ollamaflow/internal/history"
)

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	cfg := config.Global()

	question := args.Query

	// Piped input is appended so both forms work:
	//   cat err.log | ollamaflow ask "explain this"
	//   cat err.log | ollamaflow ask
	if piped := readStdinIfPiped(); piped != "" {
		if question == "" {
			question = piped
		} else {
			question = question + "\n\n" + piped
		}
	}

	if question == "" {
		err := ErrMissingArgument("question", `ollamaflow ask "your question"`)
		if args.JSON {
			NewJSONErrorResponse("ask", err).Print()
		}
		return err
	}

	if args.File != "" {
		fileContent, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question = question + "\n" + fileContent

		if !args.Quiet && !args.JSON {
			fmt.Fprintf(os.Stderr, "%s Including file: %s\n",
				InfoStyle.Render("[+]"), args.File)
		}
	}

	client := newClient(cfg, args)

	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s history unavailable: %v\n", WarningStyle.Render("[warn]"), err)
	}
	if store != nil {
		defer store.Close()
	}

	// Ctrl+C cancels the in-flight request
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req := &ollamaflow.GenerateRequest{
		Model:  args.Model,
		Prompt: question,
		System: systemPrompt(cfg, args),
	}

	if args.Schema != "" || args.JSON {
		return askBuffered(ctx, client, cfg, store, req, args)
	}
	return askStreaming(ctx, client, store, req, args)
}

// systemPrompt resolves the system prompt: flag first, then config.
func systemPrompt(cfg *config.Config, args Args) string {
	if args.System != "" {
		return args.System
	}
	return cfg.Chat.System
}

// askStreaming streams tokens to stdout as they arrive. Markdown is not
// re-rendered mid-stream; tokens go out verbatim.
func askStreaming(ctx context.Context, client *ollamaflow.Client, store *history.Store, req *ollamaflow.GenerateRequest, args Args) error {
	start := time.Now()
	var reply strings.Builder
	var final ollamaflow.StreamChunk

	err := client.GenerateStream(ctx, req, func(chunk ollamaflow.StreamChunk) {
		fmt.Print(chunk.Content)
		reply.WriteString(chunk.Content)
		if chunk.Done {
			final = chunk
		}
	})
	if err != nil {
		return err
	}
	if !strings.HasSuffix(reply.String(), "\n") {
		fmt.Println()
	}

	if !args.Quiet && final.Done {
		printAskStats(final, time.Since(start))
	}

	recordExchange(store, &history.Exchange{
		Model:        final.Model,
		Kind:         history.KindAsk,
		Prompt:       req.Prompt,
		Reply:        reply.String(),
		PromptTokens: final.PromptTokens,
		ReplyTokens:  final.CompletionTokens,
		Duration:     time.Since(start),
	})
	return nil
}

// askBuffered fetches the whole response before printing. Used for
// --json and --schema so output is a single document.
func askBuffered(ctx context.Context, client *ollamaflow.Client, cfg *config.Config, store *history.Store, req *ollamaflow.GenerateRequest, args Args) error {
	start := time.Now()

	var resp *ollamaflow.GenerateResponse
	var err error

	if args.Schema != "" {
		var schema json.RawMessage
		schema, err = loadSchemaFile(args.Schema)
		if err != nil {
			return err
		}
		resp, err = client.GenerateStructured(ctx, req, schema)
	} else {
		resp, err = client.Generate(ctx, req)
	}
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("ask", err).Print()
		}
		return err
	}

	duration := time.Since(start)

	if args.JSON {
		NewJSONResponse("ask", AskData{
			Response:     resp.Response,
			Model:        resp.Model,
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
			TokensPerSec: resp.TokensPerSecond(),
			DurationMs:   duration.Milliseconds(),
		}).Print()
	} else {
		displayResponse(cfg, resp.Response)
	}

	recordExchange(store, &history.Exchange{
		Model:        resp.Model,
		Kind:         history.KindAsk,
		Prompt:       req.Prompt,
		Reply:        resp.Response,
		PromptTokens: resp.PromptEvalCount,
		ReplyTokens:  resp.EvalCount,
		Duration:     duration,
	})
	return nil
}

// loadSchemaFile reads a JSON Schema file for structured output.
func loadSchemaFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	if !json.Valid(data) {
		return nil, &UsageError{
			Field:   "schema",
			Reason:  fmt.Sprintf("%s is not valid JSON", path),
			Example: `{"type":"object","properties":{"name":{"type":"string"}}}`,
		}
	}
	return json.RawMessage(data), nil
}

// printAskStats prints a one-line summary after a streamed reply.
func printAskStats(final ollamaflow.StreamChunk, elapsed time.Duration) {
	var tps float64
	if final.EvalDuration > 0 {
		tps = float64(final.CompletionTokens) / final.EvalDuration.Seconds()
	}
	fmt.Fprintf(os.Stderr, "\n%s\n", DimStyle.Render(fmt.Sprintf(
		"%s | %d tokens | %.1f tok/s | %.1fs",
		final.Model, final.CompletionTokens, tps, elapsed.Seconds())))
}
