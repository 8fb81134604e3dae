// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// embed.go - Compute embeddings for one or more texts.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeranaias/ollamaflow/internal/config"
)

// HandleEmbedCommand handles the "embed" command. Texts come from
// positional arguments or piped stdin (one text per line).
func HandleEmbedCommand(args Args) error {
	cfg := config.Global()

	texts := args.Raw
	if len(texts) == 0 {
		if piped := readStdinIfPiped(); piped != "" {
			for _, line := range strings.Split(piped, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					texts = append(texts, line)
				}
			}
		}
	}

	if len(texts) == 0 {
		err := ErrMissingArgument("text", `ollamaflow embed -m nomic-embed-text "some text"`)
		if args.JSON {
			NewJSONErrorResponse("embed", err).Print()
		}
		return err
	}

	model := args.Model
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" {
		err := &UsageError{
			Field:   "model",
			Reason:  "embedding requires an explicit model",
			Example: "ollamaflow embed -m nomic-embed-text \"some text\"",
		}
		if args.JSON {
			NewJSONErrorResponse("embed", err).Print()
		}
		return err
	}

	client := newClient(cfg, args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	embeddings, err := client.EmbedTexts(ctx, model, texts...)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("embed", err).Print()
		}
		return err
	}

	dims := 0
	if len(embeddings) > 0 {
		dims = len(embeddings[0])
	}

	if args.JSON {
		return NewJSONResponse("embed", EmbedData{
			Model:      model,
			Dimensions: dims,
			Count:      len(embeddings),
			Embeddings: embeddings,
		}).Print()
	}

	// Human output stays a summary; full vectors are JSON-mode only
	fmt.Printf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(model))
	fmt.Printf("%s %d\n", LabelStyle.Render("Texts:"), len(embeddings))
	fmt.Printf("%s %d\n", LabelStyle.Render("Dimensions:"), dims)
	for i, vec := range embeddings {
		preview := previewVector(vec, 4)
		fmt.Printf("  %s %s\n", DimStyle.Render(fmt.Sprintf("[%d]", i)), preview)
	}
	if !args.Quiet {
		fmt.Println(DimStyle.Render("Use --json for full vectors."))
	}
	return nil
}

// previewVector formats the first n components of an embedding.
func previewVector(vec []float64, n int) string {
	if len(vec) == 0 {
		return "[]"
	}
	if n > len(vec) {
		n = len(vec)
	}
	parts := make([]string, 0, n)
	for _, v := range vec[:n] {
		parts = append(parts, fmt.Sprintf("%.4f", v))
	}
	return "[" + strings.Join(parts, ", ") + ", ...]"
}
