// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared helpers for CLI command handlers.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ollamaflow"
	"github.com/jeranaias/ollamaflow/internal/config"
	"github.com/jeranaias/ollamaflow/internal/history"
)

// MaxFileSize is the largest file the ask command will inline (1MB).
const MaxFileSize = 1 << 20

// =============================================================================
// CLIENT CONSTRUCTION
// =============================================================================

// newClient builds an API client from the loaded config and CLI args.
// Precedence for the model: --model flag > config default_model.
func newClient(cfg *config.Config, args Args) *ollamaflow.Client {
	clientCfg := &ollamaflow.ClientConfig{
		BaseURL:        cfg.Server.URL,
		Timeout:        time.Duration(cfg.Server.TimeoutSecs) * time.Second,
		StreamTimeout:  time.Duration(cfg.Server.StreamTimeoutSecs) * time.Second,
		DefaultModel:   cfg.DefaultModel,
		KeepAlive:      cfg.Server.KeepAlive,
		SkipModelCheck: cfg.Server.SkipModelCheck || args.NoCheck,
		MaxRetries:     cfg.Server.MaxRetries,
		RetryDelay:     time.Duration(cfg.Server.RetryDelayMs) * time.Millisecond,
	}

	if cfg.Server.RateLimitRPS > 0 {
		clientCfg.Limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), 1)
	}

	if args.Model != "" {
		clientCfg.DefaultModel = args.Model
	}

	return ollamaflow.NewClientWithConfig(clientCfg)
}

// openHistory opens the history store if recording is enabled.
// Returns (nil, nil) when history is disabled so callers can nil-check.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path, cfg.History.MaxEntries)
}

// recordExchange writes an exchange to the history store, ignoring
// failures. History is best-effort: a broken log must never fail the
// command that produced the answer.
func recordExchange(store *history.Store, ex *history.Exchange) {
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := store.Record(ctx, ex); err != nil {
		fmt.Fprintf(os.Stderr, "%s history: %v\n", WarningStyle.Render("[warn]"), err)
	}
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the glamour renderer for markdown output.
// USABILITY: Renders markdown responses with syntax highlighting.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(DefaultTerminalWidth),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display.
// Returns the original content if rendering fails or is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a response with markdown rendering when stdout
// is a TTY and the config allows it. Piped output stays verbatim.
func displayResponse(cfg *config.Config, response string) {
	if cfg.Output.Markdown && IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
		if !strings.HasSuffix(response, "\n") {
			fmt.Println()
		}
		return
	}
	fmt.Print(response)
	if !strings.HasSuffix(response, "\n") {
		fmt.Println()
	}
}

// =============================================================================
// FILE READING
// =============================================================================

// readFileForContext reads a file and formats it for inclusion in a
// prompt. Files larger than MaxFileSize are rejected.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d bytes)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("\n--- File: %s ---\n", path))
	builder.Write(content)
	builder.WriteString("\n--- End of file ---\n")

	return builder.String(), nil
}

// readStdinIfPiped returns piped stdin content, or "" when stdin is a
// terminal.
func readStdinIfPiped() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
