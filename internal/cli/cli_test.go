// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/jeranaias/ollamaflow"
)

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func TestParseArgs_NoArgsShowsHelp(t *testing.T) {
	cmd, _ := ParseArgs(nil)
	if cmd != CmdHelp {
		t.Errorf("expected CmdHelp, got %v", cmd)
	}
}

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{[]string{"ask", "hello"}, CmdAsk},
		{[]string{"chat"}, CmdChat},
		{[]string{"models"}, CmdModels},
		{[]string{"embed", "text"}, CmdEmbed},
		{[]string{"status"}, CmdStatus},
		{[]string{"history"}, CmdHistory},
		{[]string{"config"}, CmdConfig},
		{[]string{"version"}, CmdVersion},
		{[]string{"help"}, CmdHelp},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			cmd, _ := ParseArgs(tt.args)
			if cmd != tt.want {
				t.Errorf("ParseArgs(%v) = %v, want %v", tt.args, cmd, tt.want)
			}
		})
	}
}

func TestParseArgs_UnknownCommandIsAsk(t *testing.T) {
	cmd, args := ParseArgs([]string{"why", "is", "the", "sky", "blue"})
	if cmd != CmdAsk {
		t.Fatalf("expected CmdAsk, got %v", cmd)
	}
	if args.Query != "why is the sky blue" {
		t.Errorf("query = %q", args.Query)
	}
}

func TestParseArgs_GlobalFlags(t *testing.T) {
	cmd, args := ParseArgs([]string{"-q", "--json", "--no-check", "--model", "llama3.2", "ask", "hi"})
	if cmd != CmdAsk {
		t.Fatalf("expected CmdAsk, got %v", cmd)
	}
	if !args.Quiet || !args.JSON || !args.NoCheck {
		t.Errorf("flags not parsed: %+v", args)
	}
	if args.Model != "llama3.2" {
		t.Errorf("model = %q", args.Model)
	}
}

func TestParseArgs_ModelEqualsForm(t *testing.T) {
	_, args := ParseArgs([]string{"ask", "--model=mistral", "hello"})
	if args.Model != "mistral" {
		t.Errorf("model = %q, want mistral", args.Model)
	}
	if args.Query != "hello" {
		t.Errorf("query = %q", args.Query)
	}
}

func TestParseArgs_AskFlags(t *testing.T) {
	_, args := ParseArgs([]string{"ask", "-f", "main.go", "--system", "be brief", "explain"})
	if args.File != "main.go" {
		t.Errorf("file = %q", args.File)
	}
	if args.System != "be brief" {
		t.Errorf("system = %q", args.System)
	}
	if args.Query != "explain" {
		t.Errorf("query = %q", args.Query)
	}
}

func TestParseArgs_AskSchema(t *testing.T) {
	_, args := ParseArgs([]string{"ask", "--schema", "out.json", "extract the fields"})
	if args.Schema != "out.json" {
		t.Errorf("schema = %q", args.Schema)
	}
}

func TestParseArgs_ModelsShow(t *testing.T) {
	cmd, args := ParseArgs([]string{"models", "show", "llama3.2"})
	if cmd != CmdModels {
		t.Fatalf("expected CmdModels, got %v", cmd)
	}
	if args.Subcommand != "show" || args.Query != "llama3.2" {
		t.Errorf("subcommand = %q, query = %q", args.Subcommand, args.Query)
	}
}

func TestParseArgs_EmbedTexts(t *testing.T) {
	_, args := ParseArgs([]string{"embed", "-m", "nomic-embed-text", "first", "second"})
	if args.Model != "nomic-embed-text" {
		t.Errorf("model = %q", args.Model)
	}
	if len(args.Raw) != 2 || args.Raw[0] != "first" || args.Raw[1] != "second" {
		t.Errorf("raw = %v", args.Raw)
	}
}

func TestParseArgs_HistoryDefaults(t *testing.T) {
	_, args := ParseArgs([]string{"history"})
	if args.Subcommand != "list" {
		t.Errorf("subcommand = %q, want list", args.Subcommand)
	}
	if args.Limit != 20 {
		t.Errorf("limit = %d, want 20", args.Limit)
	}
}

func TestParseArgs_HistorySearch(t *testing.T) {
	_, args := ParseArgs([]string{"history", "search", "--limit", "5", "goroutine", "leak"})
	if args.Subcommand != "search" {
		t.Errorf("subcommand = %q", args.Subcommand)
	}
	if args.Limit != 5 {
		t.Errorf("limit = %d", args.Limit)
	}
	if args.Query != "goroutine leak" {
		t.Errorf("query = %q", args.Query)
	}
}

func TestParseArgs_ConfigSet(t *testing.T) {
	_, args := ParseArgs([]string{"config", "set", "server.url", "http://localhost:11434"})
	if args.Subcommand != "set" {
		t.Errorf("subcommand = %q", args.Subcommand)
	}
	if args.ConfigKey != "server.url" || args.ConfigVal != "http://localhost:11434" {
		t.Errorf("key = %q, val = %q", args.ConfigKey, args.ConfigVal)
	}
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"usage", &UsageError{Field: "x", Reason: "missing"}, ExitUsageError},
		{"config", &ConfigError{Err: errors.New("bad toml")}, ExitConfigError},
		{"model not found", ollamaflow.ErrModelNotFound, ExitNotFoundError},
		{"not running", ollamaflow.ErrNotRunning, ExitNetworkError},
		{"timeout", ollamaflow.ErrTimeout, ExitTimeoutError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetExitCode_WrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &UsageError{Field: "f", Reason: "r"})
	if got := GetExitCode(wrapped); got != ExitUsageError {
		t.Errorf("wrapped usage error = %d, want %d", got, ExitUsageError)
	}
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func TestWrapText(t *testing.T) {
	out := WrapText("aaa bbb ccc ddd", 7)
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 7 {
			t.Errorf("line too long: %q", line)
		}
	}
}

func TestPreviewVector(t *testing.T) {
	got := previewVector([]float64{0.1234, 0.5678, 0.9, 0.1, 0.2}, 2)
	if !strings.HasPrefix(got, "[0.1234, 0.5678") {
		t.Errorf("previewVector = %q", got)
	}
	if previewVector(nil, 4) != "[]" {
		t.Errorf("empty vector should render []")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}

func TestUsageErrorMessage(t *testing.T) {
	err := &UsageError{Field: "question", Reason: "required argument missing", Example: `ollamaflow ask "hi"`}
	msg := err.Error()
	if !strings.Contains(msg, "question") || !strings.Contains(msg, "Example:") {
		t.Errorf("unexpected message: %q", msg)
	}
}
