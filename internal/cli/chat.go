// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL with conversation memory.
//
// Slash commands:
//   /help, /h           Show available commands
//   /clear, /c          Clear conversation history
//   /model [name]       Show or switch model
//   /system [text]      Show or set the system prompt
//   /status, /s         Show session statistics
//   /history            Show recent exchanges from the local log
//   /quit, /q           Exit chat
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/ollamaflow"
	"github.com/jeranaias/ollamaflow/internal/config"
	"github.com/jeranaias/ollamaflow/internal/history"
	"github.com/jeranaias/ollamaflow/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI(cfg *config.Config) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile, err := cfg.ChatHistoryPath()
	if err != nil {
		historyFile = ""
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}

	cli.LoadHistory()
	return cli
}

// LoadHistory loads readline history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// SaveHistory persists readline history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	// Conversation history sent with every request
	Messages []ollamaflow.Message

	// Configuration, swapped live when the config file changes
	mu     sync.RWMutex
	config *config.Config

	Model  string
	System string
	Quiet  bool

	// Tracking
	StartTime   time.Time
	Turns       int
	TotalTokens int

	Client *ollamaflow.Client
	Store  *history.Store

	// Cancel function for the in-flight stream
	CancelFunc context.CancelFunc

	// Input history handler
	InputCLI *ChatCLI
}

// NewChatSession creates a new chat session.
func NewChatSession(args Args) *ChatSession {
	cfg := config.Global()

	model := args.Model
	if model == "" {
		model = cfg.DefaultModel
	}

	system := args.System
	if system == "" {
		system = cfg.Chat.System
	}

	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s history unavailable: %v\n", WarningStyle.Render("[warn]"), err)
	}

	return &ChatSession{
		Messages:  make([]ollamaflow.Message, 0),
		config:    cfg,
		Model:     model,
		System:    system,
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		Client:    newClient(cfg, args),
		Store:     store,
		InputCLI:  NewChatCLI(cfg),
	}
}

// Config returns the current configuration snapshot.
func (s *ChatSession) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// setConfig swaps in a freshly loaded configuration.
func (s *ChatSession) setConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command with full interactive support.
func HandleChatCommand(args Args) error {
	if !IsTTY() {
		return &UsageError{
			Field:  "chat",
			Reason: "stdin is not a terminal; use 'ollamaflow ask' for piped input",
		}
	}

	session := NewChatSession(args)
	if session.Store != nil {
		defer session.Store.Close()
	}

	// Check the server is reachable before entering the loop
	ctx := context.Background()
	if err := session.Client.CheckRunning(ctx); err != nil {
		return err
	}

	if !session.Quiet {
		printWelcome(session)
	}

	defer session.InputCLI.Close()

	// Live-reload config edits while the REPL is open. System prompt and
	// output settings apply on the next turn; an invalid edit is ignored.
	if path, err := config.ConfigPath(); err == nil {
		if w, err := config.NewWatcher(path, 300*time.Millisecond, func(cfg *config.Config) {
			session.setConfig(cfg)
			if !session.Quiet {
				fmt.Fprintf(os.Stderr, "\n%s configuration reloaded\n", InfoStyle.Render("[config]"))
			}
		}); err == nil {
			if err := w.Watch(); err == nil {
				defer w.Close()
			}
		}
	}

	// First Ctrl+C during a stream cancels the stream, not the REPL
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if session.CancelFunc != nil {
				session.CancelFunc()
				session.CancelFunc = nil
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	// Main REPL loop using liner for input history
	for {
		input, err := session.InputCLI.ReadInput(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C (ErrPromptAborted) or Ctrl+D both exit gracefully
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(session)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(session)
			return nil
		}

		if err := processMessage(session, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends a message and streams the reply to stdout.
func processMessage(session *ChatSession, input string) error {
	messages := make([]ollamaflow.Message, 0, len(session.Messages)+2)
	if session.System != "" {
		messages = append(messages, ollamaflow.NewSystemMessage(session.System))
	}
	messages = append(messages, session.Messages...)
	messages = append(messages, ollamaflow.NewUserMessage(input))

	ctx, cancel := context.WithCancel(context.Background())
	session.CancelFunc = cancel
	defer func() {
		cancel()
		session.CancelFunc = nil
	}()

	start := time.Now()
	var firstToken time.Time
	var reply strings.Builder
	var final ollamaflow.StreamChunk

	err := session.Client.ChatStream(ctx, &ollamaflow.ChatRequest{
		Model:    session.Model,
		Messages: messages,
	}, func(chunk ollamaflow.StreamChunk) {
		if firstToken.IsZero() && chunk.Content != "" {
			firstToken = time.Now()
		}
		fmt.Print(chunk.Content)
		reply.WriteString(chunk.Content)
		if chunk.Done {
			final = chunk
		}
	})
	if err != nil {
		// The partial reply is not committed to the conversation
		if reply.Len() > 0 {
			fmt.Println()
		}
		return err
	}
	fmt.Println()

	// Commit the turn
	session.Messages = append(session.Messages,
		ollamaflow.NewUserMessage(input),
		ollamaflow.NewAssistantMessage(reply.String()))
	session.Turns++
	session.TotalTokens += final.PromptTokens + final.CompletionTokens

	if final.Model != "" {
		session.Model = final.Model
	}

	if !session.Quiet && session.Config().Chat.ShowStats {
		var ttft time.Duration
		if !firstToken.IsZero() {
			ttft = firstToken.Sub(start)
		}
		printTurnStats(final, ttft, time.Since(start))
	}

	recordExchange(session.Store, &history.Exchange{
		Model:        final.Model,
		Kind:         history.KindChat,
		Prompt:       input,
		Reply:        reply.String(),
		PromptTokens: final.PromptTokens,
		ReplyTokens:  final.CompletionTokens,
		Duration:     time.Since(start),
	})
	return nil
}

// printTurnStats prints a one-line summary after each reply.
func printTurnStats(final ollamaflow.StreamChunk, ttft, elapsed time.Duration) {
	var tps float64
	if final.EvalDuration > 0 {
		tps = float64(final.CompletionTokens) / final.EvalDuration.Seconds()
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf(
		"  %d tokens | %.1f tok/s | ttft %.2fs | %.1fs",
		final.CompletionTokens, tps, ttft.Seconds(), elapsed.Seconds())))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes a slash command.
// Returns (shouldContinue, error).
func handleSlashCommand(cmd string, session *ChatSession) (bool, error) {
	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printHelp()
		return true, nil

	case "/clear", "/c":
		session.Messages = session.Messages[:0]
		fmt.Println(InfoStyle.Render("Conversation cleared."))
		return true, nil

	case "/model", "/m":
		return handleModelCommand(session, args)

	case "/system":
		if len(args) == 0 {
			if session.System == "" {
				fmt.Println(DimStyle.Render("No system prompt set."))
			} else {
				fmt.Printf("System prompt: %s\n", session.System)
			}
			return true, nil
		}
		session.System = strings.Join(args, " ")
		fmt.Println(InfoStyle.Render("System prompt updated."))
		return true, nil

	case "/status", "/s":
		printStatus(session)
		return true, nil

	case "/history":
		printRecentHistory(session)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleModelCommand shows or switches the active model.
func handleModelCommand(session *ChatSession, args []string) (bool, error) {
	if len(args) == 0 {
		model := session.Model
		if model == "" {
			model = session.Client.DefaultModel()
		}
		if model == "" {
			fmt.Println(DimStyle.Render("No model selected; the server default applies."))
		} else {
			fmt.Printf("Current model: %s\n", ValueStyle.Render(model))
		}

		names, err := session.Client.ModelNames(context.Background())
		if err == nil && len(names) > 0 {
			fmt.Println(DimStyle.Render("Available: " + strings.Join(names, ", ")))
		}
		return true, nil
	}

	name := args[0]
	if !session.Client.ModelExists(context.Background(), name) {
		return true, fmt.Errorf("model %q is not installed (try: ollama pull %s)", name, name)
	}

	session.Model = name
	fmt.Printf("%s switched to %s\n", InfoStyle.Render("[model]"), name)
	return true, nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func printWelcome(session *ChatSession) {
	fmt.Println(TitleStyle.Render("ollamaflow chat"))
	model := session.Model
	if model == "" {
		model = "(server default)"
	}
	fmt.Printf("%s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(model))
	if session.System != "" {
		fmt.Printf("%s %s\n", LabelStyle.Render("System:"), DimStyle.Render(util.TruncateRunes(session.System, 60)))
	}
	fmt.Println(DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func printHelp() {
	commands := []struct{ cmd, desc string }{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear conversation history"},
		{"/model [name]", "Show or switch model"},
		{"/system [text]", "Show or set the system prompt"},
		{"/status, /s", "Show session statistics"},
		{"/history", "Show recent exchanges from the local log"},
		{"/quit, /q", "Exit chat"},
	}

	fmt.Println(TitleStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Printf("  %s %s\n", LabelStyle.Render(c.cmd), DimStyle.Render(c.desc))
	}
}

func printStatus(session *ChatSession) {
	elapsed := time.Since(session.StartTime).Round(time.Second)

	fmt.Println(TitleStyle.Render("Session"))
	fmt.Printf("  %s %s\n", LabelStyle.Render("Model:"), ValueStyle.Render(session.Model))
	fmt.Printf("  %s %d\n", LabelStyle.Render("Turns:"), session.Turns)
	fmt.Printf("  %s %d\n", LabelStyle.Render("Tokens:"), session.TotalTokens)
	fmt.Printf("  %s %s\n", LabelStyle.Render("Elapsed:"), elapsed)
	fmt.Printf("  %s %d messages\n", LabelStyle.Render("Memory:"), len(session.Messages))
}

func printRecentHistory(session *ChatSession) {
	if session.Store == nil {
		fmt.Println(DimStyle.Render("History recording is disabled."))
		return
	}

	width := session.Config().History.PreviewWidth
	entries, err := session.Store.Recent(context.Background(), 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		return
	}
	if len(entries) == 0 {
		fmt.Println(DimStyle.Render("No recorded exchanges yet."))
		return
	}

	for _, ex := range entries {
		fmt.Printf("  %s %s %s\n",
			DimStyle.Render(ex.CreatedAt.Format("Jan 02 15:04")),
			ValueStyle.Render(util.FirstLine(ex.Prompt, width)),
			DimStyle.Render("("+ex.Model+")"))
	}
}

func printExitSummary(session *ChatSession) {
	if session.Quiet || session.Turns == 0 {
		return
	}
	elapsed := time.Since(session.StartTime).Round(time.Second)
	fmt.Println(DimStyle.Render(fmt.Sprintf(
		"%d turns, %d tokens, %s", session.Turns, session.TotalTokens, elapsed)))
}
