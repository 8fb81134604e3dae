// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Browse the local exchange log.
//
// Subcommands:
//   list (default)  Recent exchanges, newest first
//   show ID         Full prompt and reply for one exchange
//   search TERM     Substring search across prompts and replies
//   stats           Totals and per-model counts
//   clear           Delete all recorded exchanges
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeranaias/ollamaflow/internal/config"
	"github.com/jeranaias/ollamaflow/internal/history"
	"github.com/jeranaias/ollamaflow/internal/util"
)

// HandleHistoryCommand handles the "history" command.
func HandleHistoryCommand(args Args) error {
	cfg := config.Global()

	if !cfg.History.Enabled {
		err := errors.New("history recording is disabled (set history.enabled = true)")
		if args.JSON {
			NewJSONErrorResponse("history", err).Print()
		}
		return err
	}

	path, err := cfg.HistoryPath()
	if err != nil {
		return &ConfigError{Err: err}
	}
	store, err := history.Open(path, cfg.History.MaxEntries)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch args.Subcommand {
	case "", "list":
		return historyList(ctx, store, cfg, args)
	case "show":
		return historyShow(ctx, store, cfg, args)
	case "search":
		return historySearch(ctx, store, cfg, args)
	case "stats":
		return historyStats(ctx, store, args)
	case "clear":
		return historyClear(ctx, store, args)
	default:
		return &UsageError{
			Field:   "subcommand",
			Reason:  fmt.Sprintf("unknown history subcommand %q", args.Subcommand),
			Example: "ollamaflow history [list|show|search|stats|clear]",
		}
	}
}

// historyList shows recent exchanges, newest first.
func historyList(ctx context.Context, store *history.Store, cfg *config.Config, args Args) error {
	entries, err := store.Recent(ctx, args.Limit)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("history", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("history", exchangesToData(entries, false)).Print()
	}

	if len(entries) == 0 {
		fmt.Println(DimStyle.Render("No recorded exchanges yet."))
		return nil
	}

	printExchangeTable(entries, cfg.History.PreviewWidth)
	return nil
}

// historyShow prints the full prompt and reply for one exchange.
func historyShow(ctx context.Context, store *history.Store, cfg *config.Config, args Args) error {
	id := args.Query
	if id == "" {
		return ErrMissingArgument("id", "ollamaflow history show <id>")
	}

	ex, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			err = fmt.Errorf("no exchange with id %s", id)
		}
		if args.JSON {
			NewJSONErrorResponse("history", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("history", exchangeToData(ex, true)).Print()
	}

	fmt.Printf("%s %s\n", LabelStyle.Render("ID:"), DimStyle.Render(ex.ID))
	fmt.Printf("%s %s\n", LabelStyle.Render("When:"), ValueStyle.Render(ex.CreatedAt.Format("2006-01-02 15:04:05")))
	fmt.Printf("%s %s (%s)\n", LabelStyle.Render("Model:"), ValueStyle.Render(ex.Model), ex.Kind)
	fmt.Printf("%s %d in / %d out, %.1fs\n", LabelStyle.Render("Tokens:"),
		ex.PromptTokens, ex.ReplyTokens, ex.Duration.Seconds())
	fmt.Println()
	fmt.Println(TitleStyle.Render("Prompt"))
	fmt.Println(ex.Prompt)
	fmt.Println()
	fmt.Println(TitleStyle.Render("Reply"))
	displayResponse(cfg, ex.Reply)
	return nil
}

// historySearch runs a substring search across prompts and replies.
func historySearch(ctx context.Context, store *history.Store, cfg *config.Config, args Args) error {
	term := args.Query
	if term == "" {
		return ErrMissingArgument("search term", `ollamaflow history search "goroutine"`)
	}

	entries, err := store.Search(ctx, term, args.Limit)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("history", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("history", exchangesToData(entries, false)).Print()
	}

	if len(entries) == 0 {
		fmt.Println(DimStyle.Render(fmt.Sprintf("No exchanges matching %q.", term)))
		return nil
	}

	printExchangeTable(entries, cfg.History.PreviewWidth)
	return nil
}

// historyStats prints aggregate statistics.
func historyStats(ctx context.Context, store *history.Store, args Args) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("history", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("history", map[string]interface{}{
			"count":         stats.Count,
			"prompt_tokens": stats.PromptTokens,
			"reply_tokens":  stats.ReplyTokens,
			"models":        stats.Models,
			"oldest":        stats.Oldest,
			"newest":        stats.Newest,
		}).Print()
	}

	fmt.Println(TitleStyle.Render("History"))
	fmt.Printf("%s %d\n", LabelStyle.Render("Exchanges:"), stats.Count)
	fmt.Printf("%s %d in / %d out\n", LabelStyle.Render("Tokens:"), stats.PromptTokens, stats.ReplyTokens)
	if stats.Count > 0 {
		fmt.Printf("%s %s to %s\n", LabelStyle.Render("Range:"),
			stats.Oldest.Format("2006-01-02"), stats.Newest.Format("2006-01-02"))
	}
	if len(stats.Models) > 0 {
		fmt.Println()
		fmt.Println(LabelStyle.Render("By model:"))
		for model, count := range stats.Models {
			fmt.Printf("  %-30s %d\n", model, count)
		}
	}
	return nil
}

// historyClear deletes all recorded exchanges.
func historyClear(ctx context.Context, store *history.Store, args Args) error {
	n, err := store.Clear(ctx)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("history", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("history", map[string]int64{"deleted": n}).Print()
	}

	fmt.Printf("%s deleted %d exchanges\n", SuccessStyle.Render("[OK]"), n)
	return nil
}

// =============================================================================
// FORMATTING
// =============================================================================

// printExchangeTable prints one line per exchange.
func printExchangeTable(entries []history.Exchange, previewWidth int) {
	for i := range entries {
		ex := &entries[i]
		preview := util.FirstLine(ex.Prompt, previewWidth)
		fmt.Printf("%s  %s  %-8s %s\n",
			DimStyle.Render(shortID(ex.ID)),
			DimStyle.Render(ex.CreatedAt.Format("Jan 02 15:04")),
			ex.Model,
			preview)
	}
}

// shortID returns the first 8 characters of an exchange id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func exchangeToData(ex *history.Exchange, includeReply bool) HistoryEntryData {
	data := HistoryEntryData{
		ID:           ex.ID,
		CreatedAt:    ex.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Model:        ex.Model,
		Kind:         ex.Kind,
		Prompt:       ex.Prompt,
		PromptTokens: ex.PromptTokens,
		ReplyTokens:  ex.ReplyTokens,
		DurationMs:   ex.Duration.Milliseconds(),
	}
	if includeReply {
		data.Reply = ex.Reply
	} else {
		data.Prompt = strings.TrimSpace(data.Prompt)
	}
	return data
}

func exchangesToData(entries []history.Exchange, includeReply bool) []HistoryEntryData {
	out := make([]HistoryEntryData, 0, len(entries))
	for i := range entries {
		out = append(out, exchangeToData(&entries[i], includeReply))
	}
	return out
}
