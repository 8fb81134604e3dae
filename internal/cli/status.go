// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Server and configuration health overview.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/ollamaflow/internal/config"
	"github.com/jeranaias/ollamaflow/internal/history"
)

// HandleStatusCommand handles the "status" command. It reports server
// reachability, installed models, active config, and history state in
// one place so "is my setup working" is a single command.
func HandleStatusCommand(args Args) error {
	cfg := config.Global()
	client := newClient(cfg, args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	data := StatusData{
		Server: StatusServerInfo{URL: cfg.Server.URL},
		Config: StatusConfigInfo{
			DefaultModel:   cfg.DefaultModel,
			KeepAlive:      cfg.Server.KeepAlive,
			SkipModelCheck: cfg.Server.SkipModelCheck,
		},
		History: StatusHistoryInfo{Enabled: cfg.History.Enabled},
	}

	if path, err := config.ConfigPath(); err == nil {
		data.Config.Path = path
	}

	if err := client.CheckRunning(ctx); err == nil {
		data.Server.Running = true
		if names, err := client.ModelNames(ctx); err == nil {
			data.Server.Models = len(names)
			data.Server.ModelSet = names
		}
	}

	if cfg.History.Enabled {
		if path, err := cfg.HistoryPath(); err == nil {
			data.History.Path = path
			if stats := historyCount(path, cfg.History.MaxEntries); stats >= 0 {
				data.History.Count = stats
			}
		}
	}

	if args.JSON {
		return NewJSONResponse("status", data).Print()
	}

	fmt.Println(TitleStyle.Render("ollamaflow status"))
	fmt.Println()

	fmt.Printf("%s %s\n", LabelStyle.Render("Server:"), ValueStyle.Render(data.Server.URL))
	if data.Server.Running {
		fmt.Printf("%s %s\n", LabelStyle.Render("Status:"), RenderStatus("ok")+" running")
		fmt.Printf("%s %d installed\n", LabelStyle.Render("Models:"), data.Server.Models)
	} else {
		fmt.Printf("%s %s\n", LabelStyle.Render("Status:"), ErrorStyle.Render("not running"))
		fmt.Println(DimStyle.Render("  Start it with: ollama serve"))
	}

	fmt.Println()
	fmt.Printf("%s %s\n", LabelStyle.Render("Config:"), orUnset(data.Config.Path))
	fmt.Printf("%s %s\n", LabelStyle.Render("Default model:"), orUnset(data.Config.DefaultModel))
	fmt.Printf("%s %s\n", LabelStyle.Render("Keep alive:"), ValueStyle.Render(data.Config.KeepAlive))

	fmt.Println()
	if data.History.Enabled {
		fmt.Printf("%s %d exchanges\n", LabelStyle.Render("History:"), data.History.Count)
		fmt.Printf("%s %s\n", LabelStyle.Render("History path:"), DimStyle.Render(data.History.Path))
	} else {
		fmt.Printf("%s %s\n", LabelStyle.Render("History:"), DimStyle.Render("disabled"))
	}
	return nil
}

// orUnset renders a value, or a dim placeholder when it is empty.
func orUnset(s string) string {
	if s == "" {
		return DimStyle.Render("(not set)")
	}
	return ValueStyle.Render(s)
}

// historyCount opens the store read-style and returns the exchange
// count, or -1 if the store cannot be opened.
func historyCount(path string, maxEntries int) int {
	store, err := history.Open(path, maxEntries)
	if err != nil {
		return -1
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := store.Stats(ctx)
	if err != nil {
		return -1
	}
	return stats.Count
}
