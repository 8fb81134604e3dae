// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - List and inspect installed models.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jeranaias/ollamaflow"
	"github.com/jeranaias/ollamaflow/internal/config"
)

// HandleModelsCommand handles the "models" command.
//
//	ollamaflow models            List installed models
//	ollamaflow models show NAME  Show details for one model
func HandleModelsCommand(args Args) error {
	cfg := config.Global()
	client := newClient(cfg, args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if args.Subcommand == "show" {
		return showModel(ctx, client, args)
	}
	return listModels(ctx, client, cfg, args)
}

// listModels prints the installed models as a table, newest first.
func listModels(ctx context.Context, client *ollamaflow.Client, cfg *config.Config, args Args) error {
	models, err := client.ListModels(ctx)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("models", err).Print()
		}
		return err
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ModifiedAt.After(models[j].ModifiedAt)
	})

	if args.JSON {
		data := make([]ModelData, 0, len(models))
		for i := range models {
			m := &models[i]
			data = append(data, ModelData{
				Name:         m.Name,
				Size:         m.FormatSize(),
				SizeBytes:    m.Size,
				Family:       m.Details.Family,
				Parameters:   m.Details.ParameterSize,
				Quantization: m.Details.QuantizationLevel,
				ModifiedAt:   m.ModifiedAt.Format("2006-01-02 15:04"),
			})
		}
		return NewJSONResponse("models", data).Print()
	}

	if len(models) == 0 {
		fmt.Println(DimStyle.Render("No models installed. Pull one with: ollama pull llama3.2"))
		return nil
	}

	fmt.Printf("%-40s %-10s %-12s %s\n", "NAME", "SIZE", "PARAMS", "MODIFIED")
	for i := range models {
		m := &models[i]
		name := m.Name
		if name == cfg.DefaultModel {
			name = name + " *"
		}
		fmt.Printf("%-40s %-10s %-12s %s\n",
			name, m.FormatSize(), m.Details.ParameterSize,
			m.ModifiedAt.Format("2006-01-02 15:04"))
	}

	if !args.Quiet && cfg.DefaultModel != "" {
		fmt.Println(DimStyle.Render("* default model"))
	}
	return nil
}

// showModel prints details for a single model.
func showModel(ctx context.Context, client *ollamaflow.Client, args Args) error {
	name := args.Query
	if name == "" {
		return ErrMissingArgument("model name", "ollamaflow models show llama3.2")
	}

	resp, err := client.ShowModel(ctx, name)
	if err != nil {
		if args.JSON {
			NewJSONErrorResponse("models", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("models", ModelData{
			Name:         name,
			Family:       resp.Details.Family,
			Parameters:   resp.Details.ParameterSize,
			Quantization: resp.Details.QuantizationLevel,
		}).Print()
	}

	fmt.Println(TitleStyle.Render(name))
	fmt.Printf("%s %s\n", LabelStyle.Render("Family:"), ValueStyle.Render(resp.Details.Family))
	fmt.Printf("%s %s\n", LabelStyle.Render("Parameters:"), ValueStyle.Render(resp.Details.ParameterSize))
	fmt.Printf("%s %s\n", LabelStyle.Render("Quantization:"), ValueStyle.Render(resp.Details.QuantizationLevel))
	fmt.Printf("%s %s\n", LabelStyle.Render("Format:"), ValueStyle.Render(resp.Details.Format))

	if resp.Parameters != "" {
		fmt.Println()
		fmt.Println(LabelStyle.Render("Parameters:"))
		for _, line := range strings.Split(strings.TrimSpace(resp.Parameters), "\n") {
			fmt.Println("  " + DimStyle.Render(line))
		}
	}

	if resp.License != "" {
		first, _, _ := strings.Cut(strings.TrimSpace(resp.License), "\n")
		fmt.Printf("%s %s\n", LabelStyle.Render("License:"), DimStyle.Render(first))
	}
	return nil
}
