// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Inspect and edit the TOML configuration file.
//
// Subcommands:
//   show (default)  Print all settings with current values
//   get KEY         Print one value (dot notation, e.g. server.url)
//   set KEY VALUE   Change a value and save the file
//   path            Print the config file location
package cli

import (
	"fmt"

	"github.com/jeranaias/ollamaflow/internal/config"
)

// HandleConfigCommand handles the "config" command.
func HandleConfigCommand(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(args)
	case "get":
		return configGet(args)
	case "set":
		return configSet(args)
	case "path":
		return configPath(args)
	default:
		return &UsageError{
			Field:   "subcommand",
			Reason:  fmt.Sprintf("unknown config subcommand %q", args.Subcommand),
			Example: "ollamaflow config [show|get|set|path]",
		}
	}
}

// configShow prints every known key with its current value.
func configShow(args Args) error {
	cfg := config.Global()

	if args.JSON {
		values := make(map[string]interface{})
		for _, key := range config.GetAllKeys() {
			if v, err := cfg.Get(key); err == nil {
				values[key] = v
			}
		}
		return NewJSONResponse("config", values).Print()
	}

	path, _ := config.ConfigPath()
	fmt.Println(TitleStyle.Render("Configuration"))
	fmt.Printf("%s %s\n\n", LabelStyle.Render("File:"), DimStyle.Render(path))

	for _, key := range config.GetAllKeys() {
		v, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Printf("  %-28s %v\n", key, v)
	}
	return nil
}

// configGet prints a single value by dot-notation key.
func configGet(args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "ollamaflow config get server.url")
	}

	cfg := config.Global()
	v, err := cfg.Get(args.ConfigKey)
	if err != nil {
		err = &UsageError{
			Field:   "key",
			Reason:  err.Error(),
			Example: "ollamaflow config get " + config.GetAllKeys()[0],
		}
		if args.JSON {
			NewJSONErrorResponse("config", err).Print()
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]interface{}{args.ConfigKey: v}).Print()
	}
	fmt.Printf("%v\n", v)
	return nil
}

// configSet changes one value, validates the result, and saves.
func configSet(args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return ErrMissingArgument("key and value", "ollamaflow config set default_model llama3.2")
	}

	cfg := config.Global()

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		err = &UsageError{Field: args.ConfigKey, Reason: err.Error()}
		if args.JSON {
			NewJSONErrorResponse("config", err).Print()
		}
		return err
	}

	// Reject edits that would leave the file unloadable
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	if err := config.Save(cfg); err != nil {
		return &ConfigError{Err: err}
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]string{args.ConfigKey: args.ConfigVal}).Print()
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), args.ConfigKey, args.ConfigVal)
	return nil
}

// configPath prints the config file location.
func configPath(args Args) error {
	path, err := config.ConfigPath()
	if err != nil {
		return &ConfigError{Err: err}
	}
	if args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}
