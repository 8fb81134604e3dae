// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for ollamaflow.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdAsk Command = iota
	CmdChat
	CmdModels
	CmdEmbed
	CmdStatus
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	Model   string
	JSON    bool // Output in JSON format
	NoCheck bool // Skip the model pre-flight check

	// Command-specific
	Query      string
	File       string
	System     string
	Schema     string // Path to a JSON Schema file for structured output
	ConfigKey  string
	ConfigVal  string
	Subcommand string
	Limit      int

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `ollamaflow - typed CLI for local Ollama models

Ollamaflow talks to a local Ollama server and keeps everything on your
machine: streaming completions, chat with memory, embeddings, and a
local history of your prompts.

Usage:
  ollamaflow ask "question"     Ask a single question (streams the reply)
  ollamaflow chat               Interactive chat with conversation memory
  ollamaflow models [show NAME] List installed models or show details
  ollamaflow embed "text" ...   Compute embeddings for one or more texts
  ollamaflow status, s          Show server and configuration status
  ollamaflow history [subcommand] Browse the local prompt/reply log
  ollamaflow config [show|get|set|path] Configuration
  ollamaflow version            Show version information

Ask Options:
  -f, --file PATH       Include a file with the question
  -m, --model NAME      Model to use (overrides config default)
  --system TEXT         System prompt for this question
  --schema PATH         Constrain the reply to a JSON Schema file
  --json                Emit the full response as JSON (disables streaming)

Chat Options:
  -m, --model NAME      Model to use
  --system TEXT         System prompt for the conversation

  Slash commands inside chat:
    /help               Show commands
    /clear              Clear conversation memory
    /model [name]       Show or switch model
    /system [text]      Show or set the system prompt
    /status             Show session statistics
    /history            Show recent exchanges from the local log
    /quit               Exit

Embed Options:
  -m, --model NAME      Embedding model (e.g. nomic-embed-text)
  --json                Print the raw vectors as JSON

History Commands:
  ollamaflow history list         List recent exchanges (default)
    --limit N                     Show last N entries (default: 20)
  ollamaflow history show <id>    Show a full exchange
  ollamaflow history search TEXT  Search prompts and replies
  ollamaflow history stats        Show aggregate statistics
  ollamaflow history clear        Delete all stored exchanges

Config Commands:
  ollamaflow config show          Show current configuration
  ollamaflow config get KEY       Get a value (e.g. server.url)
  ollamaflow config set KEY VALUE Set and save a value
  ollamaflow config path          Print the config file path

Global Flags:
  -q, --quiet     Minimal output
  -v, --verbose   Debug output
  --model NAME    Override default model
  --json          Output in JSON format
  --no-check      Skip the model pre-flight check against /api/tags

Environment:
  OLLAMAFLOW_URL / OLLAMA_HOST    Server URL (default http://127.0.0.1:11434)
  OLLAMAFLOW_MODEL                Default model
  NO_COLOR                        Disable colored output

Examples:
  ollamaflow ask "What is a goroutine?"
  ollamaflow ask "Review this:" --file main.go
  cat error.log | ollamaflow ask "Explain this error"
  ollamaflow ask "Describe Canada" --schema country.json
  ollamaflow chat --model qwen2.5:7b
  ollamaflow embed "the quick brown fox" -m nomic-embed-text
  ollamaflow models
  ollamaflow history search "goroutine"
  ollamaflow config set default_model llama3:8b

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("ollamaflow version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given arguments. Split out from Parse for testing.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	// No command defaults to help
	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat":
		parseChatArgs(&parsedArgs, remaining)
		return CmdChat, parsedArgs

	case "models", "model", "list", "ls":
		parseModelsArgs(&parsedArgs, remaining)
		return CmdModels, parsedArgs

	case "embed", "embeddings":
		parseEmbedArgs(&parsedArgs, remaining)
		return CmdEmbed, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "history", "hist":
		parseHistoryArgs(&parsedArgs, remaining)
		return CmdHistory, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "-v", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command - treat the whole line as an ask prompt
		parseAskArgs(&parsedArgs, append([]string{cmd}, remaining...))
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--no-check":
			parsedArgs.NoCheck = true
		case "--model":
			if i+1 < len(args) {
				i++
				parsedArgs.Model = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--model=") {
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]

		switch arg {
		case "-f", "--file":
			if i+1 < len(remaining) {
				i++
				args.File = remaining[i]
			}
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		case "--system":
			if i+1 < len(remaining) {
				i++
				args.System = remaining[i]
			}
		case "--schema":
			if i+1 < len(remaining) {
				i++
				args.Schema = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--file="):
				args.File = strings.TrimPrefix(arg, "--file=")
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--system="):
				args.System = strings.TrimPrefix(arg, "--system=")
			case strings.HasPrefix(arg, "--schema="):
				args.Schema = strings.TrimPrefix(arg, "--schema=")
			case !strings.HasPrefix(arg, "-"):
				query = append(query, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(query, " ")
}

// parseChatArgs parses chat command specific arguments.
func parseChatArgs(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		case "--system":
			if i+1 < len(remaining) {
				i++
				args.System = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--system="):
				args.System = strings.TrimPrefix(arg, "--system=")
			}
		}
	}
}

// parseModelsArgs parses models command specific arguments.
func parseModelsArgs(args *Args, remaining []string) {
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		args.Subcommand = remaining[0]
		if args.Subcommand == "show" && len(remaining) > 1 {
			args.Query = remaining[1]
		}
	}
}

// parseEmbedArgs parses embed command specific arguments.
func parseEmbedArgs(args *Args, remaining []string) {
	var texts []string

	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-m", "--model":
			if i+1 < len(remaining) {
				i++
				args.Model = remaining[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case !strings.HasPrefix(arg, "-"):
				texts = append(texts, arg)
			}
		}
	}

	args.Raw = texts
}

// parseHistoryArgs parses history command specific arguments.
func parseHistoryArgs(args *Args, remaining []string) {
	args.Limit = 20
	args.Subcommand = "list"

	var positional []string
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "--limit", "-n":
			if i+1 < len(remaining) {
				i++
				if n, err := strconv.Atoi(remaining[i]); err == nil && n > 0 {
					args.Limit = n
				}
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--limit="):
				if n, err := strconv.Atoi(strings.TrimPrefix(arg, "--limit=")); err == nil && n > 0 {
					args.Limit = n
				}
			case !strings.HasPrefix(arg, "-"):
				positional = append(positional, arg)
			}
		}
	}

	if len(positional) > 0 {
		args.Subcommand = positional[0]
		if len(positional) > 1 {
			args.Query = strings.Join(positional[1:], " ")
		}
	}
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = remaining[0]
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = remaining[2]
		}
	}
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// Run executes the parsed command. Errors are displayed and mapped to
// exit codes here so main stays a thin shell.
func Run(cmd Command, args Args) {
	var err error

	switch cmd {
	case CmdAsk:
		err = HandleAskCommand(args)
	case CmdChat:
		err = HandleChatCommand(args)
	case CmdModels:
		err = HandleModelsCommand(args)
	case CmdEmbed:
		err = HandleEmbedCommand(args)
	case CmdStatus:
		err = HandleStatusCommand(args)
	case CmdHistory:
		err = HandleHistoryCommand(args)
	case CmdConfig:
		err = HandleConfigCommand(args)
	case CmdVersion:
		HandleVersion(args)
	case CmdHelp:
		PrintUsage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args) {
	if args.JSON {
		resp := NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		})
		resp.Print()
		return
	}
	PrintVersion()
}
