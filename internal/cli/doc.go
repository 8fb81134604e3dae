// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ollamaflow command-line interface.
//
// Commands:
//   - ask:     one-shot prompt with streaming output
//   - chat:    interactive REPL with conversation memory
//   - models:  list and inspect installed models
//   - embed:   compute embeddings for input texts
//   - status:  server and configuration overview
//   - history: browse the local prompt/reply log
//   - config:  show and edit configuration
//
// All commands support --json for machine-readable output and respect
// NO_COLOR and TTY detection for terminal rendering.
package cli
