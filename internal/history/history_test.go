// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history stores a local log of prompts and replies in SQLite.
package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), maxEntries)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	id, err := store.Record(ctx, &Exchange{
		Model:        "llama3:8b",
		Kind:         KindAsk,
		Prompt:       "Why is the sky blue?",
		Reply:        "Rayleigh scattering.",
		PromptTokens: 12,
		ReplyTokens:  8,
		Duration:     450 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ex, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", ex.Model)
	assert.Equal(t, "Why is the sky blue?", ex.Prompt)
	assert.Equal(t, "Rayleigh scattering.", ex.Reply)
	assert.Equal(t, 12, ex.PromptTokens)
	assert.Equal(t, 450*time.Millisecond, ex.Duration)
	assert.False(t, ex.CreatedAt.IsZero())
}

func TestRecord_RequiresModel(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.Record(context.Background(), &Exchange{Prompt: "p", Reply: "r"})
	require.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.Get(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecent_NewestFirst(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := store.Record(ctx, &Exchange{
			Model:     "m",
			Prompt:    "prompt",
			Reply:     "reply",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	assert.True(t, got[1].CreatedAt.After(got[2].CreatedAt))
}

func TestRecord_PrunesBeyondCap(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		_, err := store.Record(ctx, &Exchange{
			Model:     "m",
			Prompt:    "prompt",
			Reply:     "reply",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)

	// The survivors are the newest three
	got, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(5*time.Minute).UnixMilli(), got[0].CreatedAt.UnixMilli())
}

func TestSearch(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Record(ctx, &Exchange{Model: "m", Prompt: "explain goroutines", Reply: "they are cheap"})
	require.NoError(t, err)
	_, err = store.Record(ctx, &Exchange{Model: "m", Prompt: "what is rust", Reply: "a systems language"})
	require.NoError(t, err)

	got, err := store.Search(ctx, "goroutine", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "explain goroutines", got[0].Prompt)

	// Reply text is searched too
	got, err = store.Search(ctx, "systems language", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestStats(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Record(ctx, &Exchange{Model: "llama3:8b", Prompt: "p", Reply: "r", PromptTokens: 10, ReplyTokens: 20})
	require.NoError(t, err)
	_, err = store.Record(ctx, &Exchange{Model: "llama3:8b", Prompt: "p", Reply: "r", PromptTokens: 5, ReplyTokens: 5})
	require.NoError(t, err)
	_, err = store.Record(ctx, &Exchange{Model: "qwen2.5:7b", Prompt: "p", Reply: "r"})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, int64(15), stats.PromptTokens)
	assert.Equal(t, int64(25), stats.ReplyTokens)
	assert.Equal(t, 2, stats.Models["llama3:8b"])
	assert.Equal(t, 1, stats.Models["qwen2.5:7b"])
	assert.False(t, stats.Newest.Before(stats.Oldest))
}

func TestClear(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.Record(ctx, &Exchange{Model: "m", Prompt: "p", Reply: "r"})
		require.NoError(t, err)
	}

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
}
