// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides pooled streaming readers for
// allocation-sensitive callers.
//
// PERFORMANCE OPTIMIZATIONS:
// - StreamReader pooling to reuse buffers across requests
// - Reused bufio.Reader buffer and strings.Builder in the hot path
package ollamaflow

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"
)

// streamReaderPool reuses StreamReader instances to avoid repeated
// allocations. Each StreamReader reuses its bufio.Reader buffer and
// strings.Builder across requests.
var streamReaderPool = sync.Pool{
	New: func() any {
		return &StreamReader{
			accumulator: strings.Builder{},
		}
	},
}

// NewPooledStreamReader creates or retrieves a StreamReader from the pool.
// The caller MUST call Release() when done to return it to the pool.
//
// Usage:
//
//	sr := ollamaflow.NewPooledStreamReader(resp.Body)
//	defer sr.Release()
//	err := sr.Process(ctx, callback)
func NewPooledStreamReader(r io.Reader) *StreamReader {
	sr := streamReaderPool.Get().(*StreamReader)

	if sr.reader == nil {
		sr.reader = bufio.NewReader(r)
	} else {
		sr.reader.Reset(r)
	}

	sr.accumulator.Reset()
	sr.chunkCount = 0
	sr.model = ""
	sr.firstToken = true
	sr.startTime = time.Now()

	return sr
}

// Release returns the StreamReader to the pool for reuse.
// Must be called after Process() completes.
func (s *StreamReader) Release() {
	streamReaderPool.Put(s)
}

// accumulatorPool reuses StreamAccumulator instances.
var accumulatorPool = sync.Pool{
	New: func() any {
		return &StreamAccumulator{
			content: strings.Builder{},
			Stats:   NewStreamStats(),
		}
	},
}

// NewPooledStreamAccumulator gets a StreamAccumulator from the pool.
func NewPooledStreamAccumulator() *StreamAccumulator {
	acc := accumulatorPool.Get().(*StreamAccumulator)
	acc.content.Reset()
	acc.toolCalls = nil
	acc.Stats = NewStreamStats()
	acc.Done = false
	acc.Error = nil
	return acc
}

// ReleaseAccumulator returns the accumulator to the pool.
func ReleaseAccumulator(acc *StreamAccumulator) {
	accumulatorPool.Put(acc)
}
