// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollamaflow provides a typed HTTP client for the Ollama API.
package ollamaflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamTimeout for establishing streaming connections (default: 5s)
	StreamTimeout time.Duration

	// DefaultModel used when a request does not name one
	DefaultModel string

	// KeepAlive controls how long the model stays loaded after a request
	// when the request itself does not say (default: "5m")
	KeepAlive string

	// SkipModelCheck disables the pre-flight model existence check.
	// By default requests against an unknown model fail fast with
	// ErrModelNotFound using a cached /api/tags listing.
	SkipModelCheck bool

	// MaxRetries for transient connection failures (default: 3)
	MaxRetries int

	// RetryDelay between retries (default: 1s)
	RetryDelay time.Duration

	// Limiter optionally gates request admission. Nil means unlimited.
	Limiter *rate.Limiter

	// HTTPClient overrides the transport for non-streaming requests.
	// Its timeout is managed by the client.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       "http://127.0.0.1:11434",
		Timeout:       30 * time.Second,
		StreamTimeout: 5 * time.Second,
		KeepAlive:     "5m",
		MaxRetries:    3,
		RetryDelay:    1 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
// It provides methods for health checks, model management, completion,
// chat and embedding operations.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := ollamaflow.NewClient()
//	if err := client.CheckRunning(ctx); err != nil {
//	    log.Fatal("Ollama not available:", err)
//	}
//	resp, err := client.Chat(ctx, &ollamaflow.ChatRequest{
//	    Model:    "qwen2.5:7b",
//	    Messages: messages,
//	})
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// Cached model name list backing the pre-flight checks
	modelsMu sync.RWMutex
	models   []string
	cached   bool
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = 5 * time.Second
	}
	if config.KeepAlive == "" {
		config.KeepAlive = "5m"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 1 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = config.Timeout

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// Config returns the client configuration.
func (c *Client) Config() *ClientConfig {
	return c.config
}

// SetDefaultModel updates the default model.
func (c *Client) SetDefaultModel(model string) {
	c.config.DefaultModel = model
}

// DefaultModel returns the current default model.
func (c *Client) DefaultModel() string {
	return c.config.DefaultModel
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do sends a request, retrying transient connection failures up to
// MaxRetries with RetryDelay between attempts. HTTP-level errors are not
// retried; the caller maps status codes.
func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body []byte) (*http.Response, error) {
	if c.config.Limiter != nil {
		if err := c.config.Limiter.Wait(ctx); err != nil {
			return nil, &ClientError{Type: ErrTypeConnection, Message: "rate limiter rejected request", Cause: err}
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, ErrTimeout
				}
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			if errors.Is(err, context.Canceled) {
				return nil, ctx.Err()
			}
			lastErr = ErrNotRunning
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// doJSON marshals in (when non-nil), sends the request on the standard
// client, and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
	}

	resp, err := c.do(ctx, c.httpClient, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}

	if out == nil {
		drain(resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return nil
}

// stream sends a request and feeds the NDJSON response through a pooled
// StreamReader.
func (c *Client) stream(ctx context.Context, path string, in any, callback StreamCallback) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// Use a client without timeout for streaming (timeouts are handled
	// via context); the configured Timeout would cut long generations.
	streamClient := &http.Client{}

	resp, err := c.do(ctx, streamClient, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}

	reader := NewPooledStreamReader(resp.Body)
	defer reader.Release()
	return reader.Process(ctx, callback)
}

// drain discards the remainder of a response body so the connection can
// be reused.
func drain(r io.Reader) {
	io.Copy(io.Discard, r)
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()
	drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all available models from Ollama.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// ModelNames returns the names of the available models. The listing is
// cached after the first call; use RefreshModels to drop the cache.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	c.modelsMu.RLock()
	if c.cached {
		names := c.models
		c.modelsMu.RUnlock()
		return names, nil
	}
	c.modelsMu.RUnlock()

	return c.RefreshModels(ctx)
}

// RefreshModels refetches the model listing and replaces the cache.
func (c *Client) RefreshModels(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}

	c.modelsMu.Lock()
	c.models = names
	c.cached = true
	c.modelsMu.Unlock()

	return names, nil
}

// ShowModel retrieves information about a specific model.
func (c *Client) ShowModel(ctx context.Context, name string) (*ShowModelResponse, error) {
	var result ShowModelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/show", ShowModelRequest{Name: name}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ModelExists checks if a model is available locally.
func (c *Client) ModelExists(ctx context.Context, model string) bool {
	_, err := c.ShowModel(ctx, model)
	return err == nil
}

// resolveModel fills in the default model and runs the pre-flight
// existence check unless disabled.
func (c *Client) resolveModel(ctx context.Context, model string) (string, error) {
	if model == "" {
		model = c.config.DefaultModel
	}
	if model == "" {
		return "", &ClientError{Type: ErrTypeModelNotFound, Message: "no model specified and no default configured"}
	}

	if c.config.SkipModelCheck {
		return model, nil
	}

	names, err := c.ModelNames(ctx)
	if err != nil {
		return "", err
	}

	for _, name := range names {
		if name == model {
			return model, nil
		}
	}

	return "", &ClientError{
		Type:    ErrTypeModelNotFound,
		Message: fmt.Sprintf("model %q not found (available: %s)", model, strings.Join(names, ", ")),
	}
}

// =============================================================================
// GENERATE OPERATIONS
// =============================================================================

// Generate sends a completion request and returns the complete response
// (non-streaming).
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	r := *req

	model, err := c.resolveModel(ctx, r.Model)
	if err != nil {
		return nil, err
	}
	r.Model = model
	r.Stream = false
	if r.KeepAlive == "" {
		r.KeepAlive = c.config.KeepAlive
	}

	var result GenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate", &r, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateStream sends a streaming completion request and calls the
// callback for each chunk. The callback runs synchronously in the order
// chunks are received. Returns when streaming completes or fails.
func (c *Client) GenerateStream(ctx context.Context, req *GenerateRequest, callback StreamCallback) error {
	r := *req

	model, err := c.resolveModel(ctx, r.Model)
	if err != nil {
		return err
	}
	r.Model = model
	r.Stream = true
	if r.KeepAlive == "" {
		r.KeepAlive = c.config.KeepAlive
	}

	return c.stream(ctx, "/api/generate", &r, callback)
}

// GenerateStreamChan sends a streaming completion request and returns a
// channel of chunks. The channel is closed when streaming completes.
// Errors are delivered as chunks with the Error field set.
func (c *Client) GenerateStreamChan(ctx context.Context, req *GenerateRequest) <-chan StreamChunk {
	return c.streamChan(ctx, func(cb StreamCallback) error {
		return c.GenerateStream(ctx, req, cb)
	})
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a chat request and returns the complete response
// (non-streaming).
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	r := *req

	model, err := c.resolveModel(ctx, r.Model)
	if err != nil {
		return nil, err
	}
	r.Model = model
	r.Stream = false
	if r.KeepAlive == "" {
		r.KeepAlive = c.config.KeepAlive
	}

	var result ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", &r, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ChatStream sends a streaming chat request and calls the callback for
// each chunk, including tool calls.
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest, callback StreamCallback) error {
	r := *req

	model, err := c.resolveModel(ctx, r.Model)
	if err != nil {
		return err
	}
	r.Model = model
	r.Stream = true
	if r.KeepAlive == "" {
		r.KeepAlive = c.config.KeepAlive
	}

	return c.stream(ctx, "/api/chat", &r, callback)
}

// ChatStreamChan sends a streaming chat request and returns a channel of
// chunks. The channel is closed when streaming completes. Errors are
// delivered as chunks with the Error field set.
func (c *Client) ChatStreamChan(ctx context.Context, req *ChatRequest) <-chan StreamChunk {
	return c.streamChan(ctx, func(cb StreamCallback) error {
		return c.ChatStream(ctx, req, cb)
	})
}

// streamChan adapts a callback-style stream into a channel of chunks.
func (c *Client) streamChan(ctx context.Context, run func(StreamCallback) error) <-chan StreamChunk {
	ch := make(chan StreamChunk)

	go func() {
		defer close(ch)

		err := run(func(chunk StreamChunk) {
			select {
			case ch <- chunk:
			case <-ctx.Done():
			}
		})

		if err != nil {
			select {
			case ch <- StreamChunk{Error: err, Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch
}

// =============================================================================
// EMBEDDINGS
// =============================================================================

// Embed creates embedding vectors for the given inputs.
func (c *Client) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	r := *req

	model, err := c.resolveModel(ctx, r.Model)
	if err != nil {
		return nil, err
	}
	r.Model = model
	if r.KeepAlive == "" {
		r.KeepAlive = c.config.KeepAlive
	}

	var result EmbedResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/embed", &r, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EmbedTexts is a convenience wrapper creating embeddings for one or
// more texts with default settings.
func (c *Client) EmbedTexts(ctx context.Context, model string, texts ...string) ([][]float64, error) {
	resp, err := c.Embed(ctx, &EmbedRequest{
		Model: model,
		Input: EmbedInput(texts),
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
