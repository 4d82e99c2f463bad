// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// HTTP CLIENTS
// =============================================================================

// MaxErrorBodySize limits how much of an error response body is read.
const MaxErrorBodySize = 64 * 1024

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Streaming requests carry no client timeout; lifetime is controlled
// via the request context.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// =============================================================================
// CLIENT
// =============================================================================

// Client performs streaming chat completion requests against any
// OpenAI-compatible endpoint. The zero value is ready to use.
//
// The Client is safe for concurrent use; provider settings travel with
// each call.
type Client struct {
	// httpClient overrides the shared streaming client (tests).
	httpClient *http.Client
}

// NewClient creates a new completion client.
func NewClient() *Client {
	return &Client{}
}

func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return sharedStreamingClient
}

// ChatStream performs a streaming chat completion request against the
// provider identified by cfg, passing the full ordered message list.
// The callback is called for each chunk received, in arrival order.
// Returns when the stream closes, [DONE] arrives, the provider reports
// a finish reason, or the context is cancelled.
func (c *Client) ChatStream(ctx context.Context, cfg ProviderConfig, messages []ChatMessage, callback StreamCallback) error {
	if cfg.APIBase == "" {
		return ErrNotConfigured
	}

	reqBody := ChatRequest{
		Model:    cfg.Model,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		return handleErrorResponse(resp.StatusCode, body)
	}

	return processStream(ctx, resp.Body, callback)
}

// processStream reads and processes the SSE stream.
func processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		// Check for [DONE] signal
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}

		// Parse the chunk
		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}

		callback(chunk)

		// Check if finished
		if chunk.IsDone() {
			return nil
		}
	}
}

// handleErrorResponse maps a non-200 response to a ProviderError,
// extracting the structured error body when the provider sends one.
func handleErrorResponse(status int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &ProviderError{
			Status:  status,
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
		}
	}
	return &ProviderError{
		Status:  status,
		Message: http.StatusText(status),
	}
}
