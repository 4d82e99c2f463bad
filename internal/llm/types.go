// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// MESSAGE AND CONFIG TYPES
// =============================================================================

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`    // "user", "assistant", or "system"
	Content string `json:"content"` // The message content
}

// ProviderConfig identifies the completion endpoint for one request.
// Zero fields are invalid; callers merge defaults before use.
type ProviderConfig struct {
	// Model is the provider-side model identifier
	Model string
	// APIBase is the OpenAI-compatible base URL (e.g. http://localhost:1234/v1)
	APIBase string
	// APIKey is sent as a bearer token; local servers accept any value
	APIKey string
}

// Endpoint returns the chat completions URL for this provider.
func (p ProviderConfig) Endpoint() string {
	return strings.TrimRight(p.APIBase, "/") + "/chat/completions"
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// StreamChunk represents a single chunk from the streaming response.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// IsDone returns true if the stream has finished.
func (c *StreamChunk) IsDone() bool {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason != ""
	}
	return false
}

// StreamCallback is the function type called for each received chunk.
type StreamCallback func(chunk StreamChunk)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotConfigured indicates the provider API base URL is not set.
var ErrNotConfigured = errors.New("provider API base not configured")

// ProviderError represents an error response from the provider API.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, e.Message)
}

// apiErrorResponse represents an error body from the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
