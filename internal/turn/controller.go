// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"log"
	"strings"

	"github.com/jeranaias/rigrun-web/internal/llm"
	"github.com/jeranaias/rigrun-web/internal/model"
	"github.com/jeranaias/rigrun-web/internal/render"
	"github.com/jeranaias/rigrun-web/internal/storage"
)

// =============================================================================
// TURN STATES
// =============================================================================

// State identifies where a turn is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateUserAppended
	StateStreaming
	StateFinalized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUserAppended:
		return "user_appended"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind distinguishes content updates from turn completion.
// The two are never conflated into one event.
type EventKind int

const (
	// EventSnapshot carries the latest full rendered reply.
	EventSnapshot EventKind = iota
	// EventDone signals turn completion; it carries no payload and is
	// always the last event of a turn.
	EventDone
)

// Event is one update emitted to the caller during a streaming turn.
type Event struct {
	Kind EventKind
	HTML string
}

// EmitFunc receives events in order. It is called from the goroutine
// running Stream; implementations forward to the transport.
type EmitFunc func(Event)

// =============================================================================
// STREAMER INTERFACE
// =============================================================================

// Streamer is the completion-client capability the controller needs:
// start a fresh token stream for a message list. *llm.Client satisfies
// it; tests supply fakes.
type Streamer interface {
	ChatStream(ctx context.Context, cfg llm.ProviderConfig, messages []llm.ChatMessage, callback llm.StreamCallback) error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs conversation turns against a conversation store, a
// message renderer, and a completion client.
type Controller struct {
	store    *storage.Store
	renderer *render.Renderer
	streamer Streamer
}

// NewController creates a turn controller.
func NewController(store *storage.Store, renderer *render.Renderer, streamer Streamer) *Controller {
	return &Controller{
		store:    store,
		renderer: renderer,
		streamer: streamer,
	}
}

// AppendUser appends the trimmed prompt as a user message and persists
// the conversation. An empty or whitespace-only prompt is a no-op, not
// an error: appended is false and callers must not open a stream.
func (c *Controller) AppendUser(conv *model.Conversation, prompt string) (appended bool, err error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return false, nil
	}

	conv.AppendUser(prompt)
	if err := c.store.Save(conv); err != nil {
		return false, err
	}
	return true, nil
}

// Stream runs the streaming phase of a turn: it pulls tokens for the
// conversation's full message history, emits a re-rendered snapshot
// per non-empty token, then finalizes.
//
// Finalization happens on every termination path - normal closure,
// upstream failure, or context cancellation: the accumulated text
// (possibly empty) is appended as the assistant message, persisted
// best-effort, and the done event is emitted exactly once, last.
// The returned error is the upstream failure, if any, for logging;
// the turn itself has still finalized.
func (c *Controller) Stream(ctx context.Context, conv *model.Conversation, cfg llm.ProviderConfig, emit EmitFunc) error {
	history := historyOf(conv)

	// PERFORMANCE: strings.Builder avoids quadratic allocations
	var accumulated strings.Builder

	log.Printf("TURN_STATE | conv=%s state=%s", conv.ID, StateStreaming)

	streamErr := c.streamer.ChatStream(ctx, cfg, history, func(chunk llm.StreamChunk) {
		token := chunk.GetContent()
		if token == "" {
			// Providers may emit empty deltas; drop without an update.
			return
		}
		accumulated.WriteString(token)
		emit(Event{
			Kind: EventSnapshot,
			HTML: c.renderer.Assistant(accumulated.String()),
		})
	})

	if streamErr != nil {
		log.Printf("TURN_STREAM_ERROR | conv=%s chars=%d error=%v", conv.ID, accumulated.Len(), streamErr)
	}

	// Finalize with whatever was accumulated - a broken upstream must
	// not lose the partial answer or leave the turn non-terminal.
	conv.AppendAssistant(accumulated.String())
	if err := c.store.Save(conv); err != nil {
		// Best-effort: the stream already reached the caller.
		log.Printf("TURN_SAVE_FAILED | conv=%s error=%v", conv.ID, err)
	}

	emit(Event{Kind: EventDone})
	log.Printf("TURN_STATE | conv=%s state=%s", conv.ID, StateFinalized)

	return streamErr
}

// historyOf converts the conversation's ordered message list (every
// role included, system first) into the completion client's format.
func historyOf(conv *model.Conversation) []llm.ChatMessage {
	history := make([]llm.ChatMessage, len(conv.Messages))
	for i, msg := range conv.Messages {
		history[i] = llm.ChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		}
	}
	return history
}
