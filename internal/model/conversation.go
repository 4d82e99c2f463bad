// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-web/internal/util"
)

// DefaultTitleLength is the number of runes shown for a conversation
// title in the sidebar (the leading substring of the first user message).
const DefaultTitleLength = 40

// UntitledChat is the sidebar label for a conversation with no user
// message yet.
const UntitledChat = "Untitled chat"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an append-only ordered list of messages addressed by
// an opaque id. The first message, if present, is a system message
// establishing assistant behavior.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// NewConversationID creates a fresh opaque conversation id.
func NewConversationID() string {
	return "conv-" + uuid.NewString()
}

// NewConversation creates a conversation seeded with a system message.
// If id is empty a fresh id is generated.
func NewConversation(id, systemPrompt string) *Conversation {
	if id == "" {
		id = NewConversationID()
	}
	now := time.Now()
	return &Conversation{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{NewSystemMessage(systemPrompt)},
	}
}

// =============================================================================
// CONVERSATION METHODS
// =============================================================================

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// AppendUser appends a user message with the given content.
func (c *Conversation) AppendUser(content string) {
	c.Append(NewUserMessage(content))
}

// AppendAssistant appends an assistant message with the given content.
func (c *Conversation) AppendAssistant(content string) {
	c.Append(NewAssistantMessage(content))
}

// Last returns the most recent message, or a zero Message if empty.
func (c *Conversation) Last() Message {
	if len(c.Messages) == 0 {
		return Message{}
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages in the conversation.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Title returns the sidebar title: the leading runes of the first user
// message collapsed to a single line, or UntitledChat if no user
// message exists yet.
func (c *Conversation) Title(maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultTitleLength
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return util.TruncateRunes(util.CollapseLine(msg.Content), maxRunes)
		}
	}
	return UntitledChat
}
