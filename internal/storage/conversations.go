// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-web/internal/model"
	"github.com/jeranaias/rigrun-web/internal/util"
)

// =============================================================================
// CONVERSATION META
// =============================================================================

// ConversationMeta contains metadata for listing conversations in the
// sidebar, ordered most-recently-modified first.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store handles conversation persistence as per-conversation JSON files.
type Store struct {
	// Dir is the directory holding <id>.json files
	Dir string

	// SystemPrompt seeds conversations created by LoadOrNew
	SystemPrompt string

	// TitleLength is the sidebar title length in runes
	TitleLength int
}

// NewStore creates a conversation store rooted at dir. The directory
// is created if missing.
func NewStore(dir, systemPrompt string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{
		Dir:          dir,
		SystemPrompt: systemPrompt,
		TitleLength:  model.DefaultTitleLength,
	}, nil
}

// filePath returns the file path for a conversation id.
func (s *Store) filePath(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by id.
// Returns ErrConversationNotFound if no record exists.
func (s *Store) Load(id string) (*model.Conversation, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}

	// Records written before the id field existed, or copied by hand,
	// are still addressable by filename.
	if conv.ID == "" {
		conv.ID = id
	}

	return &conv, nil
}

// LoadOrNew retrieves the persisted conversation for id, or returns a
// fresh conversation seeded with the store's system prompt. The fresh
// conversation is NOT persisted; it exists on disk only after the
// first Save.
func (s *Store) LoadOrNew(id string) *model.Conversation {
	conv, err := s.Load(id)
	if err != nil {
		return model.NewConversation(id, s.SystemPrompt)
	}
	return conv
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save durably writes the full ordered message list for the
// conversation, overwriting any prior record.
func (s *Store) Save(conv *model.Conversation) error {
	if conv.ID == "" {
		conv.ID = model.NewConversationID()
	}

	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	// RELIABILITY: Atomic write with fsync prevents partial-file states
	return util.AtomicWriteFile(s.filePath(conv.ID), data, 0644)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns metadata for all saved conversations, most recently
// modified first (by file modification time). Corrupted files are
// skipped.
func (s *Store) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	var metas []ConversationMeta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		conv, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		metas = append(metas, ConversationMeta{
			ID:           id,
			Title:        conv.Title(s.TitleLength),
			UpdatedAt:    info.ModTime(),
			MessageCount: conv.MessageCount(),
		})
	}

	// Sort by modification time (most recent first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
