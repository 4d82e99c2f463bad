// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for rigrun-web.
//
// Each conversation is one pretty-printed JSON file named <id>.json
// under the store directory, written atomically (temp file + fsync +
// rename) so a reader never observes a partial file.
//
// # Key Types
//
//   - Store: load/save/list operations over the chats directory
//   - ConversationMeta: lightweight metadata for the sidebar listing
//
// # Usage
//
//	store := storage.NewStore(dir, systemPrompt)
//	conv := store.LoadOrNew(id)   // fresh conversations are seeded, not persisted
//	err := store.Save(conv)
//	metas, err := store.List()    // most recently modified first
//
// Concurrency: saves are atomic with respect to a single writer.
// Two concurrent turns on the same conversation id may race; the
// system does not defend against that (known gap).
package storage
