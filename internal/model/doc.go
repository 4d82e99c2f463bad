// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Role: message sender (user, assistant, system)
//   - Message: a single immutable chat message
//   - Conversation: an append-only ordered message list with an opaque id
//
// A conversation starts with a system message establishing assistant
// behavior and is mutated by exactly two operations: appending a user
// message and appending an assistant message.
package model
