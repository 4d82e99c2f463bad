// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render converts chat messages into display HTML.
//
// User messages are HTML-escaped verbatim so user text can never
// inject active markup. Assistant messages are rendered as Markdown
// (tables, strikethrough, autolinks, highlighted code fences) and then
// sanitized. System messages are never rendered to the transcript.
//
// Rendering is pure and safe for concurrent use: the turn controller
// calls Assistant repeatedly with growing prefixes of the reply while
// streaming.
package render
