// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP front-end for the web chat.
//
// Endpoints:
//   - GET  /         - Chat page with the current conversation transcript
//   - POST /input    - Append a user message, return the echo + stream placeholder
//   - GET  /stream   - SSE stream of rendered assistant snapshots
//   - GET  /sidebar  - Conversation list fragment (action buttons + chat links)
//   - GET  /load     - Switch the session to another conversation
//   - GET  /new      - Start a fresh conversation
//   - GET  /settings - Provider settings form
//   - POST /settings - Save provider settings into the session
//
// All fragment endpoints return HTML swapped into the page by htmx; /stream
// speaks Server-Sent Events and closes with a terminal "done" event.
package server
