// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn orchestrates one conversation turn: append the user
// prompt, stream the assistant reply from the completion client, emit
// re-rendered snapshots to the caller, and finalize.
//
// The turn protocol is a small state machine:
//
//	Idle -> UserAppended -> Streaming -> Finalized
//
// AppendUser performs the Idle -> UserAppended transition (persisting
// the user message immediately); Stream performs the rest. The only
// suspension point is awaiting the next token from the completion
// client.
//
// Guarantees:
//   - Snapshot events are emitted strictly in token arrival order.
//   - Every snapshot is the WHOLE accumulated reply re-rendered, not a
//     delta: Markdown structures (an unterminated table or emphasis
//     marker) only render correctly once enough of the document has
//     arrived, so each snapshot self-corrects the previous one.
//   - The terminal done event is emitted exactly once, strictly after
//     the last snapshot, whether the stream ended normally, the
//     provider failed mid-stream, or the caller went away. Whatever
//     text was accumulated is persisted, never discarded.
package turn
