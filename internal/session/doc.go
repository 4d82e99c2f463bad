// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks per-browser state: the active conversation id
// and the model-provider settings, carried in a signed session cookie.
//
// A session is created on first contact. Provider settings default to
// the server configuration when unset and are never validated at set
// time; a bad endpoint only surfaces when the completion client is
// invoked. Provider settings live for the session only and are not
// persisted server-side.
package session
