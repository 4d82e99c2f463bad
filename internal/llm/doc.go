// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm provides a streaming client for OpenAI-compatible chat
// completion endpoints (LM Studio, llama.cpp server, llamafile, Ollama
// in OpenAI mode, or any hosted provider speaking the same wire format).
//
// Provider settings (model, API base URL, API key) are supplied per
// call rather than fixed at construction, because each browser session
// may point at a different provider.
//
// The stream is standard SSE: one JSON chunk per data: event, with
// text deltas under choices[0].delta.content, terminated by a [DONE]
// sentinel or stream closure.
package llm
