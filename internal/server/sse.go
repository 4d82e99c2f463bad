// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"net/http"
	"strings"
)

// ============================================================================
// SSE WRITER
// ============================================================================

// sseWriter frames HTML fragments as Server-Sent Events. Rendered Markdown
// spans multiple lines, and the SSE wire format requires every payload line
// to carry its own "data: " prefix, so multi-line fragments are split and
// re-prefixed line by line.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares w for event streaming and returns the writer.
// Returns an error when the underlying ResponseWriter cannot flush, which
// makes token-by-token delivery impossible.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported: response writer is not a flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteSnapshot sends one unnamed event carrying the full rendered fragment.
// htmx's SSE extension swaps unnamed events under the default "message" name.
func (s *sseWriter) WriteSnapshot(html string) error {
	var b strings.Builder
	for _, line := range strings.Split(html, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if _, err := fmt.Fprint(s.w, b.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteDone sends the terminal "done" event that tells the client to close
// the stream. It is always the last event on the wire.
func (s *sseWriter) WriteDone() error {
	if _, err := fmt.Fprint(s.w, "event: done\ndata:\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
