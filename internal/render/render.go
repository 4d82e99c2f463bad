// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/rigrun-web/internal/model"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer converts messages to sanitized display HTML.
// The zero value is not usable; construct with New.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a renderer with tables, strikethrough, autolinking, and
// class-based syntax highlighting enabled for assistant Markdown.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
			highlighting.NewHighlighting(
				// Classes instead of inline styles: the sanitizer strips
				// style attributes, and the page stylesheet themes the
				// chroma classes.
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("span", "code", "pre", "div")

	return &Renderer{md: md, policy: policy}
}

// Assistant renders Markdown source to sanitized HTML.
func (r *Renderer) Assistant(source string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		// Conversion only fails on writer errors, which bytes.Buffer
		// never produces; escape as a fallback all the same.
		return html.EscapeString(source)
	}
	return r.policy.Sanitize(buf.String())
}

// Message renders a single message as a transcript bubble.
// System messages render to the empty string.
func (r *Renderer) Message(msg model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		return `<div class="message user">` + html.EscapeString(msg.Content) + `</div>`
	case model.RoleAssistant:
		return `<div class="message bot">` + r.Assistant(msg.Content) + `</div>`
	default:
		return ""
	}
}

// Transcript renders every visible message of a conversation in order.
func (r *Renderer) Transcript(conv *model.Conversation) string {
	var sb strings.Builder
	for _, msg := range conv.Messages {
		sb.WriteString(r.Message(msg))
	}
	return sb.String()
}
