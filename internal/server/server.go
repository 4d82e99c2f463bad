// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-web/internal/llm"
	"github.com/jeranaias/rigrun-web/internal/model"
	"github.com/jeranaias/rigrun-web/internal/render"
	"github.com/jeranaias/rigrun-web/internal/session"
	"github.com/jeranaias/rigrun-web/internal/storage"
	"github.com/jeranaias/rigrun-web/internal/turn"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 8000

	// MaxFormSize is the maximum size for form bodies.
	MaxFormSize = 1 * 1024 * 1024

	// streamPlaceholder is appended after the echoed user message. The htmx
	// SSE extension connects it to /stream, swaps each snapshot into the
	// bubble, and disconnects on the "done" event.
	streamPlaceholder = `<div class="message bot" ` +
		`sse-connect="/stream" sse-swap="message" sse-close="done" ` +
		`hx-swap="innerHTML"></div>`
)

//go:embed templates/index.html
var templateFS embed.FS

// ============================================================================
// SERVER
// ============================================================================

// Server is the web chat HTTP server.
type Server struct {
	host   string
	port   int
	mux    *http.ServeMux
	server *http.Server
	page   *template.Template

	store    *storage.Store
	sessions *session.Manager
	renderer *render.Renderer
	turns    *turn.Controller
}

// NewServer wires the chat front-end together. If port is 0, the default
// port (8000) is used.
func NewServer(host string, port int, store *storage.Store, sessions *session.Manager, renderer *render.Renderer, turns *turn.Controller) *Server {
	if port == 0 {
		port = DefaultPort
	}

	s := &Server{
		host:     host,
		port:     port,
		mux:      http.NewServeMux(),
		page:     template.Must(template.ParseFS(templateFS, "templates/index.html")),
		store:    store,
		sessions: sessions,
		renderer: renderer,
		turns:    turns,
	}

	s.setupRoutes()
	return s
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the full handler including middleware. Exposed so tests
// can drive the server through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(log.Default()),
	)(s.mux)
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /input", s.handleInput)
	s.mux.HandleFunc("GET /stream", s.handleStream)
	s.mux.HandleFunc("GET /sidebar", s.handleSidebar)
	s.mux.HandleFunc("GET /load", s.handleLoad)
	s.mux.HandleFunc("GET /new", s.handleNew)
	s.mux.HandleFunc("GET /settings", s.handleSettingsForm)
	s.mux.HandleFunc("POST /settings", s.handleSettingsSave)
}

// ============================================================================
// PAGE HANDLER
// ============================================================================

// pageData carries the pre-rendered transcript into the page template.
type pageData struct {
	Messages template.HTML
}

// handleIndex handles GET /. Serves the chat page with the session's
// current transcript already in place.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cid, err := s.sessions.ConversationID(w, r)
	if err != nil {
		log.Printf("SESSION_ERROR | path=/ error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conv := s.store.LoadOrNew(cid)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, pageData{Messages: template.HTML(s.renderer.Transcript(conv))}); err != nil {
		log.Printf("TEMPLATE_ERROR | path=/ error=%v", err)
	}
}

// ============================================================================
// TURN HANDLERS
// ============================================================================

// handleInput handles POST /input. Appends the submitted prompt to the
// current conversation and returns the echoed user bubble plus the stream
// placeholder. Blank prompts produce an empty response and no state change.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	cid, err := s.sessions.ConversationID(w, r)
	if err != nil {
		log.Printf("SESSION_ERROR | path=/input error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conv := s.store.LoadOrNew(cid)

	appended, err := s.turns.AppendUser(conv, r.FormValue("prompt"))
	if err != nil {
		log.Printf("INPUT_SAVE_FAILED | cid=%s error=%v", cid, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !appended {
		return
	}
	fmt.Fprint(w, s.renderer.Message(conv.Last())+streamPlaceholder)
}

// handleStream handles GET /stream. Streams rendered snapshots of the
// assistant reply as SSE and finishes with the "done" event. The done event
// is sent on every termination path, including upstream failure, so the
// client always disconnects cleanly.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	cid, err := s.sessions.ConversationID(w, r)
	if err != nil {
		log.Printf("SESSION_ERROR | path=/stream error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	conv := s.store.LoadOrNew(cid)
	cfg := s.sessions.Provider(r)

	err = s.turns.Stream(r.Context(), conv, cfg, func(ev turn.Event) {
		switch ev.Kind {
		case turn.EventSnapshot:
			if werr := sse.WriteSnapshot(ev.HTML); werr != nil {
				log.Printf("STREAM_WRITE_ERROR | cid=%s error=%v", cid, werr)
			}
		case turn.EventDone:
			if werr := sse.WriteDone(); werr != nil {
				log.Printf("STREAM_WRITE_ERROR | cid=%s error=%v", cid, werr)
			}
		}
	})
	if err != nil {
		log.Printf("STREAM_FAILED | cid=%s model=%s error=%v", cid, cfg.Model, err)
	}
}

// ============================================================================
// SIDEBAR AND CONVERSATION SWITCHING
// ============================================================================

// sidebarButtons is the fixed action block above the conversation list.
const sidebarButtons = `<button class="action-btn" hx-get="/new" hx-target="#messages" hx-swap="innerHTML">+ New Chat</button>` +
	`<button class="action-btn" hx-get="/settings" hx-target="#messages" hx-swap="innerHTML">Settings</button>` +
	`<hr style="border:1px solid var(--border);">`

// handleSidebar handles GET /sidebar. Returns the action buttons plus one
// link per stored conversation, newest first, with the active one marked.
func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	activeID, err := s.sessions.ConversationID(w, r)
	if err != nil {
		log.Printf("SESSION_ERROR | path=/sidebar error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	metas, err := s.store.List()
	if err != nil {
		log.Printf("SIDEBAR_LIST_FAILED | error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString(sidebarButtons)
	b.WriteString("<h2>Your chats</h2>")
	for _, meta := range metas {
		active := ""
		if meta.ID == activeID {
			active = ` style="background:#333;"`
		}
		fmt.Fprintf(&b,
			`<a class="chat-link" hx-get="/load?cid=%s" hx-target="#messages" hx-swap="innerHTML"%s>%s</a>`,
			html.EscapeString(meta.ID), active, html.EscapeString(meta.Title))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, b.String())
}

// handleLoad handles GET /load. Switches the session to the requested
// conversation and returns its transcript. An unknown id yields a fresh
// conversation under that id, matching what the next turn would create.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	cid := r.URL.Query().Get("cid")
	if cid == "" {
		return
	}

	if err := s.sessions.SetConversationID(w, r, cid); err != nil {
		log.Printf("SESSION_ERROR | path=/load error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conv := s.store.LoadOrNew(cid)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, s.renderer.Transcript(conv))
}

// handleNew handles GET /new. Starts a fresh conversation, persists it
// immediately so it appears in the sidebar, and returns its (empty)
// transcript. Provider settings are untouched.
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	cid := model.NewConversationID()
	if err := s.sessions.SetConversationID(w, r, cid); err != nil {
		log.Printf("SESSION_ERROR | path=/new error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conv := s.store.LoadOrNew(cid)
	if err := s.store.Save(conv); err != nil {
		log.Printf("NEW_SAVE_FAILED | cid=%s error=%v", cid, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	log.Printf("CONVERSATION_NEW | cid=%s", cid)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, s.renderer.Transcript(conv))
}

// ============================================================================
// SETTINGS HANDLERS
// ============================================================================

// handleSettingsForm handles GET /settings. Returns the provider settings
// form pre-filled with the session's current values.
func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	cfg := s.sessions.Provider(r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<div style="padding:1rem;">
  <h2>Settings</h2>
  <form hx-post="/settings" hx-target="#messages" hx-swap="innerHTML" style="display:flex; flex-direction:column; gap:.5rem;">
    <label>Model <input name="model" value="%s"></label>
    <label>API Base <input name="api_base" value="%s"></label>
    <label>API Key <input name="api_key" value="%s"></label>
    <button style="margin-top:.5rem;">Save</button>
  </form>
  <p style="font-size:.9rem;opacity:.8;"><strong>Examples</strong><br>
    Ollama server: <code>http://localhost:11434</code><br>
    LM Studio: <code>http://localhost:1234/v1</code><br>
    llama.cpp server: <code>http://localhost:8080/v1</code><br>
    llamafile: <code>http://localhost:4891/v1</code>
  </p>
</div>`,
		html.EscapeString(cfg.Model),
		html.EscapeString(cfg.APIBase),
		html.EscapeString(cfg.APIKey))
}

// handleSettingsSave handles POST /settings. Stores the submitted provider
// settings in the session; blank fields keep the server defaults.
func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	merged, err := s.sessions.SetProvider(w, r, llm.ProviderConfig{
		Model:   r.FormValue("model"),
		APIBase: r.FormValue("api_base"),
		APIKey:  r.FormValue("api_key"),
	})
	if err != nil {
		log.Printf("SETTINGS_SAVE_FAILED | error=%v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	log.Printf("SETTINGS_SAVED | model=%s api_base=%s", merged.Model, merged.APIBase)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<div style="padding:1rem;"><h2>Settings saved</h2>`+
		`<p>Your LLM provider configuration has been updated.</p></div>`)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: /stream holds the response open for as long as
		// the upstream model keeps producing tokens.
	}

	log.Printf("SERVER_START | addr=%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}
