// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/sessions"

	"github.com/jeranaias/rigrun-web/internal/llm"
	"github.com/jeranaias/rigrun-web/internal/model"
)

// SessionName is the cookie name carrying the session.
const SessionName = "rigrun_web"

// Session value keys.
const (
	keyConversationID = "cid"
	keyModel          = "model"
	keyAPIBase        = "api_base"
	keyAPIKey         = "api_key"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager reads and writes per-browser session state.
type Manager struct {
	store *sessions.CookieStore

	mu       sync.RWMutex
	defaults llm.ProviderConfig
}

// NewManager creates a session manager. key authenticates cookies; if
// empty, a random key is generated (sessions reset on process restart).
// defaults are the provider settings used when a session has none.
func NewManager(key []byte, defaults llm.ProviderConfig) *Manager {
	if len(key) == 0 {
		key = make([]byte, 32)
		rand.Read(key)
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store:    store,
		defaults: defaults,
	}
}

// SetDefaults replaces the fallback provider settings (config reload).
// Sessions that never customized their provider pick the new defaults
// up on their next request.
func (m *Manager) SetDefaults(defaults llm.ProviderConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = defaults
}

// Defaults returns the current fallback provider settings.
func (m *Manager) Defaults() llm.ProviderConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults
}

// session fetches the request's session, valid even on first contact.
func (m *Manager) session(r *http.Request) *sessions.Session {
	// Get never fails fatally for cookie stores: a missing or invalid
	// cookie yields a fresh session.
	sess, _ := m.store.Get(r, SessionName)
	return sess
}

// =============================================================================
// ACTIVE CONVERSATION
// =============================================================================

// ConversationID returns the session's active conversation id,
// creating and saving a fresh one on first contact.
func (m *Manager) ConversationID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := m.session(r)

	if id, ok := sess.Values[keyConversationID].(string); ok && id != "" {
		return id, nil
	}

	id := model.NewConversationID()
	sess.Values[keyConversationID] = id
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

// SetConversationID switches the session's active conversation.
func (m *Manager) SetConversationID(w http.ResponseWriter, r *http.Request, id string) error {
	sess := m.session(r)
	sess.Values[keyConversationID] = id
	return sess.Save(r, w)
}

// =============================================================================
// PROVIDER CONFIG
// =============================================================================

// Provider returns the session's provider settings, falling back to
// the defaults for any field the session never set.
func (m *Manager) Provider(r *http.Request) llm.ProviderConfig {
	sess := m.session(r)
	cfg := m.Defaults()

	if v, ok := sess.Values[keyModel].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := sess.Values[keyAPIBase].(string); ok && v != "" {
		cfg.APIBase = v
	}
	if v, ok := sess.Values[keyAPIKey].(string); ok && v != "" {
		cfg.APIKey = v
	}
	return cfg
}

// SetProvider merges the supplied settings into the session. Each
// field is trimmed; blank or whitespace-only fields fall back to the
// defaults. No validation is performed here - failures surface only
// when the completion client is invoked.
func (m *Manager) SetProvider(w http.ResponseWriter, r *http.Request, partial llm.ProviderConfig) (llm.ProviderConfig, error) {
	defaults := m.Defaults()

	merged := llm.ProviderConfig{
		Model:   fallback(partial.Model, defaults.Model),
		APIBase: fallback(partial.APIBase, defaults.APIBase),
		APIKey:  fallback(partial.APIKey, defaults.APIKey),
	}

	sess := m.session(r)
	sess.Values[keyModel] = merged.Model
	sess.Values[keyAPIBase] = merged.APIBase
	sess.Values[keyAPIKey] = merged.APIKey
	if err := sess.Save(r, w); err != nil {
		return llm.ProviderConfig{}, err
	}
	return merged, nil
}

// fallback returns the trimmed value, or def when blank.
func fallback(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return value
}
