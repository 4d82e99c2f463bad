// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/rigrun-web/internal/model"
)

const testPrompt = "You are a helpful assistant."

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), testPrompt)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation("", testPrompt)
	conv.AppendUser("Hello")
	conv.AppendAssistant("Hi there!")

	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(conv.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ID != conv.ID {
		t.Errorf("Loaded ID = %q, want %q", loaded.ID, conv.ID)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("Loaded Messages count = %d, want 3", len(loaded.Messages))
	}
	for i, msg := range conv.Messages {
		if loaded.Messages[i].Role != msg.Role {
			t.Errorf("Messages[%d].Role = %q, want %q", i, loaded.Messages[i].Role, msg.Role)
		}
		if loaded.Messages[i].Content != msg.Content {
			t.Errorf("Messages[%d].Content = %q, want %q", i, loaded.Messages[i].Content, msg.Content)
		}
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("conv-missing")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("err = %v, want ErrConversationNotFound", err)
	}
}

func TestStore_LoadOrNew_SeedsWithoutPersisting(t *testing.T) {
	store := newTestStore(t)

	conv := store.LoadOrNew("conv-fresh")

	if conv.ID != "conv-fresh" {
		t.Errorf("ID = %q, want conv-fresh", conv.ID)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Role != model.RoleSystem {
		t.Fatalf("Expected single seeded system message, got %+v", conv.Messages)
	}
	if conv.Messages[0].Content != testPrompt {
		t.Errorf("System prompt = %q", conv.Messages[0].Content)
	}

	// Must not exist on disk until saved
	if _, err := store.Load("conv-fresh"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Fresh conversation must not be persisted, Load err = %v", err)
	}
}

func TestStore_LoadOrNew_ReturnsPersisted(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation("conv-kept", testPrompt)
	conv.AppendUser("remember me")
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := store.LoadOrNew("conv-kept")
	if len(loaded.Messages) != 2 {
		t.Errorf("Messages count = %d, want 2", len(loaded.Messages))
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation("conv-grow", testPrompt)
	conv.AppendUser("first")
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	conv.AppendAssistant("second")
	if err := store.Save(conv); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.Load("conv-grow")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 3 {
		t.Errorf("Messages count = %d, want 3", len(loaded.Messages))
	}
	if loaded.Last().Content != "second" {
		t.Errorf("Last content = %q, want second", loaded.Last().Content)
	}
}

// =============================================================================
// LIST
// =============================================================================

func TestStore_List_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"conv-a", "conv-b", "conv-c"} {
		conv := model.NewConversation(id, testPrompt)
		conv.AppendUser("message in " + id)
		if err := store.Save(conv); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
		// Distinct mtimes: a oldest, c newest
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(filepath.Join(store.Dir, id+".json"), mtime, mtime); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("List count = %d, want 3", len(metas))
	}

	want := []string{"conv-c", "conv-b", "conv-a"}
	for i, meta := range metas {
		if meta.ID != want[i] {
			t.Errorf("metas[%d].ID = %q, want %q", i, meta.ID, want[i])
		}
	}
}

func TestStore_List_TitlesAndFallback(t *testing.T) {
	store := newTestStore(t)

	withUser := model.NewConversation("conv-titled", testPrompt)
	withUser.AppendUser("What is the airspeed velocity of an unladen swallow in continental Europe?")
	if err := store.Save(withUser); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	empty := model.NewConversation("conv-empty", testPrompt)
	if err := store.Save(empty); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	byID := map[string]ConversationMeta{}
	for _, m := range metas {
		byID[m.ID] = m
	}

	titled := byID["conv-titled"]
	if len([]rune(titled.Title)) > model.DefaultTitleLength {
		t.Errorf("Title too long: %q", titled.Title)
	}
	if titled.Title == "" || titled.Title == model.UntitledChat {
		t.Errorf("Title = %q, want first user message prefix", titled.Title)
	}

	if byID["conv-empty"].Title != model.UntitledChat {
		t.Errorf("Fallback title = %q, want %q", byID["conv-empty"].Title, model.UntitledChat)
	}
}

func TestStore_List_SkipsCorrupted(t *testing.T) {
	store := newTestStore(t)

	conv := model.NewConversation("conv-good", testPrompt)
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir, "conv-bad.json"), []byte("{broken"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 1 || metas[0].ID != "conv-good" {
		t.Errorf("metas = %+v, want only conv-good", metas)
	}
}

func TestStore_List_EmptyDir(t *testing.T) {
	store := newTestStore(t)

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("List count = %d, want 0", len(metas))
	}
}
