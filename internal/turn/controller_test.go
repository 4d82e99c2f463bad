// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-web/internal/llm"
	"github.com/jeranaias/rigrun-web/internal/model"
	"github.com/jeranaias/rigrun-web/internal/render"
	"github.com/jeranaias/rigrun-web/internal/storage"
)

const testPrompt = "You are a helpful assistant."

// fakeStreamer replays a fixed token sequence, then returns err.
type fakeStreamer struct {
	tokens []string
	err    error

	gotCfg      llm.ProviderConfig
	gotMessages []llm.ChatMessage
}

func (f *fakeStreamer) ChatStream(ctx context.Context, cfg llm.ProviderConfig, messages []llm.ChatMessage, callback llm.StreamCallback) error {
	f.gotCfg = cfg
	f.gotMessages = messages
	for _, tok := range f.tokens {
		callback(chunkWith(tok))
	}
	return f.err
}

// chunkWith builds a StreamChunk carrying one content delta.
func chunkWith(content string) llm.StreamChunk {
	var chunk llm.StreamChunk
	raw := fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, content)
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
		panic(err)
	}
	return chunk
}

func newTestController(t *testing.T, streamer Streamer) (*Controller, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir(), testPrompt)
	require.NoError(t, err)
	return NewController(store, render.New(), streamer), store
}

// collect records emitted events for assertions.
type collect struct {
	events []Event
}

func (c *collect) emit(ev Event) {
	c.events = append(c.events, ev)
}

func (c *collect) snapshots() []string {
	var out []string
	for _, ev := range c.events {
		if ev.Kind == EventSnapshot {
			out = append(out, ev.HTML)
		}
	}
	return out
}

func (c *collect) doneCount() int {
	n := 0
	for _, ev := range c.events {
		if ev.Kind == EventDone {
			n++
		}
	}
	return n
}

// =============================================================================
// USER APPEND
// =============================================================================

func TestAppendUser_PersistsTrailingUserMessage(t *testing.T) {
	ctrl, store := newTestController(t, &fakeStreamer{})

	conv := model.NewConversation("conv-t1", testPrompt)
	appended, err := ctrl.AppendUser(conv, "  hello there  ")
	require.NoError(t, err)
	assert.True(t, appended)

	last := conv.Last()
	assert.Equal(t, model.RoleUser, last.Role)
	assert.Equal(t, "hello there", last.Content, "prompt should be trimmed")

	// A subsequent load from storage reflects the entry
	loaded, err := store.Load("conv-t1")
	require.NoError(t, err)
	require.Equal(t, 2, len(loaded.Messages))
	assert.Equal(t, "hello there", loaded.Messages[1].Content)
}

func TestAppendUser_EmptyPromptIsNoOp(t *testing.T) {
	ctrl, store := newTestController(t, &fakeStreamer{})

	conv := model.NewConversation("conv-t2", testPrompt)
	for _, prompt := range []string{"", "   ", "\n\t "} {
		appended, err := ctrl.AppendUser(conv, prompt)
		require.NoError(t, err)
		assert.False(t, appended, "prompt %q must be a no-op", prompt)
	}

	assert.Equal(t, 1, conv.MessageCount(), "no message may be appended")
	_, err := store.Load("conv-t2")
	assert.ErrorIs(t, err, storage.ErrConversationNotFound, "no-op must not persist")
}

// =============================================================================
// STREAMING
// =============================================================================

func TestStream_SnapshotsConvergeAndPersist(t *testing.T) {
	fake := &fakeStreamer{tokens: []string{"Hel", "lo **wo", "rld**"}}
	ctrl, store := newTestController(t, fake)

	conv := model.NewConversation("conv-t3", testPrompt)
	conv.AppendUser("greet me")

	var got collect
	err := ctrl.Stream(context.Background(), conv, llm.ProviderConfig{Model: "m", APIBase: "http://x"}, got.emit)
	require.NoError(t, err)

	// One snapshot per non-empty token, in order
	snaps := got.snapshots()
	require.Equal(t, 3, len(snaps))

	// Final snapshot equals one-shot rendering of the concatenation
	oneShot := render.New().Assistant("Hello **world**")
	assert.Equal(t, oneShot, snaps[2])

	// Done exactly once, strictly last
	assert.Equal(t, 1, got.doneCount())
	assert.Equal(t, EventDone, got.events[len(got.events)-1].Kind)

	// Assistant turn persisted
	loaded, err := store.Load("conv-t3")
	require.NoError(t, err)
	last := loaded.Messages[len(loaded.Messages)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "Hello **world**", last.Content)
}

func TestStream_SendsFullHistorySystemFirst(t *testing.T) {
	fake := &fakeStreamer{tokens: []string{"ok"}}
	ctrl, _ := newTestController(t, fake)

	conv := model.NewConversation("conv-t4", testPrompt)
	conv.AppendUser("first question")
	conv.AppendAssistant("first answer")
	conv.AppendUser("second question")

	cfg := llm.ProviderConfig{Model: "openai/local", APIBase: "http://localhost:1234/v1", APIKey: "dummy"}
	var got collect
	require.NoError(t, ctrl.Stream(context.Background(), conv, cfg, got.emit))

	require.Equal(t, 4, len(fake.gotMessages))
	assert.Equal(t, "system", fake.gotMessages[0].Role)
	assert.Equal(t, testPrompt, fake.gotMessages[0].Content)
	assert.Equal(t, "second question", fake.gotMessages[3].Content)
	assert.Equal(t, cfg, fake.gotCfg)
}

func TestStream_DropsEmptyTokens(t *testing.T) {
	fake := &fakeStreamer{tokens: []string{"", "a", "", "b", ""}}
	ctrl, _ := newTestController(t, fake)

	conv := model.NewConversation("conv-t5", testPrompt)
	var got collect
	require.NoError(t, ctrl.Stream(context.Background(), conv, llm.ProviderConfig{}, got.emit))

	assert.Equal(t, 2, len(got.snapshots()), "empty deltas must not emit updates")
	assert.Equal(t, "ab", conv.Last().Content)
}

// =============================================================================
// FAILURE SEMANTICS
// =============================================================================

func TestStream_UpstreamFailureFinalizesWithPartial(t *testing.T) {
	upstreamErr := errors.New("connection reset")
	fake := &fakeStreamer{tokens: []string{"par", "tial"}, err: upstreamErr}
	ctrl, store := newTestController(t, fake)

	conv := model.NewConversation("conv-t6", testPrompt)
	conv.AppendUser("doomed question")

	var got collect
	err := ctrl.Stream(context.Background(), conv, llm.ProviderConfig{}, got.emit)
	assert.ErrorIs(t, err, upstreamErr, "upstream error surfaces for logging")

	// Partial text persisted, not discarded
	loaded, loadErr := store.Load("conv-t6")
	require.NoError(t, loadErr)
	last := loaded.Messages[len(loaded.Messages)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "partial", last.Content)

	// Completion signal still observed, exactly once, last
	require.Equal(t, 1, got.doneCount())
	assert.Equal(t, EventDone, got.events[len(got.events)-1].Kind)
}

func TestStream_FailureBeforeAnyTokenPersistsEmptyReply(t *testing.T) {
	fake := &fakeStreamer{err: errors.New("refused")}
	ctrl, store := newTestController(t, fake)

	conv := model.NewConversation("conv-t7", testPrompt)
	var got collect
	err := ctrl.Stream(context.Background(), conv, llm.ProviderConfig{}, got.emit)
	assert.Error(t, err)

	assert.Empty(t, got.snapshots())
	assert.Equal(t, 1, got.doneCount())

	loaded, loadErr := store.Load("conv-t7")
	require.NoError(t, loadErr)
	assert.Equal(t, model.RoleAssistant, loaded.Last().Role)
	assert.Equal(t, "", loaded.Last().Content)
}

// =============================================================================
// STATE NAMES
// =============================================================================

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "user_appended", StateUserAppended.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "finalized", StateFinalized.String())
}
