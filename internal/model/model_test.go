// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/kele/internal/ollama"
	"github.com/jeranaias/kele/internal/relay"
)

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_AppendAcceptsAnything(t *testing.T) {
	tr := NewTranscript()
	tr.Append(RoleUser, "")
	tr.Append(RoleUser, "again")
	tr.Append(RoleUser, "and again")

	require.Equal(t, 3, tr.Len())
	msgs := tr.Messages()
	assert.Equal(t, "", msgs[0].Content)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestTranscript_MessagesIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(RoleUser, "hi")

	msgs := tr.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "hi", tr.Messages()[0].Content)
}

func TestTranscript_UserMessagesInOrder(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 5; i++ {
		tr.Append(RoleUser, fmt.Sprintf("q%d", i))
		tr.Append(RoleAssistant, fmt.Sprintf("a%d", i))
	}

	users := tr.UserMessages()
	require.Len(t, users, 5)
	for i, m := range users {
		assert.Equal(t, fmt.Sprintf("q%d", i), m.Content)
	}
}

func TestTranscript_Reset(t *testing.T) {
	tr := NewTranscript()
	tr.Append(RoleUser, "hi")
	tr.Reset()

	assert.Equal(t, 0, tr.Len())
	_, ok := tr.Last()
	assert.False(t, ok)
}

func TestTranscript_ToOllama(t *testing.T) {
	tr := NewTranscript()
	tr.Append(RoleUser, "hi")
	tr.Append(RoleAssistant, "yes")

	assert.Equal(t, []ollama.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "yes"},
	}, tr.ToOllama("be brief"))

	assert.Len(t, tr.ToOllama(""), 2)
}

func TestMessage_DisplayContent(t *testing.T) {
	m := NewMessage(RoleAssistant, "")
	m.Pending = true
	assert.Equal(t, ThinkingText, m.DisplayContent())

	m.Content = "partial"
	assert.Equal(t, "partial", m.DisplayContent())
}

func TestMessage_Preview(t *testing.T) {
	m := NewMessage(RoleUser, "héllo wörld")
	assert.Equal(t, "héllo wörld", m.Preview(20))
	assert.Equal(t, "héllo...", m.Preview(8))
	assert.Equal(t, "hé", m.Preview(2))
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func resolveWith(s *Session, job relay.Job, content string, err error) bool {
	return s.Resolve(relay.Result{JobID: job.ID, Epoch: job.Epoch, Content: content, Err: err})
}

func TestSession_SubmitBuildsJob(t *testing.T) {
	s := NewSession("deepseek-r1", "be brief")

	job, err := s.Submit("  hello  ")
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "deepseek-r1", job.Model)
	assert.Equal(t, uint64(0), job.Epoch)
	assert.Equal(t, []ollama.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	}, job.Messages)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].Pending)
	assert.Equal(t, ThinkingText, msgs[1].DisplayContent())
	assert.Equal(t, 1, s.Pending())
}

func TestSession_SubmitNormalisesInput(t *testing.T) {
	s := NewSession("m", "")
	// "e" followed by a combining acute accent composes to U+00E9.
	job, err := s.Submit("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", job.Messages[0].Content)
}

func TestSession_SubmitRejectsBlank(t *testing.T) {
	s := NewSession("m", "")
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := s.Submit(in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Equal(t, 0, s.Transcript().Len())
	assert.Equal(t, uint64(0), s.Revision())
}

func TestSession_CannedReply(t *testing.T) {
	s := NewSession("m", "")
	job, err := s.Submit("is it on?")
	require.NoError(t, err)

	reply, err := relay.CannedHandler("yes").Handle(context.Background(), job, nil)
	require.NoError(t, err)
	require.True(t, resolveWith(s, job, reply, nil))

	assert.Equal(t, []ollama.Message{
		{Role: "user", Content: "is it on?"},
		{Role: "assistant", Content: "yes"},
	}, s.Transcript().ToOllama(""))
	assert.Equal(t, 0, s.Pending())
}

func TestSession_NSubmissionsInOrder(t *testing.T) {
	s := NewSession("m", "")
	const n = 7
	for i := 0; i < n; i++ {
		job, err := s.Submit(fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		// History grows with every turn.
		assert.Len(t, job.Messages, 2*i+1)
		resolveWith(s, job, "ok", nil)
	}

	users := s.Transcript().UserMessages()
	require.Len(t, users, n)
	for i, m := range users {
		assert.Equal(t, fmt.Sprintf("msg %d", i), m.Content)
	}
}

func TestSession_SubmitWhilePending(t *testing.T) {
	s := NewSession("m", "")
	a, err := s.Submit("first")
	require.NoError(t, err)
	b, err := s.Submit("second")
	require.NoError(t, err)

	// The second job does not include the first placeholder.
	assert.Equal(t, []ollama.Message{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second"},
	}, b.Messages)

	resolveWith(s, a, "A", nil)
	resolveWith(s, b, "B", nil)

	got := s.Transcript().ToOllama("")
	require.Len(t, got, 4)
	assert.Equal(t, "A", got[1].Content)
	assert.Equal(t, "B", got[3].Content)
}

func TestSession_Streaming(t *testing.T) {
	s := NewSession("m", "")
	job, err := s.Submit("hi")
	require.NoError(t, err)

	assert.True(t, s.AppendToken(relay.Token{JobID: job.ID, Epoch: job.Epoch, Content: "Hel"}))
	assert.True(t, s.AppendToken(relay.Token{JobID: job.ID, Epoch: job.Epoch, Content: "lo"}))

	last, _ := s.Transcript().Last()
	assert.True(t, last.Pending)
	assert.Equal(t, "Hello", last.DisplayContent())

	// An empty final content keeps what was streamed.
	require.True(t, resolveWith(s, job, "", nil))
	last, _ = s.Transcript().Last()
	assert.False(t, last.Pending)
	assert.Equal(t, "Hello", last.Content)
}

func TestSession_ErrorRemovesPlaceholder(t *testing.T) {
	s := NewSession("m", "")
	job, err := s.Submit("hi")
	require.NoError(t, err)

	boom := errors.New("ollama not running")
	require.True(t, resolveWith(s, job, "", boom))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.ErrorIs(t, s.Err(), boom)

	// The next submission clears the visible error.
	_, err = s.Submit("retry")
	require.NoError(t, err)
	assert.NoError(t, s.Err())
}

func TestSession_ErrModelFollowsFailedJob(t *testing.T) {
	s := NewSession("deepseek-r1", "")
	job, err := s.Submit("hi")
	require.NoError(t, err)

	s.SetModel("llama3.2")
	require.True(t, s.Resolve(relay.Result{JobID: job.ID, Epoch: job.Epoch, Model: job.Model, Err: ollama.ErrModelNotFound}))
	assert.Equal(t, "deepseek-r1", s.ErrModel())

	s.ClearError()
	assert.Equal(t, "llama3.2", s.ErrModel())
}

func TestSession_Abandon(t *testing.T) {
	s := NewSession("m", "")
	job, err := s.Submit("hi")
	require.NoError(t, err)

	s.Abandon(job.ID, relay.ErrQueueFull)
	assert.Equal(t, 1, s.Transcript().Len())
	assert.ErrorIs(t, s.Err(), relay.ErrQueueFull)
	assert.Equal(t, 0, s.Pending())
}

func TestSession_NewChatDropsStaleResults(t *testing.T) {
	s := NewSession("m", "")
	old, err := s.Submit("old question")
	require.NoError(t, err)

	pending := s.NewChat()
	assert.Equal(t, []string{old.ID}, pending)
	assert.Equal(t, 0, s.Transcript().Len())
	assert.Equal(t, uint64(1), s.Epoch())

	assert.False(t, s.AppendToken(relay.Token{JobID: old.ID, Epoch: old.Epoch, Content: "x"}))
	assert.False(t, resolveWith(s, old, "late reply", nil))
	assert.False(t, resolveWith(s, old, "", errors.New("late failure")))
	assert.Equal(t, 0, s.Transcript().Len())
	assert.NoError(t, s.Err())

	fresh, err := s.Submit("new question")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fresh.Epoch)
	assert.Len(t, fresh.Messages, 1, "history starts over")
}

func TestSession_UnknownJobIgnored(t *testing.T) {
	s := NewSession("m", "")
	_, err := s.Submit("hi")
	require.NoError(t, err)

	assert.False(t, s.Resolve(relay.Result{JobID: "other"}))
	assert.Equal(t, 1, s.Pending())
}

func TestSession_RevisionAndOnChange(t *testing.T) {
	s := NewSession("m", "")
	calls := 0
	s.OnChange(func() { calls++ })

	job, err := s.Submit("hi")
	require.NoError(t, err)
	resolveWith(s, job, "yes", nil)
	s.NewChat()
	s.SetModel("other")
	s.SetModel("other")
	s.SetSystemPrompt("sys")

	assert.Equal(t, 5, calls)
	assert.Equal(t, uint64(5), s.Revision())
	assert.Equal(t, "other", s.Model())
	assert.Equal(t, "sys", s.SystemPrompt())
}

func TestSession_WithRelay(t *testing.T) {
	out := make(chan any, 16)
	r := relay.New(relay.CannedHandler("yes"), relay.ChanDispatcher(out), relay.Options{})
	r.Start(context.Background())
	defer r.Stop()

	s := NewSession("m", "")
	job, err := s.Submit("hello")
	require.NoError(t, err)
	_, err = r.Submit(job)
	require.NoError(t, err)

	select {
	case msg := <-out:
		res, ok := msg.(relay.Result)
		require.True(t, ok)
		require.True(t, s.Resolve(res))
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "yes", msgs[1].Content)
}
