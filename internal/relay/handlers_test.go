// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/kele/internal/ollama"
)

type fakeClient struct {
	chunks []string
	reply  string
	err    error

	gotModel    string
	gotMessages []ollama.Message
}

func (f *fakeClient) Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error) {
	f.gotModel, f.gotMessages = model, messages
	if f.err != nil {
		return nil, f.err
	}
	return &ollama.ChatResponse{Message: ollama.NewAssistantMessage(f.reply), Done: true}, nil
}

func (f *fakeClient) ChatStream(ctx context.Context, model string, messages []ollama.Message, cb ollama.StreamCallback) error {
	f.gotModel, f.gotMessages = model, messages
	for _, c := range f.chunks {
		cb(ollama.StreamChunk{Content: c})
	}
	if f.err != nil {
		return f.err
	}
	cb(ollama.StreamChunk{Done: true, CompletionTokens: len(f.chunks)})
	return nil
}

func TestChatHandler(t *testing.T) {
	fc := &fakeClient{reply: "hi there"}
	job := Job{Model: "m", Messages: []ollama.Message{ollama.NewUserMessage("hello")}}

	got, err := ChatHandler(fc).Handle(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
	assert.Equal(t, "m", fc.gotModel)
	assert.Equal(t, job.Messages, fc.gotMessages)

	fc.err = ollama.ErrNotRunning
	_, err = ChatHandler(fc).Handle(context.Background(), job, nil)
	assert.True(t, ollama.IsNotRunning(err))
}

func TestStreamingHandler(t *testing.T) {
	fc := &fakeClient{chunks: []string{"Hel", "lo"}}
	var emitted []string

	got, err := StreamingHandler(fc, nil).Handle(context.Background(), Job{}, func(s string) {
		emitted = append(emitted, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
	// The final done chunk carries no content.
	assert.Equal(t, []string{"Hel", "lo", ""}, emitted)
}

func TestStreamingHandler_Error(t *testing.T) {
	fc := &fakeClient{chunks: []string{"partial"}, err: ollama.ErrTimeout}

	got, err := StreamingHandler(fc, nil).Handle(context.Background(), Job{}, nil)
	assert.Empty(t, got)
	assert.True(t, ollama.IsTimeout(err))
}

func TestCannedHandler(t *testing.T) {
	got, err := CannedHandler("yes").Handle(context.Background(), Job{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CannedHandler("yes").Handle(ctx, Job{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
