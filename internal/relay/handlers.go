// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"log/slog"

	"github.com/jeranaias/kele/internal/ollama"
)

// ChatClient is the part of the Ollama client the handlers need.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error)
	ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error
}

// ChatHandler returns a Handler that makes one non-streaming chat call per job.
func ChatHandler(client ChatClient) Handler {
	return HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		resp, err := client.Chat(ctx, job.Model, job.Messages)
		if err != nil {
			return "", err
		}
		return resp.Message.Content, nil
	})
}

// StreamingHandler returns a Handler that streams the reply, emitting each
// chunk as it arrives. The returned content is the whole reply.
func StreamingHandler(client ChatClient, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "relay")

	return HandlerFunc(func(ctx context.Context, job Job, emit Emit) (string, error) {
		acc := ollama.NewStreamAccumulator()
		err := client.ChatStream(ctx, job.Model, job.Messages, func(chunk ollama.StreamChunk) {
			acc.Add(chunk)
			if emit != nil {
				emit(chunk.Content)
			}
		})
		if err != nil {
			return "", err
		}

		if acc.IsDone() {
			log.Debug("stream complete", "job", job.ID, "model", job.Model, "stats", acc.Stats().Format())
		}
		return acc.Content(), nil
	})
}

// CannedHandler returns a Handler that answers every job with reply and
// never touches the network.
func CannedHandler(reply string) Handler {
	return HandlerFunc(func(ctx context.Context, _ Job, _ Emit) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return reply, nil
	})
}
