// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The client covers the subset of the API kele needs: a health check,
// the local model list, and /api/chat in both streaming and
// non-streaming form.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ClientError: typed failure with an ErrorType category
//   - StreamReader: newline-delimited JSON reader for streaming replies
//   - StreamAccumulator: collects streamed content and timing statistics
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://127.0.0.1:11434",
//	    DefaultModel: "deepseek-r1",
//	})
//	resp, err := client.Chat(ctx, "", []ollama.Message{ollama.NewUserMessage("Hello")})
//
// For streaming responses:
//
//	err := client.ChatStream(ctx, "", msgs, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
//
// Errors can be checked with errors.Is against ErrNotRunning, ErrTimeout,
// ErrCanceled and ErrModelNotFound, or with the Is* helpers.
package ollama
