// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay runs blocking model calls on worker goroutines and hands
// their output back to the UI loop.
//
// # Key Types
//
//   - Relay: bounded FIFO queue plus a fixed pool of workers
//   - Job: one request, tagged with the chat epoch it belongs to
//   - Token: a streamed piece of a running job's reply
//   - Result: the final outcome of a job, success or failure
//   - Handler: the blocking work, usually an Ollama chat call
//
// # Usage
//
//	r := relay.New(relay.StreamingHandler(client, nil), func(v any) { p.Send(v) }, relay.Options{
//	    QueueDepth: 8,
//	    Timeout:    2 * time.Minute,
//	})
//	r.Start(ctx)
//	defer r.Stop()
//
//	id, err := r.Submit(relay.Job{Model: "deepseek-r1", Messages: msgs})
//
// Every accepted job yields exactly one Result. Handler errors, timeouts,
// cancellation and panics are reported in Result.Err rather than crashing
// a worker.
package relay
