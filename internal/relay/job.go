// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"time"

	"github.com/jeranaias/kele/internal/ollama"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrQueueFull is returned by Submit when QueueDepth jobs are already waiting.
	ErrQueueFull = errors.New("relay: queue full")

	// ErrStopped is returned by Submit after Stop, and is the Result error for
	// jobs that were still queued when the relay stopped.
	ErrStopped = errors.New("relay: stopped")

	// ErrRateLimited is returned by Submit when the admission limiter refuses a job.
	ErrRateLimited = errors.New("relay: rate limited")

	// ErrHandlerPanic wraps a panic recovered from a Handler.
	ErrHandlerPanic = errors.New("relay: handler panicked")
)

// =============================================================================
// JOB TYPES
// =============================================================================

// Job is one request handed to the relay.
type Job struct {
	// ID identifies the job for Cancel and in its Token and Result values.
	// Submit assigns a UUID when empty.
	ID string

	// Epoch is the chat epoch the job belongs to. The relay carries it
	// through untouched so the receiver can drop results for a chat that
	// has since been reset.
	Epoch uint64

	Model    string
	Messages []ollama.Message

	SubmittedAt time.Time
}

// Token is a piece of streamed reply text for a running job.
type Token struct {
	JobID   string
	Epoch   uint64
	Content string
}

// Result is the outcome of a job. Exactly one Result is dispatched per
// accepted job, after all of its Tokens.
type Result struct {
	JobID   string
	Epoch   uint64
	Model   string // the job's model, for error messages
	Content string
	Err     error

	// Queued is how long the job waited before a worker picked it up.
	Queued time.Duration
	// Elapsed is how long the handler ran. Zero for jobs that never ran.
	Elapsed time.Duration
}

// Canceled reports whether the job ended because it was cancelled or the
// relay stopped, as opposed to failing on its own.
func (r Result) Canceled() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, ErrStopped)
}

// =============================================================================
// HANDLER AND DISPATCH
// =============================================================================

// Emit delivers one piece of streamed text. Handlers that do not stream
// never call it.
type Emit func(content string)

// Handler performs the blocking work for a job and returns the full reply.
// It must return promptly once ctx is done.
type Handler interface {
	Handle(ctx context.Context, job Job, emit Emit) (string, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, job Job, emit Emit) (string, error)

// Handle calls f(ctx, job, emit).
func (f HandlerFunc) Handle(ctx context.Context, job Job, emit Emit) (string, error) {
	return f(ctx, job, emit)
}

// Dispatcher delivers Token and Result values to the consumer. The TUI
// wires it to tea.Program.Send so delivery lands on the UI loop.
type Dispatcher func(msg any)

// ChanDispatcher returns a Dispatcher that sends on ch. It blocks while ch
// is full.
func ChanDispatcher(ch chan<- any) Dispatcher {
	return func(msg any) { ch <- msg }
}
