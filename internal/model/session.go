// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/kele/internal/relay"
)

// ErrEmptyInput is returned by Submit for blank input.
var ErrEmptyInput = errors.New("empty input")

// Session is the state of one chat screen: its transcript, the pending
// replies and the last visible error.
//
// A Session has a single writer. The TUI mutates it only from its Update
// loop and the REPL only from its read loop; relay output reaches it as
// values passed to Resolve and AppendToken on that same goroutine.
type Session struct {
	transcript *Transcript

	model        string
	systemPrompt string

	// epoch increments on NewChat; relay output from an older epoch is dropped.
	epoch    uint64
	revision uint64
	err      error
	errModel string

	onChange func()
}

// NewSession creates an empty session that will address model.
func NewSession(model, systemPrompt string) *Session {
	return &Session{
		transcript:   NewTranscript(),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Transcript returns the session's transcript. Callers must not modify it.
func (s *Session) Transcript() *Transcript { return s.transcript }

// Messages returns a copy of the transcript messages.
func (s *Session) Messages() []Message { return s.transcript.Messages() }

// Epoch returns the current chat epoch.
func (s *Session) Epoch() uint64 { return s.epoch }

// Revision increases on every change to the session.
func (s *Session) Revision() uint64 { return s.revision }

// Err returns the error from the most recent failed reply, if any.
func (s *Session) Err() error { return s.err }

// ErrModel returns the model the failed request addressed, which may differ
// from Model after a switch.
func (s *Session) ErrModel() string {
	if s.errModel == "" {
		return s.model
	}
	return s.errModel
}

// Model returns the model new submissions are addressed to.
func (s *Session) Model() string { return s.model }

// SystemPrompt returns the prompt prepended to each request.
func (s *Session) SystemPrompt() string { return s.systemPrompt }

// Pending returns the number of replies still awaited in this chat.
func (s *Session) Pending() int {
	n := 0
	for _, m := range s.transcript.messages {
		if m.Pending {
			n++
		}
	}
	return n
}

// OnChange registers fn to run after every change. Only one listener is
// kept; nil removes it.
func (s *Session) OnChange(fn func()) {
	s.onChange = fn
}

// =============================================================================
// MUTATIONS
// =============================================================================

// SetModel changes the model used for later submissions.
func (s *Session) SetModel(model string) {
	if model == s.model {
		return
	}
	s.model = model
	s.changed()
}

// SetSystemPrompt changes the system prompt used for later submissions.
func (s *Session) SetSystemPrompt(prompt string) {
	if prompt == s.systemPrompt {
		return
	}
	s.systemPrompt = prompt
	s.changed()
}

// Submit records text as a user message, adds a pending placeholder for the
// reply, and returns the relay job that will produce it. The job carries the
// full history including text. Input is NFC-normalised and trimmed.
func (s *Session) Submit(text string) (relay.Job, error) {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return relay.Job{}, ErrEmptyInput
	}

	s.transcript.Append(RoleUser, text)
	job := relay.Job{
		ID:       uuid.NewString(),
		Epoch:    s.epoch,
		Model:    s.model,
		Messages: s.transcript.ToOllama(s.systemPrompt),
	}

	placeholder := NewMessage(RoleAssistant, "")
	placeholder.Pending = true
	placeholder.JobID = job.ID
	s.transcript.appendMessage(placeholder)

	s.err, s.errModel = nil, ""
	s.changed()
	return job, nil
}

// Abandon removes the placeholder for a job that never reached the relay.
// The user message stays so it can be seen and resent.
func (s *Session) Abandon(jobID string, err error) {
	if i := s.transcript.indexOfJob(jobID); i >= 0 {
		s.transcript.remove(i)
	}
	s.err, s.errModel = err, s.model
	s.changed()
}

// AppendToken adds streamed text to the matching placeholder. It reports
// whether the token was applied; tokens for an older epoch or an unknown
// job are dropped.
func (s *Session) AppendToken(tok relay.Token) bool {
	if tok.Epoch != s.epoch {
		return false
	}
	i := s.transcript.indexOfJob(tok.JobID)
	if i < 0 {
		return false
	}
	s.transcript.messages[i].Content += tok.Content
	s.changed()
	return true
}

// Resolve completes the placeholder for res.JobID. On success the
// placeholder becomes the assistant reply. On failure the placeholder is
// removed and the error is kept for display. Results for an older epoch
// or an unknown job are dropped and Resolve reports false.
func (s *Session) Resolve(res relay.Result) bool {
	if res.Epoch != s.epoch {
		return false
	}
	i := s.transcript.indexOfJob(res.JobID)
	if i < 0 {
		return false
	}

	if res.Err != nil {
		s.transcript.remove(i)
		s.err, s.errModel = res.Err, res.Model
		s.changed()
		return true
	}

	msg := &s.transcript.messages[i]
	if res.Content != "" || msg.Content == "" {
		msg.Content = res.Content
	}
	msg.Pending = false
	s.changed()
	return true
}

// NewChat empties the transcript and starts a new epoch. Replies still in
// flight for the old chat will be dropped when they arrive. It returns the
// IDs of jobs that were pending so the caller can cancel them.
func (s *Session) NewChat() []string {
	var pending []string
	for _, m := range s.transcript.messages {
		if m.Pending {
			pending = append(pending, m.JobID)
		}
	}

	s.transcript.Reset()
	s.epoch++
	s.err, s.errModel = nil, ""
	s.changed()
	return pending
}

// ClearError dismisses the visible error.
func (s *Session) ClearError() {
	if s.err == nil {
		return
	}
	s.err, s.errModel = nil, ""
	s.changed()
}

func (s *Session) changed() {
	s.revision++
	if s.onChange != nil {
		s.onChange()
	}
}
