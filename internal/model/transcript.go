// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/jeranaias/kele/internal/ollama"
)

// Transcript is the ordered list of messages in one chat. It accepts any
// content: empty text, consecutive messages from the same role and
// unbounded growth are all allowed.
//
// A Transcript is not safe for concurrent use.
type Transcript struct {
	messages []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message and returns it.
func (t *Transcript) Append(role Role, content string) Message {
	msg := NewMessage(role, content)
	t.messages = append(t.messages, msg)
	return msg
}

// Reset clears the transcript in place.
func (t *Transcript) Reset() {
	clear(t.messages)
	t.messages = t.messages[:0]
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// UserMessages returns the user entries in submission order.
func (t *Transcript) UserMessages() []Message {
	var out []Message
	for _, m := range t.messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// ToOllama converts the transcript to the request form. A non-empty
// systemPrompt is prepended. Pending placeholders are left out.
func (t *Transcript) ToOllama(systemPrompt string) []ollama.Message {
	out := make([]ollama.Message, 0, len(t.messages)+1)
	if systemPrompt != "" {
		out = append(out, ollama.NewSystemMessage(systemPrompt))
	}
	for _, m := range t.messages {
		if m.Pending {
			continue
		}
		out = append(out, ollama.Message{Role: m.Role.String(), Content: m.Content})
	}
	return out
}

// indexOfJob returns the index of the pending placeholder for jobID, or -1.
func (t *Transcript) indexOfJob(jobID string) int {
	for i := range t.messages {
		if t.messages[i].Pending && t.messages[i].JobID == jobID {
			return i
		}
	}
	return -1
}

func (t *Transcript) appendMessage(msg Message) {
	t.messages = append(t.messages, msg)
}

func (t *Transcript) remove(i int) {
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
}
