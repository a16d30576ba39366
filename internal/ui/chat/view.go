// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/kele/internal/ollama"
	"github.com/jeranaias/kele/internal/relay"
)

// View renders the chat screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	parts := []string{m.header.View(), m.renderMessages()}
	if line := m.renderError(); line != "" {
		parts = append(parts, line)
	}
	parts = append(parts, m.renderInput(), m.status.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderMessages pads the viewport to its full height so the input bar
// stays anchored to the bottom.
func (m Model) renderMessages() string {
	return lipgloss.NewStyle().
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		Render(m.viewport.View())
}

func (m Model) renderInput() string {
	w := m.width - m.theme.InputContainer.GetHorizontalFrameSize()
	return m.theme.InputContainer.Width(w).Render(m.input.View())
}

// renderError renders the failure of the last request, or a notice.
func (m Model) renderError() string {
	var text string
	switch {
	case m.session.Err() != nil:
		text = ErrorText(m.session.Err(), m.session.ErrModel())
	case m.notice != "":
		text = m.notice
	default:
		return ""
	}

	hint := m.keyMap.Cancel.Help().Key + " to dismiss"
	line := m.theme.ErrorStyle.Render(" "+text+" ") + " " + m.theme.ErrorHint.Render(hint)
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

// ErrorText turns a request failure into a short message for the user.
func ErrorText(err error, modelName string) string {
	switch {
	case errors.Is(err, relay.ErrQueueFull):
		return "Too many messages waiting. Try again in a moment."
	case errors.Is(err, relay.ErrRateLimited):
		return "Sending too fast. Wait a moment and try again."
	case errors.Is(err, relay.ErrStopped):
		return "Shutting down."
	case errors.Is(err, relay.ErrHandlerPanic):
		return "Something went wrong while answering."
	case ollama.IsNotRunning(err):
		return "Can't reach Ollama. Is `ollama serve` running?"
	case ollama.IsModelNotFound(err):
		return fmt.Sprintf("Model %q not found. Try `ollama pull %s`.", modelName, modelName)
	case ollama.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return "The model took too long to answer."
	case errors.Is(err, context.Canceled), errors.Is(err, ollama.ErrCanceled):
		return "Request canceled."
	default:
		return err.Error()
	}
}
