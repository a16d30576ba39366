// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/kele/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusThinking
	StatusStreaming
	StatusOffline
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusThinking:
		return "Thinking..."
	case StatusStreaming:
		return "Streaming..."
	case StatusOffline:
		return "Ollama offline"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// StatusBar is the bottom line: model, status, relay queue and key hints.
type StatusBar struct {
	Width   int
	Model   string
	Status  Status
	Queued  int // jobs waiting in the relay
	Running int // jobs inside a handler
	Hints   string

	theme *styles.Theme
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the status bar. Hints are dropped first when space runs out.
func (s *StatusBar) View() string {
	parts := []string{s.theme.StatusModel.Render(s.Model), s.Status.String()}
	plain := []string{s.Model, s.Status.String()}

	if s.Queued > 0 || s.Running > 1 {
		q := fmt.Sprintf("%d running, %d queued", s.Running, s.Queued)
		parts = append(parts, s.theme.StatusQueued.Render(q))
		plain = append(plain, q)
	}

	sep := " | "
	used := runewidth.StringWidth(strings.Join(plain, sep)) + s.theme.StatusBar.GetHorizontalPadding()
	line := strings.Join(parts, sep)

	if s.Hints != "" {
		gap := s.Width - used - runewidth.StringWidth(s.Hints)
		if gap >= 2 {
			line += strings.Repeat(" ", gap) + s.theme.StatusHint.Render(s.Hints)
		}
	}
	return s.theme.StatusBar.Width(s.Width).MaxWidth(s.Width).Render(line)
}
