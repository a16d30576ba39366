// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/kele/internal/ui/styles"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the one-line title bar: title and greeting on the left, the
// new-chat button on the right.
type Header struct {
	Title    string
	Greeting string
	Width    int
	Button   *IconButton

	theme *styles.Theme
}

// NewHeader creates a header with the default title.
func NewHeader(theme *styles.Theme, greeting string, button *IconButton) *Header {
	return &Header{
		Title:    "kele",
		Greeting: greeting,
		Width:    80,
		Button:   button,
		theme:    theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// Height is the number of rows View produces.
func (h *Header) Height() int {
	return 1
}

// View renders the header. It also positions the button for hit-testing;
// the header is assumed to be drawn on row 0.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	pad := h.theme.Header.GetHorizontalPadding()
	inner := width - pad

	var button string
	buttonWidth := 0
	if h.Button != nil {
		h.Button.Compact = h.theme.IsNarrow()
		button = h.Button.View()
		buttonWidth = h.Button.Width()
	}

	left := h.theme.HeaderTitle.Render(h.Title)
	leftWidth := runewidth.StringWidth(h.Title)
	if h.Greeting != "" {
		room := inner - buttonWidth - leftWidth - 3
		if room > 0 {
			greeting := runewidth.Truncate(h.Greeting, room, "...")
			left += "  " + h.theme.HeaderGreeting.Render(greeting)
			leftWidth += 2 + runewidth.StringWidth(greeting)
		}
	}

	gap := inner - leftWidth - buttonWidth
	if gap < 1 {
		gap = 1
	}
	if h.Button != nil {
		h.Button.SetPosition(pad/2+leftWidth+gap, 0)
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), button)
	return h.theme.Header.Width(width).MaxWidth(width).Render(line)
}
