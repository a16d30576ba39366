// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/kele/internal/ui/styles"
)

// =============================================================================
// ICON BUTTON COMPONENT
// =============================================================================

// ButtonState is the visual state of an IconButton.
type ButtonState int

const (
	ButtonNormal ButtonState = iota
	ButtonHover
	ButtonPressed
)

// IconButton is a clickable glyph with an optional label and a keyboard
// shortcut. It is positioned by its parent, which reports the cell it was
// drawn at through SetPosition so mouse events can be hit-tested.
type IconButton struct {
	Icon    string
	Label   string
	Binding key.Binding

	// Compact hides the label and shortcut hint.
	Compact bool

	state ButtonState
	x, y  int
	theme *styles.Theme
}

// NewIconButton creates an icon button. The label may be empty.
func NewIconButton(theme *styles.Theme, icon, label string, binding key.Binding) *IconButton {
	return &IconButton{
		Icon:    icon,
		Label:   label,
		Binding: binding,
		theme:   theme,
	}
}

// text returns the unstyled button content.
func (b *IconButton) text() string {
	s := b.Icon
	if b.Compact || b.Label == "" {
		return s
	}
	s += " " + b.Label
	if h := b.Binding.Help().Key; h != "" {
		s += " (" + h + ")"
	}
	return s
}

// Width returns the rendered width in terminal cells, including padding.
func (b *IconButton) Width() int {
	return runewidth.StringWidth(b.text()) + b.theme.IconButton.GetHorizontalPadding()
}

// SetPosition records the top-left cell the button is drawn at.
func (b *IconButton) SetPosition(x, y int) {
	b.x, b.y = x, y
}

// Contains reports whether the cell (x, y) lies on the button.
func (b *IconButton) Contains(x, y int) bool {
	return y == b.y && x >= b.x && x < b.x+b.Width()
}

// State returns the current visual state.
func (b *IconButton) State() ButtonState {
	return b.state
}

// SetState forces a visual state, e.g. to flash the button when its
// shortcut is used.
func (b *IconButton) SetState(s ButtonState) {
	b.state = s
}

// Matches reports whether msg is the button's keyboard shortcut.
func (b *IconButton) Matches(msg tea.KeyMsg) bool {
	return key.Matches(msg, b.Binding)
}

// HandleMouse updates hover and pressed state and reports whether msg is a
// completed click on the button.
func (b *IconButton) HandleMouse(msg tea.MouseMsg) bool {
	inside := b.Contains(msg.X, msg.Y)

	switch msg.Type {
	case tea.MouseLeft:
		if inside {
			b.state = ButtonPressed
		}
		return false
	case tea.MouseRelease:
		clicked := inside && b.state == ButtonPressed
		if inside {
			b.state = ButtonHover
		} else {
			b.state = ButtonNormal
		}
		return clicked
	case tea.MouseMotion:
		if b.state == ButtonPressed {
			return false
		}
		if inside {
			b.state = ButtonHover
		} else {
			b.state = ButtonNormal
		}
	}
	return false
}

// View renders the button.
func (b *IconButton) View() string {
	style := b.theme.IconButton
	switch b.state {
	case ButtonHover:
		style = b.theme.IconButtonHover
	case ButtonPressed:
		style = b.theme.IconButtonPressed
	}
	return style.Render(b.text())
}
