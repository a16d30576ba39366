// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"

	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/ui/styles"
)

// =============================================================================
// CHAT LOG COMPONENT
// =============================================================================

// ChatLog renders a transcript as a column of labelled message blocks.
// Settled assistant replies are rendered as markdown; everything else is
// wrapped plain text.
type ChatLog struct {
	Width    int
	Markdown bool

	theme    *styles.Theme
	renderer *glamour.TermRenderer
	rendered map[string]string // settled assistant message ID -> markdown output
	rWidth   int
}

// NewChatLog creates a chat log.
func NewChatLog(theme *styles.Theme, markdown bool) *ChatLog {
	return &ChatLog{
		Width:    80,
		Markdown: markdown,
		theme:    theme,
		rendered: make(map[string]string),
	}
}

// SetWidth updates the width messages are wrapped to.
func (c *ChatLog) SetWidth(width int) {
	c.Width = width
}

// Reset drops cached markdown output, e.g. after a new chat.
func (c *ChatLog) Reset() {
	clear(c.rendered)
}

// contentWidth is the width left for message text inside a bubble.
func (c *ChatLog) contentWidth() int {
	w := c.Width - c.theme.AssistantBubble.GetHorizontalFrameSize()
	if w < 10 {
		w = 10
	}
	return w
}

// Render renders every message. spinner is drawn beside pending replies.
func (c *ChatLog) Render(messages []model.Message, spinner string) string {
	if len(messages) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		blocks = append(blocks, c.renderMessage(m, spinner))
	}
	return strings.Join(blocks, "\n\n")
}

func (c *ChatLog) renderMessage(m model.Message, spinner string) string {
	label := c.theme.AssistantLabel.Render(m.Role.DisplayName())
	bubble := c.theme.AssistantBubble
	if m.Role == model.RoleUser {
		label = c.theme.UserLabel.Render(m.Role.DisplayName())
		bubble = c.theme.UserBubble
	}
	header := label + " " + c.theme.Timestamp.Render(m.Timestamp.Format("15:04"))

	var body string
	switch {
	case m.Pending && m.Content == "":
		body = spinner + " " + c.theme.ThinkingText.Render(m.DisplayContent())
	case m.Pending:
		body = wrapText(m.Content, c.contentWidth()) + " " + spinner
	case m.Role == model.RoleAssistant && c.Markdown:
		body = c.markdown(m)
	default:
		body = wrapText(m.Content, c.contentWidth())
	}

	return header + "\n" + bubble.Render(body)
}

// markdownStyle picks the glamour style from the theme's background, which
// is probed once before the program takes over the terminal.
func (c *ChatLog) markdownStyle() string {
	if c.theme.IsDark {
		return glamourstyles.DarkStyle
	}
	return glamourstyles.LightStyle
}

// markdown renders a settled assistant reply, falling back to wrapped text
// when glamour fails.
func (c *ChatLog) markdown(m model.Message) string {
	width := c.contentWidth()
	if c.renderer == nil || c.rWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(c.markdownStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return wrapText(m.Content, width)
		}
		c.renderer, c.rWidth = r, width
		clear(c.rendered)
	}

	if out, ok := c.rendered[m.ID]; ok {
		return out
	}
	out, err := c.renderer.Render(m.Content)
	if err != nil {
		return wrapText(m.Content, width)
	}
	out = strings.Trim(out, "\n")
	c.rendered[m.ID] = out
	return out
}
