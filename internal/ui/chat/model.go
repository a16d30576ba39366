// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/relay"
	"github.com/jeranaias/kele/internal/ui/components"
	"github.com/jeranaias/kele/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Relay is the part of *relay.Relay the chat screen uses.
type Relay interface {
	Submit(job relay.Job) (string, error)
	Cancel(id string) bool
	Pending() int
	Running() int
}

// Options configures a chat screen.
type Options struct {
	Theme   *styles.Theme
	Session *model.Session
	Relay   Relay

	// Pinger is checked once at startup. Optional.
	Pinger Pinger

	Greeting    string
	Placeholder string
	Markdown    bool

	Logger *slog.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	theme   *styles.Theme
	session *model.Session
	relay   Relay
	pinger  Pinger
	log     *slog.Logger

	// Dimensions
	width  int
	height int

	// UI Components
	header   *components.Header
	button   *components.IconButton
	chatLog  *components.ChatLog
	status   *components.StatusBar
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	keyMap KeyMap

	// spinning is true while spinner ticks are scheduled.
	spinning bool
	// renderedRev is the session revision the viewport last showed.
	renderedRev uint64
	offline     bool
	notice      string
}

// New creates a chat screen.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	sess := opts.Session
	if sess == nil {
		sess = model.NewSession("", "")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	placeholder := opts.Placeholder
	if placeholder == "" {
		placeholder = "Message Kele"
	}

	keys := DefaultKeyMap()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.PromptStyle = theme.InputPrompt
	ti.TextStyle = theme.InputText
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	sp := spinner.New(
		spinner.WithSpinner(styles.LineSpinner.Bubble()),
		spinner.WithStyle(theme.Spinner),
	)

	button := components.NewIconButton(theme, "+", "New chat", keys.NewChat)
	status := components.NewStatusBar(theme)
	status.Model = sess.Model()
	status.Hints = hintLine(keys.ShortHelp())

	return Model{
		theme:    theme,
		session:  sess,
		relay:    opts.Relay,
		pinger:   opts.Pinger,
		log:      logger.With("component", "chat"),
		header:   components.NewHeader(theme, opts.Greeting, button),
		button:   button,
		chatLog:  components.NewChatLog(theme, opts.Markdown),
		status:   status,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		keyMap:   keys,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and, when a pinger is set, a health check.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.pinger != nil {
		cmds = append(cmds, CheckOllamaCmd(m.pinger))
	}
	return tea.Batch(cmds...)
}

// Session returns the chat session.
func (m Model) Session() *model.Session {
	return m.session
}

// =============================================================================
// LAYOUT
// =============================================================================

// inputHeight is the number of rows the input bar occupies.
func (m Model) inputHeight() int {
	return 1 + m.theme.InputContainer.GetVerticalFrameSize()
}

// errorHeight is 1 while an error or notice is shown.
func (m Model) errorHeight() int {
	if m.session.Err() != nil || m.notice != "" {
		return 1
	}
	return 0
}

// layout sizes every component from the window dimensions.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.theme.SetSize(m.width, m.height)
	m.header.SetWidth(m.width)
	m.status.SetWidth(m.width)
	m.chatLog.SetWidth(m.width)

	m.input.Width = m.width - len(m.input.Prompt) - m.theme.InputContainer.GetHorizontalFrameSize() - 1
	if m.input.Width < 1 {
		m.input.Width = 1
	}

	h := m.height - m.header.Height() - m.inputHeight() - m.errorHeight() - 1
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

// refresh re-renders the chat log into the viewport. It follows the bottom
// unless the user has scrolled away from it.
func (m *Model) refresh(force bool) {
	m.layout()
	rev := m.session.Revision()
	if !force && rev == m.renderedRev {
		return
	}
	follow := m.viewport.AtBottom()
	m.renderedRev = rev

	m.viewport.SetContent(m.chatLog.Render(m.session.Messages(), m.spinner.View()))
	if follow {
		m.viewport.GotoBottom()
	}
}

// startSpinner schedules spinner ticks if a reply is pending and ticks
// are not already running.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || m.session.Pending() == 0 {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}
