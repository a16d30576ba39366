// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/relay"
	"github.com/jeranaias/kele/internal/ui/components"
)

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	force := false

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		force = true

	case tea.KeyMsg:
		cmd, handled := m.handleKey(msg)
		if handled {
			m.refresh(force)
			return m, cmd
		}
		var inputCmd tea.Cmd
		m.input, inputCmd = m.input.Update(msg)
		cmds = append(cmds, inputCmd)

	case tea.MouseMsg:
		if m.button.HandleMouse(msg) {
			m.newChat()
		} else {
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			cmds = append(cmds, vpCmd)
		}

	case relay.Token:
		m.session.AppendToken(msg)

	case relay.Result:
		m.handleResult(msg)

	case spinner.TickMsg:
		if m.session.Pending() == 0 {
			m.spinning = false
			break
		}
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		cmds = append(cmds, spCmd)
		force = true

	case OllamaStatusMsg:
		m.offline = !msg.Running
		if msg.Err != nil {
			m.log.Warn("ollama health check failed", "error", msg.Err)
		}

	case ConfigReloadedMsg:
		m.applyConfig(msg)

	case buttonReleaseMsg:
		m.button.SetState(components.ButtonNormal)
	}

	cmds = append(cmds, m.startSpinner())
	m.syncStatus()
	m.refresh(force)
	return m, tea.Batch(cmds...)
}

// handleKey runs chat-level shortcuts. It reports false for keys that
// belong to the input bar.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return tea.Quit, true

	case m.button.Matches(msg):
		m.newChat()
		m.button.SetState(components.ButtonPressed)
		m.syncStatus()
		return releaseButtonCmd(), true

	case key.Matches(msg, m.keyMap.Submit):
		m.submit()
		cmd := m.startSpinner()
		m.syncStatus()
		return cmd, true

	case key.Matches(msg, m.keyMap.Cancel):
		m.cancel()
		m.syncStatus()
		return nil, true

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.ViewUp()
		return nil, true
	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.ViewDown()
		return nil, true
	case key.Matches(msg, m.keyMap.Top):
		m.viewport.GotoTop()
		return nil, true
	case key.Matches(msg, m.keyMap.Bottom):
		m.viewport.GotoBottom()
		return nil, true
	}
	return nil, false
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit sends the input text to the relay. Blank input is ignored.
func (m *Model) submit() {
	job, err := m.session.Submit(m.input.Value())
	if errors.Is(err, model.ErrEmptyInput) {
		return
	}
	m.input.Reset()

	if m.relay == nil {
		m.session.Abandon(job.ID, relay.ErrStopped)
		return
	}
	if _, err := m.relay.Submit(job); err != nil {
		m.log.Warn("relay rejected job", "job", job.ID, "error", err)
		m.session.Abandon(job.ID, err)
		return
	}
	m.log.Debug("submitted", "job", job.ID, "epoch", job.Epoch, "messages", len(job.Messages))

	m.refresh(true)
	m.viewport.GotoBottom()
}

// newChat clears the transcript and cancels replies still in flight.
func (m *Model) newChat() {
	pending := m.session.NewChat()
	if m.relay != nil {
		for _, id := range pending {
			m.relay.Cancel(id)
		}
	}
	m.chatLog.Reset()
	m.input.Reset()
	m.notice = ""
	m.log.Info("new chat", "epoch", m.session.Epoch(), "canceled", len(pending))
}

// cancel dismisses a visible error, or cancels pending replies when there
// is none.
func (m *Model) cancel() {
	if m.session.Err() != nil || m.notice != "" {
		m.session.ClearError()
		m.notice = ""
		return
	}
	if m.relay == nil {
		return
	}
	for _, msg := range m.session.Messages() {
		if msg.Pending {
			m.relay.Cancel(msg.JobID)
		}
	}
}

// handleResult folds a finished job into the session.
func (m *Model) handleResult(res relay.Result) {
	if !m.session.Resolve(res) {
		m.log.Debug("dropped stale result", "job", res.JobID, "epoch", res.Epoch)
		return
	}
	if res.Err != nil {
		m.log.Warn("reply failed", "job", res.JobID, "error", res.Err)
		return
	}
	m.offline = false
	m.log.Debug("reply", "job", res.JobID, "queued", res.Queued, "elapsed", res.Elapsed)
}

// applyConfig applies the live-reloadable settings.
func (m *Model) applyConfig(msg ConfigReloadedMsg) {
	if msg.Err != nil {
		m.notice = "config reload failed: " + msg.Err.Error()
		return
	}
	cfg := msg.Config
	m.session.SetModel(cfg.Ollama.Model)
	m.session.SetSystemPrompt(cfg.Ollama.SystemPrompt)
	m.header.Greeting = cfg.UI.Greeting
	m.input.Placeholder = cfg.UI.Placeholder
	m.chatLog.Markdown = cfg.UI.Markdown
	m.notice = ""
}

// syncStatus copies session and relay state into the status bar.
func (m *Model) syncStatus() {
	m.status.Model = m.session.Model()
	if m.relay != nil {
		m.status.Queued = m.relay.Pending()
		m.status.Running = m.relay.Running()
	}

	switch {
	case m.session.Pending() > 0:
		m.status.Status = components.StatusThinking
		if last, ok := m.session.Transcript().Last(); ok && last.Pending && last.Content != "" {
			m.status.Status = components.StatusStreaming
		}
	case m.session.Err() != nil || m.notice != "":
		m.status.Status = components.StatusError
	case m.offline:
		m.status.Status = components.StatusOffline
	default:
		m.status.Status = components.StatusReady
	}
}
