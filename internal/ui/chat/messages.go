// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/kele/internal/config"
)

// Replies and streamed tokens arrive as relay.Result and relay.Token
// straight from the relay's dispatcher. The messages below cover the rest.

// =============================================================================
// OLLAMA MESSAGES
// =============================================================================

// OllamaStatusMsg reports the result of a health check.
type OllamaStatusMsg struct {
	Running bool
	Err     error
}

// Pinger checks that the model server is reachable.
type Pinger interface {
	CheckRunning(ctx context.Context) error
}

// CheckOllamaCmd creates a command that checks if Ollama is running.
func CheckOllamaCmd(p Pinger) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := p.CheckRunning(ctx)
		return OllamaStatusMsg{Running: err == nil, Err: err}
	}
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg carries a reloaded configuration. Config is nil when
// the reload failed.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// UI MESSAGES
// =============================================================================

// buttonReleaseMsg returns the new-chat button to its normal state after a
// keyboard-triggered flash.
type buttonReleaseMsg struct{}

const buttonFlash = 150 * time.Millisecond

func releaseButtonCmd() tea.Cmd {
	return tea.Tick(buttonFlash, func(time.Time) tea.Msg {
		return buttonReleaseMsg{}
	})
}
