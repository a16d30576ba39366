// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat screen for the kele TUI.

The screen is a single Bubble Tea model stacked top to bottom:

  - Header: title, greeting and the new-chat icon button
  - Chat log: a scrollable viewport that follows new output
  - Error line: shown while the last request's failure is unacknowledged
  - Input bar: submits on Enter
  - Status bar: model, relay queue and key hints

# Data Flow

The Model owns a model.Session and is its only writer. Submitting text
turns it into a relay.Job; the relay runs the model call on a worker and
dispatches relay.Token and relay.Result values back to the program, where
Update folds them into the session. The viewport is re-rendered whenever
the session revision moves.

# Usage

	var p *tea.Program
	r := relay.New(handler, func(msg any) { p.Send(msg) }, relay.Options{})
	m := chat.New(chat.Options{Session: sess, Relay: r})
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	r.Start(ctx)
	_, err := p.Run()
*/
package chat
