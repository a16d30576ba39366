// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/kele/internal/config"
	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/ui/chat"
	"github.com/jeranaias/kele/internal/ui/styles"
)

// ErrNoTerminal is returned when the chat screen is started without a TTY.
var ErrNoTerminal = errors.New("the chat screen needs a terminal; try `kele ask` or `kele repl`")

// runTUI opens the chat screen.
func runTUI(cmd *cobra.Command, flags *globalFlags) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return ErrNoTerminal
	}

	e, err := setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess := model.NewSession(e.cfg.Ollama.Model, e.cfg.Ollama.SystemPrompt)

	// The relay delivers on the program's event loop. p is assigned before
	// the relay starts, so no job can be dispatched before it exists.
	var p *tea.Program
	r := e.newRelay(func(msg any) { p.Send(msg) })

	m := chat.New(chat.Options{
		Theme:       styles.NewTheme(),
		Session:     sess,
		Relay:       r,
		Pinger:      e.client,
		Greeting:    e.cfg.UI.Greeting,
		Placeholder: e.cfg.UI.Placeholder,
		Markdown:    e.cfg.UI.Markdown,
		Logger:      e.log,
	})

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if e.cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p = tea.NewProgram(m, opts...)

	r.Start(ctx)
	defer r.Stop()

	// Flags still win over a reloaded file.
	err = config.Watch(ctx, e.path, 0, func(cfg *config.Config, err error) {
		if cfg != nil {
			applyFlags(cfg, flags)
		}
		p.Send(chat.ConfigReloadedMsg{Config: cfg, Err: err})
	})
	if err != nil {
		e.log.Warn("config watch disabled", "error", err)
	}

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
