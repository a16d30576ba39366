// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/relay"
	"github.com/jeranaias/kele/internal/ui/chat"
)

const replHelp = `Commands:
  /new           start a new chat
  /model [name]  show or switch the model
  /help          show this help
  /exit          quit (or Ctrl+D)`

func newReplCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Line-mode chat",
		Long: `Repl is a plain line-by-line chat for terminals where the full chat
screen is unwanted. Ctrl+C cancels a reply in progress; Ctrl+D quits.
Input history lasts for the session only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(flags)
			if err != nil {
				return err
			}
			defer e.Close()

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			return runRepl(cmd.Context(), e, line, cmd.OutOrStdout())
		},
	}
}

// lineReader is the part of *liner.State the loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// runRepl reads lines until EOF or /exit and sends each one as a chat
// message.
func runRepl(ctx context.Context, e *env, in lineReader, out io.Writer) error {
	setColorProfile(out)

	ch := make(chan any, 64)
	r := e.newRelay(relay.ChanDispatcher(ch))
	r.Start(ctx)
	defer r.Stop()

	sess := model.NewSession(e.cfg.Ollama.Model, e.cfg.Ollama.SystemPrompt)
	fmt.Fprintln(out, titleStyle.Render("kele")+" "+dimStyle.Render(e.cfg.UI.Greeting+"  (/help for commands)"))

	for {
		input, err := in.Prompt("kele> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !replCommand(sess, input, out) {
				return nil
			}
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		streamed := false
		reply, err := exchange(turnCtx, sess, r, ch, input, func(tok string) {
			if !streamed {
				fmt.Fprint(out, promptStyle.Render("Kele:")+" ")
				streamed = true
			}
			fmt.Fprint(out, tok)
		})
		stop()

		switch {
		case err != nil:
			if streamed {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, errorStyle.Render("Error:"), chat.ErrorText(err, sess.ErrModel()))
			sess.ClearError()
		case streamed:
			fmt.Fprintln(out)
		default:
			fmt.Fprintln(out, promptStyle.Render("Kele:"), reply.Content)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// replCommand runs a slash command and reports whether the loop should
// continue.
func replCommand(sess *model.Session, input string, out io.Writer) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/exit", "/quit":
		return false
	case "/new":
		sess.NewChat()
		fmt.Fprintln(out, dimStyle.Render("New chat."))
	case "/model":
		if len(fields) > 1 {
			sess.SetModel(fields[1])
		}
		fmt.Fprintln(out, dimStyle.Render("Model: "+sess.Model()))
	case "/help":
		fmt.Fprintln(out, replHelp)
	default:
		fmt.Fprintln(out, errorStyle.Render("Unknown command:"), fields[0])
	}
	return true
}
