// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/relay"
)

// ErrNoPrompt is returned when ask gets neither an argument nor stdin.
var ErrNoPrompt = errors.New("no prompt given")

func newAskCmd(flags *globalFlags) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Ask a single question",
		Long: `Ask sends one question and prints the reply.

The prompt is taken from the arguments, or from stdin when no arguments are
given. When stdout is a terminal the reply streams in and is then shown as
rendered markdown; otherwise the plain text is written as it arrives.`,
		Example: `  kele ask "What is a goroutine?"
  git diff | kele ask
  kele ask --raw "Write a haiku" > haiku.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runAsk(cmd, flags, prompt, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print plain text even on a terminal")
	return cmd
}

// readPrompt joins args, or reads in when there are none and in is not a
// terminal.
func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.Join(args, " ")
	if prompt == "" && !isTerminal(in) {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrNoPrompt
	}
	return prompt, nil
}

func runAsk(cmd *cobra.Command, flags *globalFlags, prompt string, raw bool) error {
	e, err := setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	pretty := !raw && e.cfg.UI.Markdown && isTerminal(out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ch := make(chan any, 64)
	r := e.newRelay(relay.ChanDispatcher(ch))
	r.Start(ctx)
	defer r.Stop()

	sess := model.NewSession(e.cfg.Ollama.Model, e.cfg.Ollama.SystemPrompt)

	streamed := false
	reply, err := exchange(ctx, sess, r, ch, prompt, func(tok string) {
		streamed = true
		fmt.Fprint(out, tok)
	})
	if err != nil {
		if streamed {
			fmt.Fprintln(out)
		}
		return err
	}

	switch {
	case pretty:
		if streamed {
			// Replace the raw stream with the rendered reply.
			clearLines(out, reply.Content)
		}
		return renderMarkdown(out, reply.Content)
	case streamed:
		fmt.Fprintln(out)
	default:
		fmt.Fprintln(out, reply.Content)
	}
	return nil
}

// renderMarkdown writes content through glamour, falling back to plain
// text.
func renderMarkdown(w io.Writer, content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth(w)-2),
	)
	if err == nil {
		var rendered string
		if rendered, err = r.Render(content); err == nil {
			_, err = fmt.Fprint(w, rendered)
			return err
		}
	}
	_, err = fmt.Fprintln(w, content)
	return err
}

// clearLines moves the cursor up over the lines streamed content occupied
// and clears them.
func clearLines(w io.Writer, content string) {
	rows := screenRows(content, terminalWidth(w))
	if rows > 1 {
		fmt.Fprintf(w, "\033[%dA", rows-1)
	}
	fmt.Fprint(w, "\r\033[J")
}

// screenRows counts the terminal rows content fills at width, counting
// soft wraps.
func screenRows(content string, width int) int {
	if width < 1 {
		width = DefaultTerminalWidth
	}
	rows := 0
	for _, line := range strings.Split(content, "\n") {
		rows += max(1, (runewidth.StringWidth(line)+width-1)/width)
	}
	return rows
}
