// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/kele/internal/config"
	"github.com/jeranaias/kele/internal/logging"
	"github.com/jeranaias/kele/internal/ollama"
	"github.com/jeranaias/kele/internal/relay"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	model      string
	ollamaURL  string
	canned     string
	logLevel   string
}

// NewRootCmd builds the kele command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "kele",
		Short: "Chat with a local Ollama model in the terminal",
		Long: `kele is a terminal chat client for a local Ollama server.

Run it without arguments to open the chat screen.

Examples:
  kele                          Open the chat screen
  kele ask "What is a goroutine?"
  echo "Summarise this" | kele ask
  kele repl --model llama3.2    Line-mode chat
  kele --canned yes             Answer everything with "yes" (no server)`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.kele/config.toml)")
	pf.StringVarP(&flags.model, "model", "m", "", "model to use")
	pf.StringVar(&flags.ollamaURL, "ollama-url", "", "Ollama server URL")
	pf.StringVar(&flags.canned, "canned", "", "answer every message with this text instead of calling the model")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newAskCmd(flags),
		newReplCmd(flags),
		newModelsCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		setColorProfile(os.Stderr)
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintln(os.Stderr, dimStyle.Render("Fix the config file or run `kele config path` to find it."))
		}
		os.Exit(1)
	}
}

// =============================================================================
// RUNTIME
// =============================================================================

// env is what every command needs once flags and config are resolved.
type env struct {
	cfg    *config.Config
	path   string
	log    *slog.Logger
	closer io.Closer
	client *ollama.Client
}

// Close flushes the log file.
func (e *env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	path := flags.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, path, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *config.Config, flags *globalFlags) {
	if flags.model != "" {
		cfg.Ollama.Model = flags.model
	}
	if flags.ollamaURL != "" {
		cfg.Ollama.URL = flags.ollamaURL
	}
	if flags.canned != "" {
		cfg.Ollama.CannedReply = flags.canned
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
}

// setup resolves configuration, starts logging and builds the client.
func setup(flags *globalFlags) (*env, error) {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, dimStyle.Render("warning: logging disabled: "+err.Error()))
	}
	logger.Info("starting", "version", Version, "config", path, "model", cfg.Ollama.Model)

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.URL,
		Timeout:      cfg.Ollama.Timeout,
		DefaultModel: cfg.Ollama.Model,
		Options: &ollama.Options{
			Temperature: cfg.Ollama.Temperature,
			TopP:        cfg.Ollama.TopP,
			NumCtx:      cfg.Ollama.NumCtx,
			NumPredict:  cfg.Ollama.NumPredict,
		},
		Logger: logger,
	})

	return &env{cfg: cfg, path: path, log: logger, closer: closer, client: client}, nil
}

// handler picks the relay handler for the configuration.
func (e *env) handler() relay.Handler {
	switch {
	case e.cfg.Ollama.CannedReply != "":
		return relay.CannedHandler(e.cfg.Ollama.CannedReply)
	case e.cfg.Ollama.Stream:
		return relay.StreamingHandler(e.client, e.log)
	default:
		return relay.ChatHandler(e.client)
	}
}

// newRelay builds a relay from the [relay] section.
func (e *env) newRelay(dispatch relay.Dispatcher) *relay.Relay {
	rc := e.cfg.Relay
	return relay.New(e.handler(), dispatch, relay.Options{
		Workers:    rc.Workers,
		QueueDepth: rc.QueueDepth,
		Timeout:    rc.RequestTimeout,
		Rate:       rc.SubmitRate,
		Burst:      rc.SubmitBurst,
		Logger:     e.log,
	})
}
