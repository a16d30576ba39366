// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the kele command line.
//
// Commands:
//
//	kele                 start the chat screen (needs a terminal)
//	kele ask [prompt]    ask one question; the prompt may come from stdin
//	kele repl            line-mode chat
//	kele models          list local models
//	kele config ...      inspect or edit ~/.kele/config.toml
//
// Every command loads configuration the same way: built-in defaults, the
// config file, KELE_* environment variables, then flags.
package cli
