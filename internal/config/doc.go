// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for kele.
//
// Configuration is read from ~/.kele/config.toml. Precedence, lowest first:
//
//   - Built-in defaults
//   - The TOML file (a missing file is not an error)
//   - KELE_* environment variables
//   - Command-line flags, applied by the caller
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    var verrs config.ValidationErrors
//	    if errors.As(err, &verrs) { ... }
//	}
//
// Watch reloads the file on change:
//
//	err := config.Watch(ctx, "", 0, func(cfg *config.Config, err error) { ... })
package config
