// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual building blocks of the chat screen.
//
// # Key Types
//
//   - IconButton: glyph button with a shortcut and mouse hit-testing
//   - Header: title bar with the greeting and the new-chat button
//   - ChatLog: renders a transcript, with markdown for assistant replies
//   - StatusBar: model, relay queue and key hints
package components
