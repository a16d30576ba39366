// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat transcript and the session state built
// on top of it.
//
// # Key Types
//
//   - Message: one transcript entry with role, content, ID and timestamp
//   - Transcript: ordered message list, converted to Ollama form per request
//   - Session: single-writer chat state with pending replies and an epoch
//   - Role: user, assistant or system
//
// # Usage
//
//	s := model.NewSession("deepseek-r1", "")
//	job, err := s.Submit("Hello")
//	if err == nil {
//	    _, err = r.Submit(job)
//	}
//	// later, on the same goroutine:
//	s.Resolve(result)
//
// Nothing in this package is persisted. A transcript lives as long as the
// screen that owns it.
package model
