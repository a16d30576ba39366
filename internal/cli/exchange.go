// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/jeranaias/kele/internal/model"
	"github.com/jeranaias/kele/internal/relay"
)

// exchange submits text through the relay and waits for the reply. Tokens
// are passed to onToken as they stream in. When ctx ends the job is
// cancelled and exchange still waits for its result, so the session never
// keeps a dangling placeholder.
//
// ch must be the channel the relay dispatches to, and this goroutine must
// be its only reader.
func exchange(ctx context.Context, sess *model.Session, r *relay.Relay, ch <-chan any, text string, onToken func(string)) (model.Message, error) {
	job, err := sess.Submit(text)
	if err != nil {
		return model.Message{}, err
	}
	if _, err := r.Submit(job); err != nil {
		sess.Abandon(job.ID, err)
		return model.Message{}, err
	}

	done := ctx.Done()
	for {
		select {
		case <-done:
			r.Cancel(job.ID)
			done = nil

		case msg := <-ch:
			switch v := msg.(type) {
			case relay.Token:
				if sess.AppendToken(v) && v.JobID == job.ID && onToken != nil {
					onToken(v.Content)
				}
			case relay.Result:
				sess.Resolve(v)
				if v.JobID != job.ID {
					continue
				}
				if v.Err != nil {
					return model.Message{}, v.Err
				}
				last, _ := sess.Transcript().Last()
				return last, nil
			}
		}
	}
}
