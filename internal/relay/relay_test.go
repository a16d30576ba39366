// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/kele/internal/ollama"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestRelay(t *testing.T, h Handler, opts Options) (*Relay, chan any) {
	t.Helper()
	out := make(chan any, 64)
	r := New(h, ChanDispatcher(out), opts)
	t.Cleanup(r.Stop)
	return r, out
}

func nextResult(t *testing.T, out <-chan any) Result {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-out:
			if res, ok := msg.(Result); ok {
				return res
			}
		case <-deadline:
			t.Fatal("timed out waiting for result")
			return Result{}
		}
	}
}

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		return job.Messages[len(job.Messages)-1].Content, nil
	})
}

func jobFor(id, text string) Job {
	return Job{ID: id, Messages: []ollama.Message{ollama.NewUserMessage(text)}}
}

// =============================================================================
// ORDERING
// =============================================================================

func TestRelay_FIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		return job.ID, nil
	})

	r, out := newTestRelay(t, h, Options{})

	// Queue both before any worker exists so neither can overtake the other.
	_, err := r.Submit(jobFor("A", "first"))
	require.NoError(t, err)
	_, err = r.Submit(jobFor("B", "second"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Pending())

	r.Start(context.Background())

	first := nextResult(t, out)
	second := nextResult(t, out)
	assert.Equal(t, "A", first.JobID)
	assert.Equal(t, "B", second.JobID)
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestRelay_TokensPrecedeResult(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, job Job, emit Emit) (string, error) {
		emit("y")
		emit("")
		emit("es")
		return "yes", nil
	})
	r, out := newTestRelay(t, h, Options{})
	r.Start(context.Background())

	id, err := r.Submit(Job{Epoch: 3})
	require.NoError(t, err)
	require.NotEmpty(t, id, "empty ID is assigned")

	var tokens []string
	for msg := range out {
		switch m := msg.(type) {
		case Token:
			assert.Equal(t, id, m.JobID)
			assert.Equal(t, uint64(3), m.Epoch)
			tokens = append(tokens, m.Content)
		case Result:
			require.NoError(t, m.Err)
			assert.Equal(t, "yes", m.Content)
			assert.Equal(t, uint64(3), m.Epoch)
			assert.Equal(t, []string{"y", "es"}, tokens)
			return
		}
	}
}

// =============================================================================
// EMPTY RELAY
// =============================================================================

func TestRelay_EmptyDrainAndStop(t *testing.T) {
	r := New(echoHandler(), nil, Options{})

	assert.NoError(t, r.Drain(context.Background()))
	assert.Equal(t, 0, r.Pending())
	assert.NotPanics(t, r.Stop)
	assert.NotPanics(t, r.Stop, "Stop is idempotent")

	started := New(echoHandler(), nil, Options{Workers: 3})
	started.Start(context.Background())
	assert.NoError(t, started.Drain(context.Background()))
	assert.NotPanics(t, started.Stop)
}

func TestRelay_DrainWaitsForResults(t *testing.T) {
	release := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		<-release
		return "ok", nil
	})
	r, out := newTestRelay(t, h, Options{})
	r.Start(context.Background())

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Drain(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, r.Drain(context.Background()))
	assert.Equal(t, "ok", nextResult(t, out).Content)
}

// =============================================================================
// ERROR PATH
// =============================================================================

func TestRelay_HandlerError(t *testing.T) {
	boom := errors.New("connection refused")
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		return "", boom
	})
	r, out := newTestRelay(t, h, Options{})
	r.Start(context.Background())

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)

	res := nextResult(t, out)
	assert.ErrorIs(t, res.Err, boom)
	assert.False(t, res.Canceled())
	assert.Empty(t, res.Content)
}

func TestRelay_HandlerPanic(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		panic("nil map")
	})
	r, out := newTestRelay(t, h, Options{})
	r.Start(context.Background())

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	res := nextResult(t, out)
	assert.ErrorIs(t, res.Err, ErrHandlerPanic)
	assert.Contains(t, res.Err.Error(), "nil map")
}

func TestRelay_WorkerSurvivesPanic(t *testing.T) {
	calls := 0
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		calls++
		if calls == 1 {
			panic("first call")
		}
		return "second", nil
	})
	r, out := newTestRelay(t, h, Options{Workers: 1})

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	_, err = r.Submit(jobFor("B", "y"))
	require.NoError(t, err)
	r.Start(context.Background())

	assert.ErrorIs(t, nextResult(t, out).Err, ErrHandlerPanic)
	res := nextResult(t, out)
	require.NoError(t, res.Err)
	assert.Equal(t, "second", res.Content)
}

func TestRelay_Timeout(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r, out := newTestRelay(t, h, Options{Timeout: 20 * time.Millisecond})
	r.Start(context.Background())

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	res := nextResult(t, out)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

// =============================================================================
// CANCELLATION AND SHUTDOWN
// =============================================================================

func TestRelay_CancelQueuedJob(t *testing.T) {
	ran := make(chan string, 2)
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		ran <- job.ID
		return job.ID, nil
	})
	r, out := newTestRelay(t, h, Options{})

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	_, err = r.Submit(jobFor("B", "y"))
	require.NoError(t, err)

	assert.True(t, r.Cancel("B"))
	assert.False(t, r.Cancel("nope"))
	r.Start(context.Background())

	a := nextResult(t, out)
	b := nextResult(t, out)
	require.NoError(t, a.Err)
	assert.ErrorIs(t, b.Err, context.Canceled)
	assert.True(t, b.Canceled())
	assert.Zero(t, b.Elapsed, "cancelled job never ran")

	assert.Equal(t, "A", <-ran)
	assert.Empty(t, ran)
}

func TestRelay_CancelAll(t *testing.T) {
	running := make(chan struct{}, 1)
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		running <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	})
	r, out := newTestRelay(t, h, Options{})
	r.Start(context.Background())

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	<-running
	_, err = r.Submit(jobFor("B", "y"))
	require.NoError(t, err)

	assert.Equal(t, 2, r.CancelAll())
	assert.True(t, nextResult(t, out).Canceled())
	assert.True(t, nextResult(t, out).Canceled())

	// Still accepting work afterwards.
	_, err = r.Submit(jobFor("C", "z"))
	assert.NoError(t, err)
}

func TestRelay_StopCancelsInFlightAndFlushesQueue(t *testing.T) {
	running := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		close(running)
		<-ctx.Done()
		return "", ctx.Err()
	})
	r, out := newTestRelay(t, h, Options{})
	r.Start(context.Background())

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	<-running
	_, err = r.Submit(jobFor("B", "y"))
	require.NoError(t, err)

	r.Stop()

	results := map[string]Result{}
	for i := 0; i < 2; i++ {
		res := nextResult(t, out)
		results[res.JobID] = res
	}
	assert.ErrorIs(t, results["A"].Err, ErrStopped)
	assert.ErrorIs(t, results["A"].Err, context.Canceled)
	assert.ErrorIs(t, results["B"].Err, ErrStopped)

	_, err = r.Submit(jobFor("C", "z"))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRelay_StartContextCancels(t *testing.T) {
	running := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		close(running)
		<-ctx.Done()
		return "", ctx.Err()
	})
	r, out := newTestRelay(t, h, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	<-running
	cancel()

	assert.True(t, nextResult(t, out).Canceled())
}

func TestRelay_SubmitAfterStartContextDone(t *testing.T) {
	r, _ := newTestRelay(t, echoHandler(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		_, err := r.Submit(jobFor("A", "x"))
		return errors.Is(err, ErrStopped)
	}, 2*time.Second, 5*time.Millisecond)

	assert.NoError(t, r.Drain(context.Background()))
	assert.Equal(t, 0, r.Pending())
}

func TestRelay_StartContextDoneFlushesQueue(t *testing.T) {
	running := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, job Job, _ Emit) (string, error) {
		close(running)
		<-ctx.Done()
		return "", ctx.Err()
	})
	r, out := newTestRelay(t, h, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	<-running
	queued := jobFor("B", "y")
	queued.Model = "llama3.2"
	_, err = r.Submit(queued)
	require.NoError(t, err)

	cancel()

	results := map[string]Result{}
	for i := 0; i < 2; i++ {
		res := nextResult(t, out)
		results[res.JobID] = res
	}
	assert.ErrorIs(t, results["A"].Err, ErrStopped)
	assert.ErrorIs(t, results["B"].Err, ErrStopped)
	assert.Equal(t, "llama3.2", results["B"].Model)

	drainCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	assert.NoError(t, r.Drain(drainCtx), "every accepted job was reported without Stop")
}

// =============================================================================
// ADMISSION
// =============================================================================

func TestRelay_QueueFull(t *testing.T) {
	r, out := newTestRelay(t, echoHandler(), Options{QueueDepth: 1})

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	_, err = r.Submit(jobFor("B", "y"))
	assert.ErrorIs(t, err, ErrQueueFull)

	r.Stop()
	res := nextResult(t, out)
	assert.Equal(t, "A", res.JobID)
	assert.ErrorIs(t, res.Err, ErrStopped)
}

func TestRelay_DuplicateID(t *testing.T) {
	r, _ := newTestRelay(t, echoHandler(), Options{})
	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	_, err = r.Submit(jobFor("A", "y"))
	assert.Error(t, err)
}

func TestRelay_RateLimited(t *testing.T) {
	r, _ := newTestRelay(t, echoHandler(), Options{Rate: 0.001, Burst: 1})

	_, err := r.Submit(jobFor("A", "x"))
	require.NoError(t, err)
	_, err = r.Submit(jobFor("B", "y"))
	assert.ErrorIs(t, err, ErrRateLimited)
}
