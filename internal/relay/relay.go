// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Relay.
type Options struct {
	// Workers is the number of jobs that may run at once (default: 1).
	Workers int

	// QueueDepth bounds the number of waiting jobs (default: 16).
	QueueDepth int

	// Timeout bounds each handler call, measured from when a worker picks
	// the job up. Zero means no timeout.
	Timeout time.Duration

	// Rate is the sustained number of submissions per second admitted.
	// Zero disables the limiter.
	Rate float64

	// Burst is the limiter burst size (default: 1 when Rate is set).
	Burst int

	Logger *slog.Logger
}

const (
	DefaultWorkers    = 1
	DefaultQueueDepth = 16
)

func (o *Options) fillDefaults() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.Rate > 0 && o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// =============================================================================
// RELAY
// =============================================================================

// Relay moves blocking handler calls off the caller's goroutine and delivers
// their output through a Dispatcher.
//
// Jobs are served first-submitted-first-served from a bounded queue. Workers
// block on the queue; there is no polling. Every accepted job produces
// exactly one Result, including jobs cancelled before they ran and jobs
// still queued when the relay stops.
type Relay struct {
	handler  Handler
	dispatch Dispatcher
	opts     Options
	limiter  *rate.Limiter
	log      *slog.Logger

	queue chan *entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	jobs        map[string]*entry // queued and running, by job ID
	outstanding int
	idle        chan struct{} // closed while outstanding == 0
	started     bool
	stopped     bool

	running atomic.Int32
}

type entry struct {
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a relay. Call Start to launch its workers.
func New(handler Handler, dispatch Dispatcher, opts Options) *Relay {
	opts.fillDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	r := &Relay{
		handler:  handler,
		dispatch: dispatch,
		opts:     opts,
		log:      opts.Logger.With("component", "relay"),
		queue:    make(chan *entry, opts.QueueDepth),
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*entry),
		idle:     idle,
	}
	if opts.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)
	}
	return r
}

// Start launches the workers. When ctx is done the relay stops accepting
// jobs and reports the ones still queued with ErrStopped; Stop must still be
// called to join the workers. Calling Start more than once has no effect.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	if ctx != nil {
		context.AfterFunc(ctx, r.cancel)
	}

	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.log.Debug("relay started", "workers", r.opts.Workers, "queue_depth", r.opts.QueueDepth)
}

// Submit enqueues a job and returns its ID. It never blocks.
func (r *Relay) Submit(job Job) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.ctx.Err() != nil {
		return "", ErrStopped
	}
	if r.limiter != nil && !r.limiter.Allow() {
		return "", ErrRateLimited
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, dup := r.jobs[job.ID]; dup {
		return "", fmt.Errorf("relay: duplicate job id %q", job.ID)
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	ctx, cancel := context.WithCancel(r.ctx)
	e := &entry{job: job, ctx: ctx, cancel: cancel}

	select {
	case r.queue <- e:
	default:
		cancel()
		return "", ErrQueueFull
	}

	r.jobs[job.ID] = e
	if r.outstanding == 0 {
		r.idle = make(chan struct{})
	}
	r.outstanding++

	r.log.Debug("job queued", "job", job.ID, "epoch", job.Epoch, "pending", len(r.queue))
	return job.ID, nil
}

// Cancel cancels a queued or running job. It reports whether the job was
// known to the relay.
func (r *Relay) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.jobs[id]
	r.mu.Unlock()
	if ok {
		e.cancel()
	}
	return ok
}

// CancelAll cancels every queued and running job. The relay keeps accepting
// new jobs.
func (r *Relay) CancelAll() int {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	return len(entries)
}

// Pending returns the number of jobs waiting for a worker.
func (r *Relay) Pending() int {
	return len(r.queue)
}

// Running returns the number of jobs currently inside the handler.
func (r *Relay) Running() int {
	return int(r.running.Load())
}

// Drain blocks until every accepted job has produced its Result, or ctx is
// done. Draining an idle relay returns nil immediately.
func (r *Relay) Drain(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels running jobs, waits for the workers to exit, and reports
// every job still queued with ErrStopped. Stop is idempotent and safe to
// call on a relay that was never started.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.flush()
}

// flush reports every queued job with ErrStopped. It must only run once
// r.ctx is done so that no Submit can enqueue behind it.
func (r *Relay) flush() {
	// Wait out any Submit that checked r.ctx before it was cancelled.
	r.mu.Lock()
	r.mu.Unlock()

	flushed := 0
	for {
		select {
		case e := <-r.queue:
			r.finish(e, Result{JobID: e.job.ID, Epoch: e.job.Epoch, Model: e.job.Model, Err: ErrStopped})
			flushed++
		default:
			if flushed > 0 {
				r.log.Info("relay stopped with queued jobs", "flushed", flushed)
			}
			return
		}
	}
}

// =============================================================================
// WORKERS
// =============================================================================

func (r *Relay) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			r.flush()
			return
		case e := <-r.queue:
			r.run(e)
		}
	}
}

func (r *Relay) run(e *entry) {
	job := e.job
	res := Result{JobID: job.ID, Epoch: job.Epoch, Model: job.Model, Queued: time.Since(job.SubmittedAt)}

	if err := e.ctx.Err(); err != nil {
		if r.ctx.Err() != nil {
			err = ErrStopped
		}
		res.Err = err
		r.finish(e, res)
		return
	}

	ctx := e.ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	emit := func(content string) {
		if content == "" || ctx.Err() != nil {
			return
		}
		r.deliver(Token{JobID: job.ID, Epoch: job.Epoch, Content: content})
	}

	r.running.Add(1)
	start := time.Now()
	res.Content, res.Err = r.call(ctx, job, emit)
	res.Elapsed = time.Since(start)
	r.running.Add(-1)

	if res.Err == nil && ctx.Err() != nil {
		// The handler ignored cancellation; its output is not trusted.
		res.Content, res.Err = "", ctx.Err()
	}
	if res.Err != nil && errors.Is(res.Err, context.Canceled) && r.ctx.Err() != nil {
		res.Err = fmt.Errorf("%w: %w", ErrStopped, res.Err)
	}

	if res.Err != nil {
		r.log.Warn("job failed", "job", job.ID, "error", res.Err, "elapsed", res.Elapsed)
	} else {
		r.log.Debug("job done", "job", job.ID, "elapsed", res.Elapsed, "bytes", len(res.Content))
	}
	r.finish(e, res)
}

// call runs the handler, turning a panic into an error.
func (r *Relay) call(ctx context.Context, job Job, emit Emit) (content string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("handler panic", "job", job.ID, "panic", p)
			content, err = "", fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return r.handler.Handle(ctx, job, emit)
}

func (r *Relay) finish(e *entry, res Result) {
	e.cancel()
	r.deliver(res)

	r.mu.Lock()
	delete(r.jobs, e.job.ID)
	r.outstanding--
	if r.outstanding == 0 {
		close(r.idle)
	}
	r.mu.Unlock()
}

func (r *Relay) deliver(msg any) {
	if r.dispatch == nil {
		return
	}
	r.dispatch(msg)
}
