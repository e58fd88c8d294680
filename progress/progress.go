// Package progress reports on slow calls.
//
// A Reporter runs a call on the caller's goroutine while a watcher goroutine
// waits for a fixed delay. If the call finishes first, the watcher is
// cancelled and the elapsed time is printed:
//
//	done in 1 seconds
//
// If the delay elapses first, the call's description is printed immediately
// and nothing more is printed when the call completes:
//
//	kernel(64, "s2")...
//
// Output is advisory. Suppressing it (io.Discard) never changes results.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDelay is how long a call may run before its description is printed.
const DefaultDelay = 2 * time.Second

// Task states.
const (
	stateStarted uint32 = iota
	stateFinished
	stateMessagePrinted
)

// Reporter wraps calls with delayed status output.
// A Reporter is safe for concurrent use; each call gets its own watcher.
type Reporter struct {
	delay  time.Duration
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex // serializes writes to out
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithDelay sets how long a call may run before its description is printed.
// Values <= 0 select DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(r *Reporter) {
		r.delay = d
	}
}

// WithWriter sets the destination for status text (default: os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(r *Reporter) {
		r.out = w
	}
}

// WithLogger sets the logger for call timings. Defaults to discarding logs.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// New creates a Reporter.
func New(opts ...Option) *Reporter {
	r := &Reporter{
		out: os.Stderr,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.delay <= 0 {
		r.delay = DefaultDelay
	}
	if r.out == nil {
		r.out = io.Discard
	}
	return r
}

// Run calls fn, printing desc if fn is still running after the delay.
func (r *Reporter) Run(desc string, fn func() error) error {
	_, err := Do(r, desc, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do calls fn on the calling goroutine, printing desc if fn is still running
// after the reporter's delay, or the elapsed time if it finishes first.
// A call that returns an error has still finished. If fn panics the watcher
// is cancelled and nothing is printed.
func Do[R any](r *Reporter, desc string, fn func() (R, error)) (R, error) {
	t := r.start(desc)
	finished := false
	defer func() {
		if !finished {
			t.cancel()
		}
	}()

	v, err := fn()
	finished = true
	elapsed := r.now().Sub(t.started)
	if t.cancel() {
		r.printf("done in %.0f seconds\n", elapsed.Seconds())
	}
	r.log().Debug("call finished", "call", desc, "elapsed", elapsed, "error", err != nil)
	return v, err
}

// Wrap returns fn wrapped so every call is reported under name, described
// with its argument (see Describe).
func Wrap[A, R any](r *Reporter, name string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, args A) (R, error) {
		return Do(r, Describe(name, args), func() (R, error) {
			return fn(ctx, args)
		})
	}
}

// task is the state of one in-flight call.
type task struct {
	desc    string
	started time.Time
	state   atomic.Uint32
	done    chan struct{} // closed on cancel
	exited  chan struct{} // closed when the watcher returns
	once    sync.Once
}

// start launches the watcher for a call described by desc.
func (r *Reporter) start(desc string) *task {
	t := &task{
		desc:    desc,
		started: r.now(),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go r.watch(t)
	return t
}

// watch prints the description once the delay elapses, unless cancelled.
func (r *Reporter) watch(t *task) {
	defer close(t.exited)
	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-t.done:
	case <-timer.C:
		if t.state.CompareAndSwap(stateStarted, stateMessagePrinted) {
			r.printf("%s... ", t.desc)
		}
	}
}

// cancel stops the watcher and waits for it to return. It reports whether
// this call moved the task to finished before the message was printed.
func (t *task) cancel() bool {
	finished := t.state.CompareAndSwap(stateStarted, stateFinished)
	t.once.Do(func() { close(t.done) })
	<-t.exited
	return finished
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reporter) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}
