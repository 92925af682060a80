package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the production Scheduler. Events are queued without bound and
// executed one at a time, in order, by the goroutine calling Run.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
	logger  *slog.Logger

	processed atomic.Uint64
}

// NewLoop creates an idle loop. Call Run to start processing events.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default().With("component", "sched.loop")
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes events until ctx is cancelled. Queued events that have not
// run yet are discarded, and later posts are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.drain(ctx)
		}
	}
}

// drain runs queued events in batches until the queue is empty.
func (l *Loop) drain(ctx context.Context) {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			if ctx.Err() != nil {
				return
			}
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event panicked", "panic", r)
		}
	}()
	fn()
	l.processed.Add(1)
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Processed returns the number of events executed so far.
func (l *Loop) Processed() uint64 {
	return l.processed.Load()
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have won the race after the timer fired.
			if !lt.finished.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	})
	return lt
}

type loopTimer struct {
	timer    *time.Timer
	finished atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.finished.CompareAndSwap(false, true)
}

// Every implements Scheduler.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	if d < minInterval {
		d = minInterval
	}
	lt := &loopTicker{stop: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-lt.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					if lt.stopped.Load() {
						return
					}
					fn()
				})
			}
		}
	}()
	return lt
}

type loopTicker struct {
	stop    chan struct{}
	stopped atomic.Bool
}

func (t *loopTicker) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	close(t.stop)
	return true
}
