// Package sched provides the single-threaded event loop the gaze engine runs
// on. Every sample, key press, resize and timer expiry is delivered as one
// event on the loop, so components never lock their own state.
package sched

import (
	"errors"
	"time"
)

// ErrLoopRunning is returned when Run is called on a loop that is already running.
var ErrLoopRunning = errors.New("sched: loop already running")

// minInterval guards against zero or negative repeat intervals.
const minInterval = time.Millisecond

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented the
	// callback from running. After Stop returns the callback never runs.
	Stop() bool
}

// Scheduler delivers work onto a single event-processing goroutine.
type Scheduler interface {
	// Post queues fn to run on the loop. It never blocks.
	Post(fn func())

	// AfterFunc runs fn once on the loop after d.
	AfterFunc(d time.Duration, fn func()) Timer

	// Every runs fn on the loop every d until stopped.
	Every(d time.Duration, fn func()) Timer
}

// StopTimer stops t if set and returns nil so callers can clear their field
// in one line: t.timer = sched.StopTimer(t.timer).
func StopTimer(t Timer) Timer {
	if t != nil {
		t.Stop()
	}
	return nil
}
