package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if len(got) != 100 {
		t.Fatalf("ran %d events, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("event %d ran as %d", i, v)
		}
	}
}

func TestLoop_RunTwice(t *testing.T) {
	l, _ := startLoop(t)
	// Make sure the first Run has started.
	l.Call(context.Background(), func() {})

	if err := l.Run(context.Background()); err != ErrLoopRunning {
		t.Errorf("second Run error = %v, want ErrLoopRunning", err)
	}
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l, _ := startLoop(t)

	l.Post(func() { panic("boom") })

	ran := false
	if err := l.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if !ran {
		t.Error("loop stopped after a panicking event")
	}
}

func TestLoop_AfterFuncStop(t *testing.T) {
	l, _ := startLoop(t)

	var fired atomic.Bool
	timer := l.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	if !timer.Stop() {
		t.Error("Stop should report true before firing")
	}

	time.Sleep(50 * time.Millisecond)
	l.Call(context.Background(), func() {})
	if fired.Load() {
		t.Error("stopped timer fired")
	}
}

func TestLoop_AfterFuncFires(t *testing.T) {
	l, _ := startLoop(t)

	done := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_Every(t *testing.T) {
	l, _ := startLoop(t)

	var ticks atomic.Int32
	timer := l.Every(5*time.Millisecond, func() { ticks.Add(1) })
	time.Sleep(60 * time.Millisecond)
	timer.Stop()
	l.Call(context.Background(), func() {})
	after := ticks.Load()

	if after == 0 {
		t.Fatal("ticker never fired")
	}

	time.Sleep(30 * time.Millisecond)
	l.Call(context.Background(), func() {})
	if ticks.Load() != after {
		t.Errorf("ticker kept firing after Stop: %d -> %d", after, ticks.Load())
	}
}

func TestLoop_PostAfterShutdownIsDropped(t *testing.T) {
	l, cancel := startLoop(t)
	l.Call(context.Background(), func() {})
	cancel()
	<-l.Done()

	ran := false
	l.Post(func() { ran = true })
	if err := l.Call(context.Background(), func() {}); err == nil {
		t.Error("Call after shutdown should fail")
	}
	if ran {
		t.Error("event ran after shutdown")
	}
}
