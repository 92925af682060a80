package gaze

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-gaze/pkg/sched"
)

func startedHub(t *testing.T) (*Hub, *Mock) {
	t.Helper()
	mock := NewMock()
	h := NewHub(mock, sched.NewManual())
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return h, mock
}

func TestHub_StartFlipsReady(t *testing.T) {
	h, mock := startedHub(t)

	if !h.Ready() {
		t.Error("hub should be ready after Start")
	}
	if mock.CallCount("Begin") != 1 {
		t.Errorf("Begin called %d times, want 1", mock.CallCount("Begin"))
	}
	// Debug outputs start hidden.
	if v, ok := mock.LastFlag("SetVideoVisible"); !ok || v {
		t.Errorf("video visibility = %v (called %v), want hidden", v, ok)
	}
}

func TestHub_StartTwice(t *testing.T) {
	h, mock := startedHub(t)

	if err := h.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v, want ErrAlreadyStarted", err)
	}
	if mock.CallCount("Begin") != 1 {
		t.Error("second Start must not create another subscription")
	}
}

func TestHub_UpstreamUnavailable(t *testing.T) {
	mock := NewMock()
	mock.BeginFunc = func(ctx context.Context) error {
		return errors.New("no camera")
	}
	h := NewHub(mock, sched.NewManual())

	readyCalled := false
	h.OnReady(func() { readyCalled = true })

	err := h.Start(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Start error = %v, want ErrUpstreamUnavailable", err)
	}
	if h.Ready() {
		t.Error("hub must stay not-ready")
	}
	if readyCalled {
		t.Error("ready observers must not fire")
	}

	// Pass-throughs degrade to no-ops.
	h.RecordTrainingSample(10, 10)
	if mock.CallCount("RecordScreenPosition") != 0 {
		t.Error("training sample forwarded while not ready")
	}
}

func TestHub_FanOutInOrder(t *testing.T) {
	h, mock := startedHub(t)

	var got []string
	h.Subscribe(func(s Sample) { got = append(got, "a") })
	h.Subscribe(func(s Sample) { got = append(got, "b") })
	h.Subscribe(func(s Sample) { got = append(got, "c") })

	mock.Emit(1, 2)
	mock.Emit(3, 4)

	want := "abcabc"
	joined := ""
	for _, s := range got {
		joined += s
	}
	if joined != want {
		t.Errorf("delivery order = %q, want %q", joined, want)
	}

	latest, ok := h.Latest()
	if !ok || latest.X != 3 || latest.Y != 4 {
		t.Errorf("Latest = %+v, %v; want (3,4)", latest, ok)
	}
	if h.GetStats().Samples != 2 {
		t.Errorf("Samples = %d, want 2", h.GetStats().Samples)
	}
}

func TestHub_UnsubscribeIsIsolatedAndIdempotent(t *testing.T) {
	h, mock := startedHub(t)

	var a, b int
	unsubA := h.Subscribe(func(Sample) { a++ })
	h.Subscribe(func(Sample) { b++ })

	mock.Emit(0, 0)
	unsubA()
	unsubA()
	mock.Emit(0, 0)

	if a != 1 {
		t.Errorf("a = %d, want 1", a)
	}
	if b != 2 {
		t.Errorf("b = %d, want 2", b)
	}
	if h.ObserverCount() != 1 {
		t.Errorf("ObserverCount = %d, want 1", h.ObserverCount())
	}
}

func TestHub_UnsubscribeDuringDispatch(t *testing.T) {
	h, mock := startedHub(t)

	var second int
	var unsubSecond func()
	h.Subscribe(func(Sample) { unsubSecond() })
	unsubSecond = h.Subscribe(func(Sample) { second++ })

	mock.Emit(0, 0)
	if second != 0 {
		t.Errorf("observer removed mid-dispatch still ran %d times", second)
	}
}

func TestHub_ObserverPanicIsContained(t *testing.T) {
	h, mock := startedHub(t)

	calls := 0
	h.Subscribe(func(Sample) { panic("bad observer") })
	h.Subscribe(func(Sample) { calls++ })

	mock.Emit(0, 0)
	if calls != 1 {
		t.Errorf("healthy observer calls = %d, want 1", calls)
	}
}

func TestHub_OnReadyWhenAlreadyReady(t *testing.T) {
	h, _ := startedHub(t)

	called := false
	h.OnReady(func() { called = true })
	if !called {
		t.Error("OnReady should run immediately on a ready hub")
	}
}

func TestHub_RecordTrainingSampleFailureIsSwallowed(t *testing.T) {
	h, mock := startedHub(t)
	mock.RecordFunc = func(x, y float64) error { return errors.New("transient") }

	h.RecordTrainingSample(5, 5)

	stats := h.GetStats()
	if stats.TrainingSamples != 0 {
		t.Errorf("TrainingSamples = %d, want 0", stats.TrainingSamples)
	}
	if stats.UpstreamErrors != 1 {
		t.Errorf("UpstreamErrors = %d, want 1", stats.UpstreamErrors)
	}
	if mock.CallCount("RecordScreenPosition") != 1 {
		t.Error("failed call must not be retried")
	}
}

func TestHub_SetVisualDebugOutputs(t *testing.T) {
	h, mock := startedHub(t)

	h.SetVisualDebugOutputs(true)

	if v, _ := mock.LastFlag("SetVideoVisible"); !v {
		t.Error("video should be visible")
	}
	if v, _ := mock.LastFlag("SetPredictionPointsVisible"); !v {
		t.Error("prediction points should be visible")
	}
}

func TestHub_StopDropsSamples(t *testing.T) {
	h, mock := startedHub(t)

	n := 0
	h.Subscribe(func(Sample) { n++ })

	// Capture the sink before End clears it.
	mock.Emit(0, 0)
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	h.receive(Sample{X: 1, Y: 1})

	if n != 1 {
		t.Errorf("observer calls = %d, want 1", n)
	}
	if h.Ready() {
		t.Error("hub should not be ready after Stop")
	}
	if mock.CallCount("End") != 1 {
		t.Error("Stop should end the tracker")
	}
}

func TestHub_StopBeforeStart(t *testing.T) {
	h := NewHub(NewMock(), sched.NewManual())
	if err := h.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop error = %v, want ErrNotStarted", err)
	}
}
