package gaze

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-gaze/pkg/sched"
)

// Hub owns the upstream tracker subscription for the whole session.
//
// Subscribe, OnReady, Latest and the pass-through calls must run on the
// scheduler's goroutine. Start blocks until the tracker acknowledges and is
// meant to be called from its own goroutine.
type Hub struct {
	tracker Tracker
	sched   sched.Scheduler
	logger  *slog.Logger
	now     func() time.Time

	observers      *registry[Observer]
	readyObservers *registry[func()]
	latest         Sample
	hasLatest      bool

	started atomic.Bool
	ready   atomic.Bool
	stopped atomic.Bool

	samples         atomic.Uint64
	trainingSamples atomic.Uint64
	upstreamErrors  atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithClock overrides the time source used to stamp samples.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// NewHub creates a hub for tracker. Samples are delivered on s.
func NewHub(tracker Tracker, s sched.Scheduler, opts ...Option) *Hub {
	h := &Hub{
		tracker:        tracker,
		sched:          s,
		logger:         slog.Default().With("component", "gaze.hub"),
		now:            time.Now,
		observers:      newRegistry[Observer](),
		readyObservers: newRegistry[func()](),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start establishes the upstream subscription. Readiness flips to true on
// the scheduler once the tracker acknowledges. If the tracker fails, the hub
// stays not-ready for good; dependents treat that as a normal state.
func (h *Hub) Start(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	h.logger.Info("starting gaze tracker")
	if err := h.tracker.Begin(ctx, h.receive); err != nil {
		h.upstreamErrors.Add(1)
		h.logger.Error("gaze tracker failed to initialize", "error", err)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	h.sched.Post(h.markReady)
	return nil
}

// markReady runs on the scheduler once Begin has returned.
func (h *Hub) markReady() {
	if h.stopped.Load() {
		return
	}
	// Debug rendering starts hidden; the session decides when to show it.
	h.SetVisualDebugOutputs(false)
	h.ready.Store(true)
	h.logger.Info("gaze tracker ready")

	for _, id := range h.readyObservers.snapshot() {
		if fn, ok := h.readyObservers.get(id); ok {
			h.call(func() { fn() })
		}
	}
}

// receive is handed to the tracker and may run on any goroutine.
func (h *Hub) receive(s Sample) {
	if s.At.IsZero() {
		s.At = h.now()
	}
	h.sched.Post(func() {
		h.dispatch(s)
	})
}

func (h *Hub) dispatch(s Sample) {
	if h.stopped.Load() {
		return
	}
	h.latest = s
	h.hasLatest = true
	h.samples.Add(1)

	for _, id := range h.observers.snapshot() {
		obs, ok := h.observers.get(id)
		if !ok {
			// Removed by an earlier observer during this dispatch.
			continue
		}
		h.call(func() { obs(s) })
	}
}

func (h *Hub) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("gaze observer panicked", "panic", r)
		}
	}()
	fn()
}

// Stop tears down the upstream subscription. Observers stay registered but
// receive nothing further.
func (h *Hub) Stop() error {
	if !h.started.Load() {
		return ErrNotStarted
	}
	if !h.stopped.CompareAndSwap(false, true) {
		return nil
	}
	h.ready.Store(false)

	if err := h.tracker.End(); err != nil {
		h.upstreamErrors.Add(1)
		h.logger.Warn("error ending gaze tracker", "error", err)
		return err
	}
	h.logger.Info("gaze tracker stopped")
	return nil
}

// Subscribe registers obs for every subsequent sample and returns the
// function that releases the registration. Release is idempotent.
func (h *Hub) Subscribe(obs Observer) (unsubscribe func()) {
	id := h.observers.add(obs)
	return h.release(func(id uuid.UUID) { h.observers.remove(id) }, id)
}

// OnReady registers fn to run once the tracker is ready. If the hub is
// already ready, fn runs immediately.
func (h *Hub) OnReady(fn func()) (cancel func()) {
	if h.ready.Load() {
		fn()
		return func() {}
	}
	id := h.readyObservers.add(fn)
	return h.release(func(id uuid.UUID) { h.readyObservers.remove(id) }, id)
}

func (h *Hub) release(remove func(uuid.UUID), id uuid.UUID) func() {
	var done bool
	return func() {
		if done {
			return
		}
		done = true
		remove(id)
	}
}

// Ready reports whether the tracker acknowledged start. Safe from any goroutine.
func (h *Hub) Ready() bool {
	return h.ready.Load()
}

// Latest returns the most recent sample, if any has arrived.
func (h *Hub) Latest() (Sample, bool) {
	return h.latest, h.hasLatest
}

// ObserverCount returns the number of live sample observers.
func (h *Hub) ObserverCount() int {
	return h.observers.len()
}

// RecordTrainingSample forwards a ground-truth screen point to the tracker.
// Failures are logged and swallowed; the next user action retries naturally.
func (h *Hub) RecordTrainingSample(x, y float64) {
	if !h.Ready() {
		h.logger.Warn("training sample dropped, tracker not ready", "x", x, "y", y)
		return
	}
	if err := h.tracker.RecordScreenPosition(x, y); err != nil {
		h.upstreamFailure("record training sample", err, "x", x, "y", y)
		return
	}
	h.trainingSamples.Add(1)
	h.logger.Debug("training sample recorded", "x", x, "y", y)
}

// ClearTrainingData drops every training sample held by the tracker.
func (h *Hub) ClearTrainingData() {
	if !h.Ready() {
		return
	}
	if err := h.tracker.ClearData(); err != nil {
		h.upstreamFailure("clear training data", err)
		return
	}
	h.logger.Info("training data cleared")
}

// SetVisualDebugOutputs shows or hides the tracker's camera preview, face
// overlay and prediction marker. Pure pass-through.
func (h *Hub) SetVisualDebugOutputs(enabled bool) {
	if h.stopped.Load() {
		return
	}
	if err := h.tracker.SetVideoVisible(enabled); err != nil {
		h.upstreamFailure("set video visible", err, "enabled", enabled)
	}
	if err := h.tracker.SetPredictionPointsVisible(enabled); err != nil {
		h.upstreamFailure("set prediction points visible", err, "enabled", enabled)
	}
	h.logger.Debug("visual debug outputs set", "enabled", enabled)
}

// SetSmoothing toggles the tracker's Kalman filter.
func (h *Hub) SetSmoothing(enabled bool) {
	if !h.Ready() {
		return
	}
	if err := h.tracker.SetKalmanFilter(enabled); err != nil {
		h.upstreamFailure("set kalman filter", err, "enabled", enabled)
	}
}

func (h *Hub) upstreamFailure(op string, err error, args ...any) {
	h.upstreamErrors.Add(1)
	h.logger.Warn("upstream call failed", append([]any{"op", op, "error", err}, args...)...)
}

// Stats contains hub counters.
type Stats struct {
	Ready           bool   `json:"ready"`
	Samples         uint64 `json:"samples"`
	TrainingSamples uint64 `json:"training_samples"`
	UpstreamErrors  uint64 `json:"upstream_errors"`
}

// GetStats returns hub counters. Safe from any goroutine.
func (h *Hub) GetStats() Stats {
	return Stats{
		Ready:           h.Ready(),
		Samples:         h.samples.Load(),
		TrainingSamples: h.trainingSamples.Load(),
		UpstreamErrors:  h.upstreamErrors.Load(),
	}
}
