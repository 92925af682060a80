// Package engine wires the gaze hub, keyboard, layout and session onto one
// event loop and exposes a goroutine-safe facade over them.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/click"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/input"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/sched"
	"github.com/teslashibe/go-gaze/pkg/session"
)

// ErrNotRunning is returned by facade calls after Run has returned.
var ErrNotRunning = errors.New("engine: not running")

// Config holds engine parameters.
type Config struct {
	Session session.Config `yaml:"session"`
	Keymap  input.Keymap   `yaml:"keymap"`

	// Viewport is assumed until the presentation reports its own.
	Viewport session.Viewport `yaml:"viewport"`

	// Smoothing turns the tracker's Kalman filter on once it is ready.
	Smoothing bool `yaml:"smoothing"`
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		Session:   session.DefaultConfig(),
		Keymap:    input.DefaultKeymap(),
		Viewport:  session.Viewport{Width: 1440, Height: 900},
		Smoothing: true,
	}
}

// Engine owns every component. Components are only touched on the loop.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	loop    *sched.Loop
	hub     *gaze.Hub
	keys    *input.Keyboard
	layout  *region.Layout
	session *session.Controller

	mu      sync.RWMutex
	last    session.Snapshot
	onState func(session.Snapshot)
	onClick func(click.Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOnState registers fn for every session snapshot. It runs on the loop
// and must not block.
func WithOnState(fn func(session.Snapshot)) Option {
	return func(e *Engine) {
		e.onState = fn
	}
}

// WithOnClick registers fn for every gaze click. It runs on the loop and
// must not block.
func WithOnClick(fn func(click.Event)) Option {
	return func(e *Engine) {
		e.onClick = fn
	}
}

// New builds an engine around tracker.
func New(tracker gaze.Tracker, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.loop = sched.NewLoop(e.logger.With("sub", "loop"))
	e.hub = gaze.NewHub(tracker, e.loop, gaze.WithLogger(e.logger.With("sub", "gaze")))
	e.keys = input.NewKeyboard(cfg.Keymap)
	e.layout = region.NewLayout()
	e.session = session.New(cfg.Session, e.hub, e.keys, e.layout, e.loop,
		session.WithLogger(e.logger.With("sub", "session")))
	e.session.OnChange(e.publish)
	e.session.OnClick(func(ev click.Event) {
		if e.onClick != nil {
			e.onClick(ev)
		}
	})
	if cfg.Smoothing {
		e.hub.OnReady(func() { e.hub.SetSmoothing(true) })
	}
	return e
}

func (e *Engine) publish(s session.Snapshot) {
	e.mu.Lock()
	e.last = s
	e.mu.Unlock()
	if e.onState != nil {
		e.onState(s)
	}
}

// Run mounts the session, starts the tracker in the background and
// processes events until ctx is cancelled. Everything is released on return.
func (e *Engine) Run(ctx context.Context) error {
	e.loop.Post(func() { e.session.Mount(e.cfg.Viewport) })

	go func() {
		// The hub logs the failure; the session stays in its loading state.
		if err := e.hub.Start(ctx); err != nil {
			e.logger.Warn("gaze tracker unavailable", "error", err)
		}
	}()

	err := e.loop.Run(ctx)

	// The loop has stopped; nothing else touches the components now.
	e.session.Close()
	if stopErr := e.hub.Stop(); stopErr != nil && !errors.Is(stopErr, gaze.ErrNotStarted) {
		e.logger.Warn("gaze tracker stop failed", "error", stopErr)
	}
	e.logger.Info("engine stopped")

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (e *Engine) call(ctx context.Context, fn func()) error {
	if err := e.loop.Call(ctx, fn); err != nil {
		select {
		case <-e.loop.Done():
			return ErrNotRunning
		default:
			return err
		}
	}
	return nil
}

// Key dispatches one key-down by its physical code. It reports the bound
// command and whether any listener consumed it.
func (e *Engine) Key(ctx context.Context, code string) (cmd input.Command, handled bool, err error) {
	err = e.call(ctx, func() {
		cmd, handled = e.keys.Dispatch(code)
	})
	return cmd, handled, err
}

// Resize reports the presentation viewport.
func (e *Engine) Resize(ctx context.Context, width, height int) error {
	return e.call(ctx, func() { e.session.Resize(width, height) })
}

// SetRegion records the live bounds of an element.
func (e *Engine) SetRegion(ctx context.Context, id string, b region.Bounds) error {
	return e.call(ctx, func() { e.layout.Set(id, b) })
}

// RemoveRegion marks an element unmounted.
func (e *Engine) RemoveRegion(ctx context.Context, id string) error {
	return e.call(ctx, func() { e.layout.Remove(id) })
}

// SetContentExtent records the scroll geometry of the open content.
func (e *Engine) SetContentExtent(ctx context.Context, ext session.Extent) error {
	return e.call(ctx, func() { e.session.SetExtent(ext) })
}

// OpenContent opens the content reader from Interacting.
func (e *Engine) OpenContent(ctx context.Context) error {
	return e.call(ctx, e.session.OpenContent)
}

// CloseContent closes the content reader.
func (e *Engine) CloseContent(ctx context.Context) error {
	return e.call(ctx, e.session.CloseContent)
}

// Recalibrate restarts calibration from Interacting.
func (e *Engine) Recalibrate(ctx context.Context) error {
	return e.call(ctx, e.session.Recalibrate)
}

// ToggleDiagnostics flips the diagnostics flag.
func (e *Engine) ToggleDiagnostics(ctx context.Context) error {
	return e.call(ctx, e.session.ToggleDiagnostics)
}

// SetSmoothing toggles the tracker's Kalman filter.
func (e *Engine) SetSmoothing(ctx context.Context, enabled bool) error {
	return e.call(ctx, func() { e.hub.SetSmoothing(enabled) })
}

// Snapshot returns a fresh session snapshot, taken on the loop.
func (e *Engine) Snapshot(ctx context.Context) (session.Snapshot, error) {
	var s session.Snapshot
	err := e.call(ctx, func() { s = e.session.Snapshot() })
	return s, err
}

// Last returns the most recently published snapshot without touching the
// loop.
func (e *Engine) Last() session.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Stats contains engine statistics
type Stats struct {
	Gaze            gaze.Stats `json:"gaze"`
	EventsProcessed uint64     `json:"events_processed"`
	Mode            string     `json:"mode"`
}

// GetStats returns engine statistics. Safe from any goroutine.
func (e *Engine) GetStats() Stats {
	return Stats{
		Gaze:            e.hub.GetStats(),
		EventsProcessed: e.loop.Processed(),
		Mode:            e.Last().Mode,
	}
}
