// Package click turns hover plus a confirm key press into click events.
package click

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/input"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/sched"
)

// Config holds click trigger parameters.
type Config struct {
	// FeedbackDuration is how long the confirmed state stays on after a click.
	FeedbackDuration time.Duration `yaml:"feedback_duration"`
}

// DefaultConfig returns the stock click configuration.
func DefaultConfig() Config {
	return Config{
		FeedbackDuration: 200 * time.Millisecond,
	}
}

// Event is one gaze click.
type Event struct {
	ID       uuid.UUID `json:"id"`
	RegionID string    `json:"region_id"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	At       time.Time `json:"at"`
}

// Handler receives click events synchronously.
type Handler func(Event)

// HoverState is the hover side of a click. *region.Detector satisfies it.
type HoverState interface {
	ID() string
	Hovered() bool
}

// GazeReader exposes the latest sample. *gaze.Hub satisfies it.
type GazeReader interface {
	Latest() (gaze.Sample, bool)
}

// KeySource registers key listeners. *input.Keyboard satisfies it.
type KeySource interface {
	Listen(fn input.Listener) (unlisten func())
}

// Trigger emits a click when Confirm is pressed while its region is hovered.
type Trigger struct {
	region  HoverState
	gaze    GazeReader
	sched   sched.Scheduler
	handler Handler
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger

	onFeedback func(confirmed bool)

	confirmed bool
	timer     sched.Timer
	unlisten  func()
	clicks    int
}

// TriggerOption configures a Trigger.
type TriggerOption func(*Trigger)

// WithOnFeedback registers fn for confirmed-state changes.
func WithOnFeedback(fn func(confirmed bool)) TriggerOption {
	return func(t *Trigger) {
		t.onFeedback = fn
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) TriggerOption {
	return func(t *Trigger) {
		t.now = now
	}
}

// NewTrigger creates a trigger for region and starts listening on keys.
func NewTrigger(hover HoverState, gz GazeReader, keys KeySource, s sched.Scheduler, handler Handler, cfg Config, opts ...TriggerOption) *Trigger {
	t := &Trigger{
		region:  hover,
		gaze:    gz,
		sched:   s,
		handler: handler,
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default().With("component", "click.trigger", "region", hover.ID()),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.unlisten = keys.Listen(t.handle)
	return t
}

func (t *Trigger) handle(cmd input.Command) bool {
	if cmd != input.Confirm || !t.region.Hovered() {
		return false
	}

	s, _ := t.gaze.Latest()
	ev := Event{
		ID:       uuid.New(),
		RegionID: t.region.ID(),
		X:        s.X,
		Y:        s.Y,
		At:       t.now(),
	}
	t.clicks++
	t.logger.Debug("gaze click", "x", ev.X, "y", ev.Y)

	// A press inside the feedback window restarts it. The window opens before
	// the handler runs so a handler that closes the trigger also cancels it.
	t.timer = sched.StopTimer(t.timer)
	t.setConfirmed(true)
	t.timer = t.sched.AfterFunc(t.cfg.FeedbackDuration, func() {
		t.timer = nil
		t.setConfirmed(false)
	})

	if t.handler != nil {
		t.handler(ev)
	}
	return true
}

func (t *Trigger) setConfirmed(v bool) {
	if t.confirmed == v {
		return
	}
	t.confirmed = v
	if t.onFeedback != nil {
		t.onFeedback(v)
	}
}

// Confirmed reports whether the click feedback window is open.
func (t *Trigger) Confirmed() bool {
	return t.confirmed
}

// Clicks returns the number of clicks emitted.
func (t *Trigger) Clicks() int {
	return t.clicks
}

// Close stops listening and cancels any pending feedback timer.
func (t *Trigger) Close() {
	if t.unlisten != nil {
		t.unlisten()
		t.unlisten = nil
	}
	t.timer = sched.StopTimer(t.timer)
	t.confirmed = false
}

// Binding describes one region to watch.
type Binding struct {
	ID      string
	Locator region.Locator
	Margin  float64 // zero keeps the detector default

	// OnClick receives clicks; nil makes the region hover-only.
	OnClick Handler

	// OnHover and OnFeedback report hover and confirmed-state transitions.
	OnHover    func(hovered bool)
	OnFeedback func(confirmed bool)
}

// Target couples a hover detector with a click trigger for one region.
type Target struct {
	*region.Detector
	trigger *Trigger
}

// Bind watches b.ID on src and, for clickable bindings, turns Confirm
// presses into clicks.
func Bind(src region.Source, gz GazeReader, keys KeySource, s sched.Scheduler, b Binding, cfg Config) *Target {
	var opts []region.Option
	if b.Margin != 0 {
		opts = append(opts, region.WithMargin(b.Margin))
	}
	if b.OnHover != nil {
		opts = append(opts, region.WithOnChange(b.OnHover))
	}
	d := region.Watch(src, b.ID, b.Locator, opts...)

	tgt := &Target{Detector: d}
	if b.OnClick != nil {
		var topts []TriggerOption
		if b.OnFeedback != nil {
			topts = append(topts, WithOnFeedback(b.OnFeedback))
		}
		tgt.trigger = NewTrigger(d, gz, keys, s, b.OnClick, cfg, topts...)
	}
	return tgt
}

// Clickable reports whether the target emits clicks.
func (t *Target) Clickable() bool {
	return t.trigger != nil
}

// Confirmed reports whether the click feedback window is open.
func (t *Target) Confirmed() bool {
	return t.trigger != nil && t.trigger.Confirmed()
}

// Close releases the gaze subscription, the key listener and any timer.
func (t *Target) Close() {
	if t.trigger != nil {
		t.trigger.Close()
	}
	t.Detector.Close()
}
