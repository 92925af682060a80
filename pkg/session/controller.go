// Package session gates the gaze experience behind a minimum viewport and
// drives it through calibration, interaction and content reading.
package session

import (
	"log/slog"

	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/click"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/input"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/sched"
)

// Mode is the top-level session state.
type Mode int

const (
	Calibrating Mode = iota
	ScreenTooSmall
	Interacting
	ReadingContent
)

func (m Mode) String() string {
	switch m {
	case Calibrating:
		return "calibrating"
	case ScreenTooSmall:
		return "screen_too_small"
	case Interacting:
		return "interacting"
	case ReadingContent:
		return "reading_content"
	default:
		return "unknown"
	}
}

// Viewport is the presentation surface size in px.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Tracker is the gaze side of the session. *gaze.Hub satisfies it.
type Tracker interface {
	Subscribe(obs gaze.Observer) (unsubscribe func())
	Latest() (gaze.Sample, bool)
	Ready() bool
	OnReady(fn func()) (cancel func())
	RecordTrainingSample(x, y float64)
	ClearTrainingData()
	SetVisualDebugOutputs(enabled bool)
}

// Controller owns the session state machine. It is not safe for concurrent
// use; every method must run on the scheduler's goroutine.
type Controller struct {
	cfg     Config
	tracker Tracker
	keys    click.KeySource
	layout  *region.Layout
	sched   sched.Scheduler
	logger  *slog.Logger
	seq     *calibration.Sequencer
	seqOpts []calibration.Option

	mode   Mode
	resume Mode // restored when the viewport becomes valid again

	viewport    Viewport
	mounted     bool
	diagnostics bool
	calibrated  bool
	debugShown  bool

	targets []*click.Target
	reader  *Reader
	extent  Extent
	offset  float64 // saved reader offset while the reader is suspended

	unlisten    func()
	cancelReady func()

	onChange func(Snapshot)
	onClick  click.Handler
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithCalibrationOptions passes options through to the sequencer.
func WithCalibrationOptions(opts ...calibration.Option) Option {
	return func(c *Controller) {
		c.seqOpts = append(c.seqOpts, opts...)
	}
}

// New creates a controller. Nothing is observed until Mount.
func New(cfg Config, tracker Tracker, keys click.KeySource, layout *region.Layout, s sched.Scheduler, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg,
		tracker: tracker,
		keys:    keys,
		layout:  layout,
		sched:   s,
		logger:  slog.Default().With("component", "session"),
		mode:    Calibrating,
		resume:  Calibrating,
	}
	for _, opt := range opts {
		opt(c)
	}
	seqOpts := append([]calibration.Option{
		calibration.WithLogger(c.logger.With("sub", "calibration")),
		calibration.WithOnComplete(c.calibrationComplete),
		calibration.WithOnChange(c.changed),
	}, c.seqOpts...)
	c.seq = calibration.New(cfg.Calibration, tracker, layout, s, seqOpts...)
	c.seqOpts = nil
	return c
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.onChange = fn
}

// OnClick registers fn to receive click events from interactive regions.
func (c *Controller) OnClick(fn click.Handler) {
	c.onClick = fn
}

// Mount installs the key listener, applies the first viewport and starts
// calibration once the tracker is ready.
func (c *Controller) Mount(v Viewport) {
	if c.mounted {
		return
	}
	c.mounted = true
	c.unlisten = c.keys.Listen(c.handleKey)
	c.viewport = v
	if !c.fits(v) {
		c.resume = c.mode
		c.setMode(ScreenTooSmall)
	}
	c.cancelReady = c.tracker.OnReady(c.trackerReady)
	c.logger.Info("session mounted", "width", v.Width, "height", v.Height, "mode", c.mode)
	c.changed()
}

func (c *Controller) trackerReady() {
	c.logger.Info("tracker ready")
	if c.mode == Calibrating {
		c.seq.Begin()
	}
	c.applyDebugOutputs()
	c.changed()
}

// Resize rechecks the viewport. Too small forces ScreenTooSmall and
// remembers the current mode; valid again restores it.
func (c *Controller) Resize(width, height int) {
	v := Viewport{Width: width, Height: height}
	c.viewport = v
	fits := c.fits(v)
	switch {
	case !fits && c.mode != ScreenTooSmall:
		c.resume = c.mode
		c.setMode(ScreenTooSmall)
	case fits && c.mode == ScreenTooSmall:
		c.setMode(c.resume)
	default:
		if c.reader != nil {
			c.reader.Clamp()
		}
		c.changed()
	}
}

func (c *Controller) fits(v Viewport) bool {
	return v.Width >= c.cfg.MinWidth && v.Height >= c.cfg.MinHeight
}

// setMode is the single transition function: exit actions of the old mode,
// then entry actions of the new one.
func (c *Controller) setMode(next Mode) {
	prev := c.mode
	if prev == next {
		return
	}
	switch prev {
	case Interacting:
		c.closeTargets()
	case ReadingContent:
		c.offset = c.reader.Offset()
		c.reader.Close()
		c.reader = nil
	}

	c.mode = next

	switch next {
	case Calibrating:
		// Held back while the screen was too small.
		if c.tracker.Ready() {
			c.seq.Begin()
		}
	case Interacting:
		c.openTargets()
	case ReadingContent:
		c.reader = NewReader(c.tracker, c.sched, c.cfg.Reader, c.viewportHeight, c.contentExtent, c.offset, c.changed)
	}
	c.logger.Info("session mode", "from", prev, "to", next)
	c.changed()
}

func (c *Controller) openTargets() {
	for _, spec := range c.cfg.Regions {
		b := click.Binding{
			ID:         spec.ID,
			Locator:    c.layout.Locator(spec.ID),
			Margin:     c.cfg.Hover.Margin,
			OnHover:    func(bool) { c.changed() },
			OnFeedback: func(bool) { c.changed() },
		}
		if spec.Clickable {
			b.OnClick = c.clickHandler(spec)
		}
		c.targets = append(c.targets, click.Bind(c.tracker, c.tracker, c.keys, c.sched, b, c.cfg.Click))
	}
}

func (c *Controller) closeTargets() {
	for _, t := range c.targets {
		t.Close()
	}
	c.targets = nil
}

func (c *Controller) clickHandler(spec RegionSpec) click.Handler {
	return func(ev click.Event) {
		c.logger.Debug("region clicked", "region", ev.RegionID, "x", ev.X, "y", ev.Y)
		if c.onClick != nil {
			c.onClick(ev)
		}
		if spec.Action == ActionOpenContent {
			c.OpenContent()
		}
	}
}

func (c *Controller) calibrationComplete() {
	c.calibrated = true
	c.logger.Info("calibration complete")
	switch {
	case c.mode == Calibrating:
		c.setMode(Interacting)
	case c.mode == ScreenTooSmall && c.resume == Calibrating:
		c.resume = Interacting
	}
	c.applyDebugOutputs()
	c.changed()
}

// handleKey routes commands by mode. It is registered before any region
// target, so it always sees a press before the targets do.
func (c *Controller) handleKey(cmd input.Command) bool {
	switch cmd {
	case input.ToggleDiagnostics:
		c.ToggleDiagnostics()
		return true
	case input.Recalibrate:
		if c.mode != Interacting {
			return false
		}
		c.Recalibrate()
		return true
	case input.Confirm:
		switch c.mode {
		case Calibrating:
			return c.seq.Press()
		case ReadingContent:
			c.CloseContent()
			return true
		}
	}
	return false
}

// ToggleDiagnostics flips the diagnostics flag. Upstream debug outputs are
// shown only while diagnostics are on and calibration is complete.
func (c *Controller) ToggleDiagnostics() {
	c.diagnostics = !c.diagnostics
	c.logger.Info("diagnostics toggled", "enabled", c.diagnostics)
	c.applyDebugOutputs()
	c.changed()
}

func (c *Controller) applyDebugOutputs() {
	want := c.diagnostics && c.calibrated
	if want == c.debugShown || !c.tracker.Ready() {
		return
	}
	c.debugShown = want
	c.tracker.SetVisualDebugOutputs(want)
}

// Recalibrate restarts calibration from the first target. Ignored outside
// Interacting.
func (c *Controller) Recalibrate() {
	if c.mode != Interacting {
		return
	}
	c.logger.Info("recalibrating")
	c.calibrated = false
	c.applyDebugOutputs()
	c.seq.Reset()
	c.setMode(Calibrating)
}

// OpenContent switches to the content reader from Interacting.
func (c *Controller) OpenContent() {
	if c.mode != Interacting {
		return
	}
	c.offset = 0
	c.setMode(ReadingContent)
}

// CloseContent returns from the content reader to Interacting.
func (c *Controller) CloseContent() {
	if c.mode != ReadingContent {
		return
	}
	c.setMode(Interacting)
}

// SetExtent records the content geometry reported by the presentation.
func (c *Controller) SetExtent(e Extent) {
	c.extent = e
	if c.reader != nil {
		c.reader.Clamp()
	}
	c.changed()
}

func (c *Controller) viewportHeight() float64 {
	return float64(c.viewport.Height)
}

func (c *Controller) contentExtent() Extent {
	return c.extent
}

// Close releases every listener, subscription and timer.
func (c *Controller) Close() {
	if c.unlisten != nil {
		c.unlisten()
		c.unlisten = nil
	}
	if c.cancelReady != nil {
		c.cancelReady()
		c.cancelReady = nil
	}
	c.closeTargets()
	if c.reader != nil {
		c.offset = c.reader.Offset()
		c.reader.Close()
		c.reader = nil
	}
	c.seq.Close()
	c.mounted = false
	c.logger.Info("session closed")
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Diagnostics reports whether diagnostics are on.
func (c *Controller) Diagnostics() bool {
	return c.diagnostics
}

// Calibrated reports whether the current calibration pass is complete.
func (c *Controller) Calibrated() bool {
	return c.calibrated
}

// Sequencer exposes the calibration sequencer.
func (c *Controller) Sequencer() *calibration.Sequencer {
	return c.seq
}

// Reader returns the content reader, nil outside ReadingContent.
func (c *Controller) Reader() *Reader {
	return c.reader
}

// Targets returns the live interactive region targets.
func (c *Controller) Targets() []*click.Target {
	return c.targets
}

func (c *Controller) changed() {
	if c.onChange != nil && c.mounted {
		c.onChange(c.Snapshot())
	}
}
