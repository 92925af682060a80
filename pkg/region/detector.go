package region

import (
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Config holds hover detection parameters.
type Config struct {
	// Margin is added to every edge of a region before the hit test (px).
	Margin float64 `yaml:"margin"`
}

// DefaultConfig returns the stock hover configuration.
func DefaultConfig() Config {
	return Config{
		Margin: 20, // generous margin absorbs estimator jitter
	}
}

// Source delivers gaze samples. *gaze.Hub satisfies it.
type Source interface {
	Subscribe(obs gaze.Observer) (unsubscribe func())
}

// Detector tracks the hover state of one watched region.
// It holds exactly one hub registration between Watch and Close.
type Detector struct {
	id       string
	locator  Locator
	margin   float64
	onChange func(hovered bool)

	hovered     bool
	unsubscribe func()
}

// Option configures a Detector.
type Option func(*Detector)

// WithMargin overrides the tolerance margin.
func WithMargin(margin float64) Option {
	return func(d *Detector) {
		d.margin = margin
	}
}

// WithOnChange registers fn for enter/leave transitions.
func WithOnChange(fn func(hovered bool)) Option {
	return func(d *Detector) {
		d.onChange = fn
	}
}

// Watch subscribes a detector for region id to src.
func Watch(src Source, id string, locator Locator, opts ...Option) *Detector {
	d := &Detector{
		id:      id,
		locator: locator,
		margin:  DefaultConfig().Margin,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.unsubscribe = src.Subscribe(d.check)
	return d
}

// check recomputes hover from a sample. No smoothing or debounce. An
// unmounted element counts as outside.
func (d *Detector) check(s gaze.Sample) {
	b, ok := d.locator.Locate()
	inside := ok && b.Expand(d.margin).Contains(s.X, s.Y)
	if inside == d.hovered {
		return
	}
	d.hovered = inside
	if d.onChange != nil {
		d.onChange(inside)
	}
}

// ID returns the region identifier.
func (d *Detector) ID() string {
	return d.id
}

// Hovered reports whether the latest sample fell inside the region.
func (d *Detector) Hovered() bool {
	return d.hovered
}

// Watching reports whether the detector still holds its subscription.
func (d *Detector) Watching() bool {
	return d.unsubscribe != nil
}

// Close releases the hub subscription and clears the hover state.
// It is safe to call more than once.
func (d *Detector) Close() {
	if d.unsubscribe == nil {
		return
	}
	d.unsubscribe()
	d.unsubscribe = nil
	d.hovered = false
}
