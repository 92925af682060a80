package session

import (
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/region"
	"github.com/teslashibe/go-gaze/pkg/sched"
)

// Extent is the scrollable geometry of the open content, as reported by the
// presentation.
type Extent struct {
	ScrollHeight float64 `json:"scroll_height"`
	ClientHeight float64 `json:"client_height"`
}

// Max is the largest valid scroll offset.
func (e Extent) Max() float64 {
	if e.ScrollHeight <= e.ClientHeight {
		return 0
	}
	return e.ScrollHeight - e.ClientHeight
}

// Reader scrolls content while the gaze rests in the top or bottom band of
// the viewport.
type Reader struct {
	cfg      ReaderConfig
	sched    sched.Scheduler
	height   func() float64
	extent   func() Extent
	onChange func()

	offset float64
	rate   float64
	ticker sched.Timer
	unsub  func()
}

// NewReader subscribes to src and starts at offset. height reports the
// viewport height and extent the content geometry; both are read live.
func NewReader(src region.Source, s sched.Scheduler, cfg ReaderConfig, height func() float64, extent func() Extent, offset float64, onChange func()) *Reader {
	r := &Reader{
		cfg:      cfg,
		sched:    s,
		height:   height,
		extent:   extent,
		onChange: onChange,
		offset:   offset,
	}
	r.unsub = src.Subscribe(r.observe)
	return r
}

func (r *Reader) observe(s gaze.Sample) {
	if r.unsub == nil {
		return
	}
	rate := r.rateFor(s.Y)
	if rate == r.rate {
		return
	}
	r.rate = rate
	switch {
	case rate == 0:
		r.ticker = sched.StopTimer(r.ticker)
	case r.ticker == nil:
		r.ticker = r.sched.Every(r.cfg.Interval, r.tick)
	}
	r.changed()
}

func (r *Reader) rateFor(y float64) float64 {
	h := r.height()
	if h <= 0 {
		return 0
	}
	switch {
	case y >= h*r.cfg.BottomBand:
		return r.cfg.Rate
	case y <= h*r.cfg.TopBand:
		return -r.cfg.Rate
	}
	return 0
}

func (r *Reader) tick() {
	r.moveTo(r.offset + r.rate)
}

// Clamp pulls the offset back inside the current extent.
func (r *Reader) Clamp() {
	r.moveTo(r.offset)
}

func (r *Reader) moveTo(next float64) {
	if limit := r.extent().Max(); next > limit {
		next = limit
	}
	if next < 0 {
		next = 0
	}
	if next == r.offset {
		return
	}
	r.offset = next
	r.changed()
}

func (r *Reader) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Offset returns the current scroll offset in px.
func (r *Reader) Offset() float64 {
	return r.offset
}

// Rate returns the current scroll rate in px per tick; negative scrolls back.
func (r *Reader) Rate() float64 {
	return r.rate
}

// Scrolling reports whether the tick timer is running.
func (r *Reader) Scrolling() bool {
	return r.ticker != nil
}

// Progress returns how far through the content the reader is, 0 to 100.
func (r *Reader) Progress() float64 {
	limit := r.extent().Max()
	if limit <= 0 {
		return 0
	}
	p := r.offset / limit * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Close releases the subscription and the tick timer.
func (r *Reader) Close() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	r.ticker = sched.StopTimer(r.ticker)
	r.rate = 0
}
