package session

import "github.com/teslashibe/go-gaze/pkg/calibration"

// RegionState is the presentation view of one interactive region.
type RegionState struct {
	ID        string `json:"id"`
	Clickable bool   `json:"clickable"`
	Hovered   bool   `json:"hovered"`
	Confirmed bool   `json:"confirmed"`
}

// ContentState is the presentation view of the content reader.
type ContentState struct {
	ScrollTop float64 `json:"scroll_top"`
	Progress  float64 `json:"progress"`
	Rate      float64 `json:"rate"`
	Scrolling bool    `json:"scrolling"`
}

// Snapshot is everything the presentation needs to render the session.
type Snapshot struct {
	Mode        string                `json:"mode"`
	Resume      string                `json:"resume,omitempty"`
	Loading     bool                  `json:"loading"`
	Diagnostics bool                  `json:"diagnostics"`
	Calibrated  bool                  `json:"calibrated"`
	Viewport    Viewport              `json:"viewport"`
	MinViewport Viewport              `json:"min_viewport"`
	Calibration *calibration.Snapshot `json:"calibration,omitempty"`
	Regions     []RegionState         `json:"regions,omitempty"`
	Content     *ContentState         `json:"content,omitempty"`
}

// Snapshot returns the current presentation view.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:        c.mode.String(),
		Diagnostics: c.diagnostics,
		Calibrated:  c.calibrated,
		Viewport:    c.viewport,
		MinViewport: Viewport{Width: c.cfg.MinWidth, Height: c.cfg.MinHeight},
	}
	effective := c.mode
	if c.mode == ScreenTooSmall {
		snap.Resume = c.resume.String()
		effective = c.resume
	}
	if effective == Calibrating {
		if !c.tracker.Ready() {
			snap.Loading = true
		} else {
			cal := c.seq.Snapshot()
			snap.Calibration = &cal
		}
	}
	for _, t := range c.targets {
		snap.Regions = append(snap.Regions, RegionState{
			ID:        t.ID(),
			Clickable: t.Clickable(),
			Hovered:   t.Hovered(),
			Confirmed: t.Confirmed(),
		})
	}
	if c.reader != nil {
		snap.Content = &ContentState{
			ScrollTop: c.reader.Offset(),
			Progress:  c.reader.Progress(),
			Rate:      c.reader.Rate(),
			Scrolling: c.reader.Scrolling(),
		}
	}
	return snap
}
