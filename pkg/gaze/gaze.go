// Package gaze owns the single subscription to the upstream gaze tracker and
// fans raw samples out to any number of observers on the engine loop.
package gaze

import (
	"context"
	"time"
)

// Sample is one estimate of where the user is looking, in viewport pixels.
type Sample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	At time.Time `json:"at"`
}

// Observer receives every sample delivered by the Hub.
type Observer func(Sample)

// Tracker is the upstream gaze estimator. Implementations are free to call
// onSample from any goroutine; the Hub moves delivery onto its scheduler.
type Tracker interface {
	// Begin starts estimation and returns once the tracker acknowledges.
	// onSample is called for every sample produced after that.
	Begin(ctx context.Context, onSample func(Sample)) error

	// End stops estimation.
	End() error

	// RecordScreenPosition feeds a ground-truth point to the estimator.
	RecordScreenPosition(x, y float64) error

	// ClearData drops every recorded training point.
	ClearData() error

	// SetVideoVisible toggles the camera preview, face overlay and
	// face feedback box.
	SetVideoVisible(visible bool) error

	// SetPredictionPointsVisible toggles the predicted gaze marker.
	SetPredictionPointsVisible(visible bool) error

	// SetKalmanFilter toggles the tracker's own smoothing filter.
	SetKalmanFilter(enabled bool) error
}
