package gaze

import "errors"

// Sentinel errors for the gaze package.
var (
	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.New("gaze: already started")

	// ErrNotStarted indicates Stop was called before a successful Start.
	ErrNotStarted = errors.New("gaze: not started")

	// ErrUpstreamUnavailable indicates the tracker failed to initialize.
	// The hub stays not-ready for the rest of the session.
	ErrUpstreamUnavailable = errors.New("gaze: upstream tracker unavailable")
)
