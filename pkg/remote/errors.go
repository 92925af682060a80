package remote

import "errors"

var (
	// ErrNotConnected is returned by commands when no tracker is attached.
	ErrNotConnected = errors.New("remote: tracker not connected")

	// ErrStartTimeout is returned by Begin when no ready arrives in time.
	ErrStartTimeout = errors.New("remote: tracker start timed out")

	// ErrAlreadyBegun is returned by a second Begin without End.
	ErrAlreadyBegun = errors.New("remote: already begun")

	// ErrTrackerFailed wraps an error reported by the tracker page.
	ErrTrackerFailed = errors.New("remote: tracker failed")
)
