package calibration

import "errors"

// ErrInvalidConfig indicates a configuration the sequencer cannot run.
var ErrInvalidConfig = errors.New("calibration: invalid config")
