package protocol

import "errors"

var (
	// ErrMalformed means the frame is not a message envelope.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrBadPayload means the data does not match the message type.
	ErrBadPayload = errors.New("protocol: bad payload")
)
