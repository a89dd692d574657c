package eventbus

import "errors"

var (
	// ErrClosed is returned when publishing or subscribing after Close.
	ErrClosed = errors.New("event bus closed")

	// ErrInvalidEvent is returned when Publish is given an event that fails validation.
	ErrInvalidEvent = errors.New("invalid event")
)
