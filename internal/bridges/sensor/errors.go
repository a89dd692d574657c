package sensor

import "errors"

var (
	// ErrUnsupportedType is returned when loading a device of a type this
	// family does not handle.
	ErrUnsupportedType = errors.New("sensor: unsupported device type")

	// ErrInvalidValue is returned when a reading cannot be interpreted.
	ErrInvalidValue = errors.New("sensor: invalid value")

	// ErrInvalidTopic is returned when a topic parameter is not a valid filter.
	ErrInvalidTopic = errors.New("sensor: invalid topic")
)
