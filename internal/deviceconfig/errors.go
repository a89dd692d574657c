package deviceconfig

import "errors"

var (
	// ErrPersistence wraps every failure to write the devices document.
	ErrPersistence = errors.New("device config persistence failed")

	// ErrUnknownDeviceType is returned by the loader for a stored device
	// whose type no factory supports.
	ErrUnknownDeviceType = errors.New("unknown device type")

	// ErrInvalidDocument is returned when the devices document cannot be parsed.
	ErrInvalidDocument = errors.New("invalid device config document")
)
