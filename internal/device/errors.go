package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidIdentity) {
//	    // handle bad identity
//	}
var (
	// ErrDeviceNotFound is returned when an identity is not registered.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidIdentity is returned when an identity has an empty id or type.
	ErrInvalidIdentity = errors.New("device: invalid identity")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")
)
