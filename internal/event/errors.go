package event

import "errors"

var (
	// ErrUnknownKind is returned when a kind name is not in the catalog.
	ErrUnknownKind = errors.New("event: unknown kind")

	// ErrMissingDevice is returned when a device-scoped event has no identity.
	ErrMissingDevice = errors.New("event: device identity required")
)
