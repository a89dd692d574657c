package discovery

import "errors"

var (
	// ErrNoFactories is returned by Start when the service has nothing to discover.
	ErrNoFactories = errors.New("discovery: no device factories")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("discovery: already started")
)
