package channel

import "errors"

var (
	// ErrDeliveryFailed indicates the provider rejected or did not answer a message.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrMissingCredentials indicates a provider was configured without a token or user.
	ErrMissingCredentials = errors.New("missing channel credentials")
)
