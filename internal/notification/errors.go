package notification

import "errors"

// Domain errors for the notification package.
//
//	if errors.Is(err, notification.ErrUnknownChannel) {
//	    // subscription refers to a channel that was never added
//	}
var (
	// ErrUnknownChannel is returned when subscribing to a channel id that is
	// not in the channel table.
	ErrUnknownChannel = errors.New("notification: unknown channel")

	// ErrUnsupportedEventKind is returned when a subscription names a kind
	// outside the event catalog.
	ErrUnsupportedEventKind = errors.New("notification: unsupported event kind")

	// ErrInvalidSubscription is returned when a subscription request is malformed.
	ErrInvalidSubscription = errors.New("notification: invalid subscription")
)
