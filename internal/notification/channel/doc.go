// Package channel provides the concrete notification channels: Pushover,
// Pushbullet, an MQTT channel for connected user interfaces, and a log
// channel for development.
//
// Every channel satisfies notification.Channel. Sending never returns an
// error to the caller; failures are logged here. The HTTP providers run
// behind a circuit breaker so an unreachable provider stops being called
// until its cool-down expires.
package channel
