// Package config loads the hub's YAML configuration.
//
// Load applies, in order: built-in defaults, the YAML file, GRAYLOGIC_*
// environment overrides, then Validate, which reports every problem at
// once. Notification channel ids must be unique across providers because
// subscriptions refer to channels by id alone.
//
// Provider tokens and the MQTT password are best supplied through the
// environment or a file readable only by the hub (0600).
package config
