// Package statehistory records device property changes.
//
// The Recorder subscribes to DevicePropertyEvent on the event bus, stores
// each change in the device_property_values SQLite table and, when an
// InfluxDB client is configured, mirrors numeric readings there as well.
// Binary states are stored as "true"/"false" with a numeric 1/0.
//
// A housekeeper goroutine deletes values older than the retention period
// on a fixed interval.
package statehistory
