// Package sensor implements the hub's built-in device family: MQTT sensors
// and actuators publishing JSON state under graylogic/state/{type}/{id}.
//
// A Factory serves both discovery (first message on an unknown topic) and
// the device config loader. Each Handle keeps the last value of every
// reading and publishes a property event only when a value changes. The
// first reading after start-up is published with HasPrevious false.
//
// Binary readings publish the specific kind (RelayTurnedOn, WindowClosed,
// ...), so subscribers to the state-changed parent receive both directions.
package sensor
