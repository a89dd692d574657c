// Package logging is the hub's structured logger, a thin layer over log/slog.
//
// New builds a JSON or text logger writing to stdout, stderr or a file, with
// service and version attributes on every record. Component derives the
// per-package child loggers handed to SetLogger throughout the hub; every
// domain package accepts them through its own small Logger interface.
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json, text
//	  output: stdout   # stdout, stderr, file
//	  file:
//	    path: /var/log/graylogic/hub.log
//
// Provider tokens and MQTT credentials must never appear in attributes.
package logging
