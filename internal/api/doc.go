// Package api implements the HTTP REST API and WebSocket server of the hub.
//
// This package provides:
//   - Read endpoints for registered devices, their live readings and history
//   - Notification endpoints: channels, routing table, resolve, and adding
//     persisted subscriptions at runtime
//   - System health and metrics
//   - A WebSocket hub streaming bus events to clients by kind
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # WebSocket protocol
//
// Clients connect to /api/v1/ws and send
//
//	{"type": "subscribe", "id": "1", "payload": {"kinds": ["WindowStateChanged"]}}
//
// Subscribing to a kind also delivers its subtypes, so the example receives
// both WindowOpened and WindowClosed events.
//
// # Graceful Degradation
//
// Optional dependencies (history repository, subscription repository, MQTT)
// may be nil. Endpoints that need a missing one answer 503.
package api
