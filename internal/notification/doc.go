// Package notification routes domain events to push notification channels.
//
// # Architecture
//
//	event bus ──▶ Sender.Handle ──▶ Router.Resolve / ResolveGlobal ──▶ Channel.SendTextMessage
//	                                     ▲
//	       LoadSubscriptions (YAML) ─────┤
//	       Replay (SQLite Repository) ───┘
//
// The Router holds two tables: device subscriptions, optionally scoped to a
// set of device identities, and global subscriptions for events without a
// device. Matching walks the event kind's lineage, so subscribing to
// WindowStateChanged also delivers WindowOpened and WindowClosed.
//
// Subscriptions are additive. Channels may be replaced or removed; a
// subscription pointing at a removed channel resolves to nothing.
//
// Concrete channels (Pushover, Pushbullet, MQTT, log) live in the channel
// subpackage.
package notification
