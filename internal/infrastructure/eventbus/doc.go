// Package eventbus is the in-process event bus of the hub, built on the
// watermill gochannel pub/sub.
//
// Every event is published once for each kind in its lineage, on topic
// "events.<Kind>". A subscriber to an abstract kind such as DeviceEvent
// therefore receives every concrete device event exactly once. Each
// subscription is served by its own goroutine; a message is acked after the
// handler returns, whatever the handler's result, so a failing handler
// never causes redelivery loops.
//
// Delivery is in-process and non-persistent: events published while nobody
// is subscribed to a topic are dropped.
package eventbus
