// Package mqtt is the hub's message transport, a thin layer over
// eclipse/paho.mqtt.golang.
//
// Devices publish readings under graylogic/state/{type}/{id}. Discovery
// subscribes to the whole tree; each known device handle subscribes to its
// canonical topic filter. The hub publishes its own status (retained, with a
// Last Will for crashes), UI notifications and mirrored domain events.
//
// Handlers run concurrently and may subscribe further filters from inside a
// callback. Empty payloads reach handlers as nil. Subscriptions are restored
// after a reconnect.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1, handle)
package mqtt
