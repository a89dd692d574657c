package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes of the hub's MQTT tree.
const (
	// TopicPrefixState is the root of every device state topic:
	// graylogic/state/{type}/{id}[/...]
	TopicPrefixState = "graylogic/state/"

	// TopicPrefixHub is the base for topics published by the hub itself.
	TopicPrefixHub = "graylogic/hub"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// TopicPrefixUI is the base for UI-specific topics.
	TopicPrefixUI = "graylogic/ui"
)

// Topics provides builders for Gray Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("temperature", "therm-1")
//	// Returns: "graylogic/state/temperature/therm-1"
type Topics struct{}

// DeviceRoot returns the prefix under which every device publishes.
func (Topics) DeviceRoot() string {
	return TopicPrefixState
}

// DeviceState returns the canonical state topic of a device.
//
// Example: graylogic/state/temperature/therm-1
func (Topics) DeviceState(deviceType, id string) string {
	return TopicPrefixState + deviceType + "/" + id
}

// AllDeviceStates returns a filter matching every device and its sub-topics.
func (Topics) AllDeviceStates() string {
	return TopicPrefixState + "#"
}

// HubEvent returns the topic the hub mirrors domain events on.
//
// Example: graylogic/hub/event/WindowOpened
func (Topics) HubEvent(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixHub, kind)
}

// SystemStatus returns the topic for the hub's online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// UINotification returns the topic for notifications to a UI client.
//
// Example: graylogic/ui/panel-1/notification
func (Topics) UINotification(clientID string) string {
	return fmt.Sprintf("%s/%s/notification", TopicPrefixUI, clientID)
}

// TopicMatches reports whether topic matches the subscription filter,
// following MQTT wildcard rules: "+" matches exactly one level and a
// trailing "#" matches the parent level and everything below it.
func TopicMatches(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		if f == "#" {
			return i == len(fl)-1
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}

// ValidFilter reports whether filter is a well formed subscription filter.
func ValidFilter(filter string) bool {
	if filter == "" {
		return false
	}
	levels := strings.Split(filter, "/")
	for i, l := range levels {
		switch {
		case l == "#":
			if i != len(levels)-1 {
				return false
			}
		case l == "+":
		case strings.ContainsAny(l, "+#"):
			return false
		}
	}
	return true
}

// ValidPublishTopic reports whether topic can be published to.
func ValidPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
