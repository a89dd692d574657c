// Package event defines the hub's domain events and the closed catalog of
// event kinds.
//
// Kinds are plain strings arranged in a tree (see kind.go). Each event
// declares its concrete kind and, through Kind.Lineage, every supertype it
// satisfies, most specific first:
//
//	KindWindowOpened.Lineage()
//	// [WindowOpened WindowStateChanged DevicePropertyEvent DeviceEvent]
//
// Routing and bus subscriptions match on membership in that lineage, so a
// subscriber to WindowStateChanged sees both WindowOpened and WindowClosed.
// Names coming from configuration are resolved with ParseKind; a name that
// is not in the catalog is a configuration error.
package event
