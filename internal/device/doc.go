// Package device provides the Device Registry for Gray Logic Hub.
//
// The registry is the in-memory catalogue of every device the hub knows
// about, whether it was loaded from the persisted devices document or
// discovered from MQTT traffic. It is keyed by Identity (external id plus
// device family type) and is first-wins: the first registration of an
// identity is kept for the lifetime of the process.
//
// # Architecture
//
//	┌──────────────────┐   Register    ┌──────────────────┐
//	│ discovery.Service│──────────────▶│                  │
//	└──────────────────┘               │     Registry     │
//	┌──────────────────┐   Register    │   (registry.go)  │
//	│ deviceconfig     │──────────────▶│                  │
//	│   Loader         │               │ • LoadOrStore    │
//	└──────────────────┘               │ • deep copies    │
//	┌──────────────────┐     List      │ • no lock needed │
//	│ deviceconfig     │◀──────────────│   for readers    │
//	│   Writer         │               └──────────────────┘
//	└──────────────────┘
//
// # Key Types
//
//   - Identity: comparable (id, type) key
//   - Device: registered description (display name, parameters, identifiers)
//   - Handle: live device instance produced by a family factory; consumes
//     transport messages for its canonical topic
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//
//	if registry.Register(device.New(device.NewIdentity("therm-1", "temperature"))) {
//	    // first registration of therm-1
//	}
//
// # Thread Safety
//
// Register, Get, Contains, List and Count are safe for unbounded concurrent
// use. List returns a point-in-time snapshot; a concurrent Register is either
// fully visible in it or not at all.
package device
