// Package discovery registers devices the hub has never seen before, the
// first time they publish on the message transport.
//
// # Flow
//
//	transport (root/#) ──▶ Service.handleMessage
//	                         │ identity from topic (Factory)
//	                         │ seen? ──▶ drop
//	                         ▼
//	                 singleflight per identity
//	                         │ Factory.CreateDevice
//	                         │ Registry.Register
//	                         │ publish DeviceRegistered
//	                         │ deliver triggering payload (canonical topic only)
//	                         ▼
//	                 transport.Subscribe(canonical, handle.ProcessMessage)
//
// A burst of concurrent messages for the same new identity constructs and
// registers the device exactly once. If the factory declines an identity it
// is not remembered, so a later message retries. If the canonical
// subscription fails the handle is kept pending and re-attached by its next
// message or by RetryPending after a reconnect.
package discovery
