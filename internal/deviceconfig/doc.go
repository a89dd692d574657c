// Package deviceconfig persists the device registry to a JSON document and
// restores it at start-up.
//
// The document looks like:
//
//	{
//	  "version": "1.0",
//	  "devices": [
//	    {
//	      "type": "temperature",
//	      "displayName": "Living room",
//	      "id": "therm-1",
//	      "parameters": {},
//	      "customIdentifiers": {}
//	    }
//	  ]
//	}
//
// Start-up order matters. The Loader registers stored devices and publishes
// DevicesLoaded; the Writer stays disabled until the load completes, so the
// load itself never triggers a write. After that every DeviceRegistered
// event saves the whole registry, and bursts of them are coalesced.
package deviceconfig
