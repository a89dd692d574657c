// Package influxdb provides optional InfluxDB storage for device property
// values.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The state
// history recorder mirrors every numeric property change here when the
// influxdb section of the configuration is enabled.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteProperty(influxdb.PropertyPoint{DeviceType: "power", DeviceID: "plug-1", Property: "power", Value: 12.5})
//
// # Error Handling
//
// Write errors arrive asynchronously through the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
