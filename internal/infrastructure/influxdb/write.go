package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceProperty is the measurement property values are written to.
const MeasurementDeviceProperty = "device_property"

// PropertyPoint is one numeric device reading.
type PropertyPoint struct {
	DeviceType string
	DeviceID   string
	Property   string
	EventKind  string
	Value      float64
	Time       time.Time
}

// WriteProperty queues p for the next batch. Device identity, property and
// event kind are tags; the reading is the "value" field. Points written
// while disconnected are discarded.
func (c *Client) WriteProperty(p PropertyPoint) {
	if !c.IsConnected() {
		return
	}

	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	point := write.NewPoint(
		MeasurementDeviceProperty,
		map[string]string{
			"device_type": p.DeviceType,
			"device_id":   p.DeviceID,
			"property":    p.Property,
			"kind":        p.EventKind,
		},
		map[string]any{
			"value": p.Value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}
