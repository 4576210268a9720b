package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEstimatedSavings records the kWh one automation command is estimated
// to have saved, tagged by rule and target device. Actions that resolve
// through a scene without a concrete device use "scene/unknown" as the
// device tag.
//
// The point is buffered and flushed asynchronously. When the client is not
// connected the sample is dropped.
func (c *Client) WriteEstimatedSavings(ruleID, deviceID string, kwh float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"energy_savings",
		map[string]string{
			"rule_id":   ruleID,
			"device_id": deviceID,
		},
		map[string]interface{}{
			"kwh_est": kwh,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMotionEvent records one occupancy sample for a motion sensor. Detected
// and cleared states both count; the zone tag is omitted when the sensor did
// not report one.
func (c *Client) WriteMotionEvent(sensorID, zone string, detected bool) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"sensor_id": sensorID,
	}
	if zone != "" {
		tags["zone"] = zone
	}

	detectedVal := 0
	if detected {
		detectedVal = 1
	}

	point := write.NewPoint(
		"motion_events",
		tags,
		map[string]interface{}{
			"detected": detectedVal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
