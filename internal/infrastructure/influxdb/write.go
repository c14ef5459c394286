package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBridgeCounters records one sample of the bridge's monotonic
// counters. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - deviceID: The gateway's device identity (tag)
//   - counters: Counter names to cumulative values
//     (e.g. lines_published, commands_forwarded, reconnects)
func (c *Client) WriteBridgeCounters(deviceID string, counters map[string]uint64) {
	if !c.IsConnected() || len(counters) == 0 {
		return
	}

	fields := make(map[string]interface{}, len(counters))
	for name, value := range counters {
		// InfluxDB fields are int64; counters will not plausibly wrap.
		fields[name] = int64(value) // #nosec G115
	}

	point := write.NewPoint(
		"bridge_counters",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectivityEvent records a connectivity transition (link or
// broker up/down) as a point, complementing the SQLite journal with a
// queryable time series.
//
// Parameters:
//   - deviceID: The gateway's device identity (tag)
//   - kind: Event kind (tag, e.g. "broker_lost")
func (c *Client) WriteConnectivityEvent(deviceID, kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connectivity_events",
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
		},
		map[string]interface{}{
			"count": int64(1),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
