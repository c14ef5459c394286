// Package influxdb provides optional telemetry for the gateway.
//
// This package records the bridge's own health as time series:
//   - Monotonic counters (lines published, commands forwarded,
//     bytes dropped by the framer, reconnects)
//   - Connectivity transition events
//
// Serial line content is never written here; only operational metrics.
// Telemetry is disabled by default and the bridge runs identically
// without it.
package influxdb
