// Package influxdb provides InfluxDB connectivity for plcbridge's
// operational telemetry.
//
// It wraps the official influxdb-client-go v2 library. Metrics adapts the
// client to the monitor's Metrics port and writes three measurements:
//
//   - poll_cycle: duration_ms, devices, changed
//   - plc_reconnect: attempt, tagged by result
//   - write_command: count, tagged by source and verdict
//
// Device values are not stored; the bridge keeps no value history.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	metrics := influxdb.NewMetrics(client, "line1")
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// errors arrive through SetOnError. Connection and health check errors are
// returned directly.
package influxdb
