// Package influxdb records energy-savings telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 behind a small client that owns the
// connection, a non-blocking batched write API, and health checks. When
// InfluxDB is disabled in configuration, Connect returns ErrDisabled and the
// caller simply runs without telemetry; nothing else in the system depends on
// it.
//
// The single measurement written today is the estimated kWh saved each time an
// automation rule fires, tagged by rule and device:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // handle, or skip telemetry on ErrDisabled
//	}
//	defer client.Close()
//
//	client.WriteEstimatedSavings("rule-abc123", "light-desk-12", 0.06)
//
// Writes are buffered and flushed in batches sized by configuration, so
// WriteEstimatedSavings never blocks the automation engine. Batch write
// failures surface asynchronously through the SetOnError callback. All methods
// are safe for concurrent use.
package influxdb
