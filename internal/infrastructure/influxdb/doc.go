// Package influxdb provides InfluxDB connectivity for Lifelog Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// The automation engine reports each executed action (automation_actions) and
// each pipeline pass (automation_passes) here, giving operators success-rate
// and latency dashboards without querying the relational outcome log.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.RecordActionOutcome("CREATE_GOAL", "SUCCESS", routineID, elapsed)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes on a disconnected or closed client are silently dropped.
package influxdb
