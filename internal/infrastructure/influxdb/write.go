package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by Lifelog Core.
const (
	// MeasurementAutomationActions holds one point per executed routine action.
	MeasurementAutomationActions = "automation_actions"

	// MeasurementAutomationPasses holds one point per processed event or scheduler tick.
	MeasurementAutomationPasses = "automation_passes"
)

// RecordActionOutcome writes one automation_actions point.
//
// Tags are kept low-cardinality (action kind, status); the routine ID is a
// field so per-routine series do not explode the index.
//
// Example:
//
//	client.RecordActionOutcome("SEND_NOTIFICATION", "SUCCESS", "r-123", 4*time.Millisecond)
func (c *Client) RecordActionOutcome(actionKind, status, routineID string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(actionOutcomePoint(actionKind, status, routineID, elapsed, time.Now()))
}

// RecordPass writes one automation_passes point summarising a pipeline run.
//
// Parameters:
//   - eventKind: The event kind that started the pass ("scheduled_time" for ticks)
//   - matched, succeeded, failed: Counts from the engine's pass result
func (c *Client) RecordPass(eventKind string, matched, succeeded, failed int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(passPoint(eventKind, matched, succeeded, failed, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("ingest",
//	    map[string]string{"source": "mqtt"},
//	    map[string]interface{}{"rejected": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

func actionOutcomePoint(actionKind, status, routineID string, elapsed time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAutomationActions,
		map[string]string{
			"action_kind": actionKind,
			"status":      status,
		},
		map[string]interface{}{
			"routine_id":  routineID,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
			"count":       1,
		},
		at,
	)
}

func passPoint(eventKind string, matched, succeeded, failed int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAutomationPasses,
		map[string]string{
			"event_kind": eventKind,
		},
		map[string]interface{}{
			"routines_matched":  matched,
			"actions_succeeded": succeeded,
			"actions_failed":    failed,
		},
		at,
	)
}
