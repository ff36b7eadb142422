// Package ingest connects the MQTT broker to the automation pipeline.
//
// Inbound, Bridge subscribes to lifelog/event/+ and republishes each valid
// message on the event bus:
//
//	topic:   lifelog/event/mood_logged
//	payload: {"userId": "u-1", "data": {"moodScore": 3}, "timestamp": "2026-03-01T09:00:00Z"}
//
// Outbound, OutcomePublisher receives every automation log entry from the
// engine and publishes it on lifelog/automation/log/{userId}.
package ingest
