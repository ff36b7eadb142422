package ingest

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/lifelog-core/internal/automation"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/mqtt"
)

// MessagePublisher is the part of the MQTT client OutcomePublisher needs.
type MessagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ErrorLogger reports publish failures.
type ErrorLogger interface {
	Warn(msg string, args ...any)
}

// OutcomePublisher publishes automation log entries to MQTT. It implements
// automation.Broadcaster. Publish failures are logged and never fail the action.
type OutcomePublisher struct {
	client MessagePublisher
	qos    byte
	logger ErrorLogger
}

// NewOutcomePublisher creates a publisher. logger may be nil.
func NewOutcomePublisher(client MessagePublisher, qos byte, logger ErrorLogger) *OutcomePublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &OutcomePublisher{client: client, qos: qos, logger: logger}
}

// ActionLogged implements automation.Broadcaster.
func (p *OutcomePublisher) ActionLogged(_ context.Context, entry automation.LogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		p.logger.Warn("encoding automation log entry failed", "entry_id", entry.ID, "error", err)
		return
	}
	topic := mqtt.Topics{}.AutomationLog(entry.UserID)
	if err := p.client.Publish(topic, data, p.qos, false); err != nil {
		p.logger.Warn("publishing automation log entry failed", "topic", topic, "error", err)
	}
}
