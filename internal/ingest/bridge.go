package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lifelog-core/internal/events"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/mqtt"
)

var (
	// ErrUnknownTopic is returned for messages outside lifelog/event/{kind}.
	ErrUnknownTopic = errors.New("ingest: not an event topic")

	// ErrUnknownKind is returned when the topic names an unsupported event kind.
	ErrUnknownKind = errors.New("ingest: unknown event kind")

	// ErrReservedKind is returned for kinds only the service itself may publish.
	ErrReservedKind = errors.New("ingest: event kind is reserved")

	// ErrMissingUser is returned when the payload has no userId.
	ErrMissingUser = errors.New("ingest: userId is required")
)

// Subscriber is the part of the MQTT client the bridge needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Publisher receives decoded events. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// payload is the wire form of an inbound event message.
type payload struct {
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// Bridge republishes MQTT event messages on the bus.
type Bridge struct {
	sub    Subscriber
	bus    Publisher
	qos    byte
	logger Logger
}

// NewBridge creates a bridge. logger may be nil.
func NewBridge(sub Subscriber, bus Publisher, qos byte, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{sub: sub, bus: bus, qos: qos, logger: logger}
}

// Start subscribes to every event topic. Messages are published on the bus
// with ctx; cancelling ctx does not unsubscribe.
func (b *Bridge) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.AllEvents()
	if err := b.sub.Subscribe(topic, b.qos, func(topic string, data []byte) error {
		return b.handle(ctx, topic, data)
	}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Debug("event bridge subscribed", "topic", topic)
	return nil
}

// Stop drops the event subscription so no message reaches the bus once the
// engine's dependencies start closing.
func (b *Bridge) Stop() error {
	topic := mqtt.Topics{}.AllEvents()
	if err := b.sub.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}
	return nil
}

// handle decodes one message and publishes it synchronously. The returned
// error is logged by the MQTT client.
func (b *Bridge) handle(ctx context.Context, topic string, data []byte) error {
	ev, err := Decode(topic, data)
	if err != nil {
		return err
	}
	b.bus.Publish(ctx, ev)
	return nil
}

// Decode turns an MQTT message into an event.
func Decode(topic string, data []byte) (events.Event, error) {
	kindName, ok := mqtt.ParseEventTopic(topic)
	if !ok {
		return events.Event{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	kind := events.Kind(kindName)
	if !kind.Valid() {
		return events.Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, kindName)
	}
	if !kind.Inbound() {
		return events.Event{}, fmt.Errorf("%w: %q", ErrReservedKind, kindName)
	}

	var p payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return events.Event{}, fmt.Errorf("ingest: decoding %s payload: %w", kind, err)
	}
	if p.UserID == "" {
		return events.Event{}, ErrMissingUser
	}

	ev := events.Event{Kind: kind, UserID: p.UserID, Data: p.Data}
	if p.Timestamp != nil {
		ev.Timestamp = p.Timestamp.UTC()
	}
	return ev, nil
}
