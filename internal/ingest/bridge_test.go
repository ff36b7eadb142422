package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lifelog-core/internal/automation"
	"github.com/nerrad567/lifelog-core/internal/events"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/mqtt"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockSubscriber captures the subscription so tests can deliver messages.
type mockSubscriber struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
	err     error
	dropped []string
}

func (m *mockSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if m.err != nil {
		return m.err
	}
	m.topic, m.qos, m.handler = topic, qos, handler
	return nil
}

func (m *mockSubscriber) Unsubscribe(topic string) error {
	if m.err != nil {
		return m.err
	}
	m.dropped = append(m.dropped, topic)
	m.handler = nil
	return nil
}

// mockBus records published events.
type mockBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockBus) Publish(_ context.Context, ev events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// mockPublisher records MQTT publishes.
type mockPublisher struct {
	topic   string
	payload []byte
	err     error
}

func (m *mockPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	m.topic, m.payload = topic, payload
	return m.err
}

// warnCounter counts warnings.
type warnCounter struct{ n int }

func (w *warnCounter) Warn(string, ...any) { w.n++ }

// ─── Bridge ─────────────────────────────────────────────────────────────────

func TestBridge_Start(t *testing.T) {
	sub := &mockSubscriber{}
	bus := &mockBus{}
	b := NewBridge(sub, bus, 1, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sub.topic != "lifelog/event/+" || sub.qos != 1 {
		t.Errorf("subscribed to %q qos %d", sub.topic, sub.qos)
	}

	err := sub.handler("lifelog/event/mood_logged", []byte(`{"userId":"u-1","data":{"moodScore":3},"timestamp":"2026-03-01T09:00:00+01:00"}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(bus.events) != 1 {
		t.Fatalf("published = %d, want 1", len(bus.events))
	}
	ev := bus.events[0]
	if ev.Kind != events.KindMoodLogged || ev.UserID != "u-1" {
		t.Errorf("event = %+v", ev)
	}
	if score, ok := ev.Number("moodScore"); !ok || score != 3 {
		t.Errorf("moodScore = %v, %v", score, ok)
	}
	if want := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC); !ev.Timestamp.Equal(want) || ev.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, want)
	}
}

func TestBridge_StartError(t *testing.T) {
	b := NewBridge(&mockSubscriber{err: errors.New("not connected")}, &mockBus{}, 1, nil)
	if err := b.Start(context.Background()); err == nil {
		t.Error("Start() should fail when the subscription fails")
	}
}

func TestBridge_Stop(t *testing.T) {
	sub := &mockSubscriber{}
	b := NewBridge(sub, &mockBus{}, 1, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.dropped) != 1 || sub.dropped[0] != sub.topic {
		t.Errorf("unsubscribed %v, want [%s]", sub.dropped, sub.topic)
	}

	sub.err = errors.New("not connected")
	if err := b.Stop(); err == nil {
		t.Error("Stop() should report a failed unsubscribe")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"foreign topic", "other/event/mood_logged", `{"userId":"u"}`, ErrUnknownTopic},
		{"nested topic", "lifelog/event/mood_logged/extra", `{"userId":"u"}`, ErrUnknownTopic},
		{"unknown kind", "lifelog/event/lunar_eclipse", `{"userId":"u"}`, ErrUnknownKind},
		{"generic channel is not a kind", "lifelog/event/automation_event", `{"userId":"u"}`, ErrUnknownKind},
		{"scheduled tick is reserved", "lifelog/event/scheduled_time", `{"userId":"u1"}`, ErrReservedKind},
		{"missing user", "lifelog/event/journal_created", `{"data":{}}`, ErrMissingUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.topic, []byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Decode("lifelog/event/journal_created", []byte("not json")); err == nil {
		t.Error("Decode() should reject malformed JSON")
	}
}

func TestBridge_DropsScheduledTick(t *testing.T) {
	sub := &mockSubscriber{}
	bus := &mockBus{}
	if err := NewBridge(sub, bus, 1, nil).Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := sub.handler("lifelog/event/scheduled_time", []byte(`{"userId":"u1","data":{"routineId":"r1"}}`))
	if !errors.Is(err, ErrReservedKind) {
		t.Errorf("handler error = %v, want ErrReservedKind", err)
	}
	if len(bus.events) != 0 {
		t.Errorf("published = %d, want 0", len(bus.events))
	}
}

func TestDecode_NoTimestamp(t *testing.T) {
	ev, err := Decode("lifelog/event/habit_missed", []byte(`{"userId":"u-2","data":{"habitName":"Run"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !ev.Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero (the bus stamps it)", ev.Timestamp)
	}
	if name, _ := ev.Text("habitName"); name != "Run" {
		t.Errorf("habitName = %q", name)
	}
}

// ─── Outcomes ───────────────────────────────────────────────────────────────

func TestOutcomePublisher(t *testing.T) {
	pub := &mockPublisher{}
	p := NewOutcomePublisher(pub, 1, nil)

	p.ActionLogged(context.Background(), automation.LogEntry{
		ID:         "log-1",
		RoutineID:  "r-1",
		UserID:     "u-1",
		ActionKind: automation.ActionCreateMoodCheckIn,
		Status:     automation.StatusSuccess,
		Message:    "Created mood check-in",
	})

	if pub.topic != "lifelog/automation/log/u-1" {
		t.Errorf("topic = %q", pub.topic)
	}
	var got map[string]any
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["status"] != "SUCCESS" || got["actionKind"] != "CREATE_MOOD_CHECK_IN" || got["routineId"] != "r-1" {
		t.Errorf("payload = %v", got)
	}
}

func TestOutcomePublisher_FailureIsLogged(t *testing.T) {
	warns := &warnCounter{}
	p := NewOutcomePublisher(&mockPublisher{err: errors.New("offline")}, 1, warns)

	p.ActionLogged(context.Background(), automation.LogEntry{UserID: "u-1"})
	if warns.n != 1 {
		t.Errorf("warnings = %d, want 1", warns.n)
	}
}
