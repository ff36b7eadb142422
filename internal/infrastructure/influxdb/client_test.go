package influxdb

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/lifelog-core/internal/infrastructure/config"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "lifelog-dev-token",
		Org:           "lifelog",
		Bucket:        "automation",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test unless RUN_INTEGRATION is set and a server answers.
func skipIfNoInfluxDB(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION=1 to run InfluxDB integration tests")
	}
	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// ─── Connection ─────────────────────────────────────────────────────

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1" // nothing listens on port 1

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestUnconnectedClient(t *testing.T) {
	c := &Client{}

	if c.IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	// Writes and flushes on a disconnected client are dropped, never panic.
	c.RecordActionOutcome("SEND_NOTIFICATION", "SUCCESS", "r-1", time.Millisecond)
	c.RecordPass("mood_logged", 1, 1, 0)
	c.WritePoint("x", nil, map[string]interface{}{"v": 1})
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── Point Shapes ───────────────────────────────────────────────────

func TestActionOutcomePoint(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	p := actionOutcomePoint("CREATE_GOAL", "FAILED", "r-42", 1500*time.Microsecond, at)

	line := write.PointToLineProtocol(p, time.Second)

	for _, want := range []string{
		"automation_actions,",
		"action_kind=CREATE_GOAL",
		"status=FAILED",
		`routine_id="r-42"`,
		"duration_ms=1.5",
		"count=1i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(line), "1772442000") {
		t.Errorf("line protocol %q has wrong timestamp", line)
	}
}

func TestPassPoint(t *testing.T) {
	p := passPoint("scheduled_time", 2, 3, 1, time.Unix(0, 0))
	line := write.PointToLineProtocol(p, time.Second)

	for _, want := range []string{
		"automation_passes,event_kind=scheduled_time",
		"routines_matched=2i",
		"actions_succeeded=3i",
		"actions_failed=1i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

// ─── Integration ────────────────────────────────────────────────────

func TestIntegration_WriteAndHealth(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })

	client.RecordActionOutcome("SEND_NOTIFICATION", "SUCCESS", "r-int", 2*time.Millisecond)
	client.RecordPass("mood_logged", 1, 1, 0)
	client.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}
