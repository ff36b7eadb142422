package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/lifelog-core/internal/auth"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/logging"
)

const testSecret = "test-secret-for-development-only-32chars"

// writeTestConfig writes a config that needs no external services.
func writeTestConfig(t *testing.T, port int) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
service:
  id: test-service

database:
  driver: sqlite3
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: ` + fmt.Sprint(port) + `
  timeouts:
    read: 5
    write: 5
    idle: 10

security:
  jwt:
    secret: "` + testSecret + `"
    issuer: lifelog-test
    access_token_ttl: 5

genai:
  enabled: false

scheduler:
  enabled: true
  timezone: UTC
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("LIFELOG_CONFIG", configPath)
	t.Setenv("LIFELOG_ENV_FILE", filepath.Join(tmpDir, "missing.env"))
	t.Setenv("LIFELOG_JWT_SECRET", "")
	return configPath
}

// waitForHealth polls the health endpoint until it answers 200.
func waitForHealth(t *testing.T, baseURL string, errCh <-chan error) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		resp, err := http.Get(baseURL + "/api/v1/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server did not become healthy")
}

// ─── Configuration ─────────────────────────────────────────────────

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LIFELOG_CONFIG", "/nonexistent/path/config.yaml")
	t.Setenv("LIFELOG_ENV_FILE", "/nonexistent/.env")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_UnsupportedDatabaseDriver verifies config validation stops startup.
func TestRun_UnsupportedDatabaseDriver(t *testing.T) {
	configPath := writeTestConfig(t, 19199)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte("driver: sqlite3"), []byte("driver: mysql"), 1)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	err = run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("run() error = %v, want database.driver validation error", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("LIFELOG_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("LIFELOG_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestLoadEnvFile verifies .env values reach the environment without
// overriding variables that are already set.
func TestLoadEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	content := "LIFELOG_TEST_FROM_FILE=file-value\nLIFELOG_TEST_PRESET=file-value\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIFELOG_ENV_FILE", envPath)
	t.Setenv("LIFELOG_TEST_PRESET", "preset-value")
	// Registers restoration, then clears so the file can set it.
	t.Setenv("LIFELOG_TEST_FROM_FILE", "")
	os.Unsetenv("LIFELOG_TEST_FROM_FILE")

	loadEnvFile(logging.Discard())

	if got := os.Getenv("LIFELOG_TEST_FROM_FILE"); got != "file-value" {
		t.Errorf("LIFELOG_TEST_FROM_FILE = %q, want file-value", got)
	}
	if got := os.Getenv("LIFELOG_TEST_PRESET"); got != "preset-value" {
		t.Errorf("LIFELOG_TEST_PRESET = %q, want preset-value (must not be overridden)", got)
	}
}

// TestLoadEnvFile_Missing verifies a missing file is silently ignored.
func TestLoadEnvFile_Missing(t *testing.T) {
	t.Setenv("LIFELOG_ENV_FILE", filepath.Join(t.TempDir(), "nope.env"))
	loadEnvFile(logging.Discard())
}

// ─── Token subcommand ──────────────────────────────────────────────

func TestMintToken(t *testing.T) {
	writeTestConfig(t, 19198)

	var out bytes.Buffer
	if err := mintToken([]string{"-user", "user-42"}, &out); err != nil {
		t.Fatalf("mintToken() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret, "lifelog-test")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Errorf("UserID() = %q, want user-42", claims.UserID())
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 5*time.Minute || ttl < 4*time.Minute {
		t.Errorf("token lifetime = %v, want about 5m from config", ttl)
	}
}

func TestMintToken_TTLFlag(t *testing.T) {
	writeTestConfig(t, 19198)

	var out bytes.Buffer
	if err := mintToken([]string{"-user", "u", "-ttl", "60"}, &out); err != nil {
		t.Fatalf("mintToken() error = %v", err)
	}
	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret, "lifelog-test")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl < 59*time.Minute {
		t.Errorf("token lifetime = %v, want about 60m", ttl)
	}
}

func TestMintToken_MissingUser(t *testing.T) {
	writeTestConfig(t, 19198)

	var out bytes.Buffer
	if err := mintToken(nil, &out); err == nil {
		t.Fatal("mintToken() without -user should fail")
	}
	if out.Len() != 0 {
		t.Errorf("no token expected, got %q", out.String())
	}
}

// ─── Migrate subcommand ────────────────────────────────────────────

func TestMigrateCmd_UpStatusDown(t *testing.T) {
	writeTestConfig(t, 19198)
	ctx := context.Background()

	var out bytes.Buffer
	if err := migrateCmd(ctx, []string{"status"}, &out); err != nil {
		t.Fatalf("status error = %v", err)
	}
	if got := strings.Count(out.String(), "pending"); got != 3 {
		t.Errorf("pending before up = %d, want 3:\n%s", got, out.String())
	}

	out.Reset()
	if err := migrateCmd(ctx, []string{"up"}, &out); err != nil {
		t.Fatalf("up error = %v", err)
	}

	out.Reset()
	if err := migrateCmd(ctx, []string{"status"}, &out); err != nil {
		t.Fatalf("status error = %v", err)
	}
	if strings.Contains(out.String(), "pending") {
		t.Errorf("status after up still pending:\n%s", out.String())
	}

	out.Reset()
	if err := migrateCmd(ctx, []string{"down"}, &out); err != nil {
		t.Fatalf("down error = %v", err)
	}
	if !strings.Contains(out.String(), "audit") {
		t.Errorf("down output = %q, want the audit migration", out.String())
	}

	out.Reset()
	if err := migrateCmd(ctx, []string{"status"}, &out); err != nil {
		t.Fatalf("status error = %v", err)
	}
	if got := strings.Count(out.String(), "pending"); got != 1 {
		t.Errorf("pending after down = %d, want 1:\n%s", got, out.String())
	}
}

func TestMigrateCmd_BadArgs(t *testing.T) {
	writeTestConfig(t, 19198)

	for _, args := range [][]string{nil, {"sideways"}, {"up", "down"}} {
		var out bytes.Buffer
		if err := migrateCmd(context.Background(), args, &out); err == nil {
			t.Errorf("migrateCmd(%q) should fail", args)
		}
	}
}

// ─── Startup ───────────────────────────────────────────────────────

// TestRun_SuccessfulStartupAndShutdown starts the full service on SQLite
// with MQTT and InfluxDB disabled, drives one event through the API and
// shuts down cleanly.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	const port = 19190
	writeTestConfig(t, port)
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	waitForHealth(t, baseURL, errCh)

	token, err := auth.GenerateAccessToken("user-1", testSecret, "lifelog-test", 5)
	if err != nil {
		t.Fatal(err)
	}
	call := func(method, path, body string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(method, baseURL+path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := call(http.MethodPost, "/api/v1/routines", `{
		"name": "Low mood support",
		"triggers": [{"kind": "MOOD_BELOW_THRESHOLD", "params": {"threshold": 5}}],
		"actions": [{"kind": "SEND_NOTIFICATION", "params": {"message": "Take a breath"}}]
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create routine status = %d, want 201", resp.StatusCode)
	}

	resp = call(http.MethodPost, "/api/v1/events", `{"kind": "mood_logged", "data": {"moodScore": 2}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish event status = %d, want 202", resp.StatusCode)
	}
	var accepted struct {
		Result struct {
			RoutinesMatched  int `json:"routinesMatched"`
			ActionsSucceeded int `json:"actionsSucceeded"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Result.RoutinesMatched != 1 || accepted.Result.ActionsSucceeded != 1 {
		t.Errorf("result = %+v, want 1 matched 1 succeeded", accepted.Result)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

// TestRun_ContextCancelledDuringStartup verifies an already-cancelled
// context returns promptly.
func TestRun_ContextCancelledDuringStartup(t *testing.T) {
	writeTestConfig(t, 19191)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case err := <-done:
		t.Logf("run() returned: %v", err)
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return with a cancelled context")
	}
}
