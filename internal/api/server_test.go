package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nfarrow/smart-office-core/internal/automation"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/config"
	"github.com/nfarrow/smart-office-core/internal/infrastructure/logging"
)

// testServer creates a Server with a real engine backed by in-memory SQLite.
func testServer(t *testing.T) *Server {
	t.Helper()

	db := setupTestDB(t)
	rules := automation.NewSQLiteRuleRepository(db)
	scenes := automation.NewSQLiteSceneRepository(db)
	execLog := automation.NewSQLiteExecutionLog(db)
	engine := automation.NewEngine(rules, scenes, execLog, nil, nil)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  log,
		Engine:  engine,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv
}

// setupTestDB creates an in-memory SQLite database with the automation schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			conditions TEXT NOT NULL DEFAULT '[]',
			actions TEXT NOT NULL DEFAULT '[]',
			schedule TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE scenes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			devices TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE raw_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			sensor_id TEXT NOT NULL,
			detected INTEGER NOT NULL DEFAULT 0,
			zone TEXT,
			metadata TEXT,
			timestamp TEXT,
			received_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE executions (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			matched_rules TEXT NOT NULL DEFAULT '[]',
			actions_fired TEXT NOT NULL DEFAULT '[]',
			energy_kwh_est REAL,
			created_at TEXT NOT NULL
		) STRICT;
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateRuleEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/automation/rules/create", `{
		"name": "Lobby lights",
		"conditions": [{"type": "motion", "zone": "lobby"}],
		"actions": [{"device_id": "light.lobby-1", "action": "turn_on"}]
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "rule created" {
		t.Errorf("message = %v, want %q", body["message"], "rule created")
	}
	if id, _ := body["id"].(string); id == "" {
		t.Error("id missing from response")
	}
}

func TestCreateRuleEndpoint_Validation(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "invalid JSON",
			body:    `{not json`,
			wantMsg: "invalid JSON body",
		},
		{
			name:    "missing name",
			body:    `{"actions": [{"scene_id": "s1"}]}`,
			wantMsg: "name is required (non-empty string)",
		},
		{
			name:    "missing actions",
			body:    `{"name": "r"}`,
			wantMsg: "actions is required (non-empty array)",
		},
		{
			name:    "mixed action forms",
			body:    `{"name": "r", "actions": [{"scene_id": "s1", "device_id": "d1"}]}`,
			wantMsg: "action #1 cannot include both scene_id AND device fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/automation/rules/create", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestActiveRulesEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/automation/rules/active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}
	if _, ok := body["rules"].([]any); !ok {
		t.Errorf("rules = %v, want array", body["rules"])
	}

	// Disabled rules are excluded
	doJSON(t, router, http.MethodPost, "/api/automation/rules/create",
		`{"name": "on", "actions": [{"device_id": "d1", "action": "turn_on"}]}`)
	doJSON(t, router, http.MethodPost, "/api/automation/rules/create",
		`{"name": "off", "enabled": false, "actions": [{"device_id": "d1", "action": "turn_on"}]}`)

	rec = doJSON(t, router, http.MethodGet, "/api/automation/rules/active", "")
	body = decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestMotionTriggerEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Scene referenced by the rule
	rec := doJSON(t, router, http.MethodPost, "/api/automation/scenes/create", `{
		"name": "Work",
		"devices": [
			{"device_id": "light.desk-1", "state": {"power": "on"}},
			{"device_id": "light.desk-2", "state": {"power": "on"}}
		]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("scene create status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/automation/rules/create", `{
		"name": "Lobby motion",
		"conditions": [{"type": "motion", "zone": "lobby"}],
		"actions": [{"scene_id": "Work"}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("rule create status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/automation/triggers/motion",
		`{"sensor_id": "motion-1", "detected": true, "zone": "lobby"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["processed"] != true {
		t.Errorf("processed = %v, want true", body["processed"])
	}
	matched, _ := body["matched_rules"].([]any)
	if len(matched) != 1 {
		t.Errorf("matched_rules = %v, want 1 entry", body["matched_rules"])
	}
	fired, _ := body["actions_fired"].([]any)
	if len(fired) != 2 {
		t.Errorf("actions_fired = %v, want 2 commands", body["actions_fired"])
	}
}

func TestMotionTriggerEndpoint_NoMotion(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/automation/triggers/motion",
		`{"sensor_id": "motion-1", "detected": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["processed"] != false {
		t.Errorf("processed = %v, want false", body["processed"])
	}
	if body["reason"] != "no motion" {
		t.Errorf("reason = %v, want %q", body["reason"], "no motion")
	}
	if _, present := body["matched_rules"]; present {
		t.Error("matched_rules should be omitted for unprocessed events")
	}
}

func TestMotionTriggerEndpoint_Validation(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/automation/triggers/motion", `{"detected": true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != "sensor_id required" {
		t.Errorf("message = %v, want %q", body["message"], "sensor_id required")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/automation/triggers/motion", `{"sensor_id": "m1", "detected": "yes"}`)
	body = decodeBody(t, rec)
	if body["message"] != "detected must be boolean" {
		t.Errorf("message = %v, want %q", body["message"], "detected must be boolean")
	}
}

func TestEnergySavingsEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	doJSON(t, router, http.MethodPost, "/api/automation/rules/create",
		`{"name": "shutdown", "actions": [{"device_id": "light.desk-1", "action": "turn_off"}]}`)
	doJSON(t, router, http.MethodPost, "/api/automation/triggers/motion",
		`{"sensor_id": "m1", "detected": true}`)

	rec := doJSON(t, router, http.MethodGet, "/api/automation/energy-savings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["window_days"] != float64(7) {
		t.Errorf("window_days = %v, want default 7", body["window_days"])
	}
	if body["count_executions"] != float64(1) {
		t.Errorf("count_executions = %v, want 1", body["count_executions"])
	}
	if body["total_kwh"] != 0.06 {
		t.Errorf("total_kwh = %v, want 0.06", body["total_kwh"])
	}

	// Explicit window echoes the requested value
	rec = doJSON(t, router, http.MethodGet, "/api/automation/energy-savings?days=30", "")
	body = decodeBody(t, rec)
	if body["window_days"] != float64(30) {
		t.Errorf("window_days = %v, want 30", body["window_days"])
	}

	// Non-numeric values fall back to the default
	rec = doJSON(t, router, http.MethodGet, "/api/automation/energy-savings?days=soon", "")
	body = decodeBody(t, rec)
	if body["window_days"] != float64(7) {
		t.Errorf("window_days = %v, want fallback 7", body["window_days"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestUnknownPathReturnsJSON404(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/automation/no-such-thing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeNotFound {
		t.Errorf("code = %v, want %q", body["code"], ErrCodeNotFound)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "my-request-id")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Header().Get("X-Request-ID") != "my-request-id" {
		t.Errorf("X-Request-ID = %q, want client value echoed", rec2.Header().Get("X-Request-ID"))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/automation/rules/active", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://dashboard.local" {
		t.Errorf("Allow-Origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Subscribe to automation events
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"automation.fired"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("writing subscribe: %v", err)
	}

	var ack WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack type = %q, want response", ack.Type)
	}

	srv.hub.Broadcast("automation.fired", map[string]any{"execution_id": "exec-1"})

	var event WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != "automation.fired" {
		t.Errorf("event = %+v, want automation.fired event", event)
	}
}
