package automation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the automation schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	// Matches the initial migration
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
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testRule(id, name string, enabled bool) *Rule {
	zone := "lobby"
	return &Rule{
		ID:      id,
		Name:    name,
		Enabled: enabled,
		Conditions: []Condition{
			{Type: "motion", Zone: &zone},
		},
		Actions: []ActionSpec{
			{DeviceID: "light.desk-1", Action: "turn_on", State: map[string]any{"brightness": float64(80)}},
		},
	}
}

func TestRuleRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRuleRepository(db)
	ctx := context.Background()

	rule := testRule("rule-1", "Lobby lights", true)
	rule.Schedule = map[string]any{"days": []any{"mon"}}

	if err := repo.Create(ctx, rule); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "rule-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Lobby lights" || !got.Enabled {
		t.Errorf("got = %+v", got)
	}
	if len(got.Conditions) != 1 || got.Conditions[0].Zone == nil || *got.Conditions[0].Zone != "lobby" {
		t.Errorf("conditions round-trip failed: %+v", got.Conditions)
	}
	if len(got.Actions) != 1 || got.Actions[0].State["brightness"] != float64(80) {
		t.Errorf("actions round-trip failed: %+v", got.Actions)
	}
	if got.Schedule == nil || got.Schedule["days"] == nil {
		t.Errorf("schedule round-trip failed: %+v", got.Schedule)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not persisted")
	}
}

func TestRuleRepository_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRuleRepository(db)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestRuleRepository_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRuleRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testRule("rule-1", "First", true)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, testRule("rule-1", "Second", true))
	if !errors.Is(err, ErrRuleExists) {
		t.Errorf("expected ErrRuleExists, got %v", err)
	}
}

func TestRuleRepository_ListEnabledOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRuleRepository(db)
	ctx := context.Background()

	for _, r := range []*Rule{
		testRule("rule-b", "B", true),
		testRule("rule-a", "A", false),
		testRule("rule-c", "C", true),
	} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create %s: %v", r.ID, err)
		}
	}

	enabled, err := repo.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("len = %d, want 2", len(enabled))
	}
	// Insertion order, not alphabetical
	if enabled[0].ID != "rule-b" || enabled[1].ID != "rule-c" {
		t.Errorf("order = [%s %s], want [rule-b rule-c]", enabled[0].ID, enabled[1].ID)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List len = %d, want 3", len(all))
	}
}

func TestSceneRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteSceneRepository(db)
	ctx := context.Background()

	scene := &Scene{
		ID:   "scene-1",
		Name: "Focus",
		Devices: []SceneDevice{
			{DeviceID: "light.desk-1", State: map[string]any{"power": "on"}},
			{DeviceID: "blind.window-1"},
		},
	}
	if err := repo.Create(ctx, scene); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := repo.GetByID(ctx, "scene-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Name != "Focus" || len(byID.Devices) != 2 {
		t.Errorf("byID = %+v", byID)
	}
	if byID.Devices[0].State["power"] != "on" {
		t.Errorf("device state round-trip failed: %+v", byID.Devices[0])
	}

	byName, err := repo.GetByName(ctx, "Focus")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.ID != "scene-1" {
		t.Errorf("byName.ID = %q", byName.ID)
	}

	if _, err := repo.GetByName(ctx, "Ghost"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("expected ErrSceneNotFound, got %v", err)
	}
}

func TestSceneRepository_GetByNameEarliestWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteSceneRepository(db)
	ctx := context.Background()

	first := &Scene{ID: "scene-1", Name: "Dup", Devices: []SceneDevice{{DeviceID: "d1"}}}
	second := &Scene{ID: "scene-2", Name: "Dup", Devices: []SceneDevice{{DeviceID: "d2"}}}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByName(ctx, "Dup")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != "scene-1" {
		t.Errorf("got %q, want the first insertion", got.ID)
	}
}

func TestExecutionLog_RawEvents(t *testing.T) {
	db := setupTestDB(t)
	log := NewSQLiteExecutionLog(db)
	ctx := context.Background()

	raw := &RawEvent{
		ID:        GenerateID(),
		Type:      "motion",
		SensorID:  "motion-3f-01",
		Detected:  true,
		Zone:      "lobby",
		Metadata:  map[string]any{"lux": float64(120)},
		Timestamp: "2026-03-15T08:30:00Z",
	}
	if err := log.AppendRawEvent(ctx, raw); err != nil {
		t.Fatalf("AppendRawEvent: %v", err)
	}
	if raw.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not defaulted")
	}

	// Empty optional fields store as NULL without error
	bare := &RawEvent{ID: GenerateID(), Type: "motion", SensorID: "m2", Detected: false}
	if err := log.AppendRawEvent(ctx, bare); err != nil {
		t.Fatalf("AppendRawEvent bare: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM raw_events").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestExecutionLog_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	log := NewSQLiteExecutionLog(db)
	ctx := context.Background()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	first := &Execution{
		ID:           GenerateID(),
		Event:        Event{Type: "motion", SensorID: "m1", Detected: true, Zone: "lobby"},
		MatchedRules: []string{"rule-1"},
		ActionsFired: []ActionCommand{{DeviceID: "light.desk-1", Action: "turn_off"}},
		CreatedAt:    now.Format(time.RFC3339),
	}
	kwh := 0.42
	second := &Execution{
		ID:           GenerateID(),
		Event:        Event{Type: "motion", SensorID: "m2", Detected: true},
		MatchedRules: []string{},
		ActionsFired: []ActionCommand{},
		EnergyKWhEst: &kwh,
		CreatedAt:    now.Add(time.Minute).Format(time.RFC3339),
	}

	if err := log.AppendExecution(ctx, first); err != nil {
		t.Fatalf("AppendExecution: %v", err)
	}
	if err := log.AppendExecution(ctx, second); err != nil {
		t.Fatalf("AppendExecution: %v", err)
	}

	executions, err := log.ListExecutions(ctx)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(executions) != 2 {
		t.Fatalf("len = %d, want 2", len(executions))
	}

	got := executions[0]
	if got.Event.SensorID != "m1" || got.Event.Zone != "lobby" {
		t.Errorf("event round-trip failed: %+v", got.Event)
	}
	if len(got.MatchedRules) != 1 || got.MatchedRules[0] != "rule-1" {
		t.Errorf("matched rules round-trip failed: %v", got.MatchedRules)
	}
	if len(got.ActionsFired) != 1 || got.ActionsFired[0].Action != "turn_off" {
		t.Errorf("actions round-trip failed: %+v", got.ActionsFired)
	}
	if got.EnergyKWhEst != nil {
		t.Error("EnergyKWhEst = non-nil, want NULL round-trip")
	}

	if executions[1].EnergyKWhEst == nil || *executions[1].EnergyKWhEst != 0.42 {
		t.Errorf("stored estimate round-trip failed: %v", executions[1].EnergyKWhEst)
	}
	if executions[1].MatchedRules == nil || executions[1].ActionsFired == nil {
		t.Error("empty slices must round-trip non-nil")
	}
}
