package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RuleRepository defines the interface for rule persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type RuleRepository interface {
	Create(ctx context.Context, rule *Rule) error
	GetByID(ctx context.Context, id string) (*Rule, error)
	List(ctx context.Context) ([]Rule, error)
	// ListEnabled returns enabled rules in insertion order.
	ListEnabled(ctx context.Context) ([]Rule, error)
}

// SceneRepository defines the interface for scene persistence.
type SceneRepository interface {
	Create(ctx context.Context, scene *Scene) error
	GetByID(ctx context.Context, id string) (*Scene, error)
	GetByName(ctx context.Context, name string) (*Scene, error)
}

// ExecutionLog defines the interface for the append-only event and
// execution history.
type ExecutionLog interface {
	AppendRawEvent(ctx context.Context, raw *RawEvent) error
	AppendExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context) ([]Execution, error)
}

// ruleColumns is the SELECT column list for rule queries.
const ruleColumns = `id, name, enabled, conditions, actions, schedule, created_at, updated_at`

// SQLiteRuleRepository implements RuleRepository using SQLite.
type SQLiteRuleRepository struct {
	db *sql.DB
}

// NewSQLiteRuleRepository creates a new SQLite-backed rule repository.
func NewSQLiteRuleRepository(db *sql.DB) *SQLiteRuleRepository {
	return &SQLiteRuleRepository{db: db}
}

// Create inserts a new rule.
func (r *SQLiteRuleRepository) Create(ctx context.Context, rule *Rule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshalling conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("marshalling actions: %w", err)
	}
	scheduleJSON, err := marshalSchedule(rule.Schedule)
	if err != nil {
		return fmt.Errorf("marshalling schedule: %w", err)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}

	query := `
		INSERT INTO rules (
			id, name, enabled, conditions, actions, schedule, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		boolToInt(rule.Enabled),
		string(conditionsJSON),
		string(actionsJSON),
		scheduleJSON,
		rule.CreatedAt.Format(time.RFC3339),
		rule.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule by its unique identifier.
func (r *SQLiteRuleRepository) GetByID(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRuleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("querying rule by id: %w", err)
	}
	return rule, nil
}

// List retrieves all rules in insertion order.
func (r *SQLiteRuleRepository) List(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules ORDER BY rowid`
	return r.queryRules(ctx, query)
}

// ListEnabled retrieves enabled rules in insertion order. Evaluation
// depends on this order for deterministic matched-rule output.
func (r *SQLiteRuleRepository) ListEnabled(ctx context.Context) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE enabled = 1 ORDER BY rowid`
	return r.queryRules(ctx, query)
}

// queryRules executes a query and returns a slice of rules.
func (r *SQLiteRuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, scanErr := scanRuleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// SQLiteSceneRepository implements SceneRepository using SQLite.
type SQLiteSceneRepository struct {
	db *sql.DB
}

// NewSQLiteSceneRepository creates a new SQLite-backed scene repository.
func NewSQLiteSceneRepository(db *sql.DB) *SQLiteSceneRepository {
	return &SQLiteSceneRepository{db: db}
}

// Create inserts a new scene.
func (r *SQLiteSceneRepository) Create(ctx context.Context, scene *Scene) error {
	devicesJSON, err := json.Marshal(scene.Devices)
	if err != nil {
		return fmt.Errorf("marshalling devices: %w", err)
	}

	now := time.Now().UTC()
	if scene.CreatedAt.IsZero() {
		scene.CreatedAt = now
	}
	if scene.UpdatedAt.IsZero() {
		scene.UpdatedAt = now
	}

	query := `
		INSERT INTO scenes (
			id, name, devices, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		scene.ID,
		scene.Name,
		string(devicesJSON),
		scene.CreatedAt.Format(time.RFC3339),
		scene.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSceneExists
		}
		return fmt.Errorf("inserting scene: %w", err)
	}
	return nil
}

// GetByID retrieves a scene by its unique identifier.
func (r *SQLiteSceneRepository) GetByID(ctx context.Context, id string) (*Scene, error) {
	query := `SELECT id, name, devices, created_at, updated_at FROM scenes WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	scene, err := scanSceneRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSceneNotFound
		}
		return nil, fmt.Errorf("querying scene by id: %w", err)
	}
	return scene, nil
}

// GetByName retrieves a scene by its display name. Names are not
// unique; the earliest insertion wins.
func (r *SQLiteSceneRepository) GetByName(ctx context.Context, name string) (*Scene, error) {
	query := `SELECT id, name, devices, created_at, updated_at FROM scenes WHERE name = ? ORDER BY rowid LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, name)
	scene, err := scanSceneRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSceneNotFound
		}
		return nil, fmt.Errorf("querying scene by name: %w", err)
	}
	return scene, nil
}

// SQLiteExecutionLog implements ExecutionLog using SQLite.
type SQLiteExecutionLog struct {
	db *sql.DB
}

// NewSQLiteExecutionLog creates a new SQLite-backed execution log.
func NewSQLiteExecutionLog(db *sql.DB) *SQLiteExecutionLog {
	return &SQLiteExecutionLog{db: db}
}

// AppendRawEvent inserts a raw trigger record.
func (r *SQLiteExecutionLog) AppendRawEvent(ctx context.Context, raw *RawEvent) error {
	metadataJSON, err := marshalSchedule(raw.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	if raw.ReceivedAt.IsZero() {
		raw.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO raw_events (
			id, event_type, sensor_id, detected, zone, metadata, timestamp, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		raw.ID,
		raw.Type,
		raw.SensorID,
		boolToInt(raw.Detected),
		nullableValue(raw.Zone),
		metadataJSON,
		nullableValue(raw.Timestamp),
		raw.ReceivedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting raw event: %w", err)
	}
	return nil
}

// AppendExecution inserts an evaluation outcome record.
func (r *SQLiteExecutionLog) AppendExecution(ctx context.Context, exec *Execution) error {
	eventJSON, err := json.Marshal(exec.Event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	matchedJSON, err := json.Marshal(exec.MatchedRules)
	if err != nil {
		return fmt.Errorf("marshalling matched rules: %w", err)
	}
	actionsJSON, err := json.Marshal(exec.ActionsFired)
	if err != nil {
		return fmt.Errorf("marshalling actions fired: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, event, matched_rules, actions_fired, energy_kwh_est, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		exec.ID,
		string(eventJSON),
		string(matchedJSON),
		string(actionsJSON),
		nullableFloat(exec.EnergyKWhEst),
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves all execution records in insertion order.
func (r *SQLiteExecutionLog) ListExecutions(ctx context.Context) ([]Execution, error) {
	query := `SELECT id, event, matched_rules, actions_fired, energy_kwh_est, created_at FROM executions ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		exec, scanErr := scanExecutionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleRow(scanner rowScanner) (*Rule, error) {
	var r Rule
	var enabled int
	var conditionsJSON, actionsJSON string
	var scheduleJSON sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&r.ID,
		&r.Name,
		&enabled,
		&conditionsJSON,
		&actionsJSON,
		&scheduleJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Enabled = enabled != 0

	if conditionsJSON != "" && conditionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(conditionsJSON), &r.Conditions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling conditions: %w", jsonErr)
		}
	}
	if r.Conditions == nil {
		r.Conditions = []Condition{}
	}

	if actionsJSON != "" && actionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(actionsJSON), &r.Actions); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling actions: %w", jsonErr)
		}
	}
	if r.Actions == nil {
		r.Actions = []ActionSpec{}
	}

	if scheduleJSON.Valid && scheduleJSON.String != "" && scheduleJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(scheduleJSON.String), &r.Schedule); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling schedule: %w", jsonErr)
		}
	}

	// Timestamps are stored as RFC3339 strings
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		r.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		r.UpdatedAt = t
	}

	return &r, nil
}

func scanSceneRow(scanner rowScanner) (*Scene, error) {
	var s Scene
	var devicesJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&devicesJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if devicesJSON != "" && devicesJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(devicesJSON), &s.Devices); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling devices: %w", jsonErr)
		}
	}
	if s.Devices == nil {
		s.Devices = []SceneDevice{}
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		s.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		s.UpdatedAt = t
	}

	return &s, nil
}

func scanExecutionRow(scanner rowScanner) (*Execution, error) {
	var e Execution
	var eventJSON, matchedJSON, actionsJSON string
	var energy sql.NullFloat64

	err := scanner.Scan(
		&e.ID,
		&eventJSON,
		&matchedJSON,
		&actionsJSON,
		&energy,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if eventJSON != "" {
		if jsonErr := json.Unmarshal([]byte(eventJSON), &e.Event); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling event: %w", jsonErr)
		}
	}
	if matchedJSON != "" && matchedJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(matchedJSON), &e.MatchedRules); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling matched rules: %w", jsonErr)
		}
	}
	if e.MatchedRules == nil {
		e.MatchedRules = []string{}
	}
	if actionsJSON != "" && actionsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(actionsJSON), &e.ActionsFired); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling actions fired: %w", jsonErr)
		}
	}
	if e.ActionsFired == nil {
		e.ActionsFired = []ActionCommand{}
	}

	if energy.Valid {
		v := energy.Float64
		e.EnergyKWhEst = &v
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func nullableValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func marshalSchedule(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
