package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher is the interface for publishing resolved commands to devices.
type Dispatcher interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TelemetryRecorder is the interface for recording per-command energy
// estimates and motion occupancy samples to a time-series store.
type TelemetryRecorder interface {
	WriteEstimatedSavings(ruleID, deviceID string, kwh float64)
	WriteMotionEvent(sensorID, zone string, detected bool)
}

// Broadcaster is the interface for pushing events to WebSocket clients.
type Broadcaster interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Engine orchestrates rule evaluation.
//
// Each trigger runs one synchronous, stateless pipeline: log the raw
// event, scan enabled rules, evaluate conditions, resolve matched rules'
// actions into commands, and persist one Execution record. The engine
// retains nothing between calls and takes no cross-call locks, so
// concurrent invocations each see their own point-in-time rule snapshot.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	rules  RuleRepository
	scenes SceneRepository
	log    ExecutionLog
	clock  Clock
	logger Logger

	// Optional collaborators. All are best-effort: their failures are
	// logged and never affect the returned Result or stored Execution.
	dispatcher Dispatcher
	recorder   TelemetryRecorder
	hub        Broadcaster
}

// NewEngine creates a new rule engine.
//
// Parameters:
//   - rules: Rule repository for the enabled-rule scan
//   - scenes: Scene repository for action resolution
//   - log: Execution log sink for raw events and executions
//   - clock: Time source (nil defaults to the system clock)
//   - logger: Logger instance (nil defaults to no-op)
func NewEngine(rules RuleRepository, scenes SceneRepository, log ExecutionLog, clock Clock, logger Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		rules:  rules,
		scenes: scenes,
		log:    log,
		clock:  clock,
		logger: logger,
	}
}

// SetDispatcher attaches an MQTT dispatcher. Resolved commands are
// published to smartoffice/command/{device_id} after each evaluation.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.dispatcher = d
}

// SetTelemetryRecorder attaches a time-series recorder for per-command
// energy estimates and motion occupancy samples.
func (e *Engine) SetTelemetryRecorder(r TelemetryRecorder) {
	e.recorder = r
}

// SetBroadcaster attaches a WebSocket hub for automation.fired events.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.hub = b
}

// HandleMotion runs the evaluation pipeline for one motion event.
//
// Pipeline:
//  1. Normalise the event time: a parsable ISO-8601 client timestamp wins,
//     anything else degrades to the server-received time.
//  2. Append a raw-event record unconditionally, even for detected=false.
//  3. detected=false stops here with {processed: false, reason: "no motion"}.
//  4. Scan enabled rules in insertion order and evaluate each against the
//     event at the normalised time.
//  5. Resolve matched rules' actions into one cumulative command list.
//     A matched rule contributes its ID even when it resolves to zero
//     commands (dangling scene references are dropped silently).
//  6. Persist one Execution record and return the result.
//
// Repository failures abort the remaining steps and wrap ErrEngineFailure.
// The raw-event append and the Execution append are independent writes,
// not a transaction; a failure between them leaves the raw event logged.
func (e *Engine) HandleMotion(ctx context.Context, event *Event) (*Result, error) {
	receivedAt := e.clock.Now().UTC()
	event.ServerReceivedAt = receivedAt
	eventTime := normaliseEventTime(event.Timestamp, receivedAt)

	raw := &RawEvent{
		ID:         GenerateID(),
		Type:       event.Type,
		SensorID:   event.SensorID,
		Detected:   event.Detected,
		Zone:       event.Zone,
		Metadata:   event.Metadata,
		Timestamp:  event.Timestamp,
		ReceivedAt: receivedAt,
	}
	if err := e.log.AppendRawEvent(ctx, raw); err != nil {
		return nil, fmt.Errorf("%w: appending raw event: %w", ErrEngineFailure, err)
	}

	if e.recorder != nil {
		e.recorder.WriteMotionEvent(event.SensorID, event.Zone, event.Detected)
	}

	if !event.Detected {
		return &Result{Processed: false, Reason: "no motion"}, nil
	}

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing enabled rules: %w", ErrEngineFailure, err)
	}

	matched := make([]string, 0)
	commands := make([]ActionCommand, 0)

	for i := range rules {
		rule := &rules[i]
		if !Matches(rule.Conditions, event, eventTime) {
			continue
		}

		resolved, resolveErr := Resolve(ctx, rule.Actions, e.scenes)
		if resolveErr != nil {
			return nil, fmt.Errorf("%w: resolving rule %q: %w", ErrEngineFailure, rule.ID, resolveErr)
		}

		matched = append(matched, rule.ID)
		commands = append(commands, resolved...)

		e.dispatchCommands(rule.ID, resolved)
	}

	// CreatedAt is the server append time, not the client event time, so
	// the energy-report window sees every execution the moment it lands.
	exec := &Execution{
		ID:           GenerateID(),
		Event:        *event,
		MatchedRules: matched,
		ActionsFired: commands,
		CreatedAt:    receivedAt.Format(time.RFC3339),
	}
	if err := e.log.AppendExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("%w: appending execution: %w", ErrEngineFailure, err)
	}

	e.logger.Info("motion event processed",
		"sensor_id", event.SensorID,
		"zone", event.Zone,
		"matched_rules", len(matched),
		"actions_fired", len(commands),
	)

	if e.hub != nil {
		e.hub.Broadcast("automation.fired", map[string]any{
			"execution_id":  exec.ID,
			"sensor_id":     event.SensorID,
			"matched_rules": matched,
			"actions_fired": len(commands),
		})
	}

	return &Result{
		Processed:    true,
		MatchedRules: matched,
		ActionsFired: commands,
	}, nil
}

// dispatchCommands publishes each resolved command over MQTT and records
// its energy estimate. Both sinks are best-effort side channels.
func (e *Engine) dispatchCommands(ruleID string, commands []ActionCommand) {
	for _, cmd := range commands {
		if e.dispatcher != nil {
			payload, marshalErr := json.Marshal(map[string]any{
				"device_id": cmd.DeviceID,
				"action":    cmd.Action,
				"state":     cmd.State,
				"source":    "rule:" + ruleID,
			})
			if marshalErr != nil {
				e.logger.Error("failed to marshal command", "error", marshalErr)
				continue
			}

			topic := "smartoffice/command/" + cmd.DeviceID
			if pubErr := e.dispatcher.Publish(topic, payload, 1, false); pubErr != nil {
				e.logger.Warn("command publish failed",
					"topic", topic,
					"error", pubErr,
				)
			}
		}

		if e.recorder != nil {
			if kwh := EstimateCommand(cmd); kwh > 0 {
				deviceID := cmd.DeviceID
				if deviceID == "" {
					deviceID = "scene/unknown"
				}
				e.recorder.WriteEstimatedSavings(ruleID, deviceID, kwh)
			}
		}
	}
}

// CreateRule validates a raw payload, assigns identity and timestamps,
// and persists the rule.
func (e *Engine) CreateRule(ctx context.Context, payload map[string]any) (*Rule, error) {
	rule, err := ParseRule(payload)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	rule.ID = GenerateID()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}

	e.logger.Info("rule created", "rule_id", rule.ID, "name", rule.Name, "enabled", rule.Enabled)
	return rule, nil
}

// CreateScene validates a raw payload, assigns identity and timestamps,
// and persists the scene.
func (e *Engine) CreateScene(ctx context.Context, payload map[string]any) (*Scene, error) {
	scene, err := ParseScene(payload)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	scene.ID = GenerateID()
	scene.CreatedAt = now
	scene.UpdatedAt = now

	if err := e.scenes.Create(ctx, scene); err != nil {
		return nil, fmt.Errorf("creating scene: %w", err)
	}

	e.logger.Info("scene created", "scene_id", scene.ID, "name", scene.Name, "devices", len(scene.Devices))
	return scene, nil
}

// ActiveRules returns all enabled rules in insertion order.
func (e *Engine) ActiveRules(ctx context.Context) ([]Rule, error) {
	return e.rules.ListEnabled(ctx)
}

// EnergySavings aggregates estimated savings over the execution log for
// the requested window.
func (e *Engine) EnergySavings(ctx context.Context, windowDays int) (*EnergyReport, error) {
	executions, err := e.log.ListExecutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	return Summarize(executions, windowDays, e.clock.Now().UTC()), nil
}

// normaliseEventTime resolves the time a rule evaluation runs at: the
// client timestamp when it parses as ISO-8601 (converted to UTC),
// otherwise the server-received time. Parse failure is never surfaced.
func normaliseEventTime(timestamp string, receivedAt time.Time) time.Time {
	if timestamp == "" {
		return receivedAt
	}
	t, err := parseTimestamp(timestamp)
	if err != nil {
		return receivedAt
	}
	return t.UTC()
}
