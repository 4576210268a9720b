package automation

import (
	"strings"

	"github.com/google/uuid"
)

// ParseRule validates a raw rule-creation payload and returns a Rule.
//
// Only the mandatory shape is strictly enforced: name and the action list.
// Malformed optional fields are defanged rather than rejected, so client
// bugs degrade gracefully instead of blocking rule creation:
//   - enabled: coerced to boolean via JSON truthiness, default true
//   - conditions: silently replaced with an empty list when not an array
//   - schedule: silently discarded when not an object
//
// The first violated field produces a ValidationError whose message is
// surfaced verbatim to the client.
func ParseRule(payload map[string]any) (*Rule, error) {
	name, _ := payload["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name is required (non-empty string)")
	}

	rawActions, ok := payload["actions"].([]any)
	if !ok || len(rawActions) == 0 {
		return nil, newValidationError("actions is required (non-empty array)")
	}

	actions := make([]ActionSpec, 0, len(rawActions))
	for i, raw := range rawActions {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, newValidationError("action #%d must be an object", i+1)
		}

		spec, err := parseActionSpec(i+1, entry)
		if err != nil {
			return nil, err
		}
		actions = append(actions, spec)
	}

	rule := &Rule{
		Name:       name,
		Enabled:    asBool(payload["enabled"], true),
		Conditions: parseConditions(payload["conditions"]),
		Actions:    actions,
	}

	if schedule, ok := payload["schedule"].(map[string]any); ok {
		rule.Schedule = schedule
	}

	return rule, nil
}

// parseActionSpec validates a single action entry. idx is 1-based for
// error messages.
func parseActionSpec(idx int, entry map[string]any) (ActionSpec, error) {
	sceneID, _ := entry["scene_id"].(string)
	deviceID, _ := entry["device_id"].(string)
	action, _ := entry["action"].(string)

	hasScene := sceneID != ""
	hasDevice := deviceID != "" && action != ""

	// A stray device_id or action alongside scene_id does not count as a
	// device action; only the complete device form conflicts with a scene
	// reference.
	if hasScene && hasDevice {
		return ActionSpec{}, newValidationError(
			"action #%d cannot include both scene_id AND device fields", idx)
	}
	if !hasScene && !hasDevice {
		return ActionSpec{}, newValidationError(
			"action #%d must include scene_id OR (device_id and action)", idx)
	}

	spec := ActionSpec{
		SceneID:  sceneID,
		DeviceID: deviceID,
		Action:   action,
	}

	if rawState, present := entry["state"]; present && rawState != nil {
		state, ok := rawState.(map[string]any)
		if !ok {
			return ActionSpec{}, newValidationError(
				"action #%d 'state' must be an object if provided", idx)
		}
		spec.State = state
	}

	return spec, nil
}

// parseConditions maps the raw conditions value into Condition entries.
// A non-array value yields an empty list; non-object entries are dropped.
// Unknown condition types are kept as-is (they evaluate true).
func parseConditions(raw any) []Condition {
	list, ok := raw.([]any)
	if !ok {
		return []Condition{}
	}

	conds := make([]Condition, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		c := Condition{}
		c.Type, _ = m["type"].(string)

		if zone, ok := m["zone"].(string); ok {
			c.Zone = &zone
		}
		if after, ok := m["after"].(string); ok {
			c.After = &after
		}
		if before, ok := m["before"].(string); ok {
			c.Before = &before
		}
		if lte, ok := asNumber(m["lte"]); ok {
			c.Lte = &lte
		}
		if gte, ok := asNumber(m["gte"]); ok {
			c.Gte = &gte
		}

		conds = append(conds, c)
	}
	return conds
}

// ParseScene validates a raw scene-creation payload and returns a Scene.
func ParseScene(payload map[string]any) (*Scene, error) {
	name, _ := payload["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name is required")
	}

	rawDevices, ok := payload["devices"].([]any)
	if !ok || len(rawDevices) == 0 {
		return nil, newValidationError("devices must be a non-empty array")
	}

	devices := make([]SceneDevice, 0, len(rawDevices))
	for i, raw := range rawDevices {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, newValidationError("device #%d must be an object", i+1)
		}

		deviceID, _ := entry["device_id"].(string)
		if deviceID == "" {
			return nil, newValidationError("device #%d missing valid device_id", i+1)
		}

		dev := SceneDevice{DeviceID: deviceID}
		if rawState, present := entry["state"]; present && rawState != nil {
			state, ok := rawState.(map[string]any)
			if !ok {
				return nil, newValidationError("device #%d 'state' must be an object", i+1)
			}
			dev.State = state
		}
		devices = append(devices, dev)
	}

	return &Scene{Name: name, Devices: devices}, nil
}

// ParseTrigger validates a raw motion-trigger payload and returns an Event.
// Only sensor_id and detected are mandatory; zone, metadata and timestamp
// are carried when well-formed and dropped otherwise.
func ParseTrigger(payload map[string]any) (*Event, error) {
	sensorID, _ := payload["sensor_id"].(string)
	sensorID = strings.TrimSpace(sensorID)
	if sensorID == "" {
		return nil, newValidationError("sensor_id required")
	}

	detected, ok := payload["detected"].(bool)
	if !ok {
		return nil, newValidationError("detected must be boolean")
	}

	event := &Event{
		Type:     "motion",
		SensorID: sensorID,
		Detected: detected,
	}

	if zone, ok := payload["zone"].(string); ok {
		event.Zone = zone
	}
	if metadata, ok := payload["metadata"].(map[string]any); ok {
		event.Metadata = metadata
	}
	if ts, ok := payload["timestamp"].(string); ok {
		event.Timestamp = ts
	}

	return event, nil
}

// asBool coerces a decoded JSON value to a boolean using JSON truthiness:
// absent/null falls back to def, numbers are true when non-zero, strings
// when non-empty, arrays and objects when non-empty.
func asBool(v any, def bool) bool {
	switch val := v.(type) {
	case nil:
		return def
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// asNumber extracts a float64 from a decoded JSON value.
// encoding/json decodes all JSON numbers as float64; int covers values
// assembled in tests or internal callers.
func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}

// GenerateID creates a new UUID for a rule, scene, or execution.
func GenerateID() string {
	return uuid.New().String()
}
