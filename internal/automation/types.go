package automation

import "time"

// Rule represents a stored automation definition: when its conditions hold
// for an incoming event, its actions expand into device commands.
//
// Rules are created by the validator on admission and never mutated by the
// engine; evaluation treats them as read-only.
type Rule struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Configuration
	Enabled bool `json:"enabled"`

	// Conditions to satisfy (ordered, AND semantics, empty = always)
	Conditions []Condition `json:"conditions"`

	// Actions to expand when matched (ordered, at least one)
	Actions []ActionSpec `json:"actions"`

	// Schedule is an opaque client object; nil when absent or malformed.
	// The engine core does not interpret it.
	Schedule map[string]any `json:"schedule,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Condition is one predicate over an incoming event.
//
// The recognised types are "motion", "time" and "lux". Unrecognised types
// are stored as-is and always evaluate true. Pointer fields preserve
// presence: a lux condition with lte absent is different from lte zero.
type Condition struct {
	Type string `json:"type"`

	// Motion: optional zone the event must originate from.
	Zone *string `json:"zone,omitempty"`

	// Time: optional HH:MM window bounds.
	After  *string `json:"after,omitempty"`
	Before *string `json:"before,omitempty"`

	// Lux: optional inclusive bounds on event metadata lux.
	Lte *float64 `json:"lte,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
}

// ActionSpec is one entry in a rule's action list: either a scene
// reference (SceneID set) or a direct device action (DeviceID and Action
// set), never both. The validator enforces the invariant on admission.
type ActionSpec struct {
	SceneID  string         `json:"scene_id,omitempty"`
	DeviceID string         `json:"device_id,omitempty"`
	Action   string         `json:"action,omitempty"`
	State    map[string]any `json:"state,omitempty"`
}

// Scene represents a named bundle of device target states that rules can
// reference for bulk expansion.
type Scene struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Devices []SceneDevice `json:"devices"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SceneDevice is one device entry within a scene.
type SceneDevice struct {
	DeviceID string         `json:"device_id"`
	State    map[string]any `json:"state,omitempty"`
}

// Event is a transient sensor observation submitted for evaluation.
// It is not persisted as a first-class entity; the raw-event log keeps a
// snapshot for audit.
type Event struct {
	Type     string `json:"type"`
	SensorID string `json:"sensor_id"`
	Detected bool   `json:"detected"`
	Zone     string `json:"zone,omitempty"`

	// Metadata carries opaque sensor readings (e.g. lux).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamp is the client-supplied ISO-8601 stamp, raw. Unparsable
	// values degrade to the server-received time during evaluation.
	Timestamp string `json:"timestamp,omitempty"`

	// ServerReceivedAt is when the event entered the system.
	ServerReceivedAt time.Time `json:"server_received_at"`
}

// ActionCommand is one resolved device instruction, ready for dispatch.
// Produced fresh per evaluation; consumed by the energy estimator and the
// command dispatcher.
type ActionCommand struct {
	DeviceID string         `json:"device_id"`
	Action   string         `json:"action"`
	State    map[string]any `json:"state,omitempty"`
}

// RawEvent is the audit snapshot of an incoming trigger, appended before
// any rule evaluation happens (including for detected=false events).
type RawEvent struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	SensorID string         `json:"sensor_id"`
	Detected bool           `json:"detected"`
	Zone     string         `json:"zone,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamp is the raw client stamp, kept verbatim.
	Timestamp string `json:"timestamp,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Execution is the append-only audit record of one event's rule matching
// and the cumulative action list it produced.
type Execution struct {
	ID           string          `json:"id"`
	Event        Event           `json:"event"`
	MatchedRules []string        `json:"matched_rules"`
	ActionsFired []ActionCommand `json:"actions_fired"`

	// EnergyKWhEst is an optional stored estimate. The engine leaves it
	// nil; the aggregator recomputes from ActionsFired when absent.
	EnergyKWhEst *float64 `json:"energy_kwh_est,omitempty"`

	// CreatedAt is kept as a string: the log is an external sink and the
	// aggregator must bucket unparsable stamps under "unknown" rather than
	// drop the record.
	CreatedAt string `json:"created_at"`
}

// Result is the outcome of one trigger evaluation.
type Result struct {
	Processed    bool            `json:"processed"`
	Reason       string          `json:"reason,omitempty"`
	MatchedRules []string        `json:"matched_rules"`
	ActionsFired []ActionCommand `json:"actions_fired"`
}

// DeepCopy creates a complete independent copy of the Rule.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}

	cpy := *r

	if r.Conditions != nil {
		cpy.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			cpy.Conditions[i] = c
			cpy.Conditions[i].Zone = cloneStringPtr(c.Zone)
			cpy.Conditions[i].After = cloneStringPtr(c.After)
			cpy.Conditions[i].Before = cloneStringPtr(c.Before)
			cpy.Conditions[i].Lte = cloneFloatPtr(c.Lte)
			cpy.Conditions[i].Gte = cloneFloatPtr(c.Gte)
		}
	}

	if r.Actions != nil {
		cpy.Actions = make([]ActionSpec, len(r.Actions))
		for i, a := range r.Actions {
			cpy.Actions[i] = a
			if a.State != nil {
				cpy.Actions[i].State = deepCopyMap(a.State)
			}
		}
	}

	if r.Schedule != nil {
		cpy.Schedule = deepCopyMap(r.Schedule)
	}

	return &cpy
}

// DeepCopy creates a complete independent copy of the Scene.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.Devices != nil {
		cpy.Devices = make([]SceneDevice, len(s.Devices))
		for i, d := range s.Devices {
			cpy.Devices[i] = d
			if d.State != nil {
				cpy.Devices[i].State = deepCopyMap(d.State)
			}
		}
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneFloatPtr creates an independent copy of a *float64.
func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
