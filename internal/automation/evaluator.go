package automation

import (
	"strconv"
	"strings"
	"time"
)

// Matches reports whether every condition in the list holds for the event
// at the given time. An empty list always matches; evaluation
// short-circuits on the first failing condition, in declared order.
//
// Unrecognised condition types evaluate true, so a rule containing one
// still fires when its known conditions hold.
func Matches(conditions []Condition, event *Event, now time.Time) bool {
	for i := range conditions {
		if !evaluateCondition(&conditions[i], event, now) {
			return false
		}
	}
	return true
}

func evaluateCondition(c *Condition, event *Event, now time.Time) bool {
	switch c.Type {
	case "motion":
		return evaluateMotion(c, event)
	case "time":
		return evaluateTime(c, now)
	case "lux":
		return evaluateLux(c, event)
	default:
		return true
	}
}

// evaluateMotion fails only when the condition pins a zone and the event
// came from a different one. The detected gate happens upstream, before
// any rule is evaluated, so it is not re-checked here.
func evaluateMotion(c *Condition, event *Event) bool {
	if c.Zone != nil && *c.Zone != "" && *c.Zone != event.Zone {
		return false
	}
	return true
}

// evaluateTime checks the event time against an HH:MM window. A malformed
// bound is inert: its comparison is skipped rather than failed. A missing
// before defaults to end of day. There is no support for windows crossing
// midnight; after > before never matches.
func evaluateTime(c *Condition, now time.Time) bool {
	nowMinutes := now.Hour()*60 + now.Minute()

	if c.After != nil {
		if after, ok := parseHHMM(*c.After); ok && nowMinutes < after {
			return false
		}
	}

	before := "23:59"
	if c.Before != nil && *c.Before != "" {
		before = *c.Before
	}
	if beforeMin, ok := parseHHMM(before); ok && nowMinutes > beforeMin {
		return false
	}

	return true
}

// evaluateLux reads lux from event metadata and checks the inclusive
// bounds. A missing or non-numeric reading fails the condition.
func evaluateLux(c *Condition, event *Event) bool {
	lux, ok := asNumber(event.Metadata["lux"])
	if !ok {
		return false
	}

	if c.Lte != nil && lux > *c.Lte {
		return false
	}
	if c.Gte != nil && lux < *c.Gte {
		return false
	}
	return true
}

// parseHHMM converts an "HH:MM" string to minutes since midnight.
// Returns ok=false for anything that does not parse.
func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}

	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}

	return hours*60 + minutes, true
}
