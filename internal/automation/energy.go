package automation

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Heuristic kWh contributions per command shape. These are estimates, not
// metered measurements; the engine has no access to real power draw.
const (
	kwhOffLight   = 0.06
	kwhOffClimate = 0.15
	kwhOffOther   = 0.05
	kwhBrightness = 0.02
	kwhEcoMode    = 0.3
	kwhSetpoint   = 0.3

	setpointHigh = 24
	setpointLow  = 20

	hoursPerDay = 24
)

// EstimateCommand scores the estimated energy saving of a single device
// command in kWh.
//
// The heuristic is keyed on device-id prefix and action/state:
//   - turning a device off (turn_off, or state power "off") scores by
//     device class: light.* 0.06, climate.* 0.15, anything else 0.05
//   - set_brightness adds a flat 0.02
//   - set_mode with mode eco or auto_eco adds 0.3
//   - set_temp/set_temperature with a numeric target >=24 or <=20 adds 0.3
//
// Contributions are additive and the result is rounded to 4 decimals.
func EstimateCommand(cmd ActionCommand) float64 {
	kwh := 0.0

	powerOff := cmd.Action == "turn_off"
	if !powerOff {
		if power, ok := cmd.State["power"].(string); ok && power == "off" {
			powerOff = true
		}
	}

	if powerOff {
		switch {
		case strings.HasPrefix(cmd.DeviceID, "light."):
			kwh += kwhOffLight
		case strings.HasPrefix(cmd.DeviceID, "climate."):
			kwh += kwhOffClimate
		default:
			kwh += kwhOffOther
		}
	}

	if cmd.Action == "set_brightness" {
		kwh += kwhBrightness
	}

	if cmd.Action == "set_mode" {
		if mode, ok := cmd.State["mode"].(string); ok && (mode == "eco" || mode == "auto_eco") {
			kwh += kwhEcoMode
		}
	}

	if cmd.Action == "set_temp" || cmd.Action == "set_temperature" {
		if target, ok := asNumber(cmd.State["target"]); ok && (target >= setpointHigh || target <= setpointLow) {
			kwh += kwhSetpoint
		}
	}

	return round4(kwh)
}

// DayTotal is one entry in the by-day breakdown of an energy report.
type DayTotal struct {
	Date string  `json:"date"`
	KWh  float64 `json:"kwh"`
}

// DeviceTotal is one entry in the by-device breakdown of an energy report.
type DeviceTotal struct {
	DeviceID string  `json:"device_id"`
	KWh      float64 `json:"kwh"`
}

// EnergyReport summarises estimated savings over a window of executions.
type EnergyReport struct {
	WindowDays      int           `json:"window_days"`
	CountExecutions int           `json:"count_executions"`
	TotalKWh        float64       `json:"total_kwh"`
	ByDay           []DayTotal    `json:"by_day"`
	ByDevice        []DeviceTotal `json:"by_device"`
}

// Summarize aggregates estimated savings over the execution log.
//
// Records whose created_at parses and falls before now - windowDays are
// dropped; unparsable stamps keep the record but bucket it under the
// "unknown" day. The window floor of one day applies to the cutoff only;
// the echoed WindowDays is the requested value.
//
// Per-record energy is the stored estimate when present, otherwise the
// sum of EstimateCommand over its fired actions. The device breakdown
// always recomputes per-command estimates, so it can disagree with the
// grand total when stored estimates were used. Day and device buckets
// are rounded to 4 decimals on every addition.
func Summarize(executions []Execution, windowDays int, now time.Time) *EnergyReport {
	floorDays := windowDays
	if floorDays < 1 {
		floorDays = 1
	}
	cutoff := now.Add(-time.Duration(floorDays) * hoursPerDay * time.Hour)

	byDay := make(map[string]float64)
	byDevice := make(map[string]float64)

	count := 0
	total := 0.0

	for i := range executions {
		exec := &executions[i]

		day := "unknown"
		if t, err := parseTimestamp(exec.CreatedAt); err == nil {
			if t.Before(cutoff) {
				continue
			}
			day = t.Format("2006-01-02")
		}

		count++

		var kwh float64
		if exec.EnergyKWhEst != nil {
			kwh = *exec.EnergyKWhEst
		} else {
			for _, cmd := range exec.ActionsFired {
				kwh += EstimateCommand(cmd)
			}
		}
		total += kwh
		byDay[day] = round4(byDay[day] + kwh)

		for _, cmd := range exec.ActionsFired {
			deviceID := cmd.DeviceID
			if deviceID == "" {
				deviceID = "scene/unknown"
			}
			byDevice[deviceID] = round4(byDevice[deviceID] + EstimateCommand(cmd))
		}
	}

	report := &EnergyReport{
		WindowDays:      windowDays,
		CountExecutions: count,
		TotalKWh:        round4(total),
		ByDay:           make([]DayTotal, 0, len(byDay)),
		ByDevice:        make([]DeviceTotal, 0, len(byDevice)),
	}

	for date, kwh := range byDay {
		report.ByDay = append(report.ByDay, DayTotal{Date: date, KWh: kwh})
	}
	sort.Slice(report.ByDay, func(i, j int) bool {
		return report.ByDay[i].Date < report.ByDay[j].Date
	})

	for deviceID, kwh := range byDevice {
		report.ByDevice = append(report.ByDevice, DeviceTotal{DeviceID: deviceID, KWh: kwh})
	}
	sort.Slice(report.ByDevice, func(i, j int) bool {
		return report.ByDevice[i].DeviceID < report.ByDevice[j].DeviceID
	})

	return report
}

// parseTimestamp accepts RFC3339 stamps and naive ISO-8601 (no zone).
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
