package automation

import (
	"testing"
	"time"
)

func TestEstimateCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  ActionCommand
		want float64
	}{
		{
			name: "light off",
			cmd:  ActionCommand{DeviceID: "light.desk-12", Action: "turn_off"},
			want: 0.06,
		},
		{
			name: "climate off",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "turn_off"},
			want: 0.15,
		},
		{
			name: "other device off",
			cmd:  ActionCommand{DeviceID: "display.lobby", Action: "turn_off"},
			want: 0.05,
		},
		{
			name: "power off via state",
			cmd:  ActionCommand{DeviceID: "light.hall", Action: "set_state", State: map[string]any{"power": "off"}},
			want: 0.06,
		},
		{
			name: "power on scores nothing",
			cmd:  ActionCommand{DeviceID: "light.hall", Action: "set_state", State: map[string]any{"power": "on"}},
			want: 0,
		},
		{
			name: "brightness",
			cmd:  ActionCommand{DeviceID: "light.hall", Action: "set_brightness", State: map[string]any{"brightness": float64(40)}},
			want: 0.02,
		},
		{
			name: "eco mode",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_mode", State: map[string]any{"mode": "eco"}},
			want: 0.3,
		},
		{
			name: "auto eco mode",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_mode", State: map[string]any{"mode": "auto_eco"}},
			want: 0.3,
		},
		{
			name: "comfort mode scores nothing",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_mode", State: map[string]any{"mode": "comfort"}},
			want: 0,
		},
		{
			name: "high setpoint",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_temp", State: map[string]any{"target": float64(26)}},
			want: 0.3,
		},
		{
			name: "low setpoint",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_temperature", State: map[string]any{"target": float64(18)}},
			want: 0.3,
		},
		{
			name: "neutral setpoint scores nothing",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_temp", State: map[string]any{"target": float64(22)}},
			want: 0,
		},
		{
			name: "setpoint without target scores nothing",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_temp"},
			want: 0,
		},
		{
			name: "off and eco mode stack",
			cmd:  ActionCommand{DeviceID: "climate.floor3", Action: "set_mode", State: map[string]any{"power": "off", "mode": "eco"}},
			want: 0.45,
		},
		{
			name: "turn on scores nothing",
			cmd:  ActionCommand{DeviceID: "light.hall", Action: "turn_on"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCommand(tt.cmd)
			if got != tt.want {
				t.Errorf("EstimateCommand = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	stamp := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(time.RFC3339)
	}

	offLight := ActionCommand{DeviceID: "light.desk-1", Action: "turn_off"} // 0.06

	executions := []Execution{
		{ActionsFired: []ActionCommand{offLight}, CreatedAt: stamp(0)},
		{ActionsFired: []ActionCommand{offLight, offLight}, CreatedAt: stamp(1)},
		{ActionsFired: []ActionCommand{offLight}, CreatedAt: stamp(10)}, // outside window
	}

	report := Summarize(executions, 7, now)

	if report.WindowDays != 7 {
		t.Errorf("WindowDays = %d, want 7", report.WindowDays)
	}
	if report.CountExecutions != 2 {
		t.Errorf("CountExecutions = %d, want 2", report.CountExecutions)
	}
	if report.TotalKWh != 0.18 {
		t.Errorf("TotalKWh = %v, want 0.18", report.TotalKWh)
	}

	if len(report.ByDay) != 2 {
		t.Fatalf("len(ByDay) = %d, want 2", len(report.ByDay))
	}
	// Sorted ascending by date
	if report.ByDay[0].Date != "2026-03-14" || report.ByDay[0].KWh != 0.12 {
		t.Errorf("ByDay[0] = %+v", report.ByDay[0])
	}
	if report.ByDay[1].Date != "2026-03-15" || report.ByDay[1].KWh != 0.06 {
		t.Errorf("ByDay[1] = %+v", report.ByDay[1])
	}

	if len(report.ByDevice) != 1 {
		t.Fatalf("len(ByDevice) = %d, want 1", len(report.ByDevice))
	}
	if report.ByDevice[0].DeviceID != "light.desk-1" || report.ByDevice[0].KWh != 0.18 {
		t.Errorf("ByDevice[0] = %+v", report.ByDevice[0])
	}
}

func TestSummarize_StoredEstimatePreferred(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	stored := 1.5

	executions := []Execution{
		{
			ActionsFired: []ActionCommand{{DeviceID: "light.desk-1", Action: "turn_off"}},
			EnergyKWhEst: &stored,
			CreatedAt:    now.Format(time.RFC3339),
		},
	}

	report := Summarize(executions, 7, now)

	if report.TotalKWh != 1.5 {
		t.Errorf("TotalKWh = %v, want stored 1.5", report.TotalKWh)
	}
	// Device breakdown always recomputes
	if len(report.ByDevice) != 1 || report.ByDevice[0].KWh != 0.06 {
		t.Errorf("ByDevice = %+v, want recomputed 0.06", report.ByDevice)
	}
}

func TestSummarize_UnparsableStampKeptUnderUnknown(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	executions := []Execution{
		{
			ActionsFired: []ActionCommand{{DeviceID: "light.desk-1", Action: "turn_off"}},
			CreatedAt:    "last tuesday",
		},
	}

	report := Summarize(executions, 7, now)

	if report.CountExecutions != 1 {
		t.Fatalf("CountExecutions = %d, want 1", report.CountExecutions)
	}
	if len(report.ByDay) != 1 || report.ByDay[0].Date != "unknown" {
		t.Errorf("ByDay = %+v, want unknown bucket", report.ByDay)
	}
}

func TestSummarize_NaiveTimestampAccepted(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	executions := []Execution{
		{
			ActionsFired: []ActionCommand{{DeviceID: "light.desk-1", Action: "turn_off"}},
			CreatedAt:    "2026-03-15T08:30:00",
		},
	}

	report := Summarize(executions, 7, now)

	if len(report.ByDay) != 1 || report.ByDay[0].Date != "2026-03-15" {
		t.Errorf("ByDay = %+v, want 2026-03-15 bucket", report.ByDay)
	}
}

func TestSummarize_WindowFloor(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	executions := []Execution{
		{
			ActionsFired: []ActionCommand{{DeviceID: "light.desk-1", Action: "turn_off"}},
			CreatedAt:    now.Add(-12 * time.Hour).Format(time.RFC3339),
		},
		{
			ActionsFired: []ActionCommand{{DeviceID: "light.desk-2", Action: "turn_off"}},
			CreatedAt:    now.Add(-36 * time.Hour).Format(time.RFC3339),
		},
	}

	report := Summarize(executions, 0, now)

	// Cutoff floors at one day; requested value echoed untouched.
	if report.WindowDays != 0 {
		t.Errorf("WindowDays = %d, want 0", report.WindowDays)
	}
	if report.CountExecutions != 1 {
		t.Errorf("CountExecutions = %d, want 1", report.CountExecutions)
	}
}

func TestSummarize_SceneCommandsBucketedUnknownDevice(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	executions := []Execution{
		{
			ActionsFired: []ActionCommand{{Action: "turn_off"}},
			CreatedAt:    now.Format(time.RFC3339),
		},
	}

	report := Summarize(executions, 7, now)

	if len(report.ByDevice) != 1 || report.ByDevice[0].DeviceID != "scene/unknown" {
		t.Errorf("ByDevice = %+v, want scene/unknown bucket", report.ByDevice)
	}
}

func TestSummarize_Repeatable(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	stored := 1.5

	executions := []Execution{
		{
			ActionsFired: []ActionCommand{
				{DeviceID: "light.desk-1", Action: "turn_off"},
				{DeviceID: "climate.floor3", Action: "set_mode", State: map[string]any{"mode": "eco"}},
			},
			CreatedAt: now.Format(time.RFC3339),
		},
		{
			ActionsFired: []ActionCommand{{Action: "turn_off"}},
			EnergyKWhEst: &stored,
			CreatedAt:    now.AddDate(0, 0, -2).Format(time.RFC3339),
		},
	}

	first := Summarize(executions, 7, now)
	second := Summarize(executions, 7, now)

	if first.CountExecutions != second.CountExecutions || first.TotalKWh != second.TotalKWh {
		t.Errorf("headline differs between calls: %+v vs %+v", first, second)
	}
	if len(first.ByDay) != len(second.ByDay) {
		t.Fatalf("ByDay lengths differ: %d vs %d", len(first.ByDay), len(second.ByDay))
	}
	for i := range first.ByDay {
		if first.ByDay[i] != second.ByDay[i] {
			t.Errorf("ByDay[%d] differs: %+v vs %+v", i, first.ByDay[i], second.ByDay[i])
		}
	}
	if len(first.ByDevice) != len(second.ByDevice) {
		t.Fatalf("ByDevice lengths differ: %d vs %d", len(first.ByDevice), len(second.ByDevice))
	}
	for i := range first.ByDevice {
		if first.ByDevice[i] != second.ByDevice[i] {
			t.Errorf("ByDevice[%d] differs: %+v vs %+v", i, first.ByDevice[i], second.ByDevice[i])
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	report := Summarize(nil, 7, time.Now())

	if report.CountExecutions != 0 || report.TotalKWh != 0 {
		t.Errorf("report = %+v, want zeroes", report)
	}
	if report.ByDay == nil || report.ByDevice == nil {
		t.Error("breakdown slices must be non-nil")
	}
}
