package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nfarrow/smart-office-core/internal/automation"
)

// defaultEnergyWindowDays is the energy-savings window when none is requested.
const defaultEnergyWindowDays = 7

// handleCreateRule creates a new automation rule.
//
// The raw payload is passed to the engine for validation so rejected
// fields surface their exact message to the client.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rule, err := s.engine.CreateRule(r.Context(), payload)
	if err != nil {
		if automation.IsValidation(err) {
			writeValidationError(w, err.Error())
			return
		}
		if errors.Is(err, automation.ErrRuleExists) {
			writeConflict(w, "rule already exists")
			return
		}
		s.logger.Error("failed to create rule", "error", err)
		writeInternalError(w, "failed to create rule")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      rule.ID,
		"message": "rule created",
	})
}

// handleActiveRules returns all enabled rules in insertion order.
func (s *Server) handleActiveRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.engine.ActiveRules(r.Context())
	if err != nil {
		s.logger.Error("failed to list active rules", "error", err)
		writeInternalError(w, "failed to list active rules")
		return
	}
	if rules == nil {
		rules = []automation.Rule{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(rules),
		"rules": rules,
	})
}

// handleCreateScene creates a new scene.
func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	scene, err := s.engine.CreateScene(r.Context(), payload)
	if err != nil {
		if automation.IsValidation(err) {
			writeValidationError(w, err.Error())
			return
		}
		if errors.Is(err, automation.ErrSceneExists) {
			writeConflict(w, "scene already exists")
			return
		}
		s.logger.Error("failed to create scene", "error", err)
		writeInternalError(w, "failed to create scene")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      scene.ID,
		"message": "scene created",
	})
}

// handleMotionTrigger ingests a motion event and runs it through the
// rule engine. The evaluation result is returned synchronously.
func (s *Server) handleMotionTrigger(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	event, err := automation.ParseTrigger(payload)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	result, err := s.engine.HandleMotion(r.Context(), event)
	if err != nil {
		s.logger.Error("motion trigger failed", "sensor_id", event.SensorID, "error", err)
		writeInternalError(w, "failed to process motion event")
		return
	}

	if !result.Processed {
		writeJSON(w, http.StatusOK, map[string]any{
			"processed": false,
			"reason":    result.Reason,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleEnergySavings reports estimated savings over a trailing window.
//
// Query parameters:
//   - days: window size in days (default 7; non-numeric values fall back)
func (s *Server) handleEnergySavings(w http.ResponseWriter, r *http.Request) {
	days := defaultEnergyWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			days = parsed
		}
	}

	report, err := s.engine.EnergySavings(r.Context(), days)
	if err != nil {
		s.logger.Error("failed to compute energy savings", "error", err)
		writeInternalError(w, "failed to compute energy savings")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
