package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pressflow/pressflow/internal/database"
	"github.com/pressflow/pressflow/internal/models"
	"github.com/pressflow/pressflow/internal/scheduler"
)

// RuleHandler serves automation rule management and the scheduler surface.
type RuleHandler struct {
	rules     *database.RuleRepository
	logs      *database.ExecutionLogRepository
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewRuleHandler creates a rule handler.
func NewRuleHandler(rules *database.RuleRepository, logs *database.ExecutionLogRepository, sched *scheduler.Scheduler, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		rules:     rules,
		logs:      logs,
		scheduler: sched,
		logger:    logger,
	}
}

// Rules handles GET and POST /api/rules
func (h *RuleHandler) Rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := h.rules.ListRules(r.Context())
		if err != nil {
			h.logger.Error("failed to list rules", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules, "count": len(rules)}, h.logger)

	case http.MethodPost:
		var req models.CreateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
			return
		}
		if req.BlogID == "" || req.Name == "" {
			writeError(w, http.StatusBadRequest, "blog_id and name are required", h.logger)
			return
		}
		for _, d := range req.PublishingDays {
			if d < 0 || d > 6 {
				writeError(w, http.StatusBadRequest, "publishing_days must be between 0 and 6", h.logger)
				return
			}
		}

		rule, err := h.rules.CreateRule(r.Context(), req)
		if err != nil {
			h.logger.Error("failed to create rule", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
			return
		}
		writeJSON(w, http.StatusCreated, rule, h.logger)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// RuleByID dispatches /api/rules/{id} and its subresources.
func (h *RuleHandler) RuleByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api / rules / {id} [/ action]
	if len(parts) < 3 || parts[2] == "" {
		writeError(w, http.StatusBadRequest, "rule id required", h.logger)
		return
	}
	ruleID := parts[2]

	if len(parts) == 3 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.getRule(w, r, ruleID)
		return
	}

	switch parts[3] {
	case "execute":
		h.executeRule(w, r, ruleID)
	case "toggle":
		h.toggleRule(w, r, ruleID)
	case "executions":
		h.listExecutions(w, r, ruleID)
	default:
		http.NotFound(w, r)
	}
}

func (h *RuleHandler) getRule(w http.ResponseWriter, r *http.Request, ruleID string) {
	rule, err := h.rules.GetRule(r.Context(), ruleID)
	if err != nil {
		h.logger.Error("failed to get rule", "rule_id", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "rule not found", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, rule, h.logger)
}

// executeRule handles POST /api/rules/{id}/execute, the manual trigger. It
// bypasses the schedule checks but not the active flag or worker capacity.
func (h *RuleHandler) executeRule(w http.ResponseWriter, r *http.Request, ruleID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.scheduler.ManualExecute(r.Context(), ruleID); err != nil {
		h.logger.Warn("manual execution rejected", "rule_id", ruleID, "error", err)
		writeError(w, http.StatusConflict, err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"}, h.logger)
}

type toggleRequest struct {
	Active bool `json:"active"`
}

// toggleRule handles POST /api/rules/{id}/toggle. Toggling resets the failure
// counter in either direction.
func (h *RuleHandler) toggleRule(w http.ResponseWriter, r *http.Request, ruleID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	if err := h.rules.ToggleRule(r.Context(), ruleID, req.Active); err != nil {
		h.logger.Error("failed to toggle rule", "rule_id", ruleID, "error", err)
		writeError(w, http.StatusNotFound, "rule not found", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": ruleID, "active": req.Active}, h.logger)
}

func (h *RuleHandler) listExecutions(w http.ResponseWriter, r *http.Request, ruleID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := h.logs.ListRecent(r.Context(), ruleID, limit)
	if err != nil {
		h.logger.Error("failed to list executions", "rule_id", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"executions": results, "count": len(results)}, h.logger)
}

// SchedulerStatus handles GET /api/scheduler/status
func (h *RuleHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := h.scheduler.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to read scheduler status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, status, h.logger)
}
