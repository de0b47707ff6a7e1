package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pressflow/pressflow/internal/database"
	"github.com/pressflow/pressflow/internal/models"
	"github.com/pressflow/pressflow/internal/topics"
)

// TopicHandler serves the topic pool review surface.
type TopicHandler struct {
	manager *topics.Manager
	rules   *database.RuleRepository
	logger  *slog.Logger
}

// NewTopicHandler creates a topic handler.
func NewTopicHandler(manager *topics.Manager, rules *database.RuleRepository, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{
		manager: manager,
		rules:   rules,
		logger:  logger,
	}
}

// Pending handles GET /api/topics?blog_id=...
func (h *TopicHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blogID := r.URL.Query().Get("blog_id")
	if blogID == "" {
		writeError(w, http.StatusBadRequest, "blog_id is required", h.logger)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	pending, err := h.manager.ListPending(r.Context(), blogID, limit)
	if err != nil {
		h.logger.Error("failed to list pending topics", "blog_id", blogID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"topics": pending, "count": len(pending)}, h.logger)
}

// TopicByID dispatches POST /api/topics/{id}/approve and /reject.
func (h *TopicHandler) TopicByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api / topics / {id} / action
	if len(parts) < 4 || parts[2] == "" {
		writeError(w, http.StatusBadRequest, "topic id and action required", h.logger)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	topicID := parts[2]

	var err error
	var status models.TopicStatus
	switch parts[3] {
	case "approve":
		status = models.TopicStatusApproved
		err = h.manager.Approve(r.Context(), topicID)
	case "reject":
		status = models.TopicStatusRejected
		// The body is optional; a reason may accompany the rejection.
		var req struct {
			Reason string `json:"reason"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
			return
		}
		err = h.manager.Reject(r.Context(), topicID, req.Reason)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		writeError(w, http.StatusConflict, err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": topicID, "status": string(status)}, h.logger)
}

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason,omitempty"`
}

// BulkApprove handles POST /api/topics/bulk-approve. Topics that could not be
// moved are reported per id; the rest still go through.
func (h *TopicHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, func(ctx context.Context, req bulkRequest) topics.BulkResult {
		return h.manager.BulkApprove(ctx, req.IDs)
	})
}

// BulkReject handles POST /api/topics/bulk-reject. The reason, when given, is
// stored with each rejected topic.
func (h *TopicHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, func(ctx context.Context, req bulkRequest) topics.BulkResult {
		return h.manager.BulkReject(ctx, req.IDs, req.Reason)
	})
}

func (h *TopicHandler) bulk(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, req bulkRequest) topics.BulkResult) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, op(r.Context(), req), h.logger)
}

// Refresh handles POST /api/topics/refresh with a rule id, running one pool
// refill pass with that rule's settings.
func (h *TopicHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RuleID string `json:"rule_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RuleID == "" {
		writeError(w, http.StatusBadRequest, "rule_id is required", h.logger)
		return
	}

	rule, err := h.rules.GetRule(r.Context(), req.RuleID)
	if err != nil {
		h.logger.Error("failed to get rule", "rule_id", req.RuleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "rule not found", h.logger)
		return
	}

	result, err := h.manager.AutoRefreshPool(r.Context(), *rule)
	if err != nil {
		h.logger.Error("pool refresh failed", "rule_id", req.RuleID, "error", err)
		writeError(w, http.StatusInternalServerError, "pool refresh failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// Stats handles GET /api/topics/stats?blog_id=...
func (h *TopicHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	blogID := r.URL.Query().Get("blog_id")
	if blogID == "" {
		writeError(w, http.StatusBadRequest, "blog_id is required", h.logger)
		return
	}

	stats, err := h.manager.Stats(r.Context(), blogID)
	if err != nil {
		h.logger.Error("failed to read topic stats", "blog_id", blogID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}
