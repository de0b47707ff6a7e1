package api

import (
	"log/slog"
	"net/http"

	"github.com/pressflow/pressflow/internal/auth"
	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/database"
	"github.com/pressflow/pressflow/internal/scheduler"
	"github.com/pressflow/pressflow/internal/topics"
)

// SetupRoutes configures all API routes. The login endpoint and health check
// are public; everything else sits behind the JWT middleware.
func SetupRoutes(
	mux *http.ServeMux,
	rules *database.RuleRepository,
	logs *database.ExecutionLogRepository,
	sched *scheduler.Scheduler,
	manager *topics.Manager,
	authCfg config.AuthConfig,
	healthCheck func() error,
	logger *slog.Logger,
) {
	ruleHandler := NewRuleHandler(rules, logs, sched, logger)
	topicHandler := NewTopicHandler(manager, rules, logger)
	authHandler := NewAuthHandler(authCfg, logger)

	protect := auth.Middleware(authCfg)
	protected := func(h http.HandlerFunc) http.Handler {
		return protect(h)
	}

	mux.HandleFunc("/api/auth/login", authHandler.Login)

	mux.Handle("/api/scheduler/status", protected(ruleHandler.SchedulerStatus))

	mux.Handle("/api/rules", protected(ruleHandler.Rules))
	mux.Handle("/api/rules/", protected(ruleHandler.RuleByID))

	mux.Handle("/api/topics", protected(topicHandler.Pending))
	mux.Handle("/api/topics/stats", protected(topicHandler.Stats))
	mux.Handle("/api/topics/refresh", protected(topicHandler.Refresh))
	mux.Handle("/api/topics/bulk-approve", protected(topicHandler.BulkApprove))
	mux.Handle("/api/topics/bulk-reject", protected(topicHandler.BulkReject))
	mux.Handle("/api/topics/", protected(topicHandler.TopicByID))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := healthCheck(); err != nil {
			logger.Error("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "unhealthy", logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	})
}
