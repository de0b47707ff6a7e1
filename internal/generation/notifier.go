package generation

import (
	"context"
	"log/slog"

	"github.com/pressflow/pressflow/internal/models"
)

// LogNotifier records notification events to the structured log. It stands in
// for an email or webhook channel; the pipeline never waits on delivery.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that writes to the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the event at a level matching its type.
func (n *LogNotifier) Notify(ctx context.Context, event models.NotificationEvent) {
	attrs := []any{
		"type", event.Type,
		"rule_id", event.RuleID,
		"blog_id", event.BlogID,
		"message", event.Message,
	}
	if len(event.Details) > 0 {
		attrs = append(attrs, "details", event.Details)
	}

	switch event.Type {
	case "failure", "rule_disabled":
		n.logger.Warn("automation notification", attrs...)
	default:
		n.logger.Info("automation notification", attrs...)
	}
}
