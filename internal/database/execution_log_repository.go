package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressflow/pressflow/internal/models"
)

// ExecutionLogRepository persists per-run execution summaries. The scheduler's
// daily report reads from here; scheduling decisions never do.
type ExecutionLogRepository struct {
	db *sql.DB
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Insert stores one rule execution result with its stage breakdown as JSON.
func (r *ExecutionLogRepository) Insert(ctx context.Context, result models.RuleExecutionResult) error {
	stagesJSON, err := json.Marshal(result.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	query := `
		INSERT INTO execution_logs (id, rule_id, blog_id, success, topic_id, post_id,
			stages, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query, uuid.New().String(), result.RuleID, result.BlogID,
		result.Success, nullIfEmpty(result.TopicID), nullIfEmpty(result.PostID),
		stagesJSON, result.StartedAt, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}
	return nil
}

// ExecutionSummary aggregates execution outcomes over a window.
type ExecutionSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SummarizeSince aggregates execution outcomes recorded after the given time.
func (r *ExecutionLogRepository) SummarizeSince(ctx context.Context, since time.Time) (ExecutionSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success)
		FROM execution_logs
		WHERE completed_at >= $1
	`

	var summary ExecutionSummary
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&summary.Total, &summary.Succeeded, &summary.Failed); err != nil {
		return ExecutionSummary{}, fmt.Errorf("failed to summarize executions: %w", err)
	}
	return summary, nil
}

// ListRecent returns the most recent execution results for a rule.
func (r *ExecutionLogRepository) ListRecent(ctx context.Context, ruleID string, limit int) ([]models.RuleExecutionResult, error) {
	if limit < 1 {
		limit = 20
	}

	query := `
		SELECT rule_id, blog_id, success, topic_id, post_id, stages, started_at, completed_at
		FROM execution_logs
		WHERE rule_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer rows.Close()

	var results []models.RuleExecutionResult
	for rows.Next() {
		var result models.RuleExecutionResult
		var topicID, postID sql.NullString
		var stagesJSON []byte

		err := rows.Scan(&result.RuleID, &result.BlogID, &result.Success,
			&topicID, &postID, &stagesJSON, &result.StartedAt, &result.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		if topicID.Valid {
			result.TopicID = topicID.String
		}
		if postID.Valid {
			result.PostID = postID.String
		}
		if len(stagesJSON) > 0 {
			if err := json.Unmarshal(stagesJSON, &result.Stages); err != nil {
				return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
