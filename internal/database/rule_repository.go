package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pressflow/pressflow/internal/models"
)

// RuleRepository handles automation rule database operations.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, blog_id, name, publishing_days, publishing_time, posts_per_day,
	min_interval_seconds, categories, min_words, max_words, tone, auto_publish,
	require_approval, auto_enable_topics, topic_min_score, auto_promote,
	last_execution_at, next_execution_at, failure_count, max_failures, is_active,
	created_at, updated_at`

// CreateRule inserts a new automation rule.
func (r *RuleRepository) CreateRule(ctx context.Context, req models.CreateRuleRequest) (*models.AutomationRule, error) {
	id := uuid.New().String()
	now := time.Now()

	maxFailures := req.MaxFailures
	if maxFailures < 1 {
		maxFailures = 3
	}
	postsPerDay := req.PostsPerDay
	if postsPerDay < 1 {
		postsPerDay = 1
	}
	minInterval := time.Duration(req.MinIntervalHours) * time.Hour

	query := `
		INSERT INTO automation_rules (id, blog_id, name, publishing_days, publishing_time,
			posts_per_day, min_interval_seconds, categories, min_words, max_words, tone,
			auto_publish, require_approval, auto_enable_topics, topic_min_score, auto_promote,
			failure_count, max_failures, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 0, $17, TRUE, $18, $18)
	`

	_, err := r.db.ExecContext(ctx, query, id, req.BlogID, req.Name,
		pq.Array(req.PublishingDays), req.PublishingTime, postsPerDay,
		int64(minInterval.Seconds()), pq.Array(req.Categories), req.MinWords, req.MaxWords,
		req.Tone, req.AutoPublish, req.RequireApproval, req.AutoEnableTopics,
		req.TopicMinScore, req.AutoPromote, maxFailures, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return r.GetRule(ctx, id)
}

// GetRule retrieves a rule by ID. Returns (nil, nil) when the rule does not exist.
func (r *RuleRepository) GetRule(ctx context.Context, id string) (*models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules retrieves all automation rules.
func (r *RuleRepository) ListRules(ctx context.Context) ([]models.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// GetDueRules retrieves active rules whose next execution time has passed (or
// was never set) and that have not hit their failure cap. Eligibility
// beyond that (weekday, time window, minimum interval) is the scheduler's job.
func (r *RuleRepository) GetDueRules(ctx context.Context, now time.Time) ([]models.AutomationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE is_active = TRUE
		  AND failure_count < max_failures
		  AND (next_execution_at IS NULL OR next_execution_at <= $1)
		ORDER BY next_execution_at ASC NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// MarkDispatched atomically claims a rule for execution: it records the
// execution start and advances next_execution_at in a single conditional
// update, so a rule already claimed by another instance (or a previous tick)
// is not dispatched twice. Returns false when the claim was lost.
func (r *RuleRepository) MarkDispatched(ctx context.Context, ruleID string, now, next time.Time) (bool, error) {
	query := `
		UPDATE automation_rules
		SET last_execution_at = $2, next_execution_at = $3, updated_at = $2
		WHERE id = $1
		  AND is_active = TRUE
		  AND (next_execution_at IS NULL OR next_execution_at <= $2)
	`

	result, err := r.db.ExecContext(ctx, query, ruleID, now, next)
	if err != nil {
		return false, fmt.Errorf("failed to mark rule dispatched: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkManualDispatch records the execution start for a manually triggered run
// without touching next_execution_at.
func (r *RuleRepository) MarkManualDispatch(ctx context.Context, ruleID string, now time.Time) error {
	query := `UPDATE automation_rules SET last_execution_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, ruleID, now); err != nil {
		return fmt.Errorf("failed to mark manual dispatch: %w", err)
	}
	return nil
}

// RecordFailure increments the failure counter and, when the cap is reached,
// deactivates the rule in the same statement so there is no window where the
// counter sits at the cap while the rule is still active.
func (r *RuleRepository) RecordFailure(ctx context.Context, ruleID string) (failureCount int, disabled bool, err error) {
	query := `
		UPDATE automation_rules
		SET failure_count = failure_count + 1,
		    is_active = CASE WHEN failure_count + 1 >= max_failures THEN FALSE ELSE is_active END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failure_count, is_active
	`

	var active bool
	if err := r.db.QueryRowContext(ctx, query, ruleID).Scan(&failureCount, &active); err != nil {
		return 0, false, fmt.Errorf("failed to record failure: %w", err)
	}
	return failureCount, !active, nil
}

// ToggleRule sets the active flag and resets the failure counter, giving an
// operator an explicit recovery path.
func (r *RuleRepository) ToggleRule(ctx context.Context, ruleID string, active bool) error {
	query := `
		UPDATE automation_rules
		SET is_active = $2, failure_count = 0, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, ruleID, active)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

// ResetStaleFailures zeroes the failure counter for rules that were disabled
// by the failure cap and have been idle since before the cutoff. The rule
// stays inactive; re-activation is an explicit admin action.
func (r *RuleRepository) ResetStaleFailures(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE automation_rules
		SET failure_count = 0, updated_at = NOW()
		WHERE is_active = FALSE
		  AND failure_count >= max_failures
		  AND last_execution_at IS NOT NULL
		  AND last_execution_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale failures: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// RuleCounts summarizes the rule fleet for status reporting.
type RuleCounts struct {
	Total  int
	Active int
	Failed int
}

// Counts returns fleet-wide rule counts.
func (r *RuleRepository) Counts(ctx context.Context) (RuleCounts, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE failure_count > 0)
		FROM automation_rules
	`

	var counts RuleCounts
	if err := r.db.QueryRowContext(ctx, query).Scan(&counts.Total, &counts.Active, &counts.Failed); err != nil {
		return RuleCounts{}, fmt.Errorf("failed to count rules: %w", err)
	}
	return counts, nil
}

// ListExecutedSince returns the names of rules executed after the given time,
// for the daily report.
func (r *RuleRepository) ListExecutedSince(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT name FROM automation_rules
		WHERE last_execution_at >= $1
		ORDER BY last_execution_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list executed rules: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan rule name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	var minIntervalSeconds int64
	var lastExecution, nextExecution sql.NullTime

	err := row.Scan(
		&rule.ID,
		&rule.BlogID,
		&rule.Name,
		pq.Array(&rule.PublishingDays),
		&rule.PublishingTime,
		&rule.PostsPerDay,
		&minIntervalSeconds,
		pq.Array(&rule.Categories),
		&rule.MinWords,
		&rule.MaxWords,
		&rule.Tone,
		&rule.AutoPublish,
		&rule.RequireApproval,
		&rule.AutoEnableTopics,
		&rule.TopicMinScore,
		&rule.AutoPromote,
		&lastExecution,
		&nextExecution,
		&rule.FailureCount,
		&rule.MaxFailures,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MinInterval = time.Duration(minIntervalSeconds) * time.Second
	if lastExecution.Valid {
		rule.LastExecutionAt = &lastExecution.Time
	}
	if nextExecution.Valid {
		rule.NextExecutionAt = &nextExecution.Time
	}
	return &rule, nil
}
