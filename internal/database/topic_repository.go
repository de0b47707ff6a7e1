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

// TopicRepository handles article topic database operations. Status changes go
// through compare-and-set updates at the row level so two workers can never
// move the same topic twice.
type TopicRepository struct {
	db *sql.DB
}

// NewTopicRepository creates a new topic repository.
func NewTopicRepository(db *sql.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

const topicColumns = `id, blog_id, category, title, keywords, score, status, rejection_reason, used_at, created_at, updated_at`

// GetTopic retrieves a topic by ID. Returns (nil, nil) when not found.
func (r *TopicRepository) GetTopic(ctx context.Context, id string) (*models.ArticleTopic, error) {
	query := `SELECT ` + topicColumns + ` FROM article_topics WHERE id = $1`

	topic, err := scanTopic(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return topic, nil
}

// InsertCandidate stores a generated candidate unless a topic with the same
// title (case-insensitive) already exists for the blog. Returns true when the
// row was inserted.
func (r *TopicRepository) InsertCandidate(ctx context.Context, blogID, category string, candidate models.TopicCandidate, status models.TopicStatus) (bool, error) {
	query := `
		INSERT INTO article_topics (id, blog_id, category, title, keywords, score, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM article_topics WHERE blog_id = $2 AND LOWER(title) = LOWER($4)
		)
	`

	result, err := r.db.ExecContext(ctx, query, uuid.New().String(), blogID, category,
		candidate.Title, pq.Array(candidate.Keywords), candidate.Score, status, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to insert topic candidate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// CountAvailable counts approved, unused topics for a blog.
func (r *TopicRepository) CountAvailable(ctx context.Context, blogID string) (int, error) {
	query := `SELECT COUNT(*) FROM article_topics WHERE blog_id = $1 AND status = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, blogID, models.TopicStatusApproved).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count available topics: %w", err)
	}
	return count, nil
}

// CountAvailableByCategory counts approved topics for one blog category.
func (r *TopicRepository) CountAvailableByCategory(ctx context.Context, blogID, category string) (int, error) {
	query := `SELECT COUNT(*) FROM article_topics WHERE blog_id = $1 AND category = $2 AND status = $3`

	var count int
	if err := r.db.QueryRowContext(ctx, query, blogID, category, models.TopicStatusApproved).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count topics by category: %w", err)
	}
	return count, nil
}

// SelectBest returns the highest-priority approved topic for the blog,
// optionally restricted to the given categories. Ties break toward the oldest
// topic. Returns (nil, nil) when the pool is empty.
func (r *TopicRepository) SelectBest(ctx context.Context, blogID string, categories []string) (*models.ArticleTopic, error) {
	query := `
		SELECT ` + topicColumns + `
		FROM article_topics
		WHERE blog_id = $1
		  AND status = $2
		  AND (cardinality($3::text[]) = 0 OR category = ANY($3))
		ORDER BY score DESC, created_at ASC
		LIMIT 1
	`

	if categories == nil {
		categories = []string{}
	}

	topic, err := scanTopic(r.db.QueryRowContext(ctx, query, blogID, models.TopicStatusApproved, pq.Array(categories)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select topic: %w", err)
	}
	return topic, nil
}

// Transition moves a topic from one status to another with a compare-and-set
// update. It fails when the topic is not currently in the expected status or
// when the transition is not allowed by the lifecycle.
func (r *TopicRepository) Transition(ctx context.Context, id string, from, to models.TopicStatus) error {
	if err := models.CheckTopicTransition(from, to); err != nil {
		return err
	}

	query := `
		UPDATE article_topics
		SET status = $3,
		    used_at = CASE WHEN $3 = 'used' THEN NOW() ELSE used_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition topic: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("topic %s is not in status %s", id, from)
	}
	return nil
}

// Reject moves a pending topic to rejected, keeping the reviewer's reason with
// the row. The same compare-and-set rule as Transition applies.
func (r *TopicRepository) Reject(ctx context.Context, id, reason string) error {
	query := `
		UPDATE article_topics
		SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, id, models.TopicStatusRejected, reason, models.TopicStatusPending)
	if err != nil {
		return fmt.Errorf("failed to reject topic: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("topic %s is not in status %s", id, models.TopicStatusPending)
	}
	return nil
}

// ArchiveOlderThan archives pending and rejected topics created before the
// cutoff. Used and approved topics are never touched.
func (r *TopicRepository) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE article_topics
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND created_at < $4
	`

	result, err := r.db.ExecContext(ctx, query,
		models.TopicStatusArchived, models.TopicStatusPending, models.TopicStatusRejected, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive topics: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// ListByStatus lists topics for a blog in the given status, newest first.
func (r *TopicRepository) ListByStatus(ctx context.Context, blogID string, status models.TopicStatus, limit int) ([]models.ArticleTopic, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT ` + topicColumns + `
		FROM article_topics
		WHERE blog_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, blogID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []models.ArticleTopic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, *topic)
	}
	return topics, rows.Err()
}

// Stats aggregates topic counts by status and category for a blog.
func (r *TopicRepository) Stats(ctx context.Context, blogID string) (models.TopicPoolStats, error) {
	stats := models.TopicPoolStats{
		BlogID:     blogID,
		ByStatus:   make(map[models.TopicStatus]int),
		ByCategory: make(map[string]int),
	}

	statusQuery := `SELECT status, COUNT(*) FROM article_topics WHERE blog_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, statusQuery, blogID)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate topic statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.TopicStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	categoryQuery := `SELECT category, COUNT(*) FROM article_topics WHERE blog_id = $1 GROUP BY category`
	catRows, err := r.db.QueryContext(ctx, categoryQuery, blogID)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate topic categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var category string
		var count int
		if err := catRows.Scan(&category, &count); err != nil {
			return stats, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ByCategory[category] = count
	}
	return stats, catRows.Err()
}

func scanTopic(row rowScanner) (*models.ArticleTopic, error) {
	var topic models.ArticleTopic
	var rejectionReason sql.NullString
	var usedAt sql.NullTime

	err := row.Scan(
		&topic.ID,
		&topic.BlogID,
		&topic.Category,
		&topic.Title,
		pq.Array(&topic.Keywords),
		&topic.Score,
		&topic.Status,
		&rejectionReason,
		&usedAt,
		&topic.CreatedAt,
		&topic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	topic.RejectionReason = rejectionReason.String
	if usedAt.Valid {
		topic.UsedAt = &usedAt.Time
	}
	return &topic, nil
}
