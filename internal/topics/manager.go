package topics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressflow/pressflow/internal/generation"
	"github.com/pressflow/pressflow/internal/models"
)

const (
	// MinApprovedTopics is the pool floor below which a refill is triggered.
	MinApprovedTopics = 10

	// categoryFloor is the per-category supply below which a category is
	// considered under-supplied during a refill.
	categoryFloor = 3

	// maxRefillCategories caps how many categories one refill pass touches.
	maxRefillCategories = 5

	// refillBatchSize is how many candidates are requested per category.
	refillBatchSize = 10

	// topicRetention is how long pending and rejected topics are kept before
	// being archived.
	topicRetention = 30 * 24 * time.Hour
)

// Store is the subset of topic persistence the manager needs.
type Store interface {
	InsertCandidate(ctx context.Context, blogID, category string, candidate models.TopicCandidate, status models.TopicStatus) (bool, error)
	CountAvailable(ctx context.Context, blogID string) (int, error)
	CountAvailableByCategory(ctx context.Context, blogID, category string) (int, error)
	SelectBest(ctx context.Context, blogID string, categories []string) (*models.ArticleTopic, error)
	Transition(ctx context.Context, id string, from, to models.TopicStatus) error
	Reject(ctx context.Context, id, reason string) error
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	ListByStatus(ctx context.Context, blogID string, status models.TopicStatus, limit int) ([]models.ArticleTopic, error)
	Stats(ctx context.Context, blogID string) (models.TopicPoolStats, error)
}

// Manager maintains the per-blog topic pool: refilling it from the generator
// when supply runs low, moving topics through their lifecycle and archiving
// stale ones.
type Manager struct {
	store     Store
	generator generation.TopicGenerator
	logger    *slog.Logger
}

// NewManager creates a topic pool manager.
func NewManager(store Store, generator generation.TopicGenerator, logger *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		generator: generator,
		logger:    logger,
	}
}

// RefreshResult reports what one refill pass did.
type RefreshResult struct {
	BlogID     string   `json:"blog_id"`
	Available  int      `json:"available"`
	Refilled   bool     `json:"refilled"`
	Categories []string `json:"categories,omitempty"`
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
}

// AutoRefreshPool tops up the blog's approved topic supply when it falls below
// the floor. Generated candidates land as pending unless the rule auto-enables
// topics scoring at or above its threshold. Generator failures for one
// category do not abort the pass.
func (m *Manager) AutoRefreshPool(ctx context.Context, rule models.AutomationRule) (RefreshResult, error) {
	result := RefreshResult{BlogID: rule.BlogID}

	available, err := m.store.CountAvailable(ctx, rule.BlogID)
	if err != nil {
		return result, fmt.Errorf("failed to count available topics: %w", err)
	}
	result.Available = available

	if available >= MinApprovedTopics {
		return result, nil
	}
	result.Refilled = true

	categories, err := m.underSuppliedCategories(ctx, rule)
	if err != nil {
		return result, err
	}
	result.Categories = categories

	for _, category := range categories {
		candidates, err := m.generator.GenerateTopics(ctx, category, refillBatchSize)
		if err != nil {
			m.logger.Warn("topic generation failed for category",
				"blog_id", rule.BlogID,
				"category", category,
				"error", err)
			continue
		}

		for _, candidate := range candidates {
			status := models.TopicStatusPending
			if rule.AutoEnableTopics && candidate.Score >= rule.TopicMinScore {
				status = models.TopicStatusApproved
			}

			inserted, err := m.store.InsertCandidate(ctx, rule.BlogID, category, candidate, status)
			if err != nil {
				return result, fmt.Errorf("failed to store topic candidate: %w", err)
			}
			if inserted {
				result.Inserted++
			} else {
				result.Duplicates++
			}
		}
	}

	m.logger.Info("refilled topic pool",
		"blog_id", rule.BlogID,
		"available_before", available,
		"categories", len(categories),
		"inserted", result.Inserted,
		"duplicates", result.Duplicates)

	return result, nil
}

// underSuppliedCategories picks the rule's categories holding fewer than the
// per-category floor of approved topics, capped per pass. A rule with no
// categories refills a single uncategorized bucket.
func (m *Manager) underSuppliedCategories(ctx context.Context, rule models.AutomationRule) ([]string, error) {
	if len(rule.Categories) == 0 {
		return []string{""}, nil
	}

	var picked []string
	for _, category := range rule.Categories {
		if len(picked) >= maxRefillCategories {
			break
		}

		count, err := m.store.CountAvailableByCategory(ctx, rule.BlogID, category)
		if err != nil {
			return nil, fmt.Errorf("failed to count topics for category %q: %w", category, err)
		}
		if count < categoryFloor {
			picked = append(picked, category)
		}
	}
	return picked, nil
}

// SelectTopic returns the best approved topic for the blog within the rule's
// categories, or nil when the pool has nothing to offer.
func (m *Manager) SelectTopic(ctx context.Context, rule models.AutomationRule) (*models.ArticleTopic, error) {
	return m.store.SelectBest(ctx, rule.BlogID, rule.Categories)
}

// MarkUsed consumes an approved topic. The compare-and-set fails when the
// topic was already consumed by a concurrent run.
func (m *Manager) MarkUsed(ctx context.Context, topicID string) error {
	return m.store.Transition(ctx, topicID, models.TopicStatusApproved, models.TopicStatusUsed)
}

// Approve moves a single pending topic to approved.
func (m *Manager) Approve(ctx context.Context, topicID string) error {
	return m.store.Transition(ctx, topicID, models.TopicStatusPending, models.TopicStatusApproved)
}

// Reject moves a single pending topic to rejected, recording the reviewer's
// reason when one is given.
func (m *Manager) Reject(ctx context.Context, topicID, reason string) error {
	return m.store.Reject(ctx, topicID, reason)
}

// BulkResult reports the outcome of a bulk status change. Topics that were not
// pending at the time of the call land in Failed with the reason.
type BulkResult struct {
	Updated int               `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// BulkApprove approves pending topics by id. Ids that cannot be approved are
// reported individually; the rest still go through.
func (m *Manager) BulkApprove(ctx context.Context, ids []string) BulkResult {
	return bulk(ids, func(id string) error {
		return m.store.Transition(ctx, id, models.TopicStatusPending, models.TopicStatusApproved)
	})
}

// BulkReject rejects pending topics by id, persisting the shared reason, with
// per-id failure reporting.
func (m *Manager) BulkReject(ctx context.Context, ids []string, reason string) BulkResult {
	return bulk(ids, func(id string) error {
		return m.store.Reject(ctx, id, reason)
	})
}

func bulk(ids []string, op func(id string) error) BulkResult {
	result := BulkResult{Failed: make(map[string]string)}

	for _, id := range ids {
		if err := op(id); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Updated++
	}

	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result
}

// CleanupOld archives pending and rejected topics past the retention window.
// Archived rows stay queryable for audit.
func (m *Manager) CleanupOld(ctx context.Context, now time.Time) (int, error) {
	archived, err := m.store.ArchiveOlderThan(ctx, now.Add(-topicRetention))
	if err != nil {
		return 0, err
	}
	if archived > 0 {
		m.logger.Info("archived stale topics", "count", archived)
	}
	return archived, nil
}

// ListPending returns pending topics awaiting review for a blog.
func (m *Manager) ListPending(ctx context.Context, blogID string, limit int) ([]models.ArticleTopic, error) {
	return m.store.ListByStatus(ctx, blogID, models.TopicStatusPending, limit)
}

// Stats reports the topic supply for a blog.
func (m *Manager) Stats(ctx context.Context, blogID string) (models.TopicPoolStats, error) {
	return m.store.Stats(ctx, blogID)
}
