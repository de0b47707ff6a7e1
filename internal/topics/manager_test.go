package topics

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/pressflow/pressflow/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory Store honoring the same transition and dedupe
// rules as the database.
type fakeStore struct {
	topics map[string]*models.ArticleTopic
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{topics: make(map[string]*models.ArticleTopic)}
}

func (f *fakeStore) add(blogID, category, title string, score float64, status models.TopicStatus) *models.ArticleTopic {
	f.nextID++
	topic := &models.ArticleTopic{
		ID:        fmt.Sprintf("topic-%d", f.nextID),
		BlogID:    blogID,
		Category:  category,
		Title:     title,
		Score:     score,
		Status:    status,
		CreatedAt: time.Now(),
	}
	f.topics[topic.ID] = topic
	return topic
}

func (f *fakeStore) InsertCandidate(ctx context.Context, blogID, category string, candidate models.TopicCandidate, status models.TopicStatus) (bool, error) {
	for _, t := range f.topics {
		if t.BlogID == blogID && strings.EqualFold(t.Title, candidate.Title) {
			return false, nil
		}
	}
	f.add(blogID, category, candidate.Title, candidate.Score, status)
	return true, nil
}

func (f *fakeStore) CountAvailable(ctx context.Context, blogID string) (int, error) {
	count := 0
	for _, t := range f.topics {
		if t.BlogID == blogID && t.Status == models.TopicStatusApproved {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountAvailableByCategory(ctx context.Context, blogID, category string) (int, error) {
	count := 0
	for _, t := range f.topics {
		if t.BlogID == blogID && t.Category == category && t.Status == models.TopicStatusApproved {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SelectBest(ctx context.Context, blogID string, categories []string) (*models.ArticleTopic, error) {
	var best *models.ArticleTopic
	for _, t := range f.topics {
		if t.BlogID != blogID || t.Status != models.TopicStatusApproved {
			continue
		}
		if len(categories) > 0 {
			found := false
			for _, c := range categories {
				if t.Category == c {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if best == nil || t.Score > best.Score {
			best = t
		}
	}
	return best, nil
}

func (f *fakeStore) Transition(ctx context.Context, id string, from, to models.TopicStatus) error {
	if err := models.CheckTopicTransition(from, to); err != nil {
		return err
	}
	topic, ok := f.topics[id]
	if !ok || topic.Status != from {
		return fmt.Errorf("topic %s is not in status %s", id, from)
	}
	topic.Status = to
	return nil
}

func (f *fakeStore) Reject(ctx context.Context, id, reason string) error {
	topic, ok := f.topics[id]
	if !ok || topic.Status != models.TopicStatusPending {
		return fmt.Errorf("topic %s is not in status %s", id, models.TopicStatusPending)
	}
	topic.Status = models.TopicStatusRejected
	topic.RejectionReason = reason
	return nil
}

func (f *fakeStore) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	archived := 0
	for _, t := range f.topics {
		if (t.Status == models.TopicStatusPending || t.Status == models.TopicStatusRejected) && t.CreatedAt.Before(cutoff) {
			t.Status = models.TopicStatusArchived
			archived++
		}
	}
	return archived, nil
}

func (f *fakeStore) ListByStatus(ctx context.Context, blogID string, status models.TopicStatus, limit int) ([]models.ArticleTopic, error) {
	var out []models.ArticleTopic
	for _, t := range f.topics {
		if t.BlogID == blogID && t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) Stats(ctx context.Context, blogID string) (models.TopicPoolStats, error) {
	stats := models.TopicPoolStats{
		BlogID:     blogID,
		ByStatus:   make(map[models.TopicStatus]int),
		ByCategory: make(map[string]int),
	}
	for _, t := range f.topics {
		if t.BlogID != blogID {
			continue
		}
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByCategory[t.Category]++
	}
	return stats, nil
}

func (f *fakeStore) countByStatus(status models.TopicStatus) int {
	count := 0
	for _, t := range f.topics {
		if t.Status == status {
			count++
		}
	}
	return count
}

// fakeGenerator returns a fixed candidate list per category and records which
// categories were requested.
type fakeGenerator struct {
	requested []string
	score     float64
}

func (g *fakeGenerator) GenerateTopics(ctx context.Context, category string, count int) ([]models.TopicCandidate, error) {
	g.requested = append(g.requested, category)
	out := make([]models.TopicCandidate, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, models.TopicCandidate{
			Title: fmt.Sprintf("%s candidate %d", category, i),
			Score: g.score,
		})
	}
	return out, nil
}

func TestAutoRefreshPoolSkipsWhenSupplied(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 12; i++ {
		store.add("blog-1", "tech", fmt.Sprintf("topic %d", i), 0.5, models.TopicStatusApproved)
	}
	gen := &fakeGenerator{}
	manager := NewManager(store, gen, testLogger())

	rule := models.AutomationRule{BlogID: "blog-1", Categories: []string{"tech"}}
	result, err := manager.AutoRefreshPool(context.Background(), rule)
	if err != nil {
		t.Fatalf("AutoRefreshPool: %v", err)
	}
	if result.Refilled {
		t.Error("pool refilled despite sufficient supply")
	}
	if len(gen.requested) != 0 {
		t.Errorf("generator called for categories %v", gen.requested)
	}
}

func TestAutoRefreshPoolFillsUnderSuppliedCategories(t *testing.T) {
	store := newFakeStore()
	// Two approved topics, well under the floor of ten. "tech" is supplied,
	// "travel" is not.
	store.add("blog-1", "tech", "tech a", 0.5, models.TopicStatusApproved)
	store.add("blog-1", "tech", "tech b", 0.5, models.TopicStatusApproved)
	store.add("blog-1", "tech", "tech c", 0.5, models.TopicStatusApproved)
	gen := &fakeGenerator{score: 0.5}
	manager := NewManager(store, gen, testLogger())

	rule := models.AutomationRule{BlogID: "blog-1", Categories: []string{"tech", "travel"}}
	result, err := manager.AutoRefreshPool(context.Background(), rule)
	if err != nil {
		t.Fatalf("AutoRefreshPool: %v", err)
	}

	if !result.Refilled {
		t.Fatal("expected a refill")
	}
	if len(gen.requested) != 1 || gen.requested[0] != "travel" {
		t.Errorf("requested categories = %v, want [travel]", gen.requested)
	}
	if result.Inserted != refillBatchSize {
		t.Errorf("inserted = %d, want %d", result.Inserted, refillBatchSize)
	}
	// New candidates land as pending; already-approved topics are untouched.
	if got := store.countByStatus(models.TopicStatusPending); got != refillBatchSize {
		t.Errorf("pending = %d, want %d", got, refillBatchSize)
	}
	if got := store.countByStatus(models.TopicStatusApproved); got != 3 {
		t.Errorf("approved = %d, want 3", got)
	}
}

func TestAutoRefreshPoolAutoEnablesByScore(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{score: 0.9}
	manager := NewManager(store, gen, testLogger())

	rule := models.AutomationRule{
		BlogID:           "blog-1",
		Categories:       []string{"tech"},
		AutoEnableTopics: true,
		TopicMinScore:    0.7,
	}
	if _, err := manager.AutoRefreshPool(context.Background(), rule); err != nil {
		t.Fatalf("AutoRefreshPool: %v", err)
	}

	if got := store.countByStatus(models.TopicStatusApproved); got != refillBatchSize {
		t.Errorf("approved = %d, want %d", got, refillBatchSize)
	}
}

func TestAutoRefreshPoolDeduplicatesTitles(t *testing.T) {
	store := newFakeStore()
	store.add("blog-1", "tech", "TECH CANDIDATE 0", 0.5, models.TopicStatusUsed)
	gen := &fakeGenerator{score: 0.5}
	manager := NewManager(store, gen, testLogger())

	rule := models.AutomationRule{BlogID: "blog-1", Categories: []string{"tech"}}
	result, err := manager.AutoRefreshPool(context.Background(), rule)
	if err != nil {
		t.Fatalf("AutoRefreshPool: %v", err)
	}

	if result.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", result.Duplicates)
	}
	if result.Inserted != refillBatchSize-1 {
		t.Errorf("inserted = %d, want %d", result.Inserted, refillBatchSize-1)
	}
}

func TestBulkApproveReportsNonPending(t *testing.T) {
	store := newFakeStore()
	pending := store.add("blog-1", "tech", "pending one", 0.5, models.TopicStatusPending)
	used := store.add("blog-1", "tech", "already used", 0.5, models.TopicStatusUsed)
	manager := NewManager(store, &fakeGenerator{}, testLogger())

	result := manager.BulkApprove(context.Background(), []string{pending.ID, used.ID, "missing"})

	if result.Updated != 1 {
		t.Errorf("updated = %d, want 1", result.Updated)
	}
	if len(result.Failed) != 2 {
		t.Errorf("failed = %v, want 2 entries", result.Failed)
	}
	if store.topics[pending.ID].Status != models.TopicStatusApproved {
		t.Error("pending topic was not approved")
	}
	if store.topics[used.ID].Status != models.TopicStatusUsed {
		t.Error("used topic changed status")
	}
}

func TestBulkRejectKeepsReason(t *testing.T) {
	store := newFakeStore()
	first := store.add("blog-1", "tech", "too broad", 0.5, models.TopicStatusPending)
	second := store.add("blog-1", "tech", "duplicate angle", 0.5, models.TopicStatusPending)
	approved := store.add("blog-1", "tech", "keeper", 0.5, models.TopicStatusApproved)
	manager := NewManager(store, &fakeGenerator{}, testLogger())

	result := manager.BulkReject(context.Background(), []string{first.ID, second.ID, approved.ID}, "off-season content")

	if result.Updated != 2 {
		t.Errorf("updated = %d, want 2", result.Updated)
	}
	if len(result.Failed) != 1 {
		t.Errorf("failed = %v, want 1 entry", result.Failed)
	}
	for _, topic := range []*models.ArticleTopic{first, second} {
		if topic.Status != models.TopicStatusRejected {
			t.Errorf("topic %s status = %s, want rejected", topic.ID, topic.Status)
		}
		if topic.RejectionReason != "off-season content" {
			t.Errorf("topic %s reason = %q", topic.ID, topic.RejectionReason)
		}
	}
	if approved.Status != models.TopicStatusApproved {
		t.Error("approved topic changed status")
	}
}

func TestRejectRecordsReason(t *testing.T) {
	store := newFakeStore()
	pending := store.add("blog-1", "tech", "weak hook", 0.5, models.TopicStatusPending)
	manager := NewManager(store, &fakeGenerator{}, testLogger())

	if err := manager.Reject(context.Background(), pending.ID, "title too vague"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if pending.Status != models.TopicStatusRejected {
		t.Errorf("status = %s, want rejected", pending.Status)
	}
	if pending.RejectionReason != "title too vague" {
		t.Errorf("reason = %q", pending.RejectionReason)
	}
}

func TestMarkUsedRequiresApproved(t *testing.T) {
	store := newFakeStore()
	pending := store.add("blog-1", "tech", "still pending", 0.5, models.TopicStatusPending)
	manager := NewManager(store, &fakeGenerator{}, testLogger())

	if err := manager.MarkUsed(context.Background(), pending.ID); err == nil {
		t.Fatal("expected error marking pending topic used")
	}
}

func TestCleanupOldArchives(t *testing.T) {
	store := newFakeStore()
	old := store.add("blog-1", "tech", "stale", 0.5, models.TopicStatusPending)
	old.CreatedAt = time.Now().Add(-31 * 24 * time.Hour)
	fresh := store.add("blog-1", "tech", "fresh", 0.5, models.TopicStatusPending)
	kept := store.add("blog-1", "tech", "old but approved", 0.5, models.TopicStatusApproved)
	kept.CreatedAt = old.CreatedAt

	manager := NewManager(store, &fakeGenerator{}, testLogger())
	archived, err := manager.CleanupOld(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("CleanupOld: %v", err)
	}

	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}
	if old.Status != models.TopicStatusArchived {
		t.Error("stale pending topic was not archived")
	}
	if fresh.Status != models.TopicStatusPending {
		t.Error("fresh topic was archived")
	}
	if kept.Status != models.TopicStatusApproved {
		t.Error("approved topic was archived")
	}
}
