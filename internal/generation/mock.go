package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/pressflow/pressflow/internal/models"
)

// MockGenerator provides deterministic implementations of the generation and
// publishing contracts for running without external credentials.
type MockGenerator struct{}

// NewMockGenerator creates a mock for all outbound collaborators.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateTopics fabricates numbered topic candidates for the category.
func (m *MockGenerator) GenerateTopics(ctx context.Context, category string, count int) ([]models.TopicCandidate, error) {
	if count < 1 {
		count = 10
	}

	candidates := make([]models.TopicCandidate, 0, count)
	for i := 1; i <= count; i++ {
		candidates = append(candidates, models.TopicCandidate{
			Title:    fmt.Sprintf("%s insights, part %d", category, i),
			Keywords: []string{strings.ToLower(category)},
			Score:    0.5,
		})
	}
	return candidates, nil
}

// GenerateContent produces a short placeholder article for the topic.
func (m *MockGenerator) GenerateContent(ctx context.Context, topic models.ArticleTopic, rule models.AutomationRule) (*models.Article, error) {
	body := fmt.Sprintf("<p>Placeholder article about %s.</p>", topic.Title)
	return &models.Article{
		Title:     topic.Title,
		Body:      body,
		Excerpt:   "Placeholder excerpt.",
		Category:  topic.Category,
		Keywords:  topic.Keywords,
		WordCount: len(strings.Fields(body)),
	}, nil
}

// FindImages returns a fixed placeholder image.
func (m *MockGenerator) FindImages(ctx context.Context, article *models.Article) (*models.ImageSet, error) {
	return &models.ImageSet{
		FeaturedURL: "https://example.com/placeholder.jpg",
		URLs:        []string{"https://example.com/placeholder.jpg"},
	}, nil
}

// Publish pretends to publish and returns a synthetic post id.
func (m *MockGenerator) Publish(ctx context.Context, article *models.Article, rule models.AutomationRule) (string, error) {
	return fmt.Sprintf("mock-%x", len(article.Body)), nil
}

// Promote reports a successful mock promotion.
func (m *MockGenerator) Promote(ctx context.Context, article *models.Article, rule models.AutomationRule) ([]models.PlatformResult, error) {
	return []models.PlatformResult{
		{Platform: "mock", PostID: "mock-promo"},
	}, nil
}
