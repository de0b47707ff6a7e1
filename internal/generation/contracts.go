package generation

import (
	"context"

	"github.com/pressflow/pressflow/internal/models"
)

// TopicGenerator produces candidate topics for a category. Failures are
// logged by the caller, not retried within the same refill pass.
type TopicGenerator interface {
	GenerateTopics(ctx context.Context, category string, count int) ([]models.TopicCandidate, error)
}

// ContentGenerator writes an article for a selected topic. It must return
// either an article with a non-empty body or an error; partial responses are
// errors.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, topic models.ArticleTopic, rule models.AutomationRule) (*models.Article, error)
}

// ImageFinder locates images for an article. Errors are non-fatal to the
// pipeline.
type ImageFinder interface {
	FindImages(ctx context.Context, article *models.Article) (*models.ImageSet, error)
}

// Publisher pushes an article to the blog platform and returns the external
// post id.
type Publisher interface {
	Publish(ctx context.Context, article *models.Article, rule models.AutomationRule) (string, error)
}

// SocialPromoter announces a published article on social platforms. Errors
// are non-fatal and reported per platform.
type SocialPromoter interface {
	Promote(ctx context.Context, article *models.Article, rule models.AutomationRule) ([]models.PlatformResult, error)
}

// Notifier delivers fire-and-forget notices; the core does not depend on
// delivery confirmation.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent)
}
