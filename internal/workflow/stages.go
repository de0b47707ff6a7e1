package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressflow/pressflow/internal/generation"
	"github.com/pressflow/pressflow/internal/models"
)

// topicSelectionStage picks an approved topic, refilling the pool once when it
// comes up empty.
type topicSelectionStage struct {
	topics TopicSource
}

func (s *topicSelectionStage) Name() models.StageName { return models.StageTopicSelection }
func (s *topicSelectionStage) Fatal() bool            { return true }

func (s *topicSelectionStage) Run(ctx context.Context, state *pipelineState) error {
	topic, err := s.topics.SelectTopic(ctx, state.rule)
	if err != nil {
		return err
	}
	if topic == nil {
		if _, err := s.topics.AutoRefreshPool(ctx, state.rule); err != nil {
			return fmt.Errorf("pool refresh failed: %w", err)
		}
		topic, err = s.topics.SelectTopic(ctx, state.rule)
		if err != nil {
			return err
		}
		if topic == nil {
			return fmt.Errorf("no approved topic available")
		}
	}

	state.topic = topic
	return nil
}

type contentGenerationStage struct {
	content generation.ContentGenerator
}

func (s *contentGenerationStage) Name() models.StageName { return models.StageContentGeneration }
func (s *contentGenerationStage) Fatal() bool            { return true }

func (s *contentGenerationStage) Run(ctx context.Context, state *pipelineState) error {
	article, err := s.content.GenerateContent(ctx, *state.topic, state.rule)
	if err != nil {
		return err
	}
	state.article = article
	return nil
}

// imageAcquisitionStage attaches stock images. Failure downgrades the article
// to text-only instead of failing the run.
type imageAcquisitionStage struct {
	images generation.ImageFinder
}

func (s *imageAcquisitionStage) Name() models.StageName { return models.StageImageAcquisition }
func (s *imageAcquisitionStage) Fatal() bool            { return false }

func (s *imageAcquisitionStage) Run(ctx context.Context, state *pipelineState) error {
	if s.images == nil {
		return errStageSkipped
	}

	set, err := s.images.FindImages(ctx, state.article)
	if err != nil {
		return err
	}
	state.article.ImageURLs = set.URLs
	return nil
}

// publishingStage pushes the article out and consumes the topic. The topic is
// marked used only once the post actually exists; a lost compare-and-set means
// a concurrent run got it first, and with the post already out the run still
// counts as a success.
type publishingStage struct {
	publisher generation.Publisher
	topics    TopicSource
	logger    *slog.Logger
}

func (s *publishingStage) Name() models.StageName { return models.StagePublishing }
func (s *publishingStage) Fatal() bool            { return true }

func (s *publishingStage) Run(ctx context.Context, state *pipelineState) error {
	postID, err := s.publisher.Publish(ctx, state.article, state.rule)
	if err != nil {
		return err
	}
	state.postID = postID

	if err := s.topics.MarkUsed(ctx, state.topic.ID); err != nil {
		s.logger.Warn("failed to mark topic used", "topic_id", state.topic.ID, "error", err)
	}
	return nil
}

type socialPromotionStage struct {
	promoter generation.SocialPromoter
	logger   *slog.Logger
}

func (s *socialPromotionStage) Name() models.StageName { return models.StageSocialPromotion }
func (s *socialPromotionStage) Fatal() bool            { return false }

func (s *socialPromotionStage) Run(ctx context.Context, state *pipelineState) error {
	if s.promoter == nil || !state.rule.AutoPromote {
		return errStageSkipped
	}

	platforms, err := s.promoter.Promote(ctx, state.article, state.rule)
	if err != nil {
		return err
	}
	for _, pr := range platforms {
		if pr.Error != "" {
			s.logger.Warn("platform promotion failed", "platform", pr.Platform, "error", pr.Error)
		}
	}
	return nil
}
