package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressflow/pressflow/internal/generation"
	"github.com/pressflow/pressflow/internal/models"
	"github.com/pressflow/pressflow/internal/topics"
)

// TopicSource is the slice of the topic pool the engine consumes.
type TopicSource interface {
	SelectTopic(ctx context.Context, rule models.AutomationRule) (*models.ArticleTopic, error)
	AutoRefreshPool(ctx context.Context, rule models.AutomationRule) (topics.RefreshResult, error)
	MarkUsed(ctx context.Context, topicID string) error
}

// ExecutionRecorder persists run results.
type ExecutionRecorder interface {
	Insert(ctx context.Context, result models.RuleExecutionResult) error
}

// ExecutionObserver receives the outcome of each run, for metrics.
type ExecutionObserver interface {
	ObserveExecution(success bool, duration time.Duration)
}

// errStageSkipped is returned by a stage that did not apply to this run.
// Skipped is recorded distinctly from failed.
var errStageSkipped = errors.New("stage skipped")

// pipelineState carries the accumulated artifacts from stage to stage.
type pipelineState struct {
	rule    models.AutomationRule
	topic   *models.ArticleTopic
	article *models.Article
	postID  string
}

// stage is one step of the pipeline with a uniform run contract, so the
// engine's loop is a plain fold over an ordered list.
type stage interface {
	Name() models.StageName
	// Fatal stages abort the run on failure; the rest degrade to a logged
	// stage failure.
	Fatal() bool
	Run(ctx context.Context, state *pipelineState) error
}

// Engine runs the publication pipeline for one rule invocation. Topic
// selection, content generation and publishing are required; image acquisition
// and social promotion degrade without failing the run.
type Engine struct {
	topics       TopicSource
	notifier     generation.Notifier
	recorder     ExecutionRecorder
	observer     ExecutionObserver
	stages       []stage
	stageTimeout time.Duration
	logger       *slog.Logger
}

// SetObserver attaches a metrics sink for run outcomes.
func (e *Engine) SetObserver(o ExecutionObserver) {
	e.observer = o
}

// NewEngine wires the pipeline collaborators in stage order. images and
// promoter may be nil; their stages then record themselves as skipped.
func NewEngine(
	topicSource TopicSource,
	content generation.ContentGenerator,
	images generation.ImageFinder,
	publisher generation.Publisher,
	promoter generation.SocialPromoter,
	notifier generation.Notifier,
	recorder ExecutionRecorder,
	stageTimeout time.Duration,
	logger *slog.Logger,
) *Engine {
	if stageTimeout <= 0 {
		stageTimeout = 5 * time.Minute
	}

	return &Engine{
		topics:   topicSource,
		notifier: notifier,
		recorder: recorder,
		stages: []stage{
			&topicSelectionStage{topics: topicSource},
			&contentGenerationStage{content: content},
			&imageAcquisitionStage{images: images},
			&publishingStage{publisher: publisher, topics: topicSource, logger: logger},
			&socialPromotionStage{promoter: promoter, logger: logger},
		},
		stageTimeout: stageTimeout,
		logger:       logger,
	}
}

// Execute runs the pipeline for a rule and always returns a result, even when
// an early stage fails. Stages after a failed fatal stage are recorded as
// skipped, so the persisted stage list is complete on its own.
func (e *Engine) Execute(ctx context.Context, rule models.AutomationRule) models.RuleExecutionResult {
	state := &pipelineState{rule: rule}
	result := models.RuleExecutionResult{
		RuleID:    rule.ID,
		BlogID:    rule.BlogID,
		StartedAt: time.Now(),
	}

	logger := e.logger.With("rule_id", rule.ID, "blog_id", rule.BlogID)

	aborted := false
	for i, s := range e.stages {
		err := e.runStage(ctx, s, state, &result)
		if err == nil || errors.Is(err, errStageSkipped) {
			continue
		}

		if s.Fatal() {
			logger.Error("pipeline stage failed", "stage", s.Name(), "error", err)
			aborted = true
			for _, rest := range e.stages[i+1:] {
				result.Stages = append(result.Stages, models.StageResult{
					Stage:  rest.Name(),
					Status: models.StageSkipped,
				})
			}
			break
		}
		logger.Warn("pipeline stage failed, continuing", "stage", s.Name(), "error", err)
	}

	result.Success = !aborted
	return e.finish(ctx, state, result, logger)
}

// runStage executes one stage under the per-stage timeout and records its
// outcome. A panicking stage is converted into a stage failure so the run
// still produces a result.
func (e *Engine) runStage(ctx context.Context, s stage, state *pipelineState, result *models.RuleExecutionResult) error {
	stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("stage panicked: %v", r)
			}
		}()
		return s.Run(stageCtx, state)
	}()

	record := models.StageResult{
		Stage:    s.Name(),
		Status:   models.StageSuccess,
		Duration: time.Since(start),
	}
	switch {
	case errors.Is(err, errStageSkipped):
		record.Status = models.StageSkipped
		record.Duration = 0
	case err != nil:
		record.Status = models.StageFailed
		record.Error = err.Error()
	}
	result.Stages = append(result.Stages, record)
	return err
}

// finish stamps, records and announces the result. Recording failures are
// logged but never change the outcome the scheduler sees.
func (e *Engine) finish(ctx context.Context, state *pipelineState, result models.RuleExecutionResult, logger *slog.Logger) models.RuleExecutionResult {
	result.CompletedAt = time.Now()
	if state.topic != nil {
		result.TopicID = state.topic.ID
	}
	result.PostID = state.postID

	if e.recorder != nil {
		if err := e.recorder.Insert(ctx, result); err != nil {
			logger.Error("failed to record execution", "error", err)
		}
	}

	if e.observer != nil {
		e.observer.ObserveExecution(result.Success, result.CompletedAt.Sub(result.StartedAt))
	}

	if e.notifier != nil {
		event := models.NotificationEvent{
			RuleID: state.rule.ID,
			BlogID: state.rule.BlogID,
		}
		if result.Success {
			event.Type = "success"
			event.Message = fmt.Sprintf("published post %s for rule %s", result.PostID, state.rule.Name)
		} else {
			event.Type = "failure"
			event.Message = fmt.Sprintf("execution failed for rule %s", state.rule.Name)
			event.Details = map[string]interface{}{"stages": result.Stages}
		}
		e.notifier.Notify(ctx, event)
	}

	logger.Info("execution completed",
		"success", result.Success,
		"post_id", result.PostID,
		"duration", result.CompletedAt.Sub(result.StartedAt))

	return result
}
