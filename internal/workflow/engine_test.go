package workflow

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/pressflow/pressflow/internal/models"
	"github.com/pressflow/pressflow/internal/topics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTopicSource struct {
	topic        *models.ArticleTopic
	refreshed    bool
	afterRefresh *models.ArticleTopic
	usedIDs      []string
}

func (f *fakeTopicSource) SelectTopic(ctx context.Context, rule models.AutomationRule) (*models.ArticleTopic, error) {
	if f.topic == nil && f.refreshed {
		return f.afterRefresh, nil
	}
	return f.topic, nil
}

func (f *fakeTopicSource) AutoRefreshPool(ctx context.Context, rule models.AutomationRule) (topics.RefreshResult, error) {
	f.refreshed = true
	return topics.RefreshResult{Refilled: true}, nil
}

func (f *fakeTopicSource) MarkUsed(ctx context.Context, topicID string) error {
	f.usedIDs = append(f.usedIDs, topicID)
	return nil
}

type fakeContent struct {
	err      error
	panicMsg string
}

func (f *fakeContent) GenerateContent(ctx context.Context, topic models.ArticleTopic, rule models.AutomationRule) (*models.Article, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Article{Title: topic.Title, Body: "<p>body</p>", WordCount: 1}, nil
}

type fakeImages struct {
	err error
}

func (f *fakeImages) FindImages(ctx context.Context, article *models.Article) (*models.ImageSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImageSet{FeaturedURL: "img", URLs: []string{"img"}}, nil
}

type fakePublisher struct {
	err   error
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, article *models.Article, rule models.AutomationRule) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "post-1", nil
}

type fakePromoter struct {
	calls int
}

func (f *fakePromoter) Promote(ctx context.Context, article *models.Article, rule models.AutomationRule) ([]models.PlatformResult, error) {
	f.calls++
	return []models.PlatformResult{{Platform: "twitter", PostID: "tw-1"}}, nil
}

type fakeRecorder struct {
	results []models.RuleExecutionResult
}

func (f *fakeRecorder) Insert(ctx context.Context, result models.RuleExecutionResult) error {
	f.results = append(f.results, result)
	return nil
}

func approvedTopic() *models.ArticleTopic {
	return &models.ArticleTopic{ID: "topic-1", BlogID: "blog-1", Title: "a topic", Status: models.TopicStatusApproved}
}

func newTestEngine(source *fakeTopicSource, content *fakeContent, images *fakeImages, publisher *fakePublisher, promoter *fakePromoter, recorder *fakeRecorder) *Engine {
	return NewEngine(source, content, images, publisher, promoter, nil, recorder, time.Minute, testLogger())
}

func TestExecuteSuccessMarksTopicUsed(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	publisher := &fakePublisher{}
	promoter := &fakePromoter{}
	recorder := &fakeRecorder{}
	engine := newTestEngine(source, &fakeContent{}, &fakeImages{}, publisher, promoter, recorder)

	rule := models.AutomationRule{ID: "rule-1", BlogID: "blog-1", AutoPromote: true}
	result := engine.Execute(context.Background(), rule)

	if !result.Success {
		t.Fatalf("expected success, stages: %+v", result.Stages)
	}
	if result.PostID != "post-1" {
		t.Errorf("post id = %q", result.PostID)
	}
	if result.TopicID != "topic-1" {
		t.Errorf("topic id = %q", result.TopicID)
	}
	if len(source.usedIDs) != 1 || source.usedIDs[0] != "topic-1" {
		t.Errorf("used ids = %v", source.usedIDs)
	}
	if promoter.calls != 1 {
		t.Errorf("promoter calls = %d", promoter.calls)
	}
	if len(recorder.results) != 1 {
		t.Fatalf("recorded %d results", len(recorder.results))
	}
	for _, name := range []models.StageName{models.StageTopicSelection, models.StageContentGeneration, models.StageImageAcquisition, models.StagePublishing, models.StageSocialPromotion} {
		if got := result.StageStatusOf(name); got != models.StageSuccess {
			t.Errorf("stage %s = %s, want success", name, got)
		}
	}
}

func TestExecutePublishFailureLeavesTopicApproved(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	publisher := &fakePublisher{err: fmt.Errorf("wordpress is down")}
	engine := newTestEngine(source, &fakeContent{}, &fakeImages{}, publisher, &fakePromoter{}, &fakeRecorder{})

	rule := models.AutomationRule{ID: "rule-1", BlogID: "blog-1", AutoPromote: true}
	result := engine.Execute(context.Background(), rule)

	if result.Success {
		t.Fatal("expected failure")
	}
	if len(source.usedIDs) != 0 {
		t.Errorf("topic consumed despite failed publish: %v", source.usedIDs)
	}
	if got := result.StageStatusOf(models.StagePublishing); got != models.StageFailed {
		t.Errorf("publishing = %s, want failed", got)
	}
	if got := result.StageStatusOf(models.StageSocialPromotion); got != models.StageSkipped {
		t.Errorf("social promotion = %s, want skipped", got)
	}
}

func TestExecuteImageFailureIsNotFatal(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	engine := newTestEngine(source, &fakeContent{}, &fakeImages{err: fmt.Errorf("quota exceeded")}, &fakePublisher{}, &fakePromoter{}, &fakeRecorder{})

	result := engine.Execute(context.Background(), models.AutomationRule{ID: "rule-1"})

	if !result.Success {
		t.Fatalf("expected success, stages: %+v", result.Stages)
	}
	if got := result.StageStatusOf(models.StageImageAcquisition); got != models.StageFailed {
		t.Errorf("image acquisition = %s, want failed", got)
	}
	if got := result.StageStatusOf(models.StagePublishing); got != models.StageSuccess {
		t.Errorf("publishing = %s, want success", got)
	}
}

func TestExecuteContentFailureSkipsPublishing(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	publisher := &fakePublisher{}
	engine := newTestEngine(source, &fakeContent{err: fmt.Errorf("model refused")}, &fakeImages{}, publisher, &fakePromoter{}, &fakeRecorder{})

	result := engine.Execute(context.Background(), models.AutomationRule{ID: "rule-1"})

	if result.Success {
		t.Fatal("expected failure")
	}
	if publisher.calls != 0 {
		t.Errorf("publisher called %d times", publisher.calls)
	}
	if got := result.StageStatusOf(models.StagePublishing); got != models.StageSkipped {
		t.Errorf("publishing = %s, want skipped", got)
	}
}

func TestExecuteAbortRecordsUnreachedStages(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	recorder := &fakeRecorder{}
	engine := newTestEngine(source, &fakeContent{err: fmt.Errorf("model refused")}, &fakeImages{}, &fakePublisher{}, &fakePromoter{}, recorder)

	result := engine.Execute(context.Background(), models.AutomationRule{ID: "rule-1", AutoPromote: true})

	// Every stage appears in the stored list, not just the ones that ran.
	if len(result.Stages) != 5 {
		t.Fatalf("recorded %d stage entries, want 5: %+v", len(result.Stages), result.Stages)
	}
	want := map[models.StageName]models.StageStatus{
		models.StageTopicSelection:    models.StageSuccess,
		models.StageContentGeneration: models.StageFailed,
		models.StageImageAcquisition:  models.StageSkipped,
		models.StagePublishing:        models.StageSkipped,
		models.StageSocialPromotion:   models.StageSkipped,
	}
	for _, entry := range result.Stages {
		if entry.Status != want[entry.Stage] {
			t.Errorf("stage %s = %s, want %s", entry.Stage, entry.Status, want[entry.Stage])
		}
	}
	if len(recorder.results) != 1 || len(recorder.results[0].Stages) != 5 {
		t.Errorf("persisted result is missing stage entries: %+v", recorder.results)
	}
}

func TestExecutePanickingStageBecomesFailure(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	recorder := &fakeRecorder{}
	engine := newTestEngine(source, &fakeContent{panicMsg: "nil dereference"}, &fakeImages{}, &fakePublisher{}, &fakePromoter{}, recorder)

	result := engine.Execute(context.Background(), models.AutomationRule{ID: "rule-1"})

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := result.StageStatusOf(models.StageContentGeneration); got != models.StageFailed {
		t.Errorf("content generation = %s, want failed", got)
	}
	if len(recorder.results) != 1 {
		t.Errorf("recorded %d results, want 1", len(recorder.results))
	}
}

func TestExecuteRefreshesEmptyPool(t *testing.T) {
	source := &fakeTopicSource{afterRefresh: approvedTopic()}
	engine := newTestEngine(source, &fakeContent{}, &fakeImages{}, &fakePublisher{}, &fakePromoter{}, &fakeRecorder{})

	result := engine.Execute(context.Background(), models.AutomationRule{ID: "rule-1"})

	if !source.refreshed {
		t.Fatal("pool was not refreshed")
	}
	if !result.Success {
		t.Fatalf("expected success, stages: %+v", result.Stages)
	}
}

func TestExecuteSkipsPromotionWhenDisabled(t *testing.T) {
	source := &fakeTopicSource{topic: approvedTopic()}
	promoter := &fakePromoter{}
	engine := newTestEngine(source, &fakeContent{}, &fakeImages{}, &fakePublisher{}, promoter, &fakeRecorder{})

	result := engine.Execute(context.Background(), models.AutomationRule{ID: "rule-1", AutoPromote: false})

	if !result.Success {
		t.Fatal("expected success")
	}
	if promoter.calls != 0 {
		t.Errorf("promoter called %d times", promoter.calls)
	}
	if got := result.StageStatusOf(models.StageSocialPromotion); got != models.StageSkipped {
		t.Errorf("social promotion = %s, want skipped", got)
	}
}
