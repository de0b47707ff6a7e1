package models

import "time"

// StageName identifies one step of the publication pipeline.
type StageName string

const (
	StageTopicSelection    StageName = "topic_selection"
	StageContentGeneration StageName = "content_generation"
	StageImageAcquisition  StageName = "image_acquisition"
	StagePublishing        StageName = "publishing"
	StageSocialPromotion   StageName = "social_promotion"
)

// StageStatus distinguishes "ran and errored" from "did not run".
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Stage    StageName     `json:"stage"`
	Status   StageStatus   `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RuleExecutionResult aggregates one rule invocation. It is logged and
// summarized but never drives scheduling decisions directly; the rule's
// persisted failure counter does that.
type RuleExecutionResult struct {
	RuleID      string        `json:"rule_id"`
	BlogID      string        `json:"blog_id"`
	Stages      []StageResult `json:"stages"`
	Success     bool          `json:"success"`
	TopicID     string        `json:"topic_id,omitempty"`
	PostID      string        `json:"post_id,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// StageStatusOf returns the recorded status for a stage, or StageSkipped when
// the stage never produced an entry.
func (r *RuleExecutionResult) StageStatusOf(name StageName) StageStatus {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s.Status
		}
	}
	return StageSkipped
}

// Article is the content produced for a topic, passed through to the
// publishing and promotion collaborators.
type Article struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Excerpt   string   `json:"excerpt,omitempty"`
	Category  string   `json:"category,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
	WordCount int      `json:"word_count"`
}

// ImageSet is the result of image acquisition for an article.
type ImageSet struct {
	FeaturedURL string   `json:"featured_url"`
	URLs        []string `json:"urls"`
}

// PlatformResult is the per-platform outcome of social promotion.
type PlatformResult struct {
	Platform string `json:"platform"`
	PostID   string `json:"post_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NotificationEvent is a fire-and-forget notice emitted on run completion,
// failure and rule auto-disable.
type NotificationEvent struct {
	Type    string                 `json:"type"` // "success", "failure", "rule_disabled"
	RuleID  string                 `json:"rule_id"`
	BlogID  string                 `json:"blog_id"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
