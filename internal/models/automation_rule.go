package models

import (
	"fmt"
	"time"
)

// AutomationRule is one scheduled content-production policy bound to a blog.
// The scheduler reads and mutates the scheduling state; the content settings
// are passed through to the generation and publishing collaborators untouched.
type AutomationRule struct {
	ID     string `json:"id"`
	BlogID string `json:"blog_id"`
	Name   string `json:"name"`

	// Schedule settings
	PublishingDays []int64       `json:"publishing_days"` // 0=Monday .. 6=Sunday
	PublishingTime string        `json:"publishing_time"` // "HH:MM"
	PostsPerDay    int           `json:"posts_per_day"`
	MinInterval    time.Duration `json:"min_interval"`

	// Content settings (opaque to the scheduler)
	Categories       []string `json:"categories"`
	MinWords         int      `json:"min_words"`
	MaxWords         int      `json:"max_words"`
	Tone             string   `json:"tone"`
	AutoPublish      bool     `json:"auto_publish"`
	RequireApproval  bool     `json:"require_approval"`
	AutoEnableTopics bool     `json:"auto_enable_topics"`
	TopicMinScore    float64  `json:"topic_min_score"`
	AutoPromote      bool     `json:"auto_promote"`

	// Scheduling state
	LastExecutionAt *time.Time `json:"last_execution_at,omitempty"`
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	FailureCount    int        `json:"failure_count"`
	MaxFailures     int        `json:"max_failures"`
	IsActive        bool       `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunsOn reports whether the rule is configured to run on the given weekday.
// An empty day set means every day.
func (r *AutomationRule) RunsOn(day time.Weekday) bool {
	if len(r.PublishingDays) == 0 {
		return true
	}
	// time.Weekday counts Sunday=0; publishing days count Monday=0.
	want := int64((int(day) + 6) % 7)
	for _, d := range r.PublishingDays {
		if d == want {
			return true
		}
	}
	return false
}

// TargetTimeOn returns the rule's publishing time anchored to the date of ref,
// in ref's location.
func (r *AutomationRule) TargetTimeOn(ref time.Time) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(r.PublishingTime, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid publishing time %q: %w", r.PublishingTime, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid publishing time %q", r.PublishingTime)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location()), nil
}

// CreateRuleRequest carries the fields an admin sets when creating a rule.
type CreateRuleRequest struct {
	BlogID           string   `json:"blog_id"`
	Name             string   `json:"name"`
	PublishingDays   []int64  `json:"publishing_days"`
	PublishingTime   string   `json:"publishing_time"`
	PostsPerDay      int      `json:"posts_per_day"`
	MinIntervalHours int      `json:"min_interval_hours"`
	Categories       []string `json:"categories"`
	MinWords         int      `json:"min_words"`
	MaxWords         int      `json:"max_words"`
	Tone             string   `json:"tone"`
	AutoPublish      bool     `json:"auto_publish"`
	RequireApproval  bool     `json:"require_approval"`
	AutoEnableTopics bool     `json:"auto_enable_topics"`
	TopicMinScore    float64  `json:"topic_min_score"`
	AutoPromote      bool     `json:"auto_promote"`
	MaxFailures      int      `json:"max_failures"`
}
