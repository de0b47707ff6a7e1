package models

import (
	"fmt"
	"time"
)

// TopicStatus is the lifecycle state of an article topic.
type TopicStatus string

const (
	TopicStatusPending  TopicStatus = "pending"
	TopicStatusApproved TopicStatus = "approved"
	TopicStatusRejected TopicStatus = "rejected"
	TopicStatusUsed     TopicStatus = "used"
	TopicStatusArchived TopicStatus = "archived"
)

// ArticleTopic is a candidate subject for one article.
type ArticleTopic struct {
	ID              string      `json:"id"`
	BlogID          string      `json:"blog_id"`
	Category        string      `json:"category"`
	Title           string      `json:"title"`
	Keywords        []string    `json:"keywords"`
	Score           float64     `json:"score"`
	Status          TopicStatus `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	UsedAt          *time.Time  `json:"used_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ValidTopicTransition reports whether a topic may move from one status to
// another. Used is terminal and reachable only from approved; rejected topics
// never come back (a fresh pending entry is required instead).
func ValidTopicTransition(from, to TopicStatus) bool {
	switch from {
	case TopicStatusPending:
		return to == TopicStatusApproved || to == TopicStatusRejected || to == TopicStatusArchived
	case TopicStatusApproved:
		return to == TopicStatusUsed
	case TopicStatusRejected:
		return to == TopicStatusArchived
	default:
		return false
	}
}

// CheckTopicTransition returns a descriptive error for invalid transitions.
func CheckTopicTransition(from, to TopicStatus) error {
	if !ValidTopicTransition(from, to) {
		return fmt.Errorf("invalid topic transition %s -> %s", from, to)
	}
	return nil
}

// TopicCandidate is a freshly generated topic suggestion, before it is
// persisted as a pending ArticleTopic.
type TopicCandidate struct {
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
	Score    float64  `json:"score"`
}

// TopicPoolStats summarizes the topic supply for a blog.
type TopicPoolStats struct {
	BlogID     string              `json:"blog_id"`
	Total      int                 `json:"total"`
	ByStatus   map[TopicStatus]int `json:"by_status"`
	ByCategory map[string]int      `json:"by_category"`
}
