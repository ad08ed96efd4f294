package models

import (
	"time"

	"github.com/lib/pq"
)

// FeedbackResult is the Postgres row written by the feedback worker once a
// session's final assessment has been generated.
type FeedbackResult struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SessionID      string         `gorm:"column:session_id;type:uuid;uniqueIndex" json:"session_id"`
	Role           string         `gorm:"column:role;type:text" json:"role"`
	OverallScore   int            `gorm:"column:overall_score" json:"overall_score"`
	Strengths      pq.StringArray `gorm:"column:strengths;type:text[]" json:"strengths"`
	Improvements   pq.StringArray `gorm:"column:improvements;type:text[]" json:"improvements"`
	DetailedReview string         `gorm:"column:detailed_review;type:text" json:"detailed_review"`
	Recommendation string         `gorm:"column:recommendation;type:text" json:"recommendation"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (FeedbackResult) TableName() string { return "feedback_results" }
