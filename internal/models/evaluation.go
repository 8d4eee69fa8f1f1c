package models

import (
	"time"

	"gorm.io/datatypes"
)

// Feedback item kinds.
const (
	FeedbackKindPositive    = "positive"
	FeedbackKindImprovement = "improvement"
	FeedbackKindError       = "error"
	FeedbackKindSuggestion  = "suggestion"
)

// Evaluation is the graded outcome attached one-to-one to a submission. Score
// and percentage are always written together; percentage is never stored
// independently of score.
type Evaluation struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	SubmissionID uint `gorm:"uniqueIndex;not null" json:"submission_id"`

	// Score is expressed on the exercise's point scale.
	Score      float64 `gorm:"not null;default:0" json:"score"`
	Percentage float64 `gorm:"not null;default:0" json:"percentage"`

	GeneralFeedback string `gorm:"type:text" json:"general_feedback"`

	// DetailedFeedback retains the full normalized payload for audit.
	DetailedFeedback datatypes.JSONMap `json:"detailed_feedback"`

	// CreatedByAI carries no column default: the pipeline and the review flow
	// both set it explicitly, and a default would shadow an explicit false on
	// insert.
	CreatedByAI        bool  `gorm:"not null" json:"created_by_ai"`
	ReviewedByTeacher  bool  `gorm:"not null;default:false" json:"reviewed_by_teacher"`
	ReviewingTeacherID *uint `json:"reviewing_teacher_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Submission    Submission     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FeedbackItems []FeedbackItem `json:"feedback_items,omitempty"`
}

// ScoreOutOf20 converts the score to the fixed 0-20 scale used by student
// statistics. A zero point scale yields zero.
func (e Evaluation) ScoreOutOf20(totalPoints float64) float64 {
	if totalPoints == 0 {
		return 0
	}
	return (e.Score / totalPoints) * 20
}

// FeedbackCategory groups feedback items for display.
type FeedbackCategory struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	CreatedAt time.Time `json:"created_at"`
}

// FeedbackItem is one discrete comment inside an evaluation. Display order is
// zero-based and gap-free within one evaluation; on re-evaluation the full set
// is replaced atomically.
type FeedbackItem struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	EvaluationID uint  `gorm:"not null;index" json:"evaluation_id"`
	CategoryID   *uint `json:"category_id"`

	Title        string  `gorm:"size:255" json:"title"`
	Content      string  `gorm:"type:text" json:"content"`
	FeedbackType string  `gorm:"size:20;not null;default:'suggestion'" json:"feedback_type"`
	PointImpact  float64 `gorm:"not null;default:0" json:"point_impact"`
	DisplayOrder int     `gorm:"not null;default:0" json:"display_order"`

	CreatedAt time.Time `json:"created_at"`

	Category *FeedbackCategory `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
}
