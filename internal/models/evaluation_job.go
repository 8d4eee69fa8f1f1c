package models

import (
	"time"

	"gorm.io/datatypes"
)

// EvaluationJob statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// EvaluationJob is the append-only audit record of one inference attempt.
// Re-evaluating a submission creates a new row; prior rows are never mutated.
type EvaluationJob struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	SubmissionID uint  `gorm:"not null;index" json:"submission_id"`
	ModelID      *uint `json:"model_id"`
	TemplateID   *uint `json:"template_id"`

	// PromptUsed is the exact prompt sent to the inference backend.
	PromptUsed string `gorm:"type:text" json:"prompt_used"`
	Status     string `gorm:"size:20;not null;default:'pending'" json:"status"`

	ResponseJSON   datatypes.JSONMap `json:"response_json"`
	ProcessingTime float64           `json:"processing_time"`
	TokenUsage     int               `gorm:"not null;default:0" json:"token_usage"`
	ErrorMessage   string            `gorm:"type:text" json:"error_message"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Submission Submission        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Model      *AIModel          `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Template   *AIPromptTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:SET NULL" json:"-"`
}
