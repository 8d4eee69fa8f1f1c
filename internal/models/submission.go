package models

import "time"

// Submission statuses. The pending -> processing transition is the mutual
// exclusion guard for the evaluation pipeline and must be applied with a
// conditional update, never read-then-write.
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusProcessing = "processing"
	SubmissionStatusCompleted  = "completed"
	SubmissionStatusError      = "error"
)

// Submission represents one student attempt at an exercise. The submission
// store owns the record; the pipeline only transitions its status and
// processed timestamp.
type Submission struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ExerciseID uint `gorm:"not null;index" json:"exercise_id"`
	StudentID  uint `gorm:"not null;index" json:"student_id"`

	// ContentText is the text extracted from the uploaded file by the intake flow.
	ContentText   string `gorm:"type:text" json:"content_text"`
	AttemptNumber int    `gorm:"not null;default:1" json:"attempt_number"`
	Status        string `gorm:"size:20;not null;default:'pending'" json:"status"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Exercise Exercise `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exercise"`
	Student  Student  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsEvaluated reports whether the submission has gone through a successful evaluation.
func (s Submission) IsEvaluated() bool {
	return s.Status == SubmissionStatusCompleted
}
