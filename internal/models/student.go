package models

import (
	"strings"
	"time"
)

// Student represents a learner that can submit exercise attempts. The running
// statistics are maintained by the evaluation pipeline as a streaming mean.
type Student struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:150" json:"first_name"`
	LastName  string `gorm:"size:150" json:"last_name"`
	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email"`

	ExercisesCompleted int `gorm:"not null;default:0" json:"exercises_completed"`

	// AverageScore is a running mean on a fixed 0-20 scale, updated
	// incrementally once per first completion of a submission.
	AverageScore float64 `gorm:"not null;default:0" json:"average_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the display name used inside evaluation prompts.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}
