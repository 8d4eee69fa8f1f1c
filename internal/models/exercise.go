package models

import "time"

// Exercise is the graded artifact's subject. The exercise store is owned by an
// external subsystem; the pipeline reads title, content and the point scale.
type Exercise struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// ContentText is the extracted text of the exercise statement.
	ContentText string  `gorm:"type:text" json:"content_text"`
	TotalPoints float64 `gorm:"not null;default:20" json:"total_points"`

	HasCorrections bool         `gorm:"not null;default:false" json:"has_corrections"`
	Corrections    []Correction `json:"corrections,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Correction is a reference answer attached to an exercise.
type Correction struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ExerciseID  uint   `gorm:"not null;index" json:"exercise_id"`
	TextContent string `gorm:"type:text" json:"text_content"`
	IsPrimary   bool   `gorm:"not null;default:false" json:"is_primary"`

	CreatedAt time.Time `json:"created_at"`
}

// PrimaryCorrection returns the primary correction, falling back to the first
// one when no correction is flagged primary. Returns nil when the exercise has
// no corrections.
func (e Exercise) PrimaryCorrection() *Correction {
	if !e.HasCorrections || len(e.Corrections) == 0 {
		return nil
	}
	for i := range e.Corrections {
		if e.Corrections[i].IsPrimary {
			return &e.Corrections[i]
		}
	}
	return &e.Corrections[0]
}
