package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Task types understood by the prompt template store.
const (
	TaskTypeEvaluation = "evaluation"
	TaskTypeGrading    = "grading"
	TaskTypeFeedback   = "feedback"
	TaskTypePlagiarism = "plagiarism"
)

// AIPromptTemplate holds parameterized prompt text for one evaluation task type.
type AIPromptTemplate struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// PromptText contains named placeholders such as {exercise_content} or {submission_content}.
	PromptText string `gorm:"type:text;not null" json:"prompt_text"`
	TaskType   string `gorm:"size:20;not null;default:'evaluation'" json:"task_type"`

	AvailableVariables datatypes.JSONSlice[string] `json:"available_variables"`

	RecommendedModelID *uint    `json:"recommended_model_id"`
	RecommendedModel   *AIModel `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"recommended_model,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MissingVariableError indicates the template references a placeholder absent
// from the supplied variable set.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable: %s", e.Name)
}

// Format substitutes {name} placeholders with the supplied variables. Doubled
// braces ({{ and }}) escape literal braces. Any unresolved placeholder is a
// hard error, never silently skipped.
func (t AIPromptTemplate) Format(variables map[string]string) (string, error) {
	var builder strings.Builder
	text := t.PromptText

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				builder.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", &MissingVariableError{Name: text[i+1:]}
			}
			name := text[i+1 : i+1+end]
			value, ok := variables[name]
			if !ok {
				return "", &MissingVariableError{Name: name}
			}
			builder.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				builder.WriteByte('}')
				i++
				continue
			}
			builder.WriteByte('}')
		default:
			builder.WriteByte(text[i])
		}
	}

	return builder.String(), nil
}
