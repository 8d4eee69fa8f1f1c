package models

import "time"

// Providers understood by the inference client layer.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DefaultOllamaEndpoint is the generate endpoint of a local Ollama instance.
const DefaultOllamaEndpoint = "http://localhost:11434/api/generate"

// AIModel describes an inference backend configured for grading submissions.
// Records are administrator-managed and read-only to the evaluation pipeline.
type AIModel struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// ModelID is the identifier of the model at the endpoint (ex: deepseek-coder:latest).
	ModelID     string `gorm:"size:100;not null" json:"model_id"`
	EndpointURL string `gorm:"size:512;not null;default:'http://localhost:11434/api/generate'" json:"endpoint_url"`
	Provider    string `gorm:"size:32;not null;default:'ollama'" json:"provider"`

	DefaultTemperature float32 `gorm:"not null;default:0.7" json:"default_temperature"`
	DefaultMaxTokens   int     `gorm:"not null;default:2048" json:"default_max_tokens"`

	// AccuracyScore (0-1) is curated manually from teacher-reviewed evaluations.
	AccuracyScore float64 `gorm:"not null;default:0" json:"accuracy_score"`

	// IsActive is a pointer: an explicit false must reach the column, and a
	// plain bool false would be dropped on insert in favour of the default.
	IsActive *bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the model may be selected. A nil flag counts as
// active, matching the column default.
func (m AIModel) Active() bool {
	return m.IsActive == nil || *m.IsActive
}

// BoolPtr returns a pointer to b, for optional boolean columns.
func BoolPtr(b bool) *bool {
	return &b
}
