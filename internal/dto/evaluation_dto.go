package dto

import (
	"time"

	"github.com/evalio/evalio-api/internal/models"
)

// SweepRequest bounds a batch sweep over pending submissions.
type SweepRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

// SweepResponse reports the outcome of one batch sweep.
type SweepResponse struct {
	Succeeded int `json:"succeeded"`
}

// ReviewEvaluationRequest carries a teacher's manual correction of an
// AI-generated evaluation.
type ReviewEvaluationRequest struct {
	Score    float64 `json:"score" validate:"min=0"`
	Feedback string  `json:"feedback" validate:"required"`
}

// FeedbackItemResponse is the API shape of one feedback item.
type FeedbackItemResponse struct {
	ID           uint    `json:"id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	FeedbackType string  `json:"feedback_type"`
	PointImpact  float64 `json:"point_impact"`
	DisplayOrder int     `json:"display_order"`
}

// EvaluationResponse is the API shape of a graded submission.
type EvaluationResponse struct {
	ID                uint                   `json:"id"`
	SubmissionID      uint                   `json:"submission_id"`
	Score             float64                `json:"score"`
	Percentage        float64                `json:"percentage"`
	GeneralFeedback   string                 `json:"general_feedback"`
	CreatedByAI       bool                   `json:"created_by_ai"`
	ReviewedByTeacher bool                   `json:"reviewed_by_teacher"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	FeedbackItems     []FeedbackItemResponse `json:"feedback_items"`
}

// NewEvaluationResponse maps an evaluation model to its API shape.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	items := make([]FeedbackItemResponse, 0, len(evaluation.FeedbackItems))
	for _, item := range evaluation.FeedbackItems {
		items = append(items, FeedbackItemResponse{
			ID:           item.ID,
			Title:        item.Title,
			Content:      item.Content,
			FeedbackType: item.FeedbackType,
			PointImpact:  item.PointImpact,
			DisplayOrder: item.DisplayOrder,
		})
	}

	return EvaluationResponse{
		ID:                evaluation.ID,
		SubmissionID:      evaluation.SubmissionID,
		Score:             evaluation.Score,
		Percentage:        evaluation.Percentage,
		GeneralFeedback:   evaluation.GeneralFeedback,
		CreatedByAI:       evaluation.CreatedByAI,
		ReviewedByTeacher: evaluation.ReviewedByTeacher,
		CreatedAt:         evaluation.CreatedAt,
		UpdatedAt:         evaluation.UpdatedAt,
		FeedbackItems:     items,
	}
}

// EvaluationJobResponse is the API shape of one audit job row.
type EvaluationJobResponse struct {
	ID             uint       `json:"id"`
	SubmissionID   uint       `json:"submission_id"`
	ModelID        *uint      `json:"model_id"`
	TemplateID     *uint      `json:"template_id"`
	Status         string     `json:"status"`
	ProcessingTime float64    `json:"processing_time"`
	TokenUsage     int        `json:"token_usage"`
	ErrorMessage   string     `json:"error_message"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// NewEvaluationJobResponse maps a job model to its API shape.
func NewEvaluationJobResponse(job models.EvaluationJob) EvaluationJobResponse {
	return EvaluationJobResponse{
		ID:             job.ID,
		SubmissionID:   job.SubmissionID,
		ModelID:        job.ModelID,
		TemplateID:     job.TemplateID,
		Status:         job.Status,
		ProcessingTime: job.ProcessingTime,
		TokenUsage:     job.TokenUsage,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// SubmissionStatusResponse reports the pipeline status of a submission for
// polling clients.
type SubmissionStatusResponse struct {
	SubmissionID uint   `json:"submission_id"`
	Status       string `json:"status"`
}
