package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/models"
)

// SubmissionRepository defines the data operations the evaluation pipeline
// performs against the submission store.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListPending(ctx context.Context, limit int) ([]models.Submission, error)
	// ClaimPending atomically transitions a submission from pending to
	// processing. It reports false when the submission was not in pending
	// status, which is the mutual-exclusion guard against double processing.
	ClaimPending(ctx context.Context, id uint) (bool, error)
	MarkCompleted(ctx context.Context, id uint, processedAt time.Time) error
	MarkError(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Exercise").
		Preload("Exercise.Corrections").
		Preload("Student").
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListPending(ctx context.Context, limit int) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("status = ?", models.SubmissionStatusPending).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ClaimPending(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPending).
		Update("status", models.SubmissionStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) MarkCompleted(ctx context.Context, id uint, processedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.SubmissionStatusCompleted,
			"processed_at": processedAt,
		}).Error
}

func (r *submissionRepository) MarkError(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Update("status", models.SubmissionStatusError).Error
}
