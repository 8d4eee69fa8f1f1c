package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/models"
)

// EvaluationJobRepository persists the append-only audit trail of inference
// attempts. Jobs are never deleted by the pipeline.
type EvaluationJobRepository interface {
	Create(ctx context.Context, job *models.EvaluationJob) error
	Update(ctx context.Context, job *models.EvaluationJob) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.EvaluationJob, error)
}

type evaluationJobRepository struct {
	db *gorm.DB
}

// NewEvaluationJobRepository instantiates the repository.
func NewEvaluationJobRepository(db *gorm.DB) EvaluationJobRepository {
	return &evaluationJobRepository{db: db}
}

func (r *evaluationJobRepository) Create(ctx context.Context, job *models.EvaluationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *evaluationJobRepository) Update(ctx context.Context, job *models.EvaluationJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *evaluationJobRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.EvaluationJob, error) {
	var jobs []models.EvaluationJob
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}

	return jobs, nil
}
