package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/models"
)

// SaveResultParams bundles the rows written atomically after a successful
// evaluation: the evaluation itself, its replacement feedback items, and the
// student statistics update.
type SaveResultParams struct {
	Evaluation *models.Evaluation
	Items      []models.FeedbackItem
	StudentID  uint

	// ScoreOutOf20 feeds the running average on the fixed 0-20 scale.
	ScoreOutOf20 float64

	// UpdateStats is set only on the first completion of a submission so
	// re-evaluations never double-count in the running average.
	UpdateStats bool
}

// EvaluationRepository persists graded outcomes. SaveResult is the single
// atomic unit of the pipeline: evaluation upsert, feedback replacement and
// statistics update commit together or not at all.
type EvaluationRepository interface {
	GetBySubmission(ctx context.Context, submissionID uint) (models.Evaluation, error)
	SaveResult(ctx context.Context, params SaveResultParams) error
	Update(ctx context.Context, evaluation *models.Evaluation) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("FeedbackItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("submission_id = ?", submissionID).
		First(&evaluation).Error
	if err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (r *evaluationRepository) SaveResult(ctx context.Context, params SaveResultParams) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Evaluation
		err := tx.Where("submission_id = ?", params.Evaluation.SubmissionID).First(&existing).Error
		switch {
		case err == nil:
			params.Evaluation.ID = existing.ID
			params.Evaluation.CreatedAt = existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := tx.Save(params.Evaluation).Error; err != nil {
			return fmt.Errorf("save evaluation: %w", err)
		}

		if err := tx.Where("evaluation_id = ?", params.Evaluation.ID).
			Delete(&models.FeedbackItem{}).Error; err != nil {
			return fmt.Errorf("clear feedback items: %w", err)
		}

		if len(params.Items) > 0 {
			category, err := defaultFeedbackCategory(tx)
			if err != nil {
				return fmt.Errorf("resolve feedback category: %w", err)
			}
			for i := range params.Items {
				params.Items[i].ID = 0
				params.Items[i].EvaluationID = params.Evaluation.ID
				if params.Items[i].CategoryID == nil {
					params.Items[i].CategoryID = &category.ID
				}
			}
			if err := tx.Create(&params.Items).Error; err != nil {
				return fmt.Errorf("insert feedback items: %w", err)
			}
		}

		if params.UpdateStats {
			if err := updateStudentStatistics(tx, params.StudentID, params.ScoreOutOf20); err != nil {
				return fmt.Errorf("update student statistics: %w", err)
			}
		}

		return nil
	})
}

func (r *evaluationRepository) Update(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Save(evaluation).Error
}

const defaultFeedbackCategoryName = "Général"

// defaultFeedbackCategory resolves the category attached to pipeline-produced
// feedback items, creating it on first use.
func defaultFeedbackCategory(tx *gorm.DB) (models.FeedbackCategory, error) {
	var category models.FeedbackCategory
	err := tx.Where(models.FeedbackCategory{Name: defaultFeedbackCategoryName}).
		Attrs(models.FeedbackCategory{Description: "Commentaires généraux sur la soumission"}).
		FirstOrCreate(&category).Error
	return category, err
}

// updateStudentStatistics applies the count-weighted streaming mean
// new_avg = (old_avg * (n-1) + score) / n inside the caller's transaction.
func updateStudentStatistics(tx *gorm.DB, studentID uint, scoreOutOf20 float64) error {
	var student models.Student
	if err := tx.First(&student, studentID).Error; err != nil {
		return err
	}

	count := student.ExercisesCompleted + 1
	average := scoreOutOf20
	if count > 1 {
		average = (student.AverageScore*float64(count-1) + scoreOutOf20) / float64(count)
	}

	student.ExercisesCompleted = count
	student.AverageScore = average

	return tx.Save(&student).Error
}
