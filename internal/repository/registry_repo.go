package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evalio/evalio-api/internal/models"
)

// RegistryRepository resolves inference models and prompt templates. Selection
// falls back from an explicit id to the first active record so that a retired
// id does not abort an evaluation when a default exists.
type RegistryRepository interface {
	SelectModel(ctx context.Context, id *uint) (models.AIModel, error)
	SelectTemplate(ctx context.Context, taskType string, id *uint) (models.AIPromptTemplate, error)
	UpsertModels(ctx context.Context, items []models.AIModel) (int64, error)
	UpsertTemplates(ctx context.Context, items []models.AIPromptTemplate) (int64, error)
}

type registryRepository struct {
	db *gorm.DB
}

// NewRegistryRepository instantiates the repository.
func NewRegistryRepository(db *gorm.DB) RegistryRepository {
	return &registryRepository{db: db}
}

func (r *registryRepository) SelectModel(ctx context.Context, id *uint) (models.AIModel, error) {
	var model models.AIModel

	if id != nil {
		err := r.db.WithContext(ctx).
			Where("id = ? AND is_active = ?", *id, true).
			First(&model).Error
		if err == nil {
			return model, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AIModel{}, err
		}
	}

	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		First(&model).Error
	if err != nil {
		return models.AIModel{}, err
	}

	return model, nil
}

func (r *registryRepository) SelectTemplate(ctx context.Context, taskType string, id *uint) (models.AIPromptTemplate, error) {
	var template models.AIPromptTemplate

	if id != nil {
		err := r.db.WithContext(ctx).
			Where("id = ? AND task_type = ?", *id, taskType).
			First(&template).Error
		if err == nil {
			return template, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AIPromptTemplate{}, err
		}
	}

	err := r.db.WithContext(ctx).
		Where("task_type = ?", taskType).
		Order("id ASC").
		First(&template).Error
	if err != nil {
		return models.AIPromptTemplate{}, err
	}

	return template, nil
}

func (r *registryRepository) UpsertModels(ctx context.Context, items []models.AIModel) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "model_id", "endpoint_url", "provider", "default_temperature", "default_max_tokens", "is_active", "updated_at"}),
	}).Create(&items)

	return result.RowsAffected, result.Error
}

func (r *registryRepository) UpsertTemplates(ctx context.Context, items []models.AIPromptTemplate) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "prompt_text", "task_type", "available_variables", "updated_at"}),
	}).Create(&items)

	return result.RowsAffected, result.Error
}
