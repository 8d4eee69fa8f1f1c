package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evalio/evalio-api/internal/models"
)

type seedRegistryRepo struct {
	models    []models.AIModel
	templates []models.AIPromptTemplate
}

func (s *seedRegistryRepo) SelectModel(ctx context.Context, id *uint) (models.AIModel, error) {
	return models.AIModel{}, nil
}

func (s *seedRegistryRepo) SelectTemplate(ctx context.Context, taskType string, id *uint) (models.AIPromptTemplate, error) {
	return models.AIPromptTemplate{}, nil
}

func (s *seedRegistryRepo) UpsertModels(ctx context.Context, items []models.AIModel) (int64, error) {
	s.models = items
	return int64(len(items)), nil
}

func (s *seedRegistryRepo) UpsertTemplates(ctx context.Context, items []models.AIPromptTemplate) (int64, error) {
	s.templates = items
	return int64(len(items)), nil
}

func TestSeedServiceTokenGuard(t *testing.T) {
	repo := &seedRegistryRepo{}
	svc := NewSeedService(repo, true, "secret", testLogger())

	payload := []byte(`[{"name": "deepseek", "model_id": "deepseek-coder:latest"}]`)

	_, err := svc.SeedModels(context.Background(), "wrong", payload)
	require.ErrorIs(t, err, ErrSeedUnauthorized)

	affected, err := svc.SeedModels(context.Background(), "secret", payload)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
}

func TestSeedServiceDisabled(t *testing.T) {
	svc := NewSeedService(&seedRegistryRepo{}, false, "secret", testLogger())

	_, err := svc.SeedModels(context.Background(), "secret", []byte(`[]`))
	require.ErrorIs(t, err, ErrSeedDisabled)
}

func TestSeedServiceModelDefaults(t *testing.T) {
	repo := &seedRegistryRepo{}
	svc := NewSeedService(repo, true, "secret", testLogger())

	payload := []byte(`[{"name": "deepseek", "model_id": "deepseek-coder:latest"}]`)
	_, err := svc.SeedModels(context.Background(), "secret", payload)
	require.NoError(t, err)

	require.Len(t, repo.models, 1)
	require.Equal(t, models.DefaultOllamaEndpoint, repo.models[0].EndpointURL)
	require.Equal(t, models.ProviderOllama, repo.models[0].Provider)
	require.NotNil(t, repo.models[0].IsActive)
	require.True(t, *repo.models[0].IsActive)
}

func TestSeedServiceDeactivatesModel(t *testing.T) {
	repo := &seedRegistryRepo{}
	svc := NewSeedService(repo, true, "secret", testLogger())

	payload := []byte(`[{"name": "deepseek", "model_id": "deepseek-coder:latest", "is_active": false}]`)
	_, err := svc.SeedModels(context.Background(), "secret", payload)
	require.NoError(t, err)

	// An explicit false must survive defaulting so the upsert can retire it.
	require.Len(t, repo.models, 1)
	require.NotNil(t, repo.models[0].IsActive)
	require.False(t, *repo.models[0].IsActive)
}

func TestSeedServiceRejectsInvalidModelPayload(t *testing.T) {
	svc := NewSeedService(&seedRegistryRepo{}, true, "secret", testLogger())

	cases := map[string]string{
		"not an array":     `{"name": "deepseek"}`,
		"missing model_id": `[{"name": "deepseek"}]`,
		"bad provider":     `[{"name": "x", "model_id": "y", "provider": "bedrock"}]`,
		"empty array":      `[]`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SeedModels(context.Background(), "secret", []byte(payload))
			require.ErrorIs(t, err, ErrSeedInvalidPayload)
		})
	}
}

func TestSeedServiceTemplates(t *testing.T) {
	repo := &seedRegistryRepo{}
	svc := NewSeedService(repo, true, "secret", testLogger())

	payload := []byte(`[{"name": "default", "task_type": "evaluation", "prompt_text": "Corrige {submission_content}"}]`)
	affected, err := svc.SeedTemplates(context.Background(), "secret", payload)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.Equal(t, models.TaskTypeEvaluation, repo.templates[0].TaskType)
}

func TestSeedServiceRejectsUnknownTaskType(t *testing.T) {
	svc := NewSeedService(&seedRegistryRepo{}, true, "secret", testLogger())

	payload := []byte(`[{"name": "default", "task_type": "translation", "prompt_text": "x"}]`)
	_, err := svc.SeedTemplates(context.Background(), "secret", payload)
	require.ErrorIs(t, err, ErrSeedInvalidPayload)
}
