package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/evalio/evalio-api/internal/models"
	"github.com/evalio/evalio-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
	// ErrSeedInvalidPayload indicates the payload failed schema validation.
	ErrSeedInvalidPayload = errors.New("invalid seed payload")
)

const modelSeedSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["name", "model_id"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"model_id": {"type": "string", "minLength": 1},
			"endpoint_url": {"type": "string"},
			"provider": {"enum": ["ollama", "openai"]},
			"default_temperature": {"type": "number", "minimum": 0, "maximum": 2},
			"default_max_tokens": {"type": "integer", "minimum": 1},
			"is_active": {"type": "boolean"}
		}
	}
}`

const templateSeedSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["name", "task_type", "prompt_text"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"task_type": {"enum": ["evaluation", "grading", "feedback", "plagiarism"]},
			"prompt_text": {"type": "string", "minLength": 1},
			"available_variables": {"type": "array", "items": {"type": "string"}}
		}
	}
}`

// SeedService loads model and template registry entries from trusted payloads.
type SeedService interface {
	SeedModels(ctx context.Context, token string, payload []byte) (int64, error)
	SeedTemplates(ctx context.Context, token string, payload []byte) (int64, error)
}

type seedService struct {
	registry       repository.RegistryRepository
	modelSchema    *jsonschema.Schema
	templateSchema *jsonschema.Schema
	enabled        bool
	token          string
	logger         zerolog.Logger
}

// NewSeedService constructs a seeding service. Schema compilation happens once
// here; the schemas are constants so a failure is a programming error.
func NewSeedService(registry repository.RegistryRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		registry:       registry,
		modelSchema:    jsonschema.MustCompileString("models.schema.json", modelSeedSchema),
		templateSchema: jsonschema.MustCompileString("templates.schema.json", templateSeedSchema),
		enabled:        enabled,
		token:          token,
		logger:         logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedModels(ctx context.Context, token string, payload []byte) (int64, error) {
	if err := s.authorize(token); err != nil {
		return 0, err
	}

	if err := validateSeedPayload(s.modelSchema, payload); err != nil {
		return 0, err
	}

	var items []models.AIModel
	if err := json.Unmarshal(payload, &items); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSeedInvalidPayload, err)
	}

	for i := range items {
		if items[i].EndpointURL == "" {
			items[i].EndpointURL = models.DefaultOllamaEndpoint
		}
		if items[i].Provider == "" {
			items[i].Provider = models.ProviderOllama
		}
		if items[i].IsActive == nil {
			items[i].IsActive = models.BoolPtr(true)
		}
	}

	affected, err := s.registry.UpsertModels(ctx, items)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("affected", affected).Msg("ai models seeded")
	return affected, nil
}

func (s *seedService) SeedTemplates(ctx context.Context, token string, payload []byte) (int64, error) {
	if err := s.authorize(token); err != nil {
		return 0, err
	}

	if err := validateSeedPayload(s.templateSchema, payload); err != nil {
		return 0, err
	}

	var items []models.AIPromptTemplate
	if err := json.Unmarshal(payload, &items); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSeedInvalidPayload, err)
	}

	affected, err := s.registry.UpsertTemplates(ctx, items)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("affected", affected).Msg("prompt templates seeded")
	return affected, nil
}

func (s *seedService) authorize(token string) error {
	if !s.enabled {
		return ErrSeedDisabled
	}

	expected := strings.TrimSpace(s.token)
	if expected == "" || !constantTimeEqual(expected, strings.TrimSpace(token)) {
		return ErrSeedUnauthorized
	}

	return nil
}

func validateSeedPayload(schema *jsonschema.Schema, payload []byte) error {
	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSeedInvalidPayload, err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSeedInvalidPayload, err)
	}

	return nil
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	mismatch := byte(0)
	for i := 0; i < len(a); i++ {
		mismatch |= a[i] ^ b[i]
	}
	return mismatch == 0
}
