package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/dto"
	"github.com/evalio/evalio-api/internal/models"
	"github.com/evalio/evalio-api/internal/observability"
	"github.com/evalio/evalio-api/internal/repository"
	"github.com/evalio/evalio-api/pkg/ai"
)

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionNotReady indicates the submission is not in pending status. An
// attempt against such a submission is a deliberate no-op: a submission that
// is mid-flight or already graded must never be processed twice.
var ErrSubmissionNotReady = errors.New("submission is not pending evaluation")

// ErrNoActiveModel indicates no active inference model is configured.
var ErrNoActiveModel = errors.New("no active ai model available")

// ErrNoPromptTemplate indicates no prompt template matches the task type.
var ErrNoPromptTemplate = errors.New("no prompt template available")

// ErrNoProviderClient indicates the selected model names a provider without a
// configured inference client.
var ErrNoProviderClient = errors.New("no inference client for provider")

// ErrEmptyResponse indicates the backend answered with an empty payload.
var ErrEmptyResponse = errors.New("inference backend returned an empty response")

// ErrEvaluationNotFound indicates the submission has no evaluation yet.
var ErrEvaluationNotFound = errors.New("evaluation not found")

// ErrScoreExceedsTotal indicates a review score surpasses the exercise total.
var ErrScoreExceedsTotal = errors.New("score exceeds exercise total points")

const (
	defaultSweepLimit = 10
	maxSweepLimit     = 100
)

// EvaluationConfig describes orchestration knobs.
type EvaluationConfig struct {
	// InferenceTimeout bounds one inference request; zero means the
	// pkg/ai default of 120 seconds.
	InferenceTimeout time.Duration
}

// EvaluationService drives the evaluation pipeline: claim the submission,
// obtain a grade from the inference backend, normalize it and persist the
// outcome atomically.
type EvaluationService interface {
	Evaluate(ctx context.Context, submissionID uint) (dto.EvaluationResponse, error)
	EvaluateAsync(submissionID uint)
	EvaluatePending(ctx context.Context, limit int) int
	GetEvaluation(ctx context.Context, submissionID uint) (dto.EvaluationResponse, error)
	ListJobs(ctx context.Context, submissionID uint) ([]dto.EvaluationJobResponse, error)
	Review(ctx context.Context, submissionID uint, payload dto.ReviewEvaluationRequest, teacherID uint) (dto.EvaluationResponse, error)
}

type evaluationService struct {
	submissions repository.SubmissionRepository
	evaluations repository.EvaluationRepository
	jobs        repository.EvaluationJobRepository
	registry    repository.RegistryRepository
	clients     map[string]ai.Client
	validator   *validator.Validate
	notifier    *StatusNotifier
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	config      EvaluationConfig
}

// NewEvaluationService constructs the orchestrator. The clients map is keyed
// by provider name as stored on AIModel records.
func NewEvaluationService(
	submissions repository.SubmissionRepository,
	evaluations repository.EvaluationRepository,
	jobs repository.EvaluationJobRepository,
	registry repository.RegistryRepository,
	clients map[string]ai.Client,
	validate *validator.Validate,
	notifier *StatusNotifier,
	logger zerolog.Logger,
	cfg EvaluationConfig,
) EvaluationService {
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = ai.DefaultTimeout
	}

	return &evaluationService{
		submissions: submissions,
		evaluations: evaluations,
		jobs:        jobs,
		registry:    registry,
		clients:     clients,
		validator:   validate,
		notifier:    notifier,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/evalio/evalio-api/internal/service/evaluation"),
		now:         time.Now,
		config:      cfg,
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, submissionID uint) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.Int64("submission_id", int64(submissionID)),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrSubmissionNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	claimed, err := s.submissions.ClaimPending(ctx, submission.ID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if !claimed {
		s.logger.Warn().
			Uint("submission_id", submission.ID).
			Str("status", submission.Status).
			Msg("submission not pending, skipping evaluation")
		observability.Evaluations().WithLabelValues("skipped").Inc()
		return dto.EvaluationResponse{}, ErrSubmissionNotReady
	}
	s.notifier.StatusChanged(ctx, submission.ID, models.SubmissionStatusProcessing)

	evaluation, err := s.run(ctx, submission)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.Evaluations().WithLabelValues("failed").Inc()
		if markErr := s.submissions.MarkError(ctx, submission.ID); markErr != nil {
			s.logger.Error().Err(markErr).Uint("submission_id", submission.ID).Msg("failed to mark submission as errored")
		}
		s.notifier.StatusChanged(ctx, submission.ID, models.SubmissionStatusError)
		return dto.EvaluationResponse{}, err
	}

	if err := s.submissions.MarkCompleted(ctx, submission.ID, s.now().UTC()); err != nil {
		// The evaluation is persisted at this point; the submission must
		// still reach a terminal status rather than stay in processing.
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to mark submission completed")
		observability.Evaluations().WithLabelValues("failed").Inc()
		if markErr := s.submissions.MarkError(ctx, submission.ID); markErr != nil {
			s.logger.Error().Err(markErr).Uint("submission_id", submission.ID).Msg("failed to mark submission as errored")
		}
		s.notifier.StatusChanged(ctx, submission.ID, models.SubmissionStatusError)
		return dto.EvaluationResponse{}, fmt.Errorf("mark submission completed: %w", err)
	}
	observability.Evaluations().WithLabelValues("completed").Inc()
	s.notifier.StatusChanged(ctx, submission.ID, models.SubmissionStatusCompleted)

	return dto.NewEvaluationResponse(evaluation), nil
}

// run performs one inference attempt against a claimed submission. Every
// failure path is recorded on the audit job row before it propagates.
func (s *evaluationService) run(ctx context.Context, submission models.Submission) (models.Evaluation, error) {
	model, modelErr := s.registry.SelectModel(ctx, nil)

	job := models.EvaluationJob{
		SubmissionID: submission.ID,
		Status:       models.JobStatusProcessing,
	}
	if modelErr == nil {
		job.ModelID = &model.ID
	}
	if err := s.jobs.Create(ctx, &job); err != nil {
		return models.Evaluation{}, fmt.Errorf("create evaluation job: %w", err)
	}

	if modelErr != nil {
		if errors.Is(modelErr, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, s.failJob(ctx, &job, ErrNoActiveModel)
		}
		return models.Evaluation{}, s.failJob(ctx, &job, modelErr)
	}

	template, err := s.registry.SelectTemplate(ctx, models.TaskTypeEvaluation, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, s.failJob(ctx, &job, ErrNoPromptTemplate)
		}
		return models.Evaluation{}, s.failJob(ctx, &job, err)
	}
	job.TemplateID = &template.ID

	prompt, err := template.Format(s.promptVariables(submission))
	if err != nil {
		return models.Evaluation{}, s.failJob(ctx, &job, err)
	}

	job.PromptUsed = prompt
	if err := s.jobs.Update(ctx, &job); err != nil {
		s.logger.Error().Err(err).Uint("job_id", job.ID).Msg("failed to record prompt on job")
	}

	client, ok := s.clients[model.Provider]
	if !ok || client == nil {
		return models.Evaluation{}, s.failJob(ctx, &job, fmt.Errorf("%w: %s", ErrNoProviderClient, model.Provider))
	}

	inferCtx, cancel := context.WithTimeout(ctx, s.config.InferenceTimeout)
	defer cancel()

	start := s.now()
	raw, err := client.Generate(inferCtx, ai.GenerateRequest{
		EndpointURL: model.EndpointURL,
		Model:       model.ModelID,
		Prompt:      prompt,
		Temperature: model.DefaultTemperature,
		MaxTokens:   model.DefaultMaxTokens,
	})
	job.ProcessingTime = s.now().Sub(start).Seconds()
	if err != nil {
		return models.Evaluation{}, s.failJob(ctx, &job, fmt.Errorf("inference request: %w", err))
	}

	job.TokenUsage = raw.TotalTokens
	job.ResponseJSON = datatypes.JSONMap{"response": raw.Response}
	if raw.TotalTokens > 0 {
		job.ResponseJSON["usage"] = map[string]interface{}{"total_tokens": raw.TotalTokens}
	}

	if strings.TrimSpace(raw.Response) == "" {
		return models.Evaluation{}, s.failJob(ctx, &job, ErrEmptyResponse)
	}

	result := ai.Normalize(raw.Response)

	totalPoints := submission.Exercise.TotalPoints
	score := rescaleScore(result.Score, totalPoints)
	percentage := 0.0
	if totalPoints > 0 {
		percentage = score / totalPoints * 100
	}

	evaluation := models.Evaluation{
		SubmissionID:      submission.ID,
		Score:             score,
		Percentage:        percentage,
		GeneralFeedback:   s.sanitizer.Sanitize(result.Feedback),
		DetailedFeedback:  datatypes.JSONMap(result.Detail),
		CreatedByAI:       true,
		ReviewedByTeacher: false,
	}

	items := make([]models.FeedbackItem, 0, len(result.Items))
	for _, entry := range result.Items {
		items = append(items, models.FeedbackItem{
			Title:        entry.Title,
			Content:      s.sanitizer.Sanitize(entry.Content),
			FeedbackType: entry.Kind,
			DisplayOrder: entry.Order,
		})
	}

	// Statistics move only on the first completion: a re-evaluation updates
	// the score but must never double-count in the running average.
	firstCompletion := false
	if _, err := s.evaluations.GetBySubmission(ctx, submission.ID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, s.failJob(ctx, &job, err)
		}
		firstCompletion = true
	}

	err = s.evaluations.SaveResult(ctx, repository.SaveResultParams{
		Evaluation:   &evaluation,
		Items:        items,
		StudentID:    submission.StudentID,
		ScoreOutOf20: evaluation.ScoreOutOf20(totalPoints),
		UpdateStats:  firstCompletion,
	})
	if err != nil {
		return models.Evaluation{}, s.failJob(ctx, &job, fmt.Errorf("persist evaluation: %w", err))
	}
	evaluation.FeedbackItems = items

	job.Status = models.JobStatusCompleted
	completedAt := s.now().UTC()
	job.CompletedAt = &completedAt
	if err := s.jobs.Update(ctx, &job); err != nil {
		s.logger.Error().Err(err).Uint("job_id", job.ID).Msg("failed to mark job completed")
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Float64("score", score).
		Float64("percentage", percentage).
		Int("feedback_items", len(items)).
		Msg("submission evaluated")

	return evaluation, nil
}

func (s *evaluationService) EvaluateAsync(submissionID uint) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Uint("submission_id", submissionID).Msg("async evaluation panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.InferenceTimeout+30*time.Second)
		defer cancel()

		if _, err := s.Evaluate(ctx, submissionID); err != nil && !errors.Is(err, ErrSubmissionNotReady) {
			s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("async evaluation failed")
		}
	}()
}

func (s *evaluationService) EvaluatePending(ctx context.Context, limit int) int {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if limit > maxSweepLimit {
		limit = maxSweepLimit
	}

	pending, err := s.submissions.ListPending(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list pending submissions")
		return 0
	}

	success := 0
	for _, submission := range pending {
		if _, err := s.Evaluate(ctx, submission.ID); err != nil {
			// One failed submission must never abort the sweep.
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("sweep evaluation failed")
			continue
		}
		success++
		observability.SweepSuccesses().Inc()
	}

	return success
}

func (s *evaluationService) GetEvaluation(ctx context.Context, submissionID uint) (dto.EvaluationResponse, error) {
	evaluation, err := s.evaluations.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) ListJobs(ctx context.Context, submissionID uint) ([]dto.EvaluationJobResponse, error) {
	jobs, err := s.jobs.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EvaluationJobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, dto.NewEvaluationJobResponse(job))
	}

	return responses, nil
}

func (s *evaluationService) Review(ctx context.Context, submissionID uint, payload dto.ReviewEvaluationRequest, teacherID uint) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrSubmissionNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := s.evaluations.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	totalPoints := submission.Exercise.TotalPoints
	if totalPoints > 0 && payload.Score > totalPoints {
		return dto.EvaluationResponse{}, ErrScoreExceedsTotal
	}

	evaluation.Score = payload.Score
	evaluation.Percentage = 0
	if totalPoints > 0 {
		evaluation.Percentage = payload.Score / totalPoints * 100
	}
	evaluation.GeneralFeedback = s.sanitizer.Sanitize(payload.Feedback)
	evaluation.ReviewedByTeacher = true
	evaluation.ReviewingTeacherID = &teacherID

	if err := s.evaluations.Update(ctx, &evaluation); err != nil {
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) promptVariables(submission models.Submission) map[string]string {
	exercise := submission.Exercise

	// correction_content defaults to empty so templates that reference it
	// still format for exercises without a published correction.
	variables := map[string]string{
		"exercise_title":       exercise.Title,
		"exercise_description": exercise.Description,
		"exercise_content":     exercise.ContentText,
		"submission_content":   submission.ContentText,
		"student_name":         submission.Student.FullName(),
		"total_points":         strconv.FormatFloat(exercise.TotalPoints, 'f', -1, 64),
		"correction_content":   "",
	}

	if correction := exercise.PrimaryCorrection(); correction != nil {
		variables["correction_content"] = correction.TextContent
	}

	return variables
}

func (s *evaluationService) failJob(ctx context.Context, job *models.EvaluationJob, cause error) error {
	job.Status = models.JobStatusFailed
	job.ErrorMessage = cause.Error()
	completedAt := s.now().UTC()
	job.CompletedAt = &completedAt

	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error().Err(err).Uint("job_id", job.ID).Msg("failed to record job failure")
	}

	return cause
}

// rescaleScore maps an out-of-range score onto the exercise's point scale. A
// score above the total that still fits on 20 is assumed to have been
// expressed out of 20. This mirrors the grading heuristic used by human
// correctors and is documented as such, not an exact contract.
func rescaleScore(score, totalPoints float64) float64 {
	if score > totalPoints {
		if score <= 20 && totalPoints != 20 {
			return (score / 20) * totalPoints
		}
	}
	return score
}
