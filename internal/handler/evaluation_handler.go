package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/dto"
	"github.com/evalio/evalio-api/internal/repository"
	"github.com/evalio/evalio-api/internal/service"
	"github.com/evalio/evalio-api/internal/utils"
	"github.com/evalio/evalio-api/pkg/ai"
)

// EvaluationHandler wires the evaluation pipeline endpoints.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	submissions repository.SubmissionRepository
	notifier    *service.StatusNotifier
	logger      zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(evaluations service.EvaluationService, submissions repository.SubmissionRepository, notifier *service.StatusNotifier, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		submissions: submissions,
		notifier:    notifier,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the read endpoints to the router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Get("/submissions/:id/evaluation", h.getEvaluation)
	router.Get("/submissions/:id/jobs", h.listJobs)
	router.Get("/submissions/:id/status", h.status)
}

// RegisterManagement attaches the endpoints that trigger or amend
// evaluations. Callers are expected to guard the group with a role check.
func (h *EvaluationHandler) RegisterManagement(router fiber.Router) {
	router.Post("/submissions/:id/evaluate", h.evaluate)
	router.Patch("/submissions/:id/review", h.review)
	router.Post("/evaluations/sweep", h.sweep)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if c.QueryBool("async") {
		h.evaluations.EvaluateAsync(id)
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "evaluation started", dto.SubmissionStatusResponse{
			SubmissionID: id,
			Status:       "processing",
		})
	}

	evaluation, err := h.evaluations.Evaluate(c.Context(), id)
	if err != nil {
		return h.evaluationError(c, id, err)
	}

	return utils.SendSuccess(c, "submission evaluated", evaluation)
}

func (h *EvaluationHandler) getEvaluation(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	evaluation, err := h.evaluations.GetEvaluation(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEvaluationNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to load evaluation")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load evaluation")
	}

	return utils.SendSuccess(c, "evaluation found", evaluation)
}

func (h *EvaluationHandler) listJobs(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	jobs, err := h.evaluations.ListJobs(c.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to list evaluation jobs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list evaluation jobs")
	}

	return utils.SendSuccess(c, "evaluation jobs", jobs)
}

// status serves the live pipeline status, preferring the cached broadcast
// value over a database read so polling frontends stay cheap.
func (h *EvaluationHandler) status(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if cached := h.notifier.CachedStatus(c.Context(), id); cached != "" {
		return utils.SendSuccess(c, "submission status", dto.SubmissionStatusResponse{
			SubmissionID: id,
			Status:       cached,
		})
	}

	submission, err := h.submissions.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to load submission status")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load submission status")
	}

	return utils.SendSuccess(c, "submission status", dto.SubmissionStatusResponse{
		SubmissionID: id,
		Status:       submission.Status,
	})
}

func (h *EvaluationHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.ReviewEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	evaluation, err := h.evaluations.Review(c.Context(), id, payload, userIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrEvaluationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
		case errors.Is(err, service.ErrScoreExceedsTotal):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				return utils.SendValidationError(c, validationErrors)
			}
			h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to review evaluation")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to review evaluation")
		}
	}

	return utils.SendSuccess(c, "evaluation reviewed", evaluation)
}

func (h *EvaluationHandler) sweep(c *fiber.Ctx) error {
	var payload dto.SweepRequest
	if err := c.BodyParser(&payload); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	succeeded := h.evaluations.EvaluatePending(c.Context(), payload.Limit)

	return utils.SendSuccess(c, "sweep completed", dto.SweepResponse{Succeeded: succeeded})
}

func (h *EvaluationHandler) evaluationError(c *fiber.Ctx, id uint, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrSubmissionNotReady):
		return utils.SendError(c, fiber.StatusConflict, "submission is not pending evaluation")
	case errors.Is(err, service.ErrNoActiveModel), errors.Is(err, service.ErrNoPromptTemplate), errors.Is(err, service.ErrNoProviderClient):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrEmptyResponse):
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	default:
		var upstream *ai.UpstreamStatusError
		if errors.As(err, &upstream) {
			h.logger.Error().Err(err).Uint("submission_id", id).Msg("inference backend rejected the request")
			return utils.SendError(c, fiber.StatusBadGateway, "inference backend error")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("evaluation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "evaluation failed")
	}
}
