package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evalio/evalio-api/internal/dto"
	"github.com/evalio/evalio-api/internal/handler"
	"github.com/evalio/evalio-api/internal/models"
	"github.com/evalio/evalio-api/internal/service"
)

type mockEvaluationService struct {
	evaluateErr    error
	evaluation     dto.EvaluationResponse
	jobs           []dto.EvaluationJobResponse
	reviewed       *dto.ReviewEvaluationRequest
	reviewerID     uint
	asyncRequested []uint
	sweepLimit     int
	sweepSucceeded int
}

func (m *mockEvaluationService) Evaluate(_ context.Context, submissionID uint) (dto.EvaluationResponse, error) {
	if m.evaluateErr != nil {
		return dto.EvaluationResponse{}, m.evaluateErr
	}
	return m.evaluation, nil
}

func (m *mockEvaluationService) EvaluateAsync(submissionID uint) {
	m.asyncRequested = append(m.asyncRequested, submissionID)
}

func (m *mockEvaluationService) EvaluatePending(_ context.Context, limit int) int {
	m.sweepLimit = limit
	return m.sweepSucceeded
}

func (m *mockEvaluationService) GetEvaluation(_ context.Context, submissionID uint) (dto.EvaluationResponse, error) {
	if m.evaluateErr != nil {
		return dto.EvaluationResponse{}, m.evaluateErr
	}
	return m.evaluation, nil
}

func (m *mockEvaluationService) ListJobs(_ context.Context, submissionID uint) ([]dto.EvaluationJobResponse, error) {
	return m.jobs, nil
}

func (m *mockEvaluationService) Review(_ context.Context, submissionID uint, payload dto.ReviewEvaluationRequest, teacherID uint) (dto.EvaluationResponse, error) {
	if m.evaluateErr != nil {
		return dto.EvaluationResponse{}, m.evaluateErr
	}
	m.reviewed = &payload
	m.reviewerID = teacherID
	return m.evaluation, nil
}

type mockSubmissionRepo struct {
	submission models.Submission
	err        error
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	return m.submission, m.err
}

func (m *mockSubmissionRepo) ListPending(_ context.Context, limit int) ([]models.Submission, error) {
	return nil, nil
}

func (m *mockSubmissionRepo) ClaimPending(_ context.Context, id uint) (bool, error) {
	return false, nil
}

func (m *mockSubmissionRepo) MarkCompleted(_ context.Context, id uint, processedAt time.Time) error {
	return nil
}

func (m *mockSubmissionRepo) MarkError(_ context.Context, id uint) error {
	return nil
}

func newEvaluationApp(svc *mockEvaluationService, repo *mockSubmissionRepo) *fiber.App {
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	h := handler.NewEvaluationHandler(svc, repo, nil, logger)

	group := app.Group("/api/v1")
	h.Register(group)
	h.RegisterManagement(group)
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestEvaluationHandler_EvaluateSuccess(t *testing.T) {
	svc := &mockEvaluationService{evaluation: dto.EvaluationResponse{ID: 1, SubmissionID: 9, Score: 15, Percentage: 75}}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/9/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Data    dto.EvaluationResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, 15.0, response.Data.Score)
}

func TestEvaluationHandler_EvaluateAsyncReturnsAccepted(t *testing.T) {
	svc := &mockEvaluationService{}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/9/evaluate?async=true", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Equal(t, []uint{9}, svc.asyncRequested)
}

func TestEvaluationHandler_EvaluateConflict(t *testing.T) {
	svc := &mockEvaluationService{evaluateErr: service.ErrSubmissionNotReady}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/9/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestEvaluationHandler_EvaluateNoModelUnavailable(t *testing.T) {
	svc := &mockEvaluationService{evaluateErr: service.ErrNoActiveModel}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/9/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestEvaluationHandler_EvaluateInvalidID(t *testing.T) {
	app := newEvaluationApp(&mockEvaluationService{}, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/abc/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEvaluationHandler_GetEvaluationNotFound(t *testing.T) {
	svc := &mockEvaluationService{evaluateErr: service.ErrEvaluationNotFound}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/9/evaluation", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluationHandler_StatusFallsBackToDatabase(t *testing.T) {
	repo := &mockSubmissionRepo{submission: models.Submission{ID: 9, Status: models.SubmissionStatusCompleted}}
	app := newEvaluationApp(&mockEvaluationService{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/9/status", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.SubmissionStatusResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, models.SubmissionStatusCompleted, response.Data.Status)
}

func TestEvaluationHandler_StatusUnknownSubmission(t *testing.T) {
	repo := &mockSubmissionRepo{err: gorm.ErrRecordNotFound}
	app := newEvaluationApp(&mockEvaluationService{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/9/status", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluationHandler_ReviewSuccess(t *testing.T) {
	svc := &mockEvaluationService{evaluation: dto.EvaluationResponse{ID: 1, Score: 14, ReviewedByTeacher: true}}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	body, err := json.Marshal(dto.ReviewEvaluationRequest{Score: 14, Feedback: "Revu"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/submissions/9/review", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, svc.reviewed)
	require.Equal(t, 14.0, svc.reviewed.Score)
}

func TestEvaluationHandler_ReviewScoreTooHigh(t *testing.T) {
	svc := &mockEvaluationService{evaluateErr: service.ErrScoreExceedsTotal}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	body, err := json.Marshal(dto.ReviewEvaluationRequest{Score: 25, Feedback: "non"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/submissions/9/review", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEvaluationHandler_ReviewValidationDetails(t *testing.T) {
	verr := validator.New().Struct(struct {
		Feedback string `validate:"required"`
	}{})
	require.Error(t, verr)

	svc := &mockEvaluationService{evaluateErr: verr}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/submissions/9/review", bytes.NewReader([]byte(`{"score": 10}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var response struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, "validation failed", response.Message)
	require.Equal(t, "required", response.Details["Feedback"])
}

func TestEvaluationHandler_Sweep(t *testing.T) {
	svc := &mockEvaluationService{sweepSucceeded: 3}
	app := newEvaluationApp(svc, &mockSubmissionRepo{})

	body, err := json.Marshal(dto.SweepRequest{Limit: 5})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluations/sweep", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.SweepResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, 3, response.Data.Succeeded)
	require.Equal(t, 5, svc.sweepLimit)
}
