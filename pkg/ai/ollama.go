package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalio",
		Subsystem: "ai",
		Name:      "inference_duration_seconds",
		Help:      "Duration of inference requests",
	}, []string{"provider", "model"})

	inferenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalio",
		Subsystem: "ai",
		Name:      "inference_failures_total",
		Help:      "Number of failed inference requests",
	}, []string{"provider", "model"})
)

// DefaultTimeout bounds one inference request so a stalled backend cannot
// block an evaluation attempt indefinitely.
const DefaultTimeout = 120 * time.Second

const maxErrorBodyBytes = 4096

// UpstreamStatusError reports a non-2xx reply from the inference backend.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("inference backend returned status %d: %s", e.StatusCode, e.Body)
}

// OllamaConfig defines configuration options for the Ollama client.
type OllamaConfig struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

// OllamaClient implements Client against an Ollama-style generate API.
type OllamaClient struct {
	httpClient *http.Client
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewOllamaClient builds a new client using the provided configuration.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OllamaClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tracer:     otel.Tracer("github.com/evalio/evalio-api/pkg/ai/ollama"),
		logger:     logger.With().Str("component", "ollama_client").Logger(),
	}
}

type ollamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
	Format      string  `json:"format"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Usage    struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate posts the prompt to the configured endpoint and returns the raw
// output. It makes a single attempt with no retry.
func (c *OllamaClient) Generate(parent context.Context, req GenerateRequest) (RawResponse, error) {
	ctx, span := c.tracer.Start(parent, "ollama.generate", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.String("endpoint", req.EndpointURL),
	))
	defer span.End()

	body, err := json.Marshal(ollamaRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
		Format:      "json",
	})
	if err != nil {
		return RawResponse{}, fmt.Errorf("encode inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return RawResponse{}, fmt.Errorf("build inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	inferenceDuration.WithLabelValues("ollama", req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		inferenceFailures.WithLabelValues("ollama", req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawResponse{}, fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		err := &UpstreamStatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
		inferenceFailures.WithLabelValues("ollama", req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawResponse{}, err
	}

	var payload ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		inferenceFailures.WithLabelValues("ollama", req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawResponse{}, fmt.Errorf("decode inference response: %w", err)
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("total_tokens", payload.Usage.TotalTokens).
		Msg("inference completed")

	return RawResponse{
		Response:    payload.Response,
		TotalTokens: payload.Usage.TotalTokens,
	}, nil
}
