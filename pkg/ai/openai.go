package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey string
	Logger zerolog.Logger
}

// OpenAIClient implements Client against chat-completion endpoints. Several
// local runners expose the OpenAI wire format, so the endpoint URL still comes
// from the model registry rather than the SDK default.
type OpenAIClient struct {
	apiKey string
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIClient{
		apiKey: cfg.APIKey,
		tracer: otel.Tracer("github.com/evalio/evalio-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_client").Logger(),
	}
}

// Generate sends one chat completion request and returns the first choice.
func (c *OpenAIClient) Generate(parent context.Context, req GenerateRequest) (RawResponse, error) {
	ctx, span := c.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", req.Model),
	))
	defer span.End()

	config := openai.DefaultConfig(c.apiKey)
	if req.EndpointURL != "" {
		config.BaseURL = strings.TrimSuffix(req.EndpointURL, "/chat/completions")
	}
	client := openai.NewClientWithConfig(config)

	request := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, request)
	inferenceDuration.WithLabelValues("openai", req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		inferenceFailures.WithLabelValues("openai", req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawResponse{}, fmt.Errorf("openai generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		inferenceFailures.WithLabelValues("openai", req.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RawResponse{}, err
	}

	return RawResponse{
		Response:    strings.TrimSpace(resp.Choices[0].Message.Content),
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}
