package ai

import "context"

// GenerateRequest carries one fully-formatted prompt to an inference backend.
type GenerateRequest struct {
	EndpointURL string
	Model       string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// RawResponse is the untouched backend output for one request.
type RawResponse struct {
	Response    string
	TotalTokens int
}

// Client issues a single inference request. Implementations make exactly one
// attempt; retry policy belongs to the caller.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (RawResponse, error)
}
