package service

import (
	"context"
	"errors"
)

// GenerateRequest is one single-shot completion call
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator is the LLM collaborator used by the intent and SQL fallbacks.
// Implementations must honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ErrNoGenerator is returned by fallbacks when no LLM is configured
var ErrNoGenerator = errors.New("no LLM generator configured")

// LLMOptions are shared by every LLM-backed stage
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func (o LLMOptions) withDefaults() LLMOptions {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 512
	}
	if o.Temperature < 0 {
		o.Temperature = 0
	}
	return o
}
