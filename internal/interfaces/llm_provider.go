package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/precis/internal/models"
)

// LLMMessage is one turn of a conversation sent to a provider.
// Role is "system", "user" or "assistant".
type LLMMessage struct {
	Role      string
	Text      string
	ImageData []byte
	ImageMIME string
}

// LLMRequest is a provider-agnostic generation request
type LLMRequest struct {
	Messages    []LLMMessage
	Model       string
	MaxTokens   int
	Temperature float64
	Purpose     models.TaskPurpose
}

// LLMResponse is the normalized result of a provider call
type LLMResponse struct {
	Text           string
	Model          string
	Provider       string
	PromptTokens   int
	ResponseTokens int
	Cost           float64
	Duration       time.Duration
}

// ILLMProvider is one concrete LLM backend. Available must be cheap:
// it reports configuration (key present), not live reachability.
type ILLMProvider interface {
	Name() string
	Available() bool
	SupportedModels() []string
	GenerateText(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	AnalyzeImage(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	HealthCheck(ctx context.Context) error
}

// ILLMManager selects among providers and applies fallback policy
type ILLMManager interface {
	GenerateText(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	AnalyzeImage(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	Providers() []ILLMProvider
	ActiveProvider() (ILLMProvider, error)
}
