// -----------------------------------------------------------------------
// Gemini Provider - Text generation and vision via the Google genai SDK
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
)

const ProviderGemini = "gemini"

// GeminiProvider implements ILLMProvider using the Google genai SDK
type GeminiProvider struct {
	config *common.GeminiConfig
	client *genai.Client
	logger arbor.ILogger
}

var _ interfaces.ILLMProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider. A missing API key is not
// an error: the provider reports itself unavailable instead.
func NewGeminiProvider(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) *GeminiProvider {
	p := &GeminiProvider{
		config: config,
		logger: logger,
	}

	if config.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  config.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client, provider disabled")
		} else {
			p.client = client
		}
	}

	return p
}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

func (p *GeminiProvider) Available() bool {
	return p.client != nil
}

func (p *GeminiProvider) SupportedModels() []string {
	return []string{
		"gemini-2.0-flash-lite",
		"gemini-2.0-flash-exp",
		"gemini-2.0-flash",
		"gemini-1.5-pro",
		"gemini-exp-1206",
	}
}

func (p *GeminiProvider) GenerateText(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return p.generate(ctx, req)
}

func (p *GeminiProvider) AnalyzeImage(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return p.generate(ctx, req)
}

func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return common.NewError(common.KindProviderUnavailable, "gemini provider is not configured")
	}
	return nil
}

func (p *GeminiProvider) generate(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	if p.client == nil {
		return nil, common.NewError(common.KindProviderUnavailable, "gemini provider is not configured")
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	contents, systemText, err := convertMessagesToGemini(req.Messages)
	if err != nil {
		return nil, err
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = float64(p.config.Temperature)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temp)),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	start := time.Now()
	resp, apiErr := p.client.Models.GenerateContent(ctx, model, contents, config)
	if apiErr != nil {
		if IsAuthError(apiErr) {
			return nil, common.WrapError(common.KindInvalidAPIKey, apiErr, "gemini rejected the API key")
		}
		if IsRateLimitError(apiErr) {
			// Surfaced to the caller to decide on retry; the API-suggested
			// delay is logged for diagnostics
			p.logger.Warn().
				Str("model", model).
				Dur("retry_after", ExtractRetryDelay(apiErr)).
				Err(apiErr).
				Msg("Gemini rate limit hit")
			return nil, common.WrapError(common.KindRateLimitExceeded, apiErr, "gemini rate limit exceeded")
		}
		return nil, common.WrapError(common.KindProviderUnavailable, apiErr, "gemini API call failed")
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, common.NewError(common.KindProviderUnavailable, "empty response from gemini")
	}

	responseText := resp.Text()
	if responseText == "" {
		return nil, common.NewError(common.KindProviderUnavailable, "empty text in gemini response")
	}

	out := &interfaces.LLMResponse{
		Text:     responseText,
		Model:    model,
		Provider: ProviderGemini,
		Duration: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.ResponseTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	} else {
		out.PromptTokens = estimatePromptTokens(req.Messages)
		out.ResponseTokens = EstimateTokens(responseText)
	}
	out.Cost = EstimateCost(model, out.PromptTokens, out.ResponseTokens)

	return out, nil
}

// convertMessagesToGemini maps provider-agnostic messages onto Gemini
// Content format. System messages become the system instruction; image
// parts ride as inline bytes.
func convertMessagesToGemini(messages []interfaces.LLMMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Text
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}

		parts := []*genai.Part{genai.NewPartFromText(msg.Text)}
		if len(msg.ImageData) > 0 {
			mime := msg.ImageMIME
			if mime == "" {
				mime = "image/png"
			}
			parts = append(parts, genai.NewPartFromBytes(msg.ImageData, mime))
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: parts,
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("at least one non-system message is required")
	}

	return contents, systemText, nil
}

func estimatePromptTokens(messages []interfaces.LLMMessage) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Text)
	}
	return total
}
