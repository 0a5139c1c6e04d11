// -----------------------------------------------------------------------
// OpenAI Provider - Chat completions and vision via the OpenAI API
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
)

const ProviderOpenAI = "openai"

// OpenAIProvider implements ILLMProvider using the OpenAI API
type OpenAIProvider struct {
	config *common.OpenAIConfig
	client *openai.Client
	logger arbor.ILogger
}

var _ interfaces.ILLMProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI provider. A missing API key is
// not an error: the provider reports itself unavailable instead.
func NewOpenAIProvider(config *common.OpenAIConfig, logger arbor.ILogger) *OpenAIProvider {
	p := &OpenAIProvider{
		config: config,
		logger: logger,
	}
	if config.APIKey != "" {
		p.client = openai.NewClient(config.APIKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Available() bool {
	return p.client != nil
}

func (p *OpenAIProvider) SupportedModels() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"}
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return p.complete(ctx, req, p.resolveModel(req.Model, p.config.Model))
}

// AnalyzeImage sends image parts alongside the text using the vision
// model. Images ride as base64 data URLs.
func (p *OpenAIProvider) AnalyzeImage(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	model := p.resolveModel(req.Model, p.config.VisionModel)
	if model == "" {
		model = p.resolveModel("", p.config.Model)
	}
	return p.complete(ctx, req, model)
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return common.NewError(common.KindProviderUnavailable, "openai provider is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) complete(ctx context.Context, req interfaces.LLMRequest, model string) (*interfaces.LLMResponse, error) {
	if p.client == nil {
		return nil, common.NewError(common.KindProviderUnavailable, "openai provider is not configured")
	}

	messages, err := convertMessagesToOpenAI(req.Messages)
	if err != nil {
		return nil, err
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = float64(p.config.Temperature)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(temp),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	start := time.Now()
	resp, apiErr := p.client.CreateChatCompletion(ctx, chatReq)
	if apiErr != nil {
		if IsAuthError(apiErr) {
			return nil, common.WrapError(common.KindInvalidAPIKey, apiErr, "openai rejected the API key")
		}
		if IsRateLimitError(apiErr) {
			p.logger.Warn().
				Str("model", model).
				Dur("retry_after", ExtractRetryDelay(apiErr)).
				Err(apiErr).
				Msg("OpenAI rate limit hit")
			return nil, common.WrapError(common.KindRateLimitExceeded, apiErr, "openai rate limit exceeded")
		}
		return nil, common.WrapError(common.KindProviderUnavailable, apiErr, "openai API call failed")
	}

	if len(resp.Choices) == 0 {
		return nil, common.NewError(common.KindProviderUnavailable, "empty response from openai")
	}

	return &interfaces.LLMResponse{
		Text:           resp.Choices[0].Message.Content,
		Model:          model,
		Provider:       ProviderOpenAI,
		PromptTokens:   resp.Usage.PromptTokens,
		ResponseTokens: resp.Usage.CompletionTokens,
		Cost:           EstimateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		Duration:       time.Since(start),
	}, nil
}

func (p *OpenAIProvider) resolveModel(requested, configured string) string {
	if requested != "" {
		return requested
	}
	if configured != "" {
		return configured
	}
	return "gpt-4o-mini"
}

// convertMessagesToOpenAI maps provider-agnostic messages onto the
// OpenAI chat format. Image parts become base64 data URLs.
func convertMessagesToOpenAI(messages []interfaces.LLMMessage) ([]openai.ChatCompletionMessage, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}

		if len(msg.ImageData) > 0 {
			mime := msg.ImageMIME
			if mime == "" {
				mime = "image/png"
			}
			dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(msg.ImageData))
			out = append(out, openai.ChatCompletionMessage{
				Role: role,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: msg.Text},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			})
			continue
		}

		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text,
		})
	}
	return out, nil
}
