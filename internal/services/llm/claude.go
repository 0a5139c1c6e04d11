// -----------------------------------------------------------------------
// Claude Provider - Messages API via the Anthropic SDK
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
)

const ProviderClaude = "claude"

// ClaudeProvider implements ILLMProvider using the Anthropic API
type ClaudeProvider struct {
	config *common.ClaudeConfig
	client *anthropic.Client
	logger arbor.ILogger
}

var _ interfaces.ILLMProvider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a Claude provider. A missing API key is not
// an error: the provider reports itself unavailable instead.
func NewClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) *ClaudeProvider {
	p := &ClaudeProvider{
		config: config,
		logger: logger,
	}
	if config.APIKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(config.APIKey))
		p.client = &client
	}
	return p
}

func (p *ClaudeProvider) Name() string {
	return ProviderClaude
}

func (p *ClaudeProvider) Available() bool {
	return p.client != nil
}

func (p *ClaudeProvider) SupportedModels() []string {
	return []string{"claude-sonnet-4-20250514", "claude-3-5-haiku-latest"}
}

func (p *ClaudeProvider) GenerateText(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return p.generate(ctx, req)
}

func (p *ClaudeProvider) AnalyzeImage(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return p.generate(ctx, req)
}

func (p *ClaudeProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return common.NewError(common.KindProviderUnavailable, "claude provider is not configured")
	}
	return nil
}

func (p *ClaudeProvider) generate(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	if p.client == nil {
		return nil, common.NewError(common.KindProviderUnavailable, "claude provider is not configured")
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	claudeMessages, systemText, err := convertMessagesToClaude(req.Messages)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = float64(p.config.Temperature)
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	start := time.Now()
	resp, apiErr := p.client.Messages.New(ctx, params)
	if apiErr != nil {
		if IsAuthError(apiErr) {
			return nil, common.WrapError(common.KindInvalidAPIKey, apiErr, "claude rejected the API key")
		}
		if IsRateLimitError(apiErr) {
			p.logger.Warn().
				Str("model", model).
				Dur("retry_after", ExtractRetryDelay(apiErr)).
				Err(apiErr).
				Msg("Claude rate limit hit")
			return nil, common.WrapError(common.KindRateLimitExceeded, apiErr, "claude rate limit exceeded")
		}
		return nil, common.WrapError(common.KindProviderUnavailable, apiErr, "claude API call failed")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, common.NewError(common.KindProviderUnavailable, "no text in claude response")
	}

	promptTokens := int(resp.Usage.InputTokens)
	responseTokens := int(resp.Usage.OutputTokens)

	return &interfaces.LLMResponse{
		Text:           text.String(),
		Model:          model,
		Provider:       ProviderClaude,
		PromptTokens:   promptTokens,
		ResponseTokens: responseTokens,
		Cost:           EstimateCost(model, promptTokens, responseTokens),
		Duration:       time.Since(start),
	}, nil
}

// convertMessagesToClaude maps provider-agnostic messages onto the
// Anthropic Messages format. System messages are lifted out for the
// System parameter; image parts ride as base64 blocks.
func convertMessagesToClaude(messages []interfaces.LLMMessage) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Text
			}
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if msg.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
		}
		if len(msg.ImageData) > 0 {
			mime := msg.ImageMIME
			if mime == "" {
				mime = "image/png"
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(msg.ImageData)))
		}
		if len(blocks) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(blocks...))
		} else {
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(blocks...))
		}
	}

	return claudeMessages, systemText, nil
}
