// -----------------------------------------------------------------------
// LLM Manager - Provider selection, fallback and quota-aware routing
// -----------------------------------------------------------------------

package llm

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
)

// ModelSelector routes a task purpose to a concrete model under daily
// quota constraints. Implemented by the quota manager.
type ModelSelector interface {
	SelectModel(purpose models.TaskPurpose, estimatedTokens int) (string, error)
	RecordUsage(model string, tokens int)
	Tracks(model string) bool
}

// Manager implements ILLMManager. Provider order for auto selection is
// fixed: openai, then gemini, then claude.
type Manager struct {
	providers     []interfaces.ILLMProvider
	preferred     string
	fallback      bool
	selector      ModelSelector
	textTimeout   time.Duration
	visionTimeout time.Duration
	logger        arbor.ILogger
}

var _ interfaces.ILLMManager = (*Manager)(nil)

// NewManager creates an LLM manager over the given providers. selector
// may be nil when quota routing is disabled.
func NewManager(providers []interfaces.ILLMProvider, config *common.LLMConfig, selector ModelSelector, logger arbor.ILogger) *Manager {
	preferred := string(config.PreferredProvider)
	if preferred == "" {
		preferred = string(common.LLMProviderAuto)
	}
	return &Manager{
		providers:     providers,
		preferred:     preferred,
		fallback:      config.FallbackEnabled,
		selector:      selector,
		textTimeout:   config.TextCallTimeout(),
		visionTimeout: config.VisionCallTimeout(),
		logger:        logger,
	}
}

// Providers returns all registered providers
func (m *Manager) Providers() []interfaces.ILLMProvider {
	return m.providers
}

// ActiveProvider resolves the provider that would serve the next
// request. An explicitly preferred provider that is unavailable falls
// through to the first available one when fallback is enabled.
func (m *Manager) ActiveProvider() (interfaces.ILLMProvider, error) {
	if m.preferred != string(common.LLMProviderAuto) {
		for _, p := range m.providers {
			if p.Name() == m.preferred && p.Available() {
				return p, nil
			}
		}
		if !m.fallback {
			return nil, common.NewError(common.KindNoProvidersAvailable, "preferred provider %s is not available", m.preferred)
		}
		m.logger.Warn().
			Str("preferred", m.preferred).
			Msg("Preferred provider unavailable, using first available")
	}

	for _, p := range m.providers {
		if p.Available() {
			return p, nil
		}
	}
	return nil, common.NewError(common.KindNoProvidersAvailable, "no LLM providers are configured")
}

// GenerateText routes a text request through provider selection,
// quota-aware model routing and the fallback policy. Each call carries
// the configured text deadline.
func (m *Manager) GenerateText(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, m.textTimeout)
	defer cancel()
	return m.dispatch(ctx, req, func(p interfaces.ILLMProvider, r interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
		return p.GenerateText(ctx, r)
	})
}

// AnalyzeImage routes a vision request the same way as text, under the
// longer vision deadline
func (m *Manager) AnalyzeImage(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, m.visionTimeout)
	defer cancel()
	return m.dispatch(ctx, req, func(p interfaces.ILLMProvider, r interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
		return p.AnalyzeImage(ctx, r)
	})
}

type providerCall func(interfaces.ILLMProvider, interfaces.LLMRequest) (*interfaces.LLMResponse, error)

func (m *Manager) dispatch(ctx context.Context, req interfaces.LLMRequest, call providerCall) (*interfaces.LLMResponse, error) {
	if req.Purpose == "" {
		req.Purpose = InferPurpose(req)
	}

	primary, err := m.ActiveProvider()
	if err != nil {
		return nil, err
	}

	resp, err := m.callProvider(primary, req, call)
	if err == nil {
		return resp, nil
	}

	// Cross-provider retry runs at most once, only when the caller pinned
	// a provider (auto already resolved to the first available one), and
	// never masks quota or key problems
	explicit := m.preferred != string(common.LLMProviderAuto)
	kind := common.KindOf(err)
	if !m.fallback || !explicit || kind == common.KindQuotaExhausted || kind == common.KindInvalidAPIKey {
		return nil, err
	}

	for _, p := range m.providers {
		if p.Name() == primary.Name() || !p.Available() {
			continue
		}
		m.logger.Warn().
			Str("failed_provider", primary.Name()).
			Str("fallback_provider", p.Name()).
			Err(err).
			Msg("Primary provider failed, trying fallback")

		// The primary's model choice does not transfer across providers
		fallbackReq := req
		fallbackReq.Model = ""
		return m.callProvider(p, fallbackReq, call)
	}

	return nil, err
}

// callProvider applies quota routing for the provider's models, makes
// the call and records usage
func (m *Manager) callProvider(p interfaces.ILLMProvider, req interfaces.LLMRequest, call providerCall) (*interfaces.LLMResponse, error) {
	if req.Model == "" && m.selector != nil && m.providerUsesQuota(p) {
		model, err := m.selector.SelectModel(req.Purpose, estimatePromptTokens(req.Messages))
		if err != nil {
			return nil, err
		}
		req.Model = model
	}

	resp, err := call(p, req)
	if err != nil {
		return nil, err
	}

	if m.selector != nil && m.selector.Tracks(resp.Model) {
		m.selector.RecordUsage(resp.Model, resp.PromptTokens+resp.ResponseTokens)
	}
	return resp, nil
}

// providerUsesQuota reports whether any of the provider's models are
// under quota tracking
func (m *Manager) providerUsesQuota(p interfaces.ILLMProvider) bool {
	for _, model := range p.SupportedModels() {
		if m.selector.Tracks(model) {
			return true
		}
	}
	return false
}

// inferPurposeSizeThresholds separate bulk from quick summaries and
// pick an analysis depth when the text gives no other signal
const (
	bulkTextThreshold     = 10_000
	detailedTextThreshold = 20_000
	quickTextThreshold    = 5_000
)

// InferPurpose guesses the task purpose from the request text and size
// when the caller did not set one
func InferPurpose(req interfaces.LLMRequest) models.TaskPurpose {
	for _, msg := range req.Messages {
		if len(msg.ImageData) > 0 {
			return models.PurposeVisionAnalysis
		}
	}

	var text strings.Builder
	for _, msg := range req.Messages {
		text.WriteString(strings.ToLower(msg.Text))
		text.WriteByte(' ')
	}
	joined := text.String()
	size := len(joined)

	switch {
	case strings.Contains(joined, "summarize") || strings.Contains(joined, "summary"):
		if size > bulkTextThreshold {
			return models.PurposeBulkProcessing
		}
		return models.PurposeQuickSummary
	case strings.Contains(joined, "analyze") || strings.Contains(joined, "analysis"):
		if strings.Contains(joined, "detailed") || strings.Contains(joined, "comprehensive") {
			return models.PurposeDetailedAnalysis
		}
		return models.PurposeStandardAnalysis
	case strings.Contains(joined, "critical") || strings.Contains(joined, "important"):
		return models.PurposeCriticalTask
	case size > detailedTextThreshold:
		return models.PurposeDetailedAnalysis
	case size < quickTextThreshold:
		return models.PurposeQuickSummary
	default:
		return models.PurposeStandardAnalysis
	}
}
