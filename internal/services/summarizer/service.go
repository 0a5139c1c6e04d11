// -----------------------------------------------------------------------
// Summarizer Service - Generate graph-grounded summaries through the
// LLM manager
// -----------------------------------------------------------------------

package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/prompts"
)

// Service produces summaries for a document graph
type Service struct {
	llm      interfaces.ILLMManager
	prompts  *prompts.Service
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a summarizer service
func NewService(llm interfaces.ILLMManager, promptSvc *prompts.Service, logger arbor.ILogger) *Service {
	return &Service{
		llm:      llm,
		prompts:  promptSvc,
		validate: validator.New(),
		logger:   logger,
	}
}

// Summarize generates one summary for the graph according to options
func (s *Service) Summarize(ctx context.Context, documentID string, g *graph.Graph, opts models.SummaryOptions) (*models.SummaryResult, error) {
	if err := s.validate.Struct(opts); err != nil {
		return nil, common.WrapError(common.KindInvalidOption, err, "invalid summary options")
	}

	prompt, err := s.prompts.Build(g, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s prompt: %w", opts.Type, err)
	}

	// Purpose is left unset so the manager infers it from the prompt
	// text and size
	req := interfaces.LLMRequest{
		Messages: []interfaces.LLMMessage{
			{Role: "system", Text: prompt.System},
			{Role: "user", Text: prompt.User},
		},
		Model:       opts.Model,
		Temperature: opts.Temperature,
	}

	start := time.Now()
	resp, err := s.llm.GenerateText(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	result := &models.SummaryResult{
		ID:             "sum_" + uuid.New().String(),
		DocumentID:     documentID,
		Type:           opts.Type,
		Content:        resp.Text,
		Provider:       resp.Provider,
		Model:          resp.Model,
		NodesUsed:      prompt.NodesUsed,
		PromptTokens:   resp.PromptTokens,
		ResponseTokens: resp.ResponseTokens,
		Cost:           resp.Cost,
		Duration:       time.Since(start),
		CreatedAt:      time.Now(),
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("type", string(opts.Type)).
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Int("nodes_used", prompt.NodesUsed).
		Dur("duration", result.Duration).
		Msg("Summary generated")

	return result, nil
}

// SummarizeMultiple generates summaries sequentially, stopping at the
// first failure. Completed summaries are returned alongside the error.
func (s *Service) SummarizeMultiple(ctx context.Context, documentID string, g *graph.Graph, optsList []models.SummaryOptions) ([]models.SummaryResult, error) {
	results := make([]models.SummaryResult, 0, len(optsList))
	for _, opts := range optsList {
		result, err := s.Summarize(ctx, documentID, g, opts)
		if err != nil {
			return results, fmt.Errorf("summary %d of %d (%s) failed: %w", len(results)+1, len(optsList), opts.Type, err)
		}
		results = append(results, *result)
	}
	return results, nil
}
