package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/prompts"
)

type fakeManager struct {
	requests  []interfaces.LLMRequest
	responses []*interfaces.LLMResponse
	errs      []error
	calls     int
}

func (m *fakeManager) GenerateText(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	m.requests = append(m.requests, req)
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return &interfaces.LLMResponse{Text: "summary text", Model: "test-model", Provider: "test", PromptTokens: 100, ResponseTokens: 50, Cost: 0.001}, nil
}

func (m *fakeManager) AnalyzeImage(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return m.GenerateText(ctx, req)
}

func (m *fakeManager) Providers() []interfaces.ILLMProvider { return nil }

func (m *fakeManager) ActiveProvider() (interfaces.ILLMProvider, error) { return nil, nil }

func summarizerTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode(models.Node{ID: "doc", Type: models.NodeTypeDocument, Content: "Report"}))
	require.NoError(t, g.AddNode(models.Node{ID: "page-1", Type: models.NodeTypeMetadata, Content: "Page 1", Position: models.Position{Page: 1}}))
	require.NoError(t, g.AddNode(models.Node{ID: "p1-0", Type: models.NodeTypeParagraph, Content: "Revenue grew 12% this year.", Position: models.Position{Page: 1}, Confidence: 0.9}))
	require.NoError(t, g.AddEdge(models.Edge{From: "doc", To: "page-1", Type: models.EdgeTypeContains, Weight: 1.0}))
	require.NoError(t, g.AddEdge(models.Edge{From: "page-1", To: "p1-0", Type: models.EdgeTypeContains, Weight: 1.0}))
	return g
}

func newTestService(mgr *fakeManager) *Service {
	logger := common.GetLogger()
	return NewService(mgr, prompts.NewService(logger), logger)
}

func TestSummarize_Success(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	result, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type:      models.SummaryTypeDetailed,
		MaxLength: 300,
	})
	require.NoError(t, err)

	assert.True(t, len(result.ID) > 4 && result.ID[:4] == "sum_")
	assert.Equal(t, "doc_1", result.DocumentID)
	assert.Equal(t, models.SummaryTypeDetailed, result.Type)
	assert.Equal(t, "summary text", result.Content)
	assert.Equal(t, "test", result.Provider)
	assert.Equal(t, 100, result.PromptTokens)
	assert.Equal(t, 50, result.ResponseTokens)
	assert.Greater(t, result.NodesUsed, 0)
	assert.False(t, result.CreatedAt.IsZero())

	require.Len(t, mgr.requests, 1)
	req := mgr.requests[0]
	// Purpose is left for the manager to infer from the prompt
	assert.Empty(t, req.Purpose)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Contains(t, req.Messages[1].Text, "Revenue grew 12%")
}

func TestSummarize_InvalidType(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	_, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type: models.SummaryType("comprehensive"),
	})
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidOption, common.KindOf(err))
	assert.Zero(t, mgr.calls, "provider must not be called for invalid options")
}

func TestSummarize_InvalidStyle(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	_, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type:  models.SummaryTypeDetailed,
		Style: models.SummaryStyle("sarcastic"),
	})
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidOption, common.KindOf(err))
	assert.Zero(t, mgr.calls)
}

func TestSummarize_StyleAndFocusReachThePrompt(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	_, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type:    models.SummaryTypeDetailed,
		Style:   models.StyleCasual,
		Focus:   []string{"revenue"},
		Exclude: []string{"staffing"},
	})
	require.NoError(t, err)
	require.Len(t, mgr.requests, 1)
	req := mgr.requests[0]
	assert.Contains(t, req.Messages[0].Text, "conversational")
	assert.Contains(t, req.Messages[1].Text, "Focus in particular on: revenue.")
	assert.Contains(t, req.Messages[1].Text, "Do not cover: staffing.")
}

func TestSummarize_MaxLengthOutOfRange(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	_, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type:      models.SummaryTypeBulletPoints,
		MaxLength: 10, // below the 50-word floor
	})
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidOption, common.KindOf(err))
}

func TestSummarize_ExplicitModelForwarded(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	_, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type:  models.SummaryTypeNarrative,
		Model: "gpt-4o",
	})
	require.NoError(t, err)
	require.Len(t, mgr.requests, 1)
	assert.Equal(t, "gpt-4o", mgr.requests[0].Model)
}

func TestSummarize_ProviderErrorWrapped(t *testing.T) {
	mgr := &fakeManager{errs: []error{common.NewError(common.KindNoProvidersAvailable, "no providers configured")}}
	svc := newTestService(mgr)

	_, err := svc.Summarize(context.Background(), "doc_1", summarizerTestGraph(t), models.SummaryOptions{
		Type: models.SummaryTypeDetailed,
	})
	require.Error(t, err)
	assert.Equal(t, common.KindNoProvidersAvailable, common.KindOf(err))
}

func TestSummarizeMultiple_StopsAtFirstFailure(t *testing.T) {
	mgr := &fakeManager{errs: []error{nil, errors.New("provider down")}}
	svc := newTestService(mgr)

	results, err := svc.SummarizeMultiple(context.Background(), "doc_1", summarizerTestGraph(t), []models.SummaryOptions{
		{Type: models.SummaryTypeDetailed},
		{Type: models.SummaryTypeExecutive},
		{Type: models.SummaryTypeNarrative},
	})
	require.Error(t, err)
	assert.Len(t, results, 1, "first summary completed before the failure")
	assert.Equal(t, 2, mgr.calls, "third summary must not be attempted")
}

func TestSummarizeMultiple_AllSucceed(t *testing.T) {
	mgr := &fakeManager{}
	svc := newTestService(mgr)

	results, err := svc.SummarizeMultiple(context.Background(), "doc_1", summarizerTestGraph(t), []models.SummaryOptions{
		{Type: models.SummaryTypeDetailed},
		{Type: models.SummaryTypeNarrative},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.SummaryTypeDetailed, results[0].Type)
	assert.Equal(t, models.SummaryTypeNarrative, results[1].Type)
}
