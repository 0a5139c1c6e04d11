// -----------------------------------------------------------------------
// Evaluation Service - Score generated summaries with LLM judges and
// deterministic graph metrics
// -----------------------------------------------------------------------

package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/workers"
)

// maxJudgeContextChars bounds the document excerpt shown to judges
const maxJudgeContextChars = 24_000

// reviewReasonJudgeFailure marks scorecards built from neutral scores
const reviewReasonJudgeFailure = "manual review required: evaluation judges unavailable"

// overall score weights, summing to 1.0
const (
	weightFaithfulness      = 0.25
	weightAnswerRelevancy   = 0.15
	weightContextPrecision  = 0.15
	weightContextRecall     = 0.15
	weightGrounding         = 0.15
	weightCoverage          = 0.10
	weightGraphUtilization  = 0.03
	weightTableAccuracy     = 0.01
	weightReferenceAccuracy = 0.01
)

// Service scores summaries. Evaluation is advisory: it never fails the
// pipeline, a broken judge produces a neutral scorecard flagged for
// review instead.
type Service struct {
	llm        interfaces.ILLMManager
	thresholds models.EvaluationThresholds
	logger     arbor.ILogger
}

// NewService creates an evaluation service with default thresholds
func NewService(llm interfaces.ILLMManager, logger arbor.ILogger) *Service {
	return &Service{
		llm:        llm,
		thresholds: models.DefaultThresholds(),
		logger:     logger,
	}
}

// Evaluate builds the full scorecard for one summary. The four RAGAS
// judges run in parallel; custom metrics are computed locally.
func (s *Service) Evaluate(ctx context.Context, documentID string, summary *models.SummaryResult, g *graph.Graph) *models.EvaluationResult {
	start := time.Now()
	docContext := judgeContext(g)

	ragas, judgeModel, judgesFailed := s.runJudges(ctx, summary.Content, docContext)
	custom := computeCustomScores(summary.Content, g)

	result := &models.EvaluationResult{
		ID:         "eval_" + uuid.New().String(),
		DocumentID: documentID,
		SummaryID:  summary.ID,
		RAGAS:      ragas,
		Custom:     custom,
		JudgeModel: judgeModel,
		Duration:   time.Since(start),
		CreatedAt:  time.Now(),
	}

	result.OverallScore = overallScore(ragas, custom)
	result.Passed = s.passes(result.OverallScore, ragas, custom)

	if judgesFailed {
		result.NeedsReview = true
		result.ReviewReason = reviewReasonJudgeFailure
		result.Passed = false
	} else if !result.Passed {
		result.NeedsReview = true
		result.ReviewReason = failureReason(result.OverallScore, ragas, custom, s.thresholds)
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("summary_id", summary.ID).
		Float64("overall_score", result.OverallScore).
		Bool("passed", result.Passed).
		Bool("needs_review", result.NeedsReview).
		Dur("duration", result.Duration).
		Msg("Summary evaluated")

	return result
}

// runJudges scores the four RAGAS dimensions concurrently. Any judge
// error yields a neutral score for that dimension.
func (s *Service) runJudges(ctx context.Context, summary, docContext string) (models.RAGASScores, string, bool) {
	scores := make([]float64, len(ragasDimensions))
	judgeModels := make([]string, len(ragasDimensions))
	var mu sync.Mutex

	pool := workers.NewPool(len(ragasDimensions), s.logger)
	pool.Start()
	for i, dim := range ragasDimensions {
		i, dim := i, dim
		_ = pool.Submit(func(context.Context) error {
			score, model, err := s.judgeDimension(ctx, dim, summary, docContext)
			mu.Lock()
			scores[i] = score
			judgeModels[i] = model
			mu.Unlock()
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("dimension", dim.name).
					Msg("Evaluation judge failed, scoring neutral")
				return fmt.Errorf("%s judge: %w", dim.name, err)
			}
			return nil
		})
	}
	pool.Wait()
	failures := len(pool.Errors())

	ragas := models.RAGASScores{
		Faithfulness:     scores[0],
		AnswerRelevancy:  scores[1],
		ContextPrecision: scores[2],
		ContextRecall:    scores[3],
	}

	model := ""
	for _, m := range judgeModels {
		if m != "" {
			model = m
			break
		}
	}
	return ragas, model, failures == len(ragasDimensions)
}

// passes applies the pass criterion: the weighted overall score plus
// floors on faithfulness, grounding and coverage
func (s *Service) passes(overall float64, ragas models.RAGASScores, custom models.CustomScores) bool {
	return overall >= s.thresholds.Overall &&
		ragas.Faithfulness >= s.thresholds.Faithfulness &&
		custom.Grounding >= s.thresholds.Grounding &&
		custom.Coverage >= s.thresholds.Coverage
}

func overallScore(ragas models.RAGASScores, custom models.CustomScores) float64 {
	return ragas.Faithfulness*weightFaithfulness +
		ragas.AnswerRelevancy*weightAnswerRelevancy +
		ragas.ContextPrecision*weightContextPrecision +
		ragas.ContextRecall*weightContextRecall +
		custom.Grounding*weightGrounding +
		custom.Coverage*weightCoverage +
		custom.GraphUtilization*weightGraphUtilization +
		custom.TableAccuracy*weightTableAccuracy +
		custom.ReferenceAccuracy*weightReferenceAccuracy
}

func failureReason(overall float64, ragas models.RAGASScores, custom models.CustomScores, t models.EvaluationThresholds) string {
	var failed []string
	if overall < t.Overall {
		failed = append(failed, "overall")
	}
	if ragas.Faithfulness < t.Faithfulness {
		failed = append(failed, "faithfulness")
	}
	if custom.Grounding < t.Grounding {
		failed = append(failed, "grounding")
	}
	if custom.Coverage < t.Coverage {
		failed = append(failed, "coverage")
	}
	return "below threshold: " + strings.Join(failed, ", ")
}

// judgeContext flattens the graph's text content into an excerpt for
// the judges
func judgeContext(g *graph.Graph) string {
	var b strings.Builder
	for _, n := range contentNodes(g) {
		content := n.Content
		if n.Type == models.NodeTypeTable && n.Label != "" {
			content = n.Label + "\n" + content
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n\n")
		if b.Len() > maxJudgeContextChars {
			break
		}
	}
	text := strings.TrimSpace(b.String())
	if len(text) > maxJudgeContextChars {
		text = text[:maxJudgeContextChars]
	}
	return text
}
