package models

import (
	"time"
)

// RAGASScores are LLM-judged quality dimensions for a generated summary
type RAGASScores struct {
	Faithfulness     float64 `json:"faithfulness"`
	AnswerRelevancy  float64 `json:"answer_relevancy"`
	ContextPrecision float64 `json:"context_precision"`
	ContextRecall    float64 `json:"context_recall"`
}

// CustomScores are deterministic metrics computed from the summary
// against the document graph, no LLM involved
type CustomScores struct {
	Grounding         float64 `json:"grounding"`
	Coverage          float64 `json:"coverage"`
	GraphUtilization  float64 `json:"graph_utilization"`
	TableAccuracy     float64 `json:"table_accuracy"`
	ReferenceAccuracy float64 `json:"reference_accuracy"`
}

// EvaluationThresholds are the minimum scores a summary must meet to
// pass without review: the weighted overall score plus three floor
// dimensions
type EvaluationThresholds struct {
	Overall      float64 `json:"overall"`
	Faithfulness float64 `json:"faithfulness"`
	Grounding    float64 `json:"grounding"`
	Coverage     float64 `json:"coverage"`
}

// DefaultThresholds returns the standard pass thresholds
func DefaultThresholds() EvaluationThresholds {
	return EvaluationThresholds{
		Overall:      0.7,
		Faithfulness: 0.8,
		Grounding:    0.8,
		Coverage:     0.6,
	}
}

// EvaluationResult is the full scorecard for one summary
type EvaluationResult struct {
	ID           string        `json:"id" badgerhold:"key"`
	DocumentID   string        `json:"document_id" badgerhold:"index"`
	SummaryID    string        `json:"summary_id"`
	RAGAS        RAGASScores   `json:"ragas"`
	Custom       CustomScores  `json:"custom"`
	OverallScore float64       `json:"overall_score"`
	Passed       bool          `json:"passed"`
	NeedsReview  bool          `json:"needs_review"`
	ReviewReason string        `json:"review_reason,omitempty"`
	JudgeModel   string        `json:"judge_model,omitempty"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}
