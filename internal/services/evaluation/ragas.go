package evaluation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
)

// judgeTemperature keeps scoring deterministic across runs
const judgeTemperature = 0.1

// judgeMaxTokens is enough for a single score, nothing more
const judgeMaxTokens = 50

// neutralScore is used when a judge fails or returns garbage
const neutralScore = 0.5

type ragasDimension struct {
	name   string
	prompt string
}

var ragasDimensions = []ragasDimension{
	{
		name: "faithfulness",
		prompt: "Rate how faithful the summary is to the source document on a scale from 0.0 to 1.0. " +
			"A score of 1.0 means every claim in the summary is supported by the document; " +
			"0.0 means the summary contradicts or invents content.",
	},
	{
		name: "answer_relevancy",
		prompt: "Rate how relevant the summary is to the document's main subject on a scale from 0.0 to 1.0. " +
			"A score of 1.0 means the summary addresses the document's central content; " +
			"0.0 means it discusses unrelated material.",
	},
	{
		name: "context_precision",
		prompt: "Rate how precisely the summary uses the document content on a scale from 0.0 to 1.0. " +
			"A score of 1.0 means the summary includes only important content with no filler; " +
			"0.0 means it is dominated by trivial detail.",
	},
	{
		name: "context_recall",
		prompt: "Rate how completely the summary covers the document's important content on a scale " +
			"from 0.0 to 1.0. A score of 1.0 means no major section or finding is missing; " +
			"0.0 means most of the document is unrepresented.",
	},
}

// scorePattern extracts the first decimal number from a judge response
var scorePattern = regexp.MustCompile(`\d*\.?\d+`)

// judgeDimension asks the LLM to score one RAGAS dimension
func (s *Service) judgeDimension(ctx context.Context, dim ragasDimension, summary, docContext string) (float64, string, error) {
	req := interfaces.LLMRequest{
		Messages: []interfaces.LLMMessage{
			{
				Role: "system",
				Text: "You are an evaluation judge. Respond with a single number between 0.0 and 1.0. No explanation.",
			},
			{
				Role: "user",
				Text: fmt.Sprintf("%s\n\nDocument:\n%s\n\nSummary:\n%s\n\nScore:", dim.prompt, docContext, summary),
			},
		},
		MaxTokens:   judgeMaxTokens,
		Temperature: judgeTemperature,
		Purpose:     models.PurposeQuickSummary,
	}

	resp, err := s.llm.GenerateText(ctx, req)
	if err != nil {
		return neutralScore, "", err
	}
	return parseScore(resp.Text), resp.Model, nil
}

// parseScore pulls a 0..1 score out of free-form judge output. Anything
// unparseable scores neutral.
func parseScore(text string) float64 {
	match := scorePattern.FindString(strings.TrimSpace(text))
	if match == "" {
		return neutralScore
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return neutralScore
	}
	// Judges occasionally answer on a 0-10 or percent scale
	if score > 1.0 && score <= 10.0 {
		score = score / 10.0
	} else if score > 10.0 && score <= 100.0 {
		score = score / 100.0
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
