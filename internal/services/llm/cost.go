package llm

import (
	"math"
	"strings"
)

// modelTariff is the USD price per 1000 tokens, split by direction
type modelTariff struct {
	Prompt   float64
	Response float64
}

// tariffs are matched by model name prefix. Unknown models fall back to
// a conservative default so cost is never underreported.
var tariffs = map[string]modelTariff{
	"gpt-4o-mini":       {Prompt: 0.00015, Response: 0.0006},
	"gpt-4o":            {Prompt: 0.0025, Response: 0.01},
	"gpt-4-turbo":       {Prompt: 0.01, Response: 0.03},
	"gemini-2.0-flash-lite": {Prompt: 0.000075, Response: 0.0003},
	"gemini-2.0-flash":  {Prompt: 0.0001, Response: 0.0004},
	"gemini-1.5-pro":    {Prompt: 0.00125, Response: 0.005},
	"gemini-exp":        {Prompt: 0.00125, Response: 0.005},
	"claude-3-5-haiku":  {Prompt: 0.0008, Response: 0.004},
	"claude-sonnet":     {Prompt: 0.003, Response: 0.015},
	"claude-3-5-sonnet": {Prompt: 0.003, Response: 0.015},
}

var defaultTariff = modelTariff{Prompt: 0.01, Response: 0.03}

// EstimateCost computes the USD cost of a request from token counts
func EstimateCost(model string, promptTokens, responseTokens int) float64 {
	tariff := defaultTariff
	bestLen := 0
	for prefix, t := range tariffs {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			tariff = t
			bestLen = len(prefix)
		}
	}
	return float64(promptTokens)/1000*tariff.Prompt + float64(responseTokens)/1000*tariff.Response
}

// EstimateTokens approximates the token count of a text at four
// characters per token, rounded up
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / 4))
}
