package models

import (
	"time"
)

// SummaryType selects which view of the document a summary presents
type SummaryType string

const (
	SummaryTypeExecutive    SummaryType = "executive"
	SummaryTypeDetailed     SummaryType = "detailed"
	SummaryTypeChapter      SummaryType = "chapter"
	SummaryTypeBulletPoints SummaryType = "bullet-points"
	SummaryTypeNarrative    SummaryType = "narrative"
	SummaryTypeTechnical    SummaryType = "technical"
)

// ValidSummaryTypes lists every accepted summary type
var ValidSummaryTypes = []SummaryType{
	SummaryTypeExecutive,
	SummaryTypeDetailed,
	SummaryTypeChapter,
	SummaryTypeBulletPoints,
	SummaryTypeNarrative,
	SummaryTypeTechnical,
}

// SummaryStyle controls the register of the generated prose
type SummaryStyle string

const (
	StyleFormal    SummaryStyle = "formal"
	StyleCasual    SummaryStyle = "casual"
	StyleTechnical SummaryStyle = "technical"
)

// SummaryOptions parameterizes a summarization request
type SummaryOptions struct {
	Type        SummaryType  `json:"type" validate:"required,oneof=executive detailed chapter bullet-points narrative technical"`
	MaxLength   int          `json:"max_length" validate:"omitempty,gte=50,lte=5000"`
	Provider    string       `json:"provider,omitempty" validate:"omitempty,oneof=openai gemini claude auto"`
	Model       string       `json:"model,omitempty"`
	Temperature float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Style       SummaryStyle `json:"style,omitempty" validate:"omitempty,oneof=formal casual technical"`
	Focus       []string     `json:"focus,omitempty"`
	Exclude     []string     `json:"exclude,omitempty"`
}

// SummaryResult is one generated summary with its provenance
type SummaryResult struct {
	ID             string        `json:"id" badgerhold:"key"`
	DocumentID     string        `json:"document_id" badgerhold:"index"`
	Type           SummaryType   `json:"type"`
	Content        string        `json:"content"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	NodesUsed      int           `json:"nodes_used"`
	PromptTokens   int           `json:"prompt_tokens"`
	ResponseTokens int           `json:"response_tokens"`
	Cost           float64       `json:"cost"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PromptTemplate pairs a summary type with its instruction text.
// Placeholders {context} and {maxLength} are substituted at build time.
type PromptTemplate struct {
	Type        SummaryType `json:"type"`
	Name        string      `json:"name"`
	Instruction string      `json:"instruction"`
}
