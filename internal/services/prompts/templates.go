package prompts

import (
	"github.com/ternarybob/precis/internal/models"
)

// systemPrompts frame every summarization request, one per style.
// Formal is the default.
var systemPrompts = map[models.SummaryStyle]string{
	models.StyleFormal: "You are a precise document analyst. Work only from the provided document content. " +
		"Cite nothing that does not appear in the context. Write in formal prose. " +
		"Keep the summary under {maxLength} words.",
	models.StyleCasual: "You are a document analyst writing for a general audience. Work only from the provided " +
		"document content and cite nothing that does not appear in the context. Use plain, conversational " +
		"language. Keep the summary under {maxLength} words.",
	models.StyleTechnical: "You are a technical document analyst. Work only from the provided document content. " +
		"Cite nothing that does not appear in the context. Preserve terminology, units and numeric precision. " +
		"Keep the summary under {maxLength} words.",
}

// templates hold the per-type instructions. {context} and {maxLength}
// are substituted at build time.
var templates = map[models.SummaryType]models.PromptTemplate{
	models.SummaryTypeExecutive: {
		Type: models.SummaryTypeExecutive,
		Name: "Executive Summary",
		Instruction: "Write an executive summary of the document below for senior decision makers. " +
			"Lead with conclusions and recommendations, then the supporting evidence. Skip background detail.\n\n" +
			"Document content:\n{context}\n\nExecutive summary (max {maxLength} words):",
	},
	models.SummaryTypeDetailed: {
		Type: models.SummaryTypeDetailed,
		Name: "Detailed Summary",
		Instruction: "Write a detailed summary of the document below. Cover every major section, " +
			"preserve the document's structure, and include key figures and table findings.\n\n" +
			"Document content:\n{context}\n\nDetailed summary (max {maxLength} words):",
	},
	models.SummaryTypeChapter: {
		Type: models.SummaryTypeChapter,
		Name: "Chapter Summary",
		Instruction: "Summarize the document below chapter by chapter. For each section heading, write a short " +
			"paragraph covering that section's content. Keep the section order of the document.\n\n" +
			"Document content:\n{context}\n\nChapter-by-chapter summary (max {maxLength} words):",
	},
	models.SummaryTypeBulletPoints: {
		Type: models.SummaryTypeBulletPoints,
		Name: "Bullet-Point Summary",
		Instruction: "Summarize the document below as a bulleted list. One bullet per key point, " +
			"grouped under the document's section headings where they exist.\n\n" +
			"Document content:\n{context}\n\nBullet-point summary (max {maxLength} words):",
	},
	models.SummaryTypeNarrative: {
		Type: models.SummaryTypeNarrative,
		Name: "Narrative Summary",
		Instruction: "Retell the document below as a flowing narrative in reading order. " +
			"Connect the sections into continuous prose without headings or lists.\n\n" +
			"Document content:\n{context}\n\nNarrative summary (max {maxLength} words):",
	},
	models.SummaryTypeTechnical: {
		Type: models.SummaryTypeTechnical,
		Name: "Technical Summary",
		Instruction: "Write a technical summary of the document below. Preserve terminology, methods, " +
			"measurements and numeric results exactly as stated. Do not simplify technical content.\n\n" +
			"Document content:\n{context}\n\nTechnical summary (max {maxLength} words):",
	},
}

// keyParagraphKeywords flag paragraphs that matter for executive
// summaries; paragraphs longer than keyParagraphLength qualify without
// a keyword hit
var keyParagraphKeywords = []string{
	"summary", "conclusion", "introduction", "overview", "key",
	"important", "main", "primary", "significant", "recommendation",
	"finding", "result", "outcome",
}

const keyParagraphLength = 200

// Template returns the prompt template for a summary type
func Template(t models.SummaryType) (models.PromptTemplate, bool) {
	tpl, ok := templates[t]
	return tpl, ok
}

// SystemPrompt returns the system prompt for a style, defaulting to
// formal
func SystemPrompt(style models.SummaryStyle) string {
	if prompt, ok := systemPrompts[style]; ok {
		return prompt
	}
	return systemPrompts[models.StyleFormal]
}
