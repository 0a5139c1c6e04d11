// -----------------------------------------------------------------------
// Export Service - Render summary reports with evaluation scorecards
// to PDF
// -----------------------------------------------------------------------

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/precis/internal/models"
)

const (
	pageWidth  = 190.0
	bodyFont   = "Helvetica"
	bodySize   = 10.0
	lineHeight = 5.0
)

// Service renders document summaries into a downloadable PDF report
type Service struct {
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// NewService creates an export service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
		logger: logger,
	}
}

// RenderReport produces a PDF containing every summary for a document,
// each followed by its evaluation scorecard when one exists
func (s *Service) RenderReport(doc *models.Document, summaries []models.SummaryResult, evals []models.EvaluationResult) ([]byte, error) {
	if len(summaries) == 0 {
		return nil, fmt.Errorf("document %s has no summaries to export", doc.ID)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Filename, false)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont(bodyFont, "B", 16)
	pdf.MultiCell(pageWidth, 8, doc.Filename, "", "L", false)
	pdf.SetFont(bodyFont, "", 9)
	pdf.MultiCell(pageWidth, 5, fmt.Sprintf("%d pages, uploaded %s", doc.PageCount, doc.CreatedAt.Format("2 Jan 2006")), "", "L", false)
	pdf.Ln(4)

	evalBySummary := make(map[string]*models.EvaluationResult, len(evals))
	for i := range evals {
		evalBySummary[evals[i].SummaryID] = &evals[i]
	}

	for i := range summaries {
		summary := &summaries[i]

		pdf.SetFont(bodyFont, "B", 13)
		pdf.MultiCell(pageWidth, 7, summaryTitle(summary.Type), "", "L", false)
		pdf.SetFont(bodyFont, "", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(pageWidth, 4, fmt.Sprintf("%s / %s", summary.Provider, summary.Model), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)

		if err := s.renderMarkdown(pdf, summary.Content); err != nil {
			return nil, fmt.Errorf("failed to render %s summary: %w", summary.Type, err)
		}

		if eval := evalBySummary[summary.ID]; eval != nil {
			renderScorecard(pdf, eval)
		}
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to produce report PDF: %w", err)
	}

	s.logger.Debug().
		Str("document_id", doc.ID).
		Int("summaries", len(summaries)).
		Int("size_bytes", buf.Len()).
		Msg("Report exported")
	return buf.Bytes(), nil
}

// renderMarkdown walks the summary's markdown AST and draws it
func (s *Service) renderMarkdown(pdf *fpdf.Fpdf, content string) error {
	source := []byte(content)
	root := s.markdown.Parser().Parse(text.NewReader(source))

	w := &walker{pdf: pdf, source: source}
	return ast.Walk(root, w.walk)
}

// walker draws markdown nodes onto the PDF page
type walker struct {
	pdf       *fpdf.Fpdf
	source    []byte
	bold      bool
	italic    bool
	listDepth int
}

func (w *walker) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(3)
			w.pdf.SetFont(bodyFont, "B", headingSize(node.Level))
		} else {
			w.pdf.Ln(lineHeight + 2)
			w.resetFont()
		}
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(lineHeight + 2)
		}
	case *ast.Text:
		if entering {
			w.pdf.Write(lineHeight, string(node.Text(w.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.pdf.Write(lineHeight, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.resetFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", bodySize-1)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if textNode, ok := c.(*ast.Text); ok {
					w.pdf.Write(lineHeight, string(textNode.Segment.Value(w.source)))
				}
			}
		} else {
			w.resetFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listDepth++
		} else {
			w.listDepth--
			if w.listDepth == 0 {
				w.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(lineHeight)
			w.pdf.SetX(12 + float64(w.listDepth)*4)
			w.pdf.Write(lineHeight, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(3)
			y := w.pdf.GetY()
			w.pdf.Line(10, y, 200, y)
			w.pdf.Ln(3)
		}
	case *extast.Table:
		if entering {
			w.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (w *walker) resetFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(bodyFont, style, bodySize)
}

func (w *walker) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", bodySize-1)
	w.pdf.SetFillColor(244, 244, 244)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		w.pdf.MultiCell(pageWidth, lineHeight, strings.TrimRight(string(segment.Value(w.source)), "\n"), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.resetFont()
	w.pdf.Ln(2)
}

// table draws a markdown table with equal column widths
func (w *walker) table(n *extast.Table) {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch row := child.(type) {
			case *extast.TableRow:
				rows = append(rows, cellTexts(row, w.source))
			case *extast.TableHeader:
				rows = append(rows, cellTexts(row, w.source))
			}
		}
	}
	collect(n)
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	colWidth := pageWidth / float64(len(rows[0]))
	w.pdf.Ln(2)
	for i, row := range rows {
		if i == 0 {
			w.pdf.SetFont(bodyFont, "B", bodySize-1)
			w.pdf.SetFillColor(232, 232, 232)
		} else {
			w.pdf.SetFont(bodyFont, "", bodySize-1)
			w.pdf.SetFillColor(255, 255, 255)
		}
		for _, cell := range row {
			w.pdf.CellFormat(colWidth, lineHeight+1.5, truncateCell(w.pdf, cell, colWidth-2), "1", 0, "L", i == 0, 0, "")
		}
		w.pdf.Ln(lineHeight + 1.5)
	}
	w.pdf.Ln(2)
	w.resetFont()
}

func cellTexts(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if tc, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, string(tc.Text(source)))
		}
	}
	return cells
}

func truncateCell(pdf *fpdf.Fpdf, cell string, width float64) string {
	for pdf.GetStringWidth(cell) > width && len(cell) > 4 {
		cell = cell[:len(cell)-4] + "..."
	}
	return cell
}

// renderScorecard draws the evaluation result as a compact table
func renderScorecard(pdf *fpdf.Fpdf, eval *models.EvaluationResult) {
	pdf.Ln(2)
	pdf.SetFont(bodyFont, "B", 10)
	pdf.MultiCell(pageWidth, 6, "Evaluation", "", "L", false)

	rows := []struct {
		label string
		value string
	}{
		{"Overall", fmt.Sprintf("%.2f", eval.OverallScore)},
		{"Faithfulness", fmt.Sprintf("%.2f", eval.RAGAS.Faithfulness)},
		{"Answer relevancy", fmt.Sprintf("%.2f", eval.RAGAS.AnswerRelevancy)},
		{"Context precision", fmt.Sprintf("%.2f", eval.RAGAS.ContextPrecision)},
		{"Context recall", fmt.Sprintf("%.2f", eval.RAGAS.ContextRecall)},
		{"Grounding", fmt.Sprintf("%.2f", eval.Custom.Grounding)},
		{"Coverage", fmt.Sprintf("%.2f", eval.Custom.Coverage)},
		{"Verdict", verdict(eval)},
	}

	pdf.SetFont(bodyFont, "", 9)
	for _, row := range rows {
		pdf.CellFormat(60, 5.5, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 5.5, row.value, "1", 0, "L", false, 0, "")
		pdf.Ln(5.5)
	}

	if eval.NeedsReview && eval.ReviewReason != "" {
		pdf.SetFont(bodyFont, "I", 8)
		pdf.MultiCell(pageWidth, 4.5, eval.ReviewReason, "", "L", false)
	}
	pdf.SetFont(bodyFont, "", bodySize)
}

func verdict(eval *models.EvaluationResult) string {
	switch {
	case eval.Passed:
		return "passed"
	case eval.NeedsReview:
		return "needs review"
	default:
		return "failed"
	}
}

func summaryTitle(t models.SummaryType) string {
	name := string(t)
	if name == "" {
		return "Summary"
	}
	return strings.ToUpper(name[:1]) + name[1:] + " Summary"
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 14
	case 2:
		return 12
	case 3:
		return 11
	default:
		return 10
	}
}
