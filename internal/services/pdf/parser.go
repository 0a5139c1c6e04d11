// -----------------------------------------------------------------------
// PDF Parser Service - Validate and extract structured content from PDFs
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/models"
)

const minPDFSize = 100

// Parser validates PDF binaries and extracts pages, paragraphs,
// tables and metadata
type Parser struct {
	logger  arbor.ILogger
	tempDir string
}

// NewParser creates a new PDF parser service
func NewParser(logger arbor.ILogger) *Parser {
	tempDir := filepath.Join(os.TempDir(), "precis-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Parser{
		logger:  logger,
		tempDir: tempDir,
	}
}

// Failure classification codes carried in invalid_pdf error messages
const (
	codeTooSmall       = "too_small"
	codeInvalidFormat  = "invalid_format"
	codeMissingEOF     = "missing_eof"
	codeXrefCorruption = "xref_corruption"
	codeTruncatedFile  = "truncated_file"
	codeUnknown        = "unknown"
)

// Validate performs structural checks on the raw PDF bytes before any
// expensive parsing. Failures carry the invalid_pdf kind with a
// classification code.
func (p *Parser) Validate(data []byte) error {
	if len(data) < minPDFSize {
		return common.NewError(common.KindInvalidPDF, "%s: file too small to be a valid PDF (%d bytes)", codeTooSmall, len(data))
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return common.NewError(common.KindInvalidPDF, "%s: missing %%PDF- header", codeInvalidFormat)
	}
	// Trailers allow trailing whitespace after %%EOF
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return common.NewError(common.KindInvalidPDF, "%s: missing %%EOF trailer", codeMissingEOF)
	}
	// Classic xref table or cross-reference stream
	if !bytes.Contains(data, []byte("xref")) && !bytes.Contains(data, []byte("/Type/XRef")) && !bytes.Contains(data, []byte("/Type /XRef")) {
		return common.NewError(common.KindInvalidPDF, "%s: missing cross-reference table", codeXrefCorruption)
	}
	return nil
}

// classifyParseError maps a pdfcpu failure onto the classification
// taxonomy
func classifyParseError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "encrypt"):
		return common.WrapError(common.KindEncryptedPDF, err, "encrypted PDFs are not supported")
	case strings.Contains(msg, "xref") || strings.Contains(msg, "cross reference"):
		return common.WrapError(common.KindInvalidPDF, err, "%s: corrupt cross-reference table", codeXrefCorruption)
	case strings.Contains(msg, "unexpected eof") || strings.Contains(msg, "truncat") || strings.Contains(msg, "eof"):
		return common.WrapError(common.KindInvalidPDF, err, "%s: file appears truncated", codeTruncatedFile)
	default:
		return common.WrapError(common.KindInvalidPDF, err, "%s: failed to read PDF structure", codeUnknown)
	}
}

// Parse validates and fully parses a PDF into pages, paragraphs and
// metadata. Encrypted documents are rejected.
func (p *Parser) Parse(ctx context.Context, data []byte) (*models.PDFDocument, error) {
	if err := p.Validate(data); err != nil {
		return nil, err
	}

	// Write to temp file for pdfcpu processing
	tempFile := filepath.Join(p.tempDir, fmt.Sprintf("parse_%d_%d.pdf", os.Getpid(), time.Now().UnixNano()))
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if pdfCtx.Encrypt != nil {
		return nil, common.NewError(common.KindEncryptedPDF, "encrypted PDFs are not supported")
	}

	// Zero pages is valid: the document flows through the pipeline and
	// yields a graph with just the document root
	pageCount := pdfCtx.PageCount

	pageTexts, err := p.extractPageTexts(ctx, tempFile, pageCount)
	if err != nil {
		return nil, err
	}

	doc := &models.PDFDocument{
		Metadata:  p.extractMetadata(pdfCtx),
		PageCount: pageCount,
		SizeBytes: int64(len(data)),
		Pages:     make([]models.Page, 0, pageCount),
	}

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := pageTexts[pageNum]
		page := models.Page{
			Number:     pageNum,
			Text:       text,
			Paragraphs: splitParagraphs(text, pageNum),
			Tables:     detectTables(text, pageNum),
		}
		doc.Pages = append(doc.Pages, page)
	}

	p.logger.Debug().
		Int("page_count", pageCount).
		Int64("size_bytes", doc.SizeBytes).
		Msg("Parsed PDF document")

	return doc, nil
}

// extractPageTexts pulls per-page content via pdfcpu content extraction.
// Extraction failure is not fatal: pages fall back to empty text so
// image extraction and OCR can still run.
func (p *Parser) extractPageTexts(ctx context.Context, tempFile string, pageCount int) (map[int]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.WrapError(common.KindCancelled, err, "parse cancelled")
	}

	outDir := filepath.Join(p.tempDir, fmt.Sprintf("pages_%d_%d", os.Getpid(), time.Now().UnixNano()))
	os.MkdirAll(outDir, 0755)
	defer os.RemoveAll(outDir)

	pageTexts := make(map[int]string, pageCount)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		p.logger.Warn().Err(err).Msg("Content extraction failed, pages will have empty text")
		return pageTexts, nil
	}

	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = cleanExtractedText(decodeContentStream(string(content)))
			continue
		}
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = cleanExtractedText(decodeContentStream(string(content)))
		}
	}

	return pageTexts, nil
}

// extractMetadata reads the document information dictionary
func (p *Parser) extractMetadata(pdfCtx *model.Context) models.PDFMetadata {
	meta := models.PDFMetadata{
		Title:    strings.TrimSpace(pdfCtx.Title),
		Author:   strings.TrimSpace(pdfCtx.Author),
		Subject:  strings.TrimSpace(pdfCtx.Subject),
		Keywords: strings.TrimSpace(pdfCtx.Keywords),
		Creator:  strings.TrimSpace(pdfCtx.Creator),
		Producer: strings.TrimSpace(pdfCtx.Producer),
	}
	if t, ok := parsePDFDate(pdfCtx.XRefTable.CreationDate); ok {
		meta.CreationDate = t
	}
	if t, ok := parsePDFDate(pdfCtx.ModDate); ok {
		meta.ModDate = t
	}
	return meta
}

// parsePDFDate parses the D:YYYYMMDDHHmmSS date format, tolerating
// truncated forms down to just the year
func parsePDFDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "D:")
	if s == "" {
		return time.Time{}, false
	}
	// Drop timezone suffix (Z, +HH'mm', -HH'mm')
	for _, sep := range []string{"Z", "+", "-"} {
		if idx := strings.Index(s, sep); idx > 0 {
			s = s[:idx]
			break
		}
	}

	layouts := []string{"20060102150405", "200601021504", "2006010215", "20060102", "200601", "2006"}
	for _, layout := range layouts {
		if len(s) == len(layout) {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// cleanExtractedText normalizes line endings and strips trailing spaces
func cleanExtractedText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
