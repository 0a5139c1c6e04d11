package pdf

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
)

// buildFixturePDF generates a small real PDF with the given page texts
func buildFixturePDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Fixture Document", false)
	doc.SetAuthor("Test Suite", false)
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(190, 6, text, "", "L", false)
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	parser := NewParser(common.GetLogger())
	valid := buildFixturePDF(t, "Hello world. This is a test page.")

	tests := []struct {
		name     string
		data     []byte
		wantKind common.ErrorKind
		wantCode string
	}{
		{
			name: "valid pdf passes",
			data: valid,
		},
		{
			name:     "too small",
			data:     []byte("%PDF-1.4"),
			wantKind: common.KindInvalidPDF,
			wantCode: "too_small",
		},
		{
			name:     "missing header",
			data:     bytes.Repeat([]byte("not a pdf at all "), 20),
			wantKind: common.KindInvalidPDF,
			wantCode: "invalid_format",
		},
		{
			name:     "missing eof trailer",
			data:     append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("xref data "), 20)...),
			wantKind: common.KindInvalidPDF,
			wantCode: "missing_eof",
		},
		{
			name:     "missing xref",
			data:     append([]byte("%PDF-1.4\n"), append(bytes.Repeat([]byte("body "), 30), []byte("%%EOF")...)...),
			wantKind: common.KindInvalidPDF,
			wantCode: "xref_corruption",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parser.Validate(tt.data)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, common.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantCode)
		})
	}
}

func TestClassifyParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind common.ErrorKind
		wantCode string
	}{
		{"encrypted", errors.New("pdfcpu: encryptDict not found"), common.KindEncryptedPDF, ""},
		{"corrupt xref", errors.New("pdfcpu: xref table corrupted at offset 120"), common.KindInvalidPDF, "xref_corruption"},
		{"truncated", errors.New("unexpected EOF while reading stream"), common.KindInvalidPDF, "truncated_file"},
		{"anything else", errors.New("pdfcpu: dict malformed"), common.KindInvalidPDF, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyParseError(tt.err)
			assert.Equal(t, tt.wantKind, common.KindOf(got))
			if tt.wantCode != "" {
				assert.Contains(t, got.Error(), tt.wantCode)
			}
		})
	}
}

func TestParse_Fixture(t *testing.T) {
	parser := NewParser(common.GetLogger())
	data := buildFixturePDF(t,
		"First page paragraph. It has two sentences for confidence.",
		"Second page content here.",
	)

	doc, err := parser.Parse(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 2, doc.PageCount)
	assert.Len(t, doc.Pages, 2)
	assert.Equal(t, int64(len(data)), doc.SizeBytes)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, 2, doc.Pages[1].Number)
}

func TestParse_RejectsGarbage(t *testing.T) {
	parser := NewParser(common.GetLogger())
	_, err := parser.Parse(context.Background(), bytes.Repeat([]byte("garbage"), 100))
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidPDF, common.KindOf(err))
}

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph with enough text. It contains two sentences here.\n\nSecond block is short.\n\nx"

	paragraphs := splitParagraphs(text, 3)
	require.Len(t, paragraphs, 3)

	assert.Equal(t, "p3-0", paragraphs[0].ID)
	assert.Equal(t, 3, paragraphs[0].Page)
	assert.Equal(t, 0, paragraphs[0].Index)
	// Two terminators and good length: 0.5 + 0.2 + 0.2
	assert.InDelta(t, 0.9, paragraphs[0].Confidence, 0.001)

	// One terminator, short-ish but over 20 chars: base 0.5
	assert.InDelta(t, 0.5, paragraphs[1].Confidence, 0.001)

	// Fragment under 20 chars: 0.5 - 0.3
	assert.InDelta(t, 0.2, paragraphs[2].Confidence, 0.001)
}

func TestSplitParagraphs_JoinsWrappedLines(t *testing.T) {
	text := "A sentence that wraps\nacross two lines."
	paragraphs := splitParagraphs(text, 1)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, "A sentence that wraps across two lines.", paragraphs[0].Text)
}

func TestSplitParagraphs_EmptyPage(t *testing.T) {
	assert.Empty(t, splitParagraphs("   \n  ", 1))
}

func TestDetectTables(t *testing.T) {
	text := "Some intro text here.\n" +
		"Name\tRole\tYears\n" +
		"Alice\tEngineer\t5\n" +
		"Bob\tDesigner\t3\n" +
		"Closing remark."

	tables := detectTables(text, 2)
	require.Len(t, tables, 1)
	assert.Equal(t, "t2-0", tables[0].ID)
	assert.Equal(t, 3, tables[0].Rows)
	assert.Equal(t, 3, tables[0].Columns)
	assert.Equal(t, "Alice", tables[0].Cells[1][0])
}

func TestDetectTables_RequiresTwoRows(t *testing.T) {
	text := "Just one\trow\there\nthen prose follows."
	assert.Empty(t, detectTables(text, 1))
}

func TestDecodeContentStream(t *testing.T) {
	stream := "BT /F1 12 Tf 72 720 Td (Hello world.) Tj T* (Second line.) Tj ET"
	got := decodeContentStream(stream)
	assert.Contains(t, got, "Hello world.")
	assert.Contains(t, got, "Second line.")

	// Escaped parens survive
	escaped := "BT (A \\(nested\\) note) Tj ET"
	assert.Contains(t, decodeContentStream(escaped), "A (nested) note")

	// Plain text passes through untouched
	plain := "Ordinary extracted text."
	assert.Equal(t, plain, decodeContentStream(plain))
}

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"D:20240115093045Z00'00'", time.Date(2024, 1, 15, 9, 30, 45, 0, time.UTC), true},
		{"D:20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"D:2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"garbage", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := parsePDFDate(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			assert.True(t, got.Equal(tt.want), "input %q: got %v want %v", tt.input, got, tt.want)
		}
	}
}
