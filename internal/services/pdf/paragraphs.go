package pdf

import (
	"fmt"
	"strings"

	"github.com/ternarybob/precis/internal/models"
)

// splitParagraphs segments page text into paragraph blocks. Blocks are
// separated by blank lines; form feeds also terminate a block. Each
// paragraph gets a confidence score reflecting how paragraph-like it is.
func splitParagraphs(text string, pageNum int) []models.Paragraph {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "\f", "\n\n")
	blocks := splitBlocks(text)

	paragraphs := make([]models.Paragraph, 0, len(blocks))
	offset := 0
	for i, block := range blocks {
		start := strings.Index(text[offset:], block)
		if start >= 0 {
			start += offset
			offset = start + len(block)
		} else {
			start = offset
		}

		paragraphs = append(paragraphs, models.Paragraph{
			ID:         fmt.Sprintf("p%d-%d", pageNum, i),
			Text:       block,
			Page:       pageNum,
			Index:      i,
			Confidence: paragraphConfidence(block),
		})
	}
	return paragraphs
}

// splitBlocks splits text on blank lines and joins wrapped lines
// within each block
func splitBlocks(text string) []string {
	var blocks []string
	for _, raw := range strings.Split(text, "\n\n") {
		lines := strings.Split(raw, "\n")
		var kept []string
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" {
				kept = append(kept, line)
			}
		}
		if len(kept) == 0 {
			continue
		}
		blocks = append(blocks, strings.Join(kept, " "))
	}
	return blocks
}

// paragraphConfidence scores a text block in [0,1]. Starts at 0.5,
// rewarded for sentence terminators and typical length, penalized for
// fragments.
func paragraphConfidence(text string) float64 {
	score := 0.5

	terminators := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if terminators >= 2 {
		score += 0.2
	}

	length := len(text)
	if length >= 50 && length <= 1000 {
		score += 0.2
	}
	if length < 20 {
		score -= 0.3
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// detectTables finds tabular regions: runs of 2+ consecutive lines that
// each contain multiple column separators (tabs or 2+ spaces) with a
// consistent column count
func detectTables(text string, pageNum int) []models.Table {
	lines := strings.Split(text, "\n")

	var tables []models.Table
	var run [][]string // current run of row cell slices
	tableIndex := 0

	flush := func() {
		if len(run) >= 2 {
			cols := len(run[0])
			cells := make([][]string, len(run))
			copy(cells, run)
			tables = append(tables, models.Table{
				ID:      fmt.Sprintf("t%d-%d", pageNum, tableIndex),
				Page:    pageNum,
				Rows:    len(run),
				Columns: cols,
				Cells:   cells,
			})
			tableIndex++
		}
		run = nil
	}

	for _, line := range lines {
		cells := splitColumns(line)
		if len(cells) >= 2 {
			if len(run) > 0 && len(run[0]) != len(cells) {
				flush()
			}
			run = append(run, cells)
		} else {
			flush()
		}
	}
	flush()

	return tables
}

// splitColumns splits a line into cells on tabs or 2+ space runs
func splitColumns(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var cells []string
	var current strings.Builder
	spaces := 0
	for _, r := range line {
		switch {
		case r == '\t':
			if current.Len() > 0 {
				cells = append(cells, current.String())
				current.Reset()
			}
			spaces = 0
		case r == ' ':
			spaces++
			if spaces >= 2 && current.Len() > 0 {
				cells = append(cells, strings.TrimSpace(current.String()))
				current.Reset()
				spaces = 0
			}
		default:
			if spaces == 1 && current.Len() > 0 {
				current.WriteRune(' ')
			}
			spaces = 0
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		cells = append(cells, s)
	}
	return cells
}
