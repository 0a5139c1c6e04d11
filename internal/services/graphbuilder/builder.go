// -----------------------------------------------------------------------
// Graph Builder Service - Construct a typed document graph from parsed
// PDF content and extracted images
// -----------------------------------------------------------------------

package graphbuilder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/models"
)

// Builder turns parsed PDF content into a document graph
type Builder struct {
	logger arbor.ILogger
}

// NewBuilder creates a graph builder service
func NewBuilder(logger arbor.ILogger) *Builder {
	return &Builder{logger: logger}
}

// Build constructs the full graph: a document root containing page
// nodes, page nodes containing section/paragraph/table/image nodes,
// per-page reading-order follows edges, and resolved cross-references
// weighted by match confidence.
func (b *Builder) Build(doc *models.PDFDocument, pdfDoc *models.Document, images []models.ExtractedImage) (*graph.Graph, error) {
	g := graph.New()

	rootContent := pdfDoc.Filename
	if doc.Metadata.Title != "" {
		rootContent = doc.Metadata.Title
	}
	root := models.Node{
		ID:         "doc",
		Type:       models.NodeTypeDocument,
		Label:      rootContent,
		Content:    rootContent,
		Confidence: 1.0,
		Metadata:   documentMetadata(doc),
	}
	if err := g.AddNode(root); err != nil {
		return nil, fmt.Errorf("failed to add document root: %w", err)
	}

	imagesByPage := make(map[int][]models.ExtractedImage)
	for _, img := range images {
		imagesByPage[img.Page] = append(imagesByPage[img.Page], img)
	}

	// Tables and figures are numbered sequentially across the document
	// unless a caption states the number
	tableCounter := 0
	figureCounter := 0

	for _, page := range doc.Pages {
		pageID := fmt.Sprintf("page-%d", page.Number)
		pageNode := models.Node{
			ID:         pageID,
			Type:       models.NodeTypeMetadata,
			Label:      fmt.Sprintf("Page %d", page.Number),
			Content:    fmt.Sprintf("Page %d", page.Number),
			Position:   models.Position{Page: page.Number},
			Confidence: 1.0,
		}
		if err := g.AddNode(pageNode); err != nil {
			return nil, err
		}
		if err := g.AddEdge(models.Edge{From: "doc", To: pageID, Type: models.EdgeTypeContains, Weight: 1.0}); err != nil {
			return nil, err
		}

		paragraphIDs, err := b.addPageContent(g, pageID, page, &tableCounter)
		if err != nil {
			return nil, err
		}

		// Reading order never crosses a page boundary
		var prev string
		for _, nodeID := range paragraphIDs {
			if prev != "" {
				if err := g.AddEdge(models.Edge{From: prev, To: nodeID, Type: models.EdgeTypeFollows, Weight: 1.0}); err != nil {
					return nil, err
				}
			}
			prev = nodeID
		}

		if err := b.addPageImages(g, pageID, imagesByPage[page.Number], &figureCounter); err != nil {
			return nil, err
		}
	}

	refs := b.DetectReferences(g)
	for _, ref := range refs {
		if ref.TargetNodeID == "" {
			continue
		}
		edgeType := models.EdgeTypeReferences
		if ref.Type == models.ReferenceTypeCitation {
			edgeType = models.EdgeTypeCites
		}
		// References discovered twice in one node collapse into one edge
		_ = g.AddEdge(models.Edge{From: ref.SourceNodeID, To: ref.TargetNodeID, Type: edgeType, Weight: ref.Confidence})
	}

	stats := g.Stats()
	b.logger.Debug().
		Str("document_id", pdfDoc.ID).
		Int("nodes", stats.NodeCount).
		Int("edges", stats.EdgeCount).
		Msg("Built document graph")

	return g, nil
}

// addPageContent adds section, paragraph and table nodes for one page.
// Heading-like paragraphs are promoted to section nodes that contain
// the paragraphs after them until the next section starts. Returns the
// paragraph node IDs in reading order. Pages with no content get a
// fallback empty paragraph so every page has at least one child.
func (b *Builder) addPageContent(g *graph.Graph, pageID string, page models.Page, tableCounter *int) ([]string, error) {
	var paragraphIDs []string
	currentSection := ""

	for _, para := range page.Paragraphs {
		if isHeading(para.Text) {
			node := models.Node{
				ID:         para.ID,
				Type:       models.NodeTypeSection,
				Label:      strings.TrimSpace(para.Text),
				Content:    para.Text,
				Position:   models.Position{Page: page.Number, Start: para.Index},
				Confidence: para.Confidence,
			}
			if err := g.AddNode(node); err != nil {
				return nil, err
			}
			if err := g.AddEdge(models.Edge{From: pageID, To: node.ID, Type: models.EdgeTypeContains, Weight: 1.0}); err != nil {
				return nil, err
			}
			currentSection = node.ID
			continue
		}

		node := models.Node{
			ID:         para.ID,
			Type:       models.NodeTypeParagraph,
			Content:    para.Text,
			Position:   models.Position{Page: page.Number, Start: para.Index},
			Confidence: para.Confidence,
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
		parent := pageID
		if currentSection != "" {
			parent = currentSection
		}
		if err := g.AddEdge(models.Edge{From: parent, To: node.ID, Type: models.EdgeTypeContains, Weight: 1.0}); err != nil {
			return nil, err
		}
		paragraphIDs = append(paragraphIDs, node.ID)
	}

	if len(page.Paragraphs) == 0 {
		fallbackID := fmt.Sprintf("p%d-empty", page.Number)
		node := models.Node{
			ID:         fallbackID,
			Type:       models.NodeTypeParagraph,
			Content:    "",
			Position:   models.Position{Page: page.Number},
			Confidence: 0.1,
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
		if err := g.AddEdge(models.Edge{From: pageID, To: fallbackID, Type: models.EdgeTypeContains, Weight: 1.0}); err != nil {
			return nil, err
		}
	}

	for _, table := range page.Tables {
		*tableCounter++
		number := captionNumber(table.Caption)
		if number == "" {
			number = fmt.Sprintf("%d", *tableCounter)
		}
		node := models.Node{
			ID:         table.ID,
			Type:       models.NodeTypeTable,
			Label:      fmt.Sprintf("Table: %dx%d", table.Rows, table.Columns),
			Content:    tableText(table),
			Position:   models.Position{Page: page.Number},
			Confidence: 0.8,
			Metadata:   tableMetadata(table, number),
		}
		if err := g.AddNode(node); err != nil {
			return nil, err
		}
		if err := g.AddEdge(models.Edge{From: pageID, To: node.ID, Type: models.EdgeTypeContains, Weight: 1.0}); err != nil {
			return nil, err
		}
	}

	return paragraphIDs, nil
}

// addPageImages attaches extracted image nodes to their page
func (b *Builder) addPageImages(g *graph.Graph, pageID string, images []models.ExtractedImage, figureCounter *int) error {
	for _, img := range images {
		*figureCounter++
		stem := strings.TrimSuffix(filepath.Base(img.StoragePath), filepath.Ext(img.StoragePath))
		node := models.Node{
			ID:         img.ID,
			Type:       models.NodeTypeImage,
			Label:      fmt.Sprintf("Image: %s", stem),
			Content:    stem,
			Position:   models.Position{Page: img.Page},
			Confidence: 1.0,
			Metadata: map[string]string{
				"storage_path": img.StoragePath,
				"format":       string(img.Format),
				"figureNumber": fmt.Sprintf("%d", *figureCounter),
			},
		}
		if img.OCRText != "" {
			node.Metadata["ocr_text"] = img.OCRText
		}
		if err := g.AddNode(node); err != nil {
			return err
		}
		if err := g.AddEdge(models.Edge{From: pageID, To: node.ID, Type: models.EdgeTypeContains, Weight: 1.0}); err != nil {
			return err
		}
	}
	return nil
}

func documentMetadata(doc *models.PDFDocument) map[string]string {
	meta := make(map[string]string)
	if doc.Metadata.Title != "" {
		meta["title"] = doc.Metadata.Title
	}
	if doc.Metadata.Author != "" {
		meta["author"] = doc.Metadata.Author
	}
	if doc.Metadata.Subject != "" {
		meta["subject"] = doc.Metadata.Subject
	}
	meta["page_count"] = fmt.Sprintf("%d", doc.PageCount)
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// tableText joins the table cells row by row into the node content
func tableText(table models.Table) string {
	if len(table.Cells) == 0 {
		return table.Caption
	}
	var rows []string
	for _, row := range table.Cells {
		rows = append(rows, strings.Join(row, " | "))
	}
	return strings.Join(rows, "\n")
}

func tableMetadata(table models.Table, number string) map[string]string {
	meta := map[string]string{
		"rows":        fmt.Sprintf("%d", table.Rows),
		"columns":     fmt.Sprintf("%d", table.Columns),
		"tableNumber": number,
	}
	if table.Caption != "" {
		meta["caption"] = table.Caption
	}
	return meta
}
