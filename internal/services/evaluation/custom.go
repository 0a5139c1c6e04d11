package evaluation

import (
	"regexp"
	"strings"

	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/models"
)

var (
	nodeTagPattern   = regexp.MustCompile(`\[Node:([^\]]+)\]`)
	pageTagPattern   = regexp.MustCompile(`[\[(]p\.\s?\d+[\])]`)
	seeRefPattern    = regexp.MustCompile(`(?i)\b(?:see\s+)?(?:table|figure)\s+\d+`)
	sectionPattern   = regexp.MustCompile(`(?i)\bsection\s+\d+(?:\.\d+)*`)
	statementPattern = regexp.MustCompile(`[.!?]+`)
	numberedRef      = regexp.MustCompile(`(?i)\b(table|figure)\s+(\d+)`)
	refMention       = regexp.MustCompile(`(?i)\b(?:section|page|p\.)`)
	refWellFormed    = regexp.MustCompile(`(?i)(?:\bsection\s+\d+(?:\.\d+)*|\bpage\s+\d+|\bp\.\s*\d+)`)
	tokenSplitter    = regexp.MustCompile(`[^a-z0-9]+`)
)

const (
	minStatementLength = 10
	minTokenLength     = 3
	coverageOverlap    = 0.2
	importantParaLen   = 200
)

// computeCustomScores evaluates the summary against the graph without
// any LLM call
func computeCustomScores(summary string, g *graph.Graph) models.CustomScores {
	covered := coveredNodes(summary, g)
	return models.CustomScores{
		Grounding:         groundingScore(summary),
		Coverage:          coverageScore(g, covered),
		GraphUtilization:  graphUtilizationScore(g, covered),
		TableAccuracy:     tableAccuracyScore(summary, g),
		ReferenceAccuracy: referenceAccuracyScore(summary),
	}
}

// groundingScore is the fraction of statements carrying a grounding
// marker: a node tag, a page tag, a "see Table N" mention or a section
// reference. Statements are terminator-split fragments longer than ten
// characters.
func groundingScore(summary string) float64 {
	statements := splitStatements(summary)
	if len(statements) == 0 {
		return 0
	}
	grounded := 0
	for _, statement := range statements {
		if nodeTagPattern.MatchString(statement) ||
			pageTagPattern.MatchString(statement) ||
			seeRefPattern.MatchString(statement) ||
			sectionPattern.MatchString(statement) {
			grounded++
		}
	}
	return float64(grounded) / float64(len(statements))
}

// importantNodes are the nodes a summary is expected to cover:
// structural headings, tables, images, and substantive paragraphs
func importantNodes(g *graph.Graph) []*models.Node {
	nodes := g.NodesByType(models.NodeTypeSection)
	nodes = append(nodes, g.NodesByType(models.NodeTypeHeading)...)
	nodes = append(nodes, g.NodesByType(models.NodeTypeTable)...)
	nodes = append(nodes, g.NodesByType(models.NodeTypeImage)...)
	for _, n := range g.NodesByType(models.NodeTypeParagraph) {
		if len(n.Content) > importantParaLen {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// coveredNodes marks every node whose vocabulary overlaps the
// summary's beyond the Jaccard cutoff
func coveredNodes(summary string, g *graph.Graph) map[string]bool {
	summaryTokens := tokenSet(summary)
	covered := make(map[string]bool)
	for _, n := range g.Nodes() {
		nodeTokens := tokenSet(nodeText(n))
		if len(nodeTokens) == 0 {
			continue
		}
		if jaccard(summaryTokens, nodeTokens) > coverageOverlap {
			covered[n.ID] = true
		}
	}
	return covered
}

// coverageScore is the fraction of important nodes the summary covers.
// A graph with nothing important scores full coverage.
func coverageScore(g *graph.Graph, covered map[string]bool) float64 {
	important := importantNodes(g)
	if len(important) == 0 {
		return 1.0
	}
	hit := 0
	for _, n := range important {
		if covered[n.ID] {
			hit++
		}
	}
	return float64(hit) / float64(len(important))
}

// graphUtilizationScore is the fraction of edges with both endpoints
// covered by the summary. No edges means nothing left unused.
func graphUtilizationScore(g *graph.Graph, covered map[string]bool) float64 {
	edges := g.Edges()
	if len(edges) == 0 {
		return 1.0
	}
	used := 0
	for _, e := range edges {
		if covered[e.From] && covered[e.To] {
			used++
		}
	}
	return float64(used) / float64(len(edges))
}

// tableAccuracyScore checks every "Table N" or "Figure N" the summary
// mentions against a node actually numbered N. No numbered mentions
// means nothing to get wrong.
func tableAccuracyScore(summary string, g *graph.Graph) float64 {
	refs := numberedRef.FindAllStringSubmatch(summary, -1)
	if len(refs) == 0 {
		return 1.0
	}

	correct := 0
	for _, ref := range refs {
		kind := strings.ToLower(ref[1])
		number := ref[2]
		nodeType := models.NodeTypeTable
		metaKey := "tableNumber"
		if kind == "figure" {
			nodeType = models.NodeTypeImage
			metaKey = "figureNumber"
		}
		for _, n := range g.NodesByType(nodeType) {
			if n.Metadata[metaKey] == number ||
				strings.Contains(strings.ToLower(n.Content), kind+" "+number) {
				correct++
				break
			}
		}
	}
	return float64(correct) / float64(len(refs))
}

// referenceAccuracyScore is the fraction of section/page mentions that
// are well-formed ("Section 2.1", "page 4", "p. 4"). A summary with no
// such mentions has nothing malformed.
func referenceAccuracyScore(summary string) float64 {
	mentions := len(refMention.FindAllString(summary, -1))
	if mentions == 0 {
		return 1.0
	}
	valid := len(refWellFormed.FindAllString(summary, -1))
	return clamp01(float64(valid) / float64(mentions))
}

// nodeText is the node content the coverage tokenizer sees, OCR text
// included for images
func nodeText(n *models.Node) string {
	text := n.Content
	if n.Label != "" {
		text = n.Label + " " + text
	}
	if ocr := n.Metadata["ocr_text"]; ocr != "" {
		text += " " + ocr
	}
	return text
}

func contentNodes(g *graph.Graph) []*models.Node {
	nodes := g.NodesByType(models.NodeTypeSection)
	nodes = append(nodes, g.NodesByType(models.NodeTypeHeading)...)
	nodes = append(nodes, g.NodesByType(models.NodeTypeParagraph)...)
	nodes = append(nodes, g.NodesByType(models.NodeTypeTable)...)
	return nodes
}

// splitStatements breaks text on sentence terminators and keeps the
// fragments long enough to be claims
func splitStatements(text string) []string {
	parts := statementPattern.Split(strings.TrimSpace(text), -1)
	out := parts[:0]
	for _, p := range parts {
		if len(strings.TrimSpace(p)) > minStatementLength {
			out = append(out, p)
		}
	}
	return out
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenSplitter.Split(strings.ToLower(text), -1) {
		if len(tok) > minTokenLength {
			set[tok] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
