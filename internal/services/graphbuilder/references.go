package graphbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/models"
)

var referencePatterns = []struct {
	Type       models.ReferenceType
	Pattern    *regexp.Regexp
	Confidence float64
}{
	{models.ReferenceTypeSection, regexp.MustCompile(`(?i)\b(?:see\s+)?section\s+(\d+(?:\.\d+)*)`), 0.9},
	{models.ReferenceTypeTable, regexp.MustCompile(`(?i)\btable\s+(\d+)`), 0.9},
	{models.ReferenceTypeFigure, regexp.MustCompile(`(?i)\b(?:figure|fig\.?)\s+(\d+)`), 0.9},
	{models.ReferenceTypePage, regexp.MustCompile(`(?i)\b(?:on\s+)?page\s+(\d+)`), 0.8},
	{models.ReferenceTypeCitation, regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`), 0.7},
	{models.ReferenceTypeURL, regexp.MustCompile(`https?://[^\s)\]}>,"']+`), 0.95},
}

// captionNumberPattern pulls the stated number out of a table caption
var captionNumberPattern = regexp.MustCompile(`(?i)\btable\s+(\d+)`)

// captionNumber returns the number a caption declares, or ""
func captionNumber(caption string) string {
	match := captionNumberPattern.FindStringSubmatch(caption)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// DetectReferences scans every text node for cross-references and
// resolves targets where the graph holds a unique match. Duplicate
// (source, type, target) hits are collapsed.
func (b *Builder) DetectReferences(g *graph.Graph) []models.DetectedReference {
	var refs []models.DetectedReference
	seen := make(map[string]struct{})

	for _, node := range g.Nodes() {
		if node.Type != models.NodeTypeParagraph && node.Type != models.NodeTypeSection && node.Type != models.NodeTypeHeading {
			continue
		}
		for _, rp := range referencePatterns {
			for _, match := range rp.Pattern.FindAllStringSubmatch(node.Content, -1) {
				target := match[0]
				if len(match) > 1 {
					target = match[1]
				}
				key := node.ID + "\x00" + string(rp.Type) + "\x00" + target
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				refs = append(refs, models.DetectedReference{
					Type:         rp.Type,
					SourceNodeID: node.ID,
					TargetNodeID: b.resolveTarget(g, node.ID, rp.Type, target),
					Text:         match[0],
					Target:       target,
					Confidence:   rp.Confidence,
				})
			}
		}
	}
	return refs
}

// resolveTarget finds the unique graph node a reference points at.
// Numbered references match the target's stated number; ambiguous or
// unknown targets stay unresolved.
func (b *Builder) resolveTarget(g *graph.Graph, sourceID string, refType models.ReferenceType, target string) string {
	switch refType {
	case models.ReferenceTypePage:
		id := fmt.Sprintf("page-%s", target)
		if g.HasNode(id) {
			return id
		}
	case models.ReferenceTypeTable:
		return uniqueMatch(g, models.NodeTypeTable, sourceID, func(n *models.Node) bool {
			return nodeHasNumber(n, "tableNumber", "Table", target)
		})
	case models.ReferenceTypeFigure:
		return uniqueMatch(g, models.NodeTypeImage, sourceID, func(n *models.Node) bool {
			return nodeHasNumber(n, "figureNumber", "Figure", target)
		})
	case models.ReferenceTypeSection:
		prefix := target + " "
		return uniqueMatch(g, models.NodeTypeSection, sourceID, func(n *models.Node) bool {
			return strings.HasPrefix(n.Label, prefix) || strings.HasPrefix(n.Label, target+".") ||
				strings.HasPrefix(n.Content, prefix) || strings.HasPrefix(n.Content, target+".")
		})
	}
	return ""
}

// nodeHasNumber reports whether a table or image node exposes the
// referenced number, in metadata or in its leading content
func nodeHasNumber(n *models.Node, metaKey, word, number string) bool {
	if n.Metadata[metaKey] == number {
		return true
	}
	lead := n.Content
	if len(lead) > 80 {
		lead = lead[:80]
	}
	return strings.Contains(strings.ToLower(lead), strings.ToLower(word)+" "+number) ||
		strings.Contains(strings.ToLower(n.Metadata["caption"]), strings.ToLower(word)+" "+number)
}

// uniqueMatch returns the single node of the given type satisfying the
// filter, excluding the source node. Zero or many matches resolve to
// nothing.
func uniqueMatch(g *graph.Graph, t models.NodeType, sourceID string, filter func(*models.Node) bool) string {
	var found string
	for _, n := range g.NodesByType(t) {
		if n.ID == sourceID {
			continue
		}
		if filter != nil && !filter(n) {
			continue
		}
		if found != "" {
			return ""
		}
		found = n.ID
	}
	return found
}
