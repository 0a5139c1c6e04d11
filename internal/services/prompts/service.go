// -----------------------------------------------------------------------
// Prompt Service - Select graph nodes per summary type and assemble
// grounded prompt context
// -----------------------------------------------------------------------

package prompts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/models"
)

// maxContextTokens caps the assembled context so prompts stay inside
// model input windows
const maxContextTokens = 12_000

// BuiltPrompt is a ready-to-send prompt with provenance
type BuiltPrompt struct {
	System    string
	User      string
	NodesUsed int
}

// Service builds summary prompts from a document graph
type Service struct {
	logger arbor.ILogger
}

// NewService creates a prompt service
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Build selects the nodes relevant to the summary type, assembles them
// into a grounded context and substitutes it into the template
func (s *Service) Build(g *graph.Graph, opts models.SummaryOptions) (*BuiltPrompt, error) {
	tpl, ok := Template(opts.Type)
	if !ok {
		return nil, common.NewError(common.KindInvalidOption, "unknown summary type: %s", opts.Type)
	}
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = 500
	}

	nodes := s.selectNodes(g, opts.Type)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("graph has no content nodes for %s summary", opts.Type)
	}

	context := s.assembleContext(g, nodes)

	replacer := strings.NewReplacer(
		"{context}", context,
		"{maxLength}", strconv.Itoa(maxLength),
	)

	return &BuiltPrompt{
		System:    replacer.Replace(SystemPrompt(opts.Style)),
		User:      replacer.Replace(tpl.Instruction) + focusInstructions(opts),
		NodesUsed: len(nodes),
	}, nil
}

// selectNodes picks the graph nodes a summary type cares about, in
// reading order
func (s *Service) selectNodes(g *graph.Graph, summaryType models.SummaryType) []*models.Node {
	var nodes []*models.Node

	switch summaryType {
	case models.SummaryTypeExecutive:
		nodes = append(nodes, structureNodes(g)...)
		for _, n := range g.NodesByType(models.NodeTypeParagraph) {
			if isKeyParagraph(n.Content) {
				nodes = append(nodes, n)
			}
		}
		// A document with no keyword hits still needs content
		if len(nodes) == 0 {
			nodes = textNodes(g)
		}
	case models.SummaryTypeDetailed:
		nodes = append(nodes, textNodes(g)...)
		nodes = append(nodes, g.NodesByType(models.NodeTypeTable)...)
		nodes = append(nodes, g.NodesByType(models.NodeTypeList)...)
	case models.SummaryTypeChapter:
		nodes = append(nodes, structureNodes(g)...)
		for _, n := range g.NodesByType(models.NodeTypeParagraph) {
			if g.ParentOfType(n.ID, models.NodeTypeSection) != nil {
				nodes = append(nodes, n)
			}
		}
		// No section structure to chapter by, take the paragraphs as-is
		if len(nodes) == 0 {
			nodes = textNodes(g)
		}
	case models.SummaryTypeBulletPoints:
		nodes = append(nodes, textNodes(g)...)
		nodes = append(nodes, g.NodesByType(models.NodeTypeList)...)
	case models.SummaryTypeNarrative:
		nodes = textNodes(g)
	case models.SummaryTypeTechnical:
		nodes = append(nodes, textNodes(g)...)
		nodes = append(nodes, g.NodesByType(models.NodeTypeTable)...)
		nodes = append(nodes, g.NodesByType(models.NodeTypeCode)...)
		nodes = append(nodes, g.NodesByType(models.NodeTypeList)...)
	default:
		nodes = textNodes(g)
	}

	nodes = dropEmpty(nodes)
	graph.SortNodesByPosition(nodes)
	return nodes
}

// assembleContext renders nodes grouped under their governing section,
// orphaned content last under "Additional Content". Output is trimmed
// to the context token cap.
func (s *Service) assembleContext(g *graph.Graph, nodes []*models.Node) string {
	type group struct {
		heading string
		lines   []string
	}

	var groups []group
	index := make(map[string]int)
	var extra []string

	for _, n := range nodes {
		line := renderNode(n)
		if line == "" {
			continue
		}

		if n.Type == models.NodeTypeSection || n.Type == models.NodeTypeHeading {
			if _, exists := index[n.ID]; !exists {
				index[n.ID] = len(groups)
				groups = append(groups, group{heading: nodeLabel(n)})
			}
			continue
		}

		if section := g.ParentOfType(n.ID, models.NodeTypeSection); section != nil {
			if i, exists := index[section.ID]; exists {
				groups[i].lines = append(groups[i].lines, line)
				continue
			}
		}
		extra = append(extra, line)
	}

	var b strings.Builder
	for _, grp := range groups {
		b.WriteString("## ")
		b.WriteString(grp.heading)
		b.WriteString("\n")
		for _, line := range grp.lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(extra) > 0 {
		if len(groups) > 0 {
			b.WriteString("## Additional Content\n")
		}
		for _, line := range extra {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	context := strings.TrimSpace(b.String())
	return truncateToTokens(context, maxContextTokens)
}

// renderNode formats one node for the prompt, tagged with its node ID
// so summaries can ground their claims
func renderNode(n *models.Node) string {
	switch n.Type {
	case models.NodeTypeTable:
		return fmt.Sprintf("[Node:%s] %s\n%s", n.ID, nodeLabel(n), n.Content)
	case models.NodeTypeImage:
		line := fmt.Sprintf("[Node:%s] %s", n.ID, nodeLabel(n))
		if ocr := n.Metadata["ocr_text"]; ocr != "" {
			line += "\nText in image: " + ocr
		}
		return line
	default:
		if strings.TrimSpace(n.Content) == "" {
			return ""
		}
		return fmt.Sprintf("[Node:%s] (p.%d) %s", n.ID, n.Position.Page, n.Content)
	}
}

// focusInstructions appends the caller's focus and exclude terms to the
// instruction
func focusInstructions(opts models.SummaryOptions) string {
	var b strings.Builder
	if len(opts.Focus) > 0 {
		b.WriteString("\nFocus in particular on: ")
		b.WriteString(strings.Join(opts.Focus, ", "))
		b.WriteString(".")
	}
	if len(opts.Exclude) > 0 {
		b.WriteString("\nDo not cover: ")
		b.WriteString(strings.Join(opts.Exclude, ", "))
		b.WriteString(".")
	}
	return b.String()
}

func nodeLabel(n *models.Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.Content
}

// isKeyParagraph reports whether a paragraph carries executive signal:
// a keyword hit or enough length to be substantive
func isKeyParagraph(text string) bool {
	if len(text) > keyParagraphLength {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keyParagraphKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// structureNodes returns the document's section skeleton, headings
// included for graphs that carry unpromoted ones
func structureNodes(g *graph.Graph) []*models.Node {
	nodes := g.NodesByType(models.NodeTypeSection)
	return append(nodes, g.NodesByType(models.NodeTypeHeading)...)
}

func textNodes(g *graph.Graph) []*models.Node {
	nodes := structureNodes(g)
	return append(nodes, g.NodesByType(models.NodeTypeParagraph)...)
}

func dropEmpty(nodes []*models.Node) []*models.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if strings.TrimSpace(n.Content) != "" || n.Type == models.NodeTypeTable || n.Type == models.NodeTypeImage {
			out = append(out, n)
		}
	}
	return out
}

// truncateToTokens trims text to roughly the token budget, cutting at a
// line boundary
func truncateToTokens(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
