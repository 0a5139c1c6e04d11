package models

// NodeType classifies nodes in a document graph
type NodeType string

const (
	NodeTypeDocument  NodeType = "document"
	NodeTypeSection   NodeType = "section"
	NodeTypeParagraph NodeType = "paragraph"
	NodeTypeHeading   NodeType = "heading"
	NodeTypeTable     NodeType = "table"
	NodeTypeImage     NodeType = "image"
	NodeTypeList      NodeType = "list"
	NodeTypeCode      NodeType = "code"
	NodeTypeMetadata  NodeType = "metadata"
)

// EdgeType classifies relationships between graph nodes
type EdgeType string

const (
	EdgeTypeContains   EdgeType = "contains"
	EdgeTypeFollows    EdgeType = "follows"
	EdgeTypeReferences EdgeType = "references"
	EdgeTypeCites      EdgeType = "cites"
	EdgeTypeRelated    EdgeType = "related"
)

// Position locates a node's source text within the original document
type Position struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Node is one element of a document graph. Label is a short display
// name ("Page 3", a heading text, "Table: 4x2"); Content carries the
// node's full text.
type Node struct {
	ID         string            `json:"id"`
	Type       NodeType          `json:"type"`
	Label      string            `json:"label,omitempty"`
	Content    string            `json:"content"`
	Position   Position          `json:"position"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Edge is a directed, typed relationship between two nodes
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
}

// GraphStats summarizes graph shape for diagnostics and evaluation
type GraphStats struct {
	NodeCount    int              `json:"node_count"`
	EdgeCount    int              `json:"edge_count"`
	NodesByType  map[NodeType]int `json:"nodes_by_type"`
	EdgesByType  map[EdgeType]int `json:"edges_by_type"`
	MaxDepth     int              `json:"max_depth"`
	AvgOutDegree float64          `json:"avg_out_degree"`
}

// GraphData is the serializable form of a document graph, stored
// alongside the document record in badger
type GraphData struct {
	ID         string `json:"id" badgerhold:"key"`
	DocumentID string `json:"document_id" badgerhold:"index"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges"`
}
