package models

// ReferenceType classifies cross-references detected in document text
type ReferenceType string

const (
	ReferenceTypeSection  ReferenceType = "section"
	ReferenceTypeTable    ReferenceType = "table"
	ReferenceTypeFigure   ReferenceType = "figure"
	ReferenceTypePage     ReferenceType = "page"
	ReferenceTypeCitation ReferenceType = "citation"
	ReferenceTypeURL      ReferenceType = "url"
)

// DetectedReference is a cross-reference found in a node's content.
// TargetNodeID is empty when the target could not be resolved to a
// unique graph node. Confidence reflects how specific the matched
// pattern is and becomes the weight of the materialized edge.
type DetectedReference struct {
	Type         ReferenceType `json:"type"`
	SourceNodeID string        `json:"source_node_id"`
	TargetNodeID string        `json:"target_node_id,omitempty"`
	Text         string        `json:"text"`
	Target       string        `json:"target"`
	Confidence   float64       `json:"confidence"`
}
