package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/models"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	require.NoError(t, g.AddNode(models.Node{ID: "doc", Type: models.NodeTypeDocument, Content: "Test Document"}))
	require.NoError(t, g.AddNode(models.Node{ID: "page1", Type: models.NodeTypeMetadata, Content: "Page 1", Position: models.Position{Page: 1}}))
	require.NoError(t, g.AddNode(models.Node{ID: "p1", Type: models.NodeTypeParagraph, Content: "First paragraph.", Position: models.Position{Page: 1, Start: 0, End: 16}}))
	require.NoError(t, g.AddNode(models.Node{ID: "p2", Type: models.NodeTypeParagraph, Content: "Second paragraph.", Position: models.Position{Page: 1, Start: 17, End: 34}}))
	require.NoError(t, g.AddEdge(models.Edge{From: "doc", To: "page1", Type: models.EdgeTypeContains, Weight: 1.0}))
	require.NoError(t, g.AddEdge(models.Edge{From: "page1", To: "p1", Type: models.EdgeTypeContains, Weight: 1.0}))
	require.NoError(t, g.AddEdge(models.Edge{From: "page1", To: "p2", Type: models.EdgeTypeContains, Weight: 1.0}))
	require.NoError(t, g.AddEdge(models.Edge{From: "p1", To: "p2", Type: models.EdgeTypeFollows, Weight: 1.0}))
	return g
}

func TestAddNode_RejectsDuplicates(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(models.Node{ID: "a", Type: models.NodeTypeParagraph}))

	err := g.AddNode(models.Node{ID: "a", Type: models.NodeTypeHeading})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node ID")
	assert.Equal(t, 1, g.NodeCount())
}

func TestAddNode_RejectsEmptyID(t *testing.T) {
	g := New()
	err := g.AddNode(models.Node{Type: models.NodeTypeParagraph})
	assert.Error(t, err)
}

func TestAddEdge_Validation(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(models.Node{ID: "a", Type: models.NodeTypeParagraph}))
	require.NoError(t, g.AddNode(models.Node{ID: "b", Type: models.NodeTypeParagraph}))

	tests := []struct {
		name    string
		edge    models.Edge
		wantErr string
	}{
		{
			name:    "self loop",
			edge:    models.Edge{From: "a", To: "a", Type: models.EdgeTypeRelated},
			wantErr: "self-loop",
		},
		{
			name:    "missing source",
			edge:    models.Edge{From: "x", To: "b", Type: models.EdgeTypeContains},
			wantErr: "source node not found",
		},
		{
			name:    "missing target",
			edge:    models.Edge{From: "a", To: "y", Type: models.EdgeTypeContains},
			wantErr: "target node not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddEdge(tt.edge)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddEdge_RejectsDuplicateTriple(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(models.Node{ID: "a", Type: models.NodeTypeParagraph}))
	require.NoError(t, g.AddNode(models.Node{ID: "b", Type: models.NodeTypeParagraph}))

	require.NoError(t, g.AddEdge(models.Edge{From: "a", To: "b", Type: models.EdgeTypeFollows}))

	// Same triple is rejected
	err := g.AddEdge(models.Edge{From: "a", To: "b", Type: models.EdgeTypeFollows})
	assert.Error(t, err)

	// Same endpoints with a different type is fine
	assert.NoError(t, g.AddEdge(models.Edge{From: "a", To: "b", Type: models.EdgeTypeReferences}))
	assert.Equal(t, 2, g.EdgeCount())
}

func TestNodesByType(t *testing.T) {
	g := buildTestGraph(t)

	paragraphs := g.NodesByType(models.NodeTypeParagraph)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, "p1", paragraphs[0].ID)
	assert.Equal(t, "p2", paragraphs[1].ID)

	assert.Empty(t, g.NodesByType(models.NodeTypeTable))
}

func TestNeighbors_FiltersByEdgeType(t *testing.T) {
	g := buildTestGraph(t)

	contained := g.Neighbors("page1", models.EdgeTypeContains)
	assert.Len(t, contained, 2)

	follows := g.Neighbors("p1", models.EdgeTypeFollows)
	require.Len(t, follows, 1)
	assert.Equal(t, "p2", follows[0].ID)

	// No type filter returns everything
	all := g.Neighbors("page1")
	assert.Len(t, all, 2)
}

func TestParentOfType(t *testing.T) {
	g := buildTestGraph(t)

	page := g.ParentOfType("p1", models.NodeTypeMetadata)
	require.NotNil(t, page)
	assert.Equal(t, "page1", page.ID)

	doc := g.ParentOfType("p1", models.NodeTypeDocument)
	require.NotNil(t, doc)
	assert.Equal(t, "doc", doc.ID)

	assert.Nil(t, g.ParentOfType("doc", models.NodeTypeSection))
}

func TestRoot(t *testing.T) {
	g := buildTestGraph(t)
	root := g.Root()
	require.NotNil(t, root)
	assert.Equal(t, "doc", root.ID)

	empty := New()
	assert.Nil(t, empty.Root())
}

func TestStats(t *testing.T) {
	g := buildTestGraph(t)
	stats := g.Stats()

	assert.Equal(t, 4, stats.NodeCount)
	assert.Equal(t, 4, stats.EdgeCount)
	assert.Equal(t, 2, stats.NodesByType[models.NodeTypeParagraph])
	assert.Equal(t, 3, stats.EdgesByType[models.EdgeTypeContains])
	assert.Equal(t, 1, stats.EdgesByType[models.EdgeTypeFollows])
	assert.Equal(t, 2, stats.MaxDepth)
	assert.InDelta(t, 1.0, stats.AvgOutDegree, 0.001)
}

func TestExportAndFromData_RoundTrip(t *testing.T) {
	g := buildTestGraph(t)

	data := g.Export("doc_abc")
	assert.Equal(t, "graph_doc_abc", data.ID)
	assert.Equal(t, "doc_abc", data.DocumentID)
	assert.Len(t, data.Nodes, 4)
	assert.Len(t, data.Edges, 4)

	rebuilt, err := FromData(data)
	require.NoError(t, err)
	assert.Equal(t, g.NodeCount(), rebuilt.NodeCount())
	assert.Equal(t, g.EdgeCount(), rebuilt.EdgeCount())
	require.NotNil(t, rebuilt.Root())
	assert.Equal(t, "doc", rebuilt.Root().ID)
}

func TestFromData_RejectsDanglingEdge(t *testing.T) {
	data := &models.GraphData{
		ID:         "graph_bad",
		DocumentID: "bad",
		Nodes:      []models.Node{{ID: "a", Type: models.NodeTypeDocument}},
		Edges:      []models.Edge{{From: "a", To: "missing", Type: models.EdgeTypeContains}},
	}
	_, err := FromData(data)
	assert.Error(t, err)
}

func TestSortNodesByPosition(t *testing.T) {
	nodes := []*models.Node{
		{ID: "c", Position: models.Position{Page: 2, Start: 0}},
		{ID: "b", Position: models.Position{Page: 1, Start: 50}},
		{ID: "a", Position: models.Position{Page: 1, Start: 10}},
	}
	SortNodesByPosition(nodes)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "b", nodes[1].ID)
	assert.Equal(t, "c", nodes[2].ID)
}
