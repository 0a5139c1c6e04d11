package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/models"
)

func newTestStorage(t *testing.T) *DocumentStorage {
	t.Helper()

	config := &common.BadgerConfig{
		Path: t.TempDir(),
	}
	db, err := NewBadgerDB(config, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewDocumentStorage(db, common.GetLogger())
}

func TestSaveAndGetDocument(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:       "doc_test1",
		Filename: "report.pdf",
		Status:   models.DocumentStatusPending,
	}
	require.NoError(t, storage.SaveDocument(ctx, doc))
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.IsZero())

	got, err := storage.GetDocument(ctx, "doc_test1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, models.DocumentStatusPending, got.Status)
}

func TestSaveDocument_RequiresID(t *testing.T) {
	storage := newTestStorage(t)
	err := storage.SaveDocument(context.Background(), &models.Document{Filename: "x.pdf"})
	assert.Error(t, err)
}

func TestGetDocument_NotFound(t *testing.T) {
	storage := newTestStorage(t)
	_, err := storage.GetDocument(context.Background(), "doc_missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpdateStatus_ForwardTransitions(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "doc_status", Filename: "a.pdf", Status: models.DocumentStatusPending}
	require.NoError(t, storage.SaveDocument(ctx, doc))

	require.NoError(t, storage.UpdateStatus(ctx, "doc_status", models.DocumentStatusProcessing, "", ""))
	require.NoError(t, storage.UpdateStatus(ctx, "doc_status", models.DocumentStatusCompleted, "", ""))

	got, err := storage.GetDocument(ctx, "doc_status")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestUpdateStatus_RejectsBackwardTransition(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "doc_back", Filename: "a.pdf", Status: models.DocumentStatusPending}
	require.NoError(t, storage.SaveDocument(ctx, doc))
	require.NoError(t, storage.UpdateStatus(ctx, "doc_back", models.DocumentStatusFailed, "parse failed", "invalid_pdf"))

	err := storage.UpdateStatus(ctx, "doc_back", models.DocumentStatusProcessing, "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")

	got, err := storage.GetDocument(ctx, "doc_back")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusFailed, got.Status)
	assert.Equal(t, "invalid_pdf", got.ErrorKind)
}

func TestListDocuments_FilterAndPaging(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	statuses := []models.DocumentStatus{
		models.DocumentStatusPending,
		models.DocumentStatusPending,
		models.DocumentStatusCompleted,
	}
	for i, status := range statuses {
		doc := &models.Document{
			ID:       "doc_list" + string(rune('a'+i)),
			Filename: "f.pdf",
			Status:   status,
		}
		require.NoError(t, storage.SaveDocument(ctx, doc))
	}

	pending, err := storage.ListDocuments(ctx, models.ListOptions{Status: models.DocumentStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending.Documents, 2)
	assert.Equal(t, 2, pending.Total)

	paged, err := storage.ListDocuments(ctx, models.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, paged.Documents, 2)
	assert.Equal(t, 3, paged.Total)

	offset, err := storage.ListDocuments(ctx, models.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offset.Documents, 1)
}

func TestGetStats(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveDocument(ctx, &models.Document{ID: "doc_s1", Status: models.DocumentStatusCompleted, SizeBytes: 1000}))
	require.NoError(t, storage.SaveDocument(ctx, &models.Document{ID: "doc_s2", Status: models.DocumentStatusFailed, SizeBytes: 500}))
	require.NoError(t, storage.SaveDocument(ctx, &models.Document{ID: "doc_s3", Status: models.DocumentStatusProcessing, SizeBytes: 250}))

	// One document from well outside the recent-upload window
	old := &models.Document{ID: "doc_s4", Status: models.DocumentStatusCompleted, SizeBytes: 100,
		CreatedAt: time.Now().Add(-48 * time.Hour)}
	require.NoError(t, storage.SaveDocument(ctx, old))

	stats, err := storage.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Processing)
	assert.Equal(t, int64(1850), stats.TotalSize)
	assert.Equal(t, 3, stats.RecentUploads, "uploads older than 24h are not recent")
}

func TestGraphRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	data := &models.GraphData{
		ID:         "graph_doc_g1",
		DocumentID: "doc_g1",
		Nodes: []models.Node{
			{ID: "doc", Type: models.NodeTypeDocument, Content: "Doc"},
			{ID: "p1", Type: models.NodeTypeParagraph, Content: "Text"},
		},
		Edges: []models.Edge{
			{From: "doc", To: "p1", Type: models.EdgeTypeContains, Weight: 1.0},
		},
	}
	require.NoError(t, storage.SaveGraph(ctx, data))

	got, err := storage.GetGraph(ctx, "doc_g1")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
	assert.Equal(t, models.EdgeTypeContains, got.Edges[0].Type)
}

func TestImagesSummariesEvaluations(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveImage(ctx, &models.ExtractedImage{
		ID: "img_1", DocumentID: "doc_x", Page: 2, Format: models.ImageFormatPNG,
	}))
	require.NoError(t, storage.SaveImage(ctx, &models.ExtractedImage{
		ID: "img_2", DocumentID: "doc_x", Page: 1, Format: models.ImageFormatPNG,
	}))

	images, err := storage.ListImages(ctx, "doc_x")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, 1, images[0].Page) // sorted by page

	require.NoError(t, storage.SaveSummary(ctx, &models.SummaryResult{
		ID: "sum_1", DocumentID: "doc_x", Type: models.SummaryTypeBulletPoints, Content: "Short.",
	}))
	summaries, err := storage.ListSummaries(ctx, "doc_x")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	require.NoError(t, storage.SaveEvaluation(ctx, &models.EvaluationResult{
		ID: "eval_1", DocumentID: "doc_x", SummaryID: "sum_1", Passed: true,
	}))
	evals, err := storage.ListEvaluations(ctx, "doc_x")
	require.NoError(t, err)
	assert.Len(t, evals, 1)
}

func TestDeleteDocument_CascadesDerivedRecords(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveDocument(ctx, &models.Document{ID: "doc_del", Status: models.DocumentStatusCompleted}))
	require.NoError(t, storage.SaveGraph(ctx, &models.GraphData{ID: "graph_doc_del", DocumentID: "doc_del"}))
	require.NoError(t, storage.SaveImage(ctx, &models.ExtractedImage{ID: "img_del", DocumentID: "doc_del"}))

	require.NoError(t, storage.DeleteDocument(ctx, "doc_del"))

	_, err := storage.GetDocument(ctx, "doc_del")
	assert.Error(t, err)
	_, err = storage.GetGraph(ctx, "doc_del")
	assert.Error(t, err)
	images, err := storage.ListImages(ctx, "doc_del")
	require.NoError(t, err)
	assert.Empty(t, images)

	// Deleting a missing document is a no-op
	assert.NoError(t, storage.DeleteDocument(ctx, "doc_never_existed"))
}
