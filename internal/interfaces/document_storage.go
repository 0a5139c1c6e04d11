package interfaces

import (
	"context"

	"github.com/ternarybob/precis/internal/models"
)

// IDocumentStorage persists document records, graphs, summaries and
// evaluation results. Status updates are monotonic: a terminal document
// never moves back to pending or processing.
type IDocumentStorage interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, opts models.ListOptions) (*models.ListResult, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg, errKind string) error
	DeleteDocument(ctx context.Context, id string) error
	GetStats(ctx context.Context) (*models.DocumentStats, error)

	SaveGraph(ctx context.Context, data *models.GraphData) error
	GetGraph(ctx context.Context, documentID string) (*models.GraphData, error)

	SaveImage(ctx context.Context, img *models.ExtractedImage) error
	ListImages(ctx context.Context, documentID string) ([]models.ExtractedImage, error)

	SaveSummary(ctx context.Context, summary *models.SummaryResult) error
	ListSummaries(ctx context.Context, documentID string) ([]models.SummaryResult, error)

	SaveEvaluation(ctx context.Context, eval *models.EvaluationResult) error
	ListEvaluations(ctx context.Context, documentID string) ([]models.EvaluationResult, error)

	Close() error
}
