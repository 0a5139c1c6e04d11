package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
)

// DocumentStorage implements the IDocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.IDocumentStorage = (*DocumentStorage)(nil)

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) *DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("document not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) ListDocuments(ctx context.Context, opts models.ListOptions) (*models.ListResult, error) {
	query := &badgerhold.Query{}
	if opts.Status != "" {
		query = badgerhold.Where("Status").Eq(opts.Status).Index("Status")
	}

	var all []models.Document
	if err := s.db.Store().Find(&all, query.SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	total := len(all)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := total
	if opts.Limit > 0 && start+opts.Limit < total {
		end = start + opts.Limit
	}

	return &models.ListResult{
		Documents: all[start:end],
		Total:     total,
	}, nil
}

// UpdateStatus applies a forward-only status transition. Terminal
// documents never return to pending or processing.
func (s *DocumentStorage) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg, errKind string) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if !doc.Status.CanTransitionTo(status) {
		return fmt.Errorf("invalid status transition %s -> %s for document %s", doc.Status, status, id)
	}

	doc.Status = status
	doc.Error = errMsg
	doc.ErrorKind = errKind
	if status.IsTerminal() {
		now := time.Now()
		doc.CompletedAt = &now
	}

	return s.SaveDocument(ctx, doc)
}

func (s *DocumentStorage) DeleteDocument(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	// Best effort cleanup of derived records
	_ = s.db.Store().Delete("graph_"+id, &models.GraphData{})
	_ = s.db.Store().DeleteMatching(&models.ExtractedImage{}, badgerhold.Where("DocumentID").Eq(id))
	_ = s.db.Store().DeleteMatching(&models.SummaryResult{}, badgerhold.Where("DocumentID").Eq(id))
	_ = s.db.Store().DeleteMatching(&models.EvaluationResult{}, badgerhold.Where("DocumentID").Eq(id))
	return nil
}

func (s *DocumentStorage) GetStats(ctx context.Context) (*models.DocumentStats, error) {
	var all []models.Document
	if err := s.db.Store().Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats := &models.DocumentStats{Total: len(all)}
	recentCutoff := time.Now().Add(-24 * time.Hour)
	for _, doc := range all {
		switch doc.Status {
		case models.DocumentStatusPending:
			stats.Pending++
		case models.DocumentStatusProcessing:
			stats.Processing++
		case models.DocumentStatusCompleted:
			stats.Completed++
		case models.DocumentStatusFailed:
			stats.Failed++
		}
		stats.TotalSize += doc.SizeBytes
		if doc.CreatedAt.After(recentCutoff) {
			stats.RecentUploads++
		}
	}
	return stats, nil
}

func (s *DocumentStorage) SaveGraph(ctx context.Context, data *models.GraphData) error {
	if data.ID == "" {
		return fmt.Errorf("graph ID is required")
	}
	if err := s.db.Store().Upsert(data.ID, data); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetGraph(ctx context.Context, documentID string) (*models.GraphData, error) {
	var data models.GraphData
	if err := s.db.Store().Get("graph_"+documentID, &data); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("graph not found for document: %s", documentID)
		}
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	return &data, nil
}

func (s *DocumentStorage) SaveImage(ctx context.Context, img *models.ExtractedImage) error {
	if img.ID == "" {
		return fmt.Errorf("image ID is required")
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(img.ID, img); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListImages(ctx context.Context, documentID string) ([]models.ExtractedImage, error) {
	var images []models.ExtractedImage
	err := s.db.Store().Find(&images, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").SortBy("Page"))
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

func (s *DocumentStorage) SaveSummary(ctx context.Context, summary *models.SummaryResult) error {
	if summary.ID == "" {
		return fmt.Errorf("summary ID is required")
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(summary.ID, summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListSummaries(ctx context.Context, documentID string) ([]models.SummaryResult, error) {
	var summaries []models.SummaryResult
	err := s.db.Store().Find(&summaries, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

func (s *DocumentStorage) SaveEvaluation(ctx context.Context, eval *models.EvaluationResult) error {
	if eval.ID == "" {
		return fmt.Errorf("evaluation ID is required")
	}
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(eval.ID, eval); err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListEvaluations(ctx context.Context, documentID string) ([]models.EvaluationResult, error) {
	var evals []models.EvaluationResult
	err := s.db.Store().Find(&evals, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return evals, nil
}

func (s *DocumentStorage) Close() error {
	return s.db.Close()
}
