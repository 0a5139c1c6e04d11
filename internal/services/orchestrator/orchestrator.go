// -----------------------------------------------------------------------
// Document Orchestrator - Runs the staged processing pipeline, persists
// state transitions and emits progress
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/graph"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/evaluation"
	"github.com/ternarybob/precis/internal/services/graphbuilder"
	"github.com/ternarybob/precis/internal/services/images"
	"github.com/ternarybob/precis/internal/services/pdf"
	"github.com/ternarybob/precis/internal/services/progress"
	"github.com/ternarybob/precis/internal/services/summarizer"
	"github.com/ternarybob/precis/internal/services/workers"
)

// Service drives documents through the pipeline:
// PARSING -> IMAGE_EXTRACTION (non-fatal) -> GRAPH_BUILD, then on
// request SUMMARIZATION -> EVALUATION. Stage failures follow per-stage
// semantics: parsing and graph build are fatal, image extraction
// degrades to an empty image set, evaluation never fails the pipeline.
type Service struct {
	store      interfaces.IDocumentStorage
	objects    interfaces.IObjectStorage
	parser     *pdf.Parser
	extractor  *images.Extractor
	builder    *graphbuilder.Builder
	summarizer *summarizer.Service
	evaluator  *evaluation.Service
	bus        interfaces.IProgressBus
	pool       *workers.Pool
	docTimeout time.Duration
	logger     arbor.ILogger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService wires the pipeline together. The pool bounds how many
// documents process concurrently.
func NewService(
	store interfaces.IDocumentStorage,
	objects interfaces.IObjectStorage,
	parser *pdf.Parser,
	extractor *images.Extractor,
	builder *graphbuilder.Builder,
	summarizerSvc *summarizer.Service,
	evaluator *evaluation.Service,
	bus interfaces.IProgressBus,
	pool *workers.Pool,
	docTimeout time.Duration,
	logger arbor.ILogger,
) *Service {
	if docTimeout <= 0 {
		docTimeout = 10 * time.Minute
	}
	return &Service{
		store:      store,
		objects:    objects,
		parser:     parser,
		extractor:  extractor,
		builder:    builder,
		summarizer: summarizerSvc,
		evaluator:  evaluator,
		bus:        bus,
		pool:       pool,
		docTimeout: docTimeout,
		cancels:    make(map[string]context.CancelFunc),
		logger:     logger,
	}
}

// ProcessAsync queues a document for processing on the worker pool
func (s *Service) ProcessAsync(documentID string) error {
	return s.pool.Submit(func(ctx context.Context) error {
		if err := s.Process(ctx, documentID); err != nil {
			s.logger.Error().
				Err(err).
				Str("document_id", documentID).
				Msg("Document processing failed")
			return fmt.Errorf("process %s: %w", documentID, err)
		}
		return nil
	})
}

// Process runs the ingest stages for one document: read, parse,
// extract images, build and persist the graph
func (s *Service) Process(ctx context.Context, documentID string) error {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.docTimeout)
	s.register(documentID, cancel)
	defer s.unregister(documentID)

	tracker := progress.NewTracker(documentID, s.bus, s.logger)

	if err := s.store.UpdateStatus(ctx, documentID, models.DocumentStatusProcessing, "", ""); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}

	// UPLOADING: the file is already in object storage, read it back
	tracker.StageStart(models.StageUploading, "Reading document")
	data, err := s.readObject(ctx, doc.StoragePath)
	if err != nil {
		return s.fail(ctx, tracker, documentID, models.StageUploading, err)
	}
	tracker.StageComplete(models.StageUploading)

	// PARSING: fatal on error
	tracker.StageStart(models.StageParsing, "Parsing PDF")
	if err := s.parser.Validate(data); err != nil {
		return s.fail(ctx, tracker, documentID, models.StageParsing, err)
	}
	pdfDoc, err := s.parser.Parse(ctx, data)
	if err != nil {
		return s.fail(ctx, tracker, documentID, models.StageParsing, err)
	}
	doc.PageCount = pdfDoc.PageCount
	doc.Status = models.DocumentStatusProcessing
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		s.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("Failed to persist page count")
	}
	tracker.StageComplete(models.StageParsing)

	// IMAGE_EXTRACTION: non-fatal, continue with whatever was collected
	tracker.StageStart(models.StageImageExtraction, "Extracting page images")
	extracted := s.extractImages(ctx, tracker, documentID, data, pdfDoc.PageCount)
	if ctx.Err() != nil {
		return s.fail(ctx, tracker, documentID, models.StageImageExtraction, ctx.Err())
	}
	tracker.StageComplete(models.StageImageExtraction)

	// GRAPH_BUILD: fatal on error
	tracker.StageStart(models.StageGraphBuild, "Building document graph")
	g, err := s.builder.Build(pdfDoc, doc, extracted)
	if err != nil {
		return s.fail(ctx, tracker, documentID, models.StageGraphBuild, err)
	}
	if err := s.store.SaveGraph(ctx, g.Export(documentID)); err != nil {
		return s.fail(ctx, tracker, documentID, models.StageGraphBuild, err)
	}
	tracker.StageComplete(models.StageGraphBuild)

	if err := s.store.UpdateStatus(ctx, documentID, models.DocumentStatusCompleted, "", ""); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	tracker.StageStart(models.StageCompleted, "Document ready")

	s.logger.Info().
		Str("document_id", documentID).
		Int("pages", pdfDoc.PageCount).
		Int("nodes", g.NodeCount()).
		Int("edges", g.EdgeCount()).
		Msg("Document processed")
	return nil
}

// Summarize generates the requested summaries from the persisted graph
// and evaluates each one. A summarization failure leaves the document
// status untouched and skips evaluation; evaluation itself never fails.
func (s *Service) Summarize(ctx context.Context, documentID string, optsList []models.SummaryOptions) ([]models.SummaryResult, []models.EvaluationResult, error) {
	data, err := s.store.GetGraph(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load graph for %s: %w", documentID, err)
	}
	g, err := graph.FromData(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rebuild graph for %s: %w", documentID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.docTimeout)
	defer cancel()

	tracker := progress.NewTracker(documentID, s.bus, s.logger)

	tracker.StageStart(models.StageSummarization, "Generating summaries")
	summaries, err := s.summarizer.SummarizeMultiple(ctx, documentID, g, optsList)
	if err != nil {
		kind := classify(ctx, err)
		tracker.Fail(models.StageSummarization, err.Error(), string(kind))
		return nil, nil, err
	}
	for i := range summaries {
		if err := s.store.SaveSummary(ctx, &summaries[i]); err != nil {
			kind := classify(ctx, err)
			tracker.Fail(models.StageSummarization, err.Error(), string(kind))
			return nil, nil, fmt.Errorf("failed to store summary: %w", err)
		}
	}
	tracker.StageComplete(models.StageSummarization)

	tracker.StageStart(models.StageEvaluation, "Evaluating summaries")
	evals := make([]models.EvaluationResult, 0, len(summaries))
	for i := range summaries {
		result := s.evaluator.Evaluate(ctx, documentID, &summaries[i], g)
		if err := s.store.SaveEvaluation(ctx, result); err != nil {
			s.logger.Warn().
				Err(err).
				Str("document_id", documentID).
				Str("summary_id", summaries[i].ID).
				Msg("Failed to store evaluation result")
			continue
		}
		evals = append(evals, *result)
		tracker.StageProgress(models.StageEvaluation, (i+1)*100/len(summaries), "")
	}

	tracker.Complete(fmt.Sprintf("%d summaries generated", len(summaries)))
	return summaries, evals, nil
}

// Cancel aborts an in-flight document task. Returns false when the
// document has no active task.
func (s *Service) Cancel(documentID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[documentID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown stops accepting work and waits for in-flight documents
func (s *Service) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.pool.Shutdown()
}

// extractImages renders pages to images, tolerating every failure mode
// short of cancellation. Collected images are persisted as they stand.
func (s *Service) extractImages(ctx context.Context, tracker interfaces.IProgressTracker, documentID string, data []byte, pageCount int) []models.ExtractedImage {
	tempFile, err := s.writeTempPDF(documentID, data)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("Image extraction skipped")
		return nil
	}
	defer os.Remove(tempFile)

	result, err := s.extractor.ExtractPages(ctx, documentID, tempFile, pageCount, func(done, total int) {
		tracker.StageProgress(models.StageImageExtraction, done*100/total, fmt.Sprintf("Page %d of %d", done, total))
	})
	if err != nil && !common.IsKind(err, common.KindImageExtractionAborted) {
		s.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("Image extraction failed, continuing without images")
		if result == nil {
			return nil
		}
	}
	if result == nil {
		return nil
	}

	for i := range result.Images {
		if err := s.store.SaveImage(ctx, &result.Images[i]); err != nil {
			s.logger.Warn().
				Err(err).
				Str("document_id", documentID).
				Str("image_id", result.Images[i].ID).
				Msg("Failed to store image record")
		}
	}
	return result.Images
}

// fail records a fatal stage error: status -> failed, error event, task
// terminated
func (s *Service) fail(ctx context.Context, tracker interfaces.IProgressTracker, documentID string, stage models.Stage, err error) error {
	kind := classify(ctx, err)

	// Status writes must survive the task context being cancelled
	updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if updateErr := s.store.UpdateStatus(updateCtx, documentID, models.DocumentStatusFailed, err.Error(), string(kind)); updateErr != nil {
		s.logger.Error().
			Err(updateErr).
			Str("document_id", documentID).
			Msg("Failed to record failure status")
	}

	tracker.Fail(stage, err.Error(), string(kind))

	s.logger.Error().
		Err(err).
		Str("document_id", documentID).
		Str("stage", string(stage)).
		Str("error_kind", string(kind)).
		Msg("Stage failed")
	return fmt.Errorf("%s stage failed: %w", stage, err)
}

func (s *Service) readObject(ctx context.Context, path string) ([]byte, error) {
	reader, err := s.objects.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored document: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (s *Service) writeTempPDF(documentID string, data []byte) (string, error) {
	path := filepath.Join(os.TempDir(), documentID+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage temp PDF: %w", err)
	}
	return path, nil
}

func (s *Service) register(documentID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[documentID] = cancel
}

func (s *Service) unregister(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[documentID]; ok {
		cancel()
		delete(s.cancels, documentID)
	}
}

// classify maps an error to its kind, folding in context state
func classify(ctx context.Context, err error) common.ErrorKind {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return common.KindCancelled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return common.KindTimeout
	default:
		return common.KindOf(err)
	}
}
