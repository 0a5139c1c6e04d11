package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/evaluation"
	"github.com/ternarybob/precis/internal/services/graphbuilder"
	"github.com/ternarybob/precis/internal/services/images"
	"github.com/ternarybob/precis/internal/services/pdf"
	"github.com/ternarybob/precis/internal/services/progress"
	"github.com/ternarybob/precis/internal/services/prompts"
	"github.com/ternarybob/precis/internal/services/summarizer"
	"github.com/ternarybob/precis/internal/services/workers"
	"github.com/ternarybob/precis/internal/storage/filesystem"
)

// memoryStore is an in-memory IDocumentStorage for pipeline tests
type memoryStore struct {
	mu          sync.Mutex
	docs        map[string]*models.Document
	graphs      map[string]*models.GraphData
	imageRecs   map[string][]models.ExtractedImage
	summaries   map[string][]models.SummaryResult
	evaluations map[string][]models.EvaluationResult
	statusLog   []models.DocumentStatus
}

var _ interfaces.IDocumentStorage = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		docs:        make(map[string]*models.Document),
		graphs:      make(map[string]*models.GraphData),
		imageRecs:   make(map[string][]models.ExtractedImage),
		summaries:   make(map[string][]models.SummaryResult),
		evaluations: make(map[string][]models.EvaluationResult),
	}
}

func (m *memoryStore) SaveDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memoryStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	copied := *doc
	return &copied, nil
}

func (m *memoryStore) ListDocuments(ctx context.Context, opts models.ListOptions) (*models.ListResult, error) {
	return &models.ListResult{}, nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg, errKind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.Status = status
	doc.Error = errMsg
	doc.ErrorKind = errKind
	m.statusLog = append(m.statusLog, status)
	return nil
}

func (m *memoryStore) DeleteDocument(ctx context.Context, id string) error { return nil }

func (m *memoryStore) GetStats(ctx context.Context) (*models.DocumentStats, error) {
	return &models.DocumentStats{}, nil
}

func (m *memoryStore) SaveGraph(ctx context.Context, data *models.GraphData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[data.DocumentID] = data
	return nil
}

func (m *memoryStore) GetGraph(ctx context.Context, documentID string) (*models.GraphData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.graphs[documentID]
	if !ok {
		return nil, errors.New("graph not found")
	}
	return data, nil
}

func (m *memoryStore) SaveImage(ctx context.Context, img *models.ExtractedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageRecs[img.DocumentID] = append(m.imageRecs[img.DocumentID], *img)
	return nil
}

func (m *memoryStore) ListImages(ctx context.Context, documentID string) ([]models.ExtractedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageRecs[documentID], nil
}

func (m *memoryStore) SaveSummary(ctx context.Context, summary *models.SummaryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.DocumentID] = append(m.summaries[summary.DocumentID], *summary)
	return nil
}

func (m *memoryStore) ListSummaries(ctx context.Context, documentID string) ([]models.SummaryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaries[documentID], nil
}

func (m *memoryStore) SaveEvaluation(ctx context.Context, eval *models.EvaluationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[eval.DocumentID] = append(m.evaluations[eval.DocumentID], *eval)
	return nil
}

func (m *memoryStore) ListEvaluations(ctx context.Context, documentID string) ([]models.EvaluationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluations[documentID], nil
}

func (m *memoryStore) Close() error { return nil }

// fakeLLM answers judge calls with a score and everything else with
// summary text
type fakeLLM struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *fakeLLM) GenerateText(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return nil, common.NewError(common.KindNoProvidersAvailable, "no providers configured")
	}
	text := "The document reports revenue growth [Node:p1-0] (p.1)."
	for _, msg := range req.Messages {
		if msg.Role == "system" && strings.Contains(msg.Text, "evaluation judge") {
			text = "0.9"
			break
		}
	}
	return &interfaces.LLMResponse{Text: text, Model: "fake-model", Provider: "fake", PromptTokens: 50, ResponseTokens: 20}, nil
}

func (f *fakeLLM) AnalyzeImage(ctx context.Context, req interfaces.LLMRequest) (*interfaces.LLMResponse, error) {
	return f.GenerateText(ctx, req)
}

func (f *fakeLLM) Providers() []interfaces.ILLMProvider             { return nil }
func (f *fakeLLM) ActiveProvider() (interfaces.ILLMProvider, error) { return nil, nil }

// unavailableRasterizer skips image extraction entirely
type unavailableRasterizer struct{}

func (unavailableRasterizer) Available() bool { return false }
func (unavailableRasterizer) RenderPage(ctx context.Context, pdfPath string, page int, outDir string, opts interfaces.RasterOptions) (string, error) {
	return "", errors.New("unavailable")
}

type noopOCR struct{}

func (noopOCR) Available() bool { return false }
func (noopOCR) ExtractText(ctx context.Context, imagePath string) (string, error) {
	return "", nil
}

func buildTestPDF(t *testing.T) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Pipeline Fixture", false)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.MultiCell(190, 6, "Introduction\n\nRevenue grew twelve percent this year. The outlook remains positive.", "", "L", false)
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

type testEnv struct {
	svc   *Service
	store *memoryStore
	bus   *progress.Bus
	llm   *fakeLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := common.GetLogger()

	store := newMemoryStore()
	objects, err := filesystem.NewObjectStorage(&common.FilesystemConfig{NameStrategy: "original"}, t.TempDir(), logger)
	require.NoError(t, err)

	llm := &fakeLLM{}
	bus := progress.NewBus(&common.ProgressConfig{MaxSubscribers: 4}, time.Minute, time.Minute, logger)
	t.Cleanup(bus.Close)

	extractor := images.NewExtractor(unavailableRasterizer{}, noopOCR{}, objects, &common.ImagesConfig{}, logger)
	promptSvc := prompts.NewService(logger)

	pool := workers.NewPool(2, logger)
	pool.Start()

	svc := NewService(
		store,
		objects,
		pdf.NewParser(logger),
		extractor,
		graphbuilder.NewBuilder(logger),
		summarizer.NewService(llm, promptSvc, logger),
		evaluation.NewService(llm, logger),
		bus,
		pool,
		time.Minute,
		logger,
	)
	return &testEnv{svc: svc, store: store, bus: bus, llm: llm}
}

// uploadDoc stages PDF bytes into object storage and creates the record
func uploadDoc(t *testing.T, env *testEnv, id string, data []byte) {
	t.Helper()
	stored, err := env.svc.objects.Save(context.Background(), bytes.NewReader(data), interfaces.SaveOptions{OriginalName: id + ".pdf"})
	require.NoError(t, err)
	require.NoError(t, env.store.SaveDocument(context.Background(), &models.Document{
		ID:          id,
		Filename:    id + ".pdf",
		Status:      models.DocumentStatusPending,
		SizeBytes:   int64(len(data)),
		StoragePath: stored.Path,
		CreatedAt:   time.Now(),
	}))
}

func TestProcess_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	uploadDoc(t, env, "doc_1", buildTestPDF(t))

	ch, cancel, err := env.bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, env.svc.Process(context.Background(), "doc_1"))

	doc, err := env.store.GetDocument(context.Background(), "doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCompleted, doc.Status)
	assert.Empty(t, doc.Error)

	data, err := env.store.GetGraph(context.Background(), "doc_1")
	require.NoError(t, err)
	assert.NotEmpty(t, data.Nodes)

	// Progress percentages never go backwards
	last := -1
	seen := map[models.Stage]bool{}
	for {
		select {
		case event := <-ch:
			assert.GreaterOrEqual(t, event.Percent, last)
			last = event.Percent
			seen[event.Stage] = true
		default:
			assert.True(t, seen[models.StageParsing])
			assert.True(t, seen[models.StageGraphBuild])
			assert.Equal(t, 100, last)
			return
		}
	}
}

func TestProcess_InvalidPDFIsFatal(t *testing.T) {
	env := newTestEnv(t)
	uploadDoc(t, env, "doc_bad", bytes.Repeat([]byte("not a pdf "), 50))

	ch, cancel, err := env.bus.Subscribe("doc_bad")
	require.NoError(t, err)
	defer cancel()

	err = env.svc.Process(context.Background(), "doc_bad")
	require.Error(t, err)

	doc, getErr := env.store.GetDocument(context.Background(), "doc_bad")
	require.NoError(t, getErr)
	assert.Equal(t, models.DocumentStatusFailed, doc.Status)
	assert.Equal(t, string(common.KindInvalidPDF), doc.ErrorKind)

	var errorEvent *models.ProgressEvent
	for event := range ch {
		if event.Type == models.EventTypeError {
			copied := event
			errorEvent = &copied
			break
		}
	}
	require.NotNil(t, errorEvent, "failure must emit an error event")
	assert.Equal(t, models.StageParsing, errorEvent.Stage)
	assert.Equal(t, string(common.KindInvalidPDF), errorEvent.ErrorKind)
}

func TestProcess_RasterizerUnavailableIsNonFatal(t *testing.T) {
	env := newTestEnv(t)
	uploadDoc(t, env, "doc_2", buildTestPDF(t))

	require.NoError(t, env.svc.Process(context.Background(), "doc_2"))

	doc, err := env.store.GetDocument(context.Background(), "doc_2")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCompleted, doc.Status)

	imgs, err := env.store.ListImages(context.Background(), "doc_2")
	require.NoError(t, err)
	assert.Empty(t, imgs, "no images without a rasterizer, pipeline still completes")
}

func TestProcess_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.Process(context.Background(), "doc_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load document")
}

func TestSummarize_StoresSummariesAndEvaluations(t *testing.T) {
	env := newTestEnv(t)
	uploadDoc(t, env, "doc_3", buildTestPDF(t))
	require.NoError(t, env.svc.Process(context.Background(), "doc_3"))

	ch, cancel, err := env.bus.Subscribe("doc_3")
	require.NoError(t, err)
	defer cancel()

	summaries, evals, err := env.svc.Summarize(context.Background(), "doc_3", []models.SummaryOptions{
		{Type: models.SummaryTypeDetailed},
		{Type: models.SummaryTypeExecutive},
	})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Len(t, evals, 2)

	stored, err := env.store.ListSummaries(context.Background(), "doc_3")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	storedEvals, err := env.store.ListEvaluations(context.Background(), "doc_3")
	require.NoError(t, err)
	assert.Len(t, storedEvals, 2)
	for _, ev := range storedEvals {
		assert.InDelta(t, 0.9, ev.RAGAS.Faithfulness, 0.001)
	}

	var sawComplete bool
	for event := range ch {
		if event.Type == models.EventTypeSummaryComplete {
			sawComplete = true
			assert.Contains(t, event.Message, "2 summaries")
			break
		}
	}
	assert.True(t, sawComplete)
}

func TestSummarize_FailureStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	uploadDoc(t, env, "doc_4", buildTestPDF(t))
	require.NoError(t, env.svc.Process(context.Background(), "doc_4"))

	env.llm.fail = true

	ch, cancel, err := env.bus.Subscribe("doc_4")
	require.NoError(t, err)
	defer cancel()

	_, _, err = env.svc.Summarize(context.Background(), "doc_4", []models.SummaryOptions{
		{Type: models.SummaryTypeDetailed},
	})
	require.Error(t, err)

	stored, listErr := env.store.ListSummaries(context.Background(), "doc_4")
	require.NoError(t, listErr)
	assert.Empty(t, stored, "failed summaries must not be stored")

	evals, listErr := env.store.ListEvaluations(context.Background(), "doc_4")
	require.NoError(t, listErr)
	assert.Empty(t, evals, "evaluation must not run after summarization failure")

	// Status stays completed
	doc, getErr := env.store.GetDocument(context.Background(), "doc_4")
	require.NoError(t, getErr)
	assert.Equal(t, models.DocumentStatusCompleted, doc.Status)

	var sawError bool
	for event := range ch {
		if event.Type == models.EventTypeError {
			sawError = true
			assert.Equal(t, models.StageSummarization, event.Stage)
			break
		}
	}
	assert.True(t, sawError)
}

func TestSummarize_NoGraph(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.svc.Summarize(context.Background(), "doc_none", []models.SummaryOptions{
		{Type: models.SummaryTypeNarrative},
	})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "graph"))
}

func TestCancel_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	assert.False(t, env.svc.Cancel("doc_nope"))
}
