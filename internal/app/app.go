// -----------------------------------------------------------------------
// Application wiring - Construct every service once and hand out
// explicit references
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/handlers"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/services/evaluation"
	"github.com/ternarybob/precis/internal/services/export"
	"github.com/ternarybob/precis/internal/services/graphbuilder"
	"github.com/ternarybob/precis/internal/services/images"
	"github.com/ternarybob/precis/internal/services/llm"
	"github.com/ternarybob/precis/internal/services/orchestrator"
	"github.com/ternarybob/precis/internal/services/pdf"
	"github.com/ternarybob/precis/internal/services/progress"
	"github.com/ternarybob/precis/internal/services/prompts"
	"github.com/ternarybob/precis/internal/services/quota"
	"github.com/ternarybob/precis/internal/services/summarizer"
	"github.com/ternarybob/precis/internal/services/workers"
	badgerstore "github.com/ternarybob/precis/internal/storage/badger"
	"github.com/ternarybob/precis/internal/storage/filesystem"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB            *badgerstore.BadgerDB
	DocumentStore interfaces.IDocumentStorage
	Documents     interfaces.IObjectStorage
	ImageStore    interfaces.IObjectStorage

	// Singletons
	QuotaManager *quota.Manager
	LLMManager   *llm.Manager
	ProgressBus  *progress.Bus

	// Pipeline services
	Parser       *pdf.Parser
	Extractor    *images.Extractor
	Builder      *graphbuilder.Builder
	Prompts      *prompts.Service
	Summarizer   *summarizer.Service
	Evaluator    *evaluation.Service
	Exporter     *export.Service
	Pool         *workers.Pool
	Orchestrator *orchestrator.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DocumentHandler *handlers.DocumentHandler
	ProgressHandler *handlers.ProgressWSHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	return app, nil
}

func (a *App) initStorage() error {
	db, err := badgerstore.NewBadgerDB(&a.Config.Storage.Badger, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open badger database: %w", err)
	}
	a.DB = db
	a.DocumentStore = badgerstore.NewDocumentStorage(db, a.Logger)

	documents, err := filesystem.NewObjectStorage(&a.Config.Storage.Filesystem, a.Config.Storage.Filesystem.Documents, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize document storage: %w", err)
	}
	a.Documents = documents

	imageStore, err := filesystem.NewObjectStorage(&a.Config.Storage.Filesystem, a.Config.Storage.Filesystem.Images, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize image storage: %w", err)
	}
	a.ImageStore = imageStore

	return nil
}

func (a *App) initServices(ctx context.Context) error {
	// Singletons first: quota routing, provider manager, progress bus
	a.QuotaManager = quota.NewManager(&a.Config.Quota, a.Logger)
	a.QuotaManager.StartResetTicker()

	providers := []interfaces.ILLMProvider{
		llm.NewOpenAIProvider(&a.Config.OpenAI, a.Logger),
		llm.NewGeminiProvider(ctx, &a.Config.Gemini, a.Logger),
		llm.NewClaudeProvider(&a.Config.Claude, a.Logger),
	}
	var selector llm.ModelSelector
	if a.Config.Quota.Enabled {
		selector = a.QuotaManager
	}
	a.LLMManager = llm.NewManager(providers, &a.Config.LLM, selector, a.Logger)

	a.ProgressBus = progress.NewBus(&a.Config.Progress, a.Config.HeartbeatInterval(), a.Config.ConnectionTimeout(), a.Logger)

	// Pipeline services
	a.Parser = pdf.NewParser(a.Logger)
	rasterizer := images.NewPopplerRasterizer(a.Config.Images.RasterBinary, a.Logger)
	ocr := images.NewTesseractOCR(&a.Config.OCR, a.Config.OCRTimeout(), a.Logger)
	a.Extractor = images.NewExtractor(rasterizer, ocr, a.ImageStore, &a.Config.Images, a.Logger)
	a.Builder = graphbuilder.NewBuilder(a.Logger)
	a.Prompts = prompts.NewService(a.Logger)
	a.Summarizer = summarizer.NewService(a.LLMManager, a.Prompts, a.Logger)
	a.Evaluator = evaluation.NewService(a.LLMManager, a.Logger)
	a.Exporter = export.NewService(a.Logger)

	a.Pool = workers.NewPool(a.Config.Workers.PoolSize, a.Logger)
	a.Pool.Start()

	a.Orchestrator = orchestrator.NewService(
		a.DocumentStore,
		a.Documents,
		a.Parser,
		a.Extractor,
		a.Builder,
		a.Summarizer,
		a.Evaluator,
		a.ProgressBus,
		a.Pool,
		a.Config.DocumentTimeout(),
		a.Logger,
	)
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Documents, a.LLMManager, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.DocumentStore, a.Documents, a.Orchestrator, a.Exporter, a.Logger)
	a.ProgressHandler = handlers.NewProgressWSHandler(a.ProgressBus, a.Config.HeartbeatInterval(), a.Logger)
}

// Close shuts components down in reverse dependency order
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Shutdown()
	}
	if a.ProgressBus != nil {
		a.ProgressBus.Close()
	}
	if a.QuotaManager != nil {
		a.QuotaManager.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
