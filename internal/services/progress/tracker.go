package progress

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
)

// Tracker reports one document's stage transitions to the bus,
// translating stage-local percentages to the global 0-100 scale
type Tracker struct {
	documentID string
	bus        interfaces.IProgressBus
	logger     arbor.ILogger

	mu         sync.Mutex
	stage      models.Stage
	percent    int
	startedAt  time.Time
	lastUpdate time.Time
}

var _ interfaces.IProgressTracker = (*Tracker)(nil)

// NewTracker creates a tracker for one document
func NewTracker(documentID string, bus interfaces.IProgressBus, logger arbor.ILogger) *Tracker {
	return &Tracker{
		documentID: documentID,
		bus:        bus,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// StageStart announces a stage at its starting percentage
func (t *Tracker) StageStart(stage models.Stage, message string) {
	t.publish(stage, stage.GlobalPercent(0), message)
}

// StageProgress reports progress within a stage (0-100 stage-local)
func (t *Tracker) StageProgress(stage models.Stage, percent int, message string) {
	t.publish(stage, stage.GlobalPercent(percent), message)
}

// StageComplete marks a stage finished at its upper boundary
func (t *Tracker) StageComplete(stage models.Stage) {
	t.publish(stage, stage.GlobalPercent(100), "")
}

// Complete ends the document's stream with a terminal event
func (t *Tracker) Complete(message string) {
	t.mu.Lock()
	t.stage = models.StageCompleted
	t.percent = 100
	t.lastUpdate = time.Now()
	elapsed := time.Since(t.startedAt)
	t.mu.Unlock()

	t.logger.Info().
		Str("document_id", t.documentID).
		Dur("elapsed", elapsed).
		Msg("Document processing complete")

	t.bus.Publish(models.ProgressEvent{
		Type:       models.EventTypeSummaryComplete,
		DocumentID: t.documentID,
		Stage:      models.StageCompleted,
		Percent:    100,
		Message:    message,
	})
}

// Fail ends the document's stream with an error event
func (t *Tracker) Fail(stage models.Stage, errMsg, errKind string) {
	t.mu.Lock()
	t.stage = models.StageFailed
	t.lastUpdate = time.Now()
	percent := t.percent
	t.mu.Unlock()

	t.bus.Publish(models.ProgressEvent{
		Type:       models.EventTypeError,
		DocumentID: t.documentID,
		Stage:      stage,
		Percent:    percent,
		Error:      errMsg,
		ErrorKind:  errKind,
	})
}

// Stage returns the tracker's current stage and global percent
func (t *Tracker) Stage() (models.Stage, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage, t.percent
}

func (t *Tracker) publish(stage models.Stage, globalPercent int, message string) {
	t.mu.Lock()
	t.stage = stage
	t.percent = globalPercent
	t.lastUpdate = time.Now()
	t.mu.Unlock()

	t.bus.Publish(models.ProgressEvent{
		Type:       models.EventTypeProgress,
		DocumentID: t.documentID,
		Stage:      stage,
		Percent:    globalPercent,
		Message:    message,
	})
}
