package interfaces

import (
	"github.com/ternarybob/precis/internal/models"
)

// IProgressBus fans out per-document progress events to subscribers.
// Publish never blocks on slow subscribers; events to a full subscriber
// channel are dropped.
type IProgressBus interface {
	Publish(event models.ProgressEvent)
	Subscribe(documentID string) (<-chan models.ProgressEvent, func(), error)
	SubscriberCount(documentID string) int
	Close()
}

// IProgressTracker reports stage transitions for one document,
// translating stage-local percentages to the global scale
type IProgressTracker interface {
	StageStart(stage models.Stage, message string)
	StageProgress(stage models.Stage, percent int, message string)
	StageComplete(stage models.Stage)
	Complete(message string)
	Fail(stage models.Stage, errMsg, errKind string)
}
