// -----------------------------------------------------------------------
// Progress Bus - Per-document fan-out of pipeline events with
// heartbeats and idle subscriber cleanup
// -----------------------------------------------------------------------

package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
)

// ErrSubscriberLimit is returned when a document already has the
// maximum number of subscribers
var ErrSubscriberLimit = errors.New("subscriber limit reached for document")

// subscriberBuffer is the per-subscriber channel depth. Publish drops
// events for subscribers that fall this far behind.
const subscriberBuffer = 32

type subscriber struct {
	ch           chan models.ProgressEvent
	lastActivity time.Time
	closed       bool
}

// Bus fans progress events out to per-document subscriber sets. All
// mutations of a document's subscriber set are serialized under the bus
// lock so subscribers observe events in emission order.
type Bus struct {
	mu             sync.Mutex
	docs           map[string]map[int]*subscriber
	nextID         int
	maxSubscribers int
	idleTimeout    time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
	logger         arbor.ILogger
}

var _ interfaces.IProgressBus = (*Bus)(nil)

// NewBus creates a progress bus and starts its heartbeat loop
func NewBus(config *common.ProgressConfig, heartbeatInterval, idleTimeout time.Duration, logger arbor.ILogger) *Bus {
	maxSubs := config.MaxSubscribers
	if maxSubs <= 0 {
		maxSubs = 8
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}

	b := &Bus{
		docs:           make(map[string]map[int]*subscriber),
		maxSubscribers: maxSubs,
		idleTimeout:    idleTimeout,
		stop:           make(chan struct{}),
		logger:         logger,
	}
	go b.heartbeatLoop(heartbeatInterval)
	return b
}

// Subscribe registers a listener for one document's events. The
// returned cancel func must be called when the listener goes away.
func (b *Bus) Subscribe(documentID string) (<-chan models.ProgressEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.docs[documentID]
	if subs == nil {
		subs = make(map[int]*subscriber)
		b.docs[documentID] = subs
	}
	if len(subs) >= b.maxSubscribers {
		return nil, nil, ErrSubscriberLimit
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:           make(chan models.ProgressEvent, subscriberBuffer),
		lastActivity: time.Now(),
	}
	subs[id] = sub

	b.logger.Debug().
		Str("document_id", documentID).
		Int("subscribers", len(subs)).
		Msg("Progress subscriber added")

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.dropLocked(documentID, id)
	}
	return sub.ch, cancel, nil
}

// Publish delivers an event to every subscriber of its document. Slow
// subscribers have the event dropped rather than blocking the
// pipeline. Terminal events close the document's subscriber set.
func (b *Bus) Publish(event models.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.docs[event.DocumentID]
	for id, sub := range subs {
		select {
		case sub.ch <- event:
			sub.lastActivity = time.Now()
		default:
			b.logger.Warn().
				Str("document_id", event.DocumentID).
				Int("subscriber_id", id).
				Str("event_type", string(event.Type)).
				Msg("Subscriber channel full, dropping event")
		}
	}

	if isTerminal(event.Type) {
		b.closeDocLocked(event.DocumentID)
	}
}

// SubscriberCount reports how many listeners a document has
func (b *Bus) SubscriberCount(documentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs[documentID])
}

// Close shuts the bus down and closes every subscriber channel
func (b *Bus) Close() {
	b.stopOnce.Do(func() { close(b.stop) })

	b.mu.Lock()
	defer b.mu.Unlock()
	for documentID := range b.docs {
		b.closeDocLocked(documentID)
	}
}

// heartbeatLoop pings subscribers and evicts idle ones
func (b *Bus) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *Bus) sweep() {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for documentID, subs := range b.docs {
		for id, sub := range subs {
			if now.Sub(sub.lastActivity) > b.idleTimeout {
				b.logger.Debug().
					Str("document_id", documentID).
					Int("subscriber_id", id).
					Msg("Dropping idle progress subscriber")
				b.dropLocked(documentID, id)
				continue
			}

			// Heartbeats keep the wire alive but are not activity:
			// only real published events defer idle eviction
			heartbeat := models.ProgressEvent{
				Type:       models.EventTypeHeartbeat,
				DocumentID: documentID,
				Timestamp:  now.UTC(),
			}
			select {
			case sub.ch <- heartbeat:
			default:
			}
		}
	}
}

func (b *Bus) dropLocked(documentID string, id int) {
	subs := b.docs[documentID]
	sub, ok := subs[id]
	if !ok {
		return
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.docs, documentID)
	}
}

func (b *Bus) closeDocLocked(documentID string) {
	for id := range b.docs[documentID] {
		b.dropLocked(documentID, id)
	}
}

// isTerminal reports whether an event ends a document's stream
func isTerminal(t models.ProgressEventType) bool {
	return t == models.EventTypeSummaryComplete || t == models.EventTypeError
}
