// -----------------------------------------------------------------------
// Progress WebSocket Handler - Stream per-document pipeline events to
// connected clients
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/precis/internal/interfaces"
	"github.com/ternarybob/precis/internal/models"
	"github.com/ternarybob/precis/internal/services/progress"
)

// maxMessageSize bounds inbound client frames
const maxMessageSize = 1 << 20 // 1 MiB

// progressThrottle caps how often plain progress events reach a client.
// Terminal and heartbeat events are never throttled.
const progressThrottle = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// ProgressWSHandler streams progress bus events over WebSocket
type ProgressWSHandler struct {
	bus          interfaces.IProgressBus
	pingInterval time.Duration
	logger       arbor.ILogger
}

// NewProgressWSHandler creates a progress WebSocket handler
func NewProgressWSHandler(bus interfaces.IProgressBus, pingInterval time.Duration, logger arbor.ILogger) *ProgressWSHandler {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &ProgressWSHandler{
		bus:          bus,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// HandleProgress upgrades the connection and relays the document's
// progress stream until a terminal event or disconnect
func (h *ProgressWSHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	documentID := r.URL.Query().Get("documentId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	var writeMu sync.Mutex

	if documentID == "" {
		h.closeWith(conn, &writeMu, websocket.ClosePolicyViolation, "documentId query parameter is required")
		return
	}

	events, cancel, err := h.bus.Subscribe(documentID)
	if err != nil {
		if errors.Is(err, progress.ErrSubscriberLimit) {
			h.closeWith(conn, &writeMu, websocket.CloseTryAgainLater, "subscriber limit reached")
		} else {
			h.closeWith(conn, &writeMu, websocket.CloseInternalServerErr, "subscription failed")
		}
		return
	}
	defer cancel()

	h.logger.Debug().
		Str("document_id", documentID).
		Msg("Progress WebSocket client connected")

	if err := h.writeEvent(conn, &writeMu, models.ProgressEvent{
		Type:       models.EventTypeConnection,
		DocumentID: documentID,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		return
	}

	// Reader drains client frames; oversized or broken input ends the
	// connection
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if errors.Is(err, websocket.ErrReadLimit) {
					h.closeWith(conn, &writeMu, websocket.CloseUnsupportedData, "message too large")
				}
				return
			}
		}
	}()

	throttle := rate.NewLimiter(rate.Every(progressThrottle), 1)
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				// Terminal event already delivered, stream is over
				h.closeWith(conn, &writeMu, websocket.CloseNormalClosure, "")
				return
			}
			if event.Type == models.EventTypeProgress && !throttle.Allow() {
				continue
			}
			if err := h.writeEvent(conn, &writeMu, event); err != nil {
				h.logger.Debug().
					Err(err).
					Str("document_id", documentID).
					Msg("Progress WebSocket write failed")
				return
			}
		case <-ping.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-readerDone:
			h.closeWith(conn, &writeMu, websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (h *ProgressWSHandler) writeEvent(conn *websocket.Conn, writeMu *sync.Mutex, event models.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *ProgressWSHandler) closeWith(conn *websocket.Conn, writeMu *sync.Mutex, code int, reason string) {
	writeMu.Lock()
	defer writeMu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
