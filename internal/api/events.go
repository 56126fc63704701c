package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"voxgate/pkg/eventlog"
)

// EventsHandler exposes the operational event stream: recent history over
// plain JSON and a live feed over WebSocket.
type EventsHandler struct {
	log      *eventlog.Log
	upgrader websocket.Upgrader
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(log *eventlog.Log) *EventsHandler {
	return &EventsHandler{
		log: log,
		upgrader: websocket.Upgrader{
			// Local control surface; the dashboard runs on another port.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleRecent returns the last n events, oldest first. Default 50.
func (h *EventsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, h.log.Recent(n))
}

// HandleWebSocket upgrades and forwards live events until the client
// disconnects.
func (h *EventsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Event stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, ch := h.log.Subscribe()
	defer h.log.Unsubscribe(id)

	// Reader goroutine: detects client disconnect (we never expect data).
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
