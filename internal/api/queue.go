package api

import (
	"encoding/json"
	"net/http"
	"time"

	"voxgate/pkg/config"
	"voxgate/pkg/pipeline"
	"voxgate/pkg/queue"
)

// QueueHandler exposes queue inspection and control operations.
type QueueHandler struct {
	pipeline *pipeline.Pipeline
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(p *pipeline.Pipeline) *QueueHandler {
	return &QueueHandler{pipeline: p}
}

// itemDTO is the wire form of a queue item. Audio payloads stay internal.
type itemDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	Provider    string `json:"provider"`
	Voice       string `json:"voice"`
	Priority    int    `json:"priority"`
	State       string `json:"state"`
	EnqueuedAt  string `json:"enqueued_at"`
}

func toDTO(it *queue.Item) itemDTO {
	return itemDTO{
		ID:          it.ID,
		DisplayName: it.DisplayName,
		Text:        it.Text,
		Provider:    it.Provider,
		Voice:       it.Voice,
		Priority:    it.Priority,
		State:       string(it.State),
		EnqueuedAt:  it.EnqueuedAt.Format(time.RFC3339),
	}
}

// HandleStatus returns the current item and the pending queue in order.
func (h *QueueHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var current *itemDTO
	if it := h.pipeline.Processor().Current(); it != nil {
		dto := toDTO(it)
		current = &dto
	}

	pending := h.pipeline.Queue().Snapshot()
	items := make([]itemDTO, 0, len(pending))
	for _, it := range pending {
		items = append(items, toDTO(it))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"current": current,
		"pending": items,
		"paused":  h.pipeline.Processor().Paused(),
	})
}

// HandleClear drops all pending items.
func (h *QueueHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"removed": h.pipeline.ClearQueue()})
}

// HandleSkip cancels the currently playing item.
func (h *QueueHandler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"skipped": h.pipeline.Skip()})
}

// HandlePause stops consumption after the current item.
func (h *QueueHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Processor().Pause()
	w.WriteHeader(http.StatusNoContent)
}

// HandleResume restarts consumption.
func (h *QueueHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Processor().Resume()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetRateLimit changes the per-user admission window.
func (h *QueueHandler) HandleSetRateLimit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Count    int `json:"count"`
		WindowMS int `json:"window_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Count < 0 || body.WindowMS <= 0 {
		writeError(w, http.StatusBadRequest, "count must be >= 0 and window_ms positive")
		return
	}
	h.pipeline.SetRateLimit(body.Count, time.Duration(body.WindowMS)*time.Millisecond)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetProfanityMode swaps the content filter's profanity mode.
func (h *QueueHandler) HandleSetProfanityMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode config.ProfanityMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.Mode.IsValid() {
		writeError(w, http.StatusBadRequest, "mode must be off, moderate or strict")
		return
	}
	if err := h.pipeline.SetProfanityMode(body.Mode); err != nil {
		writeError(w, http.StatusInternalServerError, "filter rebuild failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
