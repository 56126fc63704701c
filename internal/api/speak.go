package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"voxgate/pkg/model"
	"voxgate/pkg/pipeline"
	"voxgate/pkg/tts"
)

// SpeakHandler accepts speak requests and exposes the provider inventory.
type SpeakHandler struct {
	pipeline *pipeline.Pipeline
	registry *tts.Registry
}

// NewSpeakHandler creates a SpeakHandler.
func NewSpeakHandler(p *pipeline.Pipeline, registry *tts.Registry) *SpeakHandler {
	return &SpeakHandler{pipeline: p, registry: registry}
}

// HandleSpeak runs one request through the pipeline. Drops are reported
// with 200 and accepted=false; only infrastructure failures are 5xx.
func (h *SpeakHandler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	var req model.SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}
	if req.Source == "" {
		req.Source = model.SourceManual
	}

	outcome, err := h.pipeline.Submit(r.Context(), req)
	if err != nil {
		slog.Error("Speak submission failed", "user", req.RequesterID, "error", err)
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	status := http.StatusOK
	if outcome.Accepted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

// providerInfo is the wire form of one registered provider.
type providerInfo struct {
	ID        string   `json:"id"`
	Streaming bool     `json:"streaming"`
	Format    string   `json:"format"`
	Languages []string `json:"languages"`
	Voices    int      `json:"voices"`
}

// HandleProviders lists registered providers with their capabilities.
func (h *SpeakHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	out := make([]providerInfo, 0)
	for _, id := range h.registry.IDs() {
		p, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		cap := p.Capability()
		langs := make([]string, 0, len(cap.DefaultByLanguage))
		for lang := range cap.Languages() {
			langs = append(langs, lang)
		}
		out = append(out, providerInfo{
			ID:        id,
			Streaming: cap.Streaming,
			Format:    cap.Format,
			Languages: langs,
			Voices:    len(cap.Voices),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
