package api

import (
	"net/http"

	"voxgate/pkg/tracker"
)

// StatsHandler exposes the per-provider synthesis counters.
type StatsHandler struct {
	tracker *tracker.Tracker
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t}
}

// ProviderStatsDTO is the wire form of one provider's counters.
type ProviderStatsDTO struct {
	Synthesized int64 `json:"synthesized"`
	Failures    int64 `json:"failures"`
	Retries     int64 `json:"retries"`
	FallbackIn  int64 `json:"fallback_in"`
	Played      int64 `json:"played"`
}

// HandleStats returns a snapshot of all provider counters.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()
	out := make(map[string]ProviderStatsDTO, len(snapshot))
	for provider, s := range snapshot {
		out[provider] = ProviderStatsDTO{
			Synthesized: s.Synthesized,
			Failures:    s.Failures,
			Retries:     s.Retries,
			FallbackIn:  s.FallbackIn,
			Played:      s.Played,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// HandleReset zeroes all counters.
func (h *StatsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	w.WriteHeader(http.StatusNoContent)
}
