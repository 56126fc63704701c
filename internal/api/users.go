package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"voxgate/pkg/model"
	"voxgate/pkg/pipeline"
	"voxgate/pkg/users"
)

// UsersHandler exposes the user profile administration operations.
type UsersHandler struct {
	pipeline *pipeline.Pipeline
}

// NewUsersHandler creates a UsersHandler.
func NewUsersHandler(p *pipeline.Pipeline) *UsersHandler {
	return &UsersHandler{pipeline: p}
}

// HandleList returns every known user profile.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.pipeline.Gate().Profiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// HandleGet returns one user profile.
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	profile, err := h.pipeline.Gate().Profile(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleSetState sets a user's permission state.
func (h *UsersHandler) HandleSetState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State model.PermissionState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.State.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}

	userID := r.PathValue("id")
	// Blacklisting through the pipeline also drops the user's pending items.
	if body.State == model.PermissionBlacklisted {
		removed, err := h.pipeline.BlacklistUser(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "state change failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": body.State, "removed_items": removed})
		return
	}

	if err := h.pipeline.Gate().SetState(r.Context(), userID, body.State); err != nil {
		writeError(w, http.StatusInternalServerError, "state change failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": body.State})
}

// HandleBlacklist blacklists a user and drops their pending queue items.
func (h *UsersHandler) HandleBlacklist(w http.ResponseWriter, r *http.Request) {
	removed, err := h.pipeline.BlacklistUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "blacklist failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed_items": removed})
}

// HandleAssignVoice assigns a provider/voice pair to a user.
func (h *UsersHandler) HandleAssignVoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider string `json:"provider"`
		Voice    string `json:"voice"`
		Emotion  string `json:"emotion,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Provider == "" || body.Voice == "" {
		writeError(w, http.StatusBadRequest, "provider and voice are required")
		return
	}
	if err := h.pipeline.Gate().AssignVoice(r.Context(), r.PathValue("id"), body.Provider, body.Voice, body.Emotion); err != nil {
		writeError(w, http.StatusInternalServerError, "assignment failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveVoice removes a user's voice assignment.
func (h *UsersHandler) HandleRemoveVoice(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.Gate().RemoveAssignment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, "removal failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetGain sets a user's per-item volume gain.
func (h *UsersHandler) HandleSetGain(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Gain float64 `json:"gain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.pipeline.Gate().SetGain(r.Context(), r.PathValue("id"), body.Gain); err != nil {
		writeError(w, http.StatusInternalServerError, "gain change failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
