// Package model holds the shared domain types of the voxgate pipeline.
package model

// Source identifies where a speak request originated.
type Source string

const (
	SourceChat   Source = "chat"   // live chat message
	SourceEvent  Source = "event"  // scripted event (follow, gift, alert, ...)
	SourceManual Source = "manual" // operator-triggered
)

// PermissionState is the four-way classification governing whether a user's
// requests are queued.
type PermissionState string

const (
	PermissionUnknown     PermissionState = "unknown"
	PermissionAllowed     PermissionState = "allowed"
	PermissionDenied      PermissionState = "denied"
	PermissionBlacklisted PermissionState = "blacklisted"
)

// IsValid reports whether s is a recognised permission state.
func (s PermissionState) IsValid() bool {
	switch s {
	case PermissionUnknown, PermissionAllowed, PermissionDenied, PermissionBlacklisted:
		return true
	}
	return false
}

// DropReason explains why a request was rejected or silently discarded.
type DropReason string

const (
	DropBlacklisted      DropReason = "blacklisted"
	DropDenied           DropReason = "denied"
	DropInsufficientTeam DropReason = "insufficient_team_level"
	DropPrefixFiltered   DropReason = "prefix_filtered"
	DropProfanity        DropReason = "profanity"
	DropEmptyText        DropReason = "empty_text"
	DropDuplicate        DropReason = "duplicate"
	DropQueueFull        DropReason = "queue_full"
	DropRateLimited      DropReason = "rate_limited"
)

// SpeakRequest is a single utterance request. Immutable once created;
// the pipeline never writes back into it.
type SpeakRequest struct {
	Text              string `json:"text"`
	RequesterID       string `json:"requester_id"`
	DisplayName       string `json:"display_name"`
	Source            Source `json:"source"`
	RequestedVoice    string `json:"requested_voice,omitempty"`
	RequestedProvider string `json:"requested_provider,omitempty"`
	TeamLevel         int    `json:"team_level"`
	IsSubscriber      bool   `json:"is_subscriber"`
	Priority          int    `json:"priority,omitempty"`
}

// UserProfile is the per-user state owned by the permission gate. It is
// mutated only through explicit admin operations, never by the pipeline
// itself (apart from lazy creation on first sight).
type UserProfile struct {
	UserID           string          `json:"user_id"`
	DisplayName      string          `json:"display_name"`
	State            PermissionState `json:"state"`
	AssignedProvider string          `json:"assigned_provider,omitempty"`
	AssignedVoice    string          `json:"assigned_voice,omitempty"`
	AssignedEmotion  string          `json:"assigned_emotion,omitempty"`
	VolumeGain       float64         `json:"volume_gain"`
}

// Volume gain bounds. Values outside are clamped by the gate on assignment.
const (
	MinVolumeGain     = 0.0
	MaxVolumeGain     = 2.5
	DefaultVolumeGain = 1.0
)

// HasAssignment reports whether the profile carries an explicit
// provider/voice assignment.
func (p *UserProfile) HasAssignment() bool {
	return p != nil && p.AssignedVoice != "" && p.AssignedProvider != ""
}
