package users

import (
	"context"
	"errors"
	"fmt"

	"voxgate/pkg/model"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  model.DropReason // set when not allowed
	Profile *model.UserProfile
}

// Gate decides whether a requester is allowed to speak.
//
// The check is a pure, synchronous decision against the profile store; its
// only side effect is lazy profile creation on first sight.
type Gate struct {
	store        Store
	minTeamLevel int
}

// NewGate creates a Gate backed by the given store.
func NewGate(store Store, minTeamLevel int) *Gate {
	return &Gate{store: store, minTeamLevel: minTeamLevel}
}

// Check looks up (or lazily creates) the requester's profile and applies the
// decision table:
//
//	Blacklisted -> rejected (blacklisted)
//	Denied      -> rejected (denied)
//	Allowed     -> accepted unconditionally
//	Unknown     -> accepted only if teamLevel >= configured minimum
func (g *Gate) Check(ctx context.Context, userID, displayName string, teamLevel int) (Decision, error) {
	profile, err := g.lookupOrCreate(ctx, userID, displayName)
	if err != nil {
		return Decision{}, err
	}

	switch profile.State {
	case model.PermissionBlacklisted:
		return Decision{Allowed: false, Reason: model.DropBlacklisted, Profile: profile}, nil
	case model.PermissionDenied:
		return Decision{Allowed: false, Reason: model.DropDenied, Profile: profile}, nil
	case model.PermissionAllowed:
		return Decision{Allowed: true, Profile: profile}, nil
	default: // Unknown
		if teamLevel >= g.minTeamLevel {
			return Decision{Allowed: true, Profile: profile}, nil
		}
		return Decision{Allowed: false, Reason: model.DropInsufficientTeam, Profile: profile}, nil
	}
}

func (g *Gate) lookupOrCreate(ctx context.Context, userID, displayName string) (*model.UserProfile, error) {
	profile, err := g.store.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("gate: profile lookup: %w", err)
	}

	profile = &model.UserProfile{
		UserID:      userID,
		DisplayName: displayName,
		State:       model.PermissionUnknown,
		VolumeGain:  model.DefaultVolumeGain,
	}
	if err := g.store.Put(ctx, profile); err != nil {
		return nil, fmt.Errorf("gate: profile create: %w", err)
	}
	return profile, nil
}

// SetState transitions a user to the given permission state.
func (g *Gate) SetState(ctx context.Context, userID string, state model.PermissionState) error {
	if !state.IsValid() {
		return fmt.Errorf("gate: invalid permission state %q", state)
	}
	profile, err := g.lookupOrCreate(ctx, userID, "")
	if err != nil {
		return err
	}
	profile.State = state
	return g.store.Put(ctx, profile)
}

// Allow marks the user as always accepted.
func (g *Gate) Allow(ctx context.Context, userID string) error {
	return g.SetState(ctx, userID, model.PermissionAllowed)
}

// Deny marks the user as rejected.
func (g *Gate) Deny(ctx context.Context, userID string) error {
	return g.SetState(ctx, userID, model.PermissionDenied)
}

// Blacklist marks the user as permanently rejected.
func (g *Gate) Blacklist(ctx context.Context, userID string) error {
	return g.SetState(ctx, userID, model.PermissionBlacklisted)
}

// AssignVoice pins a (provider, voice) pair to the user, optionally with an
// emotion. The assignment always wins over language detection.
func (g *Gate) AssignVoice(ctx context.Context, userID, provider, voice, emotion string) error {
	if provider == "" || voice == "" {
		return errors.New("gate: provider and voice must not be empty")
	}
	profile, err := g.lookupOrCreate(ctx, userID, "")
	if err != nil {
		return err
	}
	profile.AssignedProvider = provider
	profile.AssignedVoice = voice
	profile.AssignedEmotion = emotion
	return g.store.Put(ctx, profile)
}

// RemoveAssignment clears any pinned voice from the user.
func (g *Gate) RemoveAssignment(ctx context.Context, userID string) error {
	profile, err := g.lookupOrCreate(ctx, userID, "")
	if err != nil {
		return err
	}
	profile.AssignedProvider = ""
	profile.AssignedVoice = ""
	profile.AssignedEmotion = ""
	return g.store.Put(ctx, profile)
}

// SetGain sets the per-user volume gain, clamped to the valid range.
func (g *Gate) SetGain(ctx context.Context, userID string, gain float64) error {
	if gain < model.MinVolumeGain {
		gain = model.MinVolumeGain
	}
	if gain > model.MaxVolumeGain {
		gain = model.MaxVolumeGain
	}
	profile, err := g.lookupOrCreate(ctx, userID, "")
	if err != nil {
		return err
	}
	profile.VolumeGain = gain
	return g.store.Put(ctx, profile)
}

// Profile returns the stored profile for userID, or ErrNotFound.
func (g *Gate) Profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	return g.store.Get(ctx, userID)
}

// Profiles returns all stored profiles.
func (g *Gate) Profiles(ctx context.Context) ([]*model.UserProfile, error) {
	return g.store.All(ctx)
}
