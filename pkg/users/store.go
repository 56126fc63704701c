// Package users owns per-user profiles and the permission gate.
//
// Profiles are created lazily the first time a user is seen and mutated only
// through explicit admin operations on the [Gate]; the speak pipeline itself
// never writes to them.
package users

import (
	"context"
	"errors"

	"voxgate/pkg/model"
)

// ErrNotFound is returned when a profile does not exist in the store.
var ErrNotFound = errors.New("users: profile not found")

// Store persists user profiles, keyed by user ID.
//
// Implementations must be safe for concurrent use. No cross-user locking is
// required; each profile is independent.
type Store interface {
	// Get returns the profile for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*model.UserProfile, error)

	// Put inserts or replaces a profile.
	Put(ctx context.Context, profile *model.UserProfile) error

	// All returns every stored profile. Used by the admin API.
	All(ctx context.Context) ([]*model.UserProfile, error)
}
