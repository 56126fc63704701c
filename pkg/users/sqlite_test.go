package users

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxgate/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	in := &model.UserProfile{
		UserID:           "alice",
		DisplayName:      "Alice",
		State:            model.PermissionAllowed,
		AssignedProvider: "azure-speech",
		AssignedVoice:    "en-US-AvaNeural",
		AssignedEmotion:  "cheerful",
		VolumeGain:       1.5,
	}
	require.NoError(t, s.Put(ctx, in))

	out, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSQLiteStore_PutUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, &model.UserProfile{
		UserID: "bob", State: model.PermissionUnknown, VolumeGain: 1.0,
	}))
	require.NoError(t, s.Put(ctx, &model.UserProfile{
		UserID: "bob", State: model.PermissionBlacklisted, VolumeGain: 1.0,
	}))

	out, err := s.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionBlacklisted, out.State)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_All(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, &model.UserProfile{UserID: id, State: model.PermissionUnknown, VolumeGain: 1.0}))
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].UserID) // ordered by user_id
	assert.Equal(t, "c", all[2].UserID)
}
