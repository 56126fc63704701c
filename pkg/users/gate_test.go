package users

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxgate/pkg/model"
)

func TestGate_DecisionTable(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		state      model.PermissionState
		teamLevel  int
		minLevel   int
		wantAllow  bool
		wantReason model.DropReason
	}{
		{"Blacklisted", model.PermissionBlacklisted, 99, 0, false, model.DropBlacklisted},
		{"Denied", model.PermissionDenied, 99, 0, false, model.DropDenied},
		{"Allowed_IgnoresLevel", model.PermissionAllowed, 0, 10, true, ""},
		{"Unknown_SufficientLevel", model.PermissionUnknown, 5, 5, true, ""},
		{"Unknown_InsufficientLevel", model.PermissionUnknown, 4, 5, false, model.DropInsufficientTeam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			require.NoError(t, store.Put(ctx, &model.UserProfile{
				UserID: "u1",
				State:  tt.state,
			}))

			g := NewGate(store, tt.minLevel)
			dec, err := g.Check(ctx, "u1", "User One", tt.teamLevel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllow, dec.Allowed)
			assert.Equal(t, tt.wantReason, dec.Reason)
		})
	}
}

func TestGate_LazyProfileCreation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := NewGate(store, 0)

	_, err := store.Get(ctx, "newcomer")
	require.ErrorIs(t, err, ErrNotFound)

	dec, err := g.Check(ctx, "newcomer", "New Comer", 0)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	p, err := store.Get(ctx, "newcomer")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionUnknown, p.State)
	assert.Equal(t, "New Comer", p.DisplayName)
	assert.Equal(t, model.DefaultVolumeGain, p.VolumeGain)
}

// TestGate_BlacklistedNeverAllowed exercises the gate with randomly generated
// profiles: no blacklisted or denied user is ever let through, regardless of
// team level.
func TestGate_BlacklistedNeverAllowed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := NewGate(store, 3)

	rng := rand.New(rand.NewSource(42))
	states := []model.PermissionState{
		model.PermissionUnknown, model.PermissionAllowed,
		model.PermissionDenied, model.PermissionBlacklisted,
	}

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("user-%d", i)
		state := states[rng.Intn(len(states))]
		require.NoError(t, store.Put(ctx, &model.UserProfile{UserID: id, State: state}))

		dec, err := g.Check(ctx, id, id, rng.Intn(10))
		require.NoError(t, err)

		if state == model.PermissionBlacklisted || state == model.PermissionDenied {
			assert.False(t, dec.Allowed, "state %s must never pass the gate", state)
		}
		if state == model.PermissionAllowed {
			assert.True(t, dec.Allowed)
		}
	}
}

func TestGate_AdminOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := NewGate(store, 0)

	require.NoError(t, g.Blacklist(ctx, "troll"))
	p, err := g.Profile(ctx, "troll")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionBlacklisted, p.State)

	require.NoError(t, g.Allow(ctx, "troll"))
	p, _ = g.Profile(ctx, "troll")
	assert.Equal(t, model.PermissionAllowed, p.State)

	require.NoError(t, g.AssignVoice(ctx, "alice", "azure-speech", "en-US-AvaNeural", "cheerful"))
	p, err = g.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, p.HasAssignment())
	assert.Equal(t, "azure-speech", p.AssignedProvider)
	assert.Equal(t, "cheerful", p.AssignedEmotion)

	require.NoError(t, g.RemoveAssignment(ctx, "alice"))
	p, _ = g.Profile(ctx, "alice")
	assert.False(t, p.HasAssignment())

	// Gain is clamped to [0, 2.5].
	require.NoError(t, g.SetGain(ctx, "alice", 99))
	p, _ = g.Profile(ctx, "alice")
	assert.Equal(t, model.MaxVolumeGain, p.VolumeGain)

	require.NoError(t, g.SetGain(ctx, "alice", -1))
	p, _ = g.Profile(ctx, "alice")
	assert.Equal(t, model.MinVolumeGain, p.VolumeGain)
}

func TestGate_AssignVoiceValidation(t *testing.T) {
	g := NewGate(NewMemoryStore(), 0)
	err := g.AssignVoice(context.Background(), "u", "", "v", "")
	assert.Error(t, err)
}
