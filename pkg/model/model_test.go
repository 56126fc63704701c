package model

import "testing"

func TestPermissionStateIsValid(t *testing.T) {
	for _, s := range []PermissionState{PermissionUnknown, PermissionAllowed, PermissionDenied, PermissionBlacklisted} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if PermissionState("banned").IsValid() {
		t.Error("unrecognised state should be invalid")
	}
}

func TestHasAssignment(t *testing.T) {
	var nilProfile *UserProfile
	if nilProfile.HasAssignment() {
		t.Error("nil profile must not report an assignment")
	}
	p := &UserProfile{AssignedProvider: "azure-speech"}
	if p.HasAssignment() {
		t.Error("provider without voice is not a complete assignment")
	}
	p.AssignedVoice = "en-US-AvaMultilingualNeural"
	if !p.HasAssignment() {
		t.Error("provider and voice together form an assignment")
	}
}
