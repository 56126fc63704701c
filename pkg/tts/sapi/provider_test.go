package sapi

import (
	"testing"

	"voxgate/pkg/tts"
)

var _ tts.Provider = (*Provider)(nil)

func TestNewProvider(t *testing.T) {
	p := NewProvider()
	if p == nil {
		t.Fatal("Expected NewProvider to return a provider")
	}
	if p.ID() != "windows-sapi" {
		t.Errorf("ID = %q", p.ID())
	}
}

func TestCapability(t *testing.T) {
	cap := NewProvider().Capability()
	if cap.Streaming {
		t.Error("SAPI is not a streaming provider")
	}
	if cap.Format != "wav" {
		t.Errorf("Format = %q, want wav", cap.Format)
	}
	voice, ok := cap.DefaultVoice("en")
	if !ok || voice != DefaultVoice {
		t.Errorf("DefaultVoice(en) = %q, %v", voice, ok)
	}
}
