// Package tts defines the synthesis provider abstraction, the voice/provider
// resolver and the multi-provider orchestrator with fallback.
package tts

import (
	"context"
)

// Request is a single synthesis call.
type Request struct {
	Text    string
	Voice   string
	Speed   float64 // 1.0 = normal
	Emotion string  // empty = neutral; ignored by providers without emotion support
}

// Audio is an opaque synthesized payload.
type Audio struct {
	Data   []byte
	Format string // "mp3", "wav", "pcm"
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// ID returns the stable provider identifier used in configuration
	// (e.g. "azure-speech").
	ID() string

	// Capability returns the provider's static voice table and flags.
	Capability() Capability

	// Synthesize turns text into one complete audio payload, or fails with
	// a *TransientError or *FatalError.
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

// StreamingProvider is implemented by providers that can deliver audio
// incrementally. Whether streaming is used for queue items is a static
// capability flag, not a per-request choice.
type StreamingProvider interface {
	Provider

	// SynthesizeStream starts synthesis and returns a channel emitting audio
	// chunks as they arrive. The channel is closed when synthesis completes
	// or ctx is cancelled; callers must drain it.
	SynthesizeStream(ctx context.Context, req Request) (<-chan []byte, error)
}
