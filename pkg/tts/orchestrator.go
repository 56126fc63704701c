package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voxgate/pkg/config"
	"voxgate/pkg/tracker"
)

// Result is a completed synthesis, carrying the provider that actually
// produced the audio (which may differ from the requested one after a
// fallback walk).
type Result struct {
	Provider string
	Voice    string
	Audio    *Audio

	// Streaming marks a deferred synthesis: no audio was produced yet, the
	// playback queue starts the stream when the item reaches the head.
	Streaming bool
}

// Orchestrator drives synthesis across the configured providers: same-
// provider retries with exponential backoff for transient failures, then a
// walk along the primary's fallback chain.
type Orchestrator struct {
	registry *Registry
	resolver *Resolver
	tracker  *tracker.Tracker

	attemptTimeout time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	autoFallback   bool
	speed          float64
}

// NewOrchestrator creates an Orchestrator from the synthesis configuration.
func NewOrchestrator(registry *Registry, resolver *Resolver, trk *tracker.Tracker, cfg config.TTSConfig) *Orchestrator {
	return &Orchestrator{
		registry:       registry,
		resolver:       resolver,
		tracker:        trk,
		attemptTimeout: time.Duration(cfg.AttemptTimeout),
		maxRetries:     cfg.MaxRetries,
		retryBackoff:   time.Duration(cfg.RetryBackoff),
		autoFallback:   cfg.AutoFallback,
		speed:          cfg.Speed,
	}
}

// Synthesize produces audio for text using the resolved selection,
// falling back along the provider chain when needed. On total failure it
// returns an *ExhaustedError aggregating every attempt.
func (o *Orchestrator) Synthesize(ctx context.Context, sel Selection, text, emotion string) (*Result, error) {
	primary, ok := o.registry.Get(sel.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", sel.Provider)
	}

	// Streaming providers defer synthesis to the playback queue head;
	// nothing to do here beyond confirming the selection.
	if primary.Capability().Streaming {
		return &Result{Provider: sel.Provider, Voice: sel.Voice, Streaming: true}, nil
	}

	var exhausted ExhaustedError

	audio, err := o.attempt(ctx, primary, Request{Text: text, Voice: sel.Voice, Speed: o.speed, Emotion: emotion})
	if err == nil {
		return &Result{Provider: sel.Provider, Voice: sel.Voice, Audio: audio}, nil
	}
	exhausted.Attempts = append(exhausted.Attempts, Attempt{Provider: sel.Provider, Voice: sel.Voice, Err: err})
	slog.Warn("Synthesis failed", "provider", sel.Provider, "voice", sel.Voice, "error", err)

	if !o.autoFallback {
		return nil, &exhausted
	}

	// Walk the chain. Chains are sanitised at registration time, but track
	// visited providers anyway so a hand-edited config cannot loop.
	visited := map[string]bool{sel.Provider: true}
	for _, id := range o.registry.Chain(sel.Provider) {
		if visited[id] {
			continue
		}
		visited[id] = true

		alt, ok := o.registry.Get(id)
		if !ok {
			continue
		}

		altSel := o.resolver.ResolveFallbackVoice(alt, text, sel.FromAssignment)
		if alt.Capability().Streaming {
			o.tracker.TrackFallbackIn(id)
			return &Result{Provider: id, Voice: altSel.Voice, Streaming: true}, nil
		}

		audio, err := o.attempt(ctx, alt, Request{Text: text, Voice: altSel.Voice, Speed: o.speed, Emotion: emotion})
		if err == nil {
			o.tracker.TrackFallbackIn(id)
			return &Result{Provider: id, Voice: altSel.Voice, Audio: audio}, nil
		}
		exhausted.Attempts = append(exhausted.Attempts, Attempt{Provider: id, Voice: altSel.Voice, Err: err})
		slog.Warn("Fallback synthesis failed", "provider", id, "voice", altSel.Voice, "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &exhausted
}

// attempt runs one provider's synthesis with the configured per-attempt
// timeout, retrying transient failures with exponential backoff. A fatal
// error returns immediately; the caller moves on to the next chain entry.
func (o *Orchestrator) attempt(ctx context.Context, p Provider, req Request) (*Audio, error) {
	var lastErr error
	for try := 0; try <= o.maxRetries; try++ {
		if try > 0 {
			o.tracker.TrackRetry(p.ID())
			backoff := o.retryBackoff << (try - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				o.tracker.TrackFailure(p.ID())
				return nil, NewTransientError("synthesis cancelled", ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
		audio, err := p.Synthesize(attemptCtx, req)
		cancel()
		if err == nil {
			o.tracker.TrackSynthesized(p.ID())
			return audio, nil
		}
		lastErr = err

		if IsFatal(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	o.tracker.TrackFailure(p.ID())
	return nil, lastErr
}
