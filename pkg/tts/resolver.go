package tts

import (
	"voxgate/pkg/config"
	"voxgate/pkg/lang"
	"voxgate/pkg/model"
)

// BuiltinVoice is the absolute last-resort voice, used only when every
// resolution step failed to produce a non-empty value.
const BuiltinVoice = "en-US-AvaMultilingualNeural"

// Selection is a resolved (provider, voice) pair for one request.
type Selection struct {
	Provider string
	Voice    string
	Language string

	// FromAssignment is set when the pair came from the user's explicit
	// assignment. Fallback resolution must then preserve assignment intent
	// and never re-run language detection.
	FromAssignment bool

	// UsedFallbackLanguage is set when detection confidence was below the
	// threshold and the configured fallback language was used instead.
	// This is a recorded event, not an error.
	UsedFallbackLanguage bool
}

// Resolver combines user overrides, detected language and provider
// capability tables into a (provider, voice) selection.
type Resolver struct {
	registry        *Registry
	detector        lang.Detector
	cfg             config.LanguageConfig
	defaultProvider string
	defaultVoice    string
}

// NewResolver creates a Resolver. detector may be nil when auto-detection
// is disabled in cfg.
func NewResolver(registry *Registry, detector lang.Detector, cfg config.LanguageConfig, defaultProvider, defaultVoice string) *Resolver {
	return &Resolver{
		registry:        registry,
		detector:        detector,
		cfg:             cfg,
		defaultProvider: defaultProvider,
		defaultVoice:    defaultVoice,
	}
}

// Resolve picks the (provider, voice) pair for a request.
//
// Precedence, highest to lowest:
//  1. the user's assigned (provider, voice), when that provider is configured
//  2. per-request overrides from the speak request
//  3. detected language's default voice (confidence above threshold)
//  4. the configured fallback language's default voice (below threshold)
//  5. the globally configured default voice
//  6. the hardcoded built-in voice
func (r *Resolver) Resolve(profile *model.UserProfile, text, requestedProvider, requestedVoice string) Selection {
	// 1. Explicit user assignment always wins; detection is skipped entirely.
	if profile.HasAssignment() {
		if _, ok := r.registry.Get(profile.AssignedProvider); ok {
			return Selection{
				Provider:       profile.AssignedProvider,
				Voice:          profile.AssignedVoice,
				FromAssignment: true,
			}
		}
	}

	provider := r.defaultProvider
	if requestedProvider != "" {
		if _, ok := r.registry.Get(requestedProvider); ok {
			provider = requestedProvider
		}
	}

	sel := Selection{Provider: provider}
	cap := Capability{}
	if p, ok := r.registry.Get(provider); ok {
		cap = p.Capability()
	}

	// 2. Per-request voice override, accepted only when the target provider
	// actually knows the voice. Providers without a static voice table
	// (reference-ID voices) accept any override; a voice unknown to a
	// table-bearing provider falls through to detection and defaults.
	if requestedVoice != "" {
		if len(cap.Voices) == 0 || cap.HasVoice(requestedVoice) {
			sel.Voice = requestedVoice
			return sel
		}
	}

	// 3/4. Language detection against the target provider's table.
	if voice, detected := r.detectVoice(text, cap, &sel); detected {
		sel.Voice = voice
		return sel
	}

	// 5. Globally configured default voice.
	if r.defaultVoice != "" {
		sel.Voice = r.defaultVoice
		return sel
	}

	// Provider default for the fallback language.
	if voice, ok := cap.DefaultVoice(r.cfg.FallbackLanguage); ok {
		sel.Voice = voice
		sel.Language = r.cfg.FallbackLanguage
		return sel
	}

	// 6. Hardcoded last resort.
	sel.Voice = BuiltinVoice
	return sel
}

// detectVoice runs language detection and maps the result onto the
// capability table. Returns false when detection is disabled, the text is
// too short for reliable detection, or no voice could be derived.
func (r *Resolver) detectVoice(text string, cap Capability, sel *Selection) (string, bool) {
	if !r.cfg.AutoDetect || r.detector == nil {
		return "", false
	}
	if len([]rune(text)) < r.cfg.MinTextLength {
		return "", false
	}

	code, confidence, ok := r.detector.Detect(text)
	if ok && confidence >= r.cfg.ConfidenceThreshold {
		if voice, has := cap.DefaultVoice(code); has {
			sel.Language = code
			return voice, true
		}
	}

	// Low confidence (or no table entry): fall back to the configured
	// fallback language. Recorded as a fallback event, not an error.
	if voice, has := cap.DefaultVoice(r.cfg.FallbackLanguage); has {
		sel.Language = r.cfg.FallbackLanguage
		sel.UsedFallbackLanguage = true
		return voice, true
	}
	return "", false
}

// ResolveFallbackVoice picks the voice to use on an alternate provider
// during a fallback walk, parameterised over the provider's capability
// table instead of per-provider special cases.
//
// When the original selection came from a user assignment, the alternate's
// default voice for the configured fallback language is used and language
// detection is never re-run, preserving assignment intent. Otherwise
// detection is re-run against the alternate provider's voice table.
func (r *Resolver) ResolveFallbackVoice(p Provider, text string, fromAssignment bool) Selection {
	cap := p.Capability()
	sel := Selection{Provider: p.ID(), FromAssignment: fromAssignment}

	if !fromAssignment {
		if voice, ok := r.detectVoice(text, cap, &sel); ok {
			sel.Voice = voice
			return sel
		}
	}

	if voice, ok := cap.DefaultVoice(r.cfg.FallbackLanguage); ok {
		sel.Voice = voice
		sel.Language = r.cfg.FallbackLanguage
		return sel
	}
	sel.Voice = BuiltinVoice
	return sel
}
