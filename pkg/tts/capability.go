package tts

// VoiceInfo describes one entry of a provider's voice table.
type VoiceInfo struct {
	Language        string `json:"language"` // ISO 639-1, e.g. "en"
	Gender          string `json:"gender"`
	SupportsEmotion bool   `json:"supports_emotion"`
}

// Capability is a provider's static, read-only description: its voice table,
// per-language default voices and mode flags. Loaded once at startup; a
// provider without a capability table is considered disabled.
type Capability struct {
	Voices            map[string]VoiceInfo `json:"voices"`
	DefaultByLanguage map[string]string    `json:"default_by_language"`

	// Streaming marks providers whose synthesis is deferred to the head of
	// the playback queue and delivered in chunks.
	Streaming bool `json:"streaming"`

	// Format is the audio container produced by this provider.
	Format string `json:"format"`
}

// HasVoice reports whether the voice table contains id.
func (c Capability) HasVoice(id string) bool {
	_, ok := c.Voices[id]
	return ok
}

// DefaultVoice returns the default voice for an ISO 639-1 language code.
func (c Capability) DefaultVoice(lang string) (string, bool) {
	v, ok := c.DefaultByLanguage[lang]
	return v, ok
}

// Languages returns the set of languages the provider has a default voice
// for. Used by the fallback resolver to re-run detection against an
// alternate provider's table.
func (c Capability) Languages() map[string]bool {
	out := make(map[string]bool, len(c.DefaultByLanguage))
	for lang := range c.DefaultByLanguage {
		out[lang] = true
	}
	return out
}
