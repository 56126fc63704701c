// Package config provides the application configuration schema and loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Gate     GateConfig     `yaml:"gate"`
	Filter   FilterConfig   `yaml:"filter"`
	Language LanguageConfig `yaml:"language"`
	TTS      TTSConfig      `yaml:"tts"`
	Queue    QueueConfig    `yaml:"queue"`
	Playback PlaybackConfig `yaml:"playback"`
	Events   EventsConfig   `yaml:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server    LogSettings `yaml:"server"`
	Synthesis LogSettings `yaml:"synthesis"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path    string `yaml:"path"`
	Level   string `yaml:"level"`
	Enabled bool   `yaml:"enabled"`
}

// DBConfig holds database settings for the user profile store.
type DBConfig struct {
	Path string `yaml:"path"`
}

// GateConfig holds permission gate settings.
type GateConfig struct {
	// MinTeamLevel is the minimum team level an Unknown user needs for
	// their requests to be accepted.
	MinTeamLevel int `yaml:"min_team_level"`
}

// ProfanityMode selects how the content filter treats flagged terms.
type ProfanityMode string

const (
	ProfanityOff      ProfanityMode = "off"
	ProfanityModerate ProfanityMode = "moderate"
	ProfanityStrict   ProfanityMode = "strict"
)

// IsValid reports whether m is a recognised profanity mode.
func (m ProfanityMode) IsValid() bool {
	return m == ProfanityOff || m == ProfanityModerate || m == ProfanityStrict
}

// FilterConfig holds content filter settings.
type FilterConfig struct {
	// BlockedPrefixes drops chat messages starting with any of these
	// (typically bot command sigils like "!").
	BlockedPrefixes []string `yaml:"blocked_prefixes"`

	ProfanityMode  ProfanityMode `yaml:"profanity_mode"`
	ProfanityWords []string      `yaml:"profanity_words"`
	MaskToken      string        `yaml:"mask_token"`

	StripEmoji bool `yaml:"strip_emoji"`

	// MaxLength bounds the final text; longer texts are truncated with an
	// ellipsis marker.
	MaxLength int `yaml:"max_length"`

	// AnnounceCaller prepends "announced by {name}: " to chat messages.
	AnnounceCaller bool `yaml:"announce_caller"`
}

// LanguageConfig holds language detection settings.
type LanguageConfig struct {
	AutoDetect          bool    `yaml:"auto_detect"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	FallbackLanguage    string  `yaml:"fallback_language"`
	MinTextLength       int     `yaml:"min_text_length"`
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	Enabled bool `yaml:"enabled"`
	// RequestsPerMinute caps outgoing synthesis calls to avoid being
	// blocked by the unofficial endpoint.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// AzureSpeechConfig holds settings for Azure Speech TTS.
type AzureSpeechConfig struct {
	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
	Region  string `yaml:"region"` // e.g., "eastus"
}

// FishAudioConfig holds settings for Fish Audio TTS.
type FishAudioConfig struct {
	Enabled bool   `yaml:"enabled"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"` // Model ID (e.g. "s1")
}

// SAPIConfig holds settings for the local Windows SAPI voice.
type SAPIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TTSConfig holds synthesis settings.
type TTSConfig struct {
	// DefaultProvider is the primary synthesis backend.
	DefaultProvider string `yaml:"default_provider"`

	// DefaultVoice is the globally configured default voice for the
	// primary provider. May be empty, in which case the provider's
	// per-language default applies.
	DefaultVoice string `yaml:"default_voice"`

	// Speed is the synthesis speed multiplier (1.0 = normal).
	Speed float64 `yaml:"speed"`

	AutoFallback bool `yaml:"auto_fallback"`

	// FallbackChains maps a primary provider to the ordered list of
	// alternates tried when it fails. Chains are sanitised at startup:
	// the primary itself and duplicates are removed.
	FallbackChains map[string][]string `yaml:"fallback_chains"`

	AttemptTimeout Duration `yaml:"attempt_timeout"`
	MaxRetries     int      `yaml:"max_retries"`
	RetryBackoff   Duration `yaml:"retry_backoff"`

	EdgeTTS     EdgeTTSConfig     `yaml:"edge_tts"`
	AzureSpeech AzureSpeechConfig `yaml:"azure_speech"`
	FishAudio   FishAudioConfig   `yaml:"fish_audio"`
	SAPI        SAPIConfig        `yaml:"windows_sapi"`
}

// QueueConfig holds playback queue settings.
type QueueConfig struct {
	MaxSize int `yaml:"max_size"`

	// RateLimitCount requests per RateLimitWindow per user (sliding window).
	RateLimitCount  int      `yaml:"rate_limit_count"`
	RateLimitWindow Duration `yaml:"rate_limit_window"`

	// MsPerChar and StartupBuffer drive the estimated playback duration:
	// len(text) * ms_per_char / speed + startup_buffer.
	MsPerChar     int      `yaml:"ms_per_char"`
	StartupBuffer Duration `yaml:"startup_buffer"`

	// DedupeTTL suppresses identical utterances from the same user within
	// this window. Zero disables deduplication.
	DedupeTTL Duration `yaml:"dedupe_ttl"`
}

// PlaybackConfig holds playback sink settings.
type PlaybackConfig struct {
	Volume float64 `yaml:"volume"`
}

// EventsConfig holds observability event stream settings.
type EventsConfig struct {
	// BufferSize is the capacity of the in-memory event ring buffer.
	BufferSize int `yaml:"buffer_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:1931",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:    "./logs/server.log",
				Level:   "INFO",
				Enabled: true,
			},
			Synthesis: LogSettings{
				Path:    "./logs/synthesis.log",
				Level:   "INFO",
				Enabled: false,
			},
		},
		DB: DBConfig{
			Path: "./data/voxgate.db",
		},
		Gate: GateConfig{
			MinTeamLevel: 0,
		},
		Filter: FilterConfig{
			BlockedPrefixes: []string{"!"},
			ProfanityMode:   ProfanityModerate,
			MaskToken:       "***",
			StripEmoji:      false,
			MaxLength:       200,
			AnnounceCaller:  false,
		},
		Language: LanguageConfig{
			AutoDetect:          true,
			ConfidenceThreshold: 0.65,
			FallbackLanguage:    "en",
			MinTextLength:       12,
		},
		TTS: TTSConfig{
			DefaultProvider: "edge-tts",
			DefaultVoice:    "",
			Speed:           1.0,
			AutoFallback:    true,
			FallbackChains: map[string][]string{
				"azure-speech": {"edge-tts", "windows-sapi"},
				"edge-tts":     {"azure-speech", "windows-sapi"},
				"fish-audio":   {"edge-tts", "windows-sapi"},
				"windows-sapi": {"edge-tts"},
			},
			AttemptTimeout: Duration(15 * time.Second),
			MaxRetries:     2,
			RetryBackoff:   Duration(500 * time.Millisecond),
			EdgeTTS: EdgeTTSConfig{
				Enabled:           true,
				RequestsPerMinute: 50,
			},
			AzureSpeech: AzureSpeechConfig{},
			FishAudio: FishAudioConfig{
				Model: "s1",
			},
			SAPI: SAPIConfig{},
		},
		Queue: QueueConfig{
			MaxSize:         20,
			RateLimitCount:  3,
			RateLimitWindow: Duration(30 * time.Second),
			MsPerChar:       65,
			StartupBuffer:   Duration(800 * time.Millisecond),
			DedupeTTL:       Duration(10 * time.Minute),
		},
		Playback: PlaybackConfig{
			Volume: 1.0,
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Load API keys from env if not set in the file. Never saved back.
	if cfg.TTS.AzureSpeech.Key == "" {
		if key := os.Getenv("AZURE_SPEECH_KEY"); key != "" {
			cfg.TTS.AzureSpeech.Key = key
		}
	}
	if cfg.TTS.AzureSpeech.Region == "" {
		if region := os.Getenv("AZURE_SPEECH_REGION"); region != "" {
			cfg.TTS.AzureSpeech.Region = region
		}
	}
	if cfg.TTS.FishAudio.Key == "" {
		if key := os.Getenv("FISH_AUDIO_API_KEY"); key != "" {
			cfg.TTS.FishAudio.Key = key
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !c.Filter.ProfanityMode.IsValid() {
		return fmt.Errorf("invalid profanity_mode %q: must be off, moderate or strict", c.Filter.ProfanityMode)
	}
	if c.Filter.MaxLength <= 0 {
		return fmt.Errorf("filter max_length must be positive, got %d", c.Filter.MaxLength)
	}
	if c.TTS.Speed <= 0 {
		return fmt.Errorf("tts speed must be positive, got %v", c.TTS.Speed)
	}
	if !isValidLanguage(c.Language.FallbackLanguage) {
		return fmt.Errorf("invalid fallback_language %q: must be a two-letter code (e.g. 'en', 'de')", c.Language.FallbackLanguage)
	}
	return nil
}

func isValidLanguage(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Voxgate Configuration
# ---------------------
# Duration units: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	// Inject comments for enum fields.
	reProvider := regexp.MustCompile(`(?m)^(\s+)default_provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: windows-sapi, edge-tts, fish-audio, azure-speech\n${1}default_provider:"))

	reMode := regexp.MustCompile(`(?m)^(\s+)profanity_mode:`)
	data = reMode.ReplaceAll(data, []byte("${1}# Options: off, moderate, strict\n${1}profanity_mode:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
