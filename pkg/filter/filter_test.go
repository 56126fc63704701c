package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxgate/pkg/config"
	"voxgate/pkg/model"
)

func baseConfig() config.FilterConfig {
	return config.FilterConfig{
		BlockedPrefixes: []string{"!"},
		ProfanityMode:   config.ProfanityOff,
		MaskToken:       "***",
		MaxLength:       200,
	}
}

func mustNew(t *testing.T, cfg config.FilterConfig) *Filter {
	t.Helper()
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func TestFilter_PrefixFiltered(t *testing.T) {
	f := mustNew(t, baseConfig())

	res := f.Apply("!skip this", "alice", model.SourceChat)
	assert.True(t, res.Dropped)
	assert.Equal(t, model.DropPrefixFiltered, res.Reason)

	// Leading whitespace is trimmed before the prefix check.
	res = f.Apply("   !command", "alice", model.SourceChat)
	assert.True(t, res.Dropped)

	// Non-chat sources bypass the prefix filter.
	res = f.Apply("!skip this", "alice", model.SourceManual)
	require.False(t, res.Dropped)
	assert.Equal(t, "!skip this", res.Text)
}

func TestFilter_MentionStrip(t *testing.T) {
	f := mustNew(t, baseConfig())

	res := f.Apply("@bob how are you", "alice", model.SourceChat)
	require.False(t, res.Dropped)
	assert.Equal(t, "bob how are you", res.Text)
}

func TestFilter_ProfanityModes(t *testing.T) {
	cfg := baseConfig()
	cfg.ProfanityWords = []string{"frak", "smeg"}

	t.Run("Off", func(t *testing.T) {
		cfg := cfg
		cfg.ProfanityMode = config.ProfanityOff
		f := mustNew(t, cfg)
		res := f.Apply("what the frak", "a", model.SourceChat)
		assert.Equal(t, "what the frak", res.Text)
	})

	t.Run("Moderate_Masks", func(t *testing.T) {
		cfg := cfg
		cfg.ProfanityMode = config.ProfanityModerate
		f := mustNew(t, cfg)
		res := f.Apply("what the FRAK, smeg-head", "a", model.SourceChat)
		require.False(t, res.Dropped)
		assert.Equal(t, "what the ***, ***-head", res.Text)
	})

	t.Run("Moderate_WordBoundary", func(t *testing.T) {
		cfg := cfg
		cfg.ProfanityMode = config.ProfanityModerate
		f := mustNew(t, cfg)
		// "frak" inside another word is not matched.
		res := f.Apply("frakking refraktion", "a", model.SourceChat)
		assert.Equal(t, "frakking refraktion", res.Text)
	})

	t.Run("Strict_Drops", func(t *testing.T) {
		cfg := cfg
		cfg.ProfanityMode = config.ProfanityStrict
		f := mustNew(t, cfg)
		res := f.Apply("clean text with smeg inside", "a", model.SourceChat)
		assert.True(t, res.Dropped)
		assert.Equal(t, model.DropProfanity, res.Reason)
	})
}

func TestFilter_EmojiStrip(t *testing.T) {
	cfg := baseConfig()
	cfg.StripEmoji = true
	f := mustNew(t, cfg)

	res := f.Apply("hello 👋🏼  world 🎉", "a", model.SourceChat)
	require.False(t, res.Dropped)
	assert.Equal(t, "hello world", res.Text)

	// Emoji-only text collapses to empty and is dropped.
	res = f.Apply("🎉🎉🎉", "a", model.SourceChat)
	assert.True(t, res.Dropped)
	assert.Equal(t, model.DropEmptyText, res.Reason)
}

func TestFilter_EmptyText(t *testing.T) {
	f := mustNew(t, baseConfig())

	res := f.Apply("   ", "a", model.SourceChat)
	assert.True(t, res.Dropped)
	assert.Equal(t, model.DropEmptyText, res.Reason)

	// A bare "@" strips down to nothing.
	res = f.Apply("@", "a", model.SourceChat)
	assert.True(t, res.Dropped)
}

func TestFilter_Truncation(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxLength = 10
	f := mustNew(t, cfg)

	res := f.Apply("0123456789ABCDEF", "a", model.SourceChat)
	require.False(t, res.Dropped)
	assert.LessOrEqual(t, len([]rune(res.Text)), 10)
	assert.True(t, strings.HasSuffix(res.Text, Ellipsis))

	// Exactly at the limit: untouched.
	res = f.Apply("0123456789", "a", model.SourceChat)
	assert.Equal(t, "0123456789", res.Text)
}

func TestFilter_AnnouncePrefixReTruncates(t *testing.T) {
	cfg := baseConfig()
	cfg.AnnounceCaller = true
	cfg.MaxLength = 30
	f := mustNew(t, cfg)

	res := f.Apply(strings.Repeat("x", 100), "alice", model.SourceChat)
	require.False(t, res.Dropped)
	assert.True(t, strings.HasPrefix(res.Text, "announced by alice: "))
	assert.LessOrEqual(t, len([]rune(res.Text)), 30)

	// The prefix survives re-truncation; only the body is cut.
	assert.True(t, strings.HasSuffix(res.Text, Ellipsis))

	// Non-chat sources get no prefix.
	res = f.Apply("manual line", "alice", model.SourceManual)
	assert.Equal(t, "manual line", res.Text)
}

func TestFilter_Idempotent(t *testing.T) {
	cfg := baseConfig()
	cfg.AnnounceCaller = true
	cfg.StripEmoji = true
	cfg.ProfanityMode = config.ProfanityModerate
	cfg.ProfanityWords = []string{"frak"}
	cfg.MaxLength = 40
	f := mustNew(t, cfg)

	inputs := []string{
		"@bob what the frak is this 🎉 " + strings.Repeat("y", 80),
		"a perfectly ordinary message",
		strings.Repeat("z", 200),
	}
	for _, in := range inputs {
		first := f.Apply(in, "alice", model.SourceChat)
		require.False(t, first.Dropped)

		second := f.Apply(first.Text, "alice", model.SourceChat)
		require.False(t, second.Dropped)
		assert.Equal(t, first.Text, second.Text, "filter must be idempotent for %q", in)
	}
}

func TestFilter_MaxLengthAlwaysHeld(t *testing.T) {
	cfg := baseConfig()
	cfg.AnnounceCaller = true
	cfg.MaxLength = 25
	f := mustNew(t, cfg)

	for _, n := range []int{1, 10, 24, 25, 26, 100, 1000} {
		res := f.Apply(strings.Repeat("a", n), "someone", model.SourceChat)
		if res.Dropped {
			continue
		}
		assert.LessOrEqual(t, len([]rune(res.Text)), 25, "input length %d", n)
	}
}

func TestNew_Validation(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxLength = 0
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.ProfanityMode = "aggressive"
	_, err = New(cfg)
	assert.Error(t, err)
}
