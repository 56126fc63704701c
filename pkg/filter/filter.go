// Package filter implements the deterministic content filter pipeline.
//
// A Filter is immutable once built; runtime changes (e.g. switching the
// profanity mode from the admin API) are done by building a new Filter and
// swapping it atomically in the pipeline. Filtering is pure text transform,
// no I/O, and idempotent: applying a Filter to its own output is a no-op.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"voxgate/pkg/config"
	"voxgate/pkg/model"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// announcePrefixFmt prefixes chat messages with the requester's name.
const announcePrefixFmt = "announced by %s: "

// Result is the outcome of running text through the filter.
type Result struct {
	Text    string
	Dropped bool
	Reason  model.DropReason
}

// Filter is the compiled content filter pipeline.
type Filter struct {
	cfg       config.FilterConfig
	profanity *regexp.Regexp // nil when no words configured
}

// emojiRegex matches emoji and pictograph code points plus the joiners and
// variation selectors that glue them together.
var emojiRegex = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{2B00}-\x{2BFF}\x{1F1E6}-\x{1F1FF}\x{FE00}-\x{FE0F}\x{200D}\x{20E3}]`)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// New compiles a Filter from the given configuration.
func New(cfg config.FilterConfig) (*Filter, error) {
	if !cfg.ProfanityMode.IsValid() {
		return nil, fmt.Errorf("filter: invalid profanity mode %q", cfg.ProfanityMode)
	}
	if cfg.MaxLength <= 0 {
		return nil, fmt.Errorf("filter: max length must be positive, got %d", cfg.MaxLength)
	}
	if cfg.MaskToken == "" {
		cfg.MaskToken = "***"
	}

	f := &Filter{cfg: cfg}
	if len(cfg.ProfanityWords) > 0 {
		quoted := make([]string, 0, len(cfg.ProfanityWords))
		for _, w := range cfg.ProfanityWords {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
		if len(quoted) > 0 {
			re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
			if err != nil {
				return nil, fmt.Errorf("filter: compiling profanity pattern: %w", err)
			}
			f.profanity = re
		}
	}
	return f, nil
}

// Mode returns the configured profanity mode.
func (f *Filter) Mode() config.ProfanityMode {
	return f.cfg.ProfanityMode
}

// Config returns a copy of the configuration this filter was built from.
// Used to derive a modified filter for runtime reconfiguration.
func (f *Filter) Config() config.FilterConfig {
	return f.cfg
}

// Apply runs text through the filter stages in order. displayName is only
// used for the announce prefix; source selects the chat-only stages.
func (f *Filter) Apply(text, displayName string, source model.Source) Result {
	text = strings.TrimSpace(text)

	// 1. Prefix filter (chat only).
	if source == model.SourceChat {
		for _, prefix := range f.cfg.BlockedPrefixes {
			if prefix != "" && strings.HasPrefix(text, prefix) {
				return Result{Dropped: true, Reason: model.DropPrefixFiltered}
			}
		}
	}

	// 2. Strip a leading "@" (keep the mention itself).
	text = strings.TrimPrefix(text, "@")

	// 3. Profanity filter.
	if f.profanity != nil {
		switch f.cfg.ProfanityMode {
		case config.ProfanityStrict:
			if f.profanity.MatchString(text) {
				return Result{Dropped: true, Reason: model.DropProfanity}
			}
		case config.ProfanityModerate:
			text = f.profanity.ReplaceAllString(text, f.cfg.MaskToken)
		}
	}

	// 4. Emoji strip.
	if f.cfg.StripEmoji {
		text = emojiRegex.ReplaceAllString(text, "")
		text = whitespaceRegex.ReplaceAllString(text, " ")
		text = strings.TrimSpace(text)
	}

	// 5. Empty check.
	if text == "" {
		return Result{Dropped: true, Reason: model.DropEmptyText}
	}

	// 6. Truncate.
	text = truncate(text, f.cfg.MaxLength)

	// 7. Announce prefix (chat only). The prefix is never sacrificed for the
	// body: the combined string is re-truncated.
	if f.cfg.AnnounceCaller && source == model.SourceChat && displayName != "" {
		prefix := fmt.Sprintf(announcePrefixFmt, displayName)
		if !strings.HasPrefix(text, prefix) {
			text = truncate(prefix+text, f.cfg.MaxLength)
		}
	}

	return Result{Text: text}
}

// truncate bounds s to max runes, appending the ellipsis marker when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + Ellipsis
}
