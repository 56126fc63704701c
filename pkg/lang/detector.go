// Package lang provides language detection for utterance text.
package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector reports the most likely language of a text.
type Detector interface {
	// Detect returns the ISO 639-1 code (lowercase, e.g. "en") of the most
	// likely language together with a confidence in [0, 1]. ok is false when
	// no language could be determined at all.
	Detect(text string) (code string, confidence float64, ok bool)
}

// supported is the set of languages the bundled providers have voices for.
// Keeping the set small improves both accuracy and startup time compared to
// loading all of lingua's models.
var supported = []lingua.Language{
	lingua.English,
	lingua.German,
	lingua.Spanish,
	lingua.French,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Polish,
	lingua.Russian,
	lingua.Turkish,
	lingua.Japanese,
	lingua.Korean,
	lingua.Chinese,
	lingua.Arabic,
}

// LinguaDetector implements Detector using the lingua statistical models.
// Safe for concurrent use.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over the supported language set.
// Model loading is deferred to the first detection call.
func NewLinguaDetector() *LinguaDetector {
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(supported...).
			Build(),
	}
}

// Detect implements Detector.
func (d *LinguaDetector) Detect(text string) (string, float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, false
	}

	language, exists := d.detector.DetectLanguageOf(text)
	if !exists {
		return "", 0, false
	}
	confidence := d.detector.ComputeLanguageConfidence(text, language)
	code := strings.ToLower(language.IsoCode639_1().String())
	return code, confidence, true
}
