package speech

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"

	// Models for voiceLanguages register themselves with lingua.
	_ "github.com/pemistahl/lingua-go/language-models/de"
	_ "github.com/pemistahl/lingua-go/language-models/en"
	_ "github.com/pemistahl/lingua-go/language-models/es"
	_ "github.com/pemistahl/lingua-go/language-models/fr"
	_ "github.com/pemistahl/lingua-go/language-models/it"
	_ "github.com/pemistahl/lingua-go/language-models/ja"
	_ "github.com/pemistahl/lingua-go/language-models/ko"
	_ "github.com/pemistahl/lingua-go/language-models/pt"
	_ "github.com/pemistahl/lingua-go/language-models/ru"
	_ "github.com/pemistahl/lingua-go/language-models/zh"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en-US"

// CanonicalLocale turns a language code or locale into a "ll-RR" identifier
// understood by the native frameworks. A bare language gets its most likely
// region, so "en" becomes "en-US" and "zh" becomes "zh-CN".
func CanonicalLocale(s string) (string, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if s == "" || s == "auto" {
		return DefaultLocale, nil
	}

	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse locale %q: %w", s, err)
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	return base.String() + "-" + region.String(), nil
}

// voiceLanguages are the languages a voice is auto-selected for.
var voiceLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Japanese,
	lingua.Korean,
	lingua.Chinese,
}

// VoicePicker chooses a synthesis locale from the language of the text.
type VoicePicker struct {
	detector lingua.LanguageDetector
	fallback string
}

// NewVoicePicker builds a detector. Text whose language is unclear is spoken
// with fallback.
func NewVoicePicker(fallback string) *VoicePicker {
	locale, err := CanonicalLocale(fallback)
	if err != nil {
		locale = DefaultLocale
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(voiceLanguages...).
		WithMinimumRelativeDistance(0.1).
		Build()
	return &VoicePicker{detector: detector, fallback: locale}
}

// Pick returns the locale to speak text with.
func (v *VoicePicker) Pick(text string) string {
	lang, ok := v.detector.DetectLanguageOf(text)
	if !ok {
		return v.fallback
	}

	code := strings.ToLower(lang.IsoCode639_1().String())
	// Keep the configured region when the detected language matches it.
	if strings.HasPrefix(v.fallback, code+"-") {
		return v.fallback
	}
	locale, err := CanonicalLocale(code)
	if err != nil {
		return v.fallback
	}
	return locale
}
