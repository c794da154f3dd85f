package search

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// knownLanguages is the closed set of codes the index settings declare.
var knownLanguages = map[string]bool{
	"en": true, "nl": true, "de": true, "fr": true, "es": true,
	"it": true, "pt": true, "pl": true, "ru": true, "zh": true,
	"ja": true, "ko": true, "ar": true,
}

// iso3to1 maps the detector's ISO 639-3 codes onto the closed set.
var iso3to1 = map[string]string{
	"eng": "en", "nld": "nl", "deu": "de", "fra": "fr", "spa": "es",
	"ita": "it", "por": "pt", "pol": "pl", "rus": "ru", "cmn": "zh",
	"jpn": "ja", "kor": "ko", "arb": "ar",
}

// stopwordSets drives the frequency fallback when the statistical detector
// is unsure. Order matters: ties resolve to the earlier language.
var stopwordSets = []struct {
	code  string
	words []string
}{
	{"en", []string{"the", "and", "is", "of", "to", "that", "this", "are", "was", "with"}},
	{"nl", []string{"de", "het", "een", "en", "van", "dat", "is", "niet", "voor", "naar"}},
	{"de", []string{"der", "die", "das", "und", "ist", "nicht", "von", "mit", "für", "auf"}},
	{"fr", []string{"le", "la", "les", "et", "est", "pas", "pour", "dans", "que", "une"}},
	{"es", []string{"el", "la", "los", "y", "es", "no", "para", "que", "una", "con"}},
}

// DetectLanguage returns a language code from the closed set. Texts shorter
// than ten characters default to English.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return "en"
	}

	info := whatlanggo.Detect(text)
	if info.IsReliable() {
		if code, ok := iso3to1[info.Lang.Iso6393()]; ok && knownLanguages[code] {
			return code
		}
	}
	return stopwordFallback(text)
}

// stopwordFallback counts stopword hits per language over the lowercased
// token stream.
func stopwordFallback(text string) string {
	tokens := strings.Fields(strings.ToLower(text))
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[strings.Trim(tok, ".,!?;:\"'()")]++
	}

	best := "en"
	bestHits := 0
	for _, set := range stopwordSets {
		hits := 0
		for _, w := range set.words {
			hits += counts[w]
		}
		if hits > bestHits {
			best = set.code
			bestHits = hits
		}
	}
	return best
}
