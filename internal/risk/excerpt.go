package risk

import (
	"regexp"
	"strings"
)

const (
	// DefaultExcerptLen bounds an excerpt built from matched sentences.
	DefaultExcerptLen = 800
	// DefaultFallbackLen bounds the raw-text fallback.
	DefaultFallbackLen = 400
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Excerpt selects the sentences of text that contain a trigger phrase for
// any of the given tags, bounded by the default lengths. The result is
// advisory context for a human reviewer; it never feeds back into the
// danger-level decision.
func (d *Detector) Excerpt(text string, tags []Category) string {
	return d.ExcerptN(text, tags, DefaultExcerptLen, DefaultFallbackLen)
}

// ExcerptN is Excerpt with explicit length bounds.
func (d *Detector) ExcerptN(text string, tags []Category, maxLen, fallbackLen int) string {
	if text == "" || len(tags) == 0 {
		return truncate(text, fallbackLen)
	}

	phrases := d.PhrasesFor(tags)

	// Split the original text: the delimiters are ASCII, while ToLower can
	// change byte offsets for some runes. Lowercasing happens per sentence.
	var kept []string
	start := 0
	for _, loc := range sentenceSplit.FindAllStringIndex(text, -1) {
		if s := keepSentence(text[start:loc[0]], phrases); s != "" {
			kept = append(kept, s)
		}
		start = loc[1]
	}
	if s := keepSentence(text[start:], phrases); s != "" {
		kept = append(kept, s)
	}

	if len(kept) == 0 {
		// Tags may have come from themes rather than the text itself.
		return truncate(text, fallbackLen)
	}

	joined := strings.Join(kept, ". ")
	if len([]rune(joined)) > maxLen {
		return truncate(joined, maxLen) + "..."
	}
	return joined
}

// keepSentence returns the trimmed sentence when its lowercase form contains
// any phrase. Sentences are short human-authored units, so plain substring
// matching is enough here.
func keepSentence(sentence string, phrases []string) string {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return ""
	}
	lowered := strings.ToLower(trimmed)
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			return trimmed
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
