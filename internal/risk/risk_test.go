package risk

import (
	"strings"
	"testing"
)

func testDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(map[string][]string{
		"self_harm":     {"kill myself", "hurt myself", "i want to die", "overdose"},
		"sexual":        {"sex", "porn", "adult content"},
		"violence":      {"kill", "attack", "shooting"},
		"drugs":         {"weed", "cocaine", "illegal drugs"},
		"mental_health": {"depressed", "hopeless", "mental breakdown"},
	})
	if err != nil {
		t.Fatalf("building detector: %v", err)
	}
	return d
}

func TestKeywordTagsWholePhrase(t *testing.T) {
	d := testDetector(t)
	tags := d.KeywordTags("Sometimes I want to kill myself")
	if !Contains(tags, SelfHarm) {
		t.Errorf("expected self_harm in %v", tags)
	}
	// "kill" also matches as a standalone word inside the phrase
	if !Contains(tags, Violence) {
		t.Errorf("expected violence in %v", tags)
	}
}

func TestKeywordTagsCaseInsensitive(t *testing.T) {
	d := testDetector(t)
	tags := d.KeywordTags("I FEEL SO DEPRESSED today")
	if !Contains(tags, MentalHealth) {
		t.Errorf("expected mental_health in %v", tags)
	}
}

func TestKeywordTagsNoSubstringMatch(t *testing.T) {
	d := testDetector(t)
	// "weed" inside "tumbleweed", "sex" inside "sextant": neither is a token
	for _, text := range []string{"a tumbleweed rolled by", "he used a sextant to navigate"} {
		if tags := d.KeywordTags(text); len(tags) != 0 {
			t.Errorf("expected no tags for %q, got %v", text, tags)
		}
	}
}

func TestKeywordTagsEmptyText(t *testing.T) {
	d := testDetector(t)
	if tags := d.KeywordTags(""); len(tags) != 0 {
		t.Errorf("expected no tags for empty text, got %v", tags)
	}
}

func TestKeywordTagsCanonicalOrder(t *testing.T) {
	d := testDetector(t)
	tags := d.KeywordTags("depressed and thinking about an attack with illegal drugs")
	want := []Category{Violence, Drugs, MentalHealth}
	if len(tags) != len(want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], tags[i])
		}
	}
}

func TestThemeTagsExactMatch(t *testing.T) {
	d := testDetector(t)
	tags := d.ThemeTags([]string{"school", "Depressed"})
	if !Contains(tags, MentalHealth) {
		t.Errorf("expected mental_health in %v", tags)
	}
}

func TestThemeTagsMultiwordSubstring(t *testing.T) {
	d := testDetector(t)
	tags := d.ThemeTags([]string{"ongoing mental breakdown episode"})
	if !Contains(tags, MentalHealth) {
		t.Errorf("expected mental_health in %v", tags)
	}
}

func TestThemeTagsSingleWordNoSubstring(t *testing.T) {
	d := testDetector(t)
	tags := d.ThemeTags([]string{"sex education policy"})
	if Contains(tags, Sexual) {
		t.Errorf("single-word phrase must not substring-match, got %v", tags)
	}
}

func TestThemeTagsEmpty(t *testing.T) {
	d := testDetector(t)
	if tags := d.ThemeTags(nil); len(tags) != 0 {
		t.Errorf("expected no tags for nil themes, got %v", tags)
	}
	if tags := d.ThemeTags([]string{}); len(tags) != 0 {
		t.Errorf("expected no tags for empty themes, got %v", tags)
	}
}

func TestNewDetectorRejectsDuplicatePhrase(t *testing.T) {
	_, err := NewDetector(map[string][]string{
		"violence":  {"kill"},
		"self_harm": {"kill"},
	})
	if err == nil {
		t.Fatal("expected error for phrase in two categories")
	}
}

func TestNewDetectorRejectsUnknownCategory(t *testing.T) {
	_, err := NewDetector(map[string][]string{"gossip": {"drama"}})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestUnion(t *testing.T) {
	got := Union([]Category{Violence}, []Category{SelfHarm, Violence})
	want := []Category{SelfHarm, Violence}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestExcerptSelectsMatchingSentences(t *testing.T) {
	d := testDetector(t)
	text := "I had cereal for breakfast. Later I felt so depressed I stayed in bed! Then I watched a movie?"
	got := d.Excerpt(text, []Category{MentalHealth})
	if !strings.Contains(got, "depressed") {
		t.Errorf("expected matching sentence, got %q", got)
	}
	if strings.Contains(got, "cereal") || strings.Contains(got, "movie") {
		t.Errorf("expected non-matching sentences dropped, got %q", got)
	}
}

func TestExcerptJoinsInOrder(t *testing.T) {
	d := testDetector(t)
	text := "They talked about weed. Nothing else happened. Then more weed talk."
	got := d.Excerpt(text, []Category{Drugs})
	if got != "They talked about weed. Then more weed talk" {
		t.Errorf("unexpected excerpt %q", got)
	}
}

func TestExcerptNoTagsTruncates(t *testing.T) {
	d := testDetector(t)
	long := strings.Repeat("x", 600)
	got := d.Excerpt(long, nil)
	if len(got) != DefaultFallbackLen {
		t.Errorf("expected %d chars, got %d", DefaultFallbackLen, len(got))
	}
}

func TestExcerptThemeOnlyTagsFallsBack(t *testing.T) {
	d := testDetector(t)
	// Tag present but no trigger phrase in the text (theme-derived tag)
	text := "Today was an ordinary day with nothing special."
	got := d.Excerpt(text, []Category{MentalHealth})
	if got != text {
		t.Errorf("expected fallback to full text, got %q", got)
	}
}

func TestExcerptTruncatesLongResult(t *testing.T) {
	d := testDetector(t)
	sentence := "so depressed " + strings.Repeat("and sad ", 40)
	text := sentence + ". " + sentence + ". " + sentence
	got := d.ExcerptN(text, []Category{MentalHealth}, 200, 100)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if len([]rune(got)) != 203 {
		t.Errorf("expected 203 runes, got %d", len([]rune(got)))
	}
}

func TestExcerptLengthChangingRunes(t *testing.T) {
	d := testDetector(t)
	// U+023A lowercases to U+2C65, whose UTF-8 encoding is one byte longer.
	text := strings.Repeat("Ⱥ", 10) + " kill myself. Nothing else happened."
	got := d.Excerpt(text, []Category{SelfHarm})
	if !strings.Contains(got, "kill myself") {
		t.Errorf("expected matching sentence, got %q", got)
	}
	if strings.Contains(got, "Nothing else") {
		t.Errorf("expected non-matching sentence dropped, got %q", got)
	}
}

func TestExcerptEmptyText(t *testing.T) {
	d := testDetector(t)
	if got := d.Excerpt("", []Category{Violence}); got != "" {
		t.Errorf("expected empty excerpt, got %q", got)
	}
}
