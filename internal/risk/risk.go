package risk

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is one taxonomy bucket of concerning content.
type Category string

const (
	SelfHarm     Category = "self_harm"
	Sexual       Category = "sexual"
	Violence     Category = "violence"
	Drugs        Category = "drugs"
	MentalHealth Category = "mental_health"
)

// Categories lists all known categories in canonical order. The order is
// used as the deterministic tiebreak wherever one category must win.
var Categories = []Category{SelfHarm, Sexual, Violence, Drugs, MentalHealth}

// ParseCategory maps a string to a known Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type phrase struct {
	text      string
	pattern   *regexp.Regexp
	multiword bool
}

// Detector matches text and theme lists against a risk taxonomy.
// It is immutable after construction and safe for concurrent use.
type Detector struct {
	phrases map[Category][]phrase
}

// NewDetector compiles a taxonomy into a Detector. Category names must be
// known and each phrase must belong to exactly one category.
func NewDetector(taxonomy map[string][]string) (*Detector, error) {
	d := &Detector{phrases: make(map[Category][]phrase)}
	owner := make(map[string]Category)

	for name, list := range taxonomy {
		cat, ok := ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown risk category %q", name)
		}
		for _, p := range list {
			lowered := strings.ToLower(strings.TrimSpace(p))
			if lowered == "" {
				return nil, fmt.Errorf("empty phrase in category %q", name)
			}
			if prev, dup := owner[lowered]; dup && prev != cat {
				return nil, fmt.Errorf("phrase %q belongs to both %q and %q", lowered, prev, cat)
			}
			owner[lowered] = cat

			// Word boundaries on both ends so "ass" never fires on "glasses".
			pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(lowered) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compiling phrase %q: %w", lowered, err)
			}
			d.phrases[cat] = append(d.phrases[cat], phrase{
				text:      lowered,
				pattern:   pattern,
				multiword: strings.Contains(lowered, " "),
			})
		}
	}
	return d, nil
}

// KeywordTags returns the categories whose trigger phrases appear in text as
// complete tokens or token sequences. Result is in canonical category order.
func (d *Detector) KeywordTags(text string) []Category {
	if text == "" {
		return nil
	}
	lowered := strings.ToLower(text)

	var tags []Category
	for _, cat := range Categories {
		for _, p := range d.phrases[cat] {
			if p.pattern.MatchString(lowered) {
				tags = append(tags, cat)
				break
			}
		}
	}
	return tags
}

// ThemeTags returns the categories matched by an externally extracted theme
// list. A theme matches a phrase when it equals the phrase exactly, or when
// the phrase is multi-word and appears as a substring of the theme. Single
// words never substring-match, so "sex" does not fire on "sex education
// policy" unless the theme is exactly "sex".
func (d *Detector) ThemeTags(themes []string) []Category {
	if len(themes) == 0 {
		return nil
	}

	lowered := make([]string, 0, len(themes))
	for _, th := range themes {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(th)))
	}

	var tags []Category
	for _, cat := range Categories {
	phrases:
		for _, p := range d.phrases[cat] {
			for _, th := range lowered {
				if th == p.text || (p.multiword && strings.Contains(th, p.text)) {
					tags = append(tags, cat)
					break phrases
				}
			}
		}
	}
	return tags
}

// PhrasesFor returns the trigger phrases for the given categories.
func (d *Detector) PhrasesFor(tags []Category) []string {
	var out []string
	for _, cat := range tags {
		for _, p := range d.phrases[cat] {
			out = append(out, p.text)
		}
	}
	return out
}

// Union merges tag sets preserving canonical category order.
func Union(sets ...[]Category) []Category {
	present := make(map[Category]bool)
	for _, set := range sets {
		for _, c := range set {
			present[c] = true
		}
	}
	var out []Category
	for _, c := range Categories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether tags includes c.
func Contains(tags []Category, c Category) bool {
	for _, t := range tags {
		if t == c {
			return true
		}
	}
	return false
}
