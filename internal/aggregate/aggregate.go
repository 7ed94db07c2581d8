// Package aggregate folds classification events into per-user counts for
// downstream narrative generation.
package aggregate

import (
	"sort"

	"github.com/safechat/analyzer/internal/database"
	"github.com/safechat/analyzer/internal/risk"
)

// Summary is the aggregate of a set of events. Counts are order-independent:
// shuffling the input events yields the same Summary.
type Summary struct {
	ThemeCounts  map[string]int
	RiskCounts   map[risk.Category]int
	MeanCompound *float64
	EventCount   int

	// first-seen rank per theme, for deterministic tie-breaking
	themeOrder map[string]int
}

// Aggregate computes the summary of a set of events. An empty set yields
// zero counts and a nil mean.
func Aggregate(events []database.Event) Summary {
	s := Summary{
		ThemeCounts: make(map[string]int),
		RiskCounts:  make(map[risk.Category]int),
		EventCount:  len(events),
		themeOrder:  make(map[string]int),
	}

	var sum float64
	var n int
	for _, e := range events {
		for _, theme := range e.Themes {
			if _, seen := s.themeOrder[theme]; !seen {
				s.themeOrder[theme] = len(s.themeOrder)
			}
			s.ThemeCounts[theme]++
		}
		for _, tag := range e.RiskTags {
			s.RiskCounts[tag]++
		}
		sum += e.Sentiment.Compound
		n++
	}

	if n > 0 {
		mean := sum / float64(n)
		s.MeanCompound = &mean
	}
	return s
}

// TopThemes returns up to n themes by descending count. Ties break by the
// order themes were first seen in the event list.
func (s Summary) TopThemes(n int) []string {
	themes := make([]string, 0, len(s.ThemeCounts))
	for theme := range s.ThemeCounts {
		themes = append(themes, theme)
	}
	sort.Slice(themes, func(i, j int) bool {
		a, b := themes[i], themes[j]
		if s.ThemeCounts[a] != s.ThemeCounts[b] {
			return s.ThemeCounts[a] > s.ThemeCounts[b]
		}
		return s.themeOrder[a] < s.themeOrder[b]
	})
	if len(themes) > n {
		themes = themes[:n]
	}
	return themes
}

// TotalRiskEvents sums all risk-tag counts.
func (s Summary) TotalRiskEvents() int {
	var total int
	for _, n := range s.RiskCounts {
		total += n
	}
	return total
}

// TopRiskCategory returns the most frequent risk category, ties broken by
// canonical category order. Second result is false when no tags were seen.
func (s Summary) TopRiskCategory() (risk.Category, bool) {
	var top risk.Category
	var best int
	for _, c := range risk.Categories {
		if n := s.RiskCounts[c]; n > best {
			top, best = c, n
		}
	}
	return top, best > 0
}

// SentimentLabel names a compound value: positive at or above 0.05,
// negative at or below -0.05, neutral between, n/a for nil.
func SentimentLabel(compound *float64) string {
	switch {
	case compound == nil:
		return "n/a"
	case *compound >= 0.05:
		return "positive"
	case *compound <= -0.05:
		return "negative"
	}
	return "neutral"
}

// Snapshot converts the summary into a persistable daily snapshot row.
func (s Summary) Snapshot(userID, date string) database.DailySummary {
	return database.DailySummary{
		UserID:       userID,
		Date:         date,
		ThemeCounts:  s.ThemeCounts,
		RiskCounts:   s.RiskCounts,
		MeanCompound: s.MeanCompound,
		EventCount:   s.EventCount,
	}
}
