// Package classify combines sentiment and risk detection into a single
// verdict with a ranked danger level.
package classify

import (
	"fmt"

	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
)

// DangerLevel ranks the severity of one classified text sample.
type DangerLevel int

const (
	Low DangerLevel = iota
	LowMedium
	Medium
	High
)

func (d DangerLevel) String() string {
	switch d {
	case Low:
		return "low"
	case LowMedium:
		return "low_medium"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return "unknown"
}

// MarshalJSON renders the level as its string name.
func (d DangerLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// ParseDangerLevel maps a stored level name back to its rank.
func ParseDangerLevel(s string) (DangerLevel, error) {
	switch s {
	case "low":
		return Low, nil
	case "low_medium":
		return LowMedium, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return Low, fmt.Errorf("unknown danger level %q", s)
}

// Verdict is the immutable result of classifying one text sample.
// RiskTags is the union of KeywordTags and ThemeTags.
type Verdict struct {
	Sentiment   sentiment.Score
	KeywordTags []risk.Category
	ThemeTags   []risk.Category
	RiskTags    []risk.Category
	Danger      DangerLevel
}

// Classifier composes verdicts from a sentiment scorer and a risk detector.
// Compose is a pure function of its inputs, so a single Classifier serves
// concurrent requests.
type Classifier struct {
	scorer   sentiment.Scorer
	detector *risk.Detector
}

func New(scorer sentiment.Scorer, detector *risk.Detector) *Classifier {
	return &Classifier{scorer: scorer, detector: detector}
}

// Compose classifies text with an optional externally extracted theme list.
// Any risk tag forces the high danger level; otherwise the level follows
// sentiment alone. Self-harm content additionally overrides the sentiment
// record so callers always see it as extremely negative.
func (c *Classifier) Compose(text string, themes []string) Verdict {
	score := c.scorer.Score(text)
	keywordTags := c.detector.KeywordTags(text)
	themeTags := c.detector.ThemeTags(themes)
	riskTags := risk.Union(keywordTags, themeTags)

	danger := Low
	switch {
	case len(riskTags) > 0:
		danger = High
		if risk.Contains(riskTags, risk.SelfHarm) {
			score = forceNegative(score)
		}
	case score.Negative > 0.5 || score.Compound < -0.6:
		danger = Medium
	case score.Compound < -0.2:
		danger = LowMedium
	}

	return Verdict{
		Sentiment:   score,
		KeywordTags: keywordTags,
		ThemeTags:   themeTags,
		RiskTags:    riskTags,
		Danger:      danger,
	}
}

func forceNegative(s sentiment.Score) sentiment.Score {
	if s.Compound > -0.8 {
		s.Compound = -0.8
	}
	if s.Negative < 0.8 {
		s.Negative = 0.8
	}
	if s.Positive > 0.1 {
		s.Positive = 0.1
	}
	return s
}
