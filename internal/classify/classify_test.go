package classify

import (
	"testing"

	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	d, err := risk.NewDetector(map[string][]string{
		"self_harm":     {"kill myself", "i want to die", "overdose"},
		"sexual":        {"porn"},
		"violence":      {"attack", "shooting"},
		"drugs":         {"weed", "cocaine"},
		"mental_health": {"depressed", "hopeless"},
	})
	if err != nil {
		t.Fatalf("building detector: %v", err)
	}
	return New(sentiment.NewLexiconScorer(), d)
}

func TestComposeSelfHarmIsHighAndOverridesSentiment(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("I want to kill myself", nil)
	if v.Danger != High {
		t.Errorf("expected high, got %s", v.Danger)
	}
	if !risk.Contains(v.KeywordTags, risk.SelfHarm) {
		t.Errorf("expected self_harm keyword tag, got %v", v.KeywordTags)
	}
	if v.Sentiment.Compound > -0.8 {
		t.Errorf("expected compound <= -0.8, got %f", v.Sentiment.Compound)
	}
	if v.Sentiment.Negative < 0.8 {
		t.Errorf("expected negative >= 0.8, got %f", v.Sentiment.Negative)
	}
	if v.Sentiment.Positive > 0.1 {
		t.Errorf("expected positive <= 0.1, got %f", v.Sentiment.Positive)
	}
}

func TestComposeAnyRiskTagIsHigh(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("we smoked weed after school", nil)
	if v.Danger != High {
		t.Errorf("expected high for drug mention, got %s", v.Danger)
	}
	// No self-harm: sentiment stays as scored.
	if v.Sentiment.Negative >= 0.8 {
		t.Errorf("sentiment should not be overridden, got %+v", v.Sentiment)
	}
}

func TestComposePositiveTextIsLow(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("I had a great day at school with friends", []string{"school", "friends"})
	if len(v.RiskTags) != 0 {
		t.Errorf("expected no risk tags, got %v", v.RiskTags)
	}
	if v.Danger != Low {
		t.Errorf("expected low, got %s", v.Danger)
	}
}

func TestComposeThemeTagsAlsoForceHigh(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("today was fine I guess", []string{"depressed"})
	if !risk.Contains(v.ThemeTags, risk.MentalHealth) {
		t.Errorf("expected mental_health theme tag, got %v", v.ThemeTags)
	}
	if len(v.KeywordTags) != 0 {
		t.Errorf("expected no keyword tags, got %v", v.KeywordTags)
	}
	if v.Danger != High {
		t.Errorf("expected high, got %s", v.Danger)
	}
}

func TestComposeRiskTagsAreUnion(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("there was a shooting near school", []string{"weed"})
	want := []risk.Category{risk.Violence, risk.Drugs}
	if len(v.RiskTags) != len(want) {
		t.Fatalf("expected %v, got %v", want, v.RiskTags)
	}
	for i := range want {
		if v.RiskTags[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], v.RiskTags[i])
		}
	}
}

func TestComposeNegativeSentimentWithoutTags(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("everything is awful and I feel miserable and worthless and alone", nil)
	if len(v.RiskTags) != 0 {
		t.Fatalf("expected no risk tags, got %v", v.RiskTags)
	}
	if v.Danger != Medium && v.Danger != LowMedium {
		t.Errorf("expected a sentiment-driven level, got %s", v.Danger)
	}
	if v.Danger == Low {
		t.Errorf("clearly negative text must not be low")
	}
}

func TestComposeEmptyText(t *testing.T) {
	c := testClassifier(t)
	v := c.Compose("", nil)
	if len(v.RiskTags) != 0 {
		t.Errorf("expected no tags, got %v", v.RiskTags)
	}
	if v.Danger != Low {
		t.Errorf("expected low, got %s", v.Danger)
	}
	if v.Sentiment.Neutral != 1 {
		t.Errorf("expected fully neutral sentiment, got %+v", v.Sentiment)
	}
}

func TestDangerLevelOrdering(t *testing.T) {
	if !(Low < LowMedium && LowMedium < Medium && Medium < High) {
		t.Error("danger levels out of order")
	}
}

func TestDangerLevelStringRoundTrip(t *testing.T) {
	for _, d := range []DangerLevel{Low, LowMedium, Medium, High} {
		parsed, err := ParseDangerLevel(d.String())
		if err != nil {
			t.Fatalf("parsing %q: %v", d.String(), err)
		}
		if parsed != d {
			t.Errorf("round trip %s: got %s", d, parsed)
		}
	}
	if _, err := ParseDangerLevel("critical"); err == nil {
		t.Error("expected error for unknown level name")
	}
}

func TestDangerLevelJSON(t *testing.T) {
	b, err := LowMedium.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"low_medium"` {
		t.Errorf("expected quoted low_medium, got %s", b)
	}
}
