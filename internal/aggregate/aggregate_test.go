package aggregate

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/safechat/analyzer/internal/database"
	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
)

func event(compound float64, themes []string, tags ...risk.Category) database.Event {
	return database.Event{
		UserID:    "alice",
		Timestamp: "2026-08-28T10:00:00Z",
		Sentiment: sentiment.Score{Compound: compound},
		RiskTags:  tags,
		Themes:    themes,
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	if s.EventCount != 0 {
		t.Errorf("expected 0 events, got %d", s.EventCount)
	}
	if s.MeanCompound != nil {
		t.Errorf("expected nil mean, got %v", *s.MeanCompound)
	}
	if len(s.ThemeCounts) != 0 || len(s.RiskCounts) != 0 {
		t.Errorf("expected empty counts, got %+v", s)
	}
}

func TestAggregateCounts(t *testing.T) {
	events := []database.Event{
		event(0.5, []string{"school", "friends"}),
		event(-0.7, []string{"school"}, risk.MentalHealth),
		event(-0.9, nil, risk.MentalHealth, risk.SelfHarm),
	}
	s := Aggregate(events)

	if s.EventCount != 3 {
		t.Errorf("expected 3 events, got %d", s.EventCount)
	}
	if s.ThemeCounts["school"] != 2 || s.ThemeCounts["friends"] != 1 {
		t.Errorf("unexpected theme counts %v", s.ThemeCounts)
	}
	if s.RiskCounts[risk.MentalHealth] != 2 || s.RiskCounts[risk.SelfHarm] != 1 {
		t.Errorf("unexpected risk counts %v", s.RiskCounts)
	}
	wantMean := (0.5 - 0.7 - 0.9) / 3
	if s.MeanCompound == nil || math.Abs(*s.MeanCompound-wantMean) > 1e-9 {
		t.Errorf("expected mean %f, got %v", wantMean, s.MeanCompound)
	}
	if s.TotalRiskEvents() != 3 {
		t.Errorf("expected 3 total risk events, got %d", s.TotalRiskEvents())
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	events := []database.Event{
		event(0.3, []string{"school"}),
		event(-0.2, []string{"games", "school"}, risk.Drugs),
		event(0.1, []string{"friends"}, risk.Violence),
		event(-0.8, nil, risk.SelfHarm),
	}
	base := Aggregate(events)

	shuffled := make([]database.Event, len(events))
	copy(shuffled, events)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := Aggregate(shuffled)
		if !reflect.DeepEqual(got.ThemeCounts, base.ThemeCounts) {
			t.Fatalf("theme counts differ after shuffle: %v vs %v", got.ThemeCounts, base.ThemeCounts)
		}
		if !reflect.DeepEqual(got.RiskCounts, base.RiskCounts) {
			t.Fatalf("risk counts differ after shuffle: %v vs %v", got.RiskCounts, base.RiskCounts)
		}
		if math.Abs(*got.MeanCompound-*base.MeanCompound) > 1e-9 {
			t.Fatalf("mean differs after shuffle: %f vs %f", *got.MeanCompound, *base.MeanCompound)
		}
	}
}

func TestTopThemes(t *testing.T) {
	events := []database.Event{
		event(0, []string{"games", "school"}),
		event(0, []string{"school", "friends"}),
		event(0, []string{"friends"}),
	}
	s := Aggregate(events)

	// school and friends tie at 2; school was seen first.
	got := s.TopThemes(2)
	want := []string{"school", "friends"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	all := s.TopThemes(10)
	if len(all) != 3 || all[2] != "games" {
		t.Errorf("expected games last, got %v", all)
	}
}

func TestTopRiskCategory(t *testing.T) {
	s := Aggregate([]database.Event{
		event(0, nil, risk.Drugs),
		event(0, nil, risk.Drugs),
		event(0, nil, risk.Violence),
	})
	top, ok := s.TopRiskCategory()
	if !ok || top != risk.Drugs {
		t.Errorf("expected drugs, got %s (%v)", top, ok)
	}

	// Tie: violence precedes drugs in canonical order.
	tied := Aggregate([]database.Event{
		event(0, nil, risk.Drugs),
		event(0, nil, risk.Violence),
	})
	top, ok = tied.TopRiskCategory()
	if !ok || top != risk.Violence {
		t.Errorf("expected violence on tie, got %s (%v)", top, ok)
	}

	if _, ok := Aggregate(nil).TopRiskCategory(); ok {
		t.Error("expected no top category for empty set")
	}
}

func TestSentimentLabel(t *testing.T) {
	cases := []struct {
		compound *float64
		want     string
	}{
		{nil, "n/a"},
		{f(0.5), "positive"},
		{f(0.05), "positive"},
		{f(0.0), "neutral"},
		{f(-0.04), "neutral"},
		{f(-0.05), "negative"},
		{f(-0.9), "negative"},
	}
	for _, c := range cases {
		if got := SentimentLabel(c.compound); got != c.want {
			t.Errorf("SentimentLabel(%v) = %q, want %q", c.compound, got, c.want)
		}
	}
}

func f(v float64) *float64 { return &v }

func TestSnapshot(t *testing.T) {
	s := Aggregate([]database.Event{event(0.2, []string{"school"}, risk.Drugs)})
	snap := s.Snapshot("alice", "2026-08-28")
	if snap.UserID != "alice" || snap.Date != "2026-08-28" {
		t.Errorf("unexpected snapshot identity %+v", snap)
	}
	if snap.EventCount != 1 || snap.ThemeCounts["school"] != 1 || snap.RiskCounts[risk.Drugs] != 1 {
		t.Errorf("unexpected snapshot counts %+v", snap)
	}
}
