package assess

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/safechat/analyzer/internal/aggregate"
	"github.com/safechat/analyzer/internal/database"
	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response   string
	err        error
	configured bool
	prompts    []string
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }

func testAggregate() aggregate.Summary {
	return aggregate.Aggregate([]database.Event{
		{
			Sentiment: sentiment.Score{Compound: -0.6},
			RiskTags:  []risk.Category{risk.SelfHarm},
			Themes:    []string{"school", "loneliness"},
		},
		{
			Sentiment: sentiment.Score{Compound: -0.2},
			Themes:    []string{"school"},
		},
	})
}

func TestAssess(t *testing.T) {
	p := &mockProvider{response: "  The user shows signs of distress.  ", configured: true}
	g := NewGenerator(p, 400)

	got, err := g.Assess(context.Background(), testAggregate(), []string{"school", "loneliness"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "The user shows signs of distress." {
		t.Errorf("expected trimmed response, got %q", got)
	}

	prompt := p.prompts[0]
	for _, want := range []string{"Events analyzed: 2", "self_harm: 1", "school, loneliness", "negative"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSummarizeIncludesExcerpts(t *testing.T) {
	p := &mockProvider{response: "A short summary.", configured: true}
	g := NewGenerator(p, 300)

	excerpts := []string{"felt sad after school", "argued with a friend"}
	if _, err := g.Summarize(context.Background(), testAggregate(), []string{"school"}, excerpts); err != nil {
		t.Fatal(err)
	}
	prompt := p.prompts[0]
	for _, e := range excerpts {
		if !strings.Contains(prompt, e) {
			t.Errorf("prompt missing excerpt %q", e)
		}
	}
}

func TestSummarizeCapsExcerpts(t *testing.T) {
	p := &mockProvider{response: "ok", configured: true}
	g := NewGenerator(p, 300)

	var excerpts []string
	for i := 0; i < 10; i++ {
		excerpts = append(excerpts, "excerpt")
	}
	if _, err := g.Summarize(context.Background(), testAggregate(), nil, excerpts); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(p.prompts[0], "- excerpt"); got != 6 {
		t.Errorf("expected 6 excerpts in prompt, got %d", got)
	}
}

func TestNoRiskFlagsRendered(t *testing.T) {
	p := &mockProvider{response: "ok", configured: true}
	g := NewGenerator(p, 300)

	agg := aggregate.Aggregate([]database.Event{{Sentiment: sentiment.Score{Compound: 0.4}}})
	if _, err := g.Assess(context.Background(), agg, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p.prompts[0], "Risk flags: none") {
		t.Errorf("expected no risk flags line, got:\n%s", p.prompts[0])
	}
}

func TestUnconfiguredProvider(t *testing.T) {
	g := NewGenerator(&mockProvider{configured: false}, 300)
	if _, err := g.Assess(context.Background(), testAggregate(), nil); err == nil {
		t.Error("expected error for unconfigured provider")
	}
	if _, err := g.Summarize(context.Background(), testAggregate(), nil, nil); err == nil {
		t.Error("expected error for unconfigured provider")
	}
}

func TestProviderError(t *testing.T) {
	g := NewGenerator(&mockProvider{err: errors.New("boom"), configured: true}, 300)
	if _, err := g.Assess(context.Background(), testAggregate(), nil); err == nil {
		t.Error("expected error when generation fails")
	}
}
