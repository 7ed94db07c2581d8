// Package assess generates caregiver-facing narratives from aggregated
// metrics. Only counts, labels and short excerpts reach the model, never a
// user's full message history.
package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/safechat/analyzer/internal/aggregate"
	"github.com/safechat/analyzer/internal/llm"
	"github.com/safechat/analyzer/internal/risk"
)

const assessmentPrompt = `You are a clinical-adjacent assistant that writes concise, actionable mental-health assessments for a parent or caregiver. Be empathetic, non-judgmental, and include clear next steps and emergency instructions if severe risk is detected.

Given the following aggregated conversation metrics, produce:
1) A short assessment (2-4 sentences) of the user's mental state. Your tone should be similar to a therapist speaking to a client's caregiver.
2) Risk level summary (mention self-harm/suicidal/violence flags if present).
3) Concrete recommended next steps for a caregiver, including when to seek emergency help.

%s`

const summaryPrompt = `You are a helpful assistant that writes concise, parent-friendly daily summaries of conversation trends.

Write a short human-readable daily summary using the following aggregated metrics and short excerpts. Include top themes, overall sentiment and risk highlights. Keep it under 200 words.

%s`

// excerpts beyond this add tokens without adding signal
const maxExcerpts = 6

// Generator turns aggregates into narrative text.
type Generator struct {
	provider  llm.Provider
	maxTokens int
}

func NewGenerator(provider llm.Provider, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Generator{provider: provider, maxTokens: maxTokens}
}

// Assess produces a caregiver assessment from a user's aggregate.
func (g *Generator) Assess(ctx context.Context, agg aggregate.Summary, topThemes []string) (string, error) {
	if g.provider == nil || !g.provider.IsConfigured() {
		return "", fmt.Errorf("no LLM provider configured")
	}
	prompt := fmt.Sprintf(assessmentPrompt, describe(agg, topThemes, nil))
	text, err := g.provider.Generate(ctx, prompt, g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generating assessment: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Summarize produces a short daily summary narrative.
func (g *Generator) Summarize(ctx context.Context, agg aggregate.Summary, topThemes, excerpts []string) (string, error) {
	if g.provider == nil || !g.provider.IsConfigured() {
		return "", fmt.Errorf("no LLM provider configured")
	}
	prompt := fmt.Sprintf(summaryPrompt, describe(agg, topThemes, excerpts))
	text, err := g.provider.Generate(ctx, prompt, g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// describe renders an aggregate as a compact plain-text block for a prompt.
func describe(agg aggregate.Summary, topThemes, excerpts []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Events analyzed: %d\n", agg.EventCount)
	fmt.Fprintf(&b, "Overall sentiment: %s", aggregate.SentimentLabel(agg.MeanCompound))
	if agg.MeanCompound != nil {
		fmt.Fprintf(&b, " (mean compound %.2f)", *agg.MeanCompound)
	}
	b.WriteString("\n")

	if len(topThemes) > 0 {
		fmt.Fprintf(&b, "Top themes: %s\n", strings.Join(topThemes, ", "))
	}

	if agg.TotalRiskEvents() > 0 {
		b.WriteString("Risk flags:\n")
		for _, c := range risk.Categories {
			if n := agg.RiskCounts[c]; n > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", c, n)
			}
		}
	} else {
		b.WriteString("Risk flags: none\n")
	}

	if len(excerpts) > 0 {
		if len(excerpts) > maxExcerpts {
			excerpts = excerpts[:maxExcerpts]
		}
		b.WriteString("Excerpts:\n")
		for _, e := range excerpts {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}
