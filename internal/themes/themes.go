// Package themes extracts conversation themes from raw text via an LLM.
// Theme extraction is an enrichment step: callers must treat failure as
// degraded output, never as a reason to abort classification.
package themes

import (
	"context"
	"fmt"

	"github.com/safechat/analyzer/internal/llm"
)

const themePrompt = `You are analyzing text captured from short conversations.
Extract only meaningful conversation themes that would be relevant to understanding a person's mental state or daily activities.
Filter out technical terms, website navigation elements, login prompts, error messages, and other irrelevant content.
Focus on themes related to emotions, relationships, activities, interests, and personal topics.
IMPORTANT: Respond with ONLY a comma-separated list of 1-%d theme words. Do not include any explanations, introductions, or additional text.
Example format: happy, school, friends, stress, gaming

Text:
%s`

// Extractor pulls themes out of conversation text.
type Extractor struct {
	provider  llm.Provider
	topK      int
	maxTokens int
}

// NewExtractor creates an extractor returning at most topK themes.
func NewExtractor(provider llm.Provider, topK, maxTokens int) *Extractor {
	if topK <= 0 {
		topK = 5
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Extractor{provider: provider, topK: topK, maxTokens: maxTokens}
}

// Extract returns up to topK lowercase theme words for the text.
// Empty text yields no themes without calling the model.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	if e.provider == nil || !e.provider.IsConfigured() {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	response, err := e.provider.Generate(ctx, fmt.Sprintf(themePrompt, e.topK, text), e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("extracting themes: %w", err)
	}
	return llm.ParseList(response, e.topK), nil
}
