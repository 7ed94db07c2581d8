package llm

import "strings"

// ParseList parses a comma-separated list from an LLM response, handling
// markdown code fences and surrounding chatter like a trailing period.
// Returns at most limit items; zero or negative limit means no cap.
func ParseList(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	// Models sometimes answer across lines; treat newlines as separators too.
	text = strings.ReplaceAll(text, "\n", ",")

	var items []string
	for _, part := range strings.Split(text, ",") {
		item := strings.ToLower(strings.Trim(strings.TrimSpace(part), ".\"'`"))
		if item == "" {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items
}
