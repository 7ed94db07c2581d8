// Package report renders caregiver email bodies from aggregated metrics.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/safechat/analyzer/internal/aggregate"
	"github.com/safechat/analyzer/internal/risk"
)

var md = goldmark.New()

// Report is one rendered summary email.
type Report struct {
	Subject   string
	HTML      string
	PlainText string
}

type cardData struct {
	UserID         string
	DateLabel      string
	EventCount     int
	AvgCompound    string
	SentimentLabel string
	RiskTotal      int
	TopRisk        string
	TopRiskCount   int
	Themes         []themeBadge
	RiskRows       []riskRow
	Assessment     template.HTML
}

type themeBadge struct {
	Name  string
	Count int
}

type riskRow struct {
	Category string
	Count    int
}

// Render builds the HTML and plain-text bodies for a user's summary.
// assessmentMarkdown is the LLM narrative; it may be empty.
func Render(userID, date string, agg aggregate.Summary, assessmentMarkdown string) (*Report, error) {
	dateLabel := date
	if dateLabel == "" {
		dateLabel = "All time"
	}

	data := cardData{
		UserID:         userID,
		DateLabel:      dateLabel,
		EventCount:     agg.EventCount,
		AvgCompound:    "N/A",
		SentimentLabel: aggregate.SentimentLabel(agg.MeanCompound),
		RiskTotal:      agg.TotalRiskEvents(),
		TopRisk:        "None",
	}
	if agg.MeanCompound != nil {
		data.AvgCompound = fmt.Sprintf("%.3f", *agg.MeanCompound)
	}
	if top, ok := agg.TopRiskCategory(); ok {
		data.TopRisk = string(top)
		data.TopRiskCount = agg.RiskCounts[top]
	}
	for _, theme := range agg.TopThemes(8) {
		data.Themes = append(data.Themes, themeBadge{Name: theme, Count: agg.ThemeCounts[theme]})
	}
	for _, c := range risk.Categories {
		if n := agg.RiskCounts[c]; n > 0 {
			data.RiskRows = append(data.RiskRows, riskRow{Category: string(c), Count: n})
		}
	}

	if assessmentMarkdown != "" {
		var buf bytes.Buffer
		if err := md.Convert([]byte(assessmentMarkdown), &buf); err != nil {
			return nil, fmt.Errorf("rendering assessment: %w", err)
		}
		data.Assessment = template.HTML(buf.String())
	}

	var html bytes.Buffer
	if err := cardTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("rendering email: %w", err)
	}

	return &Report{
		Subject:   fmt.Sprintf("Daily summary for %s", userID),
		HTML:      html.String(),
		PlainText: plainText(data, assessmentMarkdown),
	}, nil
}

func plainText(data cardData, assessment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary for %s\nDate: %s\n\n", data.UserID, data.DateLabel)
	fmt.Fprintf(&b, "Analyses: %d\n", data.EventCount)
	fmt.Fprintf(&b, "Avg sentiment: %s (%s)\n", data.AvgCompound, data.SentimentLabel)
	fmt.Fprintf(&b, "Risk hits: %d (top: %s %d)\n", data.RiskTotal, data.TopRisk, data.TopRiskCount)
	if len(data.RiskRows) > 0 {
		parts := make([]string, 0, len(data.RiskRows))
		for _, r := range data.RiskRows {
			parts = append(parts, fmt.Sprintf("%s=%d", r.Category, r.Count))
		}
		fmt.Fprintf(&b, "Risk counts: %s\n", strings.Join(parts, ", "))
	}
	if len(data.Themes) > 0 {
		parts := make([]string, 0, len(data.Themes))
		for _, t := range data.Themes {
			parts = append(parts, fmt.Sprintf("%s (%d)", t.Name, t.Count))
		}
		fmt.Fprintf(&b, "Top themes: %s\n", strings.Join(parts, ", "))
	}
	if assessment != "" {
		fmt.Fprintf(&b, "\nAssessment:\n%s\n", stripMarkdown(assessment))
	}
	return b.String()
}

// MarkdownHTML converts a narrative to HTML, falling back to escaped text
// when conversion fails.
func MarkdownHTML(s string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTMLEscapeString(s)
	}
	return buf.String()
}

// MarkdownPlain flattens a narrative to plain text.
func MarkdownPlain(s string) string {
	return stripMarkdown(s)
}

var boldMarks = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// stripMarkdown flattens the narrative for the plain-text part: bold
// markers removed, blank-line runs collapsed.
func stripMarkdown(s string) string {
	s = boldMarks.ReplaceAllString(s, "$1")
	s = regexp.MustCompile(`\n{3,}`).ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var cardTemplate = template.Must(template.New("card").Parse(`<html>
<head>
<meta charset="utf-8" />
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial; color: #111; background: #f6f8fb; padding: 24px; }
.card { background: #fff; border-radius: 8px; padding: 20px; max-width: 680px; margin: auto; box-shadow: 0 6px 18px rgba(12,20,40,0.08); }
h1 { font-size: 18px; margin: 0 0 8px 0; }
.muted { color: #556; font-size: 13px; }
.metrics { display: flex; gap: 16px; margin: 12px 0 18px 0; flex-wrap: wrap; }
.metric { background: #f4f6fb; padding: 10px 12px; border-radius: 6px; font-size: 13px; }
table { width: 100%; border-collapse: collapse; margin-top: 8px; }
th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; font-size: 13px; }
.badge { display:inline-block; background:#eef2ff; color:#2b4bd3; padding:4px 8px; border-radius:999px; font-weight:600; font-size:12px; }
.assessment { margin-top: 14px; font-size:14px; line-height:1.45; }
</style>
</head>
<body>
<div class="card">
<h1>Daily summary for {{.UserID}}</h1>
<div class="muted">Date: {{.DateLabel}}</div>
<div class="metrics">
<div class="metric"><strong>Analyses</strong><div>{{.EventCount}}</div></div>
<div class="metric"><strong>Avg sentiment</strong><div>{{.AvgCompound}}</div></div>
<div class="metric"><strong>Summary sentiment</strong><div>{{.SentimentLabel}}</div></div>
<div class="metric"><strong>Risk hits</strong><div>{{.RiskTotal}}</div></div>
<div class="metric"><strong>Top risk</strong><div>{{.TopRisk}} ({{.TopRiskCount}})</div></div>
</div>
<h2 style="font-size:14px;margin-top:8px;margin-bottom:6px">Top themes</h2>
<div>
{{range .Themes}}<span class="badge">{{.Name}} ({{.Count}})</span> {{end}}
</div>
<h2 style="font-size:14px;margin-top:14px;margin-bottom:6px">Risk highlights</h2>
<table>
<tr><th>Risk type</th><th>Count</th></tr>
{{range .RiskRows}}<tr><td>{{.Category}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{if .Assessment}}<div class="assessment">{{.Assessment}}</div>{{end}}
</div>
</body>
</html>
`))
