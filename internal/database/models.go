package database

import (
	"github.com/safechat/analyzer/internal/classify"
	"github.com/safechat/analyzer/internal/risk"
	"github.com/safechat/analyzer/internal/sentiment"
)

// Event is one persisted classification result. Events are append-only:
// the core never updates or deletes them.
type Event struct {
	ID          int64
	UserID      string
	Timestamp   string // UTC, RFC 3339
	MessageText *string
	Sentiment   sentiment.Score
	RiskTags    []risk.Category
	Danger      classify.DangerLevel
	Themes      []string
}

// DailySummary is a persisted snapshot of one user's aggregate for one day.
// It is derived data: recomputation from events is always authoritative.
type DailySummary struct {
	ID           int64
	UserID       string
	Date         string
	ThemeCounts  map[string]int
	RiskCounts   map[risk.Category]int
	MeanCompound *float64
	EventCount   int
	CreatedAt    *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalEvents    int
	Users          int
	HighRiskEvents int
	DailySummaries int
}
