package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/safechat/analyzer/internal/risk"
)

// UpsertDailySummary stores or replaces the snapshot for (user_id, date).
// Snapshots are caches; events remain the source of truth.
func (db *DB) UpsertDailySummary(s DailySummary) error {
	if s.UserID == "" || s.Date == "" {
		return fmt.Errorf("%w: missing user_id or date", ErrInvalidInput)
	}

	themesJSON, err := json.Marshal(emptyCountsIfNil(s.ThemeCounts))
	if err != nil {
		return fmt.Errorf("encoding theme counts: %w", err)
	}
	risks := make(map[string]int, len(s.RiskCounts))
	for c, n := range s.RiskCounts {
		risks[string(c)] = n
	}
	risksJSON, err := json.Marshal(risks)
	if err != nil {
		return fmt.Errorf("encoding risk counts: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT OR REPLACE INTO daily_summaries (user_id, date, theme_counts_json, risk_counts_json, mean_compound, event_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Date, string(themesJSON), string(risksJSON), s.MeanCompound, s.EventCount,
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// DailySummaryFor returns the snapshot for (user_id, date), or nil if none.
func (db *DB) DailySummaryFor(userID, date string) (*DailySummary, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, date, theme_counts_json, risk_counts_json, mean_compound, event_count, created_at
		FROM daily_summaries WHERE user_id = ? AND date = ?`, userID, date,
	)
	return scanSummary(row)
}

// LatestDailySummary returns the most recent snapshot for a user, or nil.
func (db *DB) LatestDailySummary(userID string) (*DailySummary, error) {
	row := db.conn.QueryRow(
		`SELECT id, user_id, date, theme_counts_json, risk_counts_json, mean_compound, event_count, created_at
		FROM daily_summaries WHERE user_id = ? ORDER BY date DESC LIMIT 1`, userID,
	)
	return scanSummary(row)
}

func scanSummary(row *sql.Row) (*DailySummary, error) {
	var s DailySummary
	var themesJSON, risksJSON string
	err := row.Scan(&s.ID, &s.UserID, &s.Date, &themesJSON, &risksJSON,
		&s.MeanCompound, &s.EventCount, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}

	if err := json.Unmarshal([]byte(themesJSON), &s.ThemeCounts); err != nil {
		return nil, fmt.Errorf("decoding theme counts: %w", err)
	}
	var risks map[string]int
	if err := json.Unmarshal([]byte(risksJSON), &risks); err != nil {
		return nil, fmt.Errorf("decoding risk counts: %w", err)
	}
	s.RiskCounts = make(map[risk.Category]int, len(risks))
	for name, n := range risks {
		if c, ok := risk.ParseCategory(name); ok {
			s.RiskCounts[c] = n
		}
	}
	return &s, nil
}

func emptyCountsIfNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
