package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/safechat/analyzer/internal/classify"
	"github.com/safechat/analyzer/internal/risk"
)

// ErrInvalidInput marks a malformed record the caller must fix before
// retrying.
var ErrInvalidInput = errors.New("invalid input")

// AppendEvent persists a classification event and returns its ID.
// UserID and Timestamp are required.
func (db *DB) AppendEvent(e Event) (int64, error) {
	if e.UserID == "" {
		return 0, fmt.Errorf("%w: missing user_id", ErrInvalidInput)
	}
	if e.Timestamp == "" {
		return 0, fmt.Errorf("%w: missing timestamp", ErrInvalidInput)
	}

	sentimentJSON, err := json.Marshal(e.Sentiment)
	if err != nil {
		return 0, fmt.Errorf("encoding sentiment: %w", err)
	}
	tagsJSON, err := json.Marshal(tagStrings(e.RiskTags))
	if err != nil {
		return 0, fmt.Errorf("encoding risk tags: %w", err)
	}
	themesJSON, err := json.Marshal(emptyIfNil(e.Themes))
	if err != nil {
		return 0, fmt.Errorf("encoding themes: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO events (user_id, ts, message_text, sentiment_json, risk_tags_json, danger_level, themes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Timestamp, e.MessageText,
		string(sentimentJSON), string(tagsJSON), e.Danger.String(), string(themesJSON),
	)
	if err != nil {
		return 0, unavailable(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, unavailable(err)
	}
	return id, nil
}

// EventsForUser returns a user's events in insertion order. An empty date
// returns the full history; otherwise only events on that YYYY-MM-DD date.
func (db *DB) EventsForUser(userID, date string) ([]Event, error) {
	query := `SELECT id, user_id, ts, message_text, sentiment_json, risk_tags_json, danger_level, themes_json
		FROM events WHERE user_id = ?`
	args := []any{userID}
	if date != "" {
		query += " AND ts LIKE ?"
		args = append(args, date+"%")
	}
	query += " ORDER BY id ASC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// UserIDs returns the distinct user IDs that have events, sorted. A
// non-empty date restricts to users with events on that YYYY-MM-DD date.
func (db *DB) UserIDs(date string) ([]string, error) {
	query := "SELECT DISTINCT user_id FROM events"
	var args []any
	if date != "" {
		query += " WHERE ts LIKE ?"
		args = append(args, date+"%")
	}
	query += " ORDER BY user_id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var sentimentJSON, tagsJSON, themesJSON, danger string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.MessageText,
			&sentimentJSON, &tagsJSON, &danger, &themesJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sentimentJSON), &e.Sentiment); err != nil {
			return nil, fmt.Errorf("decoding sentiment for event %d: %w", e.ID, err)
		}
		var rawTags []string
		if err := json.Unmarshal([]byte(tagsJSON), &rawTags); err != nil {
			return nil, fmt.Errorf("decoding risk tags for event %d: %w", e.ID, err)
		}
		for _, s := range rawTags {
			if c, ok := risk.ParseCategory(s); ok {
				e.RiskTags = append(e.RiskTags, c)
			}
		}
		if err := json.Unmarshal([]byte(themesJSON), &e.Themes); err != nil {
			return nil, fmt.Errorf("decoding themes for event %d: %w", e.ID, err)
		}
		level, err := classify.ParseDangerLevel(danger)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		e.Danger = level
		events = append(events, e)
	}
	return events, rows.Err()
}

func tagStrings(tags []risk.Category) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
