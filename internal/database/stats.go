package database

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM events", &s.TotalEvents},
		{"SELECT COUNT(DISTINCT user_id) FROM events", &s.Users},
		{"SELECT COUNT(*) FROM events WHERE danger_level = 'high'", &s.HighRiskEvents},
		{"SELECT COUNT(*) FROM daily_summaries", &s.DailySummaries},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, unavailable(err)
		}
	}
	return &s, nil
}
