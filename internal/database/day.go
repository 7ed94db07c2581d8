package database

import "time"

// FormatTime renders a timestamp the way events store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Today returns the current UTC date as YYYY-MM-DD.
func Today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// DateOf extracts the YYYY-MM-DD date from an event timestamp.
func DateOf(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}
