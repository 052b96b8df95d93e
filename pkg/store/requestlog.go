package store

import (
	"database/sql"
	"fmt"
	"time"
)

// requestLogRetention bounds the journal to the longest quota window.
const requestLogRetention = 24 * time.Hour

// RequestLog records admitted requests for the rate limiter.
type RequestLog struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Since returns admissions strictly after t, oldest first.
func (l *RequestLog) Since(t time.Time) ([]time.Time, error) {
	rows, err := l.db.Query(`SELECT at_ms FROM request_log WHERE at_ms > ? ORDER BY at_ms`, toMillis(t))
	if err != nil {
		return nil, fmt.Errorf("query request log: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		out = append(out, fromMillis(ms))
	}
	return out, rows.Err()
}

// Append records an admission and prunes entries older than a day.
func (l *RequestLog) Append(t time.Time) error {
	if _, err := l.db.Exec(`INSERT INTO request_log (at_ms) VALUES (?)`, toMillis(t)); err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	if _, err := l.db.Exec(`DELETE FROM request_log WHERE at_ms <= ?`, toMillis(t.Add(-requestLogRetention))); err != nil {
		return fmt.Errorf("prune request log: %w", err)
	}
	return nil
}
