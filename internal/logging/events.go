package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-event
// LogEvent writes an entry to the events table.
func LogEvent(db *sql.DB, entry EventEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO events (run_id, generation, kind, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.RunID,
		nullIfNegative(entry.Generation),
		entry.Kind,
		nullIfEmpty(entry.Detail),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}
// #endregion log-event

// #region list-events
// ListEvents returns the events of a run in insertion order. An empty kind
// matches every kind.
func ListEvents(db *sql.DB, runID, kind string) ([]EventEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, generation, kind, detail, created_at FROM events
		 WHERE run_id = ? AND (? = '' OR kind = ?) ORDER BY id`,
		runID, kind, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventEntry
	for rows.Next() {
		var e EventEntry
		var gen sql.NullInt64
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &gen, &e.Kind, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Generation = -1
		if gen.Valid {
			e.Generation = int(gen.Int64)
		}
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion list-events

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNegative(n int) interface{} {
	if n < 0 {
		return nil
	}
	return n
}
// #endregion helpers
