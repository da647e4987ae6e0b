package history

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gastondana627/orielfx/internal/api"
)

// ErrNoCache is returned when no cached preferences exist.
var ErrNoCache = errors.New("no cached preferences")

// Entry is one recorded API call.
type Entry struct {
	Timestamp time.Time
	RequestID string
	Method    string
	Endpoint  string
	Status    int
	Outcome   string
	Attempts  int
	LatencyMS int64
}

// RecordCall stores the outcome of one API call. It is used as the api
// client's record hook and is best-effort: errors are logged, never
// returned to the caller path.
func (d *DB) RecordCall(rec api.CallRecord) {
	_, err := d.Exec(
		`INSERT INTO api_calls (request_id, method, endpoint, status, outcome, attempts, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Method, rec.Endpoint, rec.Status, rec.Outcome, rec.Attempts, rec.Latency.Milliseconds(),
	)
	if err != nil {
		log.Printf("history: recording call %s %s: %v", rec.Method, rec.Endpoint, err)
	}
}

// Recent returns the most recent API calls, newest first.
func (d *DB) Recent(limit int) ([]Entry, error) {
	rows, err := d.Query(
		`SELECT timestamp, request_id, method, endpoint, status, outcome, attempts, latency_ms
		 FROM api_calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying call history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&ts, &e.RequestID, &e.Method, &e.Endpoint, &e.Status, &e.Outcome, &e.Attempts, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("scanning call history: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SavePreferences caches the latest preferences payload for offline reads.
func (d *DB) SavePreferences(payload []byte) error {
	_, err := d.Exec(
		`INSERT INTO preferences_cache (id, payload, updated_at) VALUES (1, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload))
	if err != nil {
		return fmt.Errorf("caching preferences: %w", err)
	}
	return nil
}

// LoadPreferences returns the cached preferences payload.
func (d *DB) LoadPreferences() ([]byte, error) {
	var payload string
	err := d.QueryRow(`SELECT payload FROM preferences_cache WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCache
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached preferences: %w", err)
	}
	return []byte(payload), nil
}
