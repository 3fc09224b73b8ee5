package models

import (
	"database/sql"
	"fmt"
	"time"
)

// PollerRun is the audit record of one rectification-poller batch.
type PollerRun struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Scanned    int        `json:"scanned"`
	Updated    int        `json:"updated"`
	Errored    int        `json:"errored"`
}

// Start inserts the run's start record and fills in its id.
func (r *PollerRun) Start(db *sql.DB) error {
	r.StartedAt = time.Now().UTC()
	res, err := db.Exec(`INSERT INTO poller_runs (started_at) VALUES (?)`, r.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting poller run: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading poller run insert id: %w", err)
	}
	return nil
}

// Finish stamps the run with its aggregate counts.
func (r *PollerRun) Finish(db *sql.DB) error {
	now := time.Now().UTC()
	r.FinishedAt = &now
	_, err := db.Exec(`UPDATE poller_runs SET finished_at = ?, scanned = ?, updated = ?, errored = ? WHERE id = ?`,
		r.FinishedAt, r.Scanned, r.Updated, r.Errored, r.ID)
	if err != nil {
		return fmt.Errorf("finishing poller run %d: %w", r.ID, err)
	}
	return nil
}

// ListPollerRuns returns the most recent runs, newest first.
func ListPollerRuns(db *sql.DB, limit int) ([]PollerRun, error) {
	rows, err := db.Query(`SELECT id, started_at, finished_at, scanned, updated, errored
		FROM poller_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing poller runs: %w", err)
	}
	defer rows.Close()

	var out []PollerRun
	for rows.Next() {
		var r PollerRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Scanned, &r.Updated, &r.Errored); err != nil {
			return nil, fmt.Errorf("scanning poller run row: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating poller run rows: %w", err)
	}
	return out, nil
}
