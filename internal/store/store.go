// Package store keeps privacy-conscious site analytics in SQLite: visits
// with hashed IPs and the interaction events of Projects panels. Panel
// state itself is never stored here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds recorded for panels.
const (
	EventMount   = "mount"
	EventToggle  = "toggle"
	EventMeasure = "measure"
	EventSettle  = "settle"
	EventUnmount = "unmount"
)

type Visitor struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

type PanelEvent struct {
	PanelID         string    `json:"panel_id"`
	Content         string    `json:"content"`
	Kind            string    `json:"kind"`
	Expanded        bool      `json:"expanded"`
	NaturalHeightPx float64   `json:"natural_height_px"`
	At              time.Time `json:"at"`
}

type Stats struct {
	TotalVisitors    int64     `json:"total_visitors"`
	UniqueVisitors   int64     `json:"unique_visitors"`
	VisitorsToday    int64     `json:"visitors_today"`
	VisitorsThisWeek int64     `json:"visitors_this_week"`
	PanelsMounted    int64     `json:"panels_mounted"`
	Toggles          int64     `json:"toggles"`
	Expansions       int64     `json:"expansions"`
	AvgContentPx     float64   `json:"avg_content_px"`
	RecentVisitors   []Visitor `json:"recent_visitors"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hashed_ip TEXT NOT NULL,
	user_agent TEXT,
	path TEXT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS visitors_ts ON visitors(ts);

CREATE TABLE IF NOT EXISTS panel_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	panel_id TEXT NOT NULL,
	content TEXT,
	kind TEXT NOT NULL,
	expanded INTEGER NOT NULL DEFAULT 0,
	natural_height_px REAL NOT NULL DEFAULT 0,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS panel_events_kind ON panel_events(kind);
`

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordVisit(ctx context.Context, hashedIP, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitors (hashed_ip, user_agent, path, ts)
		VALUES (?, ?, ?, ?)
	`, hashedIP, userAgent, path, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: record visit: %w", err)
	}
	return nil
}

func (s *Store) RecordPanelEvent(ctx context.Context, ev PanelEvent) error {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO panel_events (panel_id, content, kind, expanded, natural_height_px, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.PanelID, ev.Content, ev.Kind, ev.Expanded, ev.NaturalHeightPx, at.Unix())
	if err != nil {
		return fmt.Errorf("store: record panel event: %w", err)
	}
	return nil
}

// Stats aggregates visitor and panel numbers for the admin dashboard.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	queries := []struct {
		query string
		args  []any
		dest  any
	}{
		{"SELECT COUNT(*) FROM visitors", nil, &stats.TotalVisitors},
		{"SELECT COUNT(DISTINCT hashed_ip) FROM visitors", nil, &stats.UniqueVisitors},
		{"SELECT COUNT(*) FROM visitors WHERE ts >= ?", []any{midnight.Unix()}, &stats.VisitorsToday},
		{"SELECT COUNT(*) FROM visitors WHERE ts >= ?", []any{weekAgo.Unix()}, &stats.VisitorsThisWeek},
		{"SELECT COUNT(*) FROM panel_events WHERE kind = ?", []any{EventMount}, &stats.PanelsMounted},
		{"SELECT COUNT(*) FROM panel_events WHERE kind = ?", []any{EventToggle}, &stats.Toggles},
		{"SELECT COUNT(*) FROM panel_events WHERE kind = ? AND expanded = 1", []any{EventToggle}, &stats.Expansions},
		{"SELECT COALESCE(AVG(natural_height_px), 0) FROM panel_events WHERE kind = ? AND natural_height_px > 0", []any{EventMeasure}, &stats.AvgContentPx},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}

	recent, err := s.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	stats.RecentVisitors = recent
	return stats, nil
}

func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), ts
		FROM visitors
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent visitors: %w", err)
	}
	defer rows.Close()

	var visitors []Visitor
	for rows.Next() {
		var v Visitor
		var ts int64
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &ts); err != nil {
			return nil, fmt.Errorf("store: scan visitor: %w", err)
		}
		v.Timestamp = time.Unix(ts, 0)
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

// CleanupVisitors deletes visitor records older than maxAge.
func (s *Store) CleanupVisitors(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup visitors: %w", err)
	}
	return res.RowsAffected()
}
