// Package store persists fire detections in SQLite.
//
// The natural-key unique index is the sole dedupe mechanism across ingestion
// cycles: inserts use ON CONFLICT DO NOTHING, so re-ingesting an overlapping
// feed window is idempotent and rows are never overwritten after insert.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/jillmpla/south-carolina-fires/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fires (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	brightness REAL,
	bright_ti5 REAL,
	confidence TEXT NOT NULL DEFAULT 'Unknown',
	acq_date   TEXT NOT NULL,
	acq_time   TEXT NOT NULL,
	satellite  TEXT NOT NULL,
	instrument TEXT,
	version    TEXT,
	frp        REAL,
	daynight   TEXT NOT NULL DEFAULT 'Unknown',
	acq_ts     TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS fires_natural_key
	ON fires (acq_date, acq_time, latitude, longitude, satellite);
CREATE INDEX IF NOT EXISTS fires_acq_ts ON fires (acq_ts);
`

// Store wraps the detections database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and bootstraps
// the schema. An unreachable or unwritable store is a fatal condition for
// callers; nothing else in the service can make progress without it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertDetections upserts records one at a time with insert-or-ignore
// semantics on the natural key. A single row's failure is logged with its
// natural-key fields and counted; it never aborts the batch. Returns
// (newly inserted, failed).
func (s *Store) InsertDetections(ctx context.Context, records []domain.Detection) (inserted, failed int) {
	if len(records) == 0 {
		return 0, 0
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO fires
			(latitude, longitude, brightness, bright_ti5, confidence,
			 acq_date, acq_time, satellite, instrument, version, frp, daynight, acq_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (acq_date, acq_time, latitude, longitude, satellite) DO NOTHING`)
	if err != nil {
		s.logger.Error("prepare detection insert failed", "error", err)
		return 0, len(records)
	}
	defer stmt.Close()

	for _, d := range records {
		res, err := stmt.ExecContext(ctx,
			d.Latitude, d.Longitude,
			nullFloat(d.Brightness), nullFloat(d.BrightTI5),
			d.Confidence,
			d.AcqDate, domain.PadAcqTime(d.AcqTime), d.Satellite,
			nullString(d.Instrument), nullString(d.Version),
			nullFloat(d.FRP), d.DayNight, nullTime(d.AcqTS),
		)
		if err != nil {
			failed++
			s.logger.Error("detection insert failed", "error", err,
				"acq_date", d.AcqDate, "acq_time", d.AcqTime,
				"lat", d.Latitude, "lon", d.Longitude, "satellite", d.Satellite)
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, failed
}

// DeleteOlderThan removes rows whose acquisition timestamp predates the
// cutoff, returning the number removed. Rows with no timestamp are also
// removed; they can never be served by a windowed query.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fires WHERE acq_ts IS NULL OR acq_ts < ?`, formatTS(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete detections before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}

// QuerySince returns detections with acquisition timestamp at or after
// since, most recent first, capped at limit.
func (s *Store) QuerySince(ctx context.Context, since time.Time, limit int) ([]domain.Detection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, brightness, bright_ti5, confidence,
		       acq_date, acq_time, satellite, instrument, version, frp, daynight, acq_ts
		FROM fires
		WHERE acq_ts >= ?
		ORDER BY acq_ts DESC, id DESC
		LIMIT ?`, formatTS(since), limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []domain.Detection
	for rows.Next() {
		var (
			d          domain.Detection
			brightness sql.NullFloat64
			brightTI5  sql.NullFloat64
			frp        sql.NullFloat64
			instrument sql.NullString
			version    sql.NullString
			acqTS      sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Latitude, &d.Longitude, &brightness, &brightTI5,
			&d.Confidence, &d.AcqDate, &d.AcqTime, &d.Satellite,
			&instrument, &version, &frp, &d.DayNight, &acqTS); err != nil {
			return nil, fmt.Errorf("scan detection row: %w", err)
		}
		if brightness.Valid {
			d.Brightness = &brightness.Float64
		}
		if brightTI5.Valid {
			d.BrightTI5 = &brightTI5.Float64
		}
		if frp.Valid {
			d.FRP = &frp.Float64
		}
		d.Instrument = instrument.String
		d.Version = version.String
		if acqTS.Valid {
			if ts, err := time.Parse(time.RFC3339, acqTS.String); err == nil {
				utc := ts.UTC()
				d.AcqTS = &utc
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of stored detections.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fires`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return n, nil
}

// formatTS stores timestamps as RFC 3339 UTC strings; lexicographic order
// then matches chronological order, which the window queries rely on.
func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTS(*t)
}
