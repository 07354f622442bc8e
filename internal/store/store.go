// Package store persists raw and processed fishing reports in a single
// SQLite database file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT UNIQUE,
	date_posted TEXT,
	username TEXT,
	raw_content TEXT,
	weather_badge TEXT,
	location_tag TEXT,
	image_urls TEXT,
	scraped_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS processed_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	raw_report_id INTEGER UNIQUE,
	date_posted TEXT,
	month INTEGER,
	season TEXT,
	water_depth_feet REAL,
	species_caught TEXT,
	species_targeted TEXT,
	bait_lure TEXT,
	location TEXT,
	water_temp_f REAL,
	air_temp_f REAL,
	weather_conditions TEXT,
	ice_thickness_inches REAL,
	notes TEXT,
	processed_at TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (raw_report_id) REFERENCES raw_reports(id)
);

CREATE INDEX IF NOT EXISTS idx_processed_month ON processed_reports(month);
CREATE INDEX IF NOT EXISTS idx_processed_species ON processed_reports(species_caught);
CREATE INDEX IF NOT EXISTS idx_processed_season ON processed_reports(season);
CREATE INDEX IF NOT EXISTS idx_processed_location ON processed_reports(location);
`

// Store wraps the SQLite database holding both report tables. The scraper,
// extractor, and API may all hold a Store against the same file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// idempotent schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// InsertRawReport inserts a scraped post. Duplicate fingerprints are a
// silent no-op; inserted reports whether a new row was created.
func (s *Store) InsertRawReport(ctx context.Context, r report.RawReport) (id int64, inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_reports (source_id, date_posted, username, raw_content, weather_badge, location_tag, image_urls)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO NOTHING`,
		r.SourceID, r.DatePosted, r.Username, r.RawContent, r.WeatherBadge, r.LocationTag, r.ImageURLs,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert raw report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert raw report rows: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("insert raw report id: %w", err)
	}
	return id, true, nil
}

// InsertProcessedReport inserts the structured record for a raw report.
// A second record for the same raw report is a silent no-op.
func (s *Store) InsertProcessedReport(ctx context.Context, p report.ProcessedReport) (id int64, inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_reports
			(raw_report_id, date_posted, month, season, water_depth_feet, species_caught,
			 species_targeted, bait_lure, location, water_temp_f, air_temp_f,
			 weather_conditions, ice_thickness_inches, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(raw_report_id) DO NOTHING`,
		p.RawReportID, p.DatePosted, p.Month, p.Season, p.WaterDepthFeet, p.SpeciesCaught,
		p.SpeciesTargeted, p.BaitLure, p.Location, p.WaterTempF, p.AirTempF,
		p.WeatherConditions, p.IceThicknessInches, p.Notes,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert processed report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert processed report rows: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("insert processed report id: %w", err)
	}
	return id, true, nil
}

// UnprocessedReports returns up to limit raw reports that have no processed
// counterpart yet, oldest first.
func (s *Store) UnprocessedReports(ctx context.Context, limit int) ([]report.RawReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.source_id, r.date_posted, r.username, r.raw_content,
		       r.weather_badge, r.location_tag, r.image_urls, r.scraped_at
		FROM raw_reports r
		LEFT JOIN processed_reports p ON r.id = p.raw_report_id
		WHERE p.id IS NULL
		ORDER BY r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed reports: %w", err)
	}
	defer rows.Close()

	var out []report.RawReport
	for rows.Next() {
		var r report.RawReport
		var username *string
		if err := rows.Scan(&r.ID, &r.SourceID, &r.DatePosted, &username, &r.RawContent,
			&r.WeatherBadge, &r.LocationTag, &r.ImageURLs, &r.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan raw report: %w", err)
		}
		if username != nil {
			r.Username = *username
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw reports: %w", err)
	}
	return out, nil
}

// Counts returns the raw and processed row counts.
func (s *Store) Counts(ctx context.Context) (raw, processed int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_reports`).Scan(&raw); err != nil {
		return 0, 0, fmt.Errorf("count raw reports: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processed_reports`).Scan(&processed); err != nil {
		return 0, 0, fmt.Errorf("count processed reports: %w", err)
	}
	return raw, processed, nil
}
