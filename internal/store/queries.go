package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
)

const joinedColumns = `
	p.id, p.raw_report_id, p.date_posted, p.month, p.season, p.water_depth_feet,
	p.species_caught, p.species_targeted, p.bait_lure, p.location, p.water_temp_f,
	p.air_temp_f, p.weather_conditions, p.ice_thickness_inches, p.notes,
	r.raw_content, r.username, r.image_urls`

// SearchFilter narrows a report search. Zero values mean "no filter".
type SearchFilter struct {
	Month    int
	Season   string
	Species  string
	Location string
	Weather  string
	MinDepth *float64
	MaxDepth *float64
	Limit    int
}

// SpeciesCount pairs a species string with its report frequency.
type SpeciesCount struct {
	Species string `json:"species"`
	Count   int64  `json:"count"`
}

// TopSpecies is a SpeciesCount under the stats payload's historical key.
type TopSpecies struct {
	Species string `json:"species_caught"`
	Count   int64  `json:"count"`
}

// Stats summarizes the database contents.
type Stats struct {
	RawReports       int64        `json:"raw_reports"`
	ProcessedReports int64        `json:"processed_reports"`
	TopSpecies       []TopSpecies `json:"top_species"`
}

// LocationStats aggregates processed reports for one location.
type LocationStats struct {
	Location string   `json:"location"`
	Count    int64    `json:"count"`
	AvgDepth *float64 `json:"avg_depth"`
	Species  []string `json:"species"`
}

// MonthStats aggregates processed reports for one calendar month.
type MonthStats struct {
	Month        int      `json:"month"`
	MonthName    string   `json:"month_name"`
	ReportCount  int64    `json:"report_count"`
	AvgWaterTemp *float64 `json:"avg_water_temp"`
	AvgAirTemp   *float64 `json:"avg_air_temp"`
	TopSpecies   []string `json:"top_species"`
}

// Recommendation is one (species, location, bait) group with its frequency.
type Recommendation struct {
	Species      string   `json:"species"`
	Location     *string  `json:"location"`
	BaitLure     *string  `json:"bait_lure"`
	DepthFeet    *float64 `json:"depth_feet"`
	Weather      *string  `json:"weather"`
	SuccessCount int64    `json:"success_count"`
}

// ListReports returns joined processed+raw reports, newest posted first.
func (s *Store) ListReports(ctx context.Context, limit, offset int) ([]report.FishingReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+joinedColumns+`
		FROM processed_reports p
		JOIN raw_reports r ON p.raw_report_id = r.id
		ORDER BY p.date_posted DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	return scanFishingReports(rows)
}

// ReportsByMonth returns joined reports whose extracted month matches.
func (s *Store) ReportsByMonth(ctx context.Context, month int) ([]report.FishingReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+joinedColumns+`
		FROM processed_reports p
		JOIN raw_reports r ON p.raw_report_id = r.id
		WHERE p.month = ?
		ORDER BY p.date_posted DESC`, month)
	if err != nil {
		return nil, fmt.Errorf("query reports by month: %w", err)
	}
	return scanFishingReports(rows)
}

// ReportsBySpecies returns joined reports whose caught species contains the
// given substring.
func (s *Store) ReportsBySpecies(ctx context.Context, species string) ([]report.FishingReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+joinedColumns+`
		FROM processed_reports p
		JOIN raw_reports r ON p.raw_report_id = r.id
		WHERE p.species_caught LIKE ?
		ORDER BY p.date_posted DESC`, "%"+species+"%")
	if err != nil {
		return nil, fmt.Errorf("query reports by species: %w", err)
	}
	return scanFishingReports(rows)
}

// Search applies the optional filters and returns joined reports, newest first.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]report.FishingReport, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + joinedColumns + `
		FROM processed_reports p
		JOIN raw_reports r ON p.raw_report_id = r.id
		WHERE 1=1`)
	var args []any

	if f.Month != 0 {
		sb.WriteString(" AND p.month = ?")
		args = append(args, f.Month)
	}
	if f.Season != "" {
		sb.WriteString(" AND p.season = ?")
		args = append(args, f.Season)
	}
	if f.Species != "" {
		sb.WriteString(" AND (p.species_caught LIKE ? OR p.species_targeted LIKE ?)")
		args = append(args, "%"+f.Species+"%", "%"+f.Species+"%")
	}
	if f.Location != "" {
		sb.WriteString(" AND p.location LIKE ?")
		args = append(args, "%"+f.Location+"%")
	}
	if f.Weather != "" {
		sb.WriteString(" AND p.weather_conditions LIKE ?")
		args = append(args, "%"+f.Weather+"%")
	}
	if f.MinDepth != nil {
		sb.WriteString(" AND p.water_depth_feet >= ?")
		args = append(args, *f.MinDepth)
	}
	if f.MaxDepth != nil {
		sb.WriteString(" AND p.water_depth_feet <= ?")
		args = append(args, *f.MaxDepth)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	sb.WriteString(" ORDER BY p.date_posted DESC LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search reports: %w", err)
	}
	return scanFishingReports(rows)
}

// GetStats returns row counts and the top 10 caught species.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	raw, processed, err := s.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT species_caught, COUNT(*) as count
		FROM processed_reports
		WHERE species_caught IS NOT NULL AND species_caught != ''
		GROUP BY species_caught
		ORDER BY count DESC
		LIMIT 10`)
	if err != nil {
		return Stats{}, fmt.Errorf("query top species: %w", err)
	}
	defer rows.Close()

	stats := Stats{RawReports: raw, ProcessedReports: processed, TopSpecies: []TopSpecies{}}
	for rows.Next() {
		var sc TopSpecies
		if err := rows.Scan(&sc.Species, &sc.Count); err != nil {
			return Stats{}, fmt.Errorf("scan top species: %w", err)
		}
		stats.TopSpecies = append(stats.TopSpecies, sc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate top species: %w", err)
	}
	return stats, nil
}

// SpeciesCounts lists every caught-species value with its frequency.
func (s *Store) SpeciesCounts(ctx context.Context) ([]SpeciesCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT species_caught, COUNT(*) as count
		FROM processed_reports
		WHERE species_caught IS NOT NULL AND species_caught != ''
		GROUP BY species_caught
		ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("query species counts: %w", err)
	}
	defer rows.Close()

	out := []SpeciesCount{}
	for rows.Next() {
		var sc SpeciesCount
		if err := rows.Scan(&sc.Species, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan species count: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate species counts: %w", err)
	}
	return out, nil
}

// LocationAggregates returns per-location counts, average depths, and a
// deduplicated species list capped at 10 entries.
func (s *Store) LocationAggregates(ctx context.Context) ([]LocationStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT location, COUNT(*) as count,
		       AVG(water_depth_feet) as avg_depth,
		       GROUP_CONCAT(DISTINCT species_caught) as species
		FROM processed_reports
		WHERE location IS NOT NULL AND location != ''
		GROUP BY location
		ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("query location aggregates: %w", err)
	}
	defer rows.Close()

	out := []LocationStats{}
	for rows.Next() {
		var ls LocationStats
		var species *string
		if err := rows.Scan(&ls.Location, &ls.Count, &ls.AvgDepth, &species); err != nil {
			return nil, fmt.Errorf("scan location aggregate: %w", err)
		}
		ls.AvgDepth = roundPtr(ls.AvgDepth)
		ls.Species = dedupeSpecies(species, 10)
		out = append(out, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location aggregates: %w", err)
	}
	return out, nil
}

// MonthlyAggregates returns per-month counts, average temperatures, and the
// top 5 deduplicated species, ordered by month.
func (s *Store) MonthlyAggregates(ctx context.Context) ([]MonthStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, COUNT(*) as report_count,
		       AVG(water_temp_f) as avg_water_temp,
		       AVG(air_temp_f) as avg_air_temp,
		       GROUP_CONCAT(DISTINCT species_caught) as species
		FROM processed_reports
		WHERE month IS NOT NULL
		GROUP BY month
		ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("query monthly aggregates: %w", err)
	}
	defer rows.Close()

	out := []MonthStats{}
	for rows.Next() {
		var ms MonthStats
		var species *string
		if err := rows.Scan(&ms.Month, &ms.ReportCount, &ms.AvgWaterTemp, &ms.AvgAirTemp, &species); err != nil {
			return nil, fmt.Errorf("scan monthly aggregate: %w", err)
		}
		ms.MonthName = report.MonthName(ms.Month)
		ms.AvgWaterTemp = roundPtr(ms.AvgWaterTemp)
		ms.AvgAirTemp = roundPtr(ms.AvgAirTemp)
		ms.TopSpecies = dedupeSpecies(species, 5)
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly aggregates: %w", err)
	}
	return out, nil
}

// Recommendations groups a month's processed reports by (species, location,
// bait), most frequent first, capped at 20 groups. An optional species
// substring narrows the groups.
func (s *Store) Recommendations(ctx context.Context, month int, species string) ([]Recommendation, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT species_caught, location, bait_lure, water_depth_feet,
		       weather_conditions, COUNT(*) as success_count
		FROM processed_reports
		WHERE month = ?`)
	args := []any{month}

	if species != "" {
		sb.WriteString(" AND species_caught LIKE ?")
		args = append(args, "%"+species+"%")
	}
	sb.WriteString(`
		AND species_caught IS NOT NULL AND species_caught != ''
		GROUP BY species_caught, location, bait_lure
		ORDER BY success_count DESC
		LIMIT 20`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	out := []Recommendation{}
	for rows.Next() {
		var rec Recommendation
		if err := rows.Scan(&rec.Species, &rec.Location, &rec.BaitLure, &rec.DepthFeet,
			&rec.Weather, &rec.SuccessCount); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return out, nil
}

func scanFishingReports(rows *sql.Rows) ([]report.FishingReport, error) {
	defer rows.Close()

	out := []report.FishingReport{}
	for rows.Next() {
		var fr report.FishingReport
		if err := rows.Scan(
			&fr.ID, &fr.RawReportID, &fr.DatePosted, &fr.Month, &fr.Season,
			&fr.WaterDepthFeet, &fr.SpeciesCaught, &fr.SpeciesTargeted, &fr.BaitLure,
			&fr.Location, &fr.WaterTempF, &fr.AirTempF, &fr.WeatherConditions,
			&fr.IceThicknessInches, &fr.Notes, &fr.RawContent, &fr.Username, &fr.ImageURLs,
		); err != nil {
			return nil, fmt.Errorf("scan fishing report: %w", err)
		}
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fishing reports: %w", err)
	}
	return out, nil
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*10) / 10
	return &r
}

// dedupeSpecies splits a GROUP_CONCAT value (itself holding comma-separated
// species lists) into unique trimmed entries, capped at max.
func dedupeSpecies(concat *string, max int) []string {
	if concat == nil || *concat == "" {
		return []string{}
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, part := range strings.Split(*concat, ",") {
		sp := strings.TrimSpace(part)
		if sp == "" {
			continue
		}
		if _, ok := seen[sp]; ok {
			continue
		}
		seen[sp] = struct{}{}
		out = append(out, sp)
		if len(out) == max {
			break
		}
	}
	return out
}
