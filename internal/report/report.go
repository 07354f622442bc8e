// Package report defines the domain types shared by the scraper, extractor,
// store, and API: raw forum posts as captured, and the structured records
// derived from them.
package report

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// RawReport is one scraped forum post, stored exactly as captured.
// Rows are never mutated after insert.
type RawReport struct {
	ID           int64   `json:"id"`
	SourceID     string  `json:"source_id"`
	DatePosted   *string `json:"date_posted"`
	Username     string  `json:"username"`
	RawContent   string  `json:"raw_content"`
	WeatherBadge *string `json:"weather_badge"`
	LocationTag  *string `json:"location_tag"`
	ImageURLs    *string `json:"image_urls"`
	ScrapedAt    string  `json:"scraped_at"`
}

// ProcessedReport is the structured record the extraction service produced
// for a single raw report. At most one exists per raw report.
type ProcessedReport struct {
	ID                 int64    `json:"id"`
	RawReportID        int64    `json:"raw_report_id"`
	DatePosted         *string  `json:"date_posted"`
	Month              *int     `json:"month"`
	Season             *string  `json:"season"`
	WaterDepthFeet     *float64 `json:"water_depth_feet"`
	SpeciesCaught      *string  `json:"species_caught"`
	SpeciesTargeted    *string  `json:"species_targeted"`
	BaitLure           *string  `json:"bait_lure"`
	Location           *string  `json:"location"`
	WaterTempF         *float64 `json:"water_temp_f"`
	AirTempF           *float64 `json:"air_temp_f"`
	WeatherConditions  *string  `json:"weather_conditions"`
	IceThicknessInches *float64 `json:"ice_thickness_inches"`
	Notes              *string  `json:"notes"`
	ProcessedAt        string   `json:"processed_at"`
}

// FishingReport is the joined view the API serves: structured fields plus
// the original text, author, and images.
type FishingReport struct {
	ID                 int64    `json:"id"`
	RawReportID        int64    `json:"raw_report_id"`
	DatePosted         *string  `json:"date_posted"`
	Month              *int     `json:"month"`
	Season             *string  `json:"season"`
	WaterDepthFeet     *float64 `json:"water_depth_feet"`
	SpeciesCaught      *string  `json:"species_caught"`
	SpeciesTargeted    *string  `json:"species_targeted"`
	BaitLure           *string  `json:"bait_lure"`
	Location           *string  `json:"location"`
	WaterTempF         *float64 `json:"water_temp_f"`
	AirTempF           *float64 `json:"air_temp_f"`
	WeatherConditions  *string  `json:"weather_conditions"`
	IceThicknessInches *float64 `json:"ice_thickness_inches"`
	Notes              *string  `json:"notes"`
	RawContent         *string  `json:"raw_content"`
	Username           *string  `json:"username"`
	ImageURLs          *string  `json:"image_urls"`
}

// SourceID computes the deduplication fingerprint for a raw report:
// md5 over username, posted date, and the first 100 characters of the body.
// The platform's own post ID is deliberately not part of the hash, so two
// distinct posts sharing author, timestamp, and opening text collide and
// only the first is kept.
func SourceID(username, datePosted, content string) string {
	if len(content) > 100 {
		content = content[:100]
	}
	sum := md5.Sum([]byte(username + ":" + datePosted + ":" + content))
	return hex.EncodeToString(sum[:])
}

// SeasonForMonth maps a month (1-12) to its season. Any other value
// returns the empty string.
func SeasonForMonth(month int) string {
	switch month {
	case 12, 1, 2:
		return "winter"
	case 3, 4, 5:
		return "spring"
	case 6, 7, 8:
		return "summer"
	case 9, 10, 11:
		return "fall"
	default:
		return ""
	}
}

// MonthName returns the English month name for 1-12, "Unknown" otherwise.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return "Unknown"
	}
	return time.Month(month).String()
}

// MonthFromDate extracts the calendar month from an RFC 3339 / ISO-8601
// timestamp string. Raw date strings that never parsed keep their original
// form, in which case no month can be derived.
func MonthFromDate(date string) (int, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return int(t.Month()), nil
		}
	}
	return 0, fmt.Errorf("no month in date %q", date)
}
