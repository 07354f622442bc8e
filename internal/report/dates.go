package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// postedDatePattern matches the forum's timestamp format, e.g.
// "2/7/26 @ 7:25 PM". The "@" and the AM/PM marker are both optional.
var postedDatePattern = regexp.MustCompile(`(?i)^(\d{1,2})/(\d{1,2})/(\d{2})\s*@?\s*(\d{1,2}):(\d{2})\s*(AM|PM)?`)

// ParsePostedDate converts a forum timestamp into ISO-8601. Two-digit years
// are assumed to be 2000+YY. Strings that do not match the expected pattern,
// or that name an impossible calendar date, are returned unchanged so the
// original value is still carried forward.
func ParsePostedDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	m := postedDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}

	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if year < 100 {
		year += 2000
	}

	switch strings.ToUpper(m[6]) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 {
		return raw
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2); treat that as
	// an unparseable date rather than silently shifting it.
	if int(t.Month()) != month || t.Day() != day {
		return raw
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", year, month, day, hour, minute, 0)
}
