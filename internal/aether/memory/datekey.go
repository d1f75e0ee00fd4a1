package memory

import (
	"regexp"
	"strings"
)

// Fallback bucket names. They are first-class keys of the tree so that
// fragments with unparseable dates stay visible instead of being dropped.
const (
	// YearUnarchived holds fragments whose date carries the "unknown" marker.
	YearUnarchived = "未归档"
	// YearUnknown holds fragments whose date has no recognisable year-month.
	YearUnknown = "未知年份"
	// MonthUnknown is the month bucket of every fragment without a parsed month.
	MonthUnknown = "未知"

	unknownMarker = "unknown"
)

// MonthSeparators is the character class accepted between year and month in
// fragment dates and recall directives: "-", "/" or the year glyph "年".
const MonthSeparators = `[-/年]`

var monthPattern = regexp.MustCompile(`(\d{4})` + MonthSeparators + `(\d{1,2})`)

// ParseMonth extracts the four-digit year and zero-padded month from a
// free-form date string. It is the single routine used both for tree
// bucketing and for recall lookups.
func ParseMonth(date string) (year, month string, ok bool) {
	m := monthPattern.FindStringSubmatch(date)
	if m == nil {
		return "", "", false
	}
	return m[1], padMonth(m[2]), true
}

// bucketOf returns the tree bucket a date belongs to.
func bucketOf(date string) (year, month string) {
	if y, m, ok := ParseMonth(date); ok {
		return y, m
	}
	if strings.Contains(date, unknownMarker) {
		return YearUnarchived, MonthUnknown
	}
	return YearUnknown, MonthUnknown
}
