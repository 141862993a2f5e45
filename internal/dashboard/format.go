package dashboard

import (
	"strconv"
	"time"
)

// Placeholders shown for missing values
const (
	MissingText   = "-"
	MissingDate   = "N/A"
	MissingNumber = "0"
)

const (
	dateLayout      = "02/01/2006"
	timestampLayout = "02/01/2006 15:04"
)

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date as day/month/year. Values that do not parse
// are shown unchanged; empty values show MissingDate.
func FormatDate(s string) string {
	if s == "" {
		return MissingDate
	}
	t, ok := parseTime(s, time.UTC)
	if !ok {
		return s
	}
	return t.Format(dateLayout)
}

// FormatTimestamp renders a timestamp as day/month/year and 24h time in
// loc. Timestamps without a zone are read as already being in loc.
func FormatTimestamp(s string, loc *time.Location) string {
	if s == "" {
		return MissingDate
	}
	if loc == nil {
		loc = time.UTC
	}
	t, ok := parseTime(s, loc)
	if !ok {
		return s
	}
	return t.In(loc).Format(timestampLayout)
}

func orMissing(s string) string {
	if s == "" {
		return MissingText
	}
	return s
}

func formatCount(n int) string {
	if n == 0 {
		return MissingNumber
	}
	return strconv.Itoa(n)
}
