package contextutils

import "time"

// ISODateLayout is the calendar date format used in stats row ids and filter options.
const ISODateLayout = "2006-01-02"

// UTCDate truncates t to midnight UTC of its UTC calendar day.
func UTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatISODate renders the UTC calendar day of t as YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return t.UTC().Format(ISODateLayout)
}

// ParseISODate parses YYYY-MM-DD as a UTC date.
func ParseISODate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(ISODateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, WrapError(err, "invalid date format")
	}
	return d, nil
}

// TimeFromEpochSeconds converts a submission timestamp to UTC time.
func TimeFromEpochSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// EpochMillis returns t as milliseconds since the Unix epoch.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
