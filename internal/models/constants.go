package models

import "regexp"

// Identifier delimiters.
const (
	ReportIDDelimiter = "."
	TicketIDDelimiter = "."
	StatsIDDelimiter  = ":"
)

// Field limits.
const (
	MaximumTicketNameLength     = 100
	MinimumAndroidSDKVersion    = 2
	AndroidVersionNameDelimiter = "-"
	// A version name looks like "1.0.1-alpha-abcdef1234".
	AndroidVersionNameSegments = 3

	MinimumTimezoneOffsetHrs = -12
	MaximumTimezoneOffsetHrs = 14

	MinimumAndroidPackageVersionCode = 1
	MaximumAndroidPackageVersionCode = 100000
)

// Report info blob schema versions accepted per platform.
const (
	MinimumAndroidReportSchemaVersion = 1
	CurrentAndroidReportSchemaVersion = 1
	MinimumWebReportSchemaVersion     = 1
	CurrentWebReportSchemaVersion     = 1

	CurrentStatsSchemaVersion = 1
)

// Retention.
const (
	DefaultRetentionDays = 90
	ReportScrubberBotID  = "app_feedback_report_scrubber_bot"
)

// Pseudo tickets every Android report's stats are folded into.
const (
	AllAndroidReportsStatsTicketID        = "all_android_reports_stats_ticket_id"
	UnticketedAndroidReportsStatsTicketID = "unticketed_android_reports_stats_ticket_id"
)

// Moderator ids issued by the auth gateway.
var moderatorIDPattern = regexp.MustCompile(`^uid_[a-z]{32}$`)

// IsValidScrubberID reports whether id may be recorded as the scrubber of a report.
func IsValidScrubberID(id string) bool {
	return id == ReportScrubberBotID || moderatorIDPattern.MatchString(id)
}

// IsPseudoTicketID reports whether id names one of the reserved stats-only buckets.
func IsPseudoTicketID(id string) bool {
	return id == AllAndroidReportsStatsTicketID || id == UnticketedAndroidReportsStatsTicketID
}

// schemaVersionRange returns the accepted report info schema range for platform.
func schemaVersionRange(p Platform) (lo, hi int) {
	if p == PlatformWeb {
		return MinimumWebReportSchemaVersion, CurrentWebReportSchemaVersion
	}
	return MinimumAndroidReportSchemaVersion, CurrentAndroidReportSchemaVersion
}

// CurrentSchemaVersion returns the newest report info schema the code understands for platform.
func CurrentSchemaVersion(p Platform) int {
	_, hi := schemaVersionRange(p)
	return hi
}
