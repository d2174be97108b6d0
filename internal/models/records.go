package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ReportRecord is the stored row of a report: indexed columns plus a
// schema-versioned blob per platform for everything else.
type ReportRecord struct {
	ID                             string          `json:"id" db:"id"`
	Platform                       string          `json:"platform" db:"platform"`
	ScrubbedBy                     sql.NullString  `json:"scrubbed_by" db:"scrubbed_by"`
	TicketID                       sql.NullString  `json:"ticket_id" db:"ticket_id"`
	SubmittedOn                    time.Time       `json:"submitted_on" db:"submitted_on"`
	LocalTimezoneOffsetHrs         int             `json:"local_timezone_offset_hrs" db:"local_timezone_offset_hrs"`
	ReportType                     string          `json:"report_type" db:"report_type"`
	Category                       string          `json:"category" db:"category"`
	PlatformVersion                string          `json:"platform_version" db:"platform_version"`
	DeviceCountryLocaleCode        sql.NullString  `json:"device_country_locale_code" db:"device_country_locale_code"`
	AndroidDeviceModel             sql.NullString  `json:"android_device_model" db:"android_device_model"`
	AndroidSDKVersion              sql.NullInt32   `json:"android_sdk_version" db:"android_sdk_version"`
	EntryPoint                     string          `json:"entry_point" db:"entry_point"`
	EntryPointTopicID              sql.NullString  `json:"entry_point_topic_id" db:"entry_point_topic_id"`
	EntryPointStoryID              sql.NullString  `json:"entry_point_story_id" db:"entry_point_story_id"`
	EntryPointExplorationID        sql.NullString  `json:"entry_point_exploration_id" db:"entry_point_exploration_id"`
	EntryPointSubtopicID           sql.NullInt32   `json:"entry_point_subtopic_id" db:"entry_point_subtopic_id"`
	TextLanguageCode               string          `json:"text_language_code" db:"text_language_code"`
	AudioLanguageCode              string          `json:"audio_language_code" db:"audio_language_code"`
	AndroidReportInfo              json.RawMessage `json:"android_report_info" db:"android_report_info"`
	AndroidReportInfoSchemaVersion sql.NullInt32   `json:"android_report_info_schema_version" db:"android_report_info_schema_version"`
	WebReportInfo                  json.RawMessage `json:"web_report_info" db:"web_report_info"`
	WebReportInfoSchemaVersion     sql.NullInt32   `json:"web_report_info_schema_version" db:"web_report_info_schema_version"`
	CreatedOn                      time.Time       `json:"created_on" db:"created_on"`
	LastUpdated                    time.Time       `json:"last_updated" db:"last_updated"`
}

// Clone returns a deep copy.
func (r *ReportRecord) Clone() *ReportRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.AndroidReportInfo = cloneRaw(r.AndroidReportInfo)
	c.WebReportInfo = cloneRaw(r.WebReportInfo)
	return &c
}

// AndroidReportInfo is the blob stored in android_report_info.
type AndroidReportInfo struct {
	UserFeedbackSelectedItems       []string `json:"user_feedback_selected_items"`
	UserFeedbackOtherTextInput      *string  `json:"user_feedback_other_text_input"`
	EventLogs                       []string `json:"event_logs"`
	LogcatLogs                      []string `json:"logcat_logs"`
	PackageVersionCode              int      `json:"package_version_code"`
	AndroidDeviceLanguageLocaleCode string   `json:"android_device_language_locale_code"`
	BuildFingerprint                string   `json:"build_fingerprint"`
	NetworkType                     string   `json:"network_type"`
	TextSize                        string   `json:"text_size"`
	OnlyAllowsWifiDownloadAndUpdate bool     `json:"only_allows_wifi_download_and_update"`
	AutomaticallyUpdateTopics       bool     `json:"automatically_update_topics"`
	AccountIsProfileAdmin           bool     `json:"account_is_profile_admin"`
}

// TicketRecord is the stored row of a ticket.
type TicketRecord struct {
	ID                    string         `json:"id" db:"id"`
	TicketName            string         `json:"ticket_name" db:"ticket_name"`
	Platform              string         `json:"platform" db:"platform"`
	GithubIssueRepoName   sql.NullString `json:"github_issue_repo_name" db:"github_issue_repo_name"`
	GithubIssueNumber     sql.NullInt32  `json:"github_issue_number" db:"github_issue_number"`
	Archived              bool           `json:"archived" db:"archived"`
	NewestReportTimestamp sql.NullTime   `json:"newest_report_timestamp" db:"newest_report_timestamp"`
	ReportIDs             []string       `json:"report_ids" db:"report_ids"`
	CreatedOn             time.Time      `json:"created_on" db:"created_on"`
	LastUpdated           time.Time      `json:"last_updated" db:"last_updated"`
}

// Clone returns a deep copy.
func (t *TicketRecord) Clone() *TicketRecord {
	if t == nil {
		return nil
	}
	c := *t
	if t.ReportIDs != nil {
		c.ReportIDs = append([]string{}, t.ReportIDs...)
	}
	return &c
}

// StatsRecord is the stored row of one day's stats for one ticket.
type StatsRecord struct {
	ID                           string          `json:"id" db:"id"`
	Platform                     string          `json:"platform" db:"platform"`
	TicketID                     string          `json:"ticket_id" db:"ticket_id"`
	StatsTrackingDate            time.Time       `json:"stats_tracking_date" db:"stats_tracking_date"`
	TotalReportsSubmitted        int             `json:"total_reports_submitted" db:"total_reports_submitted"`
	DailyParamStatsSchemaVersion int             `json:"daily_param_stats_schema_version" db:"daily_param_stats_schema_version"`
	DailyParamStats              json.RawMessage `json:"daily_param_stats" db:"daily_param_stats"`
	CreatedOn                    time.Time       `json:"created_on" db:"created_on"`
	LastUpdated                  time.Time       `json:"last_updated" db:"last_updated"`
}

// Clone returns a deep copy.
func (s *StatsRecord) Clone() *StatsRecord {
	if s == nil {
		return nil
	}
	c := *s
	c.DailyParamStats = cloneRaw(s.DailyParamStats)
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}
