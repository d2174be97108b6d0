package conversion

import (
	"database/sql"
	"testing"
	"time"

	"appfeedback/internal/models"
	contextutils "appfeedback/internal/utils"

	"github.com/google/go-cmp/cmp"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedReport(ep models.EntryPoint) *models.Report {
	ticketID := "abc.1234.0123456789abcdef"
	text := "the app froze"
	return &models.Report{
		ID:                     "android.1615519337000.0123456789abcdef",
		SchemaVersion:          1,
		Platform:               models.PlatformAndroid,
		SubmittedOn:            time.Unix(1615519337, 0).UTC(),
		LocalTimezoneOffsetHrs: -5,
		CreatedOn:              time.Date(2021, 3, 12, 3, 22, 17, 0, time.UTC),
		TicketID:               &ticketID,
		UserSuppliedFeedback: models.UserSuppliedFeedback{
			ReportType:     models.ReportTypeIssue,
			Category:       models.CategoryIssueTopics,
			SelectedItems:  []string{"other topic"},
			OtherTextInput: &text,
		},
		DeviceSystemContext: &models.AndroidDeviceSystemContext{
			VersionName:              "0.1-alpha-abcdef1234",
			PackageVersionCode:       4,
			DeviceCountryLocaleCode:  "in",
			DeviceLanguageLocaleCode: "hi",
			DeviceModel:              "example_model",
			SDKVersion:               30,
			BuildFingerprint:         "example_fingerprint_id",
			NetworkType:              models.AndroidNetworkCellular,
		},
		AppContext: &models.AndroidAppContext{
			EntryPoint:                ep,
			TextLanguageCode:          "en",
			AudioLanguageCode:         "hi",
			TextSize:                  models.AndroidTextSizeLarge,
			AutomaticallyUpdateTopics: true,
			AccountIsProfileAdmin:     true,
			EventLogs:                 []string{"event"},
			LogcatLogs:                []string{},
		},
	}
}

func TestReportStorageRoundTrip(t *testing.T) {
	entryPoints := []models.EntryPoint{
		models.NavigationDrawerEntryPoint{},
		models.CrashEntryPoint{},
		models.LessonPlayerEntryPoint{TopicID: "topic_1", StoryID: "story_1", ExplorationID: "exp_1"},
		models.RevisionCardEntryPoint{TopicID: "topic_1", SubtopicID: 2},
	}
	for _, ep := range entryPoints {
		t.Run(string(ep.Name()), func(t *testing.T) {
			report := storedReport(ep)
			require.NoError(t, report.Validate())

			rec, err := ReportToStorage(report)
			require.NoError(t, err)
			got, err := ReportFromStorage(rec)
			require.NoError(t, err)

			if diff := cmp.Diff(report, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReportStorageRoundTrip_Scrubbed(t *testing.T) {
	report := storedReport(models.CrashEntryPoint{})
	report.TicketID = nil
	report.Scrub(models.ReportScrubberBotID)
	require.NoError(t, report.Validate())

	rec, err := ReportToStorage(report)
	require.NoError(t, err)
	assert.Equal(t, sql.NullString{String: models.ReportScrubberBotID, Valid: true}, rec.ScrubbedBy)
	assert.False(t, rec.TicketID.Valid)

	got, err := ReportFromStorage(rec)
	require.NoError(t, err)
	if diff := cmp.Diff(report, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReportToStorage_Columns(t *testing.T) {
	rec, err := ReportToStorage(storedReport(models.RevisionCardEntryPoint{TopicID: "topic_1", SubtopicID: 2}))
	require.NoError(t, err)

	assert.Equal(t, "revision_card", rec.EntryPoint)
	assert.Equal(t, sql.NullString{String: "topic_1", Valid: true}, rec.EntryPointTopicID)
	assert.False(t, rec.EntryPointStoryID.Valid)
	assert.Equal(t, sql.NullInt32{Int32: 2, Valid: true}, rec.EntryPointSubtopicID)
	assert.Equal(t, sql.NullInt32{Int32: 30, Valid: true}, rec.AndroidSDKVersion)
	assert.Equal(t, sql.NullInt32{Int32: 1, Valid: true}, rec.AndroidReportInfoSchemaVersion)
	assert.False(t, rec.WebReportInfoSchemaVersion.Valid)
	assert.Nil(t, rec.WebReportInfo)
	assert.JSONEq(t, `{
		"user_feedback_selected_items": ["other topic"],
		"user_feedback_other_text_input": "the app froze",
		"event_logs": ["event"],
		"logcat_logs": [],
		"package_version_code": 4,
		"android_device_language_locale_code": "hi",
		"build_fingerprint": "example_fingerprint_id",
		"network_type": "cellular",
		"text_size": "large_text_size",
		"only_allows_wifi_download_and_update": false,
		"automatically_update_topics": true,
		"account_is_profile_admin": true
	}`, string(rec.AndroidReportInfo))
}

func TestReportFromStorage_Errors(t *testing.T) {
	base, err := ReportToStorage(storedReport(models.CrashEntryPoint{}))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(rec *models.ReportRecord)
		code   contextutils.ErrorCode
	}{
		{"newer schema", func(rec *models.ReportRecord) {
			rec.AndroidReportInfoSchemaVersion = sql.NullInt32{Int32: models.CurrentAndroidReportSchemaVersion + 1, Valid: true}
		}, contextutils.ErrorCodeUnsupportedSchemaVersion},
		{"missing schema", func(rec *models.ReportRecord) {
			rec.AndroidReportInfoSchemaVersion = sql.NullInt32{}
		}, contextutils.ErrorCodeUnsupportedSchemaVersion},
		{"web", func(rec *models.ReportRecord) { rec.Platform = "web" }, contextutils.ErrorCodeUnsupportedPlatform},
		{"unknown platform", func(rec *models.ReportRecord) { rec.Platform = "ios" }, contextutils.ErrorCodeInvalidInput},
		{"unknown category", func(rec *models.ReportRecord) { rec.Category = "crash_home" }, contextutils.ErrorCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base.Clone()
			tt.mutate(rec)
			_, err := ReportFromStorage(rec)
			requireAppError(t, err, tt.code)
		})
	}
}

func TestReportToStorage_WebUnsupported(t *testing.T) {
	report := storedReport(models.CrashEntryPoint{})
	report.Platform = models.PlatformWeb
	_, err := ReportToStorage(report)
	requireAppError(t, err, contextutils.ErrorCodeUnsupportedPlatform)
}

func TestTicketStorageRoundTrip(t *testing.T) {
	repo := "android"
	issue := 7
	newest := time.Date(2021, 3, 12, 0, 0, 0, 0, time.UTC)
	ticket := &models.Ticket{
		ID:                    "abc.1234.0123456789abcdef",
		Name:                  "crash on start",
		Platform:              models.PlatformAndroid,
		GithubIssueRepoName:   &repo,
		GithubIssueNumber:     &issue,
		Archived:              true,
		NewestReportTimestamp: &newest,
		ReportIDs:             []string{"r1", "r2"},
	}

	got, err := TicketFromStorage(TicketToStorage(ticket))
	require.NoError(t, err)
	if diff := cmp.Diff(ticket, got); diff != "" {
		t.Errorf("ticket round trip mismatch (-want +got):\n%s", diff)
	}

	empty := &models.Ticket{ID: "abc.1.2", Name: "n", Platform: models.PlatformAndroid}
	rec := TicketToStorage(empty)
	assert.NotNil(t, rec.ReportIDs)
	assert.False(t, rec.NewestReportTimestamp.Valid)
	assert.False(t, rec.GithubIssueNumber.Valid)
}

func TestStatsStorageRoundTrip(t *testing.T) {
	date := time.Date(2021, 3, 12, 0, 0, 0, 0, time.UTC)
	stats := &models.DailyStats{
		ID:                    models.StatsID(models.PlatformAndroid, models.AllAndroidReportsStatsTicketID, date),
		Platform:              models.PlatformAndroid,
		TicketID:              models.AllAndroidReportsStatsTicketID,
		Date:                  openapi_types.Date{Time: date},
		TotalReportsSubmitted: 2,
		ParamStats: map[models.StatsParameter]map[string]int{
			models.StatsParamReportType: {"crash": 1, "issue": 1},
			models.StatsParamSDKVersion: {"30": 2},
		},
	}

	rec, err := StatsToStorage(stats)
	require.NoError(t, err)
	assert.Equal(t, models.CurrentStatsSchemaVersion, rec.DailyParamStatsSchemaVersion)

	got, err := StatsFromStorage(rec)
	require.NoError(t, err)
	if diff := cmp.Diff(stats, got); diff != "" {
		t.Errorf("stats round trip mismatch (-want +got):\n%s", diff)
	}

	rec.DailyParamStatsSchemaVersion = models.CurrentStatsSchemaVersion + 1
	_, err = StatsFromStorage(rec)
	requireAppError(t, err, contextutils.ErrorCodeUnsupportedSchemaVersion)
}
