package conversion

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"appfeedback/internal/config"
	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReports struct {
	existing map[string]bool
	checked  []string
}

func (s *stubReports) ReportExists(_ context.Context, id string) (bool, error) {
	s.checked = append(s.checked, id)
	return s.existing[id], nil
}

func newTestConverter(reports *stubReports) *Converter {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	c := NewConverter(reports, 3, logger)
	c.now = func() time.Time { return time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC) }
	c.randomSuffix = func() string { return "0123456789abcdef" }
	return c
}

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"platform":                           "android",
		"android_report_info_schema_version": 1,
		"report_submission_timestamp_sec":    1615519337,
		"report_submission_utc_offset_hrs":   0,
		"user_supplied_feedback": map[string]interface{}{
			"report_type":                    "suggestion",
			"category":                       "suggestion_new_feature",
			"user_feedback_selected_items":   nil,
			"user_feedback_other_text_input": nil,
		},
		"system_context": map[string]interface{}{
			"platform_version":                    "0.1-alpha-abcdef1234",
			"package_version_code":                1,
			"android_device_country_locale_code":  "in",
			"android_device_language_locale_code": "en",
		},
		"device_context": map[string]interface{}{
			"android_device_model": "example_model",
			"android_sdk_version":  23,
			"build_fingerprint":    "example_fingerprint_id",
			"network_type":         "wifi",
		},
		"app_context": map[string]interface{}{
			"entry_point": map[string]interface{}{
				"entry_point_name": "navigation_drawer",
			},
			"text_language_code":                   "en",
			"audio_language_code":                  "en",
			"text_size":                            "medium_text_size",
			"only_allows_wifi_download_and_update": true,
			"automatically_update_topics":          false,
			"account_is_profile_admin":             false,
			"event_logs":                           []string{"example", "event"},
			"logcat_logs":                          []string{"example", "log"},
		},
	}
}

func withFeedback(payload map[string]interface{}, category string, text interface{}) map[string]interface{} {
	fb := payload["user_supplied_feedback"].(map[string]interface{})
	fb["category"] = category
	fb["user_feedback_other_text_input"] = text
	return payload
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func requireAppError(t *testing.T, err error, code contextutils.ErrorCode) *contextutils.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *contextutils.AppError
	require.True(t, contextutils.AsError(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}

func TestReportFromSubmission_Android(t *testing.T) {
	reports := &stubReports{}
	c := newTestConverter(reports)
	payload := withFeedback(validSubmission(), "suggestion_other", "add french")

	report, err := c.ReportFromSubmission(context.Background(), mustJSON(t, payload))
	require.NoError(t, err)
	require.NoError(t, report.Validate())

	assert.Equal(t, "android.1615519337000.0123456789abcdef", report.ID)
	assert.Equal(t, models.PlatformAndroid, report.Platform)
	assert.Equal(t, time.Unix(1615519337, 0).UTC(), report.SubmittedOn)
	assert.Equal(t, time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC), report.CreatedOn)
	assert.Equal(t, models.CategorySuggestionOther, report.UserSuppliedFeedback.Category)
	require.NotNil(t, report.UserSuppliedFeedback.OtherTextInput)
	assert.Equal(t, "add french", *report.UserSuppliedFeedback.OtherTextInput)
	assert.Nil(t, report.UserSuppliedFeedback.SelectedItems)
	assert.Nil(t, report.TicketID)
	assert.Nil(t, report.ScrubbedBy)

	device := report.DeviceSystemContext.(*models.AndroidDeviceSystemContext)
	assert.Equal(t, "0.1-alpha-abcdef1234", device.VersionName)
	assert.Equal(t, 23, device.SDKVersion)
	assert.Equal(t, models.AndroidNetworkWifi, device.NetworkType)

	app := report.AppContext.(*models.AndroidAppContext)
	assert.Equal(t, models.NavigationDrawerEntryPoint{}, app.EntryPoint)
	assert.Equal(t, []string{"example", "log"}, app.LogcatLogs)
	assert.Equal(t, []string{report.ID}, reports.checked)
}

func TestReportFromSubmission_PlatformDefaultsToAndroid(t *testing.T) {
	payload := withFeedback(validSubmission(), "suggestion_new_feature", nil)
	delete(payload, "platform")

	report, err := newTestConverter(&stubReports{}).ReportFromSubmission(context.Background(), mustJSON(t, payload))
	require.NoError(t, err)
	assert.Equal(t, models.PlatformAndroid, report.Platform)
	assert.True(t, strings.HasPrefix(report.ID, "android."))
}

func TestReportFromSubmission_LessonPlayerEntryPoint(t *testing.T) {
	payload := withFeedback(validSubmission(), "suggestion_new_feature", nil)
	payload["app_context"].(map[string]interface{})["entry_point"] = map[string]interface{}{
		"entry_point_name":           "lesson_player",
		"entry_point_topic_id":       "topic_1",
		"entry_point_story_id":       "story_1",
		"entry_point_exploration_id": "exp_1",
	}

	report, err := newTestConverter(&stubReports{}).ReportFromSubmission(context.Background(), mustJSON(t, payload))
	require.NoError(t, err)
	assert.Equal(t,
		models.LessonPlayerEntryPoint{TopicID: "topic_1", StoryID: "story_1", ExplorationID: "exp_1"},
		report.AppContext.GetEntryPoint())
}

func TestReportFromSubmission_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p map[string]interface{})
		field  string
	}{
		{
			name:   "enum values are case sensitive",
			mutate: func(p map[string]interface{}) { p["user_supplied_feedback"].(map[string]interface{})["report_type"] = "Suggestion" },
			field:  "report_type",
		},
		{
			name:   "unknown network type",
			mutate: func(p map[string]interface{}) { p["device_context"].(map[string]interface{})["network_type"] = "ethernet" },
			field:  "network_type",
		},
		{
			name: "unknown entry point",
			mutate: func(p map[string]interface{}) {
				p["app_context"].(map[string]interface{})["entry_point"] = map[string]interface{}{"entry_point_name": "home"}
			},
			field: "entry_point_name",
		},
		{
			name: "entry point with undeclared reference",
			mutate: func(p map[string]interface{}) {
				p["app_context"].(map[string]interface{})["entry_point"] = map[string]interface{}{
					"entry_point_name":     "crash",
					"entry_point_topic_id": "topic_1",
				}
			},
			field: "entry_point_topic_id",
		},
		{
			name:   "unknown platform",
			mutate: func(p map[string]interface{}) { p["platform"] = "ios" },
			field:  "platform",
		},
		{
			name:   "sdk version of wrong type",
			mutate: func(p map[string]interface{}) { p["device_context"].(map[string]interface{})["android_sdk_version"] = "23" },
			field:  "android_sdk_version",
		},
		{
			name:   "missing device context",
			mutate: func(p map[string]interface{}) { delete(p, "device_context") },
			field:  "device_context",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := withFeedback(validSubmission(), "suggestion_new_feature", nil)
			tt.mutate(payload)

			_, err := newTestConverter(&stubReports{}).ReportFromSubmission(context.Background(), mustJSON(t, payload))
			appErr := requireAppError(t, err, contextutils.ErrorCodeInvalidInput)
			assert.Contains(t, appErr.Field, tt.field)
		})
	}
}

func TestReportFromSubmission_NotJSON(t *testing.T) {
	_, err := newTestConverter(&stubReports{}).ReportFromSubmission(context.Background(), []byte("not json"))
	requireAppError(t, err, contextutils.ErrorCodeInvalidInput)
}

func TestReportFromSubmission_WebUnsupported(t *testing.T) {
	payload := validSubmission()
	payload["platform"] = "web"

	_, err := newTestConverter(&stubReports{}).ReportFromSubmission(context.Background(), mustJSON(t, payload))
	requireAppError(t, err, contextutils.ErrorCodeUnsupportedPlatform)
}

func TestGenerateReportID_RetriesCollisions(t *testing.T) {
	reports := &stubReports{existing: map[string]bool{"android.1000.aaaaaaaaaaaaaaaa": true}}
	c := newTestConverter(reports)
	suffixes := []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb"}
	c.randomSuffix = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	id, err := c.GenerateReportID(context.Background(), models.PlatformAndroid, time.UnixMilli(1000))
	require.NoError(t, err)
	assert.Equal(t, "android.1000.bbbbbbbbbbbbbbbb", id)
	assert.Len(t, reports.checked, 2)
}

func TestGenerateReportID_Exhausted(t *testing.T) {
	reports := &stubReports{existing: map[string]bool{"android.1000.0123456789abcdef": true}}
	c := newTestConverter(reports)

	_, err := c.GenerateReportID(context.Background(), models.PlatformAndroid, time.UnixMilli(1000))
	requireAppError(t, err, contextutils.ErrorCodeIDGenerationExhausted)
	assert.True(t, contextutils.IsFatal(err))
	assert.Len(t, reports.checked, 3)
}

func TestNewTicketID(t *testing.T) {
	id := NewTicketID("a ticket", time.UnixMilli(1234), "0123456789abcdef")
	parts := strings.Split(id, models.TicketIDDelimiter)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 40)
	assert.Equal(t, "1234", parts[1])
	assert.Equal(t, "0123456789abcdef", parts[2])
	assert.NoError(t, models.RequireValidTicketID(id))
}

func TestRandomHexSuffix(t *testing.T) {
	s := RandomHexSuffix()
	assert.Len(t, s, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", s)
	assert.NotEqual(t, s, RandomHexSuffix())
}
