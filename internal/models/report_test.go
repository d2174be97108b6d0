package models

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contextutils "appfeedback/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModeratorID = "uid_abcdefghijabcdefghijabcdefghijab"

func strPtr(s string) *string { return &s }

func newAndroidReport() *Report {
	return &Report{
		ID:                     "android.1609459200000.0123456789abcdef",
		SchemaVersion:          1,
		Platform:               PlatformAndroid,
		SubmittedOn:            time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		LocalTimezoneOffsetHrs: 0,
		CreatedOn:              time.Date(2021, 1, 1, 0, 0, 5, 0, time.UTC),
		UserSuppliedFeedback: UserSuppliedFeedback{
			ReportType:     ReportTypeSuggestion,
			Category:       CategorySuggestionOther,
			OtherTextInput: strPtr("add an admin"),
		},
		DeviceSystemContext: &AndroidDeviceSystemContext{
			VersionName:              "1.0.0-flavor-commithash",
			PackageVersionCode:       1,
			DeviceCountryLocaleCode:  "in",
			DeviceLanguageLocaleCode: "en",
			DeviceModel:              "Pixel 4a",
			SDKVersion:               28,
			BuildFingerprint:         "example_fingerprint_id",
			NetworkType:              AndroidNetworkWifi,
		},
		AppContext: &AndroidAppContext{
			EntryPoint:                      NavigationDrawerEntryPoint{},
			TextLanguageCode:                "en",
			AudioLanguageCode:               "en",
			TextSize:                        AndroidTextSizeMedium,
			OnlyAllowsWifiDownloadAndUpdate: true,
			EventLogs:                       []string{"event1", "event2"},
			LogcatLogs:                      []string{"log1", "log2"},
		},
	}
}

func requireValidationField(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var appErr *contextutils.AppError
	require.True(t, contextutils.AsError(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, contextutils.ErrorCodeValidationFailed, appErr.Code, appErr.Error())
	assert.Equal(t, field, appErr.Field, appErr.Error())
}

func TestReportValidate_ValidAndroidReport(t *testing.T) {
	require.NoError(t, newAndroidReport().Validate())
}

func TestReportValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Report)
		field  string
	}{
		{"schema version too new", func(r *Report) { r.SchemaVersion = CurrentAndroidReportSchemaVersion + 1 }, "schema_version"},
		{"schema version zero", func(r *Report) { r.SchemaVersion = 0 }, "schema_version"},
		{"unknown platform", func(r *Report) { r.Platform = "ios" }, "platform"},
		{"malformed scrubber", func(r *Report) { r.Scrub("moderator") }, "scrubbed_by"},
		{"ticket id with two parts", func(r *Report) { r.TicketID = strPtr("abc.123") }, "ticket_id"},
		{"timezone offset too large", func(r *Report) { r.LocalTimezoneOffsetHrs = 15 }, "report_submission_utc_offset_hrs"},
		{"category of another report type", func(r *Report) { r.UserSuppliedFeedback.Category = CategoryCrashOther }, "category"},
		{"sdk version below minimum", func(r *Report) {
			r.DeviceSystemContext.(*AndroidDeviceSystemContext).SDKVersion = 1
		}, "sdk_version"},
		{"bad country locale", func(r *Report) {
			r.DeviceSystemContext.(*AndroidDeviceSystemContext).DeviceCountryLocaleCode = "1n"
		}, "device_country_locale_code"},
		{"bad text language", func(r *Report) {
			r.AppContext.(*AndroidAppContext).TextLanguageCode = "-"
		}, "text_language_code"},
		{"version name with two parts", func(r *Report) {
			r.DeviceSystemContext.(*AndroidDeviceSystemContext).VersionName = "1.0.0-flavor"
		}, "version_name"},
		{"package version code out of range", func(r *Report) {
			r.DeviceSystemContext.(*AndroidDeviceSystemContext).PackageVersionCode = MaximumAndroidPackageVersionCode + 1
		}, "package_version_code"},
		{"missing device model", func(r *Report) {
			r.DeviceSystemContext.(*AndroidDeviceSystemContext).DeviceModel = ""
		}, "device_model"},
		{"unknown network type", func(r *Report) {
			r.DeviceSystemContext.(*AndroidDeviceSystemContext).NetworkType = "Wifi"
		}, "network_type"},
		{"unknown text size", func(r *Report) {
			r.AppContext.(*AndroidAppContext).TextSize = "huge"
		}, "text_size"},
		{"missing event logs on unscrubbed report", func(r *Report) {
			r.AppContext.(*AndroidAppContext).EventLogs = nil
		}, "event_logs"},
		{"lesson player without exploration", func(r *Report) {
			r.AppContext.(*AndroidAppContext).EntryPoint = LessonPlayerEntryPoint{TopicID: "t", StoryID: "s"}
		}, "exploration_id"},
		{"revision card without subtopic", func(r *Report) {
			r.AppContext.(*AndroidAppContext).EntryPoint = RevisionCardEntryPoint{TopicID: "t"}
		}, "subtopic_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAndroidReport()
			tt.mutate(r)
			requireValidationField(t, r.Validate(), tt.field)
		})
	}
}

func TestReportValidate_LocaleCodesAreCaseInsensitive(t *testing.T) {
	r := newAndroidReport()
	r.DeviceSystemContext.(*AndroidDeviceSystemContext).DeviceCountryLocaleCode = "IN"
	r.AppContext.(*AndroidAppContext).AudioLanguageCode = "pt-BR"
	assert.NoError(t, r.Validate())
}

func TestReportValidate_SDKVersionBelowMinimum(t *testing.T) {
	r := newAndroidReport()
	r.DeviceSystemContext.(*AndroidDeviceSystemContext).SDKVersion = 1

	err := r.Validate()
	requireValidationField(t, err, "sdk_version")
	assert.Contains(t, err.Error(), "sdk version 1")
}

func TestReportValidate_CrashReport(t *testing.T) {
	r := newAndroidReport()
	r.UserSuppliedFeedback = UserSuppliedFeedback{
		ReportType:     ReportTypeCrash,
		Category:       CategoryCrashOther,
		OtherTextInput: strPtr("app froze"),
	}
	r.DeviceSystemContext.(*AndroidDeviceSystemContext).SDKVersion = 30
	r.AppContext.(*AndroidAppContext).EntryPoint = CrashEntryPoint{}

	assert.NoError(t, r.Validate())
}

func TestReportValidate_WebIsUnsupported(t *testing.T) {
	r := newAndroidReport()
	r.Platform = PlatformWeb
	r.DeviceSystemContext = &WebDeviceSystemContext{VersionName: "1.0", DeviceCountryLocaleCode: "us"}
	r.AppContext = &WebAppContext{EntryPoint: NavigationDrawerEntryPoint{}, TextLanguageCode: "en", AudioLanguageCode: "en"}

	err := r.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrUnsupportedPlatform))
	assert.Equal(t, contextutils.ErrorCodeUnsupportedPlatform, contextutils.GetErrorCode(r.DeviceSystemContext.Validate()))
	assert.Equal(t, contextutils.ErrorCodeUnsupportedPlatform, contextutils.GetErrorCode(r.AppContext.Validate()))
}

func TestReportScrub(t *testing.T) {
	r := newAndroidReport()
	r.Scrub(ReportScrubberBotID)

	require.NoError(t, r.Validate())
	assert.True(t, r.IsScrubbed())
	assert.Nil(t, r.UserSuppliedFeedback.OtherTextInput)
	app := r.AppContext.(*AndroidAppContext)
	assert.Nil(t, app.EventLogs)
	assert.Nil(t, app.LogcatLogs)
	// structural fields survive
	assert.Equal(t, "en", app.TextLanguageCode)
	assert.Equal(t, 28, r.DeviceSystemContext.(*AndroidDeviceSystemContext).SDKVersion)
}

func TestReportValidate_ScrubbedReportMustNotKeepUserFields(t *testing.T) {
	r := newAndroidReport()
	r.ScrubbedBy = strPtr(testModeratorID)
	requireValidationField(t, r.Validate(), "user_feedback_other_text_input")

	r.UserSuppliedFeedback.OtherTextInput = nil
	requireValidationField(t, r.Validate(), "event_logs")
}

func TestIsValidScrubberID(t *testing.T) {
	assert.True(t, IsValidScrubberID(ReportScrubberBotID))
	assert.True(t, IsValidScrubberID(testModeratorID))
	assert.False(t, IsValidScrubberID("uid_short"))
	assert.False(t, IsValidScrubberID("uid_ABCDEFGHIJABCDEFGHIJABCDEFGHIJAB"))
	assert.False(t, IsValidScrubberID(""))
}

func TestUserSuppliedFeedback_SelectionCategoriesRequireItems(t *testing.T) {
	for _, category := range Categories {
		if !category.RequiresSelection() {
			continue
		}
		t.Run(string(category), func(t *testing.T) {
			f := UserSuppliedFeedback{
				ReportType:     category.ReportType(),
				Category:       category,
				SelectedItems:  nil,
				OtherTextInput: strPtr("text"),
			}
			requireValidationField(t, f.Validate(), "user_feedback_selected_items")
		})
	}
}

func TestUserSuppliedFeedback_TextOnlyCategoriesRequireText(t *testing.T) {
	for _, category := range Categories {
		if !category.RequiresText() {
			continue
		}
		t.Run(string(category), func(t *testing.T) {
			f := UserSuppliedFeedback{ReportType: category.ReportType(), Category: category}
			if category.RequiresSelection() {
				f.SelectedItems = []string{"option 1"}
			}
			requireValidationField(t, f.Validate(), "user_feedback_other_text_input")
		})
	}
}

func TestUserSuppliedFeedback_Rules(t *testing.T) {
	tests := []struct {
		name     string
		feedback UserSuppliedFeedback
		field    string
	}{
		{
			name:     "selection with other requires text",
			feedback: UserSuppliedFeedback{ReportType: ReportTypeIssue, Category: CategoryIssueTopics, SelectedItems: []string{"Other topic"}},
			field:    "user_feedback_other_text_input",
		},
		{
			name: "text forbidden without other selection",
			feedback: UserSuppliedFeedback{
				ReportType: ReportTypeIssue, Category: CategoryIssueTopics,
				SelectedItems: []string{"topic 1"}, OtherTextInput: strPtr("free text"),
			},
			field: "user_feedback_other_text_input",
		},
		{
			name:     "selection forbidden for text only category",
			feedback: UserSuppliedFeedback{ReportType: ReportTypeCrash, Category: CategoryCrashOther, SelectedItems: []string{}, OtherTextInput: strPtr("x")},
			field:    "user_feedback_selected_items",
		},
		{
			name:     "unknown category",
			feedback: UserSuppliedFeedback{ReportType: ReportTypeIssue, Category: "issue_unknown"},
			field:    "category",
		},
		{
			name:     "text forbidden for plain category",
			feedback: UserSuppliedFeedback{ReportType: ReportTypeSuggestion, Category: CategorySuggestionNewFeature, OtherTextInput: strPtr("x")},
			field:    "user_feedback_other_text_input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireValidationField(t, tt.feedback.Validate(), tt.field)
		})
	}

	valid := []UserSuppliedFeedback{
		{ReportType: ReportTypeIssue, Category: CategoryIssueTopics, SelectedItems: []string{"OTHER"}, OtherTextInput: strPtr("x")},
		{ReportType: ReportTypeIssue, Category: CategoryIssueProfile, SelectedItems: []string{"profile 1"}},
		{ReportType: ReportTypeIssue, Category: CategoryIssueLessonQuestion},
		{ReportType: ReportTypeSuggestion, Category: CategorySuggestionNewLanguage},
	}
	for _, f := range valid {
		assert.NoError(t, f.Validate(), string(f.Category))
	}
}

func TestCategoryReportType(t *testing.T) {
	for _, c := range Categories {
		rt := c.ReportType()
		require.NotEmpty(t, rt, string(c))
		assert.True(t, strings.HasPrefix(string(c), string(rt)+"_"))
	}
	assert.Empty(t, Category("bogus").ReportType())
}

type fakeRefs map[string]string

func (f fakeRefs) StoryIDForExploration(_ context.Context, explorationID string) (string, error) {
	storyID, ok := f[explorationID]
	if !ok {
		return "", contextutils.ErrRecordNotFound
	}
	return storyID, nil
}

func TestReportValidateReferences(t *testing.T) {
	refs := fakeRefs{"exp_1": "story_1"}
	r := newAndroidReport()
	app := r.AppContext.(*AndroidAppContext)

	app.EntryPoint = LessonPlayerEntryPoint{TopicID: "topic_1", StoryID: "story_1", ExplorationID: "exp_1"}
	assert.NoError(t, r.ValidateReferences(context.Background(), refs))

	app.EntryPoint = LessonPlayerEntryPoint{TopicID: "topic_1", StoryID: "story_2", ExplorationID: "exp_1"}
	requireValidationField(t, r.ValidateReferences(context.Background(), refs), "exploration_id")

	app.EntryPoint = LessonPlayerEntryPoint{TopicID: "topic_1", StoryID: "story_1", ExplorationID: "exp_missing"}
	requireValidationField(t, r.ValidateReferences(context.Background(), refs), "exploration_id")

	app.EntryPoint = NavigationDrawerEntryPoint{}
	assert.NoError(t, r.ValidateReferences(context.Background(), refs))
}

func TestReportMarshalJSON(t *testing.T) {
	r := newAndroidReport()
	r.AppContext.(*AndroidAppContext).EntryPoint = RevisionCardEntryPoint{TopicID: "topic_1", SubtopicID: 2}

	data, err := r.MarshalJSON()
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `"report_id":"android.1609459200000.0123456789abcdef"`)
	assert.Contains(t, body, `"entry_point_name":"revision_card"`)
	assert.Contains(t, body, `"entry_point_subtopic_id":2`)
	assert.Contains(t, body, `"sdk_version":28`)
	assert.NotContains(t, body, "entry_point_story_id")
}

func TestEnumParsingIsCaseSensitive(t *testing.T) {
	rt, err := ParseReportType("crash")
	require.NoError(t, err)
	assert.Equal(t, ReportTypeCrash, rt)

	_, err = ParseReportType("Crash")
	require.Error(t, err)
	var appErr *contextutils.AppError
	require.True(t, contextutils.AsError(err, &appErr))
	assert.Equal(t, contextutils.ErrorCodeInvalidInput, appErr.Code)
	assert.Equal(t, "report_type", appErr.Field)
	assert.Contains(t, appErr.Details, "Crash")

	_, err = ParseAndroidNetworkType("WIFI")
	assert.Error(t, err)
	_, err = ParseAndroidTextSize("large_text_size")
	assert.NoError(t, err)
	_, err = ParsePlatform("web")
	assert.NoError(t, err)
}
