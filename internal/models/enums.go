package models

import (
	"strings"

	contextutils "appfeedback/internal/utils"
)

// Platform identifies the client application family that submitted a report.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Platforms lists every supported platform value.
var Platforms = []Platform{PlatformAndroid, PlatformWeb}

// ReportType is the top-level kind of feedback.
type ReportType string

const (
	ReportTypeSuggestion ReportType = "suggestion"
	ReportTypeIssue      ReportType = "issue"
	ReportTypeCrash      ReportType = "crash"
)

// ReportTypes lists every report type.
var ReportTypes = []ReportType{ReportTypeSuggestion, ReportTypeIssue, ReportTypeCrash}

// Category is the sub-kind of feedback. Its name is prefixed with the report type it belongs to.
type Category string

const (
	CategorySuggestionNewFeature   Category = "suggestion_new_feature"
	CategorySuggestionNewLanguage  Category = "suggestion_new_language"
	CategorySuggestionOther        Category = "suggestion_other"
	CategoryIssueLessonQuestion    Category = "issue_lesson_question"
	CategoryIssueLanguageGeneral   Category = "issue_language_general"
	CategoryIssueLanguageAudio     Category = "issue_language_audio"
	CategoryIssueLanguageText      Category = "issue_language_text"
	CategoryIssueTopics            Category = "issue_topics"
	CategoryIssueProfile           Category = "issue_profile"
	CategoryIssueOther             Category = "issue_other"
	CategoryCrashLessonPlayer      Category = "crash_lesson_player"
	CategoryCrashPracticeQuestions Category = "crash_practice_questions"
	CategoryCrashOptionsPage       Category = "crash_options_page"
	CategoryCrashProfilePage       Category = "crash_profile_page"
	CategoryCrashOther             Category = "crash_other"
)

// Categories lists every category.
var Categories = []Category{
	CategorySuggestionNewFeature,
	CategorySuggestionNewLanguage,
	CategorySuggestionOther,
	CategoryIssueLessonQuestion,
	CategoryIssueLanguageGeneral,
	CategoryIssueLanguageAudio,
	CategoryIssueLanguageText,
	CategoryIssueTopics,
	CategoryIssueProfile,
	CategoryIssueOther,
	CategoryCrashLessonPlayer,
	CategoryCrashPracticeQuestions,
	CategoryCrashOptionsPage,
	CategoryCrashProfilePage,
	CategoryCrashOther,
}

// Categories where the user picks checkbox items.
var selectionCategories = map[Category]bool{
	CategoryIssueLanguageAudio: true,
	CategoryIssueLanguageText:  true,
	CategoryIssueTopics:        true,
	CategoryIssueProfile:       true,
	CategoryIssueOther:         true,
}

// Categories where the user must type free text.
var textOnlyCategories = map[Category]bool{
	CategorySuggestionOther:        true,
	CategoryIssueOther:             true,
	CategoryCrashLessonPlayer:      true,
	CategoryCrashPracticeQuestions: true,
	CategoryCrashOptionsPage:       true,
	CategoryCrashProfilePage:       true,
	CategoryCrashOther:             true,
}

// RequiresSelection reports whether the category expects selected checkbox items.
func (c Category) RequiresSelection() bool {
	return selectionCategories[c]
}

// RequiresText reports whether the category expects free text input regardless of selections.
func (c Category) RequiresText() bool {
	return textOnlyCategories[c]
}

// ReportType returns the report type the category belongs to, or "" for an unknown category.
func (c Category) ReportType() ReportType {
	for _, rt := range ReportTypes {
		if strings.HasPrefix(string(c), string(rt)+"_") {
			return rt
		}
	}
	return ""
}

// EntryPointName tags the in-app flow a report was started from.
type EntryPointName string

const (
	EntryPointNavigationDrawer EntryPointName = "navigation_drawer"
	EntryPointLessonPlayer     EntryPointName = "lesson_player"
	EntryPointRevisionCard     EntryPointName = "revision_card"
	EntryPointCrash            EntryPointName = "crash"
)

// EntryPointNames lists every entry point name.
var EntryPointNames = []EntryPointName{
	EntryPointNavigationDrawer,
	EntryPointLessonPlayer,
	EntryPointRevisionCard,
	EntryPointCrash,
}

// AndroidNetworkType is the connection type of the device at submission time.
type AndroidNetworkType string

const (
	AndroidNetworkWifi     AndroidNetworkType = "wifi"
	AndroidNetworkCellular AndroidNetworkType = "cellular"
	AndroidNetworkNone     AndroidNetworkType = "none"
)

// AndroidNetworkTypes lists every network type.
var AndroidNetworkTypes = []AndroidNetworkType{AndroidNetworkWifi, AndroidNetworkCellular, AndroidNetworkNone}

// AndroidTextSize is the in-app text size preference.
type AndroidTextSize string

const (
	AndroidTextSizeUnspecified AndroidTextSize = "text_size_unspecified"
	AndroidTextSizeSmall       AndroidTextSize = "small_text_size"
	AndroidTextSizeMedium      AndroidTextSize = "medium_text_size"
	AndroidTextSizeLarge       AndroidTextSize = "large_text_size"
	AndroidTextSizeExtraLarge  AndroidTextSize = "extra_large_text_size"
)

// AndroidTextSizes lists every text size.
var AndroidTextSizes = []AndroidTextSize{
	AndroidTextSizeUnspecified,
	AndroidTextSizeSmall,
	AndroidTextSizeMedium,
	AndroidTextSizeLarge,
	AndroidTextSizeExtraLarge,
}

// StatsParameter names a report attribute that daily stats count values of.
type StatsParameter string

const (
	StatsParamReportType        StatsParameter = "report_type"
	StatsParamCountryLocaleCode StatsParameter = "country_locale_code"
	StatsParamEntryPointName    StatsParameter = "entry_point_name"
	StatsParamTextLanguageCode  StatsParameter = "text_language_code"
	StatsParamAudioLanguageCode StatsParameter = "audio_language_code"
	StatsParamSDKVersion        StatsParameter = "sdk_version"
	StatsParamVersionName       StatsParameter = "version_name"
)

// TrackedStatsParameters is the fixed, ordered list of parameters every stats row counts.
var TrackedStatsParameters = []StatsParameter{
	StatsParamReportType,
	StatsParamCountryLocaleCode,
	StatsParamEntryPointName,
	StatsParamTextLanguageCode,
	StatsParamAudioLanguageCode,
	StatsParamSDKVersion,
	StatsParamVersionName,
}

// FilterField names an indexed report column moderators can filter by.
type FilterField string

const (
	FilterFieldReportType              FilterField = "report_type"
	FilterFieldPlatform                FilterField = "platform"
	FilterFieldEntryPoint              FilterField = "entry_point"
	FilterFieldSubmittedOn             FilterField = "submitted_on"
	FilterFieldAndroidDeviceModel      FilterField = "android_device_model"
	FilterFieldAndroidSDKVersion       FilterField = "android_sdk_version"
	FilterFieldTextLanguageCode        FilterField = "text_language_code"
	FilterFieldAudioLanguageCode       FilterField = "audio_language_code"
	FilterFieldPlatformVersion         FilterField = "platform_version"
	FilterFieldDeviceCountryLocaleCode FilterField = "device_country_locale_code"
)

// FilterFields lists every filterable field in display order.
var FilterFields = []FilterField{
	FilterFieldReportType,
	FilterFieldPlatform,
	FilterFieldEntryPoint,
	FilterFieldSubmittedOn,
	FilterFieldAndroidDeviceModel,
	FilterFieldAndroidSDKVersion,
	FilterFieldTextLanguageCode,
	FilterFieldAudioLanguageCode,
	FilterFieldPlatformVersion,
	FilterFieldDeviceCountryLocaleCode,
}

// parseEnum resolves raw by exact, case-sensitive name against the allowed values.
func parseEnum[T ~string](field, raw string, allowed []T) (T, error) {
	for _, v := range allowed {
		if string(v) == raw {
			return v, nil
		}
	}
	var zero T
	return zero, contextutils.NewInvalidInputError(field, raw, "not a recognized "+field)
}

// ParsePlatform resolves a platform name.
func ParsePlatform(raw string) (Platform, error) {
	return parseEnum("platform", raw, Platforms)
}

// ParseReportType resolves a report type name.
func ParseReportType(raw string) (ReportType, error) {
	return parseEnum("report_type", raw, ReportTypes)
}

// ParseCategory resolves a category name.
func ParseCategory(raw string) (Category, error) {
	return parseEnum("category", raw, Categories)
}

// ParseEntryPointName resolves an entry point name.
func ParseEntryPointName(raw string) (EntryPointName, error) {
	return parseEnum("entry_point_name", raw, EntryPointNames)
}

// ParseAndroidNetworkType resolves a network type name.
func ParseAndroidNetworkType(raw string) (AndroidNetworkType, error) {
	return parseEnum("network_type", raw, AndroidNetworkTypes)
}

// ParseAndroidTextSize resolves a text size name.
func ParseAndroidTextSize(raw string) (AndroidTextSize, error) {
	return parseEnum("text_size", raw, AndroidTextSizes)
}

// ParseFilterField resolves a filter field name.
func ParseFilterField(raw string) (FilterField, error) {
	return parseEnum("filter_field", raw, FilterFields)
}

func isOneOf[T comparable](v T, allowed []T) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
