package conversion

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxIDGenerationRetries bounds report id collision retries when the
// converter is built without an explicit budget.
const DefaultMaxIDGenerationRetries = 10

// randomSuffixLength is the number of hex characters appended to generated ids.
const randomSuffixLength = 16

// SubmissionPayload is the JSON body an Android client posts.
type SubmissionPayload struct {
	Platform               *string                `json:"platform,omitempty"`
	SchemaVersion          int                    `json:"android_report_info_schema_version"`
	SubmissionTimestampSec int64                  `json:"report_submission_timestamp_sec"`
	SubmissionUTCOffsetHrs int                    `json:"report_submission_utc_offset_hrs"`
	UserSuppliedFeedback   SubmittedFeedback      `json:"user_supplied_feedback"`
	SystemContext          SubmittedSystemContext `json:"system_context"`
	DeviceContext          SubmittedDeviceContext `json:"device_context"`
	AppContext             SubmittedAppContext    `json:"app_context"`
}

// SubmittedFeedback is the user_supplied_feedback object of a submission.
type SubmittedFeedback struct {
	ReportType     string   `json:"report_type"`
	Category       string   `json:"category"`
	SelectedItems  []string `json:"user_feedback_selected_items"`
	OtherTextInput *string  `json:"user_feedback_other_text_input"`
}

// SubmittedSystemContext is the system_context object of a submission.
type SubmittedSystemContext struct {
	PlatformVersion          string `json:"platform_version"`
	PackageVersionCode       int    `json:"package_version_code"`
	DeviceCountryLocaleCode  string `json:"android_device_country_locale_code"`
	DeviceLanguageLocaleCode string `json:"android_device_language_locale_code"`
}

// SubmittedDeviceContext is the device_context object of a submission.
type SubmittedDeviceContext struct {
	DeviceModel      string `json:"android_device_model"`
	SDKVersion       int    `json:"android_sdk_version"`
	BuildFingerprint string `json:"build_fingerprint"`
	NetworkType      string `json:"network_type"`
}

// SubmittedAppContext is the app_context object of a submission.
type SubmittedAppContext struct {
	EntryPoint                      SubmittedEntryPoint `json:"entry_point"`
	TextLanguageCode                string              `json:"text_language_code"`
	AudioLanguageCode               string              `json:"audio_language_code"`
	TextSize                        string              `json:"text_size"`
	OnlyAllowsWifiDownloadAndUpdate bool                `json:"only_allows_wifi_download_and_update"`
	AutomaticallyUpdateTopics       bool                `json:"automatically_update_topics"`
	AccountIsProfileAdmin           bool                `json:"account_is_profile_admin"`
	EventLogs                       []string            `json:"event_logs"`
	LogcatLogs                      []string            `json:"logcat_logs"`
}

// SubmittedEntryPoint is the entry_point object of a submission.
type SubmittedEntryPoint struct {
	Name          string  `json:"entry_point_name"`
	TopicID       *string `json:"entry_point_topic_id"`
	StoryID       *string `json:"entry_point_story_id"`
	ExplorationID *string `json:"entry_point_exploration_id"`
	SubtopicID    *int    `json:"entry_point_subtopic_id"`
}

// Converter turns client submissions into reports and assigns their ids.
type Converter struct {
	reports      models.ReportExistenceChecker
	maxIDRetries int
	logger       *observability.Logger
	now          func() time.Time
	randomSuffix func() string
}

// NewConverter builds a Converter. reports is consulted to avoid id collisions.
func NewConverter(reports models.ReportExistenceChecker, maxIDRetries int, logger *observability.Logger) *Converter {
	if reports == nil {
		panic("report existence checker cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if maxIDRetries <= 0 {
		maxIDRetries = DefaultMaxIDGenerationRetries
	}
	return &Converter{
		reports:      reports,
		maxIDRetries: maxIDRetries,
		logger:       logger,
		now:          time.Now,
		randomSuffix: RandomHexSuffix,
	}
}

// ReportFromSubmission parses and converts a raw submission body into an
// unvalidated Report with a fresh id. Shape and vocabulary errors are
// INVALID_INPUT; web submissions are UNSUPPORTED_PLATFORM.
func (c *Converter) ReportFromSubmission(ctx context.Context, raw []byte) (result0 *models.Report, err error) {
	ctx, span := observability.TraceConversionFunction(ctx, "report_from_submission",
		attribute.Int("payload.size", len(raw)))
	defer observability.FinishSpan(span, &err)

	platform, err := submissionPlatform(raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributePlatform(string(platform)))
	if platform == models.PlatformWeb {
		return nil, contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web report submissions are not accepted yet")
	}

	if err := validateSubmissionShape(raw); err != nil {
		return nil, err
	}

	var payload SubmissionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, contextutils.NewInvalidInputError("payload", "", "payload could not be decoded: "+err.Error())
	}

	report, err := androidReportFromPayload(&payload)
	if err != nil {
		return nil, err
	}
	report.CreatedOn = c.now().UTC()

	id, err := c.GenerateReportID(ctx, report.Platform, report.SubmittedOn)
	if err != nil {
		return nil, err
	}
	report.ID = id
	span.SetAttributes(observability.AttributeReportID(id))
	return report, nil
}

// submissionPlatform reads the optional platform field; android when absent.
func submissionPlatform(raw []byte) (models.Platform, error) {
	var probe struct {
		Platform *string `json:"platform"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", contextutils.NewInvalidInputError("payload", "", "payload is not a JSON object")
	}
	if probe.Platform == nil {
		return models.PlatformAndroid, nil
	}
	return models.ParsePlatform(*probe.Platform)
}

func androidReportFromPayload(p *SubmissionPayload) (*models.Report, error) {
	reportType, err := models.ParseReportType(p.UserSuppliedFeedback.ReportType)
	if err != nil {
		return nil, err
	}
	category, err := models.ParseCategory(p.UserSuppliedFeedback.Category)
	if err != nil {
		return nil, err
	}
	networkType, err := models.ParseAndroidNetworkType(p.DeviceContext.NetworkType)
	if err != nil {
		return nil, err
	}
	textSize, err := models.ParseAndroidTextSize(p.AppContext.TextSize)
	if err != nil {
		return nil, err
	}
	entryPointName, err := models.ParseEntryPointName(p.AppContext.EntryPoint.Name)
	if err != nil {
		return nil, err
	}
	entryPoint, err := models.BuildEntryPoint(models.EntryPointFields{
		Name:          entryPointName,
		TopicID:       p.AppContext.EntryPoint.TopicID,
		StoryID:       p.AppContext.EntryPoint.StoryID,
		ExplorationID: p.AppContext.EntryPoint.ExplorationID,
		SubtopicID:    p.AppContext.EntryPoint.SubtopicID,
	})
	if err != nil {
		return nil, err
	}

	return &models.Report{
		SchemaVersion:          p.SchemaVersion,
		Platform:               models.PlatformAndroid,
		SubmittedOn:            contextutils.TimeFromEpochSeconds(p.SubmissionTimestampSec),
		LocalTimezoneOffsetHrs: p.SubmissionUTCOffsetHrs,
		UserSuppliedFeedback: models.UserSuppliedFeedback{
			ReportType:     reportType,
			Category:       category,
			SelectedItems:  p.UserSuppliedFeedback.SelectedItems,
			OtherTextInput: p.UserSuppliedFeedback.OtherTextInput,
		},
		DeviceSystemContext: &models.AndroidDeviceSystemContext{
			VersionName:              p.SystemContext.PlatformVersion,
			PackageVersionCode:       p.SystemContext.PackageVersionCode,
			DeviceCountryLocaleCode:  p.SystemContext.DeviceCountryLocaleCode,
			DeviceLanguageLocaleCode: p.SystemContext.DeviceLanguageLocaleCode,
			DeviceModel:              p.DeviceContext.DeviceModel,
			SDKVersion:               p.DeviceContext.SDKVersion,
			BuildFingerprint:         p.DeviceContext.BuildFingerprint,
			NetworkType:              networkType,
		},
		AppContext: &models.AndroidAppContext{
			EntryPoint:                      entryPoint,
			TextLanguageCode:                p.AppContext.TextLanguageCode,
			AudioLanguageCode:               p.AppContext.AudioLanguageCode,
			TextSize:                        textSize,
			OnlyAllowsWifiDownloadAndUpdate: p.AppContext.OnlyAllowsWifiDownloadAndUpdate,
			AutomaticallyUpdateTopics:       p.AppContext.AutomaticallyUpdateTopics,
			AccountIsProfileAdmin:           p.AppContext.AccountIsProfileAdmin,
			EventLogs:                       p.AppContext.EventLogs,
			LogcatLogs:                      p.AppContext.LogcatLogs,
		},
	}, nil
}

// GenerateReportID returns an unused id of the form
// <platform>.<submitted msec>.<16 hex>, giving up with ID_GENERATION_EXHAUSTED
// after the configured number of collisions.
func (c *Converter) GenerateReportID(ctx context.Context, platform models.Platform, submittedOn time.Time) (string, error) {
	prefix := strings.Join([]string{string(platform), fmt.Sprintf("%d", contextutils.EpochMillis(submittedOn))}, models.ReportIDDelimiter)
	for attempt := 1; attempt <= c.maxIDRetries; attempt++ {
		id := prefix + models.ReportIDDelimiter + c.randomSuffix()
		exists, err := c.reports.ReportExists(ctx, id)
		if err != nil {
			return "", contextutils.WrapErrorf(err, "failed to check report id %s", id)
		}
		if !exists {
			return id, nil
		}
		c.logger.Warn(ctx, "Report id collision", map[string]interface{}{
			"report_id": id,
			"attempt":   attempt,
		})
	}
	return "", contextutils.WrapErrorf(contextutils.ErrIDGenerationExhausted,
		"no unique report id for %s after %d attempts", prefix, c.maxIDRetries)
}

// NewTicketID returns <sha1(name) hex>.<created msec>.<suffix>.
func NewTicketID(name string, createdOn time.Time, suffix string) string {
	sum := sha1.Sum([]byte(name))
	return strings.Join([]string{
		hex.EncodeToString(sum[:]),
		fmt.Sprintf("%d", contextutils.EpochMillis(createdOn)),
		suffix,
	}, models.TicketIDDelimiter)
}

// RandomHexSuffix returns 16 random lowercase hex characters.
func RandomHexSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomSuffixLength]
}
