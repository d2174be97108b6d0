package models

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	contextutils "appfeedback/internal/utils"
)

// UserSuppliedFeedback is what the user chose and typed in the feedback form.
type UserSuppliedFeedback struct {
	ReportType     ReportType `json:"report_type"`
	Category       Category   `json:"category"`
	SelectedItems  []string   `json:"user_feedback_selected_items"`
	OtherTextInput *string    `json:"user_feedback_other_text_input"`
}

// Validate checks the category against the report type and the presence of
// selections and free text against the category.
func (f *UserSuppliedFeedback) Validate() error {
	return f.validate(false)
}

// validate skips the free text requirement for scrubbed feedback, whose text is gone.
func (f *UserSuppliedFeedback) validate(scrubbed bool) error {
	if !isOneOf(f.ReportType, ReportTypes) {
		return contextutils.NewValidationError("report_type", "invalid report type %q", f.ReportType)
	}
	if !isOneOf(f.Category, Categories) {
		return contextutils.NewValidationError("category", "invalid category %q", f.Category)
	}
	if f.Category.ReportType() != f.ReportType {
		return contextutils.NewValidationError("category",
			"category %s is not allowed for report type %s", f.Category, f.ReportType)
	}

	if f.Category.RequiresSelection() {
		if f.SelectedItems == nil {
			return contextutils.NewValidationError("user_feedback_selected_items",
				"category %s requires selection options", f.Category)
		}
	} else if f.SelectedItems != nil {
		return contextutils.NewValidationError("user_feedback_selected_items",
			"category %s cannot have selection options", f.Category)
	}

	textRequired := f.Category.RequiresText() || f.selectedItemsIncludeOther()
	switch {
	case textRequired && f.OtherTextInput == nil && !scrubbed:
		return contextutils.NewValidationError("user_feedback_other_text_input",
			"category %s requires text input", f.Category)
	case f.OtherTextInput != nil && (!textRequired || scrubbed):
		return contextutils.NewValidationError("user_feedback_other_text_input",
			"category %s cannot have text input without an 'other' selection", f.Category)
	}
	return nil
}

func (f *UserSuppliedFeedback) selectedItemsIncludeOther() bool {
	for _, item := range f.SelectedItems {
		if strings.Contains(strings.ToLower(item), "other") {
			return true
		}
	}
	return false
}

// Report is one feedback submission. ID, Platform and SubmittedOn never change
// after ingestion; TicketID and ScrubbedBy are the only mutable fields.
type Report struct {
	ID                     string
	SchemaVersion          int
	Platform               Platform
	SubmittedOn            time.Time
	LocalTimezoneOffsetHrs int
	CreatedOn              time.Time
	TicketID               *string
	ScrubbedBy             *string
	UserSuppliedFeedback   UserSuppliedFeedback
	DeviceSystemContext    DeviceSystemContext
	AppContext             AppContext
}

// IsScrubbed reports whether the report's user-entered fields have been redacted.
func (r *Report) IsScrubbed() bool {
	return r.ScrubbedBy != nil
}

// Scrub records actorID as the scrubber and drops every user-entered field.
func (r *Report) Scrub(actorID string) {
	r.ScrubbedBy = &actorID
	r.UserSuppliedFeedback.OtherTextInput = nil
	if r.AppContext != nil {
		r.AppContext.Scrub()
	}
}

// Validate walks every field and returns the first violation.
func (r *Report) Validate() error {
	if !isOneOf(r.Platform, Platforms) {
		return contextutils.NewValidationError("platform", "platform must be one of %v, got %q", Platforms, r.Platform)
	}
	if err := RequireValidSchemaVersion(r.Platform, r.SchemaVersion); err != nil {
		return err
	}
	if r.Platform == PlatformWeb {
		return contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web report validation is not implemented")
	}
	if r.ScrubbedBy != nil && !IsValidScrubberID(*r.ScrubbedBy) {
		return contextutils.NewValidationError("scrubbed_by", "scrubbed_by user id %q is invalid", *r.ScrubbedBy)
	}
	if r.TicketID != nil {
		if err := RequireValidTicketID(*r.TicketID); err != nil {
			return err
		}
	}
	if r.LocalTimezoneOffsetHrs < MinimumTimezoneOffsetHrs || r.LocalTimezoneOffsetHrs > MaximumTimezoneOffsetHrs {
		return contextutils.NewValidationError("report_submission_utc_offset_hrs",
			"timezone offset %d is outside [%d, %d]", r.LocalTimezoneOffsetHrs, MinimumTimezoneOffsetHrs, MaximumTimezoneOffsetHrs)
	}
	if r.SubmittedOn.IsZero() {
		return contextutils.NewValidationError("report_submission_timestamp_sec", "submission timestamp is required")
	}

	if err := r.UserSuppliedFeedback.validate(r.IsScrubbed()); err != nil {
		return err
	}

	if _, ok := r.DeviceSystemContext.(*AndroidDeviceSystemContext); !ok {
		return contextutils.NewValidationError("device_context", "android reports need an android device context, got %T", r.DeviceSystemContext)
	}
	if err := r.DeviceSystemContext.Validate(); err != nil {
		return err
	}

	appCtx, ok := r.AppContext.(*AndroidAppContext)
	if !ok {
		return contextutils.NewValidationError("app_context", "android reports need an android app context, got %T", r.AppContext)
	}
	if err := appCtx.Validate(); err != nil {
		return err
	}

	if r.IsScrubbed() {
		if r.UserSuppliedFeedback.OtherTextInput != nil {
			return contextutils.NewValidationError("user_feedback_other_text_input", "scrubbed reports cannot keep text input")
		}
		if !appCtx.IsScrubbed() {
			return contextutils.NewValidationError("event_logs", "scrubbed reports cannot keep logs")
		}
		return nil
	}
	if appCtx.EventLogs == nil {
		return contextutils.NewValidationError("event_logs", "event_logs is required")
	}
	if appCtx.LogcatLogs == nil {
		return contextutils.NewValidationError("logcat_logs", "logcat_logs is required")
	}
	return nil
}

// ValidateReferences checks the report's content references against the catalog.
func (r *Report) ValidateReferences(ctx context.Context, refs ContentReferences) error {
	if r.AppContext == nil {
		return nil
	}
	if lp, ok := r.AppContext.GetEntryPoint().(LessonPlayerEntryPoint); ok {
		return lp.ValidateReferences(ctx, refs)
	}
	return nil
}

// RequireValidSchemaVersion checks version against the platform's supported range.
func RequireValidSchemaVersion(p Platform, version int) error {
	lo, hi := schemaVersionRange(p)
	if version < lo || version > hi {
		return contextutils.NewValidationError("schema_version",
			"supported report schema versions for %s reports are [%d, %d], got %d", p, lo, hi, version)
	}
	return nil
}

// StatsValue returns the value the report contributes to param.
func (r *Report) StatsValue(param StatsParameter) string {
	switch param {
	case StatsParamReportType:
		return string(r.UserSuppliedFeedback.ReportType)
	case StatsParamCountryLocaleCode:
		return r.DeviceSystemContext.GetDeviceCountryLocaleCode()
	case StatsParamEntryPointName:
		return string(r.AppContext.GetEntryPoint().Name())
	case StatsParamTextLanguageCode:
		return r.AppContext.GetTextLanguageCode()
	case StatsParamAudioLanguageCode:
		return r.AppContext.GetAudioLanguageCode()
	case StatsParamSDKVersion:
		if d, ok := r.DeviceSystemContext.(*AndroidDeviceSystemContext); ok {
			return strconv.Itoa(d.SDKVersion)
		}
		return ""
	case StatsParamVersionName:
		return r.DeviceSystemContext.GetVersionName()
	}
	return ""
}

type reportJSON struct {
	ID                     string               `json:"report_id"`
	SchemaVersion          int                  `json:"schema_version"`
	Platform               Platform             `json:"platform"`
	SubmittedOn            time.Time            `json:"submitted_on"`
	LocalTimezoneOffsetHrs int                  `json:"local_timezone_offset_hrs"`
	CreatedOn              time.Time            `json:"created_on"`
	TicketID               *string              `json:"ticket_id"`
	ScrubbedBy             *string              `json:"scrubbed_by"`
	UserSuppliedFeedback   UserSuppliedFeedback `json:"user_supplied_feedback"`
	DeviceSystemContext    DeviceSystemContext  `json:"device_system_context"`
	AppContext             appContextJSON       `json:"app_context"`
}

type appContextJSON struct {
	AppContext
	EntryPoint EntryPointFields `json:"entry_point"`
}

func (a appContextJSON) MarshalJSON() ([]byte, error) {
	if a.AppContext == nil {
		return []byte("null"), nil
	}
	base, err := json.Marshal(a.AppContext)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	ep, err := json.Marshal(a.EntryPoint)
	if err != nil {
		return nil, err
	}
	fields["entry_point"] = ep
	return json.Marshal(fields)
}

// MarshalJSON renders the report for moderators, with the entry point in its flat form.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		ID:                     r.ID,
		SchemaVersion:          r.SchemaVersion,
		Platform:               r.Platform,
		SubmittedOn:            r.SubmittedOn,
		LocalTimezoneOffsetHrs: r.LocalTimezoneOffsetHrs,
		CreatedOn:              r.CreatedOn,
		TicketID:               r.TicketID,
		ScrubbedBy:             r.ScrubbedBy,
		UserSuppliedFeedback:   r.UserSuppliedFeedback,
		DeviceSystemContext:    r.DeviceSystemContext,
		AppContext:             appContextJSON{AppContext: r.AppContext},
	}
	if r.AppContext != nil && r.AppContext.GetEntryPoint() != nil {
		out.AppContext.EntryPoint = FlattenEntryPoint(r.AppContext.GetEntryPoint())
	}
	return json.Marshal(out)
}
