package models

import (
	"strings"

	contextutils "appfeedback/internal/utils"
)

// DeviceSystemContext describes the device and OS a report came from.
type DeviceSystemContext interface {
	GetVersionName() string
	GetDeviceCountryLocaleCode() string
	Validate() error
	isDeviceSystemContext()
}

// AndroidDeviceSystemContext is the device context of an Android report.
type AndroidDeviceSystemContext struct {
	VersionName              string             `json:"version_name" validate:"required"`
	PackageVersionCode       int                `json:"package_version_code"`
	DeviceCountryLocaleCode  string             `json:"device_country_locale_code" validate:"required,localecode"`
	DeviceLanguageLocaleCode string             `json:"device_language_locale_code" validate:"required,localecode"`
	DeviceModel              string             `json:"device_model" validate:"required"`
	SDKVersion               int                `json:"sdk_version"`
	BuildFingerprint         string             `json:"build_fingerprint" validate:"required"`
	NetworkType              AndroidNetworkType `json:"network_type"`
}

func (c *AndroidDeviceSystemContext) GetVersionName() string             { return c.VersionName }
func (c *AndroidDeviceSystemContext) GetDeviceCountryLocaleCode() string { return c.DeviceCountryLocaleCode }
func (c *AndroidDeviceSystemContext) isDeviceSystemContext()             {}

// Validate checks every Android device field.
func (c *AndroidDeviceSystemContext) Validate() error {
	if err := contextutils.ValidateStruct(c); err != nil {
		return err
	}
	if n := len(strings.Split(c.VersionName, AndroidVersionNameDelimiter)); n != AndroidVersionNameSegments {
		return contextutils.NewValidationError("version_name",
			"version name %q must have %d %q separated parts, has %d", c.VersionName, AndroidVersionNameSegments, AndroidVersionNameDelimiter, n)
	}
	if c.PackageVersionCode < MinimumAndroidPackageVersionCode || c.PackageVersionCode > MaximumAndroidPackageVersionCode {
		return contextutils.NewValidationError("package_version_code",
			"package version code %d is outside [%d, %d]", c.PackageVersionCode, MinimumAndroidPackageVersionCode, MaximumAndroidPackageVersionCode)
	}
	if c.SDKVersion < MinimumAndroidSDKVersion {
		return contextutils.NewValidationError("sdk_version",
			"sdk version %d is below the minimum %d", c.SDKVersion, MinimumAndroidSDKVersion)
	}
	if !isOneOf(c.NetworkType, AndroidNetworkTypes) {
		return contextutils.NewValidationError("network_type", "invalid network type %q", c.NetworkType)
	}
	return nil
}

// WebDeviceSystemContext carries the shared device fields of a web report.
// Web reports are not accepted yet, so it never validates.
type WebDeviceSystemContext struct {
	VersionName             string `json:"version_name"`
	DeviceCountryLocaleCode string `json:"device_country_locale_code"`
}

func (c *WebDeviceSystemContext) GetVersionName() string             { return c.VersionName }
func (c *WebDeviceSystemContext) GetDeviceCountryLocaleCode() string { return c.DeviceCountryLocaleCode }
func (c *WebDeviceSystemContext) isDeviceSystemContext()             {}

func (c *WebDeviceSystemContext) Validate() error {
	return contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web device context validation is not implemented")
}

// AppContext describes the app state a report was filed from.
type AppContext interface {
	GetEntryPoint() EntryPoint
	GetTextLanguageCode() string
	GetAudioLanguageCode() string
	// Scrub drops every user-entered field.
	Scrub()
	// IsScrubbed reports whether every user-entered field is gone.
	IsScrubbed() bool
	Validate() error
	isAppContext()
}

// AndroidAppContext is the app context of an Android report. EventLogs and
// LogcatLogs are nil once the report is scrubbed.
type AndroidAppContext struct {
	EntryPoint                      EntryPoint      `json:"-"`
	TextLanguageCode                string          `json:"text_language_code" validate:"required,localecode"`
	AudioLanguageCode               string          `json:"audio_language_code" validate:"required,localecode"`
	TextSize                        AndroidTextSize `json:"text_size"`
	OnlyAllowsWifiDownloadAndUpdate bool            `json:"only_allows_wifi_download_and_update"`
	AutomaticallyUpdateTopics       bool            `json:"automatically_update_topics"`
	AccountIsProfileAdmin           bool            `json:"account_is_profile_admin"`
	EventLogs                       []string        `json:"event_logs"`
	LogcatLogs                      []string        `json:"logcat_logs"`
}

func (c *AndroidAppContext) GetEntryPoint() EntryPoint    { return c.EntryPoint }
func (c *AndroidAppContext) GetTextLanguageCode() string  { return c.TextLanguageCode }
func (c *AndroidAppContext) GetAudioLanguageCode() string { return c.AudioLanguageCode }
func (c *AndroidAppContext) isAppContext()                {}

func (c *AndroidAppContext) Scrub() {
	c.EventLogs = nil
	c.LogcatLogs = nil
}

func (c *AndroidAppContext) IsScrubbed() bool {
	return c.EventLogs == nil && c.LogcatLogs == nil
}

// Validate checks the Android app fields. Log lists are checked by the report,
// which knows whether it has been scrubbed.
func (c *AndroidAppContext) Validate() error {
	if c.EntryPoint == nil {
		return contextutils.NewValidationError("entry_point", "entry_point is required")
	}
	if err := c.EntryPoint.Validate(); err != nil {
		return err
	}
	if err := contextutils.ValidateStruct(c); err != nil {
		return err
	}
	if !isOneOf(c.TextSize, AndroidTextSizes) {
		return contextutils.NewValidationError("text_size", "invalid text size %q", c.TextSize)
	}
	return nil
}

// WebAppContext carries the shared app fields of a web report.
type WebAppContext struct {
	EntryPoint        EntryPoint `json:"-"`
	TextLanguageCode  string     `json:"text_language_code"`
	AudioLanguageCode string     `json:"audio_language_code"`
}

func (c *WebAppContext) GetEntryPoint() EntryPoint    { return c.EntryPoint }
func (c *WebAppContext) GetTextLanguageCode() string  { return c.TextLanguageCode }
func (c *WebAppContext) GetAudioLanguageCode() string { return c.AudioLanguageCode }
func (c *WebAppContext) isAppContext()                {}
func (c *WebAppContext) Scrub()                       {}
func (c *WebAppContext) IsScrubbed() bool             { return true }

func (c *WebAppContext) Validate() error {
	return contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web app context validation is not implemented")
}
