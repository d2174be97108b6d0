package conversion

import (
	"database/sql"
	"encoding/json"

	"appfeedback/internal/models"
	contextutils "appfeedback/internal/utils"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ReportToStorage flattens an Android report into its stored row.
func ReportToStorage(r *models.Report) (*models.ReportRecord, error) {
	if r.Platform == models.PlatformWeb {
		return nil, contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web reports cannot be stored yet")
	}
	device, ok := r.DeviceSystemContext.(*models.AndroidDeviceSystemContext)
	if !ok {
		return nil, contextutils.NewInvalidInputError("device_context", r.DeviceSystemContext, "android report without android device context")
	}
	app, ok := r.AppContext.(*models.AndroidAppContext)
	if !ok || app.EntryPoint == nil {
		return nil, contextutils.NewInvalidInputError("app_context", r.AppContext, "android report without android app context")
	}

	info, err := json.Marshal(models.AndroidReportInfo{
		UserFeedbackSelectedItems:       r.UserSuppliedFeedback.SelectedItems,
		UserFeedbackOtherTextInput:      r.UserSuppliedFeedback.OtherTextInput,
		EventLogs:                       app.EventLogs,
		LogcatLogs:                      app.LogcatLogs,
		PackageVersionCode:              device.PackageVersionCode,
		AndroidDeviceLanguageLocaleCode: device.DeviceLanguageLocaleCode,
		BuildFingerprint:                device.BuildFingerprint,
		NetworkType:                     string(device.NetworkType),
		TextSize:                        string(app.TextSize),
		OnlyAllowsWifiDownloadAndUpdate: app.OnlyAllowsWifiDownloadAndUpdate,
		AutomaticallyUpdateTopics:       app.AutomaticallyUpdateTopics,
		AccountIsProfileAdmin:           app.AccountIsProfileAdmin,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to encode android report info")
	}

	ep := models.FlattenEntryPoint(app.EntryPoint)
	return &models.ReportRecord{
		ID:                             r.ID,
		Platform:                       string(r.Platform),
		ScrubbedBy:                     nullString(r.ScrubbedBy),
		TicketID:                       nullString(r.TicketID),
		SubmittedOn:                    r.SubmittedOn.UTC(),
		LocalTimezoneOffsetHrs:         r.LocalTimezoneOffsetHrs,
		ReportType:                     string(r.UserSuppliedFeedback.ReportType),
		Category:                       string(r.UserSuppliedFeedback.Category),
		PlatformVersion:                device.VersionName,
		DeviceCountryLocaleCode:        sql.NullString{String: device.DeviceCountryLocaleCode, Valid: true},
		AndroidDeviceModel:             sql.NullString{String: device.DeviceModel, Valid: true},
		AndroidSDKVersion:              sql.NullInt32{Int32: int32(device.SDKVersion), Valid: true},
		EntryPoint:                     string(ep.Name),
		EntryPointTopicID:              nullString(ep.TopicID),
		EntryPointStoryID:              nullString(ep.StoryID),
		EntryPointExplorationID:        nullString(ep.ExplorationID),
		EntryPointSubtopicID:           nullInt32(ep.SubtopicID),
		TextLanguageCode:               app.TextLanguageCode,
		AudioLanguageCode:              app.AudioLanguageCode,
		AndroidReportInfo:              info,
		AndroidReportInfoSchemaVersion: sql.NullInt32{Int32: int32(r.SchemaVersion), Valid: true},
		CreatedOn:                      r.CreatedOn.UTC(),
	}, nil
}

// ReportFromStorage rebuilds a report from its stored row. Rows written by a
// newer schema than this build understands are UNSUPPORTED_SCHEMA_VERSION.
func ReportFromStorage(rec *models.ReportRecord) (*models.Report, error) {
	platform, err := models.ParsePlatform(rec.Platform)
	if err != nil {
		return nil, err
	}
	if platform == models.PlatformWeb {
		return nil, contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web reports cannot be loaded yet")
	}
	if !rec.AndroidReportInfoSchemaVersion.Valid {
		return nil, contextutils.WrapErrorf(contextutils.ErrUnsupportedSchemaVersion,
			"report %s has no android report info schema version", rec.ID)
	}
	version := int(rec.AndroidReportInfoSchemaVersion.Int32)
	if version > models.CurrentSchemaVersion(platform) || version < models.MinimumAndroidReportSchemaVersion {
		return nil, contextutils.WrapErrorf(contextutils.ErrUnsupportedSchemaVersion,
			"report %s has android report info schema version %d, supported up to %d",
			rec.ID, version, models.CurrentSchemaVersion(platform))
	}

	var info models.AndroidReportInfo
	if err := json.Unmarshal(rec.AndroidReportInfo, &info); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to decode android report info of %s", rec.ID)
	}

	reportType, err := models.ParseReportType(rec.ReportType)
	if err != nil {
		return nil, err
	}
	category, err := models.ParseCategory(rec.Category)
	if err != nil {
		return nil, err
	}
	networkType, err := models.ParseAndroidNetworkType(info.NetworkType)
	if err != nil {
		return nil, err
	}
	textSize, err := models.ParseAndroidTextSize(info.TextSize)
	if err != nil {
		return nil, err
	}
	entryPointName, err := models.ParseEntryPointName(rec.EntryPoint)
	if err != nil {
		return nil, err
	}
	entryPoint, err := models.BuildEntryPoint(models.EntryPointFields{
		Name:          entryPointName,
		TopicID:       stringPtr(rec.EntryPointTopicID),
		StoryID:       stringPtr(rec.EntryPointStoryID),
		ExplorationID: stringPtr(rec.EntryPointExplorationID),
		SubtopicID:    intPtr(rec.EntryPointSubtopicID),
	})
	if err != nil {
		return nil, err
	}

	return &models.Report{
		ID:                     rec.ID,
		SchemaVersion:          version,
		Platform:               platform,
		SubmittedOn:            rec.SubmittedOn.UTC(),
		LocalTimezoneOffsetHrs: rec.LocalTimezoneOffsetHrs,
		CreatedOn:              rec.CreatedOn.UTC(),
		TicketID:               stringPtr(rec.TicketID),
		ScrubbedBy:             stringPtr(rec.ScrubbedBy),
		UserSuppliedFeedback: models.UserSuppliedFeedback{
			ReportType:     reportType,
			Category:       category,
			SelectedItems:  info.UserFeedbackSelectedItems,
			OtherTextInput: info.UserFeedbackOtherTextInput,
		},
		DeviceSystemContext: &models.AndroidDeviceSystemContext{
			VersionName:              rec.PlatformVersion,
			PackageVersionCode:       info.PackageVersionCode,
			DeviceCountryLocaleCode:  rec.DeviceCountryLocaleCode.String,
			DeviceLanguageLocaleCode: info.AndroidDeviceLanguageLocaleCode,
			DeviceModel:              rec.AndroidDeviceModel.String,
			SDKVersion:               int(rec.AndroidSDKVersion.Int32),
			BuildFingerprint:         info.BuildFingerprint,
			NetworkType:              networkType,
		},
		AppContext: &models.AndroidAppContext{
			EntryPoint:                      entryPoint,
			TextLanguageCode:                rec.TextLanguageCode,
			AudioLanguageCode:               rec.AudioLanguageCode,
			TextSize:                        textSize,
			OnlyAllowsWifiDownloadAndUpdate: info.OnlyAllowsWifiDownloadAndUpdate,
			AutomaticallyUpdateTopics:       info.AutomaticallyUpdateTopics,
			AccountIsProfileAdmin:           info.AccountIsProfileAdmin,
			EventLogs:                       info.EventLogs,
			LogcatLogs:                      info.LogcatLogs,
		},
	}, nil
}

// TicketToStorage converts a ticket to its stored row. Timestamps are left to the store.
func TicketToStorage(t *models.Ticket) *models.TicketRecord {
	rec := &models.TicketRecord{
		ID:                  t.ID,
		TicketName:          t.Name,
		Platform:            string(t.Platform),
		GithubIssueRepoName: nullString(t.GithubIssueRepoName),
		GithubIssueNumber:   nullInt32(t.GithubIssueNumber),
		Archived:            t.Archived,
		ReportIDs:           append([]string{}, t.ReportIDs...),
	}
	if t.NewestReportTimestamp != nil {
		rec.NewestReportTimestamp = sql.NullTime{Time: t.NewestReportTimestamp.UTC(), Valid: true}
	}
	return rec
}

// TicketFromStorage rebuilds a ticket from its stored row.
func TicketFromStorage(rec *models.TicketRecord) (*models.Ticket, error) {
	platform, err := models.ParsePlatform(rec.Platform)
	if err != nil {
		return nil, err
	}
	t := &models.Ticket{
		ID:                  rec.ID,
		Name:                rec.TicketName,
		Platform:            platform,
		GithubIssueRepoName: stringPtr(rec.GithubIssueRepoName),
		GithubIssueNumber:   intPtr(rec.GithubIssueNumber),
		Archived:            rec.Archived,
		ReportIDs:           append([]string{}, rec.ReportIDs...),
	}
	if rec.NewestReportTimestamp.Valid {
		ts := rec.NewestReportTimestamp.Time.UTC()
		t.NewestReportTimestamp = &ts
	}
	return t, nil
}

// StatsToStorage converts a stats row, encoding the parameter counts at the current schema version.
func StatsToStorage(s *models.DailyStats) (*models.StatsRecord, error) {
	paramStats, err := json.Marshal(s.ParamStats)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to encode daily param stats")
	}
	return &models.StatsRecord{
		ID:                           s.ID,
		Platform:                     string(s.Platform),
		TicketID:                     s.TicketID,
		StatsTrackingDate:            contextutils.UTCDate(s.Date.Time),
		TotalReportsSubmitted:        s.TotalReportsSubmitted,
		DailyParamStatsSchemaVersion: models.CurrentStatsSchemaVersion,
		DailyParamStats:              paramStats,
	}, nil
}

// StatsFromStorage rebuilds a stats row. Newer param stats schemas are UNSUPPORTED_SCHEMA_VERSION.
func StatsFromStorage(rec *models.StatsRecord) (*models.DailyStats, error) {
	if rec.DailyParamStatsSchemaVersion < 1 || rec.DailyParamStatsSchemaVersion > models.CurrentStatsSchemaVersion {
		return nil, contextutils.WrapErrorf(contextutils.ErrUnsupportedSchemaVersion,
			"stats row %s has param stats schema version %d, supported up to %d",
			rec.ID, rec.DailyParamStatsSchemaVersion, models.CurrentStatsSchemaVersion)
	}
	platform, err := models.ParsePlatform(rec.Platform)
	if err != nil {
		return nil, err
	}
	paramStats := map[models.StatsParameter]map[string]int{}
	if len(rec.DailyParamStats) > 0 {
		if err := json.Unmarshal(rec.DailyParamStats, &paramStats); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode param stats of %s", rec.ID)
		}
	}
	for param, counts := range paramStats {
		if counts == nil {
			paramStats[param] = map[string]int{}
		}
	}
	return &models.DailyStats{
		ID:                    rec.ID,
		Platform:              platform,
		TicketID:              rec.TicketID,
		Date:                  openapi_types.Date{Time: contextutils.UTCDate(rec.StatsTrackingDate)},
		TotalReportsSubmitted: rec.TotalReportsSubmitted,
		ParamStats:            paramStats,
	}, nil
}

// NullTicketID is the ticket_id column value of a report on ticketID, or on no ticket.
func NullTicketID(ticketID *string) sql.NullString {
	return nullString(ticketID)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt32(n *int) sql.NullInt32 {
	if n == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*n), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt32) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int32)
	return &n
}
