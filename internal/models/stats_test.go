package models

import (
	"testing"
	"time"

	contextutils "appfeedback/internal/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsID(t *testing.T) {
	ts := time.Date(2021, 3, 4, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "android:ticket.1.2:2021-03-04", StatsID(PlatformAndroid, "ticket.1.2", ts))
}

func TestApplyReportToStats_CreatesRow(t *testing.T) {
	r := newAndroidReport()

	row, err := ApplyReportToStats(nil, AllAndroidReportsStatsTicketID, r, 1)
	require.NoError(t, err)
	require.NoError(t, row.Validate())

	assert.Equal(t, StatsID(PlatformAndroid, AllAndroidReportsStatsTicketID, r.SubmittedOn), row.ID)
	assert.Equal(t, 1, row.TotalReportsSubmitted)
	want := map[StatsParameter]map[string]int{
		StatsParamReportType:        {"suggestion": 1},
		StatsParamCountryLocaleCode: {"in": 1},
		StatsParamEntryPointName:    {"navigation_drawer": 1},
		StatsParamTextLanguageCode:  {"en": 1},
		StatsParamAudioLanguageCode: {"en": 1},
		StatsParamSDKVersion:        {"28": 1},
		StatsParamVersionName:       {"1.0.0-flavor-commithash": 1},
	}
	if diff := cmp.Diff(want, row.ParamStats); diff != "" {
		t.Errorf("param stats mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyReportToStats_IncrementThenDecrementConserves(t *testing.T) {
	first := newAndroidReport()
	second := newAndroidReport()
	second.DeviceSystemContext.(*AndroidDeviceSystemContext).SDKVersion = 30

	row, err := ApplyReportToStats(nil, "t.1.2", first, 1)
	require.NoError(t, err)
	snapshot := row.Clone()

	row2, err := ApplyReportToStats(row, "t.1.2", second, 1)
	require.NoError(t, err)
	require.NoError(t, row2.Validate())
	assert.Equal(t, 2, row2.TotalReportsSubmitted)
	assert.Equal(t, map[string]int{"28": 1, "30": 1}, row2.ParamStats[StatsParamSDKVersion])
	assert.Equal(t, map[string]int{"en": 2}, row2.ParamStats[StatsParamTextLanguageCode])

	// input rows are never modified
	if diff := cmp.Diff(snapshot, row); diff != "" {
		t.Errorf("input row mutated (-want +got):\n%s", diff)
	}

	row3, err := ApplyReportToStats(row2, "t.1.2", second, -1)
	require.NoError(t, err)
	require.NoError(t, row3.Validate())
	if diff := cmp.Diff(snapshot, row3); diff != "" {
		t.Errorf("decrement did not restore row (-want +got):\n%s", diff)
	}
}

func TestApplyReportToStats_Violations(t *testing.T) {
	r := newAndroidReport()
	row, err := ApplyReportToStats(nil, "t.1.2", r, 1)
	require.NoError(t, err)

	other := newAndroidReport()
	other.DeviceSystemContext.(*AndroidDeviceSystemContext).SDKVersion = 30

	nextDay := newAndroidReport()
	nextDay.SubmittedOn = r.SubmittedOn.Add(24 * time.Hour)

	tests := []struct {
		name     string
		existing *DailyStats
		report   *Report
		delta    int
	}{
		{"decrement missing row", nil, r, -1},
		{"decrement unseen value", row, other, -1},
		{"decrement below zero", row, r, -2},
		{"row from another bucket", row, nextDay, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyReportToStats(tt.existing, "t.1.2", tt.report, tt.delta)
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeConsistencyViolation, contextutils.GetErrorCode(err))
			assert.True(t, contextutils.IsFatal(err))
		})
	}

	_, err = ApplyReportToStats(row, "t.1.2", r, 0)
	assert.Equal(t, contextutils.ErrorCodeInvalidInput, contextutils.GetErrorCode(err))
}

func TestApplyReportToStats_DecrementToZeroDropsValues(t *testing.T) {
	r := newAndroidReport()
	row, err := ApplyReportToStats(nil, "t.1.2", r, 1)
	require.NoError(t, err)

	empty, err := ApplyReportToStats(row, "t.1.2", r, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalReportsSubmitted)
	for _, param := range TrackedStatsParameters {
		assert.Empty(t, empty.ParamStats[param], string(param))
	}
	assert.NoError(t, empty.Validate())
}

func TestDailyStatsValidate(t *testing.T) {
	r := newAndroidReport()
	row, err := ApplyReportToStats(nil, "t.1.2", r, 2)
	require.NoError(t, err)
	require.NoError(t, row.Validate())

	broken := row.Clone()
	broken.ParamStats[StatsParamSDKVersion]["28"] = 1
	requireValidationField(t, broken.Validate(), "daily_param_stats")

	broken = row.Clone()
	broken.ID = "android:t.1.2"
	requireValidationField(t, broken.Validate(), "stats_id")

	broken = row.Clone()
	broken.ParamStats["device_model"] = map[string]int{"Pixel": 2}
	requireValidationField(t, broken.Validate(), "daily_param_stats")
}
