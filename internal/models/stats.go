package models

import (
	"strings"
	"time"

	contextutils "appfeedback/internal/utils"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// DailyStats counts the reports of one ticket on one UTC day. Every tracked
// parameter's value counts sum to TotalReportsSubmitted.
type DailyStats struct {
	ID                    string                            `json:"stats_id"`
	Platform              Platform                          `json:"platform"`
	TicketID              string                            `json:"ticket_id"`
	Date                  openapi_types.Date                `json:"stats_tracking_date"`
	TotalReportsSubmitted int                               `json:"total_reports_submitted"`
	ParamStats            map[StatsParameter]map[string]int `json:"daily_param_stats"`
}

// StatsID builds the composite row id "platform:ticket:YYYY-MM-DD".
func StatsID(platform Platform, ticketID string, date time.Time) string {
	return strings.Join([]string{string(platform), ticketID, contextutils.FormatISODate(date)}, StatsIDDelimiter)
}

// Clone returns a deep copy.
func (s *DailyStats) Clone() *DailyStats {
	if s == nil {
		return nil
	}
	c := *s
	c.ParamStats = make(map[StatsParameter]map[string]int, len(s.ParamStats))
	for param, counts := range s.ParamStats {
		m := make(map[string]int, len(counts))
		for v, n := range counts {
			m[v] = n
		}
		c.ParamStats[param] = m
	}
	return &c
}

// ApplyReportToStats returns the row that results from adding delta reports
// like report to existing, which may be nil when no row exists yet. existing
// is not modified. Decrementing a missing row or an unseen value, or driving
// any count below zero, is a CONSISTENCY_VIOLATION.
func ApplyReportToStats(existing *DailyStats, ticketID string, report *Report, delta int) (*DailyStats, error) {
	if delta == 0 {
		return nil, contextutils.NewInvalidInputError("delta", delta, "must be non-zero")
	}
	statsID := StatsID(report.Platform, ticketID, report.SubmittedOn)

	if existing == nil {
		if delta < 0 {
			return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
				"cannot decrement stats row %s that does not exist", statsID)
		}
		created := &DailyStats{
			ID:                    statsID,
			Platform:              report.Platform,
			TicketID:              ticketID,
			Date:                  openapi_types.Date{Time: contextutils.UTCDate(report.SubmittedOn)},
			TotalReportsSubmitted: delta,
			ParamStats:            make(map[StatsParameter]map[string]int, len(TrackedStatsParameters)),
		}
		for _, param := range TrackedStatsParameters {
			created.ParamStats[param] = map[string]int{report.StatsValue(param): delta}
		}
		return created, nil
	}

	if existing.ID != statsID {
		return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
			"stats row %s does not match report bucket %s", existing.ID, statsID)
	}

	updated := existing.Clone()
	updated.TotalReportsSubmitted += delta
	if updated.TotalReportsSubmitted < 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
			"stats row %s total would become %d", statsID, updated.TotalReportsSubmitted)
	}
	for _, param := range TrackedStatsParameters {
		counts := updated.ParamStats[param]
		if counts == nil {
			counts = map[string]int{}
			updated.ParamStats[param] = counts
		}
		value := report.StatsValue(param)
		current, seen := counts[value]
		if !seen && delta < 0 {
			return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
				"cannot decrement unseen value %q of %s in stats row %s", value, param, statsID)
		}
		next := current + delta
		switch {
		case next < 0:
			return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
				"count of %q for %s in stats row %s would become %d", value, param, statsID, next)
		case next == 0:
			delete(counts, value)
		default:
			counts[value] = next
		}
	}
	return updated, nil
}

// Validate checks the row id and that every tracked parameter's counts sum to the total.
func (s *DailyStats) Validate() error {
	if len(strings.Split(s.ID, StatsIDDelimiter)) != 3 {
		return contextutils.NewValidationError("stats_id", "the stats id %s is invalid", s.ID)
	}
	if !isOneOf(s.Platform, Platforms) {
		return contextutils.NewValidationError("platform", "platform must be one of %v, got %q", Platforms, s.Platform)
	}
	if s.TotalReportsSubmitted < 0 {
		return contextutils.NewValidationError("total_reports_submitted",
			"total reports submitted cannot be negative, got %d", s.TotalReportsSubmitted)
	}
	for param, counts := range s.ParamStats {
		if !isOneOf(param, TrackedStatsParameters) {
			return contextutils.NewValidationError("daily_param_stats", "%s is not a tracked stats parameter", param)
		}
		sum := 0
		for value, n := range counts {
			if n < 1 {
				return contextutils.NewValidationError("daily_param_stats", "count of %q for %s must be positive, got %d", value, param, n)
			}
			sum += n
		}
		if sum != s.TotalReportsSubmitted {
			return contextutils.NewValidationError("daily_param_stats",
				"counts for %s sum to %d but total is %d", param, sum, s.TotalReportsSubmitted)
		}
	}
	return nil
}
