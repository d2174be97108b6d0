package services

import (
	"context"

	"appfeedback/internal/conversion"
	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	"appfeedback/internal/store"
	contextutils "appfeedback/internal/utils"
)

// StatsServiceInterface defines the daily stats aggregation operations
type StatsServiceInterface interface {
	// ApplyDelta adds delta reports like report to the ticket's row for the report's submission day
	ApplyDelta(ctx context.Context, ticketID string, report *models.Report, delta int) (*models.DailyStats, error)
	// RecordIncomingReport counts a freshly ingested report in the all-reports and ticket buckets
	RecordIncomingReport(ctx context.Context, report *models.Report) error
	// GetTicketStats returns every daily row of a ticket, oldest first
	GetTicketStats(ctx context.Context, ticketID string) ([]*models.DailyStats, error)
}

// StatsService keeps the per-ticket daily counters exact. Every mutation is
// a single-row transaction on the store.
type StatsService struct {
	store   store.Store
	logger  *observability.Logger
	metrics *observability.ReportMetrics
}

// NewStatsService creates a new StatsService. metrics may be nil.
func NewStatsService(st store.Store, logger *observability.Logger, metrics *observability.ReportMetrics) *StatsService {
	if st == nil {
		panic("NewStatsService: store is nil")
	}
	if logger == nil {
		panic("NewStatsService: logger is nil")
	}
	return &StatsService{store: st, logger: logger, metrics: metrics}
}

// StatsBucket returns the stats ticket a report's ticket assignment counts under.
func StatsBucket(ticketID *string) string {
	if ticketID == nil {
		return models.UnticketedAndroidReportsStatsTicketID
	}
	return *ticketID
}

// ApplyDelta runs the pure counter update inside the store's row transaction.
// CONSISTENCY_VIOLATION errors are fatal and never retried.
func (s *StatsService) ApplyDelta(ctx context.Context, ticketID string, report *models.Report, delta int) (result0 *models.DailyStats, err error) {
	statsID := models.StatsID(report.Platform, ticketID, report.SubmittedOn)
	ctx, span := observability.TraceStatsFunction(ctx, "apply_delta",
		observability.AttributeStatsID(statsID),
		observability.AttributeReportID(report.ID),
		observability.AttributeDelta(delta),
	)
	defer observability.FinishSpan(span, &err)

	if report.Platform == models.PlatformWeb {
		return nil, contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web report stats are not tracked yet")
	}

	rec, err := s.store.UpdateStatsInTx(ctx, statsID, func(existing *models.StatsRecord) (*models.StatsRecord, error) {
		var current *models.DailyStats
		if existing != nil {
			decoded, err := conversion.StatsFromStorage(existing)
			if err != nil {
				return nil, err
			}
			current = decoded
		}
		updated, err := models.ApplyReportToStats(current, ticketID, report, delta)
		if err != nil {
			return nil, err
		}
		if err := updated.Validate(); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
				"stats row %s is inconsistent after update: %v", statsID, err)
		}
		return conversion.StatsToStorage(updated)
	})
	if err != nil {
		if contextutils.GetErrorCode(err) == contextutils.ErrorCodeConsistencyViolation {
			s.metrics.RecordConsistencyViolation(ctx)
			s.logger.Error(ctx, "Stats consistency violation", err, map[string]interface{}{
				"stats_id":  statsID,
				"report_id": report.ID,
				"delta":     delta,
			})
		}
		return nil, err
	}

	s.logger.Debug(ctx, "Applied stats delta", map[string]interface{}{
		"stats_id": statsID,
		"delta":    delta,
		"total":    rec.TotalReportsSubmitted,
	})
	return conversion.StatsFromStorage(rec)
}

// RecordIncomingReport adds the report to the all-reports bucket and to its
// ticket's bucket, which is the unticketed bucket for a new report.
func (s *StatsService) RecordIncomingReport(ctx context.Context, report *models.Report) (err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "record_incoming_report",
		observability.AttributeReportID(report.ID),
		observability.AttributePlatform(string(report.Platform)),
	)
	defer observability.FinishSpan(span, &err)

	if report.Platform == models.PlatformWeb {
		return contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web report stats are not tracked yet")
	}
	for _, bucket := range []string{models.AllAndroidReportsStatsTicketID, StatsBucket(report.TicketID)} {
		if _, err := s.ApplyDelta(ctx, bucket, report, 1); err != nil {
			return contextutils.WrapErrorf(err, "failed to count report %s in %s", report.ID, bucket)
		}
	}
	return nil
}

// GetTicketStats returns the daily rows of a ticket or pseudo ticket.
func (s *StatsService) GetTicketStats(ctx context.Context, ticketID string) (result0 []*models.DailyStats, err error) {
	ctx, span := observability.TraceStatsFunction(ctx, "get_ticket_stats", observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, &err)

	recs, err := s.store.ListStatsForTicket(ctx, ticketID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list stats of ticket %s", ticketID)
	}
	result := make([]*models.DailyStats, 0, len(recs))
	for _, rec := range recs {
		stats, err := conversion.StatsFromStorage(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	span.SetAttributes(observability.AttributeCount(len(result)))
	return result, nil
}
