package services

import (
	"context"
	"time"

	"appfeedback/internal/conversion"
	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	"appfeedback/internal/store"
	contextutils "appfeedback/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ScrubServiceInterface defines the retention operations
type ScrubServiceInterface interface {
	// ScrubReport redacts the user-entered fields of one report on behalf of actorID
	ScrubReport(ctx context.Context, reportID, actorID string) (*models.Report, error)
	// SweepExpiring scrubs every unscrubbed report older than the retention window
	SweepExpiring(ctx context.Context, actorID string) (int, error)
	// GetExpiringReports lists the reports the next sweep would scrub
	GetExpiringReports(ctx context.Context) ([]*models.Report, error)
}

// ScrubService redacts reports. Scrubbing never touches stats: the indexed
// fields the counters are built from survive it.
type ScrubService struct {
	store     store.Store
	lock      SweepLock
	retention time.Duration
	logger    *observability.Logger
	metrics   *observability.ReportMetrics
	now       func() time.Time
}

// NewScrubService creates a new ScrubService. A nil lock guards sweeps within this process only.
func NewScrubService(st store.Store, lock SweepLock, retention time.Duration, logger *observability.Logger, metrics *observability.ReportMetrics) *ScrubService {
	if st == nil {
		panic("NewScrubService: store is nil")
	}
	if logger == nil {
		panic("NewScrubService: logger is nil")
	}
	if lock == nil {
		lock = &LocalSweepLock{}
	}
	if retention <= 0 {
		retention = time.Duration(models.DefaultRetentionDays) * 24 * time.Hour
	}
	return &ScrubService{
		store:     st,
		lock:      lock,
		retention: retention,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// ScrubReport redacts a report. Scrubbing again as the same actor is a
// no-op; a report already scrubbed by someone else is a CONFLICT.
func (s *ScrubService) ScrubReport(ctx context.Context, reportID, actorID string) (result0 *models.Report, err error) {
	ctx, span := observability.TraceScrubFunction(ctx, "scrub_report",
		observability.AttributeReportID(reportID),
		observability.AttributeActor(actorID),
	)
	defer observability.FinishSpan(span, &err)

	rec, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	report, err := conversion.ReportFromStorage(rec)
	if err != nil {
		return nil, err
	}

	if report.ScrubbedBy != nil {
		span.SetAttributes(attribute.Bool("scrub.noop", true))
		return alreadyScrubbed(report, actorID)
	}
	if !models.IsValidScrubberID(actorID) {
		return nil, contextutils.NewValidationError("scrubbed_by", "scrubbed_by user id %q is invalid", actorID)
	}

	report.Scrub(actorID)
	if err := report.Validate(); err != nil {
		return nil, err
	}
	scrubbed, err := conversion.ReportToStorage(report)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.SaveScrubbedReport(ctx, scrubbed)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to save scrubbed report %s", reportID)
	}
	if !saved {
		// Someone scrubbed it after we read it.
		rec, err := s.store.GetReport(ctx, reportID)
		if err != nil {
			return nil, err
		}
		current, err := conversion.ReportFromStorage(rec)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Bool("scrub.noop", true))
		return alreadyScrubbed(current, actorID)
	}

	s.metrics.RecordScrubbed(ctx, actorID)
	s.logger.Info(ctx, "Scrubbed report", map[string]interface{}{
		"report_id": reportID,
		"actor_id":  actorID,
	})
	return report, nil
}

// alreadyScrubbed is a no-op for the actor who scrubbed report and a CONFLICT for anyone else.
func alreadyScrubbed(report *models.Report, actorID string) (*models.Report, error) {
	if *report.ScrubbedBy == actorID {
		return report, nil
	}
	return nil, contextutils.WrapErrorf(contextutils.ErrConflict,
		"report %s was already scrubbed by %s", report.ID, *report.ScrubbedBy)
}

// retentionCutoff is the creation time before which unscrubbed reports expire.
func (s *ScrubService) retentionCutoff() time.Time {
	return s.now().UTC().Add(-s.retention)
}

// GetExpiringReports lists unscrubbed reports created before the retention cutoff.
func (s *ScrubService) GetExpiringReports(ctx context.Context) (result0 []*models.Report, err error) {
	cutoff := s.retentionCutoff()
	ctx, span := observability.TraceScrubFunction(ctx, "get_expiring_reports",
		attribute.String("retention.cutoff", cutoff.Format(time.RFC3339)))
	defer observability.FinishSpan(span, &err)

	recs, err := s.store.ListUnscrubbedReportsBefore(ctx, cutoff)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list expiring reports")
	}
	reports := make([]*models.Report, 0, len(recs))
	for _, rec := range recs {
		report, err := conversion.ReportFromStorage(rec)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	span.SetAttributes(observability.AttributeCount(len(reports)))
	return reports, nil
}

// SweepExpiring scrubs every expiring report as actorID and returns how many
// it scrubbed. Reports that fail are logged and skipped; the first failure is
// returned alongside the count once the sweep finishes.
func (s *ScrubService) SweepExpiring(ctx context.Context, actorID string) (result0 int, err error) {
	ctx, span := observability.TraceScrubFunction(ctx, "sweep_expiring", observability.AttributeActor(actorID))
	defer observability.FinishSpan(span, &err)

	if !models.IsValidScrubberID(actorID) {
		return 0, contextutils.NewValidationError("scrubbed_by", "scrubbed_by user id %q is invalid", actorID)
	}

	release, acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		return 0, contextutils.WrapError(contextutils.ErrSweepInProgress, "another retention sweep is running")
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn(ctx, "Failed to release sweep lock", map[string]interface{}{"error": relErr.Error()})
		}
	}()

	recs, err := s.store.ListUnscrubbedReportsBefore(ctx, s.retentionCutoff())
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to list expiring reports")
	}

	scrubbed, failed := 0, 0
	var firstErr error
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return scrubbed, contextutils.WrapError(err, "retention sweep cancelled")
		}
		if _, err := s.ScrubReport(ctx, rec.ID, actorID); err != nil {
			if contextutils.GetErrorCode(err) == contextutils.ErrorCodeConflict {
				// Scrubbed by a moderator after we listed it.
				continue
			}
			failed++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error(ctx, "Failed to scrub expiring report", err, map[string]interface{}{"report_id": rec.ID})
			continue
		}
		scrubbed++
	}

	span.SetAttributes(
		observability.AttributeCount(scrubbed),
		attribute.Int("sweep.failed", failed),
	)
	s.logger.Info(ctx, "Retention sweep finished", map[string]interface{}{
		"candidates": len(recs),
		"scrubbed":   scrubbed,
		"failed":     failed,
	})
	if firstErr != nil {
		return scrubbed, contextutils.WrapErrorf(firstErr, "%d of %d expiring reports failed to scrub", failed, len(recs))
	}
	return scrubbed, nil
}
