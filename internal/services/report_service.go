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
	"golang.org/x/sync/errgroup"
)

// ReportServiceInterface defines ingestion, reads and ticket reassignment of reports
type ReportServiceInterface interface {
	// Ingest converts, validates, stores and counts a raw client submission
	Ingest(ctx context.Context, payload []byte) (string, error)
	// GetReports fetches reports positionally; unknown ids yield nil entries
	GetReports(ctx context.Context, ids []string) ([]*models.Report, error)
	// GetFilterOptions lists the distinct stored values of every filter field
	GetFilterOptions(ctx context.Context) ([]models.Filter, error)
	// Reassign moves a report to another ticket, or off its ticket when newTicketID is nil
	Reassign(ctx context.Context, reportID string, newTicketID *string) (*models.Report, error)
}

// ReportService owns the report lifecycle apart from scrubbing.
type ReportService struct {
	store     store.Store
	converter *conversion.Converter
	stats     StatsServiceInterface
	refs      models.ContentReferences
	logger    *observability.Logger
	metrics   *observability.ReportMetrics
}

// NewReportService creates a new ReportService. refs may be nil, in which
// case lesson player cross references are not checked against the catalog.
func NewReportService(st store.Store, converter *conversion.Converter, stats StatsServiceInterface, refs models.ContentReferences, logger *observability.Logger, metrics *observability.ReportMetrics) *ReportService {
	if st == nil {
		panic("NewReportService: store is nil")
	}
	if converter == nil {
		panic("NewReportService: converter is nil")
	}
	if stats == nil {
		panic("NewReportService: stats service is nil")
	}
	if logger == nil {
		panic("NewReportService: logger is nil")
	}
	return &ReportService{store: st, converter: converter, stats: stats, refs: refs, logger: logger, metrics: metrics}
}

// Ingest stores a new report and counts it. The report is persisted before
// its stats are applied; a failure in between leaves it uncounted and is
// logged as an error.
func (s *ReportService) Ingest(ctx context.Context, payload []byte) (result0 string, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "ingest", attribute.Int("payload.bytes", len(payload)))
	defer observability.FinishSpan(span, &err)

	report, err := s.converter.ReportFromSubmission(ctx, payload)
	if err != nil {
		return "", err
	}
	span.SetAttributes(observability.AttributeReportID(report.ID), observability.AttributePlatform(string(report.Platform)))

	if err := report.Validate(); err != nil {
		return "", err
	}
	if err := s.validateReferences(ctx, report); err != nil {
		return "", err
	}

	rec, err := conversion.ReportToStorage(report)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateReport(ctx, rec); err != nil {
		if contextutils.GetErrorCode(err) != contextutils.ErrorCodeRecordExists {
			return "", contextutils.WrapErrorf(err, "failed to store report %s", report.ID)
		}
		// Lost an id race with a concurrent ingest: draw a fresh id once.
		id, genErr := s.converter.GenerateReportID(ctx, report.Platform, report.SubmittedOn)
		if genErr != nil {
			return "", genErr
		}
		report.ID, rec.ID = id, id
		if err := s.store.CreateReport(ctx, rec); err != nil {
			return "", contextutils.WrapErrorf(err, "failed to store report %s", report.ID)
		}
	}

	if err := s.stats.RecordIncomingReport(ctx, report); err != nil {
		s.logger.Error(ctx, "Report stored but not counted in stats", err, map[string]interface{}{
			"report_id": report.ID,
		})
		return "", err
	}

	s.metrics.RecordIngested(ctx, string(report.Platform))
	s.logger.Info(ctx, "Ingested report", map[string]interface{}{
		"report_id":   report.ID,
		"report_type": string(report.UserSuppliedFeedback.ReportType),
		"category":    string(report.UserSuppliedFeedback.Category),
	})
	return report.ID, nil
}

func (s *ReportService) validateReferences(ctx context.Context, report *models.Report) error {
	if s.refs == nil {
		if _, ok := report.AppContext.GetEntryPoint().(models.LessonPlayerEntryPoint); ok {
			s.logger.Warn(ctx, "No content catalog configured, skipping exploration check", map[string]interface{}{
				"report_id": report.ID,
			})
		}
		return nil
	}
	return report.ValidateReferences(ctx, s.refs)
}

// GetReports fetches reports in the order of ids.
func (s *ReportService) GetReports(ctx context.Context, ids []string) (result0 []*models.Report, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "get_reports", observability.AttributeCount(len(ids)))
	defer observability.FinishSpan(span, &err)

	recs, err := s.store.GetReports(ctx, ids)
	if err != nil {
		return nil, err
	}
	reports := make([]*models.Report, len(recs))
	for i, rec := range recs {
		if rec == nil {
			continue
		}
		report, err := conversion.ReportFromStorage(rec)
		if err != nil {
			return nil, err
		}
		reports[i] = report
	}
	return reports, nil
}

// GetFilterOptions queries the distinct values of every filter field concurrently.
func (s *ReportService) GetFilterOptions(ctx context.Context) (result0 []models.Filter, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "get_filter_options")
	defer observability.FinishSpan(span, &err)

	filters := make([]models.Filter, len(models.FilterFields))
	g, gctx := errgroup.WithContext(ctx)
	for i, field := range models.FilterFields {
		g.Go(func() error {
			values, err := s.store.DistinctValues(gctx, field)
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to list options of %s", field)
			}
			filters[i] = models.Filter{FilterName: field, FilterOptions: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// Reassign moves a report between tickets. The report row claims the move
// before any counter changes:
//
//  1. the target ticket must exist; nothing is touched otherwise
//  2. a report already on the target is left alone
//  3. the report's ticket is switched only if it still holds the ticket read
//     in step 1; losing that race to another move is a no-op when the winner
//     picked the same target and a CONFLICT otherwise
//  4. -1 on the old bucket, then the old ticket drops the report and
//     recomputes its newest report watermark
//  5. +1 on the new bucket, then the new ticket adds the report
//
// Each step is its own transaction. A crash after step 3 leaves the report
// counted in its old bucket; a retry finds it on the target and changes
// nothing, so a report is never counted twice.
func (s *ReportService) Reassign(ctx context.Context, reportID string, newTicketID *string) (result0 *models.Report, err error) {
	attrs := []attribute.KeyValue{observability.AttributeReportID(reportID)}
	if newTicketID != nil {
		attrs = append(attrs, observability.AttributeTicketID(*newTicketID))
	}
	ctx, span := observability.TraceTicketFunction(ctx, "reassign", attrs...)
	defer observability.FinishSpan(span, &err)

	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Platform == models.PlatformWeb {
		return nil, contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web reports cannot be reassigned yet")
	}

	if newTicketID != nil {
		if models.IsPseudoTicketID(*newTicketID) {
			return nil, contextutils.NewValidationError("ticket_id", "%s is a stats bucket, not a ticket", *newTicketID)
		}
		if _, err := s.store.GetTicket(ctx, *newTicketID); err != nil {
			return nil, err
		}
	}
	if sameTicket(report.TicketID, newTicketID) {
		span.SetAttributes(attribute.Bool("reassign.noop", true))
		return report, nil
	}
	oldTicketID := report.TicketID

	moved, err := s.store.SetReportTicket(ctx, reportID, conversion.NullTicketID(oldTicketID), conversion.NullTicketID(newTicketID))
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to save ticket of report %s", reportID)
	}
	if !moved {
		current, err := s.loadReport(ctx, reportID)
		if err != nil {
			return nil, err
		}
		if sameTicket(current.TicketID, newTicketID) {
			span.SetAttributes(attribute.Bool("reassign.noop", true))
			return current, nil
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict,
			"report %s was moved to %s while being reassigned", reportID, StatsBucket(current.TicketID))
	}
	report.TicketID = newTicketID

	if _, err := s.stats.ApplyDelta(ctx, StatsBucket(oldTicketID), report, -1); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to remove report %s from old stats", reportID)
	}
	if oldTicketID != nil {
		if err := s.removeFromTicket(ctx, *oldTicketID, reportID); err != nil {
			return nil, err
		}
	}

	if _, err := s.stats.ApplyDelta(ctx, StatsBucket(newTicketID), report, 1); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to add report %s to new stats", reportID)
	}
	if newTicketID != nil {
		if _, err := s.store.ModifyTicket(ctx, *newTicketID, func(tr *models.TicketRecord) error {
			return updateTicketRecord(tr, func(t *models.Ticket) error {
				t.AddReport(reportID, report.SubmittedOn)
				return nil
			})
		}); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to add report %s to ticket %s", reportID, *newTicketID)
		}
	}

	s.metrics.RecordReassigned(ctx)
	s.logger.Info(ctx, "Reassigned report", map[string]interface{}{
		"report_id":     reportID,
		"old_ticket_id": StatsBucket(oldTicketID),
		"new_ticket_id": StatsBucket(newTicketID),
	})
	return report, nil
}

func (s *ReportService) loadReport(ctx context.Context, reportID string) (*models.Report, error) {
	rec, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return conversion.ReportFromStorage(rec)
}

// removeFromTicket drops reportID from a ticket and recomputes the newest
// report watermark from the remaining members.
func (s *ReportService) removeFromTicket(ctx context.Context, ticketID, reportID string) error {
	_, err := s.store.ModifyTicket(ctx, ticketID, func(tr *models.TicketRecord) error {
		return updateTicketRecord(tr, func(t *models.Ticket) error {
			t.RemoveReport(reportID)
			newest, err := s.newestSubmission(ctx, t.ReportIDs)
			if err != nil {
				return err
			}
			t.NewestReportTimestamp = newest
			return nil
		})
	})
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to remove report %s from ticket %s", reportID, ticketID)
	}
	return nil
}

// newestSubmission returns the latest submission time among ids, or nil when none resolve.
func (s *ReportService) newestSubmission(ctx context.Context, ids []string) (*time.Time, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	recs, err := s.store.GetReports(ctx, ids)
	if err != nil {
		return nil, err
	}
	var newest *time.Time
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if newest == nil || rec.SubmittedOn.After(*newest) {
			ts := rec.SubmittedOn.UTC()
			newest = &ts
		}
	}
	return newest, nil
}

// updateTicketRecord applies fn to the domain view of a locked ticket row and
// writes the mutable fields back.
func updateTicketRecord(tr *models.TicketRecord, fn func(t *models.Ticket) error) error {
	t, err := conversion.TicketFromStorage(tr)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	next := conversion.TicketToStorage(t)
	tr.TicketName = next.TicketName
	tr.GithubIssueRepoName = next.GithubIssueRepoName
	tr.GithubIssueNumber = next.GithubIssueNumber
	tr.Archived = next.Archived
	tr.NewestReportTimestamp = next.NewestReportTimestamp
	tr.ReportIDs = next.ReportIDs
	return nil
}

func sameTicket(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

