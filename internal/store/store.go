// Package store persists reports, tickets and daily stats rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"appfeedback/internal/models"
)

// StatsUpdateFunc computes the new state of a stats row from its current
// state, which is nil when the row does not exist yet. It receives a copy and
// may modify it. Returning an error aborts the update without writing.
type StatsUpdateFunc func(existing *models.StatsRecord) (*models.StatsRecord, error)

// TicketUpdateFunc mutates a locked ticket row in place. Returning an error
// aborts the update without writing.
type TicketUpdateFunc func(rec *models.TicketRecord) error

// Store is the storage engine the services run on. Lookups of a missing id
// return an error matching contextutils.ErrRecordNotFound.
type Store interface {
	// GetReport fetches one report row.
	GetReport(ctx context.Context, id string) (*models.ReportRecord, error)
	// GetReports fetches rows positionally; missing ids yield nil entries.
	GetReports(ctx context.Context, ids []string) ([]*models.ReportRecord, error)
	ReportExists(ctx context.Context, id string) (bool, error)
	// CreateReport inserts a new row, failing with contextutils.ErrRecordExists on a duplicate id.
	CreateReport(ctx context.Context, rec *models.ReportRecord) error
	// SetReportTicket moves a report to ticket to only while its stored ticket
	// is still from. It reports whether the row changed; a missing report is
	// ErrRecordNotFound.
	SetReportTicket(ctx context.Context, id string, from, to sql.NullString) (bool, error)
	// SaveScrubbedReport writes the scrubber and report info blobs of rec only
	// while the stored report is unscrubbed. It reports whether the row changed.
	SaveScrubbedReport(ctx context.Context, rec *models.ReportRecord) (bool, error)
	// ListUnscrubbedReportsBefore returns reports created before cutoff that nobody has scrubbed.
	ListUnscrubbedReportsBefore(ctx context.Context, cutoff time.Time) ([]*models.ReportRecord, error)
	// DistinctValues returns the sorted distinct non-null values stored for a filter field.
	DistinctValues(ctx context.Context, field models.FilterField) ([]string, error)

	GetTicket(ctx context.Context, id string) (*models.TicketRecord, error)
	CreateTicket(ctx context.Context, rec *models.TicketRecord) error
	// ModifyTicket applies fn to the ticket row under a row lock and writes
	// back its name, github link, archived flag, watermark and members.
	ModifyTicket(ctx context.Context, id string, fn TicketUpdateFunc) (*models.TicketRecord, error)
	// ListTickets returns tickets ordered by newest report first.
	ListTickets(ctx context.Context, includeArchived bool) ([]*models.TicketRecord, error)

	GetStats(ctx context.Context, id string) (*models.StatsRecord, error)
	// ListStatsForTicket returns every daily row of a ticket, oldest first.
	ListStatsForTicket(ctx context.Context, ticketID string) ([]*models.StatsRecord, error)
	// UpdateStatsInTx applies fn to exactly one stats row atomically with
	// respect to every other UpdateStatsInTx on the same id.
	UpdateStatsInTx(ctx context.Context, id string, fn StatsUpdateFunc) (*models.StatsRecord, error)
}

// errStatsInsertRace reports that another transaction created the stats row
// between our read and our insert. The update is retried.
var errStatsInsertRace = errors.New("stats row was created concurrently")
