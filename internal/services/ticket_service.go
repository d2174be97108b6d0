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

// TicketServiceInterface defines the ticket lifecycle operations
type TicketServiceInterface interface {
	// CreateTicket creates a ticket and reassigns the given reports into it
	CreateTicket(ctx context.Context, name string, platform models.Platform, reportIDs []string) (*models.Ticket, error)
	// RenameTicket changes a ticket's name; stats are unaffected
	RenameTicket(ctx context.Context, ticketID, name string) (*models.Ticket, error)
	// ArchiveTicket hides a ticket from the default listing
	ArchiveTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	// UnarchiveTicket restores an archived ticket
	UnarchiveTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	// GetTicket fetches one ticket
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	// ListTickets lists tickets with the most recently reported first
	ListTickets(ctx context.Context, includeArchived bool) ([]*models.Ticket, error)
}

// Reassigner moves reports between tickets.
type Reassigner interface {
	Reassign(ctx context.Context, reportID string, newTicketID *string) (*models.Report, error)
}

// TicketService manages tickets. Membership changes go through the
// Reassigner so stats follow every move.
type TicketService struct {
	store        store.Store
	reassigner   Reassigner
	logger       *observability.Logger
	now          func() time.Time
	randomSuffix func() string
}

// NewTicketService creates a new TicketService.
func NewTicketService(st store.Store, reassigner Reassigner, logger *observability.Logger) *TicketService {
	if st == nil {
		panic("NewTicketService: store is nil")
	}
	if reassigner == nil {
		panic("NewTicketService: reassigner is nil")
	}
	if logger == nil {
		panic("NewTicketService: logger is nil")
	}
	return &TicketService{
		store:        st,
		reassigner:   reassigner,
		logger:       logger,
		now:          time.Now,
		randomSuffix: conversion.RandomHexSuffix,
	}
}

// CreateTicket validates the name, platform and member ids, stores an empty
// ticket and then reassigns each member into it.
func (s *TicketService) CreateTicket(ctx context.Context, name string, platform models.Platform, reportIDs []string) (result0 *models.Ticket, err error) {
	ctx, span := observability.TraceTicketFunction(ctx, "create_ticket",
		observability.AttributePlatform(string(platform)),
		observability.AttributeCount(len(reportIDs)),
	)
	defer observability.FinishSpan(span, &err)

	createdOn := s.now().UTC()
	ticket := &models.Ticket{
		ID:        conversion.NewTicketID(name, createdOn, s.randomSuffix()),
		Name:      name,
		Platform:  platform,
		ReportIDs: []string{},
	}
	if err := ticket.Validate(); err != nil {
		return nil, err
	}
	if platform == models.PlatformWeb {
		return nil, contextutils.WrapError(contextutils.ErrUnsupportedPlatform, "web tickets are not supported yet")
	}
	members := &models.Ticket{ReportIDs: reportIDs}
	if err := members.RequireValidReportIDs(ctx, s.store); err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeTicketID(ticket.ID))

	if err := s.store.CreateTicket(ctx, conversion.TicketToStorage(ticket)); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to create ticket %s", ticket.ID)
	}
	for _, reportID := range reportIDs {
		if _, err := s.reassigner.Reassign(ctx, reportID, &ticket.ID); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to move report %s into ticket %s", reportID, ticket.ID)
		}
	}

	s.logger.Info(ctx, "Created ticket", map[string]interface{}{
		"ticket_id":    ticket.ID,
		"report_count": len(reportIDs),
	})
	return s.GetTicket(ctx, ticket.ID)
}

// RenameTicket changes the ticket name only.
func (s *TicketService) RenameTicket(ctx context.Context, ticketID, name string) (result0 *models.Ticket, err error) {
	ctx, span := observability.TraceTicketFunction(ctx, "rename_ticket", observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, &err)

	if err := models.RequireValidTicketName(name); err != nil {
		return nil, err
	}
	return s.modify(ctx, ticketID, func(t *models.Ticket) error {
		t.Name = name
		return nil
	})
}

// ArchiveTicket sets the archived flag.
func (s *TicketService) ArchiveTicket(ctx context.Context, ticketID string) (result0 *models.Ticket, err error) {
	return s.setArchived(ctx, ticketID, true)
}

// UnarchiveTicket clears the archived flag.
func (s *TicketService) UnarchiveTicket(ctx context.Context, ticketID string) (result0 *models.Ticket, err error) {
	return s.setArchived(ctx, ticketID, false)
}

func (s *TicketService) setArchived(ctx context.Context, ticketID string, archived bool) (result0 *models.Ticket, err error) {
	ctx, span := observability.TraceTicketFunction(ctx, "set_archived",
		observability.AttributeTicketID(ticketID),
		attribute.Bool("ticket.archived", archived),
	)
	defer observability.FinishSpan(span, &err)

	return s.modify(ctx, ticketID, func(t *models.Ticket) error {
		t.Archived = archived
		return nil
	})
}

func (s *TicketService) modify(ctx context.Context, ticketID string, fn func(t *models.Ticket) error) (*models.Ticket, error) {
	rec, err := s.store.ModifyTicket(ctx, ticketID, func(tr *models.TicketRecord) error {
		return updateTicketRecord(tr, fn)
	})
	if err != nil {
		return nil, err
	}
	return conversion.TicketFromStorage(rec)
}

// GetTicket fetches one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (result0 *models.Ticket, err error) {
	ctx, span := observability.TraceTicketFunction(ctx, "get_ticket", observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, &err)

	rec, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return conversion.TicketFromStorage(rec)
}

// ListTickets lists tickets, newest report first.
func (s *TicketService) ListTickets(ctx context.Context, includeArchived bool) (result0 []*models.Ticket, err error) {
	ctx, span := observability.TraceTicketFunction(ctx, "list_tickets", attribute.Bool("tickets.include_archived", includeArchived))
	defer observability.FinishSpan(span, &err)

	recs, err := s.store.ListTickets(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	tickets := make([]*models.Ticket, 0, len(recs))
	for _, rec := range recs {
		t, err := conversion.TicketFromStorage(rec)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}
