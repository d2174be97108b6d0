package store

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"sync"
	"time"

	"appfeedback/internal/models"
	contextutils "appfeedback/internal/utils"
)

// MemoryStore is an in-process Store for tests and single-node tooling.
// Every method copies records in and out. Each table has its own lock and no
// method holds two of them at once, so update callbacks may read other tables.
type MemoryStore struct {
	reportsMu sync.Mutex
	reports   map[string]*models.ReportRecord
	ticketsMu sync.Mutex
	tickets   map[string]*models.TicketRecord
	statsMu   sync.Mutex
	stats     map[string]*models.StatsRecord
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*models.ReportRecord),
		tickets: make(map[string]*models.TicketRecord),
		stats:   make(map[string]*models.StatsRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) GetReport(_ context.Context, id string) (*models.ReportRecord, error) {
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	rec, ok := m.reports[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) GetReports(_ context.Context, ids []string) ([]*models.ReportRecord, error) {
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	result := make([]*models.ReportRecord, len(ids))
	for i, id := range ids {
		result[i] = m.reports[id].Clone()
	}
	return result, nil
}

func (m *MemoryStore) ReportExists(_ context.Context, id string) (bool, error) {
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	_, ok := m.reports[id]
	return ok, nil
}

func (m *MemoryStore) CreateReport(_ context.Context, rec *models.ReportRecord) error {
	if err := m.requireTicket(rec.TicketID); err != nil {
		return err
	}
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	if _, ok := m.reports[rec.ID]; ok {
		return contextutils.WrapErrorf(contextutils.ErrRecordExists, "report %s already exists", rec.ID)
	}
	stored := rec.Clone()
	now := m.now()
	if stored.CreatedOn.IsZero() {
		stored.CreatedOn = now
	}
	stored.LastUpdated = now
	m.reports[rec.ID] = stored
	return nil
}

func (m *MemoryStore) SetReportTicket(_ context.Context, id string, from, to sql.NullString) (bool, error) {
	if err := m.requireTicket(to); err != nil {
		return false, err
	}
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	current, ok := m.reports[id]
	if !ok {
		return false, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	if current.TicketID.Valid != from.Valid || (from.Valid && current.TicketID.String != from.String) {
		return false, nil
	}
	updated := current.Clone()
	updated.TicketID = to
	updated.LastUpdated = m.now()
	m.reports[id] = updated
	return true, nil
}

func (m *MemoryStore) SaveScrubbedReport(_ context.Context, rec *models.ReportRecord) (bool, error) {
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	current, ok := m.reports[rec.ID]
	if !ok {
		return false, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", rec.ID)
	}
	if current.ScrubbedBy.Valid {
		return false, nil
	}
	updated := current.Clone()
	updated.ScrubbedBy = rec.ScrubbedBy
	updated.AndroidReportInfo = append([]byte(nil), rec.AndroidReportInfo...)
	updated.AndroidReportInfoSchemaVersion = rec.AndroidReportInfoSchemaVersion
	updated.WebReportInfo = append([]byte(nil), rec.WebReportInfo...)
	updated.WebReportInfoSchemaVersion = rec.WebReportInfoSchemaVersion
	updated.LastUpdated = m.now()
	m.reports[rec.ID] = updated
	return true, nil
}

// requireTicket mirrors the reports.ticket_id foreign key. Tickets are never
// deleted, so checking before taking the reports lock is safe.
func (m *MemoryStore) requireTicket(ticketID sql.NullString) error {
	if !ticketID.Valid {
		return nil
	}
	m.ticketsMu.Lock()
	defer m.ticketsMu.Unlock()
	if _, ok := m.tickets[ticketID.String]; !ok {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "ticket %s not found", ticketID.String)
	}
	return nil
}

func (m *MemoryStore) ListUnscrubbedReportsBefore(_ context.Context, cutoff time.Time) ([]*models.ReportRecord, error) {
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	var result []*models.ReportRecord
	for _, rec := range m.reports {
		if !rec.ScrubbedBy.Valid && rec.CreatedOn.Before(cutoff) {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedOn.Equal(result[j].CreatedOn) {
			return result[i].CreatedOn.Before(result[j].CreatedOn)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryStore) DistinctValues(_ context.Context, field models.FilterField) ([]string, error) {
	m.reportsMu.Lock()
	defer m.reportsMu.Unlock()
	seen := map[string]bool{}
	for _, rec := range m.reports {
		v, ok := filterValue(rec, field)
		if !ok {
			continue
		}
		seen[v] = true
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func filterValue(rec *models.ReportRecord, field models.FilterField) (string, bool) {
	switch field {
	case models.FilterFieldReportType:
		return rec.ReportType, true
	case models.FilterFieldPlatform:
		return rec.Platform, true
	case models.FilterFieldEntryPoint:
		return rec.EntryPoint, true
	case models.FilterFieldSubmittedOn:
		return contextutils.FormatISODate(rec.SubmittedOn), true
	case models.FilterFieldAndroidDeviceModel:
		return rec.AndroidDeviceModel.String, rec.AndroidDeviceModel.Valid
	case models.FilterFieldAndroidSDKVersion:
		return strconv.Itoa(int(rec.AndroidSDKVersion.Int32)), rec.AndroidSDKVersion.Valid
	case models.FilterFieldTextLanguageCode:
		return rec.TextLanguageCode, true
	case models.FilterFieldAudioLanguageCode:
		return rec.AudioLanguageCode, true
	case models.FilterFieldPlatformVersion:
		return rec.PlatformVersion, true
	case models.FilterFieldDeviceCountryLocaleCode:
		return rec.DeviceCountryLocaleCode.String, rec.DeviceCountryLocaleCode.Valid
	}
	return "", false
}

func (m *MemoryStore) GetTicket(_ context.Context, id string) (*models.TicketRecord, error) {
	m.ticketsMu.Lock()
	defer m.ticketsMu.Unlock()
	rec, ok := m.tickets[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "ticket %s not found", id)
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) CreateTicket(_ context.Context, rec *models.TicketRecord) error {
	m.ticketsMu.Lock()
	defer m.ticketsMu.Unlock()
	if _, ok := m.tickets[rec.ID]; ok {
		return contextutils.WrapErrorf(contextutils.ErrRecordExists, "ticket %s already exists", rec.ID)
	}
	stored := rec.Clone()
	if stored.ReportIDs == nil {
		stored.ReportIDs = []string{}
	}
	now := m.now()
	stored.CreatedOn, stored.LastUpdated = now, now
	m.tickets[rec.ID] = stored
	return nil
}

// ModifyTicket holds the tickets lock while fn runs. The id, platform and
// creation time cannot be changed by fn.
func (m *MemoryStore) ModifyTicket(_ context.Context, id string, fn TicketUpdateFunc) (*models.TicketRecord, error) {
	m.ticketsMu.Lock()
	defer m.ticketsMu.Unlock()
	current, ok := m.tickets[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "ticket %s not found", id)
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if working.ReportIDs == nil {
		working.ReportIDs = []string{}
	}
	working.ID = current.ID
	working.Platform = current.Platform
	working.CreatedOn = current.CreatedOn
	working.LastUpdated = m.now()
	m.tickets[id] = working
	return working.Clone(), nil
}

func (m *MemoryStore) ListTickets(_ context.Context, includeArchived bool) ([]*models.TicketRecord, error) {
	m.ticketsMu.Lock()
	defer m.ticketsMu.Unlock()
	var result []*models.TicketRecord
	for _, rec := range m.tickets {
		if rec.Archived && !includeArchived {
			continue
		}
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].NewestReportTimestamp, result[j].NewestReportTimestamp
		switch {
		case a.Valid && b.Valid && !a.Time.Equal(b.Time):
			return a.Time.After(b.Time)
		case a.Valid != b.Valid:
			return a.Valid
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryStore) GetStats(_ context.Context, id string) (*models.StatsRecord, error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	rec, ok := m.stats[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "stats row %s not found", id)
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) ListStatsForTicket(_ context.Context, ticketID string) ([]*models.StatsRecord, error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	var result []*models.StatsRecord
	for _, rec := range m.stats {
		if rec.TicketID == ticketID {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StatsTrackingDate.Equal(result[j].StatsTrackingDate) {
			return result[i].StatsTrackingDate.Before(result[j].StatsTrackingDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// UpdateStatsInTx holds the stats lock for the whole read-modify-write.
func (m *MemoryStore) UpdateStatsInTx(_ context.Context, id string, fn StatsUpdateFunc) (*models.StatsRecord, error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	existing := m.stats[id]
	updated, err := fn(existing.Clone())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return existing.Clone(), nil
	}
	if updated.ID != id {
		return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
			"stats update for %s produced row %s", id, updated.ID)
	}
	stored := updated.Clone()
	now := m.now()
	if existing != nil {
		stored.CreatedOn = existing.CreatedOn
	} else {
		stored.CreatedOn = now
	}
	stored.LastUpdated = now
	m.stats[id] = stored
	return stored.Clone(), nil
}

var _ Store = (*MemoryStore)(nil)
