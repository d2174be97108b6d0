package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxStatsTxRetries bounds retries of a stats transaction that lost a race.
const DefaultMaxStatsTxRetries = 5

// Postgres error codes the store reacts to.
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

const reportColumns = `id, platform, scrubbed_by, ticket_id, submitted_on, local_timezone_offset_hrs,
	report_type, category, platform_version, device_country_locale_code, android_device_model,
	android_sdk_version, entry_point, entry_point_topic_id, entry_point_story_id,
	entry_point_exploration_id, entry_point_subtopic_id, text_language_code, audio_language_code,
	android_report_info, android_report_info_schema_version, web_report_info,
	web_report_info_schema_version, created_on, last_updated`

const ticketColumns = `id, ticket_name, platform, github_issue_repo_name, github_issue_number,
	archived, newest_report_timestamp, report_ids, created_on, last_updated`

const statsColumns = `id, platform, ticket_id, stats_tracking_date, total_reports_submitted,
	daily_param_stats_schema_version, daily_param_stats, created_on, last_updated`

// filterExpressions maps each filter field to the SQL expression whose distinct values it lists.
var filterExpressions = map[models.FilterField]string{
	models.FilterFieldReportType:              "report_type",
	models.FilterFieldPlatform:                "platform",
	models.FilterFieldEntryPoint:              "entry_point",
	models.FilterFieldSubmittedOn:             "to_char(submitted_on AT TIME ZONE 'UTC', 'YYYY-MM-DD')",
	models.FilterFieldAndroidDeviceModel:      "android_device_model",
	models.FilterFieldAndroidSDKVersion:       "android_sdk_version::text",
	models.FilterFieldTextLanguageCode:        "text_language_code",
	models.FilterFieldAudioLanguageCode:       "audio_language_code",
	models.FilterFieldPlatformVersion:         "platform_version",
	models.FilterFieldDeviceCountryLocaleCode: "device_country_locale_code",
}

// PostgresStore implements Store on the app_feedback_* tables.
type PostgresStore struct {
	db              *sql.DB
	logger          *observability.Logger
	metrics         *observability.ReportMetrics
	maxStatsRetries int
}

// NewPostgresStore creates a Postgres-backed store. metrics may be nil.
func NewPostgresStore(db *sql.DB, logger *observability.Logger, metrics *observability.ReportMetrics, maxStatsRetries int) *PostgresStore {
	if db == nil {
		panic("database cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if maxStatsRetries <= 0 {
		maxStatsRetries = DefaultMaxStatsTxRetries
	}
	return &PostgresStore{db: db, logger: logger, metrics: metrics, maxStatsRetries: maxStatsRetries}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.ReportRecord, error) {
	rec := &models.ReportRecord{}
	var androidInfo, webInfo []byte
	err := row.Scan(
		&rec.ID, &rec.Platform, &rec.ScrubbedBy, &rec.TicketID, &rec.SubmittedOn, &rec.LocalTimezoneOffsetHrs,
		&rec.ReportType, &rec.Category, &rec.PlatformVersion, &rec.DeviceCountryLocaleCode, &rec.AndroidDeviceModel,
		&rec.AndroidSDKVersion, &rec.EntryPoint, &rec.EntryPointTopicID, &rec.EntryPointStoryID,
		&rec.EntryPointExplorationID, &rec.EntryPointSubtopicID, &rec.TextLanguageCode, &rec.AudioLanguageCode,
		&androidInfo, &rec.AndroidReportInfoSchemaVersion, &webInfo,
		&rec.WebReportInfoSchemaVersion, &rec.CreatedOn, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	rec.AndroidReportInfo = androidInfo
	rec.WebReportInfo = webInfo
	return rec, nil
}

func scanTicket(row rowScanner) (*models.TicketRecord, error) {
	rec := &models.TicketRecord{}
	err := row.Scan(
		&rec.ID, &rec.TicketName, &rec.Platform, &rec.GithubIssueRepoName, &rec.GithubIssueNumber,
		&rec.Archived, &rec.NewestReportTimestamp, pq.Array(&rec.ReportIDs), &rec.CreatedOn, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if rec.ReportIDs == nil {
		rec.ReportIDs = []string{}
	}
	return rec, nil
}

func scanStats(row rowScanner) (*models.StatsRecord, error) {
	rec := &models.StatsRecord{}
	var paramStats []byte
	err := row.Scan(
		&rec.ID, &rec.Platform, &rec.TicketID, &rec.StatsTrackingDate, &rec.TotalReportsSubmitted,
		&rec.DailyParamStatsSchemaVersion, &paramStats, &rec.CreatedOn, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	rec.DailyParamStats = paramStats
	return rec, nil
}

// jsonArg passes a JSON blob as text so jsonb columns accept it; empty blobs are NULL.
func jsonArg(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// GetReport fetches one report row.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (result0 *models.ReportRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_report", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + reportColumns + ` FROM app_feedback_reports WHERE id = $1`
	rec, err := scanReport(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report")
	}
	return rec, nil
}

// GetReports fetches rows in the order of ids; missing ids yield nil entries.
func (s *PostgresStore) GetReports(ctx context.Context, ids []string) (result0 []*models.ReportRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_reports", observability.AttributeCount(len(ids)))
	defer observability.FinishSpan(span, &err)

	result := make([]*models.ReportRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + reportColumns + ` FROM app_feedback_reports WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get reports")
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*models.ReportRecord, len(ids))
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan report")
		}
		byID[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate reports")
	}

	for i, id := range ids {
		if rec, ok := byID[id]; ok {
			result[i] = rec.Clone()
		}
	}
	return result, nil
}

// ReportExists reports whether a report row with id exists.
func (s *PostgresStore) ReportExists(ctx context.Context, id string) (result0 bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "report_exists", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM app_feedback_reports WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to check report existence")
	}
	return exists, nil
}

// CreateReport inserts a new report row.
func (s *PostgresStore) CreateReport(ctx context.Context, rec *models.ReportRecord) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "create_report",
		observability.AttributeReportID(rec.ID),
		observability.AttributePlatform(rec.Platform),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO app_feedback_reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, NOW())
	`
	createdOn := rec.CreatedOn
	if createdOn.IsZero() {
		createdOn = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Platform, rec.ScrubbedBy, rec.TicketID, rec.SubmittedOn, rec.LocalTimezoneOffsetHrs,
		rec.ReportType, rec.Category, rec.PlatformVersion, rec.DeviceCountryLocaleCode, rec.AndroidDeviceModel,
		rec.AndroidSDKVersion, rec.EntryPoint, rec.EntryPointTopicID, rec.EntryPointStoryID,
		rec.EntryPointExplorationID, rec.EntryPointSubtopicID, rec.TextLanguageCode, rec.AudioLanguageCode,
		jsonArg(rec.AndroidReportInfo), rec.AndroidReportInfoSchemaVersion, jsonArg(rec.WebReportInfo),
		rec.WebReportInfoSchemaVersion, createdOn,
	)
	if err != nil {
		return translateWriteError(err, "report", rec.ID)
	}
	return nil
}

// SetReportTicket updates ticket_id only if it still holds from, so two
// concurrent moves of one report cannot both win.
func (s *PostgresStore) SetReportTicket(ctx context.Context, id string, from, to sql.NullString) (result0 bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "set_report_ticket", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	query := `
		UPDATE app_feedback_reports
		SET ticket_id = $3, last_updated = NOW()
		WHERE id = $1 AND ticket_id IS NOT DISTINCT FROM $2
	`
	res, err := s.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, translateWriteError(err, "report", id)
	}
	changed, err := s.changedOrMissing(ctx, res, id)
	span.SetAttributes(attribute.Bool("report.changed", changed))
	return changed, err
}

// SaveScrubbedReport writes the redacted state only over an unscrubbed row.
// The ticket column is left alone.
func (s *PostgresStore) SaveScrubbedReport(ctx context.Context, rec *models.ReportRecord) (result0 bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "save_scrubbed_report", observability.AttributeReportID(rec.ID))
	defer observability.FinishSpan(span, &err)

	query := `
		UPDATE app_feedback_reports
		SET scrubbed_by = $2, android_report_info = $3, android_report_info_schema_version = $4,
			web_report_info = $5, web_report_info_schema_version = $6, last_updated = NOW()
		WHERE id = $1 AND scrubbed_by IS NULL
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ScrubbedBy, jsonArg(rec.AndroidReportInfo), rec.AndroidReportInfoSchemaVersion,
		jsonArg(rec.WebReportInfo), rec.WebReportInfoSchemaVersion,
	)
	if err != nil {
		return false, translateWriteError(err, "report", rec.ID)
	}
	changed, err := s.changedOrMissing(ctx, res, rec.ID)
	span.SetAttributes(attribute.Bool("report.changed", changed))
	return changed, err
}

// changedOrMissing tells a conditional update that matched no row apart from
// one whose report does not exist.
func (s *PostgresStore) changedOrMissing(ctx context.Context, res sql.Result, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, contextutils.WrapError(err, "failed to get rows affected")
	}
	if n > 0 {
		return true, nil
	}
	exists, err := s.ReportExists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "report %s not found", id)
	}
	return false, nil
}

// ListUnscrubbedReportsBefore returns unscrubbed reports created before cutoff, oldest first.
func (s *PostgresStore) ListUnscrubbedReportsBefore(ctx context.Context, cutoff time.Time) (result0 []*models.ReportRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_unscrubbed_reports_before",
		attribute.String("retention.cutoff", cutoff.UTC().Format(time.RFC3339)))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + reportColumns + ` FROM app_feedback_reports
		WHERE scrubbed_by IS NULL AND created_on < $1
		ORDER BY created_on, id`
	rows, err := s.db.QueryContext(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list expiring reports")
	}
	defer func() { _ = rows.Close() }()

	var result []*models.ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan report")
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate expiring reports")
	}
	span.SetAttributes(observability.AttributeCount(len(result)))
	return result, nil
}

// DistinctValues lists the distinct stored values of a filter field.
func (s *PostgresStore) DistinctValues(ctx context.Context, field models.FilterField) (result0 []string, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "distinct_values", attribute.String("filter.field", string(field)))
	defer observability.FinishSpan(span, &err)

	expr, ok := filterExpressions[field]
	if !ok {
		return nil, contextutils.NewInvalidInputError("filter_field", field, "not a filterable field")
	}
	query := fmt.Sprintf(`SELECT DISTINCT %s AS value FROM app_feedback_reports WHERE %s IS NOT NULL ORDER BY value`, expr, expr)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list values of %s", field)
	}
	defer func() { _ = rows.Close() }()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan filter value")
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate filter values")
	}
	return values, nil
}

// GetTicket fetches one ticket row.
func (s *PostgresStore) GetTicket(ctx context.Context, id string) (result0 *models.TicketRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_ticket", observability.AttributeTicketID(id))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + ticketColumns + ` FROM app_feedback_report_tickets WHERE id = $1`
	rec, err := scanTicket(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "ticket %s not found", id)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get ticket")
	}
	return rec, nil
}

// CreateTicket inserts a new ticket row.
func (s *PostgresStore) CreateTicket(ctx context.Context, rec *models.TicketRecord) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "create_ticket", observability.AttributeTicketID(rec.ID))
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO app_feedback_report_tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.TicketName, rec.Platform, rec.GithubIssueRepoName, rec.GithubIssueNumber,
		rec.Archived, rec.NewestReportTimestamp, pq.Array(nonNilIDs(rec.ReportIDs)),
	)
	if err != nil {
		return translateWriteError(err, "ticket", rec.ID)
	}
	return nil
}

// ModifyTicket locks the ticket row, lets fn mutate it and writes it back in one transaction.
func (s *PostgresStore) ModifyTicket(ctx context.Context, id string, fn TicketUpdateFunc) (result0 *models.TicketRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "modify_ticket", observability.AttributeTicketID(id))
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin ticket transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + ticketColumns + ` FROM app_feedback_report_tickets WHERE id = $1 FOR UPDATE`
	rec, err := scanTicket(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "ticket %s not found", id)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to lock ticket")
	}

	if err := fn(rec); err != nil {
		return nil, err
	}

	update := `
		UPDATE app_feedback_report_tickets
		SET ticket_name = $2, github_issue_repo_name = $3, github_issue_number = $4, archived = $5,
			newest_report_timestamp = $6, report_ids = $7, last_updated = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		id, rec.TicketName, rec.GithubIssueRepoName, rec.GithubIssueNumber, rec.Archived,
		rec.NewestReportTimestamp, pq.Array(nonNilIDs(rec.ReportIDs)),
	); err != nil {
		return nil, translateWriteError(err, "ticket", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit ticket transaction")
	}
	rec.ID = id
	return rec, nil
}

// ListTickets returns tickets with the most recently reported first.
func (s *PostgresStore) ListTickets(ctx context.Context, includeArchived bool) (result0 []*models.TicketRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_tickets", attribute.Bool("tickets.include_archived", includeArchived))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + ticketColumns + ` FROM app_feedback_report_tickets
		WHERE $1 OR NOT archived
		ORDER BY newest_report_timestamp DESC NULLS LAST, id`
	rows, err := s.db.QueryContext(ctx, query, includeArchived)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list tickets")
	}
	defer func() { _ = rows.Close() }()

	var result []*models.TicketRecord
	for rows.Next() {
		rec, err := scanTicket(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan ticket")
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate tickets")
	}
	return result, nil
}

// GetStats fetches one stats row.
func (s *PostgresStore) GetStats(ctx context.Context, id string) (result0 *models.StatsRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_stats", observability.AttributeStatsID(id))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + statsColumns + ` FROM app_feedback_report_stats WHERE id = $1`
	rec, err := scanStats(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "stats row %s not found", id)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get stats")
	}
	return rec, nil
}

// ListStatsForTicket returns every daily row of a ticket, oldest first.
func (s *PostgresStore) ListStatsForTicket(ctx context.Context, ticketID string) (result0 []*models.StatsRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_stats_for_ticket", observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + statsColumns + ` FROM app_feedback_report_stats WHERE ticket_id = $1 ORDER BY stats_tracking_date, id`
	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list ticket stats")
	}
	defer func() { _ = rows.Close() }()

	var result []*models.StatsRecord
	for rows.Next() {
		rec, err := scanStats(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan stats")
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate ticket stats")
	}
	return result, nil
}

// UpdateStatsInTx locks the row with SELECT ... FOR UPDATE, applies fn and
// writes the result in the same transaction. Serialization failures,
// deadlocks and insert races are retried up to the configured budget.
func (s *PostgresStore) UpdateStatsInTx(ctx context.Context, id string, fn StatsUpdateFunc) (result0 *models.StatsRecord, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "update_stats_in_tx", observability.AttributeStatsID(id))
	defer observability.FinishSpan(span, &err)

	var lastErr error
	for attempt := 1; attempt <= s.maxStatsRetries; attempt++ {
		rec, err := s.updateStatsOnce(ctx, id, fn)
		if err == nil {
			span.SetAttributes(attribute.Int("stats.attempts", attempt))
			return rec, nil
		}
		if !isRetryableTxError(err) {
			return nil, err
		}
		lastErr = err
		s.metrics.RecordStatsTxRetry(ctx)
		s.logger.Warn(ctx, "Retrying stats transaction", map[string]interface{}{
			"stats_id": id,
			"attempt":  attempt,
			"error":    err.Error(),
		})
		if ctx.Err() != nil {
			return nil, contextutils.WrapError(ctx.Err(), "stats transaction cancelled")
		}
	}
	return nil, &contextutils.AppError{
		Code:     contextutils.ErrorCodeDatabaseTransaction,
		Severity: contextutils.SeverityError,
		Message:  fmt.Sprintf("stats transaction on %s failed after %d attempts", id, s.maxStatsRetries),
		Details:  lastErr.Error(),
		Cause:    lastErr,
	}
}

func (s *PostgresStore) updateStatsOnce(ctx context.Context, id string, fn StatsUpdateFunc) (*models.StatsRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + statsColumns + ` FROM app_feedback_report_stats WHERE id = $1 FOR UPDATE`
	existing, err := scanStats(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		existing = nil
	} else if err != nil {
		return nil, err
	}

	updated, err := fn(existing.Clone())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return existing, nil
	}
	if updated.ID != id {
		return nil, contextutils.WrapErrorf(contextutils.ErrConsistencyViolation,
			"stats update for %s produced row %s", id, updated.ID)
	}

	if existing == nil {
		insert := `
			INSERT INTO app_feedback_report_stats (` + statsColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING
		`
		res, err := tx.ExecContext(ctx, insert,
			updated.ID, updated.Platform, updated.TicketID, updated.StatsTrackingDate, updated.TotalReportsSubmitted,
			updated.DailyParamStatsSchemaVersion, jsonArg(updated.DailyParamStats),
		)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, err
		} else if n == 0 {
			return nil, errStatsInsertRace
		}
	} else {
		update := `
			UPDATE app_feedback_report_stats
			SET total_reports_submitted = $2, daily_param_stats_schema_version = $3, daily_param_stats = $4,
				last_updated = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, update,
			updated.ID, updated.TotalReportsSubmitted, updated.DailyParamStatsSchemaVersion, jsonArg(updated.DailyParamStats),
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func isRetryableTxError(err error) bool {
	if errors.Is(err, errStatsInsertRace) {
		return true
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

// translateWriteError maps constraint violations to the AppError taxonomy.
func translateWriteError(err error, kind, id string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			return contextutils.WrapErrorf(contextutils.ErrRecordExists, "%s %s already exists", kind, id)
		case pqForeignKeyViolation:
			return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "%s %s references a missing record: %s", kind, id, pqErr.Message)
		}
	}
	return contextutils.WrapErrorf(err, "failed to write %s %s", kind, id)
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ Store = (*PostgresStore)(nil)

