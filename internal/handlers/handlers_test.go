package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"appfeedback/internal/config"
	"appfeedback/internal/conversion"
	"appfeedback/internal/middleware"
	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"
	"appfeedback/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModeratorID = "uid_abcdefghijklmnopqrstuvwxyzabcdef"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.IsTest = true
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	st := store.NewMemoryStore()
	stats := services.NewStatsService(st, logger, nil)
	reports := services.NewReportService(st, conversion.NewConverter(st, cfg.Reports.MaxIDGenerationRetries, logger), stats, nil, logger, nil)
	return NewRouter(cfg, Services{
		Reports: reports,
		Tickets: services.NewTicketService(st, reports, logger),
		Stats:   stats,
		Scrub:   services.NewScrubService(st, nil, cfg.Reports.RetentionWindow(), logger, nil),
	}, logger)
}

func do(router *gin.Engine, method, path string, body interface{}, moderator bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if moderator {
		req.Header.Set(middleware.ModeratorIDHeader, testModeratorID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func submissionBody(platform string) map[string]interface{} {
	return map[string]interface{}{
		"platform":                           platform,
		"android_report_info_schema_version": 1,
		"report_submission_timestamp_sec":    1615519337,
		"report_submission_utc_offset_hrs":   0,
		"user_supplied_feedback": map[string]interface{}{
			"report_type":                    "issue",
			"category":                       "issue_topics",
			"user_feedback_selected_items":   []string{"topic does not load"},
			"user_feedback_other_text_input": nil,
		},
		"system_context": map[string]interface{}{
			"platform_version":                    "0.1-alpha-abcdef1234",
			"package_version_code":                1,
			"android_device_country_locale_code":  "in",
			"android_device_language_locale_code": "en",
		},
		"device_context": map[string]interface{}{
			"android_device_model": "example_model",
			"android_sdk_version":  23,
			"build_fingerprint":    "example_fingerprint_id",
			"network_type":         "wifi",
		},
		"app_context": map[string]interface{}{
			"entry_point":                          map[string]interface{}{"entry_point_name": "navigation_drawer"},
			"text_language_code":                   "en",
			"audio_language_code":                  "en",
			"text_size":                            "medium_text_size",
			"only_allows_wifi_download_and_update": true,
			"automatically_update_topics":          false,
			"account_is_profile_admin":             false,
			"event_logs":                           []string{},
			"logcat_logs":                          []string{},
		},
	}
}

func ingest(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := do(router, http.MethodPost, "/v1/reports", submissionBody("android"), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, ok := decodeBody(t, w)["report_id"].(string)
	require.True(t, ok)
	return id
}

func TestHealthAndVersion(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])

	w = do(router, http.MethodGet, "/version", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w), "version")
}

func TestIngestAndGetReports(t *testing.T) {
	router := newTestRouter(t)
	id := ingest(t, router)

	w := do(router, http.MethodGet, "/v1/reports?ids="+id+",android.0.missing", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reports := decodeBody(t, w)["reports"].([]interface{})
	require.Len(t, reports, 2)
	assert.Nil(t, reports[1])
	first := reports[0].(map[string]interface{})
	assert.Equal(t, id, first["report_id"])
	assert.Equal(t, "android", first["platform"])
	assert.Nil(t, first["ticket_id"])

	w = do(router, http.MethodGet, "/v1/reports?ids=", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest_Errors(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/v1/reports", submissionBody("web"), false)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "UNSUPPORTED_PLATFORM", decodeBody(t, w)["code"])

	w = do(router, http.MethodPost, "/v1/reports", []byte(`not json`), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModeratorRoutesRequireHeader(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/v1/reports?ids=a", "/v1/reports/filters", "/v1/tickets"} {
		w := do(router, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestGetFilterOptions(t *testing.T) {
	router := newTestRouter(t)
	ingest(t, router)

	w := do(router, http.MethodGet, "/v1/reports/filters", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	filters := decodeBody(t, w)["filters"].([]interface{})
	require.Len(t, filters, len(models.FilterFields))
	first := filters[0].(map[string]interface{})
	assert.Equal(t, string(models.FilterFieldReportType), first["filter_name"])
	assert.Equal(t, []interface{}{"issue"}, first["filter_options"])
}

func TestTicketLifecycle(t *testing.T) {
	router := newTestRouter(t)
	id := ingest(t, router)

	w := do(router, http.MethodPost, "/v1/tickets", CreateTicketRequest{
		TicketName: "Lesson does not load",
		Platform:   "android",
		ReportIDs:  []string{id},
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ticket := decodeBody(t, w)
	ticketID := ticket["ticket_id"].(string)
	assert.Equal(t, []interface{}{id}, ticket["reports"])

	w = do(router, http.MethodPatch, "/v1/tickets/"+ticketID, RenameTicketRequest{TicketName: "Renamed"}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decodeBody(t, w)["ticket_name"])

	w = do(router, http.MethodGet, "/v1/tickets/"+ticketID+"/stats", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decodeBody(t, w)["stats"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "2021-03-12", row["stats_tracking_date"])
	assert.Equal(t, float64(1), row["total_reports_submitted"])

	w = do(router, http.MethodGet, "/v1/tickets/"+models.UnticketedAndroidReportsStatsTicketID+"/stats", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	rows = decodeBody(t, w)["stats"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, float64(0), rows[0].(map[string]interface{})["total_reports_submitted"])

	w = do(router, http.MethodPost, "/v1/tickets/"+ticketID+"/archive", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["archived"])

	w = do(router, http.MethodGet, "/v1/tickets", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["tickets"])

	w = do(router, http.MethodGet, "/v1/tickets?include_archived=true", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["tickets"], 1)

	w = do(router, http.MethodGet, "/v1/tickets?include_archived=maybe", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/tickets/"+ticketID+"/unarchive", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["archived"])
}

func TestTicketErrors(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/v1/tickets", map[string]interface{}{"platform": "android"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/tickets", CreateTicketRequest{TicketName: "x", Platform: "ios"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/v1/tickets/android.1.missing", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/v1/tickets/android.1.missing/stats", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReassign(t *testing.T) {
	router := newTestRouter(t)
	id := ingest(t, router)

	w := do(router, http.MethodPost, "/v1/tickets", CreateTicketRequest{TicketName: "target", Platform: "android"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	ticketID := decodeBody(t, w)["ticket_id"].(string)

	missing := "android.1615519337000.nosuchticket"
	w = do(router, http.MethodPut, "/v1/reports/"+id+"/ticket", ReassignRequest{TicketID: &missing}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodPut, "/v1/reports/"+id+"/ticket", ReassignRequest{TicketID: &ticketID}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ticketID, decodeBody(t, w)["ticket_id"])

	w = do(router, http.MethodPut, "/v1/reports/"+id+"/ticket", []byte(`{"ticket_id": null}`), true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decodeBody(t, w)["ticket_id"])
}

func TestScrubAndSweep(t *testing.T) {
	router := newTestRouter(t)
	id := ingest(t, router)

	w := do(router, http.MethodPost, "/v1/reports/"+id+"/scrub", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, testModeratorID, decodeBody(t, w)["scrubbed_by"])

	// Repeating the scrub as the same moderator is a no-op.
	w = do(router, http.MethodPost, "/v1/reports/"+id+"/scrub", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, "/v1/reports/android.0.missing/scrub", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/v1/admin/expiring", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["reports"])

	w = do(router, http.MethodPost, "/v1/admin/sweep", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(0), decodeBody(t, w)["scrubbed"])
}

func TestRouteListing(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/v1/admin/routes", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "appfeedback", body["service"])

	paths := map[string]bool{}
	for _, r := range body["routes"].([]interface{}) {
		route := r.(map[string]interface{})
		paths[route["method"].(string)+" "+route["path"].(string)] = true
	}
	assert.True(t, paths["POST /v1/reports"])
	assert.True(t, paths["PUT /v1/reports/:id/ticket"])
	assert.True(t, paths["GET /v1/tickets/:id/stats"])
}
