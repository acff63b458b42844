package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"

	"github.com/crucial707/inspect-ops/internal/generator"
	"github.com/crucial707/inspect-ops/internal/models"
	"github.com/crucial707/inspect-ops/internal/repo"
)

var scheduleCols = []string{
	"id", "name", "description", "work_order_template_id", "assigned_to", "assigned_group",
	"location", "priority", "frequency", "interval_count", "start_date", "end_date", "days_of_week",
	"day_of_month", "time_of_day", "timezone", "is_active", "next_due", "last_generated",
	"total_generated", "created_by", "created_at", "updated_at",
}

var templateCols = []string{
	"id", "name", "description", "category", "priority", "estimated_duration",
	"default_assignee", "required_skills", "inspection_template_ids", "checklist", "notifications",
	"is_active", "created_by", "created_at", "updated_at",
}

// pgArray renders a Postgres array literal for sqlmock row values.
func pgArray(elems ...string) string {
	return "{" + strings.Join(elems, ",") + "}"
}

// requestWithChiURLParams returns a request with chi route context and URL params set.
func requestWithChiURLParams(method, path string, body []byte, params map[string]string) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	return r
}

func newScheduleHandler(t *testing.T) (*ScheduleHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	schedules := repo.NewScheduleRepo(db)
	templates := repo.NewTemplateRepo(db)
	workOrders := repo.NewWorkOrderRepo(db)
	h := &ScheduleHandler{
		Repo:      schedules,
		Templates: templates,
		Engine:    generator.NewEngine(db, schedules, templates, workOrders),
	}
	return h, mock, func() { db.Close() }
}

func addScheduleRow(rows *sqlmock.Rows, id, name string, active bool, nextDue interface{}, total int) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, name, "", "tpl-1", "alice", "", "Plant 2", "high", models.FrequencyWeekly, 1,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil, pgArray(), 0, "08:00", "UTC",
		active, nextDue, nil, total, "admin", now, now,
	)
}

func TestScheduleHandler_ListSchedules(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	past := time.Now().Add(-48 * time.Hour)
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "s1", "boiler check", true, past, 4)

	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules ORDER BY next_due ASC NULLS LAST LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recurring_schedules`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	req := httptest.NewRequest("GET", "/schedules", nil)
	rr := httptest.NewRecorder()
	h.ListSchedules(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var out struct {
		Data []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			NextDueIn string `json:"next_due_in"`
			IsOverdue bool   `json:"is_overdue"`
		} `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0].Name != "boiler check" {
		t.Fatalf("unexpected data: %+v", out.Data)
	}
	if !out.Data[0].IsOverdue || out.Data[0].NextDueIn != "Overdue" {
		t.Errorf("due decoration: %+v", out.Data[0])
	}
	if out.Pagination.Total != 1 || out.Pagination.TotalPages != 1 || out.Pagination.Page != 1 {
		t.Errorf("pagination: %+v", out.Pagination)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_ListSchedules_FilterPassthrough(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE is_active = \$1 AND frequency = \$2`).
		WithArgs(true, "weekly", 20, 0).
		WillReturnRows(sqlmock.NewRows(scheduleCols))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recurring_schedules WHERE is_active = \$1 AND frequency = \$2`).
		WithArgs(true, "weekly").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	req := httptest.NewRequest("GET", "/schedules?is_active=true&frequency=weekly", nil)
	rr := httptest.NewRecorder()
	h.ListSchedules(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_CreateSchedule_MissingFields(t *testing.T) {
	h, _, done := newScheduleHandler(t)
	defer done()

	body := []byte(`{"frequency":"daily"}`)
	req := httptest.NewRequest("POST", "/schedules", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSchedule(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	var out struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Fields["name"] == "" || out.Fields["work_order_template_id"] == "" {
		t.Errorf("expected field errors, got: %+v", out)
	}
}

func TestScheduleHandler_CreateSchedule_InvalidFrequency(t *testing.T) {
	h, _, done := newScheduleHandler(t)
	defer done()

	body := []byte(`{"name":"x","work_order_template_id":"tpl-1","frequency":"fortnightly","start_date":"2025-01-01T00:00:00Z"}`)
	req := httptest.NewRequest("POST", "/schedules", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSchedule(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestScheduleHandler_CreateSchedule_UnknownTemplate(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-missing").
		WillReturnRows(sqlmock.NewRows(templateCols))

	body := []byte(`{"name":"x","work_order_template_id":"tpl-missing","frequency":"daily","start_date":"2025-01-01T00:00:00Z"}`)
	req := httptest.NewRequest("POST", "/schedules", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSchedule(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_CreateSchedule_FutureStartKeepsStartDate(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateCols).AddRow(
			"tpl-1", "Boiler inspection", "", "safety", "medium", 45,
			"", pgArray(), pgArray("ins-a"), nil, nil, true, "admin", now, now,
		))
	mock.ExpectQuery(`INSERT INTO recurring_schedules`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	start := now.Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	input := map[string]interface{}{
		"name":                   "monthly boiler check",
		"work_order_template_id": "tpl-1",
		"frequency":              "monthly",
		"start_date":             start.Format(time.RFC3339),
		"time":                   "09:30",
	}
	body, _ := json.Marshal(input)
	req := httptest.NewRequest("POST", "/schedules", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSchedule(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var out models.RecurringSchedule
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// A future start date becomes the first due moment, with the clock applied.
	want := time.Date(start.Year(), start.Month(), start.Day(), 9, 30, 0, 0, time.UTC)
	if out.NextDue == nil || !out.NextDue.Equal(want) {
		t.Errorf("next due: got %v, want %v", out.NextDue, want)
	}
	if !out.IsActive || out.Priority != "medium" || out.Timezone != "UTC" || out.Interval != 1 {
		t.Errorf("defaults: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_CreateSchedule_PastEndDateStartsInactive(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateCols).AddRow(
			"tpl-1", "Boiler inspection", "", "safety", "medium", 45,
			"", pgArray(), pgArray("ins-a"), nil, nil, true, "admin", now, now,
		))
	mock.ExpectQuery(`INSERT INTO recurring_schedules`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	// Start and end are both long past, so the computed first due moment
	// lands after the end date and the schedule must not be able to fire.
	input := map[string]interface{}{
		"name":                   "expired daily check",
		"work_order_template_id": "tpl-1",
		"frequency":              "daily",
		"start_date":             "2025-01-01T00:00:00Z",
		"end_date":               "2025-02-01T00:00:00Z",
	}
	body, _ := json.Marshal(input)
	req := httptest.NewRequest("POST", "/schedules", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateSchedule(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var out models.RecurringSchedule
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.IsActive {
		t.Error("expected schedule past its end date to be stored inactive")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_GenerateWorkOrder_Success(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	due := time.Now().Add(-time.Hour).UTC()
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "s1", "boiler check", true, due, 4)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE id`).
		WithArgs("s1").
		WillReturnRows(rows)
	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateCols).AddRow(
			"tpl-1", "Boiler inspection", "", "safety", "medium", 45,
			"", pgArray(), pgArray("ins-a", "ins-b"), nil, nil, true, "admin", now, now,
		))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO work_orders`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO inspections`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO inspections`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE recurring_schedules`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := requestWithChiURLParams("POST", "/schedules/s1/generate", nil, map[string]string{"id": "s1"})
	rr := httptest.NewRecorder()
	h.GenerateWorkOrder(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var out models.WorkOrder
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Title != "Boiler inspection - boiler check" {
		t.Errorf("title: got %q", out.Title)
	}
	if len(out.Inspections) != 2 {
		t.Errorf("inspections: got %d, want 2", len(out.Inspections))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_GenerateWorkOrder_Conflict(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	due := time.Now().Add(-time.Hour).UTC()
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "s1", "boiler check", true, due, 4)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE id`).
		WithArgs("s1").
		WillReturnRows(rows)
	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateCols).AddRow(
			"tpl-1", "Boiler inspection", "", "safety", "medium", 45,
			"", pgArray(), pgArray("ins-a"), nil, nil, true, "admin", now, now,
		))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO work_orders`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO inspections`).WillReturnResult(sqlmock.NewResult(0, 1))
	// Another generation advanced the schedule first; the CAS update matches nothing.
	mock.ExpectExec(`UPDATE recurring_schedules`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	req := requestWithChiURLParams("POST", "/schedules/s1/generate", nil, map[string]string{"id": "s1"})
	rr := httptest.NewRecorder()
	h.GenerateWorkOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409 (%s)", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_GenerateWorkOrder_NotFound(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(scheduleCols))

	req := requestWithChiURLParams("POST", "/schedules/missing/generate", nil, map[string]string{"id": "missing"})
	rr := httptest.NewRecorder()
	h.GenerateWorkOrder(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestScheduleHandler_GenerateWorkOrder_Inactive(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	due := time.Now().Add(-time.Hour).UTC()
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "s1", "boiler check", false, due, 4)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE id`).
		WithArgs("s1").
		WillReturnRows(rows)

	req := requestWithChiURLParams("POST", "/schedules/s1/generate", nil, map[string]string{"id": "s1"})
	rr := httptest.NewRecorder()
	h.GenerateWorkOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rr.Code)
	}
}

func TestScheduleHandler_GenerateWorkOrder_Ended(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	// Stored due moment past the end date: the endpoint refuses and the
	// schedule comes back retired.
	now := time.Now()
	rows := sqlmock.NewRows(scheduleCols).AddRow(
		"s1", "boiler check", "", "tpl-1", "alice", "", "Plant 2", "high", models.FrequencyWeekly, 1,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		pgArray(), 0, "08:00", "UTC",
		true, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), nil, 4, "admin", now, now,
	)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE id`).
		WithArgs("s1").
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE recurring_schedules SET is_active`).
		WithArgs(false, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := requestWithChiURLParams("POST", "/schedules/s1/generate", nil, map[string]string{"id": "s1"})
	rr := httptest.NewRecorder()
	h.GenerateWorkOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409 (%s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "end date") {
		t.Errorf("body: %s", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_ToggleActive(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	due := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "s1", "boiler check", true, due, 4)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules WHERE id`).
		WithArgs("s1").
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE recurring_schedules SET is_active`).
		WithArgs(false, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := requestWithChiURLParams("POST", "/schedules/s1/toggle-active", nil, map[string]string{"id": "s1"})
	rr := httptest.NewRecorder()
	h.ToggleActive(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var out models.RecurringSchedule
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.IsActive {
		t.Errorf("expected schedule paused")
	}
	// Pausing keeps the due position.
	if out.NextDue == nil || !out.NextDue.Equal(due) {
		t.Errorf("next due: got %v, want %v", out.NextDue, due)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestScheduleHandler_DueTodayAndOverdue(t *testing.T) {
	h, mock, done := newScheduleHandler(t)
	defer done()

	soon := time.Now().UTC().Truncate(24 * time.Hour).Add(10 * time.Hour)
	rows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(rows, "s1", "boiler check", true, soon, 0)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules\s+WHERE is_active = true AND next_due >= \$1 AND next_due < \$2`).
		WillReturnRows(rows)

	rr := httptest.NewRecorder()
	h.DueToday(rr, httptest.NewRequest("GET", "/schedules/due-today", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("due-today status: got %d, want 200", rr.Code)
	}
	var list []struct {
		ID        string `json:"id"`
		NextDueIn string `json:"next_due_in"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode due-today: %v", err)
	}
	if len(list) != 1 || list[0].ID != "s1" {
		t.Fatalf("unexpected due-today list: %+v", list)
	}

	past := time.Now().Add(-3 * time.Hour).UTC()
	overdueRows := sqlmock.NewRows(scheduleCols)
	addScheduleRow(overdueRows, "s2", "fire door sweep", true, past, 1)
	mock.ExpectQuery(`(?s)SELECT .+ FROM recurring_schedules\s+WHERE is_active = true AND next_due < \$1`).
		WillReturnRows(overdueRows)

	rr = httptest.NewRecorder()
	h.Overdue(rr, httptest.NewRequest("GET", "/schedules/overdue", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("overdue status: got %d, want 200", rr.Code)
	}
	var overdue []struct {
		ID        string `json:"id"`
		IsOverdue bool   `json:"is_overdue"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&overdue); err != nil {
		t.Fatalf("decode overdue: %v", err)
	}
	if len(overdue) != 1 || !overdue[0].IsOverdue {
		t.Fatalf("unexpected overdue list: %+v", overdue)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
