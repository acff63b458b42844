package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crucial707/inspect-ops/internal/models"
	"github.com/crucial707/inspect-ops/internal/repo"
)

func newTemplateHandler(t *testing.T) (*TemplateHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &TemplateHandler{
		Repo:       repo.NewTemplateRepo(db),
		Schedules:  repo.NewScheduleRepo(db),
		WorkOrders: repo.NewWorkOrderRepo(db),
	}
	return h, mock, func() { db.Close() }
}

func addTemplateRow(rows *sqlmock.Rows, id, name, category string, active bool) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, name, "", category, "medium", 45, "bob",
		pgArray("plumbing"), pgArray("ins-a", "ins-b"), nil, nil,
		active, "admin", now, now,
	)
}

func TestTemplateHandler_GetTemplate_UsageCounts(t *testing.T) {
	h, mock, done := newTemplateHandler(t)
	defer done()

	rows := sqlmock.NewRows(templateCols)
	addTemplateRow(rows, "tpl-1", "Boiler inspection", "safety", true)
	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recurring_schedules WHERE work_order_template_id = \$1 AND is_active = true`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM work_orders WHERE work_order_template_id = \$1`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	req := requestWithChiURLParams("GET", "/templates/tpl-1", nil, map[string]string{"id": "tpl-1"})
	rr := httptest.NewRecorder()
	h.GetTemplate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	var out struct {
		ID              string `json:"id"`
		ActiveSchedules int    `json:"active_schedules"`
		TotalWorkOrders int    `json:"total_work_orders"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ActiveSchedules != 3 || out.TotalWorkOrders != 17 {
		t.Errorf("usage counts: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTemplateHandler_CreateTemplate(t *testing.T) {
	h, mock, done := newTemplateHandler(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO work_order_templates`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	body := []byte(`{"name":"Pump inspection","category":"mechanical","inspection_template_ids":["ins-a"]}`)
	req := httptest.NewRequest("POST", "/templates", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateTemplate(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var out models.WorkOrderTemplate
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ID == "" || out.Priority != "medium" || !out.IsActive {
		t.Errorf("defaults: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTemplateHandler_CreateTemplate_MissingName(t *testing.T) {
	h, _, done := newTemplateHandler(t)
	defer done()

	req := httptest.NewRequest("POST", "/templates", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	h.CreateTemplate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestTemplateHandler_DeleteTemplate_InUse(t *testing.T) {
	h, mock, done := newTemplateHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM work_orders WHERE work_order_template_id = \$1 AND status IN`).
		WithArgs("tpl-1", models.WorkOrderPending, models.WorkOrderInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recurring_schedules WHERE work_order_template_id = \$1`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	req := requestWithChiURLParams("DELETE", "/templates/tpl-1", nil, map[string]string{"id": "tpl-1"})
	rr := httptest.NewRecorder()
	h.DeleteTemplate(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409 (%s)", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTemplateHandler_DeleteTemplate_Unreferenced(t *testing.T) {
	h, mock, done := newTemplateHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM work_orders WHERE work_order_template_id = \$1 AND status IN`).
		WithArgs("tpl-1", models.WorkOrderPending, models.WorkOrderInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recurring_schedules WHERE work_order_template_id = \$1`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM work_order_templates WHERE id = \$1`).
		WithArgs("tpl-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := requestWithChiURLParams("DELETE", "/templates/tpl-1", nil, map[string]string{"id": "tpl-1"})
	rr := httptest.NewRecorder()
	h.DeleteTemplate(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204 (%s)", rr.Code, rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTemplateHandler_DuplicateTemplate(t *testing.T) {
	h, mock, done := newTemplateHandler(t)
	defer done()

	rows := sqlmock.NewRows(templateCols)
	addTemplateRow(rows, "tpl-1", "Boiler inspection", "safety", true)
	mock.ExpectQuery(`(?s)SELECT .+ FROM work_order_templates WHERE id`).
		WithArgs("tpl-1").
		WillReturnRows(rows)
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO work_order_templates`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	req := requestWithChiURLParams("POST", "/templates/tpl-1/duplicate", []byte(`{}`), map[string]string{"id": "tpl-1"})
	rr := httptest.NewRecorder()
	h.DuplicateTemplate(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var out models.WorkOrderTemplate
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Name != "Boiler inspection (Copy)" {
		t.Errorf("name: got %q", out.Name)
	}
	if out.ID == "" || out.ID == "tpl-1" {
		t.Errorf("id: got %q", out.ID)
	}
	// Copies start inactive so they can be reviewed before use.
	if out.IsActive {
		t.Errorf("expected duplicate to start inactive")
	}
	if len(out.InspectionTemplateIDs) != 2 {
		t.Errorf("inspection templates: %v", out.InspectionTemplateIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestTemplateHandler_Categories(t *testing.T) {
	h, mock, done := newTemplateHandler(t)
	defer done()

	mock.ExpectQuery(`(?s)SELECT category, COUNT\(\*\) AS n\s+FROM work_order_templates\s+GROUP BY category`).
		WillReturnRows(sqlmock.NewRows([]string{"category", "n"}).
			AddRow("safety", 5).
			AddRow("mechanical", 2))

	req := httptest.NewRequest("GET", "/templates/categories", nil)
	rr := httptest.NewRecorder()
	h.Categories(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var out []models.TemplateCategory
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 2 || out[0].Name != "safety" || out[0].Count != 5 {
		t.Errorf("unexpected categories: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
