package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crucial707/inspect-ops/internal/generator"
	"github.com/crucial707/inspect-ops/internal/models"
	"github.com/crucial707/inspect-ops/internal/recurrence"
	"github.com/crucial707/inspect-ops/internal/repo"
)

// ScheduleHandler handles recurring schedule CRUD, generation, and the
// due-today/overdue views.
type ScheduleHandler struct {
	Repo      *repo.ScheduleRepo
	Templates *repo.TemplateRepo
	Engine    *generator.Engine
}

// scheduleResponse decorates a schedule with derived due-state fields.
type scheduleResponse struct {
	models.RecurringSchedule
	NextDueIn string `json:"next_due_in"`
	IsOverdue bool   `json:"is_overdue"`
}

func decorate(s models.RecurringSchedule, now time.Time) scheduleResponse {
	return scheduleResponse{
		RecurringSchedule: s,
		NextDueIn:         recurrence.TimeUntilNext(s.NextDue, now),
		IsOverdue:         recurrence.IsOverdue(s.NextDue, now),
	}
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func paginate(page, limit, total int) pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// ListSchedules returns paginated schedules.
// Query: is_active, frequency, search, page, limit, sort_by, sort_order.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}
	limit := 20
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	filter := repo.ScheduleFilter{
		Frequency: q.Get("frequency"),
		Search:    q.Get("search"),
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	sortBy := q.Get("sort_by")
	if sortBy == "" {
		sortBy = "next_due"
	}
	sortDesc := q.Get("sort_order") == "desc"

	list, err := h.Repo.List(r.Context(), filter, sortBy, sortDesc, limit, (page-1)*limit)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Repo.Count(r.Context(), filter)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := make([]scheduleResponse, 0, len(list))
	for _, s := range list {
		data = append(data, decorate(s, now))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       data,
		"pagination": paginate(page, limit, total),
	})
}

// GetSchedule returns one schedule with derived due-state fields.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decorate(*s, time.Now()))
}

// scheduleInput is the create payload.
type scheduleInput struct {
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	WorkOrderTemplateID string     `json:"work_order_template_id"`
	AssignedTo          string     `json:"assigned_to"`
	AssignedGroup       string     `json:"assigned_group"`
	Location            string     `json:"location"`
	Priority            string     `json:"priority"`
	Frequency           string     `json:"frequency"`
	Interval            int        `json:"interval"`
	StartDate           time.Time  `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	DaysOfWeek          []int64    `json:"days_of_week"`
	DayOfMonth          int        `json:"day_of_month"`
	TimeOfDay           string     `json:"time"`
	Timezone            string     `json:"timezone"`
	IsActive            *bool      `json:"is_active"`
	CreatedBy           string     `json:"created_by"`
}

// CreateSchedule creates a schedule and computes its initial next due date.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input scheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	fields := make(map[string]string)
	if input.Name == "" {
		fields["name"] = "required"
	}
	if input.WorkOrderTemplateID == "" {
		fields["work_order_template_id"] = "required"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	s := &models.RecurringSchedule{
		ID:                  uuid.NewString(),
		Name:                input.Name,
		Description:         input.Description,
		WorkOrderTemplateID: input.WorkOrderTemplateID,
		AssignedTo:          input.AssignedTo,
		AssignedGroup:       input.AssignedGroup,
		Location:            input.Location,
		Priority:            input.Priority,
		Frequency:           input.Frequency,
		Interval:            input.Interval,
		StartDate:           input.StartDate,
		EndDate:             input.EndDate,
		DaysOfWeek:          input.DaysOfWeek,
		DayOfMonth:          input.DayOfMonth,
		TimeOfDay:           input.TimeOfDay,
		Timezone:            input.Timezone,
		IsActive:            true,
		CreatedBy:           input.CreatedBy,
	}
	if s.Priority == "" {
		s.Priority = "medium"
	}
	if s.Interval == 0 {
		s.Interval = 1
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if input.IsActive != nil {
		s.IsActive = *input.IsActive
	}

	if err := recurrence.Validate(s); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tpl, err := h.Templates.GetByID(r.Context(), s.WorkOrderTemplateID)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if tpl == nil {
		JSONError(w, "work order template not found", http.StatusBadRequest)
		return
	}

	nextDue, err := recurrence.InitialDue(s, time.Now())
	if err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.NextDue = &nextDue
	// A first occurrence past the end date can never fire; the schedule is
	// stored retired, mirroring what the engine does when it steps past.
	if s.EndDate != nil && nextDue.After(*s.EndDate) {
		s.IsActive = false
	}

	if err := h.Repo.Create(r.Context(), s); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s)
}

// schedulePatch is the update payload; nil fields are left unchanged.
type schedulePatch struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	AssignedTo    *string    `json:"assigned_to"`
	AssignedGroup *string    `json:"assigned_group"`
	Location      *string    `json:"location"`
	Priority      *string    `json:"priority"`
	Frequency     *string    `json:"frequency"`
	Interval      *int       `json:"interval"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	DaysOfWeek    []int64    `json:"days_of_week"`
	DayOfMonth    *int       `json:"day_of_month"`
	TimeOfDay     *string    `json:"time"`
	Timezone      *string    `json:"timezone"`
	IsActive      *bool      `json:"is_active"`
}

// affectsRecurrence reports whether the patch touches any field that feeds
// the due-date calculation.
func (p *schedulePatch) affectsRecurrence() bool {
	return p.Frequency != nil || p.Interval != nil || p.StartDate != nil ||
		p.DayOfMonth != nil || p.TimeOfDay != nil || p.Timezone != nil
}

// UpdateSchedule applies a partial update, recomputing next_due only when a
// recurrence field changed.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}

	var patch schedulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&s.Name, patch.Name)
	applyString(&s.Description, patch.Description)
	applyString(&s.AssignedTo, patch.AssignedTo)
	applyString(&s.AssignedGroup, patch.AssignedGroup)
	applyString(&s.Location, patch.Location)
	applyString(&s.Priority, patch.Priority)
	applyString(&s.Frequency, patch.Frequency)
	applyString(&s.TimeOfDay, patch.TimeOfDay)
	applyString(&s.Timezone, patch.Timezone)
	if patch.Interval != nil {
		s.Interval = *patch.Interval
	}
	if patch.StartDate != nil {
		s.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		s.EndDate = patch.EndDate
	}
	if patch.DaysOfWeek != nil {
		s.DaysOfWeek = patch.DaysOfWeek
	}
	if patch.DayOfMonth != nil {
		s.DayOfMonth = *patch.DayOfMonth
	}
	if patch.IsActive != nil {
		s.IsActive = *patch.IsActive
	}

	if err := recurrence.Validate(s); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if patch.affectsRecurrence() {
		nextDue, err := recurrence.InitialDue(s, time.Now())
		if err != nil {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.NextDue = &nextDue
	}
	// Covers both a recomputed due date and a patch that only moved
	// end_date behind the existing one.
	if s.EndDate != nil && s.NextDue != nil && s.NextDue.After(*s.EndDate) {
		s.IsActive = false
	}

	if err := h.Repo.Update(r.Context(), s); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// DeleteSchedule removes a schedule.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateWorkOrder materializes one work order for the schedule's current
// occurrence. Body is optional: {"due_date": "..."}.
func (h *ScheduleHandler) GenerateWorkOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var overrides generator.Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	workOrder, err := h.Engine.Generate(r.Context(), id, overrides)
	if err != nil {
		switch {
		case errors.Is(err, generator.ErrScheduleNotFound):
			JSONError(w, "schedule not found", http.StatusNotFound)
		case errors.Is(err, generator.ErrTemplateNotFound):
			JSONError(w, "work order template not found", http.StatusNotFound)
		case errors.Is(err, generator.ErrInactiveSchedule):
			JSONError(w, "schedule is inactive", http.StatusConflict)
		case errors.Is(err, generator.ErrScheduleEnded):
			JSONError(w, "schedule end date has passed", http.StatusConflict)
		case errors.Is(err, generator.ErrGenerationConflict):
			JSONError(w, "work order already generated for this occurrence", http.StatusConflict)
		case errors.Is(err, recurrence.ErrInvalidConfiguration):
			JSONError(w, err.Error(), http.StatusBadRequest)
		default:
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(workOrder)
}

// ToggleActive pauses or resumes a schedule without touching next_due.
func (h *ScheduleHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.Engine.ToggleActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, generator.ErrScheduleNotFound) {
			JSONError(w, "schedule not found", http.StatusNotFound)
			return
		}
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// DueToday returns active schedules due within the current UTC day.
func (h *ScheduleHandler) DueToday(w http.ResponseWriter, r *http.Request) {
	list, err := h.Repo.ListDueToday(r.Context(), time.Now())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeScheduleList(w, list)
}

// Overdue returns active schedules past their next due date, most overdue first.
func (h *ScheduleHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	list, err := h.Repo.ListOverdue(r.Context(), time.Now())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeScheduleList(w, list)
}

func writeScheduleList(w http.ResponseWriter, list []models.RecurringSchedule) {
	now := time.Now()
	out := make([]scheduleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, decorate(s, now))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
