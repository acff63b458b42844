package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crucial707/inspect-ops/internal/models"
	"github.com/crucial707/inspect-ops/internal/repo"
)

// TemplateHandler handles work order template CRUD.
type TemplateHandler struct {
	Repo       *repo.TemplateRepo
	Schedules  *repo.ScheduleRepo
	WorkOrders *repo.WorkOrderRepo
}

// templateResponse decorates a template with usage counts.
type templateResponse struct {
	models.WorkOrderTemplate
	ActiveSchedules int `json:"active_schedules"`
	TotalWorkOrders int `json:"total_work_orders"`
}

// ListTemplates returns paginated templates.
// Query: category, is_active, search, page, limit.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}
	limit := 20
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	filter := repo.TemplateFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	list, err := h.Repo.List(r.Context(), filter, limit, (page-1)*limit)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Repo.Count(r.Context(), filter)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       list,
		"pagination": paginate(page, limit, total),
	})
}

// GetTemplate returns one template with usage counts.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tpl, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if tpl == nil {
		JSONError(w, "template not found", http.StatusNotFound)
		return
	}

	activeSchedules, err := h.Schedules.CountActiveByTemplate(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	totalWorkOrders, err := h.WorkOrders.Count(r.Context(), repo.WorkOrderFilter{TemplateID: id})
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(templateResponse{
		WorkOrderTemplate: *tpl,
		ActiveSchedules:   activeSchedules,
		TotalWorkOrders:   totalWorkOrders,
	})
}

// templateInput is the create/update payload.
type templateInput struct {
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Category              string          `json:"category"`
	Priority              string          `json:"priority"`
	EstimatedDuration     int             `json:"estimated_duration"`
	DefaultAssignee       string          `json:"default_assignee"`
	RequiredSkills        []string        `json:"required_skills"`
	InspectionTemplateIDs []string        `json:"inspection_template_ids"`
	Checklist             json.RawMessage `json:"checklist"`
	Notifications         json.RawMessage `json:"notifications"`
	IsActive              *bool           `json:"is_active"`
	CreatedBy             string          `json:"created_by"`
}

func (input *templateInput) toModel(id string) *models.WorkOrderTemplate {
	t := &models.WorkOrderTemplate{
		ID:                    id,
		Name:                  input.Name,
		Description:           input.Description,
		Category:              input.Category,
		Priority:              input.Priority,
		EstimatedDuration:     input.EstimatedDuration,
		DefaultAssignee:       input.DefaultAssignee,
		RequiredSkills:        input.RequiredSkills,
		InspectionTemplateIDs: input.InspectionTemplateIDs,
		Checklist:             input.Checklist,
		Notifications:         input.Notifications,
		IsActive:              true,
		CreatedBy:             input.CreatedBy,
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if t.RequiredSkills == nil {
		t.RequiredSkills = []string{}
	}
	if t.InspectionTemplateIDs == nil {
		t.InspectionTemplateIDs = []string{}
	}
	if input.IsActive != nil {
		t.IsActive = *input.IsActive
	}
	return t
}

// CreateTemplate creates a work order template.
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var input templateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if input.Name == "" {
		JSONValidationError(w, "validation failed", map[string]string{"name": "required"}, http.StatusBadRequest)
		return
	}

	tpl := input.toModel(uuid.NewString())
	if err := h.Repo.Create(r.Context(), tpl); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tpl)
}

// UpdateTemplate rewrites a template's fields.
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if existing == nil {
		JSONError(w, "template not found", http.StatusNotFound)
		return
	}

	var input templateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if input.Name == "" {
		JSONValidationError(w, "validation failed", map[string]string{"name": "required"}, http.StatusBadRequest)
		return
	}

	tpl := input.toModel(id)
	tpl.CreatedBy = existing.CreatedBy
	if err := h.Repo.Update(r.Context(), tpl); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tpl)
}

// DeleteTemplate removes a template unless active work orders or schedules
// still reference it.
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrTemplateInUse) {
			JSONError(w, "template is referenced by active work orders or schedules", http.StatusConflict)
			return
		}
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateTemplate copies a template. The copy starts inactive unless the
// body says otherwise. Body: {"name": "...", "is_active": bool}, both optional.
func (h *TemplateHandler) DuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	original, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if original == nil {
		JSONError(w, "template not found", http.StatusNotFound)
		return
	}

	var input struct {
		Name      string `json:"name"`
		IsActive  *bool  `json:"is_active"`
		CreatedBy string `json:"created_by"`
	}
	_ = json.NewDecoder(r.Body).Decode(&input)

	dup := *original
	dup.ID = uuid.NewString()
	dup.Name = original.Name + " (Copy)"
	if input.Name != "" {
		dup.Name = input.Name
	}
	dup.IsActive = false
	if input.IsActive != nil {
		dup.IsActive = *input.IsActive
	}
	dup.CreatedBy = input.CreatedBy

	if err := h.Repo.Create(r.Context(), &dup); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dup)
}

// Categories returns template categories with counts, most used first.
func (h *TemplateHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Repo.Categories(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if cats == nil {
		cats = []models.TemplateCategory{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cats)
}
