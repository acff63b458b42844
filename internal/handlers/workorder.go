package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/inspect-ops/internal/repo"
)

// WorkOrderHandler exposes read access to generated work orders.
type WorkOrderHandler struct {
	Repo *repo.WorkOrderRepo
}

// ListWorkOrders returns paginated work orders.
// Query: status, template_id, assigned_to, page, limit.
func (h *WorkOrderHandler) ListWorkOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}
	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	filter := repo.WorkOrderFilter{
		Status:     q.Get("status"),
		TemplateID: q.Get("template_id"),
		AssignedTo: q.Get("assigned_to"),
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

// GetWorkOrder returns one work order with its inspections in order.
func (h *WorkOrderHandler) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wo, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if wo == nil {
		JSONError(w, "work order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wo)
}
