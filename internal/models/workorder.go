package models

import "time"

// Work order statuses.
const (
	WorkOrderPending    = "pending"
	WorkOrderInProgress = "in-progress"
	WorkOrderCompleted  = "completed"
	WorkOrderCancelled  = "cancelled"
)

// InspectionNotStarted is the initial status of every generated inspection.
const InspectionNotStarted = "not-started"

// WorkOrder is a concrete unit of work materialized from a template, owning
// an ordered list of inspection instances.
type WorkOrder struct {
	ID                  string       `json:"id"`
	WorkOrderRef        string       `json:"work_order_ref"` // human-facing "WO-..." reference
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	AssignedTo          string       `json:"assigned_to"`
	Location            string       `json:"location"`
	Priority            string       `json:"priority"`
	Status              string       `json:"status"`
	DueDate             *time.Time   `json:"due_date"`
	EstimatedDuration   int          `json:"estimated_duration"`
	RequiredSkills      []string     `json:"required_skills"`
	WorkOrderTemplateID string       `json:"work_order_template_id"`
	CreatedBy           string       `json:"created_by,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
	Inspections         []Inspection `json:"inspections"`
}

// Inspection is one checklist instance on a work order. Order is the 1-based
// position matching the template's inspection list.
type Inspection struct {
	ID            string `json:"id"`
	InspectionRef string `json:"inspection_ref"` // human-facing "INS-..." reference
	WorkOrderID   string `json:"work_order_id"`
	TemplateID    string `json:"template_id"` // inspection template reference
	Status        string `json:"status"`
	Required      bool   `json:"required"`
	Order         int    `json:"order"`
}
