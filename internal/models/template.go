package models

import (
	"encoding/json"
	"time"
)

// WorkOrderTemplate is a reusable blueprint for work orders: default
// assignment fields plus an ordered list of inspection template references.
// Checklist and notification config are stored as opaque JSON.
type WorkOrderTemplate struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Category              string          `json:"category"`
	Priority              string          `json:"priority"`
	EstimatedDuration     int             `json:"estimated_duration"` // minutes
	DefaultAssignee       string          `json:"default_assignee"`
	RequiredSkills        []string        `json:"required_skills"`
	InspectionTemplateIDs []string        `json:"inspection_template_ids"`
	Checklist             json.RawMessage `json:"checklist,omitempty"`
	Notifications         json.RawMessage `json:"notifications,omitempty"`
	IsActive              bool            `json:"is_active"`
	CreatedBy             string          `json:"created_by,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TemplateCategory is one category with its template count.
type TemplateCategory struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
