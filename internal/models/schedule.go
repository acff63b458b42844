package models

import "time"

// Supported schedule frequencies.
const (
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// Frequencies lists every supported frequency value, used for validation.
var Frequencies = []string{
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyYearly,
}

// ValidFrequency reports whether f is one of the supported frequencies.
func ValidFrequency(f string) bool {
	for _, v := range Frequencies {
		if v == f {
			return true
		}
	}
	return false
}

// RecurringSchedule is a standing instruction to periodically produce work
// orders from a work order template. NextDue is the single source of truth for
// when the schedule fires next; an inactive schedule keeps its NextDue
// (paused, not forgotten).
type RecurringSchedule struct {
	ID                  string     `json:"id"`
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
	EndDate             *time.Time `json:"end_date,omitempty"`
	DaysOfWeek          []int64    `json:"days_of_week"`
	DayOfMonth          int        `json:"day_of_month,omitempty"` // 0 means unset
	TimeOfDay           string     `json:"time,omitempty"`         // "HH:MM", empty means unset
	Timezone            string     `json:"timezone"`
	IsActive            bool       `json:"is_active"`
	NextDue             *time.Time `json:"next_due"`
	LastGenerated       *time.Time `json:"last_generated"`
	TotalGenerated      int        `json:"total_generated"`
	CreatedBy           string     `json:"created_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
