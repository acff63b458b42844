// Package generator materializes work orders from recurring schedules:
// exactly one work order per due occurrence, with the schedule advanced in
// the same transaction.
package generator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/inspect-ops/internal/metrics"
	"github.com/crucial707/inspect-ops/internal/models"
	"github.com/crucial707/inspect-ops/internal/recurrence"
	"github.com/crucial707/inspect-ops/internal/repo"
)

var (
	// ErrScheduleNotFound means the schedule id does not exist.
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrTemplateNotFound means the schedule's work order template is gone.
	ErrTemplateNotFound = errors.New("work order template not found")
	// ErrInactiveSchedule means the schedule is paused and must not generate.
	ErrInactiveSchedule = errors.New("schedule is inactive")
	// ErrScheduleEnded means the schedule's current occurrence falls past
	// its end date. The schedule is retired rather than generated.
	ErrScheduleEnded = errors.New("schedule end date has passed")
	// ErrGenerationConflict means another generation advanced the schedule
	// first. The occurrence was produced by the winner; losers can ignore it.
	ErrGenerationConflict = errors.New("schedule was generated concurrently")
)

// Overrides are caller-supplied values for a single generation.
type Overrides struct {
	DueDate *time.Time `json:"due_date"`
}

// Engine builds work orders from schedules. All writes go through one
// transaction per generation with an optimistic check on the schedule row,
// so two racing calls for the same schedule produce exactly one work order.
type Engine struct {
	DB         *sql.DB
	Schedules  *repo.ScheduleRepo
	Templates  *repo.TemplateRepo
	WorkOrders *repo.WorkOrderRepo

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewEngine returns an Engine over the given DB and repos.
func NewEngine(db *sql.DB, schedules *repo.ScheduleRepo, templates *repo.TemplateRepo, workOrders *repo.WorkOrderRepo) *Engine {
	return &Engine{
		DB:         db,
		Schedules:  schedules,
		Templates:  templates,
		WorkOrders: workOrders,
		Now:        time.Now,
	}
}

// Generate materializes one work order for the schedule's current occurrence
// and advances next_due/last_generated/total_generated. On any failure no
// partial work order, inspections, or schedule advance remain.
func (e *Engine) Generate(ctx context.Context, scheduleID string, ov Overrides) (*models.WorkOrder, error) {
	schedule, err := e.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}
	if !schedule.IsActive {
		return nil, ErrInactiveSchedule
	}
	// end_date is an inclusive upper bound: a stored due date past it must
	// never fire. Retire the schedule instead of generating.
	if schedule.EndDate != nil && schedule.NextDue != nil && schedule.NextDue.After(*schedule.EndDate) {
		if err := e.Schedules.SetActive(ctx, schedule.ID, false); err != nil {
			return nil, fmt.Errorf("deactivate ended schedule: %w", err)
		}
		return nil, ErrScheduleEnded
	}

	template, err := e.Templates.GetByID(ctx, schedule.WorkOrderTemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if template == nil {
		return nil, ErrTemplateNotFound
	}

	now := e.Now().UTC()
	workOrder := buildWorkOrder(schedule, template, ov, now)

	nextDue, err := recurrence.NextDue(schedule, now)
	if err != nil {
		return nil, err
	}
	// The calculator does not respect end_date; a schedule stepping past its
	// end is deactivated here, in the same transaction as the advance.
	deactivate := schedule.EndDate != nil && nextDue.After(*schedule.EndDate)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin generation: %w", err)
	}
	defer tx.Rollback()

	if err := e.WorkOrders.CreateTx(ctx, tx, workOrder); err != nil {
		metrics.IncGenerations("error")
		return nil, fmt.Errorf("create work order: %w", err)
	}

	advanced, err := e.Schedules.AdvanceTx(ctx, tx, schedule.ID, now, nextDue,
		schedule.TotalGenerated, schedule.NextDue, deactivate)
	if err != nil {
		metrics.IncGenerations("error")
		return nil, fmt.Errorf("advance schedule: %w", err)
	}
	if !advanced {
		// Someone else generated this occurrence between our read and the
		// update; roll everything back.
		metrics.IncGenerations("conflict")
		return nil, ErrGenerationConflict
	}

	if err := tx.Commit(); err != nil {
		metrics.IncGenerations("error")
		return nil, fmt.Errorf("commit generation: %w", err)
	}

	metrics.IncGenerations("generated")
	return workOrder, nil
}

// ToggleActive flips the schedule's active flag and returns the updated
// schedule. Pausing keeps next_due, so resuming continues from the same
// position.
func (e *Engine) ToggleActive(ctx context.Context, scheduleID string) (*models.RecurringSchedule, error) {
	schedule, err := e.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}
	if err := e.Schedules.SetActive(ctx, scheduleID, !schedule.IsActive); err != nil {
		return nil, err
	}
	schedule.IsActive = !schedule.IsActive
	return schedule, nil
}

// buildWorkOrder assembles the work order and its inspection instances in
// memory. Template fields seed the work order; schedule-level assignment
// fields win where set, and the caller's due date override wins over both.
func buildWorkOrder(schedule *models.RecurringSchedule, template *models.WorkOrderTemplate, ov Overrides, now time.Time) *models.WorkOrder {
	assignedTo := template.DefaultAssignee
	if schedule.AssignedTo != "" {
		assignedTo = schedule.AssignedTo
	}
	priority := template.Priority
	if schedule.Priority != "" {
		priority = schedule.Priority
	}

	w := &models.WorkOrder{
		ID:                  uuid.NewString(),
		WorkOrderRef:        fmt.Sprintf("WO-%d", now.UnixMilli()),
		Title:               fmt.Sprintf("%s - %s", template.Name, schedule.Name),
		Description:         template.Description,
		AssignedTo:          assignedTo,
		Location:            schedule.Location,
		Priority:            priority,
		Status:              models.WorkOrderPending,
		DueDate:             ov.DueDate,
		EstimatedDuration:   template.EstimatedDuration,
		RequiredSkills:      template.RequiredSkills,
		WorkOrderTemplateID: template.ID,
		CreatedBy:           "system",
	}

	for i, templateID := range template.InspectionTemplateIDs {
		w.Inspections = append(w.Inspections, models.Inspection{
			ID:            uuid.NewString(),
			InspectionRef: fmt.Sprintf("INS-%d-%d", now.UnixMilli(), i),
			WorkOrderID:   w.ID,
			TemplateID:    templateID,
			Status:        models.InspectionNotStarted,
			Required:      true,
			Order:         i + 1,
		})
	}
	return w
}
