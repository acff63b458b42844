package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/crucial707/inspect-ops/internal/models"
)

const workOrderColumns = `id, work_order_ref, title, description, assigned_to, location, priority,
	status, due_date, estimated_duration, required_skills, work_order_template_id,
	created_by, created_at, updated_at`

// WorkOrderFilter narrows work order listings. Zero fields are ignored.
type WorkOrderFilter struct {
	Status     string
	TemplateID string
	AssignedTo string
}

func (f WorkOrderFilter) buildWhere() (string, []interface{}) {
	var preds []string
	var args []interface{}

	if f.Status != "" {
		args = append(args, f.Status)
		preds = append(preds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.TemplateID != "" {
		args = append(args, f.TemplateID)
		preds = append(preds, fmt.Sprintf("work_order_template_id = $%d", len(args)))
	}
	if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		preds = append(preds, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// WorkOrderRepo persists work orders and their inspection instances.
type WorkOrderRepo struct {
	DB *sql.DB
}

// NewWorkOrderRepo returns a new WorkOrderRepo.
func NewWorkOrderRepo(db *sql.DB) *WorkOrderRepo {
	return &WorkOrderRepo{DB: db}
}

func scanWorkOrder(row interface{ Scan(...interface{}) error }) (*models.WorkOrder, error) {
	w := &models.WorkOrder{}
	var dueDate sql.NullTime
	var skills pq.StringArray
	err := row.Scan(
		&w.ID, &w.WorkOrderRef, &w.Title, &w.Description, &w.AssignedTo, &w.Location, &w.Priority,
		&w.Status, &dueDate, &w.EstimatedDuration, &skills, &w.WorkOrderTemplateID,
		&w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.RequiredSkills = []string(skills)
	if dueDate.Valid {
		t := dueDate.Time
		w.DueDate = &t
	}
	return w, nil
}

// CreateTx inserts a work order and all of its inspections inside the
// caller's transaction, so a failed insert leaves nothing behind.
func (r *WorkOrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, w *models.WorkOrder) error {
	query := `
		INSERT INTO work_orders
			(id, work_order_ref, title, description, assigned_to, location, priority, status,
			 due_date, estimated_duration, required_skills, work_order_template_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRowContext(ctx, query,
		w.ID, w.WorkOrderRef, w.Title, w.Description, w.AssignedTo, w.Location, w.Priority, w.Status,
		w.DueDate, w.EstimatedDuration, pq.Array(w.RequiredSkills), w.WorkOrderTemplateID, w.CreatedBy,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range w.Inspections {
		ins := &w.Inspections[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inspections (id, inspection_ref, work_order_id, template_id, status, required, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, ins.ID, ins.InspectionRef, ins.WorkOrderID, ins.TemplateID, ins.Status, ins.Required, ins.Order)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns one work order with its inspections in position order, or
// nil when absent.
func (r *WorkOrderRepo) GetByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_orders WHERE id = $1`, workOrderColumns)
	w, err := scanWorkOrder(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, inspection_ref, work_order_id, template_id, status, required, position
		FROM inspections
		WHERE work_order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ins models.Inspection
		if err := rows.Scan(&ins.ID, &ins.InspectionRef, &ins.WorkOrderID, &ins.TemplateID,
			&ins.Status, &ins.Required, &ins.Order); err != nil {
			return nil, err
		}
		w.Inspections = append(w.Inspections, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns work orders matching the filter, newest first, without
// inspections.
func (r *WorkOrderRepo) List(ctx context.Context, filter WorkOrderFilter, limit, offset int) ([]models.WorkOrder, error) {
	where, args := filter.buildWhere()
	query := fmt.Sprintf(
		`SELECT %s FROM work_orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		workOrderColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Count returns the number of work orders matching the filter.
func (r *WorkOrderRepo) Count(ctx context.Context, filter WorkOrderFilter) (int, error) {
	where, args := filter.buildWhere()
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM work_orders"+where, args...).Scan(&n)
	return n, err
}
