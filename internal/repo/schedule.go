package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/crucial707/inspect-ops/internal/models"
)

// scheduleColumns is the column list shared by every schedule SELECT.
const scheduleColumns = `id, name, description, work_order_template_id, assigned_to, assigned_group,
	location, priority, frequency, interval_count, start_date, end_date, days_of_week,
	day_of_month, time_of_day, timezone, is_active, next_due, last_generated,
	total_generated, created_by, created_at, updated_at`

// ScheduleFilter narrows schedule listings. Nil/zero fields are ignored.
// Each field maps to one explicit predicate; there is no ad hoc query
// mutation outside buildWhere.
type ScheduleFilter struct {
	IsActive  *bool
	Frequency string
	Search    string // matches name or description, case-insensitive
}

// buildWhere renders the WHERE clause and its ordered args for a filter.
func (f ScheduleFilter) buildWhere() (string, []interface{}) {
	var preds []string
	var args []interface{}

	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		preds = append(preds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.Frequency != "" {
		args = append(args, f.Frequency)
		preds = append(preds, fmt.Sprintf("frequency = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		preds = append(preds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// scheduleSortColumns whitelists sortable columns; anything else falls back
// to next_due.
var scheduleSortColumns = map[string]string{
	"next_due":        "next_due",
	"name":            "name",
	"frequency":       "frequency",
	"start_date":      "start_date",
	"last_generated":  "last_generated",
	"total_generated": "total_generated",
	"created_at":      "created_at",
}

// ScheduleRepo persists recurring schedules.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

func scanSchedule(row interface{ Scan(...interface{}) error }) (*models.RecurringSchedule, error) {
	s := &models.RecurringSchedule{}
	var endDate, nextDue, lastGenerated sql.NullTime
	var daysOfWeek pq.Int64Array
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &s.WorkOrderTemplateID, &s.AssignedTo, &s.AssignedGroup,
		&s.Location, &s.Priority, &s.Frequency, &s.Interval, &s.StartDate, &endDate, &daysOfWeek,
		&s.DayOfMonth, &s.TimeOfDay, &s.Timezone, &s.IsActive, &nextDue, &lastGenerated,
		&s.TotalGenerated, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.DaysOfWeek = []int64(daysOfWeek)
	if endDate.Valid {
		s.EndDate = &endDate.Time
	}
	if nextDue.Valid {
		t := nextDue.Time
		s.NextDue = &t
	}
	if lastGenerated.Valid {
		t := lastGenerated.Time
		s.LastGenerated = &t
	}
	return s, nil
}

// List returns schedules matching the filter, paginated. sortBy is checked
// against the whitelist; sortDesc flips the direction.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter, sortBy string, sortDesc bool, limit, offset int) ([]models.RecurringSchedule, error) {
	col, ok := scheduleSortColumns[sortBy]
	if !ok {
		col = "next_due"
	}
	dir := "ASC"
	if sortDesc {
		dir = "DESC"
	}
	where, args := filter.buildWhere()
	query := fmt.Sprintf(
		`SELECT %s FROM recurring_schedules%s ORDER BY %s %s NULLS LAST LIMIT $%d OFFSET $%d`,
		scheduleColumns, where, col, dir, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RecurringSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Count returns the number of schedules matching the filter.
func (r *ScheduleRepo) Count(ctx context.Context, filter ScheduleFilter) (int, error) {
	where, args := filter.buildWhere()
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM recurring_schedules"+where, args...).Scan(&n)
	return n, err
}

// GetByID returns one schedule by id, or nil when absent.
func (r *ScheduleRepo) GetByID(ctx context.Context, id string) (*models.RecurringSchedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM recurring_schedules WHERE id = $1`, scheduleColumns)
	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new schedule and fills in its timestamps.
func (r *ScheduleRepo) Create(ctx context.Context, s *models.RecurringSchedule) error {
	query := `
		INSERT INTO recurring_schedules
			(id, name, description, work_order_template_id, assigned_to, assigned_group,
			 location, priority, frequency, interval_count, start_date, end_date, days_of_week,
			 day_of_month, time_of_day, timezone, is_active, next_due, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at
	`
	return r.DB.QueryRowContext(ctx, query,
		s.ID, s.Name, s.Description, s.WorkOrderTemplateID, s.AssignedTo, s.AssignedGroup,
		s.Location, s.Priority, s.Frequency, s.Interval, s.StartDate, s.EndDate,
		pq.Array(s.DaysOfWeek), s.DayOfMonth, s.TimeOfDay, s.Timezone, s.IsActive,
		s.NextDue, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// Update rewrites a schedule's editable fields. Generation counters are only
// touched by Advance.
func (r *ScheduleRepo) Update(ctx context.Context, s *models.RecurringSchedule) error {
	query := `
		UPDATE recurring_schedules
		SET name = $1, description = $2, assigned_to = $3, assigned_group = $4,
			location = $5, priority = $6, frequency = $7, interval_count = $8,
			start_date = $9, end_date = $10, days_of_week = $11, day_of_month = $12,
			time_of_day = $13, timezone = $14, is_active = $15, next_due = $16,
			updated_at = now()
		WHERE id = $17
	`
	_, err := r.DB.ExecContext(ctx, query,
		s.Name, s.Description, s.AssignedTo, s.AssignedGroup,
		s.Location, s.Priority, s.Frequency, s.Interval,
		s.StartDate, s.EndDate, pq.Array(s.DaysOfWeek), s.DayOfMonth,
		s.TimeOfDay, s.Timezone, s.IsActive, s.NextDue, s.ID,
	)
	return err
}

// SetActive flips the active flag only; next_due is deliberately untouched
// so a paused schedule keeps its position.
func (r *ScheduleRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE recurring_schedules SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a schedule by id.
func (r *ScheduleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM recurring_schedules WHERE id = $1`, id)
	return err
}

// ListDueToday returns active schedules due within the UTC day containing now.
func (r *ScheduleRepo) ListDueToday(ctx context.Context, now time.Time) ([]models.RecurringSchedule, error) {
	start := now.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	query := fmt.Sprintf(`
		SELECT %s FROM recurring_schedules
		WHERE is_active = true AND next_due >= $1 AND next_due < $2
		ORDER BY next_due
	`, scheduleColumns)
	return r.queryMany(ctx, query, start, end)
}

// ListOverdue returns active schedules with next_due in the past, earliest
// (most overdue) first.
func (r *ScheduleRepo) ListOverdue(ctx context.Context, now time.Time) ([]models.RecurringSchedule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM recurring_schedules
		WHERE is_active = true AND next_due < $1
		ORDER BY next_due ASC
	`, scheduleColumns)
	return r.queryMany(ctx, query, now)
}

func (r *ScheduleRepo) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.RecurringSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RecurringSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// AdvanceTx moves a schedule forward after one successful generation, inside
// the caller's transaction. The update only applies while the schedule is
// still active and total_generated and next_due still match what the caller
// read; zero rows affected means another generation won the race or the
// schedule was paused in between.
//
// deactivate additionally clears is_active, used when the new next_due falls
// past the schedule's end date.
func (r *ScheduleRepo) AdvanceTx(ctx context.Context, tx *sql.Tx, id string, generatedAt, nextDue time.Time, expectedTotal int, expectedNextDue *time.Time, deactivate bool) (bool, error) {
	query := `
		UPDATE recurring_schedules
		SET last_generated = $1, next_due = $2, total_generated = total_generated + 1,
			is_active = NOT $3, updated_at = now()
		WHERE id = $4 AND is_active = true AND total_generated = $5 AND next_due IS NOT DISTINCT FROM $6
	`
	res, err := tx.ExecContext(ctx, query, generatedAt, nextDue, deactivate, id, expectedTotal, expectedNextDue)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountActiveByTemplate returns how many active schedules reference the
// given work order template. Used by the template delete guard.
func (r *ScheduleRepo) CountActiveByTemplate(ctx context.Context, templateID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_schedules WHERE work_order_template_id = $1 AND is_active = true`,
		templateID,
	).Scan(&n)
	return n, err
}
