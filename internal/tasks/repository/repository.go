// Package repository stores follow-up tasks.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"travel_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         *uuid.UUID
	ContactID      *uuid.UUID
	AssignedTo     uuid.UUID
	Title          string
	DueAt          time.Time
	DoneAt         *time.Time
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
}

// Reminder is an open task joined with its assignee's contact details.
type Reminder struct {
	Task
	AssigneeName  string
	AssigneeEmail string
}

type ListParams struct {
	OrganizationID *uuid.UUID
	// VisibleTo restricts rows to tasks assigned to or created by the user.
	VisibleTo  *uuid.UUID
	AssignedTo *uuid.UUID
	LeadID     *uuid.UUID
	ContactID  *uuid.UUID
	OpenOnly   bool
	DueBefore  *time.Time
	Offset     int
	Limit      int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, organization_id, lead_id, contact_id, assigned_to, title, due_at, done_at, created_by, created_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.OrganizationID, &t.LeadID, &t.ContactID, &t.AssignedTo, &t.Title, &t.DueAt, &t.DoneAt, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) Create(ctx context.Context, t Task) (Task, error) {
	return scanTask(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO tasks (organization_id, lead_id, contact_id, assigned_to, title, due_at, created_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING `+taskColumns,
		t.OrganizationID, t.LeadID, t.ContactID, t.AssignedTo, t.Title, t.DueAt, t.CreatedBy))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Task, error) {
	return scanTask(db.Querier(ctx, r.pool).QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// Complete stamps done_at once. Completing a done task returns it unchanged.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID) (Task, error) {
	return scanTask(db.Querier(ctx, r.pool).QueryRow(ctx, `
    UPDATE tasks SET done_at = COALESCE(done_at, now())
    WHERE id = $1
    RETURNING `+taskColumns, id))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Task, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(expr, "$?", fmt.Sprintf("$%d", len(args))))
	}
	if params.OrganizationID != nil {
		add("organization_id = $?", *params.OrganizationID)
	}
	if params.VisibleTo != nil {
		add("(assigned_to = $? OR created_by = $?)", *params.VisibleTo)
	}
	if params.AssignedTo != nil {
		add("assigned_to = $?", *params.AssignedTo)
	}
	if params.LeadID != nil {
		add("lead_id = $?", *params.LeadID)
	}
	if params.ContactID != nil {
		add("contact_id = $?", *params.ContactID)
	}
	if params.OpenOnly {
		conds = append(conds, "done_at IS NULL")
	}
	if params.DueBefore != nil {
		add("due_at < $?", *params.DueBefore)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	q := db.Querier(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM tasks `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
    SELECT %s
    FROM tasks
    %s
    ORDER BY done_at IS NOT NULL, due_at ASC, id
    LIMIT $%d OFFSET $%d
  `, taskColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// DueOpen returns open tasks due before the given instant across every
// organization, oldest due first.
func (r *Repository) DueOpen(ctx context.Context, before time.Time, limit int) ([]Reminder, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT `+prefixed("t", taskColumns)+`, u.full_name, u.email
    FROM tasks t
    JOIN users u ON u.id = t.assigned_to
    WHERE t.done_at IS NULL AND t.due_at < $1 AND u.active
    ORDER BY t.due_at ASC, t.id
    LIMIT $2
  `, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Reminder, 0)
	for rows.Next() {
		var rm Reminder
		t := &rm.Task
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.LeadID, &t.ContactID, &t.AssignedTo, &t.Title, &t.DueAt, &t.DoneAt, &t.CreatedBy, &t.CreatedAt,
			&rm.AssigneeName, &rm.AssigneeEmail); err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, rows.Err()
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
