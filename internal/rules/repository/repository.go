// Package repository stores organization-scoped assignment rules.
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

var ErrNotFound = errors.New("rule not found")

type Rule struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Type           string
	Condition      string
	AssignedUsers  []uuid.UUID
	Active         bool
	Priority       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RuleUpdate struct {
	Type          *string
	Condition     *string
	AssignedUsers *[]uuid.UUID
	Active        *bool
	Priority      *int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `id, organization_id, type, condition, assigned_users, active, priority, created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.OrganizationID, &r.Type, &r.Condition, &r.AssignedUsers, &r.Active, &r.Priority, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	if r.AssignedUsers == nil {
		r.AssignedUsers = []uuid.UUID{}
	}
	return r, err
}

func (r *Repository) list(ctx context.Context, orgID uuid.UUID, activeOnly bool) ([]Rule, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT `+ruleColumns+`
    FROM rules
    WHERE organization_id = $1 AND (NOT $2 OR active)
    ORDER BY priority ASC, created_at ASC
  `, orgID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	return items, rows.Err()
}

// List returns every rule of the organization in evaluation order.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]Rule, error) {
	return r.list(ctx, orgID, false)
}

// ListActive returns the active rules of the organization in evaluation order.
func (r *Repository) ListActive(ctx context.Context, orgID uuid.UUID) ([]Rule, error) {
	return r.list(ctx, orgID, true)
}

func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (Rule, error) {
	return scanRule(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = $1 AND organization_id = $2`, id, orgID))
}

func (r *Repository) Create(ctx context.Context, rule Rule) (Rule, error) {
	return scanRule(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO rules (organization_id, type, condition, assigned_users, active, priority)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING `+ruleColumns,
		rule.OrganizationID, rule.Type, rule.Condition, rule.AssignedUsers, rule.Active, rule.Priority))
}

func (r *Repository) Update(ctx context.Context, orgID, id uuid.UUID, params RuleUpdate) (Rule, error) {
	fields := []struct {
		enabled bool
		column  string
		value   any
	}{
		{params.Type != nil, "type", params.Type},
		{params.Condition != nil, "condition", params.Condition},
		{params.AssignedUsers != nil, "assigned_users", derefUsers(params.AssignedUsers)},
		{params.Active != nil, "active", params.Active},
		{params.Priority != nil, "priority", params.Priority},
	}

	set := make([]string, 0, len(fields)+1)
	args := []any{id, orgID}
	for _, f := range fields {
		if !f.enabled {
			continue
		}
		args = append(args, f.value)
		set = append(set, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	if len(set) == 0 {
		return r.Get(ctx, orgID, id)
	}
	set = append(set, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE rules SET %s WHERE id = $1 AND organization_id = $2 RETURNING %s`,
		strings.Join(set, ", "), ruleColumns)
	return scanRule(db.Querier(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx, `DELETE FROM rules WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every rule of the organization. Used by bulk replacement.
func (r *Repository) DeleteAll(ctx context.Context, orgID uuid.UUID) (int64, error) {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx, `DELETE FROM rules WHERE organization_id = $1`, orgID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func derefUsers(users *[]uuid.UUID) []uuid.UUID {
	if users == nil {
		return nil
	}
	return *users
}
