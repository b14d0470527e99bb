// Package repository persists budgets, their version snapshots and templates.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("budget not found")
	ErrSlugTaken = errors.New("budget slug already exists")
)

type Budget struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	Title          string
	ContactID      *uuid.UUID
	LeadID         *uuid.UUID
	Status         string
	Description    string
	TemplateID     *uuid.UUID
	Slug           string
	Version        int
	PDFFileKey     *string
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type BudgetUpdate struct {
	Title         *string
	Description   *string
	Status        *string
	TemplateID    *uuid.UUID
	ClearTemplate bool
}

type Version struct {
	ID          uuid.UUID
	BudgetID    uuid.UUID
	Version     int
	Title       string
	Description string
	Status      string
	ChangeKind  string
	ChangedBy   *uuid.UUID
	CreatedAt   time.Time
}

type ListParams struct {
	Scope          access.Scope
	OrganizationID *uuid.UUID
	Status         *string
	ContactID      *uuid.UUID
	LeadID         *uuid.UUID
	Search         string
	Offset         int
	Limit          int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const budgetColumns = `id, organization_id, branch_id, title, contact_id, lead_id, status, description,
    template_id, slug, version, pdf_file_key, created_by, created_at, updated_at`

func scanBudget(row pgx.Row) (Budget, error) {
	var b Budget
	err := row.Scan(&b.ID, &b.OrganizationID, &b.BranchID, &b.Title, &b.ContactID, &b.LeadID, &b.Status,
		&b.Description, &b.TemplateID, &b.Slug, &b.Version, &b.PDFFileKey, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, ErrNotFound
	}
	return b, err
}

// SlugsLike returns base and every "base-N" slug already stored.
func (r *Repository) SlugsLike(ctx context.Context, base string) ([]string, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT slug FROM budgets
    WHERE slug = $1 OR slug ~ ('^' || $2 || '-[0-9]+$')
  `, base, regexpQuote(base))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slugs := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// Create inserts a budget at version 1. A unique violation on slug returns
// ErrSlugTaken so the caller can pick the next suffix.
func (r *Repository) Create(ctx context.Context, b Budget) (Budget, error) {
	created, err := scanBudget(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO budgets (organization_id, branch_id, title, contact_id, lead_id, status, description, template_id, slug, created_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    RETURNING `+budgetColumns,
		b.OrganizationID, b.BranchID, b.Title, b.ContactID, b.LeadID, b.Status, b.Description, b.TemplateID, b.Slug, b.CreatedBy))
	if isUniqueViolation(err, "budgets_slug_key") {
		return Budget{}, ErrSlugTaken
	}
	return created, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Budget, error) {
	return scanBudget(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id))
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (Budget, error) {
	return scanBudget(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1 FOR UPDATE`, id))
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (Budget, error) {
	return scanBudget(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE slug = $1`, slug))
}

// Update applies the changed fields and bumps the version.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params BudgetUpdate) (Budget, error) {
	fields := []struct {
		enabled bool
		column  string
		value   any
	}{
		{params.Title != nil, "title", params.Title},
		{params.Description != nil, "description", params.Description},
		{params.Status != nil, "status", params.Status},
		{params.TemplateID != nil, "template_id", params.TemplateID},
		{params.TemplateID == nil && params.ClearTemplate, "template_id", nil},
	}

	set := []string{"version = version + 1", "updated_at = now()"}
	args := []any{id}
	for _, f := range fields {
		if !f.enabled {
			continue
		}
		args = append(args, f.value)
		set = append(set, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}

	query := fmt.Sprintf(`UPDATE budgets SET %s WHERE id = $1 RETURNING %s`, strings.Join(set, ", "), budgetColumns)
	return scanBudget(db.Querier(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *Repository) SetPDFFileKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx,
		`UPDATE budgets SET pdf_file_key = $2, updated_at = now() WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List applies the caller's scope. Agents see the budgets they created.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Budget, int, error) {
	conds, args := params.Scope.SQLFilter("b", nil, nil)
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}
	if params.OrganizationID != nil {
		add("b.organization_id = $%d", *params.OrganizationID)
	}
	if params.Status != nil {
		add("b.status = $%d", *params.Status)
	}
	if params.ContactID != nil {
		add("b.contact_id = $%d", *params.ContactID)
	}
	if params.LeadID != nil {
		add("b.lead_id = $%d", *params.LeadID)
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		add("(b.title ILIKE $%[1]d OR b.slug ILIKE $%[1]d)", "%"+s+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	q := db.Querier(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM `+scopedBudgets+` `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
    SELECT %s
    FROM %s
    %s
    ORDER BY b.updated_at DESC, b.id
    LIMIT $%d OFFSET $%d
  `, prefixed("b", budgetColumns), scopedBudgets, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

// scopedBudgets exposes created_by as assigned_to so the shared scope filter
// applies to budgets.
const scopedBudgets = `(SELECT budgets.*, budgets.created_by AS assigned_to FROM budgets) b`

func (r *Repository) InsertVersion(ctx context.Context, v Version) error {
	_, err := db.Querier(ctx, r.pool).Exec(ctx, `
    INSERT INTO budget_versions (budget_id, version, title, description, status, change_kind, changed_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
  `, v.BudgetID, v.Version, v.Title, v.Description, v.Status, v.ChangeKind, v.ChangedBy)
	return err
}

func (r *Repository) ListVersions(ctx context.Context, budgetID uuid.UUID) ([]Version, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT id, budget_id, version, title, description, status, change_kind, changed_by, created_at
    FROM budget_versions
    WHERE budget_id = $1
    ORDER BY version DESC
  `, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Version, 0)
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.BudgetID, &v.Version, &v.Title, &v.Description, &v.Status, &v.ChangeKind, &v.ChangedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// regexpQuote escapes the characters a slug could carry into a POSIX regex.
// Slugs only hold [a-z0-9-], so this guards against future changes.
func regexpQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
