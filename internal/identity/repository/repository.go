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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Organization struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Branch struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Province       *string
	CreatedAt      time.Time
}

type User struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	FullName       string
	Email          string
	Role           string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UserUpdate struct {
	Role        *string
	BranchID    *uuid.UUID
	ClearBranch bool
	Active      *bool
	FullName    *string
}

const userColumns = `id, organization_id, branch_id, full_name, email, role, active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.BranchID, &u.FullName, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repository) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	var org Organization
	err := db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO organizations (name)
    VALUES ($1)
    RETURNING id, name, created_at
  `, name).Scan(&org.ID, &org.Name, &org.CreatedAt)
	return org, err
}

func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	var org Organization
	err := db.Querier(ctx, r.pool).QueryRow(ctx, `
    SELECT id, name, created_at FROM organizations WHERE id = $1
  `, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return org, err
}

func (r *Repository) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT id, name, created_at FROM organizations ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Organization, 0)
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, org)
	}
	return items, rows.Err()
}

func (r *Repository) CreateBranch(ctx context.Context, orgID uuid.UUID, name string, province *string) (Branch, error) {
	var b Branch
	err := db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO branches (organization_id, name, province)
    VALUES ($1, $2, $3)
    RETURNING id, organization_id, name, province, created_at
  `, orgID, name, province).Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Province, &b.CreatedAt)
	if isUniqueViolation(err) {
		return Branch{}, ErrDuplicate
	}
	return b, err
}

func (r *Repository) GetBranch(ctx context.Context, id uuid.UUID) (Branch, error) {
	var b Branch
	err := db.Querier(ctx, r.pool).QueryRow(ctx, `
    SELECT id, organization_id, name, province, created_at FROM branches WHERE id = $1
  `, id).Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Province, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, ErrNotFound
	}
	return b, err
}

func (r *Repository) ListBranches(ctx context.Context, orgID uuid.UUID) ([]Branch, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT id, organization_id, name, province, created_at
    FROM branches
    WHERE organization_id = $1
    ORDER BY name
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Branch, 0)
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.OrganizationID, &b.Name, &b.Province, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	created, err := scanUser(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO users (id, organization_id, branch_id, full_name, email, role, active)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING `+userColumns,
		u.ID, u.OrganizationID, u.BranchID, u.FullName, strings.ToLower(u.Email), u.Role, u.Active))
	if isUniqueViolation(err) {
		return User{}, ErrDuplicate
	}
	return created, err
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(db.Querier(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *Repository) ListUsers(ctx context.Context, orgID uuid.UUID, branchID *uuid.UUID, activeOnly bool) ([]User, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE organization_id = $1
      AND ($2::uuid IS NULL OR branch_id = $2)
      AND (NOT $3 OR active)
    ORDER BY full_name
  `, orgID, branchID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, params UserUpdate) (User, error) {
	fields := []struct {
		enabled bool
		column  string
		value   any
	}{
		{params.Role != nil, "role", params.Role},
		{params.BranchID != nil || params.ClearBranch, "branch_id", params.BranchID},
		{params.Active != nil, "active", params.Active},
		{params.FullName != nil, "full_name", params.FullName},
	}

	set := make([]string, 0, len(fields)+1)
	args := []any{id}
	for _, f := range fields {
		if !f.enabled {
			continue
		}
		args = append(args, f.value)
		set = append(set, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	if len(set) == 0 {
		return r.GetUser(ctx, id)
	}
	set = append(set, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s`, strings.Join(set, ", "), userColumns)
	return scanUser(db.Querier(ctx, r.pool).QueryRow(ctx, query, args...))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
