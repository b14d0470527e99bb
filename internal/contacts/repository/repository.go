// Package repository persists contacts, including the idempotent insert used
// when a lead is converted.
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
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("contact not found")

type Contact struct {
	ID                        uuid.UUID
	OrganizationID            uuid.UUID
	BranchID                  *uuid.UUID
	FullName                  string
	Phone                     string
	Email                     *string
	City                      *string
	Province                  *string
	Origin                    *string
	Passengers                *int
	TravelDate                *time.Time
	Tag                       *string
	AssignedTo                *uuid.UUID
	Notes                     *string
	OriginalLeadID            *uuid.UUID
	OriginalLeadStatus        *string
	OriginalLeadInquiryNumber *string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

type ContactUpdate struct {
	FullName   *string
	Phone      *string
	Email      *string
	City       *string
	Province   *string
	Origin     *string
	Passengers *int
	TravelDate *time.Time
	Tag        *string
	AssignedTo *uuid.UUID
	Notes      *string
}

type ListParams struct {
	Scope          access.Scope
	OrganizationID *uuid.UUID
	Search         string
	Tag            *string
	AssignedTo     *uuid.UUID
	Offset         int
	Limit          int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contactColumns = `id, organization_id, branch_id, full_name, phone, email, city, province, origin,
    passengers, travel_date, tag, assigned_to, notes, original_lead_id, original_lead_status,
    original_lead_inquiry_number, created_at, updated_at`

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.BranchID, &c.FullName, &c.Phone, &c.Email, &c.City, &c.Province, &c.Origin,
		&c.Passengers, &c.TravelDate, &c.Tag, &c.AssignedTo, &c.Notes, &c.OriginalLeadID, &c.OriginalLeadStatus,
		&c.OriginalLeadInquiryNumber, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) insert(ctx context.Context, c Contact, onConflict string) (Contact, error) {
	return scanContact(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO contacts (
      organization_id, branch_id, full_name, phone, email, city, province, origin, passengers,
      travel_date, tag, assigned_to, notes, original_lead_id, original_lead_status, original_lead_inquiry_number
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `+onConflict+`
    RETURNING `+contactColumns,
		c.OrganizationID, c.BranchID, c.FullName, c.Phone, c.Email, c.City, c.Province, c.Origin, c.Passengers,
		c.TravelDate, c.Tag, c.AssignedTo, c.Notes, c.OriginalLeadID, c.OriginalLeadStatus, c.OriginalLeadInquiryNumber,
	))
}

func (r *Repository) Create(ctx context.Context, c Contact) (Contact, error) {
	return r.insert(ctx, c, "")
}

// CreateFromLead inserts the lineage contact for c.OriginalLeadID. When one
// already exists it is returned unchanged with created=false.
func (r *Repository) CreateFromLead(ctx context.Context, c Contact) (Contact, bool, error) {
	if c.OriginalLeadID == nil {
		return Contact{}, false, errors.New("original lead id is required")
	}
	created, err := r.insert(ctx, c, `ON CONFLICT (original_lead_id) WHERE original_lead_id IS NOT NULL DO NOTHING`)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Contact{}, false, err
	}
	existing, err := r.GetByLeadID(ctx, *c.OriginalLeadID)
	return existing, false, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contact, error) {
	return scanContact(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
}

func (r *Repository) GetByLeadID(ctx context.Context, leadID uuid.UUID) (Contact, error) {
	return scanContact(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE original_lead_id = $1`, leadID))
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params ContactUpdate) (Contact, error) {
	fields := []struct {
		enabled bool
		column  string
		value   any
	}{
		{params.FullName != nil, "full_name", params.FullName},
		{params.Phone != nil, "phone", params.Phone},
		{params.Email != nil, "email", params.Email},
		{params.City != nil, "city", params.City},
		{params.Province != nil, "province", params.Province},
		{params.Origin != nil, "origin", params.Origin},
		{params.Passengers != nil, "passengers", params.Passengers},
		{params.TravelDate != nil, "travel_date", params.TravelDate},
		{params.Tag != nil, "tag", params.Tag},
		{params.AssignedTo != nil, "assigned_to", params.AssignedTo},
		{params.Notes != nil, "notes", params.Notes},
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
		return r.GetByID(ctx, id)
	}
	set = append(set, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE id = $1 RETURNING %s`, strings.Join(set, ", "), contactColumns)
	return scanContact(db.Querier(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Contact, int, error) {
	conds, args := params.Scope.SQLFilter("c", nil, nil)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if params.OrganizationID != nil {
		add("c.organization_id = $%d", *params.OrganizationID)
	}
	if params.Tag != nil {
		add("c.tag = $%d", *params.Tag)
	}
	if params.AssignedTo != nil {
		add("c.assigned_to = $%d", *params.AssignedTo)
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(c.full_name ILIKE $%d OR c.phone ILIKE $%d OR c.email ILIKE $%d OR c.original_lead_inquiry_number ILIKE $%d)", n, n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	q := db.Querier(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM contacts c `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
    SELECT %s
    FROM contacts c
    %s
    ORDER BY c.created_at DESC, c.id
    LIMIT $%d OFFSET $%d
  `, prefixed("c", contactColumns), where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
