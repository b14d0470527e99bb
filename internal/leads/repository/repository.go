// Package repository persists leads and their per-organization inquiry counter.
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

var ErrNotFound = errors.New("lead not found")

// InquiryPrefix precedes the zero-padded counter in inquiry numbers.
const InquiryPrefix = "CONS-"

type Lead struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	BranchID           *uuid.UUID
	InquiryNumber      string
	FullName           string
	Phone              string
	Email              *string
	Origin             *string
	Province           *string
	City               *string
	Passengers         *int
	TravelDate         *time.Time
	Status             string
	AssignedTo         *uuid.UUID
	ConvertedToContact *bool
	ArchivedReason     *string
	ArchivedAt         *time.Time
	Notes              *string
	Source             string
	CreatedBy          *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type CreateLeadParams struct {
	OrganizationID     uuid.UUID
	BranchID           *uuid.UUID
	FullName           string
	Phone              string
	Email              *string
	Origin             *string
	Province           *string
	City               *string
	Passengers         *int
	TravelDate         *time.Time
	Status             string
	AssignedTo         *uuid.UUID
	ConvertedToContact *bool
	Notes              *string
	Source             string
	CreatedBy          *uuid.UUID
}

// UpdateLeadParams carries a partial update. Nil pointers are left untouched;
// the Clear* flags write NULL.
type UpdateLeadParams struct {
	FullName           *string
	Phone              *string
	Email              *string
	Origin             *string
	Province           *string
	City               *string
	Passengers         *int
	TravelDate         *time.Time
	Notes              *string
	BranchID           *uuid.UUID
	Status             *string
	AssignedTo         *uuid.UUID
	ClearAssignee      bool
	ConvertedToContact *bool
	ArchivedReason     *string
	ArchivedAt         *time.Time

	// ClearArchive nulls both archive columns unless they are being set.
	ClearArchive        bool
	ClearArchivedReason bool
}

type ListParams struct {
	Scope           access.Scope
	OrganizationID  *uuid.UUID
	BranchID        *uuid.UUID
	Search          string
	Origin          string
	Province        string
	Status          *string
	AssignedTo      *uuid.UUID
	Unassigned      bool
	Source          *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	IncludeArchived bool
	SortBy          string
	SortOrder       string
	Offset          int
	Limit           int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, organization_id, branch_id, inquiry_number, full_name, phone, email, origin,
    province, city, passengers, travel_date, status, assigned_to, converted_to_contact,
    archived_reason, archived_at, notes, source, created_by, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.BranchID, &l.InquiryNumber, &l.FullName, &l.Phone, &l.Email, &l.Origin,
		&l.Province, &l.City, &l.Passengers, &l.TravelDate, &l.Status, &l.AssignedTo, &l.ConvertedToContact,
		&l.ArchivedReason, &l.ArchivedAt, &l.Notes, &l.Source, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

// NextInquiryNumber reserves the next inquiry number for the organization.
// The counter row is locked by the upsert, so concurrent callers serialize.
func (r *Repository) NextInquiryNumber(ctx context.Context, orgID uuid.UUID) (string, error) {
	var next int64
	err := db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO lead_counters (organization_id, last_value)
    VALUES ($1, 1)
    ON CONFLICT (organization_id) DO UPDATE SET last_value = lead_counters.last_value + 1
    RETURNING last_value
  `, orgID).Scan(&next)
	if err != nil {
		return "", err
	}
	return FormatInquiryNumber(next), nil
}

// FormatInquiryNumber renders a counter value as CONS-000001.
func FormatInquiryNumber(n int64) string {
	return fmt.Sprintf("%s%06d", InquiryPrefix, n)
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	var lead Lead
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		number, err := r.NextInquiryNumber(ctx, params.OrganizationID)
		if err != nil {
			return err
		}
		lead, err = scanLead(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO leads (
      organization_id, branch_id, inquiry_number, full_name, phone, email, origin, province, city,
      passengers, travel_date, status, assigned_to, converted_to_contact, notes, source, created_by
    )
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    RETURNING `+leadColumns,
			params.OrganizationID, params.BranchID, number, params.FullName, params.Phone, params.Email,
			params.Origin, params.Province, params.City, params.Passengers, params.TravelDate, params.Status,
			params.AssignedTo, params.ConvertedToContact, params.Notes, params.Source, params.CreatedBy,
		))
		return err
	})
	return lead, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

// GetByIDForUpdate locks the lead row for the rest of the enclosing transaction.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
}

// GetByPhone returns the most recent non-archived lead with the given phone.
func (r *Repository) GetByPhone(ctx context.Context, orgID uuid.UUID, phone string) (Lead, error) {
	return scanLead(db.Querier(ctx, r.pool).QueryRow(ctx, `
    SELECT `+leadColumns+`
    FROM leads
    WHERE organization_id = $1 AND phone = $2 AND status <> 'archived'
    ORDER BY created_at DESC
    LIMIT 1
  `, orgID, phone))
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	fields := []struct {
		enabled bool
		column  string
		value   any
	}{
		{params.FullName != nil, "full_name", params.FullName},
		{params.Phone != nil, "phone", params.Phone},
		{params.Email != nil, "email", params.Email},
		{params.Origin != nil, "origin", params.Origin},
		{params.Province != nil, "province", params.Province},
		{params.City != nil, "city", params.City},
		{params.Passengers != nil, "passengers", params.Passengers},
		{params.TravelDate != nil, "travel_date", params.TravelDate},
		{params.Notes != nil, "notes", params.Notes},
		{params.BranchID != nil, "branch_id", params.BranchID},
		{params.Status != nil, "status", params.Status},
		{params.AssignedTo != nil, "assigned_to", params.AssignedTo},
		{params.ClearAssignee, "assigned_to", nil},
		{params.ConvertedToContact != nil, "converted_to_contact", params.ConvertedToContact},
		{params.ArchivedReason != nil, "archived_reason", params.ArchivedReason},
		{params.ArchivedAt != nil, "archived_at", params.ArchivedAt},
		{params.ArchivedReason == nil && (params.ClearArchive || params.ClearArchivedReason), "archived_reason", nil},
		{params.ArchivedAt == nil && params.ClearArchive, "archived_at", nil},
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

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $1 RETURNING %s`, strings.Join(set, ", "), leadColumns)
	return scanLead(db.Querier(ctx, r.pool).QueryRow(ctx, query, args...))
}

// Delete removes the lead and returns the row as it was.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(db.Querier(ctx, r.pool).QueryRow(ctx,
		`DELETE FROM leads WHERE id = $1 RETURNING `+leadColumns, id))
}

var sortColumns = map[string]string{
	"createdAt":     "l.created_at",
	"updatedAt":     "l.updated_at",
	"fullName":      "l.full_name",
	"inquiryNumber": "l.inquiry_number",
	"status":        "l.status",
	"travelDate":    "l.travel_date",
}

func (r *Repository) where(params ListParams) (string, []any) {
	conds, args := params.Scope.SQLFilter("l", nil, nil)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if params.OrganizationID != nil {
		add("l.organization_id = $%d", *params.OrganizationID)
	}
	if params.BranchID != nil {
		add("l.branch_id = $%d", *params.BranchID)
	}
	if params.Status != nil {
		add("l.status = $%d", *params.Status)
	} else if !params.IncludeArchived {
		conds = append(conds, "l.status <> 'archived'")
	}
	if params.AssignedTo != nil {
		add("l.assigned_to = $%d", *params.AssignedTo)
	}
	if params.Unassigned {
		conds = append(conds, "l.assigned_to IS NULL")
	}
	if params.Source != nil {
		add("l.source = $%d", *params.Source)
	}
	if o := strings.TrimSpace(params.Origin); o != "" {
		add("l.origin ILIKE $%d", "%"+o+"%")
	}
	if p := strings.TrimSpace(params.Province); p != "" {
		add("lower(l.province) = lower($%d)", p)
	}
	if params.CreatedFrom != nil {
		add("l.created_at >= $%d", *params.CreatedFrom)
	}
	if params.CreatedTo != nil {
		add("l.created_at < $%d", *params.CreatedTo)
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(l.full_name ILIKE $%d OR l.phone ILIKE $%d OR l.inquiry_number ILIKE $%d OR l.email ILIKE $%d)", n, n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	where, args := r.where(params)
	q := db.Querier(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM leads l `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[params.SortBy]
	if !ok {
		sortCol = "l.created_at"
	}
	order := "DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		order = "ASC"
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
    SELECT %s
    FROM leads l
    %s
    ORDER BY %s %s, l.id
    LIMIT $%d OFFSET $%d
  `, prefixed("l", leadColumns), where, sortCol, order, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lead)
	}
	return items, total, rows.Err()
}

// ListIDs returns up to limit ids matching the filter, newest first.
func (r *Repository) ListIDs(ctx context.Context, params ListParams, limit int) ([]uuid.UUID, error) {
	where, args := r.where(params)
	args = append(args, limit)
	rows, err := db.Querier(ctx, r.pool).Query(ctx,
		fmt.Sprintf(`SELECT l.id FROM leads l %s ORDER BY l.created_at DESC LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
