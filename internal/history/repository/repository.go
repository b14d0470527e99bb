// Package repository appends and reads lead_history rows. There is no update
// or delete path.
package repository

import (
	"context"
	"time"

	"travel_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	LeadID         *uuid.UUID
	ContactID      *uuid.UUID
	Action         string
	Description    string
	UserID         *uuid.UUID
	UserName       *string
	CreatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, e Entry) error {
	_, err := db.Querier(ctx, r.pool).Exec(ctx, `
    INSERT INTO lead_history (organization_id, lead_id, contact_id, action, description, user_id)
    VALUES ($1, $2, $3, $4, $5, $6)
  `, e.OrganizationID, e.LeadID, e.ContactID, e.Action, e.Description, e.UserID)
	return err
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Entry, error) {
	return r.list(ctx, "h.lead_id = $1", leadID)
}

func (r *Repository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]Entry, error) {
	return r.list(ctx, "h.contact_id = $1", contactID)
}

func (r *Repository) list(ctx context.Context, where string, id uuid.UUID) ([]Entry, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT h.id, h.organization_id, h.lead_id, h.contact_id, h.action, h.description, h.user_id, u.full_name, h.created_at
    FROM lead_history h
    LEFT JOIN users u ON u.id = h.user_id
    WHERE `+where+`
    ORDER BY h.created_at DESC, h.id
    LIMIT 500
  `, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.LeadID, &e.ContactID, &e.Action, &e.Description, &e.UserID, &e.UserName, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
