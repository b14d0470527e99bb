// Package repository stores inbox messages exchanged with contacts.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Message struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ContactID      uuid.UUID
	Direction      string
	Channel        string
	Body           string
	SenderUserID   *uuid.UUID
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Conversation is one contact's thread summary.
type Conversation struct {
	ContactID      uuid.UUID
	OrganizationID uuid.UUID
	ContactName    string
	AssignedTo     *uuid.UUID
	LastMessage    Message
	Unread         int
}

type ConversationParams struct {
	Scope          access.Scope
	OrganizationID *uuid.UUID
	UnreadOnly     bool
	Offset         int
	Limit          int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `id, organization_id, contact_id, direction, channel, body, sender_user_id, read_at, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.OrganizationID, &m.ContactID, &m.Direction, &m.Channel, &m.Body, &m.SenderUserID, &m.ReadAt, &m.CreatedAt)
	return m, err
}

func (r *Repository) Create(ctx context.Context, m Message) (Message, error) {
	return scanMessage(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO inbox_messages (organization_id, contact_id, direction, channel, body, sender_user_id, read_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING `+messageColumns,
		m.OrganizationID, m.ContactID, m.Direction, m.Channel, m.Body, m.SenderUserID, m.ReadAt))
}

// ListForContact returns messages newest first. A non-nil before pages
// backwards from that instant.
func (r *Repository) ListForContact(ctx context.Context, contactID uuid.UUID, before *time.Time, limit int) ([]Message, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx, `
    SELECT `+messageColumns+`
    FROM inbox_messages
    WHERE contact_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
    ORDER BY created_at DESC, id DESC
    LIMIT $3
  `, contactID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// MarkRead stamps every unread inbound message of the contact.
func (r *Repository) MarkRead(ctx context.Context, contactID uuid.UUID) (int64, error) {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx, `
    UPDATE inbox_messages SET read_at = now()
    WHERE contact_id = $1 AND direction = 'inbound' AND read_at IS NULL
  `, contactID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Conversations lists one row per visible contact with messages, most recent
// activity first. Visibility follows the contact row.
func (r *Repository) Conversations(ctx context.Context, params ConversationParams) ([]Conversation, int, error) {
	conds, args := params.Scope.SQLFilter("c", nil, nil)
	if params.OrganizationID != nil {
		args = append(args, *params.OrganizationID)
		conds = append(conds, fmt.Sprintf("c.organization_id = $%d", len(args)))
	}
	if params.UnreadOnly {
		conds = append(conds, "u.unread > 0")
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	from := `
    FROM contacts c
    JOIN LATERAL (
        SELECT ` + prefixed("m", messageColumns) + `
        FROM inbox_messages m
        WHERE m.contact_id = c.id
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT 1
    ) last ON true
    LEFT JOIN LATERAL (
        SELECT COUNT(*)::int AS unread
        FROM inbox_messages m
        WHERE m.contact_id = c.id AND m.direction = 'inbound' AND m.read_at IS NULL
    ) u ON true
    ` + where

	q := db.Querier(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`
    SELECT c.id, c.organization_id, c.full_name, c.assigned_to, %s, u.unread
    %s
    ORDER BY last.created_at DESC, c.id
    LIMIT $%d OFFSET $%d
  `, prefixed("last", messageColumns), from, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Conversation, 0)
	for rows.Next() {
		var cv Conversation
		m := &cv.LastMessage
		if err := rows.Scan(&cv.ContactID, &cv.OrganizationID, &cv.ContactName, &cv.AssignedTo,
			&m.ID, &m.OrganizationID, &m.ContactID, &m.Direction, &m.Channel, &m.Body, &m.SenderUserID, &m.ReadAt, &m.CreatedAt,
			&cv.Unread); err != nil {
			return nil, 0, err
		}
		items = append(items, cv)
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
