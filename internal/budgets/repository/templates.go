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
)

var ErrTemplateNotFound = errors.New("budget template not found")

type Template struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Body           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TemplateUpdate struct {
	Name *string
	Body *string
}

const templateColumns = `id, organization_id, name, body, created_at, updated_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Body, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	return t, err
}

func (r *Repository) ListTemplates(ctx context.Context, orgID uuid.UUID) ([]Template, error) {
	rows, err := db.Querier(ctx, r.pool).Query(ctx,
		`SELECT `+templateColumns+` FROM budget_templates WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *Repository) GetTemplate(ctx context.Context, orgID, id uuid.UUID) (Template, error) {
	return scanTemplate(db.Querier(ctx, r.pool).QueryRow(ctx,
		`SELECT `+templateColumns+` FROM budget_templates WHERE id = $1 AND organization_id = $2`, id, orgID))
}

func (r *Repository) CreateTemplate(ctx context.Context, t Template) (Template, error) {
	return scanTemplate(db.Querier(ctx, r.pool).QueryRow(ctx, `
    INSERT INTO budget_templates (organization_id, name, body)
    VALUES ($1, $2, $3)
    RETURNING `+templateColumns, t.OrganizationID, t.Name, t.Body))
}

func (r *Repository) UpdateTemplate(ctx context.Context, orgID, id uuid.UUID, params TemplateUpdate) (Template, error) {
	set := []string{"updated_at = now()"}
	args := []any{id, orgID}
	if params.Name != nil {
		args = append(args, *params.Name)
		set = append(set, fmt.Sprintf("name = $%d", len(args)))
	}
	if params.Body != nil {
		args = append(args, *params.Body)
		set = append(set, fmt.Sprintf("body = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE budget_templates SET %s WHERE id = $1 AND organization_id = $2 RETURNING %s`,
		strings.Join(set, ", "), templateColumns)
	return scanTemplate(db.Querier(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *Repository) DeleteTemplate(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := db.Querier(ctx, r.pool).Exec(ctx,
		`DELETE FROM budget_templates WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
