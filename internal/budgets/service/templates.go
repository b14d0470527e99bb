package service

import (
	"context"
	"errors"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/budgets/render"
	"travel_crm_backend/internal/budgets/repository"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const templateNotFoundMsg = "budget template not found"

type TemplateInput struct {
	OrganizationID *uuid.UUID
	Name           string
	Body           string
}

type TemplateUpdateInput struct {
	Name *string
	Body *string
}

func (s *Service) ListTemplates(ctx context.Context, scope access.Scope, orgID *uuid.UUID) ([]repository.Template, error) {
	target, err := targetOrganization(scope, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTemplates(ctx, target)
}

func (s *Service) CreateTemplate(ctx context.Context, scope access.Scope, in TemplateInput) (repository.Template, error) {
	orgID, err := s.templateOrganization(scope, in.OrganizationID)
	if err != nil {
		return repository.Template{}, err
	}
	name := sanitize.Text(in.Name)
	if name == "" {
		return repository.Template{}, apperr.Validation("name is required")
	}
	if err := checkTemplateBody(in.Body); err != nil {
		return repository.Template{}, err
	}
	return s.repo.CreateTemplate(ctx, repository.Template{OrganizationID: orgID, Name: name, Body: in.Body})
}

func (s *Service) UpdateTemplate(ctx context.Context, scope access.Scope, orgID *uuid.UUID, id uuid.UUID, in TemplateUpdateInput) (repository.Template, error) {
	target, err := s.templateOrganization(scope, orgID)
	if err != nil {
		return repository.Template{}, err
	}
	params := repository.TemplateUpdate{Body: in.Body}
	if in.Name != nil {
		name := sanitize.Text(*in.Name)
		if name == "" {
			return repository.Template{}, apperr.Validation("name cannot be empty")
		}
		params.Name = &name
	}
	if in.Body != nil {
		if err := checkTemplateBody(*in.Body); err != nil {
			return repository.Template{}, err
		}
	}
	t, err := s.repo.UpdateTemplate(ctx, target, id, params)
	if errors.Is(err, repository.ErrTemplateNotFound) {
		return repository.Template{}, apperr.NotFound(templateNotFoundMsg)
	}
	return t, err
}

func (s *Service) DeleteTemplate(ctx context.Context, scope access.Scope, orgID *uuid.UUID, id uuid.UUID) error {
	target, err := s.templateOrganization(scope, orgID)
	if err != nil {
		return err
	}
	err = s.repo.DeleteTemplate(ctx, target, id)
	if errors.Is(err, repository.ErrTemplateNotFound) {
		return apperr.NotFound(templateNotFoundMsg)
	}
	return err
}

// Templates are shared by the whole organization, so only its admins (or a
// super admin) may change them.
func (s *Service) templateOrganization(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
	orgID, err := targetOrganization(scope, requested)
	if err != nil {
		return uuid.Nil, err
	}
	if !scope.CanManageOrganization(orgID) {
		return uuid.Nil, apperr.Forbidden("only organization admins can manage budget templates")
	}
	return orgID, nil
}

func checkTemplateBody(body string) error {
	if len(body) > 200_000 {
		return apperr.Validation("template body is too large")
	}
	if _, err := render.Parse(body); err != nil {
		return apperr.Validation("template body is not a valid template").WithDetails(map[string]string{"error": err.Error()})
	}
	return nil
}
