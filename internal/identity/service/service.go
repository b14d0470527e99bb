// Package service implements organization, branch and user management.
package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/identity/repository"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// Repository is the persistence surface the service depends on.
type Repository interface {
	CreateOrganization(ctx context.Context, name string) (repository.Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (repository.Organization, error)
	ListOrganizations(ctx context.Context) ([]repository.Organization, error)
	CreateBranch(ctx context.Context, orgID uuid.UUID, name string, province *string) (repository.Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (repository.Branch, error)
	ListBranches(ctx context.Context, orgID uuid.UUID) ([]repository.Branch, error)
	CreateUser(ctx context.Context, u repository.User) (repository.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (repository.User, error)
	ListUsers(ctx context.Context, orgID uuid.UUID, branchID *uuid.UUID, activeOnly bool) ([]repository.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, params repository.UserUpdate) (repository.User, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterUserInput describes the profile row for an externally authenticated user.
type RegisterUserInput struct {
	ID             uuid.UUID
	OrganizationID *uuid.UUID
	BranchID       *uuid.UUID
	FullName       string
	Email          string
	Role           string
}

// UpdateUserInput carries optional profile changes.
type UpdateUserInput struct {
	Role        *string
	BranchID    *uuid.UUID
	ClearBranch bool
	Active      *bool
	FullName    *string
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.User{}, apperr.NotFound("user profile not found")
	}
	return u, err
}

func (s *Service) ListUsers(ctx context.Context, scope access.Scope, orgID *uuid.UUID, branchID *uuid.UUID) ([]repository.User, error) {
	target, err := s.resolveOrganization(scope, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, target, branchID, true)
}

func (s *Service) CreateOrganization(ctx context.Context, scope access.Scope, name string) (repository.Organization, error) {
	if !scope.IsSuperAdmin() {
		return repository.Organization{}, apperr.Forbidden("only super admins can create organizations")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Organization{}, apperr.Validation("name is required")
	}
	return s.repo.CreateOrganization(ctx, name)
}

func (s *Service) ListOrganizations(ctx context.Context, scope access.Scope) ([]repository.Organization, error) {
	if !scope.IsSuperAdmin() {
		return nil, apperr.Forbidden("only super admins can list organizations")
	}
	return s.repo.ListOrganizations(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, scope access.Scope, orgID *uuid.UUID, name string, province *string) (repository.Branch, error) {
	target, err := s.resolveOrganization(scope, orgID)
	if err != nil {
		return repository.Branch{}, err
	}
	if !scope.CanManageOrganization(target) {
		return repository.Branch{}, apperr.Forbidden("not allowed to manage this organization")
	}
	if _, err := s.repo.GetOrganization(ctx, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Branch{}, apperr.NotFound("organization not found")
		}
		return repository.Branch{}, err
	}

	branch, err := s.repo.CreateBranch(ctx, target, strings.TrimSpace(name), province)
	if errors.Is(err, repository.ErrDuplicate) {
		return repository.Branch{}, apperr.Conflict("a branch with this name already exists")
	}
	return branch, err
}

func (s *Service) ListBranches(ctx context.Context, scope access.Scope, orgID *uuid.UUID) ([]repository.Branch, error) {
	target, err := s.resolveOrganization(scope, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBranches(ctx, target)
}

func (s *Service) RegisterUser(ctx context.Context, scope access.Scope, in RegisterUserInput) (repository.User, error) {
	target, err := s.resolveOrganization(scope, in.OrganizationID)
	if err != nil {
		return repository.User{}, err
	}
	if !scope.CanManageOrganization(target) {
		return repository.User{}, apperr.Forbidden("not allowed to manage this organization")
	}
	if err := s.checkRoleGrant(scope, in.Role); err != nil {
		return repository.User{}, err
	}
	if err := s.checkBranch(ctx, target, in.BranchID); err != nil {
		return repository.User{}, err
	}

	user, err := s.repo.CreateUser(ctx, repository.User{
		ID:             in.ID,
		OrganizationID: target,
		BranchID:       in.BranchID,
		FullName:       strings.TrimSpace(in.FullName),
		Email:          strings.TrimSpace(in.Email),
		Role:           in.Role,
		Active:         true,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return repository.User{}, apperr.Conflict("user already registered")
	}
	return user, err
}

func (s *Service) UpdateUser(ctx context.Context, scope access.Scope, userID uuid.UUID, in UpdateUserInput) (repository.User, error) {
	existing, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.User{}, apperr.NotFound("user not found")
		}
		return repository.User{}, err
	}
	if !scope.CanManageOrganization(existing.OrganizationID) {
		return repository.User{}, apperr.NotFound("user not found")
	}
	if in.Role != nil {
		if err := s.checkRoleGrant(scope, *in.Role); err != nil {
			return repository.User{}, err
		}
	}
	if existing.Role == access.RoleSuperAdmin && !scope.IsSuperAdmin() {
		return repository.User{}, apperr.Forbidden("only super admins can change a super admin")
	}
	if err := s.checkBranch(ctx, existing.OrganizationID, in.BranchID); err != nil {
		return repository.User{}, err
	}

	return s.repo.UpdateUser(ctx, userID, repository.UserUpdate{
		Role:        in.Role,
		BranchID:    in.BranchID,
		ClearBranch: in.ClearBranch,
		Active:      in.Active,
		FullName:    in.FullName,
	})
}

// IsActiveMember reports whether userID is an active user of orgID.
func (s *Service) IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Active && u.OrganizationID == orgID, nil
}

// DisplayName returns the user's name, or an empty string when unknown.
func (s *Service) DisplayName(ctx context.Context, userID uuid.UUID) string {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return u.FullName
}

// GetUser returns a user profile without scope checks, for internal callers.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.User{}, apperr.NotFound("user not found")
	}
	return u, err
}

func (s *Service) resolveOrganization(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
	if scope.IsSuperAdmin() {
		if requested != nil {
			return *requested, nil
		}
		if scope.OrganizationID != nil {
			return *scope.OrganizationID, nil
		}
		return uuid.UUID{}, apperr.Validation("organizationId is required")
	}
	if requested != nil && *requested != *scope.OrganizationID {
		return uuid.UUID{}, apperr.Forbidden("not allowed to access this organization")
	}
	return *scope.OrganizationID, nil
}

func (s *Service) checkRoleGrant(scope access.Scope, role string) error {
	if !slices.Contains(access.ValidRoles, role) {
		return apperr.Validation("invalid role")
	}
	if role == access.RoleSuperAdmin && !scope.IsSuperAdmin() {
		return apperr.Forbidden("only super admins can grant super_admin")
	}
	return nil
}

func (s *Service) checkBranch(ctx context.Context, orgID uuid.UUID, branchID *uuid.UUID) error {
	if branchID == nil {
		return nil
	}
	branch, err := s.repo.GetBranch(ctx, *branchID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && branch.OrganizationID != orgID) {
		return apperr.Validation("branch does not belong to the organization")
	}
	return err
}

// OrganizationName returns the organization's name, or an empty string when unknown.
func (s *Service) OrganizationName(ctx context.Context, orgID uuid.UUID) string {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return ""
	}
	return org.Name
}
