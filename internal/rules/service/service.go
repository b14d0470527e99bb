// Package service validates and manages assignment rules.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/rules/repository"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/db"

	"github.com/google/uuid"
)

const (
	TypeCampaign = "campaign"
	TypeProvince = "province"
)

// Repository is the rule persistence used by the service.
type Repository interface {
	List(ctx context.Context, orgID uuid.UUID) ([]repository.Rule, error)
	ListActive(ctx context.Context, orgID uuid.UUID) ([]repository.Rule, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (repository.Rule, error)
	Create(ctx context.Context, rule repository.Rule) (repository.Rule, error)
	Update(ctx context.Context, orgID, id uuid.UUID, params repository.RuleUpdate) (repository.Rule, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	DeleteAll(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// MemberChecker confirms candidate users belong to the organization.
type MemberChecker interface {
	IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

type Service struct {
	repo    Repository
	members MemberChecker
	tx      db.Transactor
}

func New(repo Repository, members MemberChecker, tx db.Transactor) *Service {
	return &Service{repo: repo, members: members, tx: tx}
}

type RuleInput struct {
	Type          string
	Condition     string
	AssignedUsers []uuid.UUID
	Active        bool
	Priority      int
}

type RuleUpdateInput struct {
	Type          *string
	Condition     *string
	AssignedUsers *[]uuid.UUID
	Active        *bool
	Priority      *int
}

func (s *Service) List(ctx context.Context, scope access.Scope, orgID *uuid.UUID) ([]repository.Rule, error) {
	target, err := s.readableOrganization(scope, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, target)
}

// ListActive is the Rule Store read path used by the matcher. The result is
// filtered to the organization and active rules, in evaluation order.
func (s *Service) ListActive(ctx context.Context, orgID uuid.UUID) ([]repository.Rule, error) {
	return s.repo.ListActive(ctx, orgID)
}

func (s *Service) Create(ctx context.Context, scope access.Scope, orgID *uuid.UUID, in RuleInput) (repository.Rule, error) {
	target, err := s.writableOrganization(scope, orgID)
	if err != nil {
		return repository.Rule{}, err
	}
	rule, err := s.normalize(ctx, target, in)
	if err != nil {
		return repository.Rule{}, err
	}
	return s.repo.Create(ctx, rule)
}

func (s *Service) Update(ctx context.Context, scope access.Scope, orgID *uuid.UUID, id uuid.UUID, in RuleUpdateInput) (repository.Rule, error) {
	target, err := s.writableOrganization(scope, orgID)
	if err != nil {
		return repository.Rule{}, err
	}
	if in.Type != nil {
		if err := validateType(*in.Type); err != nil {
			return repository.Rule{}, err
		}
	}
	if in.Condition != nil {
		trimmed := strings.TrimSpace(*in.Condition)
		if trimmed == "" {
			return repository.Rule{}, apperr.Validation("condition is required")
		}
		in.Condition = &trimmed
	}
	if in.AssignedUsers != nil {
		users, err := s.checkCandidates(ctx, target, *in.AssignedUsers)
		if err != nil {
			return repository.Rule{}, err
		}
		in.AssignedUsers = &users
	}

	rule, err := s.repo.Update(ctx, target, id, repository.RuleUpdate{
		Type:          in.Type,
		Condition:     in.Condition,
		AssignedUsers: in.AssignedUsers,
		Active:        in.Active,
		Priority:      in.Priority,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Rule{}, apperr.NotFound("rule not found")
	}
	return rule, err
}

// SetActive toggles whether the rule takes part in matching.
func (s *Service) SetActive(ctx context.Context, scope access.Scope, orgID *uuid.UUID, id uuid.UUID, active bool) (repository.Rule, error) {
	return s.Update(ctx, scope, orgID, id, RuleUpdateInput{Active: &active})
}

func (s *Service) Delete(ctx context.Context, scope access.Scope, orgID *uuid.UUID, id uuid.UUID) error {
	target, err := s.writableOrganization(scope, orgID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, target, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("rule not found")
		}
		return err
	}
	return nil
}

// Import stores a batch of rules for one organization. With replace set the
// existing rules are removed in the same transaction.
func (s *Service) Import(ctx context.Context, orgID uuid.UUID, inputs []RuleInput, replace bool) ([]repository.Rule, error) {
	normalized := make([]repository.Rule, 0, len(inputs))
	for i, in := range inputs {
		rule, err := s.normalize(ctx, orgID, in)
		if apperr.Is(err, apperr.KindValidation) {
			return nil, apperr.Validation("rule " + strconv.Itoa(i+1) + ": " + err.Error())
		}
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, rule)
	}

	created := make([]repository.Rule, 0, len(normalized))
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if replace {
			if _, err := s.repo.DeleteAll(ctx, orgID); err != nil {
				return err
			}
		}
		for _, rule := range normalized {
			stored, err := s.repo.Create(ctx, rule)
			if err != nil {
				return err
			}
			created = append(created, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) normalize(ctx context.Context, orgID uuid.UUID, in RuleInput) (repository.Rule, error) {
	if err := validateType(in.Type); err != nil {
		return repository.Rule{}, err
	}
	condition := strings.TrimSpace(in.Condition)
	if condition == "" {
		return repository.Rule{}, apperr.Validation("condition is required")
	}
	users, err := s.checkCandidates(ctx, orgID, in.AssignedUsers)
	if err != nil {
		return repository.Rule{}, err
	}
	return repository.Rule{
		OrganizationID: orgID,
		Type:           in.Type,
		Condition:      condition,
		AssignedUsers:  users,
		Active:         in.Active,
		Priority:       in.Priority,
	}, nil
}

func (s *Service) checkCandidates(ctx context.Context, orgID uuid.UUID, users []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(users))
	out := make([]uuid.UUID, 0, len(users))
	for _, userID := range users {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		ok, err := s.members.IsActiveMember(ctx, orgID, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Validation("user " + userID.String() + " is not an active member of the organization")
		}
		out = append(out, userID)
	}
	return out, nil
}

func (s *Service) readableOrganization(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
	if scope.IsSuperAdmin() {
		return superAdminTarget(scope, requested)
	}
	if scope.Role == access.RoleAgent {
		return uuid.UUID{}, apperr.Forbidden("not allowed to view assignment rules")
	}
	return *scope.OrganizationID, nil
}

func (s *Service) writableOrganization(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
	if scope.IsSuperAdmin() {
		return superAdminTarget(scope, requested)
	}
	if scope.Role != access.RoleAdmin {
		return uuid.UUID{}, apperr.Forbidden("only admins can manage assignment rules")
	}
	return *scope.OrganizationID, nil
}

func superAdminTarget(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
	if requested != nil {
		return *requested, nil
	}
	if scope.OrganizationID != nil {
		return *scope.OrganizationID, nil
	}
	return uuid.UUID{}, apperr.Validation("organizationId is required")
}

func validateType(t string) error {
	if t != TypeCampaign && t != TypeProvince {
		return apperr.Validation("type must be campaign or province")
	}
	return nil
}
