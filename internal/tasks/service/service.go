// Package service implements follow-up tasks and the due-task query that
// feeds reminders.
package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/tasks/repository"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	taskNotFoundMsg = "task not found"
	defaultPageSize = 50
	maxPageSize     = 200
	maxTitleLength  = 200
)

// ErrLinkNotFound is returned by Links for unknown ids.
var ErrLinkNotFound = errors.New("linked record not found")

type Repository interface {
	Create(ctx context.Context, t repository.Task) (repository.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Task, error)
	Complete(ctx context.Context, id uuid.UUID) (repository.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Task, int, error)
	DueOpen(ctx context.Context, before time.Time, limit int) ([]repository.Reminder, error)
}

type MemberChecker interface {
	IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// Links resolves the organization of a lead or contact a task points at.
type Links interface {
	LeadOrganization(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ContactOrganization(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	repo    Repository
	members MemberChecker
	links   Links
	now     func() time.Time
}

func New(repo Repository, members MemberChecker, links Links) *Service {
	return &Service{repo: repo, members: members, links: links, now: time.Now}
}

type CreateInput struct {
	OrganizationID *uuid.UUID
	Title          string
	DueAt          time.Time
	AssignedTo     *uuid.UUID
	LeadID         *uuid.UUID
	ContactID      *uuid.UUID
}

type ListFilter struct {
	OrganizationID *uuid.UUID
	Mine           bool
	AssignedTo     *uuid.UUID
	LeadID         *uuid.UUID
	ContactID      *uuid.UUID
	OpenOnly       bool
	DueBefore      *time.Time
	Page           int
	PageSize       int
}

type ListResult struct {
	Items    []repository.Task
	Total    int
	Page     int
	PageSize int
}

func (s *Service) List(ctx context.Context, scope access.Scope, f ListFilter) (ListResult, error) {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	params := repository.ListParams{
		OrganizationID: f.OrganizationID,
		AssignedTo:     f.AssignedTo,
		LeadID:         f.LeadID,
		ContactID:      f.ContactID,
		OpenOnly:       f.OpenOnly,
		DueBefore:      f.DueBefore,
		Offset:         (page - 1) * size,
		Limit:          size,
	}
	if !scope.IsSuperAdmin() {
		params.OrganizationID = scope.OrganizationID
	}
	if scope.Level == access.LevelOwn {
		params.VisibleTo = &scope.UserID
	}
	if f.Mine {
		params.AssignedTo = &scope.UserID
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Create stores a task. Agents may only assign tasks to themselves; the
// assignee defaults to the caller.
func (s *Service) Create(ctx context.Context, scope access.Scope, in CreateInput) (repository.Task, error) {
	orgID, err := targetOrganization(scope, in.OrganizationID)
	if err != nil {
		return repository.Task{}, err
	}

	title := sanitize.Text(in.Title)
	if title == "" {
		return repository.Task{}, apperr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return repository.Task{}, apperr.Validation("title is too long")
	}
	if in.DueAt.IsZero() {
		return repository.Task{}, apperr.Validation("dueAt is required")
	}

	assignee := scope.UserID
	if in.AssignedTo != nil {
		assignee = *in.AssignedTo
	}
	if scope.Level == access.LevelOwn && assignee != scope.UserID {
		return repository.Task{}, apperr.Forbidden("agents can only assign tasks to themselves")
	}
	ok, err := s.members.IsActiveMember(ctx, orgID, assignee)
	if err != nil {
		return repository.Task{}, err
	}
	if !ok {
		return repository.Task{}, apperr.Validation("assignee is not an active member of the organization")
	}

	if err := s.checkLinks(ctx, orgID, in.LeadID, in.ContactID); err != nil {
		return repository.Task{}, err
	}

	creator := scope.UserID
	return s.repo.Create(ctx, repository.Task{
		OrganizationID: orgID,
		LeadID:         in.LeadID,
		ContactID:      in.ContactID,
		AssignedTo:     assignee,
		Title:          title,
		DueAt:          in.DueAt.UTC(),
		CreatedBy:      &creator,
	})
}

// Complete marks the task done. Completing twice is a no-op.
func (s *Service) Complete(ctx context.Context, scope access.Scope, id uuid.UUID) (repository.Task, error) {
	if _, err := s.load(ctx, scope, id); err != nil {
		return repository.Task{}, err
	}
	t, err := s.repo.Complete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Task{}, apperr.NotFound(taskNotFoundMsg)
	}
	return t, err
}

// Delete removes a task. Agents may only delete tasks they created.
func (s *Service) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	t, err := s.load(ctx, scope, id)
	if err != nil {
		return err
	}
	if scope.Level == access.LevelOwn && (t.CreatedBy == nil || *t.CreatedBy != scope.UserID) {
		return apperr.Forbidden("only the creator can delete this task")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(taskNotFoundMsg)
		}
		return err
	}
	return nil
}

// DueReminders lists open tasks due within lookahead of now, for every
// organization. It is called by the reminder scan, not by users.
func (s *Service) DueReminders(ctx context.Context, lookahead time.Duration, limit int) ([]repository.Reminder, error) {
	return s.repo.DueOpen(ctx, s.now().Add(lookahead), limit)
}

func (s *Service) load(ctx context.Context, scope access.Scope, id uuid.UUID) (repository.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Task{}, apperr.NotFound(taskNotFoundMsg)
	}
	if err != nil {
		return repository.Task{}, err
	}
	if !visible(scope, t) {
		return repository.Task{}, apperr.NotFound(taskNotFoundMsg)
	}
	return t, nil
}

// visible applies role visibility to a task. Tasks carry no branch, so
// branch managers see their whole organization's tasks.
func visible(scope access.Scope, t repository.Task) bool {
	if scope.IsSuperAdmin() {
		return true
	}
	if scope.OrganizationID == nil || *scope.OrganizationID != t.OrganizationID {
		return false
	}
	if scope.Level != access.LevelOwn {
		return true
	}
	return t.AssignedTo == scope.UserID || (t.CreatedBy != nil && *t.CreatedBy == scope.UserID)
}

func (s *Service) checkLinks(ctx context.Context, orgID uuid.UUID, leadID, contactID *uuid.UUID) error {
	if s.links == nil {
		return nil
	}
	check := func(name string, id *uuid.UUID, lookup func(context.Context, uuid.UUID) (uuid.UUID, error)) error {
		if id == nil {
			return nil
		}
		linkedOrg, err := lookup(ctx, *id)
		if errors.Is(err, ErrLinkNotFound) || (err == nil && linkedOrg != orgID) {
			return apperr.Validation(name + " not found in organization")
		}
		return err
	}
	if err := check("lead", leadID, s.links.LeadOrganization); err != nil {
		return err
	}
	return check("contact", contactID, s.links.ContactOrganization)
}

func targetOrganization(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
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
		return uuid.UUID{}, apperr.Forbidden("cannot create tasks in another organization")
	}
	return *scope.OrganizationID, nil
}
