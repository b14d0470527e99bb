// Package service implements budgets: linkage to a contact or lead, public
// slugs, version snapshots, templates, rendering and PDF export.
package service

import (
	"context"
	"errors"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/adapters/storage"
	"travel_crm_backend/internal/budgets/domain"
	"travel_crm_backend/internal/budgets/repository"
	"travel_crm_backend/internal/events"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	budgetNotFoundMsg = "budget not found"
	defaultPageSize   = 20
	maxPageSize       = 100
	maxSlugAttempts   = 5
)

var ErrPersonNotFound = errors.New("person not found")

type Repository interface {
	SlugsLike(ctx context.Context, base string) ([]string, error)
	Create(ctx context.Context, b repository.Budget) (repository.Budget, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Budget, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (repository.Budget, error)
	GetBySlug(ctx context.Context, slug string) (repository.Budget, error)
	Update(ctx context.Context, id uuid.UUID, params repository.BudgetUpdate) (repository.Budget, error)
	SetPDFFileKey(ctx context.Context, id uuid.UUID, key string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) ([]repository.Budget, int, error)
	InsertVersion(ctx context.Context, v repository.Version) error
	ListVersions(ctx context.Context, budgetID uuid.UUID) ([]repository.Version, error)

	ListTemplates(ctx context.Context, orgID uuid.UUID) ([]repository.Template, error)
	GetTemplate(ctx context.Context, orgID, id uuid.UUID) (repository.Template, error)
	CreateTemplate(ctx context.Context, t repository.Template) (repository.Template, error)
	UpdateTemplate(ctx context.Context, orgID, id uuid.UUID, params repository.TemplateUpdate) (repository.Template, error)
	DeleteTemplate(ctx context.Context, orgID, id uuid.UUID) error
}

// Person is the contact or lead a budget is addressed to.
type Person struct {
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	Name           string
	Email          *string
}

// People resolves budget recipients. Both methods return ErrPersonNotFound
// for unknown ids.
type People interface {
	Contact(ctx context.Context, id uuid.UUID) (Person, error)
	Lead(ctx context.Context, id uuid.UUID) (Person, error)
}

type Organizations interface {
	OrganizationName(ctx context.Context, orgID uuid.UUID) string
}

// PDFConverter turns a rendered document into PDF bytes.
type PDFConverter interface {
	ConvertHTML(ctx context.Context, html []byte) ([]byte, error)
}

type Deps struct {
	Repo          Repository
	Tx            db.Transactor
	People        People
	Organizations Organizations
	Bus           events.Bus
	Log           *logger.Logger
	PDF           PDFConverter
	Storage       storage.StorageService
	PDFBucket     string
	PublicBaseURL string
}

type Service struct {
	repo      Repository
	tx        db.Transactor
	people    People
	orgs      Organizations
	bus       events.Bus
	log       *logger.Logger
	pdf       PDFConverter
	storage   storage.StorageService
	pdfBucket string
	baseURL   string
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		repo:      d.Repo,
		tx:        d.Tx,
		people:    d.People,
		orgs:      d.Organizations,
		bus:       d.Bus,
		log:       d.Log,
		pdf:       d.PDF,
		storage:   d.Storage,
		pdfBucket: d.PDFBucket,
		baseURL:   d.PublicBaseURL,
	}
}

type CreateInput struct {
	OrganizationID *uuid.UUID
	Title          string
	ContactID      *uuid.UUID
	LeadID         *uuid.UUID
	Description    string
	TemplateID     *uuid.UUID
	Margin         *domain.MarginConfig
}

type UpdateInput struct {
	Title         *string
	Description   *string
	TemplateID    *uuid.UUID
	ClearTemplate bool
	Margin        *domain.MarginConfig
}

type ListFilter struct {
	OrganizationID *uuid.UUID
	Status         *string
	ContactID      *uuid.UUID
	LeadID         *uuid.UUID
	Search         string
	Page           int
	PageSize       int
}

type ListResult struct {
	Items      []View
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// View is a budget with its parsed margin configuration and public link.
type View struct {
	Budget     repository.Budget
	Margin     *domain.MarginConfig
	FinalPrice *float64
	PublicURL  string
}

func (s *Service) view(b repository.Budget) View {
	v := View{Budget: b, PublicURL: s.publicURL(b.Slug)}
	if m := domain.ExtractMarginConfig(b.Description); m != nil {
		price := m.FinalPrice()
		v.Margin = m
		v.FinalPrice = &price
	}
	return v
}

func (s *Service) publicURL(slug string) string {
	return s.baseURL + "/p/" + slug
}

func (s *Service) Create(ctx context.Context, scope access.Scope, in CreateInput) (View, error) {
	orgID, err := targetOrganization(scope, in.OrganizationID)
	if err != nil {
		return View{}, err
	}
	title := sanitize.Text(in.Title)
	if title == "" {
		return View{}, apperr.Validation("title is required")
	}
	if in.ContactID != nil && in.LeadID != nil {
		return View{}, apperr.Validation("a budget belongs to a contact or a lead, not both")
	}
	person, err := s.recipient(ctx, orgID, in.ContactID, in.LeadID)
	if err != nil {
		return View{}, err
	}
	if in.TemplateID != nil {
		if _, err := s.repo.GetTemplate(ctx, orgID, *in.TemplateID); err != nil {
			return View{}, mapTemplateErr(err)
		}
	}
	description, err := withMargin(in.Description, in.Margin)
	if err != nil {
		return View{}, err
	}

	branchID := scope.BranchID
	if person != nil && person.BranchID != nil {
		branchID = person.BranchID
	}
	actor := actorID(scope)
	base := domain.BudgetSlug(personName(person), title)

	var created repository.Budget
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			taken, err := s.repo.SlugsLike(ctx, base)
			if err != nil {
				return err
			}
			created, err = s.repo.Create(ctx, repository.Budget{
				OrganizationID: orgID,
				BranchID:       branchID,
				Title:          title,
				ContactID:      in.ContactID,
				LeadID:         in.LeadID,
				Status:         string(domain.StatusNotSent),
				Description:    description,
				TemplateID:     in.TemplateID,
				Slug:           domain.NextFreeSlug(base, taken),
				CreatedBy:      actor,
			})
			if err != nil {
				return err
			}
			return s.snapshot(ctx, created, domain.ChangeCreated, actor)
		})
		if !errors.Is(err, repository.ErrSlugTaken) {
			break
		}
	}
	if errors.Is(err, repository.ErrSlugTaken) {
		return View{}, apperr.Conflict("could not allocate a unique budget slug")
	}
	if err != nil {
		return View{}, err
	}
	return s.view(created), nil
}

func (s *Service) Get(ctx context.Context, scope access.Scope, id uuid.UUID) (View, error) {
	b, err := s.load(ctx, scope, id)
	if err != nil {
		return View{}, err
	}
	return s.view(b), nil
}

func (s *Service) List(ctx context.Context, scope access.Scope, f ListFilter) (ListResult, error) {
	page := max(f.Page, 1)
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)
	if f.Status != nil {
		if _, err := domain.ParseStatus(*f.Status); err != nil {
			return ListResult{}, apperr.Validation("invalid status filter")
		}
	}

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Scope:          scope,
		OrganizationID: f.OrganizationID,
		Status:         f.Status,
		ContactID:      f.ContactID,
		LeadID:         f.LeadID,
		Search:         f.Search,
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	})
	if err != nil {
		return ListResult{}, err
	}
	views := make([]View, 0, len(items))
	for _, b := range items {
		views = append(views, s.view(b))
	}
	return ListResult{
		Items:      views,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Update edits title, description, template or margin. The slug never
// changes so links already shared keep working.
func (s *Service) Update(ctx context.Context, scope access.Scope, id uuid.UUID, in UpdateInput) (View, error) {
	current, err := s.load(ctx, scope, id)
	if err != nil {
		return View{}, err
	}

	params := repository.BudgetUpdate{ClearTemplate: in.ClearTemplate}
	if in.Title != nil {
		title := sanitize.Text(*in.Title)
		if title == "" {
			return View{}, apperr.Validation("title cannot be empty")
		}
		params.Title = &title
	}
	if in.TemplateID != nil {
		if _, err := s.repo.GetTemplate(ctx, current.OrganizationID, *in.TemplateID); err != nil {
			return View{}, mapTemplateErr(err)
		}
		params.TemplateID = in.TemplateID
	}
	if in.Description != nil || in.Margin != nil {
		desc := current.Description
		if in.Description != nil {
			desc = *in.Description
			if in.Margin == nil {
				// Keep the stored pricing when only the text changes.
				if m := domain.ExtractMarginConfig(current.Description); m != nil && domain.ExtractMarginConfig(desc) == nil {
					in.Margin = m
				}
			}
		}
		desc, err = withMargin(desc, in.Margin)
		if err != nil {
			return View{}, err
		}
		params.Description = &desc
	}
	if params.Title == nil && params.Description == nil && params.TemplateID == nil && !params.ClearTemplate {
		return s.view(current), nil
	}

	var updated repository.Budget
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		updated, err = s.repo.Update(ctx, id, params)
		if err != nil {
			return err
		}
		return s.snapshot(ctx, updated, domain.ChangeUpdated, actorID(scope))
	})
	if err != nil {
		return View{}, mapNotFound(err)
	}
	return s.view(updated), nil
}

// UpdateStatus moves the budget between not_sent, sent, approved and
// rejected. Moving to sent publishes the public link for delivery.
func (s *Service) UpdateStatus(ctx context.Context, scope access.Scope, id uuid.UUID, raw string) (View, error) {
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return View{}, apperr.Validation("invalid status")
	}
	if _, err := s.load(ctx, scope, id); err != nil {
		return View{}, err
	}

	var previous, updated repository.Budget
	changed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		previous, err = s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if previous.Status == string(status) {
			updated = previous
			return nil
		}
		value := string(status)
		updated, err = s.repo.Update(ctx, id, repository.BudgetUpdate{Status: &value})
		if err != nil {
			return err
		}
		changed = true
		return s.snapshot(ctx, updated, domain.ChangeStatusChanged, actorID(scope))
	})
	if err != nil {
		return View{}, mapNotFound(err)
	}
	if changed {
		s.publishStatusChange(ctx, previous.Status, updated)
	}
	return s.view(updated), nil
}

func (s *Service) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	b, err := s.load(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	if b.PDFFileKey != nil && s.storage != nil {
		if err := s.storage.DeleteObject(ctx, s.pdfBucket, *b.PDFFileKey); err != nil {
			s.log.Warn("budget pdf cleanup failed", "budget_id", id, "error", err)
		}
	}
	return nil
}

func (s *Service) Versions(ctx context.Context, scope access.Scope, id uuid.UUID) ([]repository.Version, error) {
	if _, err := s.load(ctx, scope, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

func (s *Service) snapshot(ctx context.Context, b repository.Budget, kind string, actor *uuid.UUID) error {
	return s.repo.InsertVersion(ctx, repository.Version{
		BudgetID:    b.ID,
		Version:     b.Version,
		Title:       b.Title,
		Description: b.Description,
		Status:      b.Status,
		ChangeKind:  kind,
		ChangedBy:   actor,
	})
}

func (s *Service) publishStatusChange(ctx context.Context, oldStatus string, b repository.Budget) {
	if s.bus == nil {
		return
	}
	evt := events.BudgetStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		BudgetID:       b.ID,
		OrganizationID: b.OrganizationID,
		Slug:           b.Slug,
		Title:          b.Title,
		OldStatus:      oldStatus,
		NewStatus:      b.Status,
		PublicURL:      s.publicURL(b.Slug),
	}
	if person, err := s.recipient(ctx, b.OrganizationID, b.ContactID, b.LeadID); err == nil && person != nil {
		evt.RecipientName = person.Name
		if person.Email != nil {
			evt.RecipientEmail = *person.Email
		}
	}
	s.bus.Publish(ctx, evt)
}

// recipient resolves the linked contact or lead and checks it belongs to orgID.
func (s *Service) recipient(ctx context.Context, orgID uuid.UUID, contactID, leadID *uuid.UUID) (*Person, error) {
	var (
		p   Person
		err error
	)
	switch {
	case contactID != nil:
		p, err = s.people.Contact(ctx, *contactID)
	case leadID != nil:
		p, err = s.people.Lead(ctx, *leadID)
	default:
		return nil, nil
	}
	if errors.Is(err, ErrPersonNotFound) || (err == nil && p.OrganizationID != orgID) {
		return nil, apperr.Validation("linked contact or lead not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) load(ctx context.Context, scope access.Scope, id uuid.UUID) (repository.Budget, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Budget{}, mapNotFound(err)
	}
	if !scope.Allows(b.OrganizationID, b.BranchID, b.CreatedBy) {
		return repository.Budget{}, apperr.NotFound(budgetNotFoundMsg)
	}
	return b, nil
}

func withMargin(description string, m *domain.MarginConfig) (string, error) {
	if m == nil {
		return description, nil
	}
	if err := m.Validate(); err != nil {
		return "", apperr.Validation("invalid margin configuration")
	}
	return domain.EmbedMarginConfig(description, *m)
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(budgetNotFoundMsg)
	}
	return err
}

func mapTemplateErr(err error) error {
	if errors.Is(err, repository.ErrTemplateNotFound) {
		return apperr.Validation("budget template not found")
	}
	return err
}

func personName(p *Person) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func actorID(scope access.Scope) *uuid.UUID {
	if scope.UserID == uuid.Nil {
		return nil
	}
	id := scope.UserID
	return &id
}

func targetOrganization(scope access.Scope, requested *uuid.UUID) (uuid.UUID, error) {
	if scope.IsSuperAdmin() {
		if requested != nil {
			return *requested, nil
		}
		if scope.OrganizationID != nil {
			return *scope.OrganizationID, nil
		}
		return uuid.Nil, apperr.Validation("organizationId is required")
	}
	if requested != nil && *requested != *scope.OrganizationID {
		return uuid.Nil, apperr.Forbidden("cannot act on another organization")
	}
	return *scope.OrganizationID, nil
}
