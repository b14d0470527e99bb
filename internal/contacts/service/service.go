// Package service manages contacts: qualified persons created from leads or
// entered directly.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/contacts/repository"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/phone"
	"travel_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	contactNotFoundMsg = "contact not found"
	actionCreated      = "contact_created"
	actionUpdated      = "contact_updated"
	defaultPageSize    = 20
	maxPageSize        = 100
)

// Tags a contact may carry: the status that qualified it.
var validTags = []string{
	"assigned", "contacted", "followed", "interested", "reserved", "liquidated", "effective_reservation",
}

type Repository interface {
	Create(ctx context.Context, c repository.Contact) (repository.Contact, error)
	CreateFromLead(ctx context.Context, c repository.Contact) (repository.Contact, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Contact, error)
	Update(ctx context.Context, id uuid.UUID, params repository.ContactUpdate) (repository.Contact, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Contact, int, error)
}

// HistoryEntry is an audit row about a contact.
type HistoryEntry struct {
	OrganizationID uuid.UUID
	ContactID      uuid.UUID
	Action         string
	Description    string
	UserID         *uuid.UUID
}

type HistoryRecord struct {
	ID          uuid.UUID
	Action      string
	Description string
	UserID      *uuid.UUID
	UserName    string
	CreatedAt   time.Time
}

type HistoryRecorder interface {
	RecordContact(ctx context.Context, e HistoryEntry)
}

type HistoryReader interface {
	ListForContact(ctx context.Context, contactID uuid.UUID) ([]HistoryRecord, error)
}

type MemberChecker interface {
	IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

type Service struct {
	repo    Repository
	history HistoryRecorder
	reader  HistoryReader
	members MemberChecker
	phone   *phone.Normalizer
}

func New(repo Repository, history HistoryRecorder, reader HistoryReader, members MemberChecker, normalizer *phone.Normalizer) *Service {
	if normalizer == nil {
		normalizer = phone.NewNormalizer(phone.DefaultRegion)
	}
	return &Service{repo: repo, history: history, reader: reader, members: members, phone: normalizer}
}

// FromLeadInput is the lead snapshot copied onto a converted contact.
type FromLeadInput struct {
	OrganizationID uuid.UUID
	BranchID       *uuid.UUID
	LeadID         uuid.UUID
	InquiryNumber  string
	LeadStatus     string
	Tag            string
	FullName       string
	Phone          string
	Email          *string
	Origin         *string
	Province       *string
	City           *string
	Passengers     *int
	TravelDate     *time.Time
	AssignedTo     *uuid.UUID
}

type CreateInput struct {
	OrganizationID *uuid.UUID
	BranchID       *uuid.UUID
	FullName       string
	Phone          string
	Email          *string
	City           *string
	Province       *string
	Origin         *string
	Passengers     *int
	TravelDate     *time.Time
	Tag            *string
	AssignedTo     *uuid.UUID
	Notes          *string
}

type UpdateInput struct {
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

type ListFilter struct {
	OrganizationID *uuid.UUID
	Search         string
	Tag            *string
	AssignedTo     *uuid.UUID
	Page           int
	PageSize       int
}

type ListResult struct {
	Items      []repository.Contact
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// CreateFromLead is the converter's idempotent insert. A second call for the
// same lead returns the existing contact with created=false.
func (s *Service) CreateFromLead(ctx context.Context, in FromLeadInput) (repository.Contact, bool, error) {
	leadID := in.LeadID
	tag := in.Tag
	status := in.LeadStatus
	number := in.InquiryNumber
	return s.repo.CreateFromLead(ctx, repository.Contact{
		OrganizationID:            in.OrganizationID,
		BranchID:                  in.BranchID,
		FullName:                  in.FullName,
		Phone:                     in.Phone,
		Email:                     in.Email,
		City:                      in.City,
		Province:                  in.Province,
		Origin:                    in.Origin,
		Passengers:                in.Passengers,
		TravelDate:                in.TravelDate,
		Tag:                       &tag,
		AssignedTo:                in.AssignedTo,
		OriginalLeadID:            &leadID,
		OriginalLeadStatus:        &status,
		OriginalLeadInquiryNumber: &number,
	})
}

func (s *Service) Get(ctx context.Context, scope access.Scope, id uuid.UUID) (repository.Contact, error) {
	c, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Contact{}, apperr.NotFound(contactNotFoundMsg)
	}
	if err != nil {
		return repository.Contact{}, err
	}
	if !scope.Allows(c.OrganizationID, c.BranchID, c.AssignedTo) {
		return repository.Contact{}, apperr.NotFound(contactNotFoundMsg)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, scope access.Scope, f ListFilter) (ListResult, error) {
	page := max(f.Page, 1)
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Scope:          scope,
		OrganizationID: f.OrganizationID,
		Search:         f.Search,
		Tag:            f.Tag,
		AssignedTo:     f.AssignedTo,
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *Service) Create(ctx context.Context, scope access.Scope, in CreateInput) (repository.Contact, error) {
	orgID, err := targetOrganization(scope, in.OrganizationID)
	if err != nil {
		return repository.Contact{}, err
	}
	name := sanitize.Text(in.FullName)
	if name == "" {
		return repository.Contact{}, apperr.Validation("full name is required")
	}
	p := s.phone.NormalizeE164(sanitize.Text(in.Phone))
	if p == "" {
		return repository.Contact{}, apperr.Validation("phone is required")
	}
	if err := checkTag(in.Tag); err != nil {
		return repository.Contact{}, err
	}

	assignee := in.AssignedTo
	if assignee == nil && scope.Level == access.LevelOwn {
		self := scope.UserID
		assignee = &self
	}
	if assignee != nil {
		if err := s.checkMember(ctx, orgID, *assignee); err != nil {
			return repository.Contact{}, err
		}
	}
	branchID := in.BranchID
	if branchID == nil || scope.Level == access.LevelBranch {
		branchID = scope.BranchID
	}

	c, err := s.repo.Create(ctx, repository.Contact{
		OrganizationID: orgID,
		BranchID:       branchID,
		FullName:       name,
		Phone:          p,
		Email:          lowerPtr(sanitize.TextPtr(in.Email)),
		City:           sanitize.TextPtr(in.City),
		Province:       sanitize.TextPtr(in.Province),
		Origin:         sanitize.TextPtr(in.Origin),
		Passengers:     in.Passengers,
		TravelDate:     in.TravelDate,
		Tag:            in.Tag,
		AssignedTo:     assignee,
		Notes:          sanitize.TextPtr(in.Notes),
	})
	if err != nil {
		return repository.Contact{}, err
	}
	s.record(ctx, c, actionCreated, "Contacto creado manualmente", scope)
	return c, nil
}

func (s *Service) Update(ctx context.Context, scope access.Scope, id uuid.UUID, in UpdateInput) (repository.Contact, error) {
	current, err := s.Get(ctx, scope, id)
	if err != nil {
		return repository.Contact{}, err
	}
	if err := checkTag(in.Tag); err != nil {
		return repository.Contact{}, err
	}
	if in.AssignedTo != nil {
		if err := s.checkMember(ctx, current.OrganizationID, *in.AssignedTo); err != nil {
			return repository.Contact{}, err
		}
	}

	params := repository.ContactUpdate{
		Email:      lowerPtr(sanitize.TextPtr(in.Email)),
		City:       sanitize.TextPtr(in.City),
		Province:   sanitize.TextPtr(in.Province),
		Origin:     sanitize.TextPtr(in.Origin),
		Passengers: in.Passengers,
		TravelDate: in.TravelDate,
		Tag:        in.Tag,
		AssignedTo: in.AssignedTo,
		Notes:      sanitize.TextPtr(in.Notes),
	}
	if in.FullName != nil {
		name := sanitize.Text(*in.FullName)
		if name == "" {
			return repository.Contact{}, apperr.Validation("full name cannot be empty")
		}
		params.FullName = &name
	}
	if in.Phone != nil {
		p := s.phone.NormalizeE164(sanitize.Text(*in.Phone))
		if p == "" {
			return repository.Contact{}, apperr.Validation("phone cannot be empty")
		}
		params.Phone = &p
	}

	c, err := s.repo.Update(ctx, id, params)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Contact{}, apperr.NotFound(contactNotFoundMsg)
	}
	if err != nil {
		return repository.Contact{}, err
	}
	s.record(ctx, c, actionUpdated, describeChanges(in), scope)
	return c, nil
}

// History returns the audit trail of a visible contact, newest first.
func (s *Service) History(ctx context.Context, scope access.Scope, id uuid.UUID) ([]HistoryRecord, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	return s.reader.ListForContact(ctx, id)
}

func (s *Service) record(ctx context.Context, c repository.Contact, action, desc string, scope access.Scope) {
	if s.history == nil {
		return
	}
	var actor *uuid.UUID
	if scope.UserID != uuid.Nil {
		id := scope.UserID
		actor = &id
	}
	s.history.RecordContact(ctx, HistoryEntry{
		OrganizationID: c.OrganizationID,
		ContactID:      c.ID,
		Action:         action,
		Description:    desc,
		UserID:         actor,
	})
}

func (s *Service) checkMember(ctx context.Context, orgID, userID uuid.UUID) error {
	ok, err := s.members.IsActiveMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("assignee must be an active user of the organization")
	}
	return nil
}

func checkTag(tag *string) error {
	if tag == nil {
		return nil
	}
	for _, t := range validTags {
		if *tag == t {
			return nil
		}
	}
	return apperr.Validation("invalid tag")
}

func describeChanges(in UpdateInput) string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(in.FullName != nil, "nombre")
	add(in.Phone != nil, "teléfono")
	add(in.Email != nil, "email")
	add(in.City != nil, "ciudad")
	add(in.Province != nil, "provincia")
	add(in.Origin != nil, "origen")
	add(in.Passengers != nil, "pasajeros")
	add(in.TravelDate != nil, "fecha de viaje")
	add(in.Tag != nil, "etiqueta")
	add(in.AssignedTo != nil, "asignado")
	add(in.Notes != nil, "notas")
	if len(fields) == 0 {
		return "Contacto actualizado"
	}
	return "Contacto actualizado: " + strings.Join(fields, ", ")
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

func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(*s)
	return &v
}
