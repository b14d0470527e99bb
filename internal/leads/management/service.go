// Package management provides the lead lifecycle use cases: creation with
// rule matching, status transitions, assignment and archival.
package management

import (
	"context"
	"errors"
	"strings"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/events"
	"travel_crm_backend/internal/leads/domain"
	"travel_crm_backend/internal/leads/ports"
	"travel_crm_backend/internal/leads/repository"
	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/metrics"
	"travel_crm_backend/platform/phone"
	"travel_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	leadNotFoundMsg   = "lead not found"
	deleteForbidden   = "Solo un Super Admin puede eliminar leads"
	defaultPageSize   = 20
	maxPageSize       = 100
	maxBulkLeads      = 5000
	maxExportRows     = 5000
	defaultBulkFanout = 8
)

// Repository is the lead persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetByPhone(ctx context.Context, orgID uuid.UUID, phone string) (repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error)
	ListIDs(ctx context.Context, params repository.ListParams, limit int) ([]uuid.UUID, error)
}

// Deps wires the service. Bus, Metrics and Picker are optional.
type Deps struct {
	Repo            Repository
	Tx              db.Transactor
	Rules           ports.RuleSource
	Contacts        ports.ContactConverter
	History         ports.HistoryRecorder
	HistoryReader   ports.HistoryReader
	Users           ports.UserDirectory
	Bus             events.Bus
	Phone           *phone.Normalizer
	Metrics         *metrics.Metrics
	Log             *logger.Logger
	Picker          domain.Picker
	BulkConcurrency int
}

type Service struct {
	repo            Repository
	tx              db.Transactor
	rules           ports.RuleSource
	contacts        ports.ContactConverter
	history         ports.HistoryRecorder
	historyReader   ports.HistoryReader
	users           ports.UserDirectory
	bus             events.Bus
	phone           *phone.Normalizer
	metrics         *metrics.Metrics
	log             *logger.Logger
	pick            domain.Picker
	bulkConcurrency int
	now             func() time.Time
}

func New(d Deps) *Service {
	if d.Phone == nil {
		d.Phone = phone.NewNormalizer(phone.DefaultRegion)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Picker == nil {
		d.Picker = domain.RandomPicker
	}
	if d.BulkConcurrency < 1 {
		d.BulkConcurrency = defaultBulkFanout
	}
	return &Service{
		repo:            d.Repo,
		tx:              d.Tx,
		rules:           d.Rules,
		contacts:        d.Contacts,
		history:         d.History,
		historyReader:   d.HistoryReader,
		users:           d.Users,
		bus:             d.Bus,
		phone:           d.Phone,
		metrics:         d.Metrics,
		log:             d.Log,
		pick:            d.Picker,
		bulkConcurrency: d.BulkConcurrency,
		now:             time.Now,
	}
}

type CreateLeadInput struct {
	OrganizationID *uuid.UUID
	BranchID       *uuid.UUID
	FullName       string
	Phone          string
	Email          *string
	Origin         *string
	Province       *string
	City           *string
	Passengers     *int
	TravelDate     *time.Time
	Notes          *string
	AssignedTo     *uuid.UUID
	Source         string
}

type UpdateLeadInput struct {
	FullName   *string
	Phone      *string
	Email      *string
	Origin     *string
	Province   *string
	City       *string
	Passengers *int
	TravelDate *time.Time
	Notes      *string
	BranchID   *uuid.UUID
}

type ListFilter struct {
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
	Page            int
	PageSize        int
}

type ListResult struct {
	Items      []repository.Lead
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// StatusResult is the outcome of a status change. Notice is set when the
// lead entered a qualifying status without an assignee.
type StatusResult struct {
	Lead           repository.Lead
	ContactID      *uuid.UUID
	ContactCreated bool
	Notice         string
}

type AssignResult struct {
	Lead           repository.Lead
	Kind           domain.AssignmentKind
	ContactID      *uuid.UUID
	ContactCreated bool
}

type DuplicateResult struct {
	IsDuplicate  bool
	ExistingLead *repository.Lead
}

// Get returns a lead visible to the caller.
func (s *Service) Get(ctx context.Context, scope access.Scope, id uuid.UUID) (repository.Lead, error) {
	return s.load(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, scope access.Scope, f ListFilter) (ListResult, error) {
	page := max(f.Page, 1)
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if f.Status != nil {
		if _, err := domain.ParseStatus(*f.Status); err != nil {
			return ListResult{}, apperr.Validation("invalid status filter")
		}
	}

	params := listParams(scope, f)
	params.Offset = (page - 1) * pageSize
	params.Limit = pageSize

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	totalPages := (total + pageSize - 1) / pageSize

	return ListResult{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}, nil
}

func listParams(scope access.Scope, f ListFilter) repository.ListParams {
	return repository.ListParams{
		Scope:           scope,
		OrganizationID:  f.OrganizationID,
		BranchID:        f.BranchID,
		Search:          f.Search,
		Origin:          f.Origin,
		Province:        f.Province,
		Status:          f.Status,
		AssignedTo:      f.AssignedTo,
		Unassigned:      f.Unassigned,
		Source:          f.Source,
		CreatedFrom:     f.CreatedFrom,
		CreatedTo:       f.CreatedTo,
		IncludeArchived: f.IncludeArchived,
		SortBy:          f.SortBy,
		SortOrder:       f.SortOrder,
	}
}

// Create stores a new lead. Without an explicit assignee the rule matcher
// picks one; an assigned lead starts in assigned and gets its contact.
func (s *Service) Create(ctx context.Context, scope access.Scope, in CreateLeadInput) (repository.Lead, error) {
	orgID, err := targetOrganization(scope, in.OrganizationID)
	if err != nil {
		return repository.Lead{}, err
	}

	fullName := sanitize.Text(in.FullName)
	if fullName == "" {
		return repository.Lead{}, apperr.Validation("full name is required")
	}
	normalizedPhone := s.phone.NormalizeE164(sanitize.Text(in.Phone))
	if normalizedPhone == "" {
		return repository.Lead{}, apperr.Validation("phone is required")
	}

	source := in.Source
	if source == "" {
		source = SourceManual
	}
	if !validSource(source) {
		return repository.Lead{}, apperr.Validation("invalid source")
	}

	branchID := in.BranchID
	if scope.Level == access.LevelBranch || branchID == nil {
		branchID = scope.BranchID
	}

	origin := sanitize.TextPtr(in.Origin)
	province := sanitize.TextPtr(in.Province)

	assignee := in.AssignedTo
	var matched *domain.Match
	if assignee != nil {
		if err := s.checkAssignee(ctx, orgID, *assignee); err != nil {
			return repository.Lead{}, err
		}
	} else {
		m, ok, err := s.match(ctx, orgID, origin, province)
		if err != nil {
			return repository.Lead{}, err
		}
		if ok {
			matched = &m
			assignee = &m.UserID
		}
	}

	params := repository.CreateLeadParams{
		OrganizationID: orgID,
		BranchID:       branchID,
		FullName:       fullName,
		Phone:          normalizedPhone,
		Email:          normalizeEmail(in.Email),
		Origin:         origin,
		Province:       province,
		City:           sanitize.TextPtr(in.City),
		Passengers:     in.Passengers,
		TravelDate:     in.TravelDate,
		Status:         string(domain.StatusNew),
		AssignedTo:     assignee,
		Notes:          sanitize.TextPtr(in.Notes),
		Source:         source,
		CreatedBy:      actorID(scope),
	}
	if assignee != nil {
		params.Status = string(domain.StatusAssigned)
		converted := true
		params.ConvertedToContact = &converted
	}

	var lead repository.Lead
	var ref ports.ContactRef
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		lead, err = s.repo.Create(ctx, params)
		if err != nil {
			return err
		}
		if lead.AssignedTo != nil {
			ref, err = s.contacts.CreateFromLead(ctx, contactSnapshot(lead, string(domain.StatusAssigned)))
		}
		return err
	})
	if err != nil {
		return repository.Lead{}, err
	}

	s.afterCreate(ctx, scope, lead, matched, ref)
	return lead, nil
}

// Import creates one lead per row with source import. Rows are expected to
// have passed batch validation; per-row failures are collected.
func (s *Service) Import(ctx context.Context, scope access.Scope, rows []ImportRow) (ImportResult, error) {
	if len(rows) == 0 {
		return ImportResult{}, apperr.Validation("no rows to import")
	}

	result := ImportResult{Errors: []ImportError{}}
	for _, row := range rows {
		in := row.Input
		in.Source = SourceImport
		if _, err := s.Create(ctx, scope, in); err != nil {
			if apperr.GetKind(err) == apperr.KindUnknown {
				s.log.Error("lead import row failed", "row", row.Line, "error", err)
			}
			result.Failed++
			result.Errors = append(result.Errors, ImportError{Row: row.Line, Message: importErrorMessage(err)})
			continue
		}
		result.Imported++
	}
	return result, nil
}

// Update edits lead fields. An unassigned, non-archived lead whose origin or
// province changed goes through the rule matcher again.
func (s *Service) Update(ctx context.Context, scope access.Scope, id uuid.UUID, in UpdateLeadInput) (repository.Lead, error) {
	current, err := s.load(ctx, scope, id)
	if err != nil {
		return repository.Lead{}, err
	}

	params := repository.UpdateLeadParams{
		Email:      normalizeEmail(in.Email),
		Origin:     sanitize.TextPtr(in.Origin),
		Province:   sanitize.TextPtr(in.Province),
		City:       sanitize.TextPtr(in.City),
		Passengers: in.Passengers,
		TravelDate: in.TravelDate,
		Notes:      sanitize.TextPtr(in.Notes),
	}
	if in.FullName != nil {
		name := sanitize.Text(*in.FullName)
		if name == "" {
			return repository.Lead{}, apperr.Validation("full name cannot be empty")
		}
		params.FullName = &name
	}
	if in.Phone != nil {
		p := s.phone.NormalizeE164(sanitize.Text(*in.Phone))
		if p == "" {
			return repository.Lead{}, apperr.Validation("phone cannot be empty")
		}
		params.Phone = &p
	}
	if in.BranchID != nil {
		if scope.Level != access.LevelAll && scope.Level != access.LevelOrganization {
			return repository.Lead{}, apperr.Forbidden("only administrators can move leads between branches")
		}
		params.BranchID = in.BranchID
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return repository.Lead{}, mapNotFound(err)
	}

	routingChanged := (params.Origin != nil && !equalStringPtrs(current.Origin, lead.Origin)) ||
		(params.Province != nil && !equalStringPtrs(current.Province, lead.Province))
	if lead.AssignedTo != nil || !routingChanged || lead.Status == string(domain.StatusArchived) {
		return lead, nil
	}

	m, ok, err := s.match(ctx, lead.OrganizationID, lead.Origin, lead.Province)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("rule matching after lead update failed", "lead_id", id, "error", err)
		}
		return lead, nil
	}
	previous, res, err := s.applyAssignment(ctx, id, &m.UserID)
	if err != nil {
		return repository.Lead{}, err
	}
	s.afterAssignment(ctx, actorID(scope), previous, res, &m)
	return res.Lead, nil
}

// UpdateStatus moves the lead through the state machine.
func (s *Service) UpdateStatus(ctx context.Context, scope access.Scope, id uuid.UUID, status string) (StatusResult, error) {
	target, err := domain.ParseStatus(status)
	if err != nil {
		return StatusResult{}, apperr.Validation("invalid status")
	}
	if target == domain.StatusArchived {
		lead, err := s.Archive(ctx, scope, id, nil)
		return StatusResult{Lead: lead}, err
	}

	if _, err := s.load(ctx, scope, id); err != nil {
		return StatusResult{}, err
	}

	var (
		res      StatusResult
		plan     domain.TransitionPlan
		previous repository.Lead
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err)
		}
		previous = current

		plan, err = domain.Plan(domain.Status(current.Status), target, current.AssignedTo != nil)
		if err != nil {
			return apperr.Validation("invalid status")
		}

		next := string(target)
		params := repository.UpdateLeadParams{
			Status:             &next,
			ConvertedToContact: plan.ConvertedToContact,
			ClearArchive:       plan.ClearArchive,
		}
		if plan.CreateContact {
			ref, err := s.contacts.CreateFromLead(ctx, contactSnapshot(current, next))
			if err != nil {
				return err
			}
			res.ContactID = &ref.ID
			res.ContactCreated = ref.Created
		}

		res.Lead, err = s.repo.Update(ctx, id, params)
		return mapNotFound(err)
	})
	if err != nil {
		return StatusResult{}, err
	}
	res.Notice = plan.Notice

	s.afterStatusChange(ctx, actorID(scope), previous, res, plan)
	return res, nil
}

// Archive moves the lead to archived with an optional reason.
func (s *Service) Archive(ctx context.Context, scope access.Scope, id uuid.UUID, reason *string) (repository.Lead, error) {
	if _, err := s.load(ctx, scope, id); err != nil {
		return repository.Lead{}, err
	}
	reason = sanitize.TextPtr(reason)
	archivedAt := s.now().UTC()

	var previous, lead repository.Lead
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err)
		}
		previous = current

		status := string(domain.StatusArchived)
		params := repository.UpdateLeadParams{
			Status:              &status,
			ArchivedAt:          &archivedAt,
			ArchivedReason:      reason,
			ClearArchivedReason: reason == nil,
		}
		lead, err = s.repo.Update(ctx, id, params)
		return mapNotFound(err)
	})
	if err != nil {
		return repository.Lead{}, err
	}

	desc := "Lead archivado"
	if reason != nil {
		desc += ": " + *reason
	}
	s.record(ctx, lead, domain.ActionArchived, desc, actorID(scope), nil)
	s.metrics.RecordStatusTransition(string(domain.StatusArchived))
	s.publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		OldStatus:      previous.Status,
		NewStatus:      lead.Status,
		AssignedTo:     lead.AssignedTo,
		ActorID:        actorID(scope),
	})
	s.publish(ctx, events.LeadArchived{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		Reason:         reason,
		ArchivedAt:     archivedAt,
	})
	return lead, nil
}

// Assign sets or clears the assignee of a lead.
func (s *Service) Assign(ctx context.Context, scope access.Scope, id uuid.UUID, assignee *uuid.UUID) (AssignResult, error) {
	lead, err := s.load(ctx, scope, id)
	if err != nil {
		return AssignResult{}, err
	}
	if assignee != nil {
		if err := s.checkAssignee(ctx, lead.OrganizationID, *assignee); err != nil {
			return AssignResult{}, err
		}
	}

	previous, res, err := s.applyAssignment(ctx, id, assignee)
	if err != nil {
		return AssignResult{}, err
	}
	s.afterAssignment(ctx, actorID(scope), previous, res, nil)
	return res, nil
}

// applyAssignment performs the assignee change, the forced status and the
// first-assign conversion in one transaction.
func (s *Service) applyAssignment(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (repository.Lead, AssignResult, error) {
	var previous repository.Lead
	var res AssignResult

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapNotFound(err)
		}
		previous = current

		plan := domain.PlanAssignment(current.AssignedTo, assignee)
		res.Kind = plan.Kind
		if plan.Kind == domain.AssignmentNoChange {
			res.Lead = current
			return nil
		}

		var params repository.UpdateLeadParams
		if assignee == nil {
			params.ClearAssignee = true
		} else {
			params.AssignedTo = assignee
		}
		if plan.NewStatus != nil {
			status := string(*plan.NewStatus)
			params.Status = &status
			params.ClearArchive = current.Status == string(domain.StatusArchived)
		}
		if plan.CreateContact {
			snapshot := current
			snapshot.AssignedTo = assignee
			ref, err := s.contacts.CreateFromLead(ctx, contactSnapshot(snapshot, string(plan.ContactTag)))
			if err != nil {
				return err
			}
			res.ContactID = &ref.ID
			res.ContactCreated = ref.Created
			converted := true
			params.ConvertedToContact = &converted
		}

		res.Lead, err = s.repo.Update(ctx, id, params)
		return mapNotFound(err)
	})
	return previous, res, err
}

// Delete hard-deletes a lead. Only super admins may do this.
func (s *Service) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if !scope.IsSuperAdmin() {
		return apperr.Forbidden(deleteForbidden)
	}

	lead, err := s.repo.Delete(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	s.record(ctx, lead, domain.ActionDeleted, "Lead "+lead.InquiryNumber+" eliminado", actorID(scope), nil)
	return nil
}

// CheckDuplicate looks for an open lead with the same normalized phone.
func (s *Service) CheckDuplicate(ctx context.Context, scope access.Scope, orgID *uuid.UUID, rawPhone string) (DuplicateResult, error) {
	target, err := targetOrganization(scope, orgID)
	if err != nil {
		return DuplicateResult{}, err
	}
	normalized := s.phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return DuplicateResult{}, apperr.Validation("phone is required")
	}

	lead, err := s.repo.GetByPhone(ctx, target, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return DuplicateResult{IsDuplicate: false}, nil
	}
	if err != nil {
		return DuplicateResult{}, err
	}
	if !scope.Allows(lead.OrganizationID, lead.BranchID, lead.AssignedTo) {
		return DuplicateResult{IsDuplicate: true}, nil
	}
	return DuplicateResult{IsDuplicate: true, ExistingLead: &lead}, nil
}

// History returns the audit trail of a visible lead, newest first.
func (s *Service) History(ctx context.Context, scope access.Scope, id uuid.UUID) ([]ports.HistoryRecord, error) {
	if _, err := s.load(ctx, scope, id); err != nil {
		return nil, err
	}
	return s.historyReader.ListForLead(ctx, id)
}

func (s *Service) load(ctx context.Context, scope access.Scope, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Lead{}, mapNotFound(err)
	}
	if !scope.Allows(lead.OrganizationID, lead.BranchID, lead.AssignedTo) {
		return repository.Lead{}, apperr.NotFound(leadNotFoundMsg)
	}
	return lead, nil
}

func (s *Service) match(ctx context.Context, orgID uuid.UUID, origin, province *string) (domain.Match, bool, error) {
	if deref(origin) == "" && deref(province) == "" {
		return domain.Match{}, false, nil
	}
	rules, err := s.rules.ActiveRules(ctx, orgID)
	if err != nil {
		return domain.Match{}, false, err
	}
	m, ok := domain.SelectAssignee(domain.MatchInput{
		OrganizationID: orgID,
		Origin:         deref(origin),
		Province:       deref(province),
	}, rules, s.pick)
	return m, ok, nil
}

func (s *Service) checkAssignee(ctx context.Context, orgID, userID uuid.UUID) error {
	ok, err := s.users.IsActiveMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("assignee must be an active user of the organization")
	}
	return nil
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

func contactSnapshot(lead repository.Lead, tag string) ports.ContactFromLead {
	return ports.ContactFromLead{
		OrganizationID: lead.OrganizationID,
		BranchID:       lead.BranchID,
		LeadID:         lead.ID,
		InquiryNumber:  lead.InquiryNumber,
		LeadStatus:     tag,
		Tag:            tag,
		FullName:       lead.FullName,
		Phone:          lead.Phone,
		Email:          lead.Email,
		Origin:         lead.Origin,
		Province:       lead.Province,
		City:           domain.ContactCity(lead.City, lead.Province),
		Passengers:     lead.Passengers,
		TravelDate:     lead.TravelDate,
		AssignedTo:     lead.AssignedTo,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(leadNotFoundMsg)
	}
	return err
}

func actorID(scope access.Scope) *uuid.UUID {
	if scope.UserID == uuid.Nil {
		return nil
	}
	id := scope.UserID
	return &id
}

func normalizeEmail(email *string) *string {
	v := sanitize.TextPtr(email)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func equalStringPtrs(a, b *string) bool {
	return deref(a) == deref(b)
}

// Export returns up to maxExportRows leads matching the filter.
func (s *Service) Export(ctx context.Context, scope access.Scope, f ListFilter) ([]repository.Lead, error) {
	params := listParams(scope, f)
	params.Limit = maxExportRows
	items, _, err := s.repo.List(ctx, params)
	return items, err
}

// AssigneeName resolves a user id for display.
func (s *Service) AssigneeName(ctx context.Context, id uuid.UUID) string {
	return s.displayName(ctx, &id)
}
