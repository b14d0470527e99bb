package management

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"travel_crm_backend/internal/leads/domain"
	"travel_crm_backend/internal/leads/ports"
	"travel_crm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]repository.Lead
	counters map[uuid.UUID]int64
	deletes  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{leads: map[uuid.UUID]repository.Lead{}, counters: map[uuid.UUID]int64{}}
}

func (r *fakeRepo) Create(_ context.Context, p repository.CreateLeadParams) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[p.OrganizationID]++
	now := time.Now()
	lead := repository.Lead{
		ID:                 uuid.New(),
		OrganizationID:     p.OrganizationID,
		BranchID:           p.BranchID,
		InquiryNumber:      repository.FormatInquiryNumber(r.counters[p.OrganizationID]),
		FullName:           p.FullName,
		Phone:              p.Phone,
		Email:              p.Email,
		Origin:             p.Origin,
		Province:           p.Province,
		City:               p.City,
		Passengers:         p.Passengers,
		TravelDate:         p.TravelDate,
		Status:             p.Status,
		AssignedTo:         p.AssignedTo,
		ConvertedToContact: p.ConvertedToContact,
		Notes:              p.Notes,
		Source:             p.Source,
		CreatedBy:          p.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *fakeRepo) put(lead repository.Lead) repository.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	r.leads[lead.ID] = lead
	return lead
}

func (r *fakeRepo) get(id uuid.UUID) repository.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id]
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (r *fakeRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeRepo) GetByPhone(_ context.Context, orgID uuid.UUID, phone string) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.OrganizationID == orgID && l.Phone == phone && l.Status != string(domain.StatusArchived) {
			return l, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (r *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.UpdateLeadParams) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if p.FullName != nil {
		l.FullName = *p.FullName
	}
	if p.Phone != nil {
		l.Phone = *p.Phone
	}
	if p.Email != nil {
		l.Email = p.Email
	}
	if p.Origin != nil {
		l.Origin = p.Origin
	}
	if p.Province != nil {
		l.Province = p.Province
	}
	if p.City != nil {
		l.City = p.City
	}
	if p.Notes != nil {
		l.Notes = p.Notes
	}
	if p.BranchID != nil {
		l.BranchID = p.BranchID
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.AssignedTo != nil {
		l.AssignedTo = p.AssignedTo
	}
	if p.ClearAssignee {
		l.AssignedTo = nil
	}
	if p.ConvertedToContact != nil {
		v := *p.ConvertedToContact
		l.ConvertedToContact = &v
	}
	if p.ArchivedReason != nil {
		l.ArchivedReason = p.ArchivedReason
	} else if p.ClearArchive || p.ClearArchivedReason {
		l.ArchivedReason = nil
	}
	if p.ArchivedAt != nil {
		l.ArchivedAt = p.ArchivedAt
	} else if p.ClearArchive {
		l.ArchivedAt = nil
	}
	l.UpdatedAt = time.Now()
	r.leads[id] = l
	return l, nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	l, ok := r.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	delete(r.leads, id)
	return l, nil
}

func (r *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Lead, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]repository.Lead, 0)
	for _, l := range r.leads {
		if p.Scope.Allows(l.OrganizationID, l.BranchID, l.AssignedTo) {
			items = append(items, l)
		}
	}
	return items, len(items), nil
}

func (r *fakeRepo) ListIDs(ctx context.Context, p repository.ListParams, limit int) ([]uuid.UUID, error) {
	items, _, _ := r.List(ctx, p)
	ids := make([]uuid.UUID, 0, len(items))
	for _, l := range items {
		if p.Unassigned && l.AssignedTo != nil {
			continue
		}
		ids = append(ids, l.ID)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRules struct {
	rules []domain.AssignmentRule
	err   error
}

func (f *fakeRules) ActiveRules(context.Context, uuid.UUID) ([]domain.AssignmentRule, error) {
	return f.rules, f.err
}

type fakeContacts struct {
	mu     sync.Mutex
	byLead map[uuid.UUID]ports.ContactFromLead
	ids    map[uuid.UUID]uuid.UUID
	calls  int
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{byLead: map[uuid.UUID]ports.ContactFromLead{}, ids: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeContacts) CreateFromLead(_ context.Context, in ports.ContactFromLead) (ports.ContactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if id, ok := f.ids[in.LeadID]; ok {
		return ports.ContactRef{ID: id, Created: false}, nil
	}
	id := uuid.New()
	f.ids[in.LeadID] = id
	f.byLead[in.LeadID] = in
	return ports.ContactRef{ID: id, Created: true}, nil
}

func (f *fakeContacts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byLead)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []ports.HistoryEntry
}

func (f *fakeHistory) Record(_ context.Context, e ports.HistoryEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeHistory) ListForLead(_ context.Context, leadID uuid.UUID) ([]ports.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.HistoryRecord, 0)
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.LeadID != nil && *e.LeadID == leadID {
			out = append(out, ports.HistoryRecord{ID: uuid.New(), Action: e.Action, Description: e.Description, UserID: e.UserID})
		}
	}
	return out, nil
}

func (f *fakeHistory) actions(leadID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0)
	for _, e := range f.entries {
		if e.LeadID != nil && *e.LeadID == leadID {
			out = append(out, e.Action)
		}
	}
	return out
}

func (f *fakeHistory) description(leadID uuid.UUID, action string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.LeadID != nil && *e.LeadID == leadID && e.Action == action {
			return e.Description
		}
	}
	return ""
}

type fakeUsers struct {
	active map[uuid.UUID]uuid.UUID
}

func (f *fakeUsers) IsActiveMember(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	org, ok := f.active[userID]
	return ok && org == orgID, nil
}

func (f *fakeUsers) DisplayName(_ context.Context, userID uuid.UUID) string {
	return fmt.Sprintf("user-%s", userID.String()[:8])
}

func errorsAs(err error, target any) bool { return errors.As(err, target) }
