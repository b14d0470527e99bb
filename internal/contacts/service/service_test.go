package service

import (
	"context"
	"testing"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/contacts/repository"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	contacts map[uuid.UUID]repository.Contact
	byLead   map[uuid.UUID]uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{contacts: map[uuid.UUID]repository.Contact{}, byLead: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeRepo) Create(_ context.Context, c repository.Contact) (repository.Contact, error) {
	c.ID = uuid.New()
	f.contacts[c.ID] = c
	return c, nil
}

func (f *fakeRepo) CreateFromLead(ctx context.Context, c repository.Contact) (repository.Contact, bool, error) {
	if id, ok := f.byLead[*c.OriginalLeadID]; ok {
		return f.contacts[id], false, nil
	}
	created, _ := f.Create(ctx, c)
	f.byLead[*c.OriginalLeadID] = created.ID
	return created, true, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return repository.Contact{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.ContactUpdate) (repository.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return repository.Contact{}, repository.ErrNotFound
	}
	if p.FullName != nil {
		c.FullName = *p.FullName
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Tag != nil {
		c.Tag = p.Tag
	}
	if p.AssignedTo != nil {
		c.AssignedTo = p.AssignedTo
	}
	f.contacts[id] = c
	return c, nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Contact, int, error) {
	out := []repository.Contact{}
	for _, c := range f.contacts {
		if p.Scope.Allows(c.OrganizationID, c.BranchID, c.AssignedTo) {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

type fakeHistory struct {
	entries []HistoryEntry
}

func (f *fakeHistory) RecordContact(_ context.Context, e HistoryEntry) {
	f.entries = append(f.entries, e)
}

func (f *fakeHistory) ListForContact(_ context.Context, id uuid.UUID) ([]HistoryRecord, error) {
	out := []HistoryRecord{}
	for _, e := range f.entries {
		if e.ContactID == id {
			out = append(out, HistoryRecord{ID: uuid.New(), Action: e.Action, Description: e.Description})
		}
	}
	return out, nil
}

type fakeMembers map[uuid.UUID]bool

func (f fakeMembers) IsActiveMember(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return f[userID], nil
}

func newTestService(members fakeMembers) (*Service, *fakeRepo, *fakeHistory) {
	repo := newFakeRepo()
	hist := &fakeHistory{}
	return New(repo, hist, hist, members, nil), repo, hist
}

func adminScope(orgID uuid.UUID) access.Scope {
	return access.Scope{Level: access.LevelOrganization, UserID: uuid.New(), OrganizationID: &orgID, Role: access.RoleAdmin}
}

func TestCreateFromLeadIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	in := FromLeadInput{
		OrganizationID: uuid.New(),
		LeadID:         uuid.New(),
		InquiryNumber:  "CONS-000001",
		LeadStatus:     "contacted",
		Tag:            "contacted",
		FullName:       "Ana Pérez",
		Phone:          "+5493511234567",
	}

	first, created, err := svc.CreateFromLead(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	in.Tag = "reserved"
	second, created, err := svc.CreateFromLead(context.Background(), in)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Fatalf("second call must not create")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same contact, got %s and %s", first.ID, second.ID)
	}
	if *second.Tag != "contacted" {
		t.Fatalf("existing tag must be kept, got %q", *second.Tag)
	}
	if len(repo.contacts) != 1 {
		t.Fatalf("expected one contact, got %d", len(repo.contacts))
	}
	if *first.OriginalLeadInquiryNumber != "CONS-000001" {
		t.Fatalf("inquiry number not copied: %v", first.OriginalLeadInquiryNumber)
	}
}

func TestCreateRecordsHistoryAndNormalizesPhone(t *testing.T) {
	svc, _, hist := newTestService(nil)
	orgID := uuid.New()

	c, err := svc.Create(context.Background(), adminScope(orgID), CreateInput{
		FullName: "  Juan Gómez ",
		Phone:    "0351 15-123-4567",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.FullName != "Juan Gómez" {
		t.Fatalf("name not sanitized: %q", c.FullName)
	}
	if c.OrganizationID != orgID {
		t.Fatalf("wrong organization")
	}
	if len(hist.entries) != 1 || hist.entries[0].Action != actionCreated {
		t.Fatalf("expected contact_created entry, got %+v", hist.entries)
	}
}

func TestCreateValidation(t *testing.T) {
	orgID := uuid.New()
	outsider := uuid.New()
	bad := "vip"

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing name", CreateInput{Phone: "+5493511234567"}},
		{"missing phone", CreateInput{FullName: "Ana"}},
		{"unknown tag", CreateInput{FullName: "Ana", Phone: "+5493511234567", Tag: &bad}},
		{"inactive assignee", CreateInput{FullName: "Ana", Phone: "+5493511234567", AssignedTo: &outsider}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService(fakeMembers{})
			_, err := svc.Create(context.Background(), adminScope(orgID), tt.in)
			if apperr.GetKind(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(repo.contacts) != 0 {
				t.Fatalf("nothing should be stored")
			}
		})
	}
}

func TestAgentCreatesOwnContact(t *testing.T) {
	orgID := uuid.New()
	agent := access.Scope{Level: access.LevelOwn, UserID: uuid.New(), OrganizationID: &orgID, Role: access.RoleAgent}
	svc, _, _ := newTestService(fakeMembers{agent.UserID: true})

	c, err := svc.Create(context.Background(), agent, CreateInput{FullName: "Ana", Phone: "+5493511234567"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.AssignedTo == nil || *c.AssignedTo != agent.UserID {
		t.Fatalf("agent contact must be self-assigned")
	}
	if _, err := svc.Get(context.Background(), agent, c.ID); err != nil {
		t.Fatalf("agent must see own contact: %v", err)
	}
}

func TestUpdateHidesForeignContacts(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	c, _ := repo.Create(context.Background(), repository.Contact{OrganizationID: uuid.New(), FullName: "Ana", Phone: "1"})

	name := "Otra"
	_, err := svc.Update(context.Background(), adminScope(uuid.New()), c.ID, UpdateInput{FullName: &name})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRecordsChangedFields(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	orgID := uuid.New()
	c, _ := repo.Create(context.Background(), repository.Contact{OrganizationID: orgID, FullName: "Ana", Phone: "1"})

	tag := "reserved"
	updated, err := svc.Update(context.Background(), adminScope(orgID), c.ID, UpdateInput{Tag: &tag})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *updated.Tag != "reserved" {
		t.Fatalf("tag not updated")
	}
	records, err := svc.History(context.Background(), adminScope(orgID), c.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].Action != actionUpdated {
		t.Fatalf("unexpected history %+v", records)
	}
	if records[0].Description != "Contacto actualizado: etiqueta" {
		t.Fatalf("unexpected description %q", records[0].Description)
	}
}
