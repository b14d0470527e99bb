package management

import (
	"context"
	"slices"
	"strings"
	"testing"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/leads/domain"
	"travel_crm_backend/internal/leads/repository"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

const testPhone = "+54 9 11 2345-6789"

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	rules    *fakeRules
	contacts *fakeContacts
	history  *fakeHistory
	users    *fakeUsers
	org      uuid.UUID
	admin    access.Scope
	agentA   uuid.UUID
	agentB   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	org := uuid.New()
	f := &fixture{
		repo:     newFakeRepo(),
		rules:    &fakeRules{},
		contacts: newFakeContacts(),
		history:  &fakeHistory{},
		org:      org,
		agentA:   uuid.New(),
		agentB:   uuid.New(),
	}
	f.users = &fakeUsers{active: map[uuid.UUID]uuid.UUID{f.agentA: org, f.agentB: org}}
	f.admin = access.Scope{Level: access.LevelOrganization, UserID: uuid.New(), OrganizationID: &org, Role: access.RoleAdmin}
	f.svc = New(Deps{
		Repo:          f.repo,
		Tx:            inlineTx{},
		Rules:         f.rules,
		Contacts:      f.contacts,
		History:       f.history,
		HistoryReader: f.history,
		Users:         f.users,
		Picker:        func(int) int { return 0 },
	})
	return f
}

func (f *fixture) seed(status domain.Status, assignee *uuid.UUID) repository.Lead {
	province := "Córdoba"
	return f.repo.put(repository.Lead{
		OrganizationID: f.org,
		InquiryNumber:  "CONS-000042",
		FullName:       "Ana Pérez",
		Phone:          "+5491123456789",
		Province:       &province,
		Status:         string(status),
		AssignedTo:     assignee,
		Source:         SourceManual,
	})
}

func (f *fixture) superAdmin() access.Scope {
	return access.Scope{Level: access.LevelAll, UserID: uuid.New(), Role: access.RoleSuperAdmin}
}

func TestCreateLeadAutoAssignsFromProvinceRule(t *testing.T) {
	f := newFixture(t)
	f.rules.rules = []domain.AssignmentRule{{
		ID: uuid.New(), OrganizationID: f.org, Type: domain.RuleProvince, Condition: "Córdoba",
		Candidates: []uuid.UUID{f.agentA, f.agentB}, Active: true,
	}}
	province := "córdoba"

	lead, err := f.svc.Create(context.Background(), f.admin, CreateLeadInput{FullName: "Ana", Phone: testPhone, Province: &province})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.AssignedTo == nil || *lead.AssignedTo != f.agentA {
		t.Fatalf("expected lead assigned to first candidate, got %v", lead.AssignedTo)
	}
	if lead.Status != string(domain.StatusAssigned) {
		t.Fatalf("expected status assigned, got %s", lead.Status)
	}
	if lead.Phone != "+5491123456789" {
		t.Errorf("expected normalized phone, got %s", lead.Phone)
	}
	if lead.InquiryNumber != "CONS-000001" {
		t.Errorf("expected first inquiry number, got %s", lead.InquiryNumber)
	}
	if f.contacts.count() != 1 {
		t.Fatalf("expected a contact for the assigned lead, got %d", f.contacts.count())
	}
	if tag := f.contacts.byLead[lead.ID].Tag; tag != string(domain.StatusAssigned) {
		t.Errorf("expected contact tag assigned, got %s", tag)
	}
	actions := f.history.actions(lead.ID)
	for _, want := range []string{domain.ActionCreated, domain.ActionAutoAssigned, domain.ActionConvertedToContact} {
		if !slices.Contains(actions, want) {
			t.Errorf("expected history action %s in %v", want, actions)
		}
	}
}

func TestCreateLeadWithoutMatchStaysNew(t *testing.T) {
	f := newFixture(t)
	origin := "web"

	lead, err := f.svc.Create(context.Background(), f.admin, CreateLeadInput{FullName: "Ana", Phone: testPhone, Origin: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.AssignedTo != nil || lead.Status != string(domain.StatusNew) {
		t.Fatalf("expected unassigned new lead, got %s / %v", lead.Status, lead.AssignedTo)
	}
	if f.contacts.count() != 0 {
		t.Fatal("expected no contact for an unassigned lead")
	}
}

func TestCreateLeadValidation(t *testing.T) {
	f := newFixture(t)
	outsider := uuid.New()

	tests := []struct {
		name string
		in   CreateLeadInput
	}{
		{"missing name", CreateLeadInput{FullName: "  ", Phone: testPhone}},
		{"missing phone", CreateLeadInput{FullName: "Ana", Phone: ""}},
		{"bad source", CreateLeadInput{FullName: "Ana", Phone: testPhone, Source: "fax"}},
		{"assignee outside org", CreateLeadInput{FullName: "Ana", Phone: testPhone, AssignedTo: &outsider}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.admin, tt.in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestQualifyingStatusWithAssigneeConvertsOnce(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusAssigned, &f.agentA)
	ctx := context.Background()

	res, err := f.svc.UpdateStatus(ctx, f.admin, lead.ID, "interested")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ContactCreated || res.ContactID == nil {
		t.Fatal("expected a contact to be created")
	}
	if res.Lead.ConvertedToContact == nil || !*res.Lead.ConvertedToContact {
		t.Fatal("expected converted_to_contact=true")
	}
	contact := f.contacts.byLead[lead.ID]
	if contact.Tag != "interested" || contact.City == nil || *contact.City != "Córdoba" {
		t.Errorf("unexpected contact snapshot: tag=%s city=%v", contact.Tag, contact.City)
	}

	again, err := f.svc.UpdateStatus(ctx, f.admin, lead.ID, "reserved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ContactCreated {
		t.Fatal("second qualifying transition must not create another contact")
	}
	if f.contacts.count() != 1 {
		t.Fatalf("expected exactly one contact, got %d", f.contacts.count())
	}
	if *again.ContactID != *res.ContactID {
		t.Fatal("expected the existing contact to be returned")
	}
}

func TestQualifyingStatusWithoutAssigneeOnlyUpdatesStatus(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)

	res, err := f.svc.UpdateStatus(context.Background(), f.admin, lead.ID, "contacted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lead.Status != "contacted" {
		t.Fatalf("expected status contacted, got %s", res.Lead.Status)
	}
	if res.Notice != domain.NoticeNoAssignee {
		t.Errorf("expected notice, got %q", res.Notice)
	}
	if f.contacts.calls != 0 {
		t.Fatal("converter must not be called without an assignee")
	}
	if !slices.Contains(f.history.actions(lead.ID), domain.ActionStatusChange) {
		t.Error("expected status_change history")
	}
}

func TestRevertToNonQualifyingKeepsContact(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusAssigned, &f.agentA)
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, f.admin, lead.ID, "followed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := f.svc.UpdateStatus(ctx, f.admin, lead.ID, "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lead.ConvertedToContact == nil || *res.Lead.ConvertedToContact {
		t.Fatal("expected converted_to_contact=false after revert")
	}
	if f.contacts.count() != 1 {
		t.Fatal("revert must not remove the contact")
	}
}

func TestArchiveAndLeaveArchived(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusInterested, &f.agentA)
	ctx := context.Background()
	reason := "<b>Sin respuesta</b>"

	archived, err := f.svc.Archive(ctx, f.admin, lead.ID, &reason)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archived.Status != "archived" || archived.ArchivedAt == nil {
		t.Fatalf("expected archived lead with timestamp, got %s / %v", archived.Status, archived.ArchivedAt)
	}
	if archived.ArchivedReason == nil || *archived.ArchivedReason != "Sin respuesta" {
		t.Fatalf("expected sanitized reason, got %v", archived.ArchivedReason)
	}
	if f.contacts.calls != 0 {
		t.Fatal("archiving must not touch contacts")
	}

	res, err := f.svc.UpdateStatus(ctx, f.admin, lead.ID, "contacted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lead.ArchivedAt != nil || res.Lead.ArchivedReason != nil {
		t.Fatal("expected archive fields cleared when leaving archived")
	}
}

func TestUpdateStatusArchivedRoutesToArchive(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)

	res, err := f.svc.UpdateStatus(context.Background(), f.admin, lead.ID, "archived")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lead.ArchivedAt == nil || res.Lead.ArchivedReason != nil {
		t.Fatal("expected archived_at set and no reason")
	}
	if !slices.Contains(f.history.actions(lead.ID), domain.ActionArchived) {
		t.Error("expected archived history entry")
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)

	if _, err := f.svc.UpdateStatus(context.Background(), f.admin, lead.ID, "won"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAssignmentTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.seed(domain.StatusNew, nil)

	first, err := f.svc.Assign(ctx, f.admin, lead.ID, &f.agentA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Kind != domain.AssignmentFirstAssign || first.Lead.Status != "assigned" || !first.ContactCreated {
		t.Fatalf("unexpected first assignment: kind=%v status=%s created=%v", first.Kind, first.Lead.Status, first.ContactCreated)
	}

	if _, err := f.svc.UpdateStatus(ctx, f.admin, lead.ID, "interested"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	re, err := f.svc.Assign(ctx, f.admin, lead.ID, &f.agentB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if re.Kind != domain.AssignmentReassign || re.Lead.Status != "interested" {
		t.Fatalf("reassign must keep status, got kind=%v status=%s", re.Kind, re.Lead.Status)
	}

	un, err := f.svc.Assign(ctx, f.admin, lead.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if un.Kind != domain.AssignmentUnassign || un.Lead.Status != "new" || un.Lead.AssignedTo != nil {
		t.Fatalf("unassign must reset to new, got kind=%v status=%s", un.Kind, un.Lead.Status)
	}

	again, err := f.svc.Assign(ctx, f.admin, lead.ID, &f.agentA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ContactCreated {
		t.Fatal("second first-assign must reuse the existing contact")
	}
	if f.contacts.count() != 1 {
		t.Fatalf("expected one contact, got %d", f.contacts.count())
	}

	changes := 0
	for _, a := range f.history.actions(lead.ID) {
		if a == domain.ActionAssignmentChange {
			changes++
		}
	}
	if changes != 4 {
		t.Errorf("expected 4 assignment_change entries, got %d", changes)
	}
}

func TestAssignSameAgentIsNoop(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusContacted, &f.agentA)

	res, err := f.svc.Assign(context.Background(), f.admin, lead.ID, &f.agentA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != domain.AssignmentNoChange {
		t.Fatalf("expected no change, got %v", res.Kind)
	}
	if len(f.history.actions(lead.ID)) != 0 {
		t.Fatal("no-op assignment must not write history")
	}
}

func TestAssignRejectsInactiveUser(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)
	stranger := uuid.New()

	if _, err := f.svc.Assign(context.Background(), f.admin, lead.ID, &stranger); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.repo.get(lead.ID).AssignedTo != nil {
		t.Fatal("lead must stay unassigned")
	}
}

func TestBulkAssignIsBestEffort(t *testing.T) {
	f := newFixture(t)
	a := f.seed(domain.StatusNew, nil)
	b := f.seed(domain.StatusNew, nil)
	missing := uuid.New()

	res, err := f.svc.BulkAssign(context.Background(), f.admin, BulkAssignInput{
		LeadIDs:    []uuid.UUID{a.ID, missing, b.ID, a.ID},
		AssigneeID: &f.agentA,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %+v", res)
	}
	if len(res.FailedIDs) != 1 || res.FailedIDs[0] != missing {
		t.Fatalf("expected missing id reported, got %v", res.FailedIDs)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if got := f.repo.get(id); got.AssignedTo == nil || *got.AssignedTo != f.agentA {
			t.Errorf("lead %s not assigned", id)
		}
	}
}

func TestBulkAssignAllFiltered(t *testing.T) {
	f := newFixture(t)
	f.seed(domain.StatusNew, nil)
	f.seed(domain.StatusNew, nil)
	f.seed(domain.StatusContacted, &f.agentB)

	res, err := f.svc.BulkAssign(context.Background(), f.admin, BulkAssignInput{
		AllFiltered: true,
		Filter:      ListFilter{Unassigned: true},
		AssigneeID:  &f.agentA,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Fatalf("expected the two unassigned leads, got %+v", res)
	}
}

func TestBulkAssignRequiresSelection(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.BulkAssign(context.Background(), f.admin, BulkAssignInput{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteRequiresSuperAdmin(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)

	err := f.svc.Delete(context.Background(), f.admin, lead.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	var appErr *apperr.Error
	if !errorsAs(err, &appErr) || appErr.Message != "Solo un Super Admin puede eliminar leads" {
		t.Fatalf("unexpected message: %v", err)
	}
	if f.repo.deletes != 0 {
		t.Fatal("repository must not be called before the role check")
	}

	if err := f.svc.Delete(context.Background(), f.superAdmin(), lead.ID); err != nil {
		t.Fatalf("super admin delete failed: %v", err)
	}
	if !slices.Contains(f.history.actions(lead.ID), domain.ActionDeleted) {
		t.Error("expected deleted history entry to survive the lead")
	}
}

func TestAgentOnlySeesOwnLeads(t *testing.T) {
	f := newFixture(t)
	mine := f.seed(domain.StatusAssigned, &f.agentA)
	theirs := f.seed(domain.StatusAssigned, &f.agentB)
	agent := access.Scope{Level: access.LevelOwn, UserID: f.agentA, OrganizationID: &f.org, Role: access.RoleAgent}
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, agent, mine.ID); err != nil {
		t.Fatalf("expected own lead visible: %v", err)
	}
	if _, err := f.svc.Get(ctx, agent, theirs.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for foreign lead, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, agent, theirs.ID, "contacted"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for foreign status change, got %v", err)
	}
}

func TestUpdateReRunsMatcherForUnassignedLead(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)
	f.rules.rules = []domain.AssignmentRule{{
		ID: uuid.New(), OrganizationID: f.org, Type: domain.RuleCampaign, Condition: "verano",
		Candidates: []uuid.UUID{f.agentB}, Active: true,
	}}
	origin := "Instagram Verano"

	updated, err := f.svc.Update(context.Background(), f.admin, lead.ID, UpdateLeadInput{Origin: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != f.agentB {
		t.Fatalf("expected matcher to assign agent B, got %v", updated.AssignedTo)
	}
	if updated.Status != "assigned" {
		t.Fatalf("expected status assigned, got %s", updated.Status)
	}
	actions := f.history.actions(lead.ID)
	if !slices.Contains(actions, domain.ActionAutoAssigned) {
		t.Error("expected auto_assigned history")
	}
	if !slices.Contains(actions, domain.ActionAssignmentChange) {
		t.Fatalf("expected assignment_change history, got %v", actions)
	}
	desc := f.history.description(lead.ID, domain.ActionAssignmentChange)
	newName := f.users.DisplayName(context.Background(), f.agentB)
	if !strings.Contains(desc, newName) || !strings.Contains(desc, "sin asignar") {
		t.Errorf("assignment_change must name old and new assignee, got %q", desc)
	}
}

func TestUpdateDoesNotReassignArchivedLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.seed(domain.StatusNew, nil)
	f.rules.rules = []domain.AssignmentRule{{
		ID: uuid.New(), OrganizationID: f.org, Type: domain.RuleCampaign, Condition: "verano",
		Candidates: []uuid.UUID{f.agentB}, Active: true,
	}}
	reason := "duplicado"
	if _, err := f.svc.Archive(ctx, f.admin, lead.ID, &reason); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	origin := "Instagram Verano"
	updated, err := f.svc.Update(ctx, f.admin, lead.ID, UpdateLeadInput{Origin: &origin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != "archived" || updated.AssignedTo != nil {
		t.Fatalf("archived lead must stay archived and unassigned, got status=%s assignee=%v", updated.Status, updated.AssignedTo)
	}
	if updated.ArchivedAt == nil || updated.ArchivedReason == nil || *updated.ArchivedReason != "duplicado" {
		t.Fatalf("archive fields must be kept, got %v / %v", updated.ArchivedAt, updated.ArchivedReason)
	}
	if updated.Origin == nil || *updated.Origin != origin {
		t.Errorf("field edit must still apply, got origin %v", updated.Origin)
	}
	if f.contacts.count() != 0 {
		t.Errorf("expected no contact, got %d", f.contacts.count())
	}
	if slices.Contains(f.history.actions(lead.ID), domain.ActionAutoAssigned) {
		t.Error("archived lead must not be auto-assigned")
	}
}

func TestCheckDuplicate(t *testing.T) {
	f := newFixture(t)
	lead := f.seed(domain.StatusNew, nil)
	ctx := context.Background()

	res, err := f.svc.CheckDuplicate(ctx, f.admin, nil, testPhone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsDuplicate || res.ExistingLead == nil || res.ExistingLead.ID != lead.ID {
		t.Fatalf("expected duplicate of seeded lead, got %+v", res)
	}

	res, err = f.svc.CheckDuplicate(ctx, f.admin, nil, "+54 9 351 555-1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsDuplicate {
		t.Fatal("expected no duplicate for a different phone")
	}
}

func TestImportCreatesLeadsWithImportSource(t *testing.T) {
	f := newFixture(t)
	rows := []ImportRow{
		{Line: 2, Input: CreateLeadInput{FullName: "Ana", Phone: testPhone}},
		{Line: 3, Input: CreateLeadInput{FullName: "Luis", Phone: "+54 9 351 555-1234", AssignedTo: ptrUUID(uuid.New())}},
	}

	res, err := f.svc.Import(context.Background(), f.admin, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Imported != 1 || res.Failed != 1 || len(res.Errors) != 1 || res.Errors[0].Row != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, l := range f.repo.leads {
		if l.Source != SourceImport {
			t.Errorf("expected source import, got %s", l.Source)
		}
		if !slices.Contains(f.history.actions(l.ID), domain.ActionImported) {
			t.Error("expected imported history entry")
		}
	}
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }
