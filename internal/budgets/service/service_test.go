package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/budgets/domain"
	"travel_crm_backend/internal/events"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	bus     *recordingBus
	pdf     *fakePDF
	storage *fakeStorage
	orgID   uuid.UUID
	contact uuid.UUID
	lead    uuid.UUID
}

func newFixture() *fixture {
	orgID := uuid.New()
	email := "ana@example.com"
	f := &fixture{
		repo:    newFakeRepo(),
		bus:     &recordingBus{},
		pdf:     &fakePDF{},
		storage: &fakeStorage{objects: map[string][]byte{}},
		orgID:   orgID,
		contact: uuid.New(),
		lead:    uuid.New(),
	}
	people := fakePeople{
		contacts: map[uuid.UUID]Person{f.contact: {OrganizationID: orgID, Name: "Ana Pérez", Email: &email}},
		leads:    map[uuid.UUID]Person{f.lead: {OrganizationID: orgID, Name: "Juan Gómez"}},
	}
	f.svc = New(Deps{
		Repo:          f.repo,
		Tx:            inlineTx{},
		People:        people,
		Bus:           f.bus,
		PDF:           f.pdf,
		Storage:       f.storage,
		PDFBucket:     "budget-pdfs",
		PublicBaseURL: "https://crm.example.com",
	})
	return f
}

func (f *fixture) admin() access.Scope {
	org := f.orgID
	return access.Scope{Level: access.LevelOrganization, UserID: uuid.New(), OrganizationID: &org, Role: access.RoleAdmin}
}

func (f *fixture) agent() access.Scope {
	org := f.orgID
	return access.Scope{Level: access.LevelOwn, UserID: uuid.New(), OrganizationID: &org, Role: access.RoleAgent}
}

func TestCreateAllocatesUniqueSlugs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Bariloche 2026", ContactID: &f.contact})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Budget.Slug != "ana-perez-bariloche-2026" {
		t.Fatalf("slug = %q", first.Budget.Slug)
	}
	if first.PublicURL != "https://crm.example.com/p/ana-perez-bariloche-2026" {
		t.Fatalf("public url = %q", first.PublicURL)
	}
	if first.Budget.Status != string(domain.StatusNotSent) {
		t.Fatalf("status = %q", first.Budget.Status)
	}

	second, err := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Bariloche 2026", ContactID: &f.contact})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Budget.Slug != "ana-perez-bariloche-2026-2" {
		t.Fatalf("second slug = %q", second.Budget.Slug)
	}
	if len(f.repo.versions) != 2 || f.repo.versions[0].ChangeKind != domain.ChangeCreated {
		t.Fatalf("expected one created snapshot per budget, got %+v", f.repo.versions)
	}
}

func TestCreateValidatesLinkage(t *testing.T) {
	f := newFixture()
	foreign := uuid.New()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"contact and lead", CreateInput{Title: "X", ContactID: &f.contact, LeadID: &f.lead}},
		{"unknown contact", CreateInput{Title: "X", ContactID: &foreign}},
		{"empty title", CreateInput{Title: "  "}},
		{"negative margin", CreateInput{Title: "X", Margin: &domain.MarginConfig{BaseCost: -5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.admin(), tt.in)
			if apperr.GetKind(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateRejectsPersonFromOtherOrganization(t *testing.T) {
	f := newFixture()
	other := uuid.New()
	f.svc.people = fakePeople{contacts: map[uuid.UUID]Person{f.contact: {OrganizationID: other, Name: "X"}}}

	_, err := f.svc.Create(context.Background(), f.admin(), CreateInput{Title: "X", ContactID: &f.contact})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateKeepsSlugAndMargin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, f.admin(), CreateInput{
		Title:       "Salta",
		LeadID:      &f.lead,
		Description: "<p>v1</p>",
		Margin:      &domain.MarginConfig{BaseCost: 1000, MarginPercent: 10},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.FinalPrice == nil || *created.FinalPrice != 1100 {
		t.Fatalf("final price = %v", created.FinalPrice)
	}

	title := "Salta y Jujuy"
	desc := "<p>v2</p>"
	updated, err := f.svc.Update(ctx, f.admin(), created.Budget.ID, UpdateInput{Title: &title, Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Budget.Slug != created.Budget.Slug {
		t.Fatalf("slug changed to %q", updated.Budget.Slug)
	}
	if updated.Budget.Version != 2 {
		t.Fatalf("version = %d", updated.Budget.Version)
	}
	if updated.Margin == nil || updated.Margin.BaseCost != 1000 {
		t.Fatalf("margin lost on description edit: %+v", updated.Margin)
	}
	if !strings.HasPrefix(updated.Budget.Description, "<p>v2</p>") {
		t.Fatalf("description = %q", updated.Budget.Description)
	}

	versions, err := f.svc.Versions(ctx, f.admin(), created.Budget.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 || versions[0].ChangeKind != domain.ChangeUpdated {
		t.Fatalf("unexpected versions %+v", versions)
	}
}

func TestUpdateStatusPublishesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Mendoza", ContactID: &f.contact})

	sent, err := f.svc.UpdateStatus(ctx, f.admin(), created.Budget.ID, "sent")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if sent.Budget.Status != "sent" {
		t.Fatalf("status = %q", sent.Budget.Status)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin(), created.Budget.ID, "sent"); err != nil {
		t.Fatalf("repeat status: %v", err)
	}

	if len(f.bus.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.bus.events))
	}
	evt, ok := f.bus.events[0].(events.BudgetStatusChanged)
	if !ok {
		t.Fatalf("unexpected event %T", f.bus.events[0])
	}
	if evt.RecipientEmail != "ana@example.com" || evt.OldStatus != "not_sent" || evt.NewStatus != "sent" {
		t.Fatalf("unexpected event %+v", evt)
	}

	if _, err := f.svc.UpdateStatus(ctx, f.admin(), created.Budget.ID, "paid"); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAgentSeesOnlyOwnBudgets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Iguazú"})

	if _, err := f.svc.Get(ctx, f.agent(), created.Budget.ID); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found for agent, got %v", err)
	}

	agent := f.agent()
	own, err := f.svc.Create(ctx, agent, CreateInput{Title: "Ushuaia"})
	if err != nil {
		t.Fatalf("agent create: %v", err)
	}
	if _, err := f.svc.Get(ctx, agent, own.Budget.ID); err != nil {
		t.Fatalf("agent must see own budget: %v", err)
	}
}

func TestGeneratePDFStoresFile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Calafate", ContactID: &f.contact})

	link, err := f.svc.GeneratePDF(ctx, f.admin(), created.Budget.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored := f.repo.budgets[created.Budget.ID]
	if stored.PDFFileKey == nil || *stored.PDFFileKey != link.FileKey {
		t.Fatalf("pdf key not stored")
	}
	if !strings.HasPrefix(*stored.PDFFileKey, f.orgID.String()+"/budgets/") {
		t.Fatalf("unexpected key %q", *stored.PDFFileKey)
	}

	again, err := f.svc.GeneratePDF(ctx, f.admin(), created.Budget.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(f.storage.deleted) != 1 || f.storage.deleted[0] != link.FileKey {
		t.Fatalf("previous file not removed: %v", f.storage.deleted)
	}
	if again.FileKey == link.FileKey {
		t.Fatalf("expected a new key")
	}
}

func TestGeneratePDFErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Calafate"})

	f.pdf.err = errors.New("gotenberg down")
	if _, err := f.svc.GeneratePDF(ctx, f.admin(), created.Budget.ID); apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}

	f.svc.pdf = nil
	if _, err := f.svc.GeneratePDF(ctx, f.admin(), created.Budget.ID); apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable when unconfigured, got %v", err)
	}
}

func TestRenderUsesTemplate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tmpl, err := f.svc.CreateTemplate(ctx, f.admin(), TemplateInput{Name: "Simple", Body: `<h1>{{.Title}}</h1><p>{{.RecipientName}}</p>`})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	created, err := f.svc.Create(ctx, f.admin(), CreateInput{Title: "Tilcara", ContactID: &f.contact, TemplateID: &tmpl.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := f.svc.RenderPublic(ctx, created.Budget.Slug)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "<h1>Tilcara</h1><p>Ana Pérez</p>" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := f.svc.RenderPublic(ctx, "missing"); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTemplateRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.CreateTemplate(ctx, f.admin(), TemplateInput{Name: "Roto", Body: "{{.Title"}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.CreateTemplate(ctx, f.agent(), TemplateInput{Name: "X", Body: "x"}); apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for agent, got %v", err)
	}
}
