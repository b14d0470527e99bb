package service

import (
	"context"
	"testing"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/tasks/repository"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	tasks map[uuid.UUID]repository.Task
	last  repository.ListParams
	due   time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: map[uuid.UUID]repository.Task{}}
}

func (f *fakeRepo) Create(_ context.Context, t repository.Task) (repository.Task, error) {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return repository.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) Complete(_ context.Context, id uuid.UUID) (repository.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return repository.Task{}, repository.ErrNotFound
	}
	if t.DoneAt == nil {
		now := time.Now()
		t.DoneAt = &now
	}
	f.tasks[id] = t
	return t, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Task, int, error) {
	f.last = p
	return nil, 0, nil
}

func (f *fakeRepo) DueOpen(_ context.Context, before time.Time, _ int) ([]repository.Reminder, error) {
	f.due = before
	return nil, nil
}

type fakeMembers map[uuid.UUID]uuid.UUID

func (f fakeMembers) IsActiveMember(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	org, ok := f[userID]
	return ok && org == orgID, nil
}

type fakeLinks struct {
	leads map[uuid.UUID]uuid.UUID
}

func (f fakeLinks) LeadOrganization(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	org, ok := f.leads[id]
	if !ok {
		return uuid.UUID{}, ErrLinkNotFound
	}
	return org, nil
}

func (f fakeLinks) ContactOrganization(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.UUID{}, ErrLinkNotFound
}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	org     uuid.UUID
	agent   uuid.UUID
	other   uuid.UUID
	manager uuid.UUID
	lead    uuid.UUID
}

func newFixture() fixture {
	org := uuid.New()
	f := fixture{repo: newFakeRepo(), org: org, agent: uuid.New(), other: uuid.New(), manager: uuid.New(), lead: uuid.New()}
	members := fakeMembers{f.agent: org, f.other: org, f.manager: org}
	f.svc = New(f.repo, members, fakeLinks{leads: map[uuid.UUID]uuid.UUID{f.lead: org}})
	return f
}

func (f fixture) scope(user uuid.UUID, level access.Level) access.Scope {
	role := access.RoleAgent
	if level != access.LevelOwn {
		role = access.RoleManager
	}
	return access.Scope{Level: level, UserID: user, OrganizationID: &f.org, Role: role}
}

func TestCreateDefaultsAssigneeToCaller(t *testing.T) {
	f := newFixture()
	due := time.Date(2026, 3, 1, 15, 0, 0, 0, time.FixedZone("ART", -3*3600))

	task, err := f.svc.Create(context.Background(), f.scope(f.agent, access.LevelOwn), CreateInput{
		Title:  " Llamar a <i>Lucía</i> ",
		DueAt:  due,
		LeadID: &f.lead,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.AssignedTo != f.agent || task.CreatedBy == nil || *task.CreatedBy != f.agent {
		t.Fatalf("unexpected ownership %+v", task)
	}
	if task.Title != "Llamar a Lucía" {
		t.Fatalf("title = %q", task.Title)
	}
	if !task.DueAt.Equal(due) || task.DueAt.Location() != time.UTC {
		t.Fatalf("due = %v, want %v in UTC", task.DueAt, due)
	}
}

func TestCreateRules(t *testing.T) {
	f := newFixture()
	foreignOrg := uuid.New()
	outsider := uuid.New()
	due := time.Now().Add(time.Hour)
	unknownLead := uuid.New()

	tests := []struct {
		name  string
		scope access.Scope
		in    CreateInput
		kind  apperr.Kind
	}{
		{"blank title", f.scope(f.agent, access.LevelOwn), CreateInput{Title: "  ", DueAt: due}, apperr.KindValidation},
		{"missing due", f.scope(f.agent, access.LevelOwn), CreateInput{Title: "x"}, apperr.KindValidation},
		{"agent assigns other", f.scope(f.agent, access.LevelOwn), CreateInput{Title: "x", DueAt: due, AssignedTo: &f.other}, apperr.KindForbidden},
		{"non member", f.scope(f.manager, access.LevelOrganization), CreateInput{Title: "x", DueAt: due, AssignedTo: &outsider}, apperr.KindValidation},
		{"foreign org", f.scope(f.manager, access.LevelOrganization), CreateInput{OrganizationID: &foreignOrg, Title: "x", DueAt: due}, apperr.KindForbidden},
		{"unknown lead", f.scope(f.agent, access.LevelOwn), CreateInput{Title: "x", DueAt: due, LeadID: &unknownLead}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.scope, tt.in)
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
	if len(f.repo.tasks) != 0 {
		t.Fatalf("no task should be stored, got %d", len(f.repo.tasks))
	}
}

func TestManagerAssignsAndAgentCompletes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.scope(f.manager, access.LevelOrganization), CreateInput{Title: "Enviar vouchers", DueAt: time.Now(), AssignedTo: &f.agent})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Complete(ctx, f.scope(f.other, access.LevelOwn), task.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("another agent must not see the task, got %v", err)
	}
	done, err := f.svc.Complete(ctx, f.scope(f.agent, access.LevelOwn), task.ID)
	if err != nil || done.DoneAt == nil {
		t.Fatalf("Complete = %+v, %v", done, err)
	}
	again, err := f.svc.Complete(ctx, f.scope(f.agent, access.LevelOwn), task.ID)
	if err != nil || !again.DoneAt.Equal(*done.DoneAt) {
		t.Fatalf("second complete changed done_at: %v, %v", again.DoneAt, err)
	}

	if err := f.svc.Delete(ctx, f.scope(f.agent, access.LevelOwn), task.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("assignee who did not create the task cannot delete it, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.scope(f.manager, access.LevelOrganization), task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestListAppliesScope(t *testing.T) {
	f := newFixture()
	foreign := uuid.New()

	if _, err := f.svc.List(context.Background(), f.scope(f.agent, access.LevelOwn), ListFilter{OrganizationID: &foreign, PageSize: 1000}); err != nil {
		t.Fatalf("List: %v", err)
	}
	p := f.repo.last
	if p.OrganizationID == nil || *p.OrganizationID != f.org {
		t.Fatalf("organization filter = %v, want %s", p.OrganizationID, f.org)
	}
	if p.VisibleTo == nil || *p.VisibleTo != f.agent {
		t.Fatalf("agent listing must be limited to own tasks")
	}
	if p.Limit != maxPageSize {
		t.Fatalf("limit = %d, want %d", p.Limit, maxPageSize)
	}

	if _, err := f.svc.List(context.Background(), f.scope(f.manager, access.LevelOrganization), ListFilter{Mine: true}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if f.repo.last.VisibleTo != nil || f.repo.last.AssignedTo == nil || *f.repo.last.AssignedTo != f.manager {
		t.Fatalf("unexpected params %+v", f.repo.last)
	}
}

func TestDueRemindersUsesLookahead(t *testing.T) {
	f := newFixture()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	if _, err := f.svc.DueReminders(context.Background(), 30*time.Minute, 100); err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if want := now.Add(30 * time.Minute); !f.repo.due.Equal(want) {
		t.Fatalf("due before = %v, want %v", f.repo.due, want)
	}
}
