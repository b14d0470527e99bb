package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"travel_crm_backend/internal/adapters/storage"
	"travel_crm_backend/internal/budgets/repository"
	"travel_crm_backend/internal/events"

	"github.com/google/uuid"
)

type fakeRepo struct {
	budgets   map[uuid.UUID]repository.Budget
	versions  []repository.Version
	templates map[uuid.UUID]repository.Template
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{budgets: map[uuid.UUID]repository.Budget{}, templates: map[uuid.UUID]repository.Template{}}
}

func (f *fakeRepo) SlugsLike(_ context.Context, base string) ([]string, error) {
	out := []string{}
	for _, b := range f.budgets {
		if b.Slug == base || strings.HasPrefix(b.Slug, base+"-") {
			out = append(out, b.Slug)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, b repository.Budget) (repository.Budget, error) {
	for _, existing := range f.budgets {
		if existing.Slug == b.Slug {
			return repository.Budget{}, repository.ErrSlugTaken
		}
	}
	b.ID = uuid.New()
	b.Version = 1
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	f.budgets[b.ID] = b
	return b, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Budget, error) {
	b, ok := f.budgets[id]
	if !ok {
		return repository.Budget{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (repository.Budget, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) GetBySlug(_ context.Context, slug string) (repository.Budget, error) {
	for _, b := range f.budgets {
		if b.Slug == slug {
			return b, nil
		}
	}
	return repository.Budget{}, repository.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, p repository.BudgetUpdate) (repository.Budget, error) {
	b, ok := f.budgets[id]
	if !ok {
		return repository.Budget{}, repository.ErrNotFound
	}
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.TemplateID != nil {
		b.TemplateID = p.TemplateID
	} else if p.ClearTemplate {
		b.TemplateID = nil
	}
	b.Version++
	b.UpdatedAt = time.Now()
	f.budgets[id] = b
	return b, nil
}

func (f *fakeRepo) SetPDFFileKey(_ context.Context, id uuid.UUID, key string) error {
	b, ok := f.budgets[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PDFFileKey = &key
	f.budgets[id] = b
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.budgets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.budgets, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, p repository.ListParams) ([]repository.Budget, int, error) {
	out := []repository.Budget{}
	for _, b := range f.budgets {
		if p.Scope.Allows(b.OrganizationID, b.BranchID, b.CreatedBy) {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) InsertVersion(_ context.Context, v repository.Version) error {
	f.versions = append(f.versions, v)
	return nil
}

func (f *fakeRepo) ListVersions(_ context.Context, budgetID uuid.UUID) ([]repository.Version, error) {
	out := []repository.Version{}
	for i := len(f.versions) - 1; i >= 0; i-- {
		if f.versions[i].BudgetID == budgetID {
			out = append(out, f.versions[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) ListTemplates(_ context.Context, orgID uuid.UUID) ([]repository.Template, error) {
	out := []repository.Template{}
	for _, t := range f.templates {
		if t.OrganizationID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetTemplate(_ context.Context, orgID, id uuid.UUID) (repository.Template, error) {
	t, ok := f.templates[id]
	if !ok || t.OrganizationID != orgID {
		return repository.Template{}, repository.ErrTemplateNotFound
	}
	return t, nil
}

func (f *fakeRepo) CreateTemplate(_ context.Context, t repository.Template) (repository.Template, error) {
	t.ID = uuid.New()
	f.templates[t.ID] = t
	return t, nil
}

func (f *fakeRepo) UpdateTemplate(ctx context.Context, orgID, id uuid.UUID, p repository.TemplateUpdate) (repository.Template, error) {
	t, err := f.GetTemplate(ctx, orgID, id)
	if err != nil {
		return t, err
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Body != nil {
		t.Body = *p.Body
	}
	f.templates[id] = t
	return t, nil
}

func (f *fakeRepo) DeleteTemplate(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := f.GetTemplate(ctx, orgID, id); err != nil {
		return err
	}
	delete(f.templates, id)
	return nil
}

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePeople struct {
	contacts map[uuid.UUID]Person
	leads    map[uuid.UUID]Person
}

func (f fakePeople) Contact(_ context.Context, id uuid.UUID) (Person, error) {
	p, ok := f.contacts[id]
	if !ok {
		return Person{}, ErrPersonNotFound
	}
	return p, nil
}

func (f fakePeople) Lead(_ context.Context, id uuid.UUID) (Person, error) {
	p, ok := f.leads[id]
	if !ok {
		return Person{}, ErrPersonNotFound
	}
	return p, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type fakePDF struct {
	calls int
	err   error
}

func (f *fakePDF) ConvertHTML(_ context.Context, html []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("%PDF-"), html[:4]...), nil
}

type fakeStorage struct {
	objects map[string][]byte
	deleted []string
}

func (f *fakeStorage) UploadFile(_ context.Context, bucket, folder, fileName, _ string, content []byte) (string, error) {
	if bucket == "" {
		return "", errors.New("bucket required")
	}
	key := folder + "/" + uuid.NewString()[:8] + "_" + fileName
	f.objects[key] = content
	return key, nil
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, bucket, key string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://files.example.com/" + bucket + "/" + key, FileKey: key}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, _ string, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) EnsureBucketExists(context.Context, string) error { return nil }
