package service

import (
	"context"
	"errors"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/adapters/storage"
	"travel_crm_backend/internal/budgets/render"
	"travel_crm_backend/internal/budgets/repository"
	"travel_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// Render returns the budget as a standalone HTML document.
func (s *Service) Render(ctx context.Context, scope access.Scope, id uuid.UUID) ([]byte, error) {
	b, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return s.renderBudget(ctx, b)
}

// RenderPublic serves the document behind a shared link.
func (s *Service) RenderPublic(ctx context.Context, slug string) ([]byte, error) {
	b, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return s.renderBudget(ctx, b)
}

// GeneratePDF renders the budget, converts it through Gotenberg, stores the
// file and returns a presigned download link.
func (s *Service) GeneratePDF(ctx context.Context, scope access.Scope, id uuid.UUID) (*storage.PresignedURL, error) {
	if s.pdf == nil || s.storage == nil {
		return nil, apperr.Unavailable("pdf generation is not configured")
	}
	b, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderBudget(ctx, b)
	if err != nil {
		return nil, err
	}
	pdfBytes, err := s.pdf.ConvertHTML(ctx, doc)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "pdf conversion failed", err).WithOp("budgets.GeneratePDF")
	}

	folder := b.OrganizationID.String() + "/budgets"
	key, err := s.storage.UploadFile(ctx, s.pdfBucket, folder, b.Slug+".pdf", "application/pdf", pdfBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "pdf upload failed", err).WithOp("budgets.GeneratePDF")
	}
	if err := s.repo.SetPDFFileKey(ctx, b.ID, key); err != nil {
		return nil, mapNotFound(err)
	}
	if b.PDFFileKey != nil && *b.PDFFileKey != key {
		if err := s.storage.DeleteObject(ctx, s.pdfBucket, *b.PDFFileKey); err != nil {
			s.log.Warn("stale budget pdf not removed", "budget_id", b.ID, "error", err)
		}
	}
	return s.storage.GenerateDownloadURL(ctx, s.pdfBucket, key)
}

// PDFDownloadURL presigns the last generated PDF.
func (s *Service) PDFDownloadURL(ctx context.Context, scope access.Scope, id uuid.UUID) (*storage.PresignedURL, error) {
	if s.storage == nil {
		return nil, apperr.Unavailable("file storage is not configured")
	}
	b, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if b.PDFFileKey == nil {
		return nil, apperr.NotFound("budget pdf has not been generated")
	}
	return s.storage.GenerateDownloadURL(ctx, s.pdfBucket, *b.PDFFileKey)
}

func (s *Service) renderBudget(ctx context.Context, b repository.Budget) ([]byte, error) {
	body := ""
	if b.TemplateID != nil {
		t, err := s.repo.GetTemplate(ctx, b.OrganizationID, *b.TemplateID)
		switch {
		case err == nil:
			body = t.Body
		case !errors.Is(err, repository.ErrTemplateNotFound):
			return nil, err
		}
	}

	var recipient string
	if p, err := s.recipient(ctx, b.OrganizationID, b.ContactID, b.LeadID); err == nil && p != nil {
		recipient = p.Name
	}
	var orgName string
	if s.orgs != nil {
		orgName = s.orgs.OrganizationName(ctx, b.OrganizationID)
	}

	data, err := render.Build(render.Input{
		Title:            b.Title,
		Description:      b.Description,
		RecipientName:    recipient,
		OrganizationName: orgName,
		Status:           b.Status,
		Version:          b.Version,
		PublicURL:        s.publicURL(b.Slug),
		UpdatedAt:        b.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	out, err := render.HTML(body, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "budget template could not be rendered", err)
	}
	return out, nil
}
