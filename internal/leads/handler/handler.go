package handler

import (
	"net/http"
	"strings"
	"time"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/leads/export"
	"travel_crm_backend/internal/leads/importer"
	"travel_crm_backend/internal/leads/management"
	"travel_crm_backend/internal/leads/repository"
	"travel_crm_backend/internal/leads/transport"
	"travel_crm_backend/platform/httpkit"
	"travel_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *management.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
	maxImportBytes      = 10 << 20
	dateLayout          = "2006-01-02"
)

func New(svc *management.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/check-duplicate", h.CheckDuplicate)
	rg.GET("/export", h.Export)
	rg.POST("/import", h.Import)
	rg.POST("/bulk-assign", h.BulkAssign)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.PUT("/:id/assign", h.Assign)
	rg.POST("/:id/archive", h.Archive)
	rg.GET("/:id/history", h.History)
}

func (h *Handler) Create(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateLeadRequest
	if !h.bind(c, &req) {
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), scope, management.CreateLeadInput{
		OrganizationID: req.OrganizationID,
		BranchID:       req.BranchID,
		FullName:       req.FullName,
		Phone:          req.Phone,
		Email:          req.Email,
		Origin:         req.Origin,
		Province:       req.Province,
		City:           req.City,
		Passengers:     req.Passengers,
		TravelDate:     parseDate(req.TravelDate),
		Notes:          req.Notes,
		AssignedTo:     req.AssignedTo,
		Source:         req.Source,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	filter, ok := h.listFilter(c, req)
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), scope, filter)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.LeadResponse, 0, len(result.Items))
	for _, l := range result.Items {
		items = append(items, toLeadResponse(l))
	}
	httpkit.OK(c, transport.LeadListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) GetByID(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	lead, err := h.svc.Get(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) Update(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.UpdateLeadRequest
	if !h.bind(c, &req) {
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), scope, id, management.UpdateLeadInput{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Email:      req.Email,
		Origin:     req.Origin,
		Province:   req.Province,
		City:       req.City,
		Passengers: req.Passengers,
		TravelDate: parseDate(req.TravelDate),
		Notes:      req.Notes,
		BranchID:   req.BranchID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.UpdateStatusRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.svc.UpdateStatus(c.Request.Context(), scope, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.StatusResponse{
		Lead:           toLeadResponse(res.Lead),
		ContactID:      res.ContactID,
		ContactCreated: res.ContactCreated,
		Notice:         res.Notice,
	})
}

func (h *Handler) Assign(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.AssignRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.AssigneeID.Set {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"assigneeId": "required"})
		return
	}

	res, err := h.svc.Assign(c.Request.Context(), scope, id, req.AssigneeID.Value)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.AssignResponse{
		Lead:           toLeadResponse(res.Lead),
		Transition:     res.Kind.String(),
		ContactID:      res.ContactID,
		ContactCreated: res.ContactCreated,
	})
}

func (h *Handler) BulkAssign(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.BulkAssignRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.AssigneeID.Set {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"assigneeId": "required"})
		return
	}
	filter, ok := h.listFilter(c, req.Filter)
	if !ok {
		return
	}

	res, err := h.svc.BulkAssign(c.Request.Context(), scope, management.BulkAssignInput{
		LeadIDs:     req.LeadIDs,
		AllFiltered: req.AllFiltered,
		Filter:      filter,
		AssigneeID:  req.AssigneeID.Value,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.BulkAssignResponse{
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		FailedIDs: res.FailedIDs,
	})
}

func (h *Handler) Archive(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.ArchiveRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	lead, err := h.svc.Archive(c.Request.Context(), scope, id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

func (h *Handler) Delete(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), scope, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) History(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	records, err := h.svc.History(c.Request.Context(), scope, id)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.HistoryEntryResponse, 0, len(records))
	for _, r := range records {
		items = append(items, transport.HistoryEntryResponse{
			ID:          r.ID,
			Action:      r.Action,
			Description: r.Description,
			UserID:      r.UserID,
			UserName:    r.UserName,
			CreatedAt:   r.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CheckDuplicate(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, map[string]string{"phone": "required"})
		return
	}
	orgID, ok := optionalUUIDQuery(c, "organizationId")
	if !ok {
		return
	}

	res, err := h.svc.CheckDuplicate(c.Request.Context(), scope, orgID, phone)
	if httpkit.HandleError(c, err) {
		return
	}
	out := transport.DuplicateCheckResponse{IsDuplicate: res.IsDuplicate}
	if res.ExistingLead != nil {
		lead := toLeadResponse(*res.ExistingLead)
		out.ExistingLead = &lead
	}
	httpkit.OK(c, out)
}

// Import accepts a multipart "file" field (.csv or .xlsx) plus optional
// organizationId and branchId form fields.
func (h *Handler) Import(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	header, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}
	format, err := importer.DetectFormat(header.Filename)
	if httpkit.HandleError(c, err) {
		return
	}

	base := management.CreateLeadInput{}
	if raw := c.PostForm("organizationId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid organizationId", nil)
			return
		}
		base.OrganizationID = &id
	}
	if raw := c.PostForm("branchId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid branchId", nil)
			return
		}
		base.BranchID = &id
	}

	file, err := header.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "could not open file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	rows, err := importer.Parse(format, file, base)
	if httpkit.HandleError(c, err) {
		return
	}
	res, err := h.svc.Import(c.Request.Context(), scope, rows)
	if httpkit.HandleError(c, err) {
		return
	}

	errs := make([]transport.ImportErrorResponse, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, transport.ImportErrorResponse{Row: e.Row, Message: e.Message})
	}
	httpkit.OK(c, transport.ImportResponse{Imported: res.Imported, Failed: res.Failed, Errors: errs})
}

// Export streams the filtered leads as CSV (default) or XLSX (?format=xlsx).
func (h *Handler) Export(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	filter, ok := h.listFilter(c, req)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	leads, err := h.svc.Export(ctx, scope, filter)
	if httpkit.HandleError(c, err) {
		return
	}
	names := map[uuid.UUID]string{}
	nameOf := func(id uuid.UUID) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := h.svc.AssigneeName(ctx, id)
		names[id] = n
		return n
	}

	stamp := time.Now().Format("20060102")
	if strings.EqualFold(c.Query("format"), "xlsx") {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="leads-`+stamp+`.xlsx"`)
		if err := export.WriteXLSX(c.Writer, leads, nameOf); err != nil {
			_ = c.Error(err)
		}
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="leads-`+stamp+`.csv"`)
	if err := export.WriteCSV(c.Writer, leads, nameOf); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) listFilter(c *gin.Context, req transport.ListRequest) (management.ListFilter, bool) {
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return management.ListFilter{}, false
	}

	filter := management.ListFilter{
		Search:          req.Search,
		Origin:          req.Origin,
		Province:        req.Province,
		Unassigned:      req.Unassigned,
		IncludeArchived: req.IncludeArchived,
		SortBy:          req.SortBy,
		SortOrder:       req.SortOrder,
		Page:            req.Page,
		PageSize:        req.PageSize,
		Status:          optionalString(req.Status),
		Source:          optionalString(req.Source),
		CreatedFrom:     parseDate(optionalString(req.CreatedFrom)),
	}
	if to := parseDate(optionalString(req.CreatedTo)); to != nil {
		end := to.AddDate(0, 0, 1)
		filter.CreatedTo = &end
	}

	ids := []struct {
		raw    string
		name   string
		target **uuid.UUID
	}{
		{req.OrganizationID, "organizationId", &filter.OrganizationID},
		{req.BranchID, "branchId", &filter.BranchID},
		{req.AssignedTo, "assignedTo", &filter.AssignedTo},
	}
	for _, f := range ids {
		if f.raw == "" {
			continue
		}
		id, err := uuid.Parse(f.raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid "+f.name, nil)
			return management.ListFilter{}, false
		}
		*f.target = &id
	}
	return filter, true
}

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func optionalUUIDQuery(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+key, nil)
		return nil, false
	}
	return &id, true
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseDate reads a value already checked by the datetime validator.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

func toLeadResponse(l repository.Lead) transport.LeadResponse {
	var travel *string
	if l.TravelDate != nil {
		s := l.TravelDate.Format(dateLayout)
		travel = &s
	}
	return transport.LeadResponse{
		ID:                 l.ID,
		OrganizationID:     l.OrganizationID,
		BranchID:           l.BranchID,
		InquiryNumber:      l.InquiryNumber,
		FullName:           l.FullName,
		Phone:              l.Phone,
		Email:              l.Email,
		Origin:             l.Origin,
		Province:           l.Province,
		City:               l.City,
		Passengers:         l.Passengers,
		TravelDate:         travel,
		Status:             l.Status,
		AssignedTo:         l.AssignedTo,
		ConvertedToContact: l.ConvertedToContact,
		ArchivedReason:     l.ArchivedReason,
		ArchivedAt:         l.ArchivedAt,
		Notes:              l.Notes,
		Source:             l.Source,
		CreatedBy:          l.CreatedBy,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}
