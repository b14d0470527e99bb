package handler

import (
	"net/http"

	"travel_crm_backend/internal/access"
	"travel_crm_backend/internal/identity/repository"
	"travel_crm_backend/internal/identity/service"
	"travel_crm_backend/internal/identity/transport"
	"travel_crm_backend/platform/httpkit"
	"travel_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the self-service routes on the protected group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.GET("/users", h.ListUsers)
	rg.GET("/branches", h.ListBranches)
}

// RegisterAdminRoutes mounts organization management on the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/organizations", h.ListOrganizations)
	rg.POST("/organizations", h.CreateOrganization)
	rg.POST("/branches", h.CreateBranch)
	rg.POST("/users", h.RegisterUser)
	rg.PATCH("/users/:id", h.UpdateUser)
}

func (h *Handler) Me(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	user, err := h.svc.Me(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toUserResponse(user))
}

func (h *Handler) ListUsers(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	orgID, ok := optionalQueryUUID(c, "organizationId")
	if !ok {
		return
	}
	branchID, ok := optionalQueryUUID(c, "branchId")
	if !ok {
		return
	}

	users, err := h.svc.ListUsers(c.Request.Context(), scope, orgID, branchID)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.UserListResponse{Items: make([]transport.UserResponse, 0, len(users))}
	for _, u := range users {
		resp.Items = append(resp.Items, toUserResponse(u))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ListBranches(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	orgID, ok := optionalQueryUUID(c, "organizationId")
	if !ok {
		return
	}

	branches, err := h.svc.ListBranches(c.Request.Context(), scope, orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.BranchResponse, 0, len(branches))
	for _, b := range branches {
		items = append(items, toBranchResponse(b))
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) ListOrganizations(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	orgs, err := h.svc.ListOrganizations(c.Request.Context(), scope)
	if httpkit.HandleError(c, err) {
		return
	}
	items := make([]transport.OrganizationResponse, 0, len(orgs))
	for _, o := range orgs {
		items = append(items, transport.OrganizationResponse{ID: o.ID, Name: o.Name, CreatedAt: o.CreatedAt})
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) CreateOrganization(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateOrganizationRequest
	if !h.bind(c, &req) {
		return
	}
	org, err := h.svc.CreateOrganization(c.Request.Context(), scope, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.OrganizationResponse{ID: org.ID, Name: org.Name, CreatedAt: org.CreatedAt})
}

func (h *Handler) CreateBranch(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.CreateBranchRequest
	if !h.bind(c, &req) {
		return
	}
	branch, err := h.svc.CreateBranch(c.Request.Context(), scope, req.OrganizationID, req.Name, req.Province)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toBranchResponse(branch))
}

func (h *Handler) RegisterUser(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	var req transport.RegisterUserRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.svc.RegisterUser(c.Request.Context(), scope, service.RegisterUserInput{
		ID:             req.ID,
		OrganizationID: req.OrganizationID,
		BranchID:       req.BranchID,
		FullName:       req.FullName,
		Email:          req.Email,
		Role:           req.Role,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) UpdateUser(c *gin.Context) {
	scope, ok := access.MustScope(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	var req transport.UpdateUserRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.svc.UpdateUser(c.Request.Context(), scope, userID, service.UpdateUserInput{
		Role:        req.Role,
		BranchID:    req.BranchID,
		ClearBranch: req.ClearBranch,
		Active:      req.Active,
		FullName:    req.FullName,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toUserResponse(user))
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

func optionalQueryUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
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

func toUserResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		BranchID:       u.BranchID,
		FullName:       u.FullName,
		Email:          u.Email,
		Role:           u.Role,
		Active:         u.Active,
		CreatedAt:      u.CreatedAt,
	}
}

func toBranchResponse(b repository.Branch) transport.BranchResponse {
	return transport.BranchResponse{
		ID:             b.ID,
		OrganizationID: b.OrganizationID,
		Name:           b.Name,
		Province:       b.Province,
		CreatedAt:      b.CreatedAt,
	}
}
