// Package access derives row visibility from the caller's role.
package access

import (
	"strconv"

	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/httpkit"

	"github.com/google/uuid"
)

// Role names carried in the access token's roles claim.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleAgent      = "agent"
)

// ValidRoles lists every role a user profile may hold.
var ValidRoles = []string{RoleSuperAdmin, RoleAdmin, RoleManager, RoleAgent}

// Level is the breadth of rows a caller may see.
type Level int

const (
	// LevelAll sees every organization.
	LevelAll Level = iota
	// LevelOrganization sees its own organization.
	LevelOrganization
	// LevelBranch sees its own organization and branch.
	LevelBranch
	// LevelOwn sees rows assigned to itself.
	LevelOwn
)

// Scope is the resolved visibility of one caller.
type Scope struct {
	Level          Level
	UserID         uuid.UUID
	OrganizationID *uuid.UUID
	BranchID       *uuid.UUID
	Role           string
}

// FromIdentity resolves the caller's scope. The highest role wins. Any
// role below super_admin needs an organization.
func FromIdentity(id httpkit.Identity) (Scope, error) {
	scope := Scope{UserID: id.UserID(), OrganizationID: id.TenantID(), BranchID: id.BranchID()}

	switch {
	case id.HasRole(RoleSuperAdmin):
		scope.Level = LevelAll
		scope.Role = RoleSuperAdmin
		return scope, nil
	case id.HasRole(RoleAdmin):
		scope.Level = LevelOrganization
		scope.Role = RoleAdmin
	case id.HasRole(RoleManager):
		scope.Level = LevelBranch
		scope.Role = RoleManager
		if scope.BranchID == nil {
			scope.Level = LevelOrganization
		}
	default:
		scope.Level = LevelOwn
		scope.Role = RoleAgent
	}

	if scope.OrganizationID == nil {
		return Scope{}, apperr.Forbidden("organization required")
	}
	return scope, nil
}

// System is the scope of batch jobs acting on one organization. It has no
// user, so audit entries carry no actor.
func System(orgID uuid.UUID) Scope {
	return Scope{Level: LevelAll, OrganizationID: &orgID, Role: RoleSuperAdmin}
}

// IsSuperAdmin reports whether the scope belongs to a super admin.
func (s Scope) IsSuperAdmin() bool { return s.Level == LevelAll }

// CanManageOrganization reports whether the caller administers orgID.
func (s Scope) CanManageOrganization(orgID uuid.UUID) bool {
	if s.Level == LevelAll {
		return true
	}
	return s.Role == RoleAdmin && s.OrganizationID != nil && *s.OrganizationID == orgID
}

// Allows reports whether a row with the given ownership is visible.
func (s Scope) Allows(orgID uuid.UUID, branchID, assignedTo *uuid.UUID) bool {
	switch s.Level {
	case LevelAll:
		return true
	case LevelOrganization:
		return s.OrganizationID != nil && *s.OrganizationID == orgID
	case LevelBranch:
		return s.OrganizationID != nil && *s.OrganizationID == orgID &&
			branchID != nil && s.BranchID != nil && *branchID == *s.BranchID
	default:
		return s.OrganizationID != nil && *s.OrganizationID == orgID &&
			assignedTo != nil && *assignedTo == s.UserID
	}
}

// SQLFilter appends the scope predicates for a table alias to a WHERE clause
// under construction. Placeholders continue from len(args). Super admins get
// no predicate; callers add an explicit organization filter when requested.
func (s Scope) SQLFilter(alias string, conds []string, args []any) ([]string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch s.Level {
	case LevelAll:
	case LevelOrganization:
		conds = append(conds, col("organization_id")+" = "+next(*s.OrganizationID))
	case LevelBranch:
		conds = append(conds, col("organization_id")+" = "+next(*s.OrganizationID))
		conds = append(conds, col("branch_id")+" = "+next(*s.BranchID))
	default:
		conds = append(conds, col("organization_id")+" = "+next(*s.OrganizationID))
		conds = append(conds, col("assigned_to")+" = "+next(s.UserID))
	}
	return conds, args
}
