package access

import (
	"travel_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// MustScope resolves the caller's scope from the request. On failure the
// response has already been written and ok is false.
func MustScope(c *gin.Context) (Scope, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return Scope{}, false
	}
	scope, err := FromIdentity(id)
	if httpkit.HandleError(c, err) {
		return Scope{}, false
	}
	return scope, true
}
