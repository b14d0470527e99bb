package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetKindFollowsWrappedErrors(t *testing.T) {
	base := Forbidden("Solo un Super Admin puede eliminar leads")
	wrapped := fmt.Errorf("delete lead: %w", base)

	if got := GetKind(wrapped); got != KindForbidden {
		t.Fatalf("expected KindForbidden through wrapping, got %v", got)
	}
	if !Is(wrapped, KindForbidden) {
		t.Fatal("expected Is to match wrapped forbidden error")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected plain errors to have unknown kind")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{BadRequest("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Unavailable("x"), http.StatusServiceUnavailable},
		{Internal("x"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %v: expected status %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestErrorIncludesOp(t *testing.T) {
	err := NotFound("lead not found").WithOp("leads.Get")
	if err.Error() != "leads.Get: lead not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
