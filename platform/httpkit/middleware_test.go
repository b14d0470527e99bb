package httpkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"travel_crm_backend/platform/apperr"
	"travel_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type jwtConfig string

func (s jwtConfig) GetJWTAccessSecret() string { return string(s) }

const testSecret = jwtConfig("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAuthRouter(capture *Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthRequired(testSecret), func(c *gin.Context) {
		*capture = MustGetIdentity(c)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthRequiredPopulatesIdentity(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	branchID := uuid.New()
	token := signToken(t, jwt.MapClaims{
		"sub":       userID.String(),
		"roles":     []string{"manager"},
		"tenant_id": orgID.String(),
		"branch_id": branchID.String(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	var got Identity
	r := newAuthRouter(&got)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.UserID() != userID || !got.HasRole("manager") {
		t.Fatalf("unexpected identity: %v %v", got.UserID(), got.Roles())
	}
	if got.TenantID() == nil || *got.TenantID() != orgID {
		t.Fatalf("expected tenant %s", orgID)
	}
	if got.BranchID() == nil || *got.BranchID() != branchID {
		t.Fatalf("expected branch %s", branchID)
	}
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"missing":  "",
		"garbage":  "Bearer not-a-jwt",
		"expired":  "Bearer " + signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(-time.Minute).Unix()}),
		"no-exp":   "Bearer " + signToken(t, jwt.MapClaims{"sub": uuid.NewString()}),
		"bad-sub":  "Bearer " + signToken(t, jwt.MapClaims{"sub": "nope", "exp": time.Now().Add(time.Hour).Unix()}),
		"bad-org":  "Bearer " + signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "tenant_id": "x", "exp": time.Now().Add(time.Hour).Unix()}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			var got Identity
			r := newAuthRouter(&got)
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(rate.Limit(0.001), 2, nil)
	r := gin.New()
	r.GET("/p", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/p", nil))
		codes = append(codes, rec.Code)
	}
	if fmt.Sprint(codes) != fmt.Sprint([]int{200, 200, 429}) {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	limiter.Cleanup(0)
	if len(limiter.visitors) != 0 {
		t.Fatalf("expected idle visitors to be evicted, got %d", len(limiter.visitors))
	}
}

func TestHandleErrorMapsWrappedDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/forbidden", func(c *gin.Context) {
		HandleError(c, fmt.Errorf("op: %w", apperr.Forbidden("Solo un Super Admin puede eliminar leads")))
	})
	r.GET("/boom", func(c *gin.Context) {
		HandleError(c, fmt.Errorf("connection refused"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Solo un Super Admin puede eliminar leads" {
		t.Fatalf("unexpected message %q", body.Error)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRequestLoggerTagsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(logger.NewWithWriter("production", &buf)))
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	incoming := uuid.NewString()
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"valid id is kept", incoming, true},
		{"missing id is generated", "", false},
		{"malformed id is replaced", "drop table leads", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected uuid request id header, got %q", got)
			}
			if tt.keep && got != tt.header {
				t.Fatalf("expected %q kept, got %q", tt.header, got)
			}
			if seen != got {
				t.Errorf("handler saw %q, header says %q", seen, got)
			}
			if !strings.Contains(buf.String(), got) {
				t.Errorf("expected request id in access log, got %q", buf.String())
			}
		})
	}
}
