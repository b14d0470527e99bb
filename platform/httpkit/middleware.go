// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"travel_crm_backend/platform/config"
	"travel_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// ContextUserIDKey is the gin context key for the authenticated user ID.
	ContextUserIDKey = "userID"
	// ContextRolesKey is the gin context key for the user's roles.
	ContextRolesKey = "roles"
	// ContextTenantIDKey is the gin context key for the tenant (organization) ID.
	ContextTenantIDKey = "tenantID"
	// ContextBranchIDKey is the gin context key for the caller's branch ID.
	ContextBranchIDKey = "branchID"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// RequestIDHeader carries the request id in and out. A well-formed incoming
// value is kept so calls can be traced across services.
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags the request context with a request id and logs the
// request with timing. Failed requests that attached an error through
// c.Error are logged at error level.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()

		reqLog := log.WithContext(c.Request.Context())
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError && len(c.Errors) > 0 {
			reqLog.HTTPError(c.Request.Method, path, status, c.Errors.Last(), c.ClientIP())
			return
		}
		reqLog.HTTPRequest(c.Request.Method, path, status, float64(time.Since(start).Milliseconds()), c.ClientIP())
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages per-IP rate limiters. Idle entries are evicted by
// Cleanup so the map does not grow without bound.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    burst,
		log:      log,
	}
}

func (i *IPRateLimiter) allow(ip string, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, ok := i.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup drops limiters that have been idle for longer than maxIdle.
func (i *IPRateLimiter) Cleanup(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	i.mu.Lock()
	defer i.mu.Unlock()
	for ip, v := range i.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(i.visitors, ip)
		}
	}
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !i.allow(ip, time.Now()) {
			if i.log != nil {
				i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// AuthRequired returns middleware that validates JWT access tokens issued by
// the identity provider. Supports the Authorization header (Bearer) or a
// token query param for SSE connections.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			rawToken = c.Query("token")
			if rawToken == "" {
				abortUnauthorized(c, errMissingToken)
				return
			}
		}

		claims, err := parseAccessClaims(rawToken, cfg)
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		userID, err := uuid.Parse(stringClaim(claims, "sub"))
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		tenantID, err := optionalUUIDClaim(claims, "tenant_id")
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}
		branchID, err := optionalUUIDClaim(claims, "branch_id")
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), userID.String()))
		c.Set(ContextRolesKey, extractRoles(claims["roles"]))
		if tenantID != nil {
			c.Set(ContextTenantIDKey, *tenantID)
		}
		if branchID != nil {
			c.Set(ContextBranchIDKey, *branchID)
		}
		c.Next()
	}
}

// RequireAnyRole returns middleware that checks if the user has one of the roles.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		for _, role := range roles {
			if id.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	}
}

func extractRoles(value any) []string {
	roles := make([]string, 0)
	switch typed := value.(type) {
	case []string:
		return append(roles, typed...)
	case []any:
		for _, item := range typed {
			if text, ok := item.(string); ok {
				roles = append(roles, text)
			}
		}
	case string:
		if typed != "" {
			roles = append(roles, typed)
		}
	}
	return roles
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}

func parseAccessClaims(rawToken string, cfg config.JWTConfig) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.GetJWTAccessSecret()), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errInvalidToken)
	}
	return claims, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return value
}

func optionalUUIDClaim(claims jwt.MapClaims, key string) (*uuid.UUID, error) {
	value := strings.TrimSpace(stringClaim(claims, key))
	if value == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: message})
}
