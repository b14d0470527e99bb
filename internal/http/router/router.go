// Package router assembles the gin engine from the application's modules.
package router

import (
	"context"
	"net/http"
	"time"

	"travel_crm_backend/internal/access"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the engine with shared middleware and every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))
	if app.Metrics != nil {
		engine.Use(app.Metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				httpkit.Error(c, http.StatusServiceUnavailable, "database unavailable", nil)
				return
			}
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	})

	publicLimiter := httpkit.NewIPRateLimiter(rate.Limit(app.Config.GetPublicRateLimit()), app.Config.GetPublicRateBurst(), app.Logger)

	v1 := engine.Group("/api/v1")
	protected := v1.Group("", httpkit.AuthRequired(app.Config))
	rc := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: protected,
		Admin:     protected.Group("/admin", httpkit.RequireAnyRole(access.RoleSuperAdmin, access.RoleAdmin)),
		Public:    v1.Group("/public", publicLimiter.RateLimit()),
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(rc)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.GetCORSOrigins()
	}
	return c
}
