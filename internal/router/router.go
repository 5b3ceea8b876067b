// Package router assembles the Gin engine that serves the auth API.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"scoreauth/internal/handlers"
	"scoreauth/internal/logger"
	"scoreauth/internal/middleware"
	"scoreauth/internal/security"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Auth        *handlers.AuthHandler
	OAuth       *handlers.OAuthHandler
	Admin       *handlers.AdminHandler
	Verifier    middleware.TokenVerifier
	Revocations security.RevocationStore
	// Users reloads the caller on admin routes.
	Users  middleware.UserLoader
	Health HealthChecker

	// RateLimiter applies to every /api/auth route. Nil disables it.
	RateLimiter   *middleware.IPRateLimiter
	CORSOrigins   []string
	ServiceAPIKey string
}

// New builds the engine with all routes registered.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogging())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORS(d.CORSOrigins))

	r.GET("/api/health", health(d.Health))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := r.Group("/api/auth")
	if d.RateLimiter != nil {
		auth.Use(middleware.IPRateLimit(d.RateLimiter))
	}

	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me)
	auth.POST("/validate", middleware.ServiceKeyMiddleware(d.ServiceAPIKey), d.Auth.Validate)

	// Admin
	users := auth.Group("/users")
	users.Use(middleware.AuthMiddleware(d.Verifier, d.Revocations), middleware.RequireAdmin(d.Users))
	users.GET("", d.Admin.ListUsers)
	users.PATCH("/:id/role", d.Admin.UpdateRole)
	users.PATCH("/:id/active", d.Admin.UpdateActive)
	users.POST("/:id/reset-password", d.Admin.ResetPassword)

	// OAuth; the static paths above win over :provider
	auth.GET("/:provider", d.OAuth.Start)
	auth.GET("/:provider/callback", d.OAuth.Callback)

	return r
}

func health(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				logger.Get().Warnw("health check failed", "error", err.Error())
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
	}
}
