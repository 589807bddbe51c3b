package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/app"
	iauth "github.com/progdesk/comms/internal/auth"
	"github.com/progdesk/comms/internal/handlers"
	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers core routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	resolver, err := identity.NewResolver(db)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	conversationHandler, err := handlers.NewConversationHandler(db, resolver, cfg.Bootstrap.Policy())
	if err != nil {
		return nil, err
	}
	registerConversationRoutes(api, conversationHandler)

	notificationHandler, err := handlers.NewNotificationHandler(db)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler)

	userHandler, err := handlers.NewUserHandler(db)
	if err != nil {
		return nil, err
	}
	registerUserRoutes(api, userHandler)

	return r, nil
}
