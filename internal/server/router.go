package server

import (
	"context"
	"time"

	"github.com/abduss/filehub/internal/album"
	"github.com/abduss/filehub/internal/auth"
	"github.com/abduss/filehub/internal/config"
	"github.com/abduss/filehub/internal/logger"
	"github.com/abduss/filehub/internal/media"
	"github.com/abduss/filehub/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type readiness interface {
	Ready(ctx context.Context) error
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	DB           pinger
	ObjectStore  readiness
	AuthService  *auth.Service
	MediaService *media.Service
	AlbumService *album.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())
	router.Use(cors.New(corsConfig(deps.Config.Server.AllowedOrigins)))

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AlbumService != nil {
		album.RegisterSharedRoutes(api, deps.AlbumService)
	}

	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))

		if deps.MediaService != nil {
			media.RegisterRoutes(protected, deps.MediaService)
		}
		if deps.AlbumService != nil {
			album.RegisterRoutes(protected, deps.AlbumService)
		}
	}

	return router
}

// corsConfig allows every origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", logger.CorrelationIDHeader},
		ExposeHeaders: []string{logger.CorrelationIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
