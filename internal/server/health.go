package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if component, err := checkReady(ctx, deps); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "degraded",
				"component": component,
				"error":     err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// checkReady names the first dependency that fails its probe.
func checkReady(ctx context.Context, deps Dependencies) (string, error) {
	if deps.DB != nil {
		if err := deps.DB.Ping(ctx); err != nil {
			return "postgres", err
		}
	}
	if deps.ObjectStore != nil {
		if err := deps.ObjectStore.Ready(ctx); err != nil {
			return "object_store", err
		}
	}
	return "", nil
}
