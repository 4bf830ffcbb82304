package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "pipeline-api-service"
	}

	r.GET("/health", func(c *gin.Context) {
		if deps.Database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Database.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	webhookHandler := handler.NewWebhookHandler(deps)
	runHandler := handler.NewRunHandler(deps)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/webhooks/fathom - signed recording-ready event
		v1.POST("/webhooks/fathom", webhookHandler.HandleFathom)

		// POST /api/v1/test/run - start a run from a raw transcript
		v1.POST("/test/run", webhookHandler.TestRun)

		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:run_id", runHandler.GetRun)
		}
	}

	return r
}
