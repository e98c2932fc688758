package router

import (
	"github.com/creatorsmantra/creatorsmantra-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	scriptHandler := handler.NewScriptHandler(deps)

	r.GET("/health", scriptHandler.Health)

	v1 := r.Group("/api/v1")
	{
		scripts := v1.Group("/scripts")
		{
			// POST /api/v1/scripts - Queue a script generation job
			scripts.POST("", scriptHandler.CreateScript)

			// GET /api/v1/scripts - List jobs with filtering and pagination
			scripts.GET("", scriptHandler.ListScripts)

			// GET /api/v1/scripts/:job_id - Get job details
			scripts.GET("/:job_id", scriptHandler.GetScript)

			// GET /api/v1/scripts/:job_id/status - Generation status for pollers
			scripts.GET("/:job_id/status", scriptHandler.GetScriptStatus)

			// POST /api/v1/scripts/:job_id/cancel - Cancel a job
			scripts.POST("/:job_id/cancel", scriptHandler.CancelScript)

			// DELETE /api/v1/scripts/:job_id - Delete a finished job
			scripts.DELETE("/:job_id", scriptHandler.DeleteScript)
		}
	}

	return r
}
