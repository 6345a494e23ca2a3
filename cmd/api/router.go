package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/stats", h.Stats)

		// Settings routes - Runtime configuration, token protected
		settings := api.Group("/settings")
		settings.Use(OpsTokenMiddleware(h.opsToken))
		{
			settings.GET("/ollama", h.GetOllamaSettings)
			settings.PUT("/ollama", h.UpdateOllamaSettings)
			settings.POST("/ollama/test", h.TestOllamaConnection)
		}
	}
}
