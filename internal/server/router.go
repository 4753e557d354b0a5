package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/audisee/docx2daisy/internal/handlers"
)

type RouterConfig struct {
	ConvertHandler *handlers.ConvertHandler
	JobHandler     *handlers.JobHandler
	AdminHandler   *handlers.AdminHandler
	WSHandler      *handlers.WSHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/convert", cfg.ConvertHandler.Convert)
		api.POST("/convert/batch", cfg.ConvertHandler.ConvertBatch)
		api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		api.GET("/jobs/:id/result", cfg.JobHandler.DownloadResult)

		admin := api.Group("/admin")
		{
			admin.GET("/queue/status", cfg.AdminHandler.QueueStatus)
			admin.POST("/queue/clear", cfg.AdminHandler.QueueClear)
			admin.POST("/queue/retry-failed", cfg.AdminHandler.RetryFailed)
		}
	}

	router.GET("/ws/jobs/:id", cfg.WSHandler.Subscribe)

	return router
}
