package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/handlers"
)

type RouterConfig struct {
	UniverseHandler    *handlers.UniverseHandler
	AssetHandler       *handlers.AssetHandler
	MusicPromptHandler *handlers.MusicPromptHandler
	JobHandler         *handlers.JobHandler
	SyncHandler        *handlers.SyncHandler
	GenerationHandler  *handlers.GenerationHandler

	// AdminHandler is optional; nil leaves the maintenance routes
	// unregistered.
	AdminHandler *handlers.AdminHandler

	// MediaRoot is the filesystem directory served under /storage.
	MediaRoot string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	// Local media files, same URL shape the remote bucket serves.
	router.Static("/storage/buckets", cfg.MediaRoot)

	api := router.Group("/api")
	{
		// Universes
		api.GET("/universes", cfg.UniverseHandler.List)
		api.POST("/universes", cfg.UniverseHandler.Create)
		api.GET("/universes/:slug", cfg.UniverseHandler.Get)
		api.PATCH("/universes/:slug", cfg.UniverseHandler.Update)
		api.DELETE("/universes/:slug", cfg.UniverseHandler.Delete)
		api.PUT("/universes/:slug/prompts", cfg.UniverseHandler.UpdatePrompts)
		api.PUT("/universes/:slug/translations", cfg.UniverseHandler.ReplaceTranslations)

		// Assets
		api.GET("/universes/:slug/assets", cfg.AssetHandler.List)
		api.POST("/universes/:slug/assets", cfg.AssetHandler.Create)
		api.GET("/universes/:slug/assets/:assetID", cfg.AssetHandler.Get)
		api.PATCH("/universes/:slug/assets/:assetID", cfg.AssetHandler.Update)
		api.DELETE("/universes/:slug/assets/:assetID", cfg.AssetHandler.Delete)

		// Music prompts
		api.GET("/universes/:slug/music-prompts", cfg.MusicPromptHandler.List)
		api.POST("/universes/:slug/music-prompts", cfg.MusicPromptHandler.Create)
		api.GET("/universes/:slug/music-prompts/:language", cfg.MusicPromptHandler.Get)
		api.PATCH("/universes/:slug/music-prompts/:language", cfg.MusicPromptHandler.Update)
		api.DELETE("/universes/:slug/music-prompts/:language", cfg.MusicPromptHandler.Delete)

		// Jobs
		api.GET("/jobs", cfg.JobHandler.List)
		api.DELETE("/jobs/cleanup", cfg.JobHandler.Cleanup)
		api.GET("/jobs/:id", cfg.JobHandler.Get)

		// Sync
		api.GET("/sync/status", cfg.SyncHandler.Status)
		api.POST("/sync/pull/:slug", cfg.SyncHandler.Pull)
		api.POST("/sync/push/:slug", cfg.SyncHandler.Push)
		api.POST("/sync/pull-all", cfg.SyncHandler.PullAll)
		api.POST("/sync/init", cfg.SyncHandler.PullAll)

		// Generation
		api.POST("/generate/:slug/concepts", cfg.GenerationHandler.GenerateConcepts)
		api.POST("/generate/:slug/concepts/apply", cfg.GenerationHandler.ApplyConcepts)
		api.POST("/generate/:slug/images", cfg.GenerationHandler.GenerateImages)
		api.POST("/generate/:slug/videos", cfg.GenerationHandler.GenerateVideos)
		api.POST("/generate/:slug/music", cfg.GenerationHandler.GenerateMusic)
		api.POST("/generate/:slug/all", cfg.GenerationHandler.GenerateAll)

		// Maintenance
		if cfg.AdminHandler != nil {
			api.GET("/admin/cleanup-test-universes", cfg.AdminHandler.ListTestUniverses)
			api.POST("/admin/cleanup-test-universes", cfg.AdminHandler.CleanupAll)
			api.DELETE("/admin/cleanup-test-universes/:slug", cfg.AdminHandler.CleanupOne)
		}
	}

	return router
}
