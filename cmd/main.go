package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/petitmonde/univers-backend/internal/data/repos"
	"github.com/petitmonde/univers-backend/internal/db"
	"github.com/petitmonde/univers-backend/internal/handlers"
	"github.com/petitmonde/univers-backend/internal/pkg/envutil"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/server"
	"github.com/petitmonde/univers-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Local database
	localDB, err := db.NewLocalDB(log)
	if err != nil {
		log.Error("Local database init failed", "error", err)
		os.Exit(1)
	}
	if err := localDB.AutoMigrateAll(); err != nil {
		log.Error("Local auto migration failed", "error", err)
		os.Exit(1)
	}
	theDB := localDB.DB()

	// Repos
	log.Info("Setting up repos...")
	universeRepo := repos.NewUniverseRepo(theDB, log)
	assetRepo := repos.NewAssetRepo(theDB, log)
	jobRepo := repos.NewJobRepo(theDB, log)

	// Services
	log.Info("Setting up services...")
	mediaStore, err := services.NewMediaStore(log)
	if err != nil {
		log.Error("Could not init MediaStore", "error", err)
		os.Exit(1)
	}
	remoteStore, err := services.NewRemoteStore(log)
	if err != nil {
		log.Warn("Could not init RemoteStore, running local-only", "error", err)
	}
	remoteBucket, err := services.NewRemoteBucket(context.Background(), log)
	if err != nil {
		log.Warn("Could not init RemoteBucket", "error", err)
	}
	jobService := services.NewJobService(theDB, log, jobRepo)
	syncService := services.NewSyncService(theDB, log, universeRepo, assetRepo, mediaStore, remoteStore, remoteBucket)
	generationClient := services.NewGenerationClient(log)
	generationService := services.NewGenerationService(log, generationClient, jobService, mediaStore, universeRepo, assetRepo)
	universeService := services.NewUniverseService(theDB, log, universeRepo, assetRepo, mediaStore)
	adminService := services.NewAdminService(log, universeRepo, universeService, remoteStore, remoteBucket)

	// Handlers
	log.Info("Setting up handlers...")
	universeHandler := handlers.NewUniverseHandler(log, universeService)
	assetHandler := handlers.NewAssetHandler(log, universeService)
	musicPromptHandler := handlers.NewMusicPromptHandler(log, universeService)
	jobHandler := handlers.NewJobHandler(log, jobService)
	syncHandler := handlers.NewSyncHandler(log, syncService, jobService)
	generationHandler := handlers.NewGenerationHandler(log, generationService, jobService)

	// Maintenance endpoints are opt-out for deployments exposed beyond
	// localhost.
	var adminHandler *handlers.AdminHandler
	if envutil.Bool("ADMIN_ENDPOINTS_ENABLED", true) {
		adminHandler = handlers.NewAdminHandler(log, adminService)
	}

	// Job retention sweep
	retentionDays := envutil.Int("JOB_RETENTION_DAYS", 7)
	sweeper := cron.New()
	_, err = sweeper.AddFunc("@daily", func() {
		deleted, err := jobService.DeleteStale(context.Background(), time.Duration(retentionDays)*24*time.Hour)
		if err != nil {
			log.Error("Job retention sweep failed", "error", err)
			return
		}
		if deleted > 0 {
			log.Info("Job retention sweep removed stale jobs", "deleted", deleted)
		}
	})
	if err != nil {
		log.Error("Could not schedule job retention sweep", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	// Router
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		UniverseHandler:    universeHandler,
		AssetHandler:       assetHandler,
		MusicPromptHandler: musicPromptHandler,
		JobHandler:         jobHandler,
		SyncHandler:        syncHandler,
		GenerationHandler:  generationHandler,
		AdminHandler:       adminHandler,
		MediaRoot:          filepath.Dir(mediaStore.Root()),
	})

	port := envutil.String("PORT", "8080")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}

	// Let in-flight jobs finish before the process exits.
	if !jobService.Drain(30 * time.Second) {
		log.Warn("Timed out waiting for running jobs")
	}
	log.Info("Shutdown complete")
}
