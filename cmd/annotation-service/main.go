package main

import (
	"fmt"
	"os"

	"annotation-service/internal/auth"
	"annotation-service/internal/client"
	"annotation-service/internal/config"
	"annotation-service/internal/db"
	"annotation-service/internal/engine"
	httphandler "annotation-service/internal/http"
	"annotation-service/internal/http/middleware"
	"annotation-service/internal/logger"
	"annotation-service/internal/realtime"
	"annotation-service/internal/repository"
	"annotation-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	annotationRepo := repository.NewAnnotationRepository(database)
	videoRepo := repository.NewVideoRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	jobRepo := repository.NewDetectionJobRepository(database)

	manager := engine.NewManager(annotationRepo, appLogger)
	hub := realtime.NewHub(appLogger)
	detector := client.NewDetectionClient(cfg)

	projectService := service.NewProjectService(projectRepo)
	videoService := service.NewVideoService(videoRepo, projectRepo)
	sessionService := service.NewSessionService(sessionRepo, videoRepo, manager, hub)
	annotationService := service.NewAnnotationService(sessionService)
	detectionService := service.NewDetectionService(jobRepo, sessionService, detector, hub, appLogger)
	exportService := service.NewExportService(annotationRepo, videoRepo)
	statisticsService := service.NewStatisticsService(annotationRepo, videoRepo, projectRepo)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(
		projectService,
		videoService,
		sessionService,
		annotationService,
		detectionService,
		exportService,
		statisticsService,
		hub,
		appLogger,
	)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting annotation service")

	if err := router.Run(addr); err != nil {
		appLogger.Error().Err(err).Msg("failed to start server")
		os.Exit(1)
	}
}
