package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/prismbi/prism-engine/pkg/config"
	"github.com/prismbi/prism-engine/pkg/crypto"
	"github.com/prismbi/prism-engine/pkg/database"
	"github.com/prismbi/prism-engine/pkg/handlers"
	"github.com/prismbi/prism-engine/pkg/middleware"
	"github.com/prismbi/prism-engine/pkg/repositories"
	"github.com/prismbi/prism-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
		zap.String("database_host", cfg.Database.Host),
	)

	ctx := context.Background()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	encryptor, err := crypto.NewConnectionEncryptor(cfg.ProjectCredentialsKey)
	if err != nil {
		logger.Fatal("Failed to create connection encryptor", zap.Error(err))
	}

	projectRepo := repositories.NewProjectRepository(db, encryptor)
	duplicateRepo := repositories.NewDuplicateRepository(db)
	cacheRepo := repositories.NewExploreCacheRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	contentRepo := repositories.NewContentRepository(db)

	projectService := services.NewProjectService(projectRepo, duplicateRepo, logger)
	cacheService := services.NewCacheService(projectRepo, cacheRepo, logger)
	membershipService := services.NewMembershipService(projectRepo, membershipRepo, logger)
	contentService := services.NewContentService(projectRepo, contentRepo, membershipRepo, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg).RegisterRoutes(mux)
	handlers.NewProjectsHandler(projectService, logger).RegisterRoutes(mux)
	handlers.NewMembersHandler(membershipService, logger).RegisterRoutes(mux)
	handlers.NewCacheHandler(cacheService, logger).RegisterRoutes(mux)
	handlers.NewContentHandler(contentService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting prism-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
