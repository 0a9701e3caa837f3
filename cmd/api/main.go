package main

import (
	"fmt"
	"log"
	"os"

	"tariff-migration/internal/api/handlers"
	"tariff-migration/internal/api/middleware"
	"tariff-migration/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	cfg := config.Default()
	if path := os.Getenv("MIGRATION_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		cfg = loaded
		log.Printf("Loaded config from %s (%d profiles)", path, len(cfg.Profiles))
	} else {
		log.Printf("MIGRATION_CONFIG not set, using default configuration")
	}

	// Set up Gin router
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Apply middleware
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// Initialize handlers
	migrationHandler := handlers.NewMigrationHandler(cfg)
	profileHandler := handlers.NewProfileHandler(cfg)
	predictorHandler := handlers.NewPredictorHandler(cfg)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/migration/predict", migrationHandler.Predict)
		api.POST("/migration/revoke", migrationHandler.Revoke)

		api.GET("/profiles", profileHandler.ListProfiles)
		api.GET("/predictors", predictorHandler.ListPredictors)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Not found"})
	})

	// Start server
	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting API server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
