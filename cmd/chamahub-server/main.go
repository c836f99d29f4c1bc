package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/chamahub/chamahub/pkg/chamahub/admin"
	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/contributions"
	"github.com/chamahub/chamahub/pkg/chamahub/database"
	"github.com/chamahub/chamahub/pkg/chamahub/groups"
	"github.com/chamahub/chamahub/pkg/chamahub/loans"
	"github.com/chamahub/chamahub/pkg/chamahub/members"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/chamahub/chamahub/pkg/logging"

	_ "github.com/chamahub/chamahub/api/swagger"
)

// @title ChamaHub API
// @version 1.0
// @description Group savings (chama) management: member directories, group roles, contributions, and loan tracking.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	logging.Setup()

	dbPath := os.Getenv("CHAMAHUB_DB_PATH")
	if dbPath == "" {
		dbPath = "chamahub.db"
	}

	if err := database.Connect(dbPath); err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed", "database", dbPath)

	// Create default admin user if no admin exists
	if err := ensureAdminExists(); err != nil {
		slog.Error("Failed to ensure admin user exists", "error", err)
		os.Exit(1)
	}

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "chamahub",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		authed := auth.AuthMiddleware()

		// Groups and membership routes
		groupsHandler := groups.NewHandler(database.GetDB())
		groupsGroup := api.Group("/groups")
		groupsGroup.Use(authed)
		groupsHandler.RegisterRoutes(groupsGroup)
		groupsHandler.RegisterMemberRoutes(groupsGroup)

		// Contribution routes
		contributionsHandler := contributions.NewHandler(database.GetDB())
		contributionsHandler.RegisterRoutes(api.Group("", authed))

		// Loan routes
		loansHandler := loans.NewHandler(database.GetDB())
		loansHandler.RegisterRoutes(api.Group("", authed))

		// Cross-group member directory
		membersHandler := members.NewHandler(database.GetDB())
		membersHandler.RegisterRoutes(api.Group("", authed))

		// Admin routes (system admin role required)
		adminHandler := admin.NewHandler(database.GetDB())
		adminGroup := api.Group("/admin")
		adminGroup.Use(authed, auth.RequireAdmin())
		adminHandler.RegisterRoutes(adminGroup)
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("Starting ChamaHub server", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

// ensureAdminExists creates a default system admin if none exists yet.
func ensureAdminExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@chamahub.local",
		FullName:     "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	slog.Info("Created default admin user", "email", adminUser.Email, "password", "changeme")
	return nil
}
