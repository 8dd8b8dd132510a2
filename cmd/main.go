package main

import (
	"udsp-service/internal/handler"
	"udsp-service/internal/middleware"
	"udsp-service/pkg/config"
	"udsp-service/pkg/database"
	"udsp-service/pkg/jwtutil"
	"udsp-service/pkg/logger"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"udsp-service/prometheus"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting UDSP service...", cfg.LogConfig()...)

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Handler-level settings (development-mode error detail)
	handler.Init(cfg)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/api/auth")
	auth.POST("/login", handler.Login)
	auth.POST("/register", handler.CreateUser, middleware.AuthMiddleware, middleware.RequireAdmin)
	auth.GET("/me", handler.Me, middleware.AuthMiddleware)
	auth.POST("/change-password", handler.ChangePassword, middleware.AuthMiddleware)

	// User routes - all require authentication
	users := e.Group("/api/user")
	users.Use(middleware.AuthMiddleware)
	users.GET("/profile", handler.GetProfile)
	users.PUT("/profile", handler.UpdateProfile)

	// User administration
	users.GET("/all", handler.ListUsers, middleware.RequireAdmin)
	users.POST("/create", handler.CreateUser, middleware.RequireAdmin)
	users.PUT("/:id", handler.UpdateUser, middleware.RequireAdmin)
	users.PUT("/:id/password", handler.ResetUserPassword, middleware.RequireAdmin)
	users.PUT("/:id/status", handler.ToggleUserStatus, middleware.RequireAdmin)
	users.DELETE("/:id", handler.DeleteUser, middleware.RequireAdmin)

	// Lab test catalog - admin only
	labTests := e.Group("/api/labtests")
	labTests.Use(middleware.AuthMiddleware, middleware.RequireAdmin)
	labTests.GET("", handler.ListLabTests)
	labTests.GET("/:id", handler.GetLabTest)
	labTests.POST("", handler.CreateLabTest)
	labTests.PUT("/:id", handler.UpdateLabTest)
	labTests.DELETE("/:id", handler.DeleteLabTest)

	// Test data entry - any authenticated user, rows scoped to the caller
	testData := e.Group("/api/testdata")
	testData.Use(middleware.AuthMiddleware)
	testData.GET("/labtests", handler.ListLabTestOptions)
	testData.GET("/my/:date", handler.GetMyEntries)
	testData.POST("", handler.SaveEntry)
	testData.PUT("/:id", handler.UpdateEntry)
	testData.DELETE("/:id", handler.DeleteEntry)

	// Reporting - admin only
	reports := e.Group("/api/reports")
	reports.Use(middleware.AuthMiddleware, middleware.RequireAdmin)
	reports.GET("/data", handler.GetReportData)
	reports.GET("/summary", handler.GetReportSummary)
	reports.GET("/export-csv", handler.ExportReportCSV)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
