// Package server assembles services, handlers, middleware and the realtime
// hub into a single Gin engine.
package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"spendlens/internal/config"
	"spendlens/internal/handlers"
	"spendlens/internal/middleware"
	"spendlens/internal/realtime"
	"spendlens/internal/services"
)

const rateLimitWindow = time.Minute

// Options configures New.
type Options struct {
	Config *config.Config
	DB     *gorm.DB
	// RateLimitStore backs the auth and API limiters. Nil disables rate limiting.
	RateLimitStore middleware.RateLimitStore
	// RequestLogging toggles per-request access logs.
	RequestLogging bool
}

// App is a wired application.
type App struct {
	Router    *gin.Engine
	Hub       *realtime.Hub
	Refresher *realtime.Refresher
}

// Shutdown waits for in-flight analytics refreshes and then disconnects
// every subscriber. Call it after the HTTP server has stopped accepting requests.
func (a *App) Shutdown() {
	a.Refresher.Wait()
	a.Hub.Close()
}

// New builds the full router.
func New(opts Options) *App {
	cfg := opts.Config
	db := opts.DB

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	categoryService := services.NewCategoryService(db)
	itemService := services.NewItemService(db)
	transactionService := services.NewTransactionService(db)
	analyticsService := services.NewAnalyticsService(db, cfg.AnalyticsLocation)
	offerService := services.NewOfferService(db, analyticsService)

	// Realtime
	hub := realtime.NewHub()
	refresher := realtime.NewRefresher(analyticsService, hub, cfg.RefreshTimeout)
	wsHandler := realtime.NewHandler(hub, cfg.WSAllowedOrigins, cfg.WSPingInterval)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	itemHandler := handlers.NewItemHandler(itemService, categoryService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService, refresher, cfg.AnalyticsLocation)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	offerHandler := handlers.NewOfferHandler(offerService)
	exportHandler := handlers.NewExportHandler(transactionService, cfg.AnalyticsLocation)

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.RequestLogging {
		router.Use(middleware.RequestLogging())
	}
	router.Use(middleware.ErrorHandler())
	router.Use(corsMiddleware(cfg.CORSOrigins))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": hub.Len()})
	})

	v1 := router.Group("/api/v1")
	authLimit, apiLimit := noop, noop
	if opts.RateLimitStore != nil {
		authLimit = middleware.RateLimit(opts.RateLimitStore, "auth", cfg.RateLimitAuth, rateLimitWindow)
		apiLimit = middleware.RateLimit(opts.RateLimitStore, "api", cfg.RateLimitAPI, rateLimitWindow)
	}

	// Public routes
	auth := v1.Group("/auth", authLimit)
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	// Protected, but rate limited with the other credential checks.
	auth.POST("/change-password", middleware.AuthMiddleware(), authHandler.ChangePassword)

	// The socket authenticates itself from ?token= or the Authorization header.
	v1.GET("/ws", wsHandler.Serve)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(apiLimit, middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile", authHandler.UpdateProfile)
	protected.DELETE("/account", authHandler.DeleteAccount)

	transactions := protected.Group("/transactions")
	transactions.POST("/text", transactionHandler.CreateTextTransaction)
	transactions.POST("/voice", transactionHandler.CreateVoiceTransaction)
	transactions.POST("/ocr", transactionHandler.CreateOCRTransaction)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/date-range", transactionHandler.GetTransactionsByDateRange)
	transactions.GET("/category/:categoryId", transactionHandler.ListTransactionsByCategory)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.ListCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)
	categories.GET("/:id/items", categoryHandler.GetCategoryItems)
	categories.POST("/:id/items", categoryHandler.AddItems)
	categories.DELETE("/:id/items", categoryHandler.RemoveItems)

	items := protected.Group("/items")
	items.POST("", itemHandler.CreateItem)
	items.GET("", itemHandler.ListItems)
	items.POST("/add-to-category", itemHandler.AddToCategory)
	items.POST("/remove-from-category", itemHandler.RemoveFromCategory)
	items.GET("/:id", itemHandler.GetItemByID)
	items.PUT("/:id", itemHandler.UpdateItem)
	items.DELETE("/:id", itemHandler.DeleteItem)

	analytics := protected.Group("/analytics")
	analytics.GET("/home", analyticsHandler.Home)
	analytics.GET("/summary", analyticsHandler.Summary)
	analytics.GET("/by-category", analyticsHandler.ByCategory)
	analytics.GET("/by-date", analyticsHandler.ByDate)
	analytics.GET("/top-categories", analyticsHandler.TopCategories)
	analytics.GET("/top-category", analyticsHandler.TopCategory)
	analytics.GET("/trends", analyticsHandler.Trends)

	protected.GET("/offers/personalized", offerHandler.Personalized)

	export := protected.Group("/export")
	export.GET("/csv", exportHandler.ExportCSV)
	export.GET("/json", exportHandler.ExportJSON)

	// Admin routes
	admin := v1.Group("/admin", apiLimit, middleware.AdminAuthMiddleware(cfg.AdminAPIKey))
	admin.GET("/offers", offerHandler.ListOffers)
	admin.POST("/offers", offerHandler.CreateOffer)
	admin.PUT("/offers/:id", offerHandler.UpdateOffer)
	admin.DELETE("/offers/:id", offerHandler.DeleteOffer)

	return &App{Router: router, Hub: hub, Refresher: refresher}
}

func noop(c *gin.Context) { c.Next() }

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
