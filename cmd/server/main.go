package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/marketd/marketplace-api/internal/auth"
	"github.com/marketd/marketplace-api/internal/config"
	"github.com/marketd/marketplace-api/internal/database"
	"github.com/marketd/marketplace-api/internal/ledger"
	"github.com/marketd/marketplace-api/internal/reconciliation"
	"github.com/marketd/marketplace-api/internal/registry"
	"github.com/marketd/marketplace-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the marketplace API server with graceful
// shutdown support. It sets up the ledger, the in-process ownership
// registry, the auditor and all API routes.
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register demo identities
	authService.RegisterAPICredentials(auth.TestSellerKey, auth.TestSellerSecret)
	authService.RegisterAPICredentials(auth.TestBuyerKey, auth.TestBuyerSecret)

	supplyChain := registry.NewSupplyChain()
	registryHandlers := registry.NewGinHandlers(supplyChain)

	ledgerService := ledger.NewService(db, supplyChain)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	// Create and start the ledger auditor
	auditor := reconciliation.NewProcessor(db, cfg.ReconcileInterval())
	auditorCtx, auditorCancel := context.WithCancel(context.Background())
	defer auditorCancel()

	go auditor.Start(auditorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.Auth.JWTSecret, authHandlers, ledgerHandlers, registryHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Listing/order/balance routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	registryHandlers *registry.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Listing routes
		listings := v1.Group("/listings")
		listings.Use(middleware.JWTAuth(jwtSecret))
		{
			listings.POST("", ledgerHandlers.CreateListingHandler())
			listings.PUT("/:listing_id", ledgerHandlers.UpdateListingHandler())
			listings.GET("/:listing_id", ledgerHandlers.GetListingHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", ledgerHandlers.CreateOrderHandler())
			orders.GET("/:order_id", ledgerHandlers.GetOrderHandler())
			orders.POST("/:order_id/fulfill", ledgerHandlers.FulfillOrderHandler())
		}

		// Balance routes
		balances := v1.Group("/balances")
		balances.Use(middleware.JWTAuth(jwtSecret))
		{
			balances.GET("/:identity", ledgerHandlers.GetBalanceHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/items", registryHandlers.RegisterItemHandler())
			internal.GET("/items/:item_id", registryHandlers.GetItemHandler())
			internal.POST("/balances/:identity/credit", ledgerHandlers.CreditBalanceHandler())
		}
	}
}
