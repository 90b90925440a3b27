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

	"github.com/gin-gonic/gin"

	"github.com/tradegate/signal-gateway/internal/auth"
	"github.com/tradegate/signal-gateway/internal/config"
	"github.com/tradegate/signal-gateway/internal/database"
	"github.com/tradegate/signal-gateway/internal/gateway"
	"github.com/tradegate/signal-gateway/internal/ledger"
	"github.com/tradegate/signal-gateway/internal/metrics"
	"github.com/tradegate/signal-gateway/internal/ratelimit"
	"github.com/tradegate/signal-gateway/internal/terminal"
	"github.com/tradegate/signal-gateway/pkg/middleware"
)

// init configures the application logging based on environment settings.
// In development mode, it enables pretty printing with timestamps.
// Debug logging can be enabled via DEBUG environment variable.
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the signal gateway with graceful shutdown
// support. It wires the trust boundary (authenticator, rate limiter) in
// front of the execution pipeline and starts the background maintenance
// loops for the ledger and nonce store.
func main() {
	cfg := config.Load()

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	router := gin.Default()

	// Trust stores and services.
	authService := auth.NewService(db, cfg.AuthTolerance, cfg.MinNonceLen)
	tokenService := auth.NewTokenService(cfg.JWTSecret, cfg.AdminAPIKey, cfg.AdminAPISecret)
	authHandlers := auth.NewGinHandlers(authService, tokenService)
	// Register the seed signing credential for the automation client.
	if err := authService.EnsureCredential(cfg.APIPublicKey, cfg.APISecretKey); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to register seed credential")
	}

	limiter := ratelimit.New(cfg.RateLimitPerMin)

	led := ledger.New(db, cfg.LedgerRetention, cfg.ReservationTimeout)
	reaper := ledger.NewReaper(led, cfg.ReaperInterval)

	// The terminal binding. The mock driver stands in for the real
	// terminal bridge, which is deployed as a separate process.
	driver := terminal.NewMock()
	driver.Latency = 20 * time.Millisecond
	driver.SetLotBounds(cfg.MinLotSize, cfg.MaxLotSize, cfg.LotStep)

	gatewayService := gateway.NewService(db, led, driver, gateway.Options{
		ExecutionTimeout: cfg.ExecutionTimeout,
		StopLevelPips:    cfg.StopLevelPips,
	})
	gatewayHandlers := gateway.NewGinHandlers(gatewayService)

	// Background maintenance loops.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go reaper.Start(bgCtx)
	go limiter.Start(bgCtx)
	go authService.StartNonceSweeper(bgCtx, cfg.AuthTolerance)

	setupRoutes(router, authService, tokenService, limiter, authHandlers, gatewayHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

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

	// Give outstanding executions a grace period to commit.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public endpoint exchanging admin credentials for a JWT
// - Admin routes: credential lifecycle, protected by JWT
// - Signed routes: the trading surface, protected by HMAC request
//   authentication followed by per-credential rate limiting
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	tokenService *auth.TokenService,
	limiter *ratelimit.Limiter,
	authHandlers *auth.GinHandlers,
	gatewayHandlers *gateway.GinHandlers,
) {
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(tokenService))
		{
			admin.POST("/credentials", authHandlers.CreateCredentialHandler())
			admin.GET("/credentials", authHandlers.ListCredentialsHandler())
			admin.POST("/credentials/:key_id/revoke", authHandlers.RevokeCredentialHandler())
		}

		// Signed trading surface
		signed := v1.Group("")
		signed.Use(middleware.HMACAuth(authService))
		signed.Use(middleware.RateLimit(limiter))
		{
			signed.POST("/signal", gatewayHandlers.SubmitSignalHandler())
			signed.POST("/order", gatewayHandlers.PlaceOrderHandler())
			signed.GET("/positions", gatewayHandlers.GetPositionsHandler())
			signed.POST("/modify", gatewayHandlers.ModifyPositionHandler())
			signed.POST("/close", gatewayHandlers.ClosePositionHandler())
			signed.GET("/account", gatewayHandlers.GetAccountHandler())
			signed.GET("/symbols", gatewayHandlers.GetSymbolHandler())
			signed.GET("/signals/:signal_id", gatewayHandlers.GetSignalHandler())
			signed.GET("/health", gatewayHandlers.HealthHandler())
		}
	}
}
