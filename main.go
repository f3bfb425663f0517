package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epeers/allocator/config"
	"github.com/epeers/allocator/internal/auth"
	"github.com/epeers/allocator/internal/cache"
	"github.com/epeers/allocator/internal/database"
	"github.com/epeers/allocator/internal/handlers"
	"github.com/epeers/allocator/internal/repository"
	"github.com/epeers/allocator/internal/router"
	"github.com/epeers/allocator/internal/services"
	"github.com/epeers/allocator/internal/yahoo"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// @title Allocator API
// @version 1.0
// @description Portfolio allocation and drift tracking backend.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection and schema
	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// Quote provider and search cache
	yahooClient := yahoo.NewClient(cfg.QuoteTimeout)
	searchCache := cache.NewMemoryCache(cfg.SearchCacheTTL)
	go pruneCache(ctx, searchCache, cfg.SearchCacheTTL)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.Pool)
	assetRepo := repository.NewAssetRepository(db.Pool)
	portfolioRepo := repository.NewPortfolioRepository(db.Pool)

	// Initialize services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := services.NewAuthService(userRepo, tokens, cfg.BcryptCost)
	quoteSvc := services.NewQuoteService(yahooClient, searchCache)
	portfolioSvc := services.NewPortfolioService(portfolioRepo, assetRepo, quoteSvc)

	engine := router.New(router.Handlers{
		Auth:       handlers.NewAuthHandler(authSvc),
		Assets:     handlers.NewAssetHandler(quoteSvc),
		Portfolios: handlers.NewPortfolioHandler(portfolioSvc),
	}, tokens)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.WithCORS(engine, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if level < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

// pruneCache drops expired search results once per ttl until ctx is done
func pruneCache(ctx context.Context, c *cache.MemoryCache, ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Prune(); n > 0 {
				log.Debugf("pruned %d expired search results", n)
			}
		}
	}
}
