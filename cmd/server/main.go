package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rollsheet/internal/auth"
	"rollsheet/internal/catalog"
	"rollsheet/internal/config"
	"rollsheet/internal/fanout"
	"rollsheet/internal/handler"
	"rollsheet/internal/handler/sse"
	"rollsheet/internal/middleware"
	"rollsheet/internal/notify"
	"rollsheet/internal/repository/postgres"
	sheetservice "rollsheet/internal/service/sheet"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Identity codec for session cookies
	identityCodec, err := auth.NewIdentityCodec(cfg.JWTSecret, cfg.CookieDomain)
	if err != nil {
		log.Fatalf("Failed to create identity codec: %v", err)
	}

	// Optional external-issuer verifier
	var externalVerifier auth.Verifier
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWKSVerifier(cfg.JWKSURL, cfg.JWKSIssuer, logger)
		if err != nil {
			log.Fatalf("Failed to create JWKS verifier: %v", err)
		}
		externalVerifier = v
	}

	// Create pgx connection pool
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create table names and ensure schema
	tables := postgres.NewTableNames(cfg.TablePrefix)
	channel := postgres.NotifyChannel(cfg.TablePrefix)

	if err := postgres.Bootstrap(ctx, pool, tables, channel); err != nil {
		log.Fatalf("Failed to bootstrap schema: %v", err)
	}
	logger.Info("schema ready", "table", tables.Raids, "channel", channel)

	// Create repositories and transaction manager
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	sheetRepo := postgres.NewSheetRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, cfg.TxTimeout, logger)

	// Load the instance catalog
	instances, err := catalog.NewRegistry(cfg.InstanceDir)
	if err != nil {
		log.Fatalf("Failed to load instance catalog: %v", err)
	}
	logger.Info("instance catalog loaded", "instances", instances.Len())

	// Sheet service and live fan-out
	sheetService := sheetservice.NewService(sheetRepo, txManager, logger)
	registry := fanout.NewRegistry(logger)

	// Change notifier: dedicated LISTEN connection feeding the fan-out
	listener := notify.NewListener(cfg.DatabaseURL, channel, sheetRepo, registry, logger)
	go listener.Run(ctx)

	// Create handlers
	raidHandler := handler.NewRaidHandler(sheetService, logger)
	reserveHandler := handler.NewReserveHandler(sheetService, logger)
	instanceHandler := handler.NewInstanceHandler(instances, logger)
	liveHandler := handler.NewLiveHandler(sheetService, registry, sse.DefaultConfig(), logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Instance catalog
	mux.HandleFunc("GET /api/instances", instanceHandler.ListInstances)

	// Raid routes
	mux.HandleFunc("POST /api/raids", raidHandler.CreateOrEditRaid)
	mux.HandleFunc("GET /api/raids", raidHandler.MyRaids)
	mux.HandleFunc("GET /api/raids/{id}", raidHandler.GetRaid)
	mux.HandleFunc("GET /api/raids/{id}/edit", raidHandler.GetRaidForEdit)
	mux.HandleFunc("POST /api/raids/{id}/lock", raidHandler.ToggleLock)
	mux.HandleFunc("POST /api/raids/{id}/admins", raidHandler.EditAdmins)

	// Soft-reserve routes
	mux.HandleFunc("POST /api/raids/{id}/reserves", reserveHandler.CreateReserve)
	mux.HandleFunc("DELETE /api/raids/{id}/reserves", reserveHandler.DeleteReserve)

	// Live stream
	mux.HandleFunc("GET /api/raids/{id}/live", liveHandler.Stream)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Identity → Routes
	root = middleware.Identity(middleware.IdentityConfig{
		Codec:         identityCodec,
		External:      externalVerifier,
		Issuer:        cfg.CookieDomain,
		CookieDomain:  cfg.CookieDomain,
		SecureCookies: cfg.Environment == "prod",
		Logger:        logger,
	})(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal; the same context stops the listener
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
