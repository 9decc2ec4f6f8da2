package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GregMSThompson/mcp-proxy/internal/bootstrap"
	"github.com/GregMSThompson/mcp-proxy/internal/config"
	"github.com/GregMSThompson/mcp-proxy/internal/crypto"
	"github.com/GregMSThompson/mcp-proxy/internal/handlers"
	"github.com/GregMSThompson/mcp-proxy/internal/middleware"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
	"github.com/GregMSThompson/mcp-proxy/internal/router"
	"github.com/GregMSThompson/mcp-proxy/internal/services"
	"github.com/GregMSThompson/mcp-proxy/internal/store"
)

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// config
	cfg := config.New()
	exitOnError("invalid configuration", cfg.Validate(), slog.Default())

	// bootstrap
	bs, err := bootstrap.Run(cfg)
	exitOnError("bootstrap failed", err, bs.Log)
	defer func() {
		if err := bs.Close(); err != nil {
			bs.Log.Error("shutdown close failed", "error", err)
		}
	}()

	// stores
	opts := store.SessionOptions{TTL: cfg.SessionTTL, MaxTurns: cfg.SessionMaxTurns}
	if bs.KMS != nil {
		opts.Cipher = crypto.NewPayloadCipher(bs.KMS, cfg.KMSKeyName)
	}
	var sessions store.SessionStore
	if cfg.SessionBackend == config.BackendFirestore {
		sessions = store.NewSessionFirestoreStore(bs.Firestore, opts)
	} else {
		sessions = store.NewSessionRedisStore(bs.Redis, opts)
	}

	// services
	catalog := services.NewCatalogService(bs.MCP, cfg.ToolCacheTTL)
	intent := services.NewIntentService(bs.Completer, cfg.SelectionModel, cfg.IntentTimeout, cfg.SessionHistoryTurns)
	invoker := services.NewInvokerService(bs.MCP, cfg.ToolTimeout)
	formatter := services.NewFormatterService(bs.Completer, cfg.FormattingModel, cfg.FormatTimeout, cfg.SessionHistoryTurns)
	qserv := services.NewQueryService(catalog, intent, invoker, formatter, sessions, cfg.SessionHistoryTurns)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = response.New(bs.Log)
	deps.QuerySvc = qserv
	deps.Catalog = catalog
	deps.Sessions = sessions
	deps.MCP = bs.MCP
	deps.SDEHost = cfg.SDEHost
	deps.MCPServerURL = cfg.MCPServerURL

	// router
	ropts := router.Options{CORSOrigins: cfg.CORSOrigins}
	if cfg.AuthEnabled {
		ropts.Auth = middleware.NewMiddleware(bs.Firebase).FirebaseAuth
	}
	r := router.NewRouter(bs.Log, deps, ropts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// intent, tool and formatting deadlines run back to back
		WriteTimeout: cfg.IntentTimeout + cfg.ToolTimeout + cfg.FormatTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		bs.Log.Info("server listening", "addr", srv.Addr, "provider", cfg.CompletionProvider, "session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			exitOnError("server start failed", err, bs.Log)
		}
	}()

	<-ctx.Done()
	stop()
	bs.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		bs.Log.Error("graceful shutdown failed", "error", err)
	}
}
