package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/workbox-dev/workbox/internal/auth"
	"github.com/workbox-dev/workbox/internal/config"
	"github.com/workbox-dev/workbox/internal/handler"
	"github.com/workbox-dev/workbox/internal/logger"
	"github.com/workbox-dev/workbox/internal/middleware"
	"github.com/workbox-dev/workbox/internal/objstore"
	"github.com/workbox-dev/workbox/internal/sandbox"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer logr.Close()

	// Session records and workspace files live in the platform storage
	// service; without it, fall back to process memory for local work.
	var store objstore.Store
	if cfg.StorageAPIURL != "" {
		store = objstore.NewClient(cfg.StorageAPIURL, cfg.StorageAPIToken)
		logr.Info("object store connected", "url", cfg.StorageAPIURL)
	} else {
		store = objstore.NewMemory()
		logr.Warn("STORAGE_API_URL not set, using in-memory object store")
	}
	gateway := objstore.NewGateway(store)

	var provider sandbox.Provider = sandbox.NewPlatformClient(cfg.SandboxAPIURL, cfg.SandboxAPIToken)
	if cfg.SandboxAPIURL == "" {
		logr.Warn("SANDBOX_API_URL not set, sandbox operations will fail")
	}

	authority := auth.NewAuthority(cfg, store, logr)
	if !authority.Configured() {
		logr.Warn("GitHub OAuth not configured, login is unavailable")
	}
	if cfg.DevAuthBypass {
		logr.Warn("dev auth bypass enabled for localhost requests")
	}

	controller := sandbox.NewController(cfg, provider, logr)
	h := handler.New(cfg, logr, gateway, authority, controller, provider)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLog(logr))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Auth(authority, cfg, logr))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Login flow (public paths, the auth middleware passes them through)
	r.Get("/login", h.LoginPage)
	r.Get("/auth/login", h.AuthLogin)
	r.Get("/auth/callback", h.AuthCallback)
	r.Get("/auth/logout", h.AuthLogout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/me", h.AuthMe)

		r.Get("/files", h.ListFiles)
		r.Get("/read", h.ReadFile)
		r.Post("/write", h.WriteFile)
		r.Post("/mkdir", h.Mkdir)
		r.Post("/delete", h.DeletePath)

		r.Post("/sandbox/start", h.StartSandbox)
		r.Post("/sandbox/stop", h.StopSandbox)
		r.Get("/sandbox/status", h.SandboxStatus)
	})

	r.Get("/ws", h.TerminalSocket)

	// No ReadTimeout/WriteTimeout: the terminal socket holds connections
	// open indefinitely.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logr.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("forced shutdown", "error", err)
	}
}
