package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/ssnreport/backend/src/catalog"
	"github.com/username/ssnreport/backend/src/config"
	"github.com/username/ssnreport/backend/src/database"
	"github.com/username/ssnreport/backend/src/handlers"
	"github.com/username/ssnreport/backend/src/logger"
	"github.com/username/ssnreport/backend/src/poller"
	"github.com/username/ssnreport/backend/src/services"
	"github.com/username/ssnreport/backend/src/ssn"
	"github.com/username/ssnreport/backend/src/storage"
	"github.com/username/ssnreport/backend/src/wire"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("SSN report backend server starting...")

	logger.L.Info("Initializing data loaders...")
	if err := catalog.InitSpeciesData(config.Cfg.SpeciesCatalogPath); err != nil {
		// The catalog only feeds soft warnings; a missing file is not fatal.
		logger.L.Error("Failed to load species catalog", "error", err)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing presentation list cache...")
	listCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	ssnCfg := ssn.Config{
		BaseURL:     config.Cfg.SSNBaseURL,
		User:        config.Cfg.SSNUser,
		CompanyCode: config.Cfg.SSNCompanyCode,
		Password:    config.Cfg.SSNPassword,
		Mock:        config.Cfg.SSNMock,
		Timeout:     config.Cfg.SSNTimeout,
	}
	tokenManager := ssn.NewTokenManager(ssnCfg, database.DB)
	ssnClient := ssn.NewClient(ssnCfg, tokenManager)
	codec := wire.NewCodec(config.Cfg.SSNCompanyCode)
	artifactStore := storage.NewArtifactStore()
	notificationService := services.NewNotificationService()

	presentationService := services.NewPresentationService(
		config.Cfg.SSNCompanyCode, codec, ssnClient,
		artifactStore, notificationService, listCache,
	)
	presentationHandler := handlers.NewPresentationHandler(presentationService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Cfg.PollerEnabled {
		rectificationPoller := poller.NewRectificationPoller(presentationService, ssnClient, poller.Config{
			Interval:  config.Cfg.PollerInterval,
			StartHour: config.Cfg.PollerStartHour,
			EndHour:   config.Cfg.PollerEndHour,
			ItemDelay: config.Cfg.PollerItemDelay,
			Approved:  config.Cfg.ApprovedStatusCodes,
			Rejected:  config.Cfg.RejectedStatusCodes,
		})
		go rectificationPoller.Run(ctx)
	} else {
		logger.L.Info("Rectification poller disabled by configuration.")
	}

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/presentations/upload", presentationHandler.HandleUpload)
	apiRouter.HandleFunc("GET /api/presentations", presentationHandler.HandleListPresentations)
	apiRouter.HandleFunc("GET /api/presentations/{id}", presentationHandler.HandleGetPresentation)
	apiRouter.HandleFunc("GET /api/presentations/{id}/records", presentationHandler.HandleGetRecords)
	apiRouter.HandleFunc("POST /api/presentations/{id}/submit", presentationHandler.HandleSubmit)
	apiRouter.HandleFunc("POST /api/presentations/{id}/confirm", presentationHandler.HandleConfirm)
	apiRouter.HandleFunc("PUT /api/presentations/{id}/rectification", presentationHandler.HandleRequestRectification)
	apiRouter.HandleFunc("POST /api/presentations/{id}/versions", presentationHandler.HandleOpenVersion)
	apiRouter.HandleFunc("GET /api/poller/runs", presentationHandler.HandleListPollerRuns)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "SSN report backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.L.Info("Shutdown signal received, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
