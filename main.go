package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/tradevisor/backend/src/config"
	"github.com/username/tradevisor/backend/src/database"
	"github.com/username/tradevisor/backend/src/handlers"
	"github.com/username/tradevisor/backend/src/logger"
	"github.com/username/tradevisor/backend/src/parsers"
	"github.com/username/tradevisor/backend/src/processors"
	"github.com/username/tradevisor/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter *rate.Limiter

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Requested-With, X-User-ID, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("TradeVisor backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	limiter = rate.NewLimiter(rate.Limit(config.Cfg.RateLimitPerSecond), config.Cfg.RateLimitBurst)

	resultCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	tradeStore := services.NewTradeStore(database.DB)

	normalizer := parsers.NewNormalizer(parsers.DefaultFormatMappings())
	tradeProcessor := processors.NewTradeProcessor()

	detectorCfg := processors.DefaultDetectorConfig()
	detectorCfg.Lookback = config.Cfg.DuplicateLookback
	detector := processors.NewDuplicateDetector(detectorCfg, tradeStore)

	reconciliationService := services.NewReconciliationService(
		normalizer,
		tradeProcessor,
		detector,
		tradeStore,
		resultCache,
	)
	analyticsService := services.NewAnalyticsService(tradeStore, reportCache)

	uploadHandler := handlers.NewUploadHandler(reconciliationService)
	tradeHandler := handlers.NewTradeHandler(tradeStore, reconciliationService, analyticsService)
	portfolioHandler := handlers.NewPortfolioHandler(analyticsService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "TradeVisor Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handlers.UserContextMiddleware)

			r.Post("/upload", uploadHandler.HandleUpload)
			r.Get("/upload/latest", uploadHandler.HandleGetLatestUploadResult)

			r.Get("/trades", tradeHandler.HandleListTrades)
			r.Post("/trades/manual", tradeHandler.HandleAddManualTrade)
			r.Delete("/trades/{id}", tradeHandler.HandleDeleteTrade)
			r.Get("/trades/export", tradeHandler.HandleExportTrades)

			r.Get("/portfolio/metrics", portfolioHandler.HandleGetMetrics)
			r.Get("/portfolio/returns", portfolioHandler.HandleGetReturns)
			r.Get("/portfolio/top-performers", portfolioHandler.HandleGetTopPerformers)
			r.Get("/portfolio/drawdown", portfolioHandler.HandleGetDrawdown)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
