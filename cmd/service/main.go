package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/ai"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/cache"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/client"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/config"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/health"
	httphandler "github.com/lis186/smart-weather-mcp-server-sub001/internal/http"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/lifecycle"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/observability"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/parser"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/selector"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/service"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/timeres"
)

var version = "dev"

func main() {
	// Optional .env for local development; real deployments set env directly.
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	healthRegistry := health.NewRegistry(health.Config{
		Window:              cfg.HealthWindow,
		DegradedErrorPct:    cfg.HealthDegradedErrorPct,
		UnavailableErrorPct: cfg.HealthUnavailableErrorPct,
		DegradedLatency:     cfg.HealthDegradedLatency,
		MinSamples:          cfg.HealthMinSamples,
	})

	weatherClient := client.NewHTTPWeatherClient(client.Options{
		Timeout:           cfg.UpstreamTimeout,
		GeocodingURL:      cfg.GeocodingURL,
		OpenMeteoURL:      cfg.OpenMeteoURL,
		OpenMeteoArchive:  cfg.OpenMeteoArchiveURL,
		OpenWeatherURL:    cfg.OpenWeatherURL,
		OpenWeatherAPIKey: cfg.OpenWeatherAPIKey,
		WeatherAPIURL:     cfg.WeatherAPIURL,
		WeatherAPIKey:     cfg.WeatherAPIKey,
		RequestsPerMinute: cfg.UpstreamRPM,
		RetryAttempts:     cfg.RetryAttempts,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		RetryMaxDelay:     cfg.RetryMaxDelay,
		Listener:          healthRegistry,
	})
	logger.Info("weather backends configured",
		zap.Strings("apis", weatherClient.APIIDs()),
		zap.Bool("openweather", cfg.OpenWeatherAPIKey != ""),
		zap.Bool("weatherapi", cfg.WeatherAPIKey != ""))

	ttls := cache.TTLTable(cfg.CacheTTLs)
	var cacheSvc cache.Store
	var memcacheCloser *cache.MemcachedCache
	var memCache *cache.InMemoryCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, ttls)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		memCache = cache.NewInMemoryCache(ttls, cfg.CacheMaxSize, cfg.CacheCleanupThreshold)
		cacheSvc = memCache
		logger.Info("cache backend: in_memory", zap.Int("max_size", cfg.CacheMaxSize))
	}
	observability.RegisterCacheGauges(cacheSvc.Metrics)

	var aiAdapter ai.Adapter
	if cfg.AIEnabled {
		aiAdapter = ai.NewAnthropic(cfg.AnthropicKey, cfg.AIModel, cfg.AITimeout)
		logger.Info("ai fallback parsing enabled", zap.String("model", cfg.AIModel))
	} else {
		logger.Info("ai fallback parsing disabled; low-confidence queries use rules only")
	}

	apiSelector := selector.New(selector.DefaultCandidates())
	router := service.New(service.Options{
		Parser:        parser.New(),
		TimeResolver:  timeres.New(),
		AI:            aiAdapter,
		Selector:      apiSelector,
		Health:        healthRegistry,
		Cache:         cacheSvc,
		Client:        weatherClient,
		AIThreshold:   cfg.AIThreshold,
		MinConfidence: cfg.MinConfidence,
	})

	// Expired entries are dropped lazily on read; the sweeper bounds how
	// long dead entries linger between reads.
	scheduler := gocron.NewScheduler(time.UTC)
	if memCache != nil {
		if _, err := scheduler.Every(cfg.CacheSweepInterval).Do(func() {
			if n := memCache.Sweep(); n > 0 {
				logger.Debug("cache sweep", zap.Int("evicted", n))
			}
		}); err != nil {
			logger.Fatal("cache sweep schedule", zap.Error(err))
		}
	}
	scheduler.StartAsync()

	var cachePing func() error
	if memcacheCloser != nil {
		cachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(router, healthRegistry, apiSelector.APIIDs(), logger, version, cachePing)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	r := mux.NewRouter()
	r.Use(httphandler.CorrelationIDMiddleware(logger))
	r.Use(httphandler.MetricsMiddleware)
	r.HandleFunc("/health", handler.GetHealth).Methods("GET")
	r.Handle("/metrics", observability.MetricsHandler())
	r.HandleFunc("/cache/metrics", handler.GetCacheMetrics).Methods("GET")
	queryRouter := r.NewRoute().Subrouter()
	queryRouter.Use(httphandler.RateLimitMiddleware(limiter))
	queryRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	queryRouter.HandleFunc("/query", handler.PostQuery).Methods("POST")
	queryRouter.HandleFunc("/fallback", handler.PostFallback).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
