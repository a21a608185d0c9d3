package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/julienbutty/prometrage-sub001/internal/auth"
	"github.com/julienbutty/prometrage-sub001/internal/config"
	"github.com/julienbutty/prometrage-sub001/internal/db"
	"github.com/julienbutty/prometrage-sub001/internal/excel"
	"github.com/julienbutty/prometrage-sub001/internal/extraction"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	httphandler "github.com/julienbutty/prometrage-sub001/internal/http"
	"github.com/julienbutty/prometrage-sub001/internal/http/middleware"
	"github.com/julienbutty/prometrage-sub001/internal/logger"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/pdf"
	"github.com/julienbutty/prometrage-sub001/internal/ratelimit"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
	"github.com/julienbutty/prometrage-sub001/internal/service"
	"github.com/julienbutty/prometrage-sub001/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access database pool")
	}
	defer sqlDB.Close()

	store, err := storage.NewLocalStore(cfg.Storage.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	registry, err := forms.NewRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load form configurations")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	var extractor extraction.Extractor
	if cfg.AI.APIKey != "" {
		extractor = extraction.NewClient(extraction.ClientConfig{
			APIURL:        cfg.AI.APIURL,
			APIKey:        cfg.AI.APIKey,
			Model:         cfg.AI.Model,
			MaxTokens:     cfg.AI.MaxTokens,
			MinConfidence: cfg.AI.MinConfidence,
			HTTPClient:    &http.Client{Timeout: cfg.AI.Timeout},
		})
	} else {
		log.Warn().Msg("AI_API_KEY not set, pdf import disabled")
	}

	projectRepo := repository.NewProjectRepository(database)
	clientRepo := repository.NewClientRepository(database)
	itemRepo := repository.NewMenuiserieRepository(database)

	services := httphandler.Services{
		Projects: service.NewProjectService(projectRepo, clientRepo, store, excel.NewGenerator(), log),
		Items:    service.NewMenuiserieService(itemRepo, projectRepo, registry, m),
		Imports: service.NewImportService(projectRepo, extractor, store, m, service.ImportConfig{
			MaxBytes: cfg.Upload.MaxBytes,
			MaxPages: cfg.Upload.MaxPages,
		}, log),
		PurchaseOrders: service.NewPurchaseOrderService(projectRepo, pdf.NewGenerator(), registry, m),
	}

	authManager := auth.NewManager(cfg.Auth.Password, cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)

	limitStore := ratelimit.NewMemoryStore()
	go limitStore.RunJanitor(ctx, cfg.RateLimit.Window)
	limiter := ratelimit.NewLimiter(limitStore, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	handler := httphandler.NewHandler(services, authManager, registry, m, cfg.Upload.MaxBytes, log)
	router := httphandler.NewRouter(handler,
		middleware.Auth(authManager),
		middleware.RateLimit(limiter, m, log),
		httphandler.RouterConfig{
			Environment:    cfg.Environment,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Gatherer:       promRegistry,
			Metrics:        m,
			Log:            log,
			Ping:           sqlDB.PingContext,
		},
	)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting prometrage service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
