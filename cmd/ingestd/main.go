package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/babcs2035/enzetsu-navi/internal/config"
	"github.com/babcs2035/enzetsu-navi/internal/geocode"
	"github.com/babcs2035/enzetsu-navi/internal/ingest"
	"github.com/babcs2035/enzetsu-navi/internal/metrics"
	"github.com/babcs2035/enzetsu-navi/internal/publisher"
	"github.com/babcs2035/enzetsu-navi/internal/scheduler"
	"github.com/babcs2035/enzetsu-navi/internal/source/jsonfeed"
	"github.com/babcs2035/enzetsu-navi/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	runOnce := flag.Bool("once", false, "run all sources once and exit")
	runSource := flag.String("source", "", "run a single source once and exit")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher (optional; the orchestrator runs fine
	// without one)
	var pub ingest.Publisher
	var rabbitMQ *publisher.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err = publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	// Initialize stores
	partyStore := postgres.NewPartyStore(db)
	candidateStore := postgres.NewCandidateStore(db)
	speechStore := postgres.NewSpeechStore(db)
	geocodeStore := postgres.NewGeocodeStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Geocoding: Places provider behind the persistent cache
	if cfg.Geocode.APIKey == "" {
		logger.Warn("geocode api key is not configured, lookups will be cached as failures")
	}
	places := geocode.NewPlacesClient(geocode.PlacesConfig{
		APIKey:       cfg.Geocode.APIKey,
		BaseURL:      cfg.Geocode.BaseURL,
		LanguageCode: cfg.Geocode.LanguageCode,
		RegionCode:   cfg.Geocode.RegionCode,
		Timeout:      cfg.Geocode.Timeout,
	}, logger)
	geocoder := geocode.NewCache(geocodeStore, places, cfg.Geocode.CountryHint, logger)

	// Ingestion pipeline
	resolver := ingest.NewResolver(partyStore, candidateStore, logger)
	merger := ingest.NewMerger(speechStore, geocoder, logger)
	normalizer := ingest.NewNormalizer(candidateStore, speechStore, logger)
	orchestrator := ingest.NewOrchestrator(resolver, merger, normalizer, txManager, pub, logger)

	for _, sc := range cfg.Sources {
		orchestrator.Register(jsonfeed.New(jsonfeed.Config{
			ID:             sc.ID,
			Party:          sc.Party,
			URL:            sc.URL,
			Timeout:        sc.Timeout,
			MaxAttempts:    sc.Retry.MaxAttempts,
			InitialBackoff: sc.Retry.InitialBackoff,
			MaxBackoff:     sc.Retry.MaxBackoff,
		}, logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runSource != "" {
		result, err := orchestrator.RunOne(ctx, *runSource)
		if err != nil {
			logger.Error("single-source run failed", "source", *runSource, "error", err)
			os.Exit(1)
		}
		printJSON(logger, result)
		return
	}

	if *runOnce {
		report, err := orchestrator.RunAll(ctx)
		if err != nil {
			logger.Error("ingestion run failed", "error", err)
			os.Exit(1)
		}
		printJSON(logger, report)
		return
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	sched := scheduler.New(orchestrator, cfg.Ingest.Schedule, cfg.Ingest.RunTimeout, logger)

	logger.Info("starting ingestion daemon",
		"sources", len(cfg.Sources),
		"schedule", cfg.Ingest.Schedule,
	)

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	cancel()
	sched.Stop()
}

func printJSON(logger *slog.Logger, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("failed to encode result", "error", err)
		return
	}
	os.Stdout.Write(append(data, '\n'))
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
