package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/jillmpla/south-carolina-fires/internal/adapter/http"
	kafkaadapter "github.com/jillmpla/south-carolina-fires/internal/adapter/kafka"
	"github.com/jillmpla/south-carolina-fires/internal/config"
	"github.com/jillmpla/south-carolina-fires/internal/feed"
	"github.com/jillmpla/south-carolina-fires/internal/geo"
	"github.com/jillmpla/south-carolina-fires/internal/observability"
	"github.com/jillmpla/south-carolina-fires/internal/pipeline"
	"github.com/jillmpla/south-carolina-fires/internal/store"
	"github.com/jillmpla/south-carolina-fires/internal/window"
)

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	var region *geo.Region
	if cfg.RegionPath != "" {
		region, err = geo.Load(cfg.RegionPath, logger)
	} else {
		region, err = geo.LoadDefault(logger)
	}
	if err != nil {
		logger.Error("failed to load region boundary", "error", err, "path", cfg.RegionPath)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer st.Close()

	client := feed.NewClient(cfg.MapKey, cfg.BaseURL, region.Bound(), cfg.Days, cfg.FetchTimeout, logger)
	parser := feed.NewParser(region, logger)

	// Publishing is feature-flagged via KAFKA_BROKERS.
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(cfg.Products, cfg.Retention, client, parser, st, publisher, logger, metrics, clock)
	win := window.New(window.Config{RolloverHourUTC: cfg.RolloverHourUTC}, clock)

	srv := httpadapter.NewServer(
		httpadapter.Config{Addr: cfg.HTTPAddr, CronSecret: cfg.CronSecret},
		st, p, win, p, metrics, logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Periodic ingestion is feature-flagged via REFRESH_INTERVAL; most
	// deployments rely on an external scheduler hitting /api/update-fires.
	if cfg.RefreshInterval > 0 {
		go runPeriodic(ctx, p, cfg, logger, clock)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// runPeriodic runs one ingestion cycle immediately, then one per interval
// until the context is cancelled.
func runPeriodic(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) {
	logger.Info("periodic ingestion enabled", "interval", cfg.RefreshInterval)

	if _, err := p.RunCycle(ctx); err != nil {
		logger.Error("ingestion cycle failed", "error", err)
	}

	ticker := clock.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := p.RunCycle(ctx); err != nil {
				logger.Error("ingestion cycle failed", "error", err)
			}
		}
	}
}
