package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retailpulse-lab/retailpulse/internal/aggregator"
	"github.com/retailpulse-lab/retailpulse/internal/analyst"
	"github.com/retailpulse-lab/retailpulse/internal/analyst/embed"
	"github.com/retailpulse-lab/retailpulse/internal/analyst/index"
	corecfg "github.com/retailpulse-lab/retailpulse/internal/core/config"
	"github.com/retailpulse-lab/retailpulse/internal/core/storage/postgres"
	"github.com/retailpulse-lab/retailpulse/internal/dashboard"
	"github.com/retailpulse-lab/retailpulse/internal/flywheel"
	"github.com/retailpulse-lab/retailpulse/internal/ingestion"
	"github.com/retailpulse-lab/retailpulse/internal/migrations"
	"github.com/retailpulse-lab/retailpulse/internal/model"
	"github.com/retailpulse-lab/retailpulse/internal/producer"
	"github.com/retailpulse-lab/retailpulse/internal/server"
)

func main() {
	configPath := flag.String("config", "retailpulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	cronInterval, err := time.ParseDuration(cfg.Aggregation.EffectiveCronInterval())
	if err != nil {
		slog.Error("Invalid aggregation interval", "value", cfg.Aggregation.EffectiveCronInterval(), "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	stream, err := postgres.NewStreamAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer stream.Close()

	// 2.1. Run Database Migrations
	if err := migrations.Run(stream.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// The feature and training adapters share the stream's pool.
	features := postgres.NewFeatureAdapter(stream.DB(), cfg.Buffer.Capacity, cfg.Aggregation.EffectiveDedupWindow())
	trainingStore := postgres.NewTrainingAdapter(stream.DB())

	// 3. Initialize Model Registry
	registry, err := model.NewRegistry(cfg.Training.ArtifactDir)
	if err != nil {
		slog.Error("Failed to initialize model registry", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Synthetic Producer (optional; drives demo and load environments)
	if cfg.Producer.Enabled {
		interval, err := time.ParseDuration(cfg.Producer.Interval)
		if err != nil {
			slog.Error("Invalid producer interval", "value", cfg.Producer.Interval, "error", err)
			os.Exit(1)
		}
		prod := producer.New(stream, producer.DefaultCatalog(), producer.Options{
			Interval:     interval,
			BatchSize:    cfg.Producer.BatchSize,
			BackfillDays: cfg.Producer.BackfillDays,
		})
		go func() {
			if err := prod.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Producer stopped with error", "error", err)
			}
		}()
	}

	// 5. Aggregation (cron-based batch consumer)
	if cfg.Aggregation.Enabled {
		refData, err := flywheel.LoadRefData(ctx, cfg.Training.OilDataPath, cfg.Training.HolidayPath)
		if err != nil {
			slog.Error("Failed to load reference data", "error", err)
			os.Exit(1)
		}

		consumer := aggregator.NewConsumer(
			cfg.Aggregation.ConsumerGroup,
			stream,
			features,
			refData,
			aggregator.BatchJobParameter{
				BatchSize:         cfg.Aggregation.BatchSize,
				WorkerCount:       cfg.Aggregation.WorkerCount,
				ChannelBufferSize: cfg.Aggregation.ChannelBufferSize,
			},
		)
		scheduler := aggregator.NewScheduler(cronInterval, consumer)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Aggregation scheduler stopped with error", "error", err)
			}
		}()

		slog.Info("Aggregation scheduler initialized",
			"interval", cronInterval,
			"consumer_group", cfg.Aggregation.ConsumerGroup,
			"batch_size", cfg.Aggregation.BatchSize,
			"worker_count", cfg.Aggregation.WorkerCount,
		)
	} else {
		slog.Info("Aggregation scheduler disabled by config")
	}

	// 6. Continuous-Training Flywheel
	if cfg.Training.Enabled {
		trainingInterval, err := time.ParseDuration(cfg.Training.Interval)
		if err != nil {
			slog.Error("Invalid training interval", "value", cfg.Training.Interval, "error", err)
			os.Exit(1)
		}
		fw := flywheel.New(
			trainingStore,
			trainingStore,
			registry,
			flywheel.NewLinearTrainer(cfg.Training.HoldoutFraction),
			cfg.Training.MinRows,
		)
		fwScheduler := flywheel.NewScheduler(trainingInterval, fw)
		go func() {
			if err := fwScheduler.Start(ctx); err != nil {
				slog.Error("Training scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Training flywheel disabled by config")
	}

	// 7. Semantic Analyst (optional; needs a local model server)
	var asker dashboard.Analyst
	if cfg.Analyst.Enabled {
		vocab, err := analyst.LoadVocabulary(cfg.Analyst.VocabPath)
		if err != nil {
			slog.Error("Failed to load analyst vocabulary", "error", err)
			os.Exit(1)
		}
		indexInterval, err := time.ParseDuration(cfg.Analyst.IndexInterval)
		if err != nil {
			slog.Error("Invalid analyst index interval", "value", cfg.Analyst.IndexInterval, "error", err)
			os.Exit(1)
		}

		embedder := embed.NewLocalClient(
			embed.WithBaseURL(cfg.Analyst.EmbedURL),
			embed.WithModel(cfg.Analyst.EmbedModel),
		)
		semanticIndex := index.NewMemoryIndex()
		generator := analyst.NewChatGenerator(cfg.Analyst.GenerateURL, cfg.Analyst.GenerateModel)
		parser := analyst.NewParser(vocab, cfg.Analyst.DefaultTopK, cfg.Analyst.MaxTopK)
		asker = analyst.NewService(parser, embedder, semanticIndex, generator)

		indexer := analyst.NewIndexer(trainingStore, trainingStore, embedder, semanticIndex)
		go func() {
			if err := indexer.Start(ctx, indexInterval); err != nil {
				slog.Error("Analyst indexer stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Analyst disabled by config")
	}

	// 8. Initialize HTTP API
	ingestionSvc := ingestion.NewService(stream, cfg.Server.MaxBodySizeMB)
	dashboardSvc := dashboard.NewService(features, registry, asker)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), stream.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	dashboardSvc.RegisterRoutes(srv.Engine)

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
