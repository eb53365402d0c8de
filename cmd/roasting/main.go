// Package main wires together the roasting service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/roasting-id/roasting-service/internal/admission"
	"github.com/roasting-id/roasting-service/internal/api"
	"github.com/roasting-id/roasting-service/internal/clock/system"
	"github.com/roasting-id/roasting-service/internal/config"
	"github.com/roasting-id/roasting-service/internal/extract"
	"github.com/roasting-id/roasting-service/internal/fetcher"
	collyfetcher "github.com/roasting-id/roasting-service/internal/fetcher/colly"
	"github.com/roasting-id/roasting-service/internal/fetcher/detector"
	headlessfetcher "github.com/roasting-id/roasting-service/internal/fetcher/headless"
	"github.com/roasting-id/roasting-service/internal/generator/canned"
	"github.com/roasting-id/roasting-service/internal/generator/openrouter"
	"github.com/roasting-id/roasting-service/internal/id/uuid"
	"github.com/roasting-id/roasting-service/internal/logging"
	"github.com/roasting-id/roasting-service/internal/metrics"
	"github.com/roasting-id/roasting-service/internal/orchestrator"
	memorypublisher "github.com/roasting-id/roasting-service/internal/publisher/memory"
	pubsubpublisher "github.com/roasting-id/roasting-service/internal/publisher/pubsub"
	"github.com/roasting-id/roasting-service/internal/roast"
	gcsstorage "github.com/roasting-id/roasting-service/internal/storage/gcs"
	localstorage "github.com/roasting-id/roasting-service/internal/storage/local"
	memorystorage "github.com/roasting-id/roasting-service/internal/storage/memory"
	memorystore "github.com/roasting-id/roasting-service/internal/store/memory"
	postgresstore "github.com/roasting-id/roasting-service/internal/store/postgres"
)

const sweepInterval = 10 * time.Minute

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	clock := system.New()
	idGen := uuid.New()
	limiter := admission.New(admission.Config{
		PerMinute:   cfg.Admission.PerMinute,
		PerHour:     cfg.Admission.PerHour,
		DailyBudget: cfg.Admission.DailyBudget,
	}, clock)

	siteFetcher := buildFetcher(cfg, logger)
	extractor := extract.New(0)
	gen := buildGenerator(cfg, logger)

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("snapshot store init failed", zap.Error(err))
	}
	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("event publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	pipeline, err := orchestrator.New(orchestrator.Config{
		SnapshotPrefix:       cfg.Snapshot.Prefix,
		FallbackOnFetchError: cfg.Fetcher.FallbackOnFetchErr,
	}, orchestrator.Deps{
		Fetcher:   siteFetcher,
		Extractor: extractor,
		Generator: gen,
		Store:     store,
		Budget:    limiter,
		Blobs:     blobs,
		Publisher: publisher,
		IDs:       idGen,
		Clock:     clock,
		Logger:    logger.Named("pipeline"),
	})
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
				metrics.SetDailyBudgetRemaining(limiter.RemainingBudget())
			}
		}
	}()

	apiServer := api.NewServer(pipeline, store, limiter, cfg.Roast, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildFetcher(cfg config.Config, logger *zap.Logger) roast.Fetcher {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	var headless roast.Fetcher
	if cfg.Headless.Enabled {
		headlessFetcher, err := headlessfetcher.New(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetcher.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		})
		if err != nil {
			logger.Warn("headless fetcher init failed, probe only", zap.Error(err))
		} else {
			headless = headlessFetcher
		}
	}
	detect := detector.NewHeuristic(cfg.Fetcher.BodyLengthMinimum)
	return fetcher.NewEscalating(probe, headless, detect, logger.Named("fetcher"))
}

func buildGenerator(cfg config.Config, logger *zap.Logger) roast.Generator {
	switch cfg.LLM.Provider {
	case "canned":
		return canned.New()
	default:
		// openrouter and local share the chat-completions wire shape.
		return openrouter.New(openrouter.Config{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			MaxAttempts:    cfg.LLM.MaxRetries,
			BackoffInitial: time.Duration(cfg.LLM.BackoffInitialMs) * time.Millisecond,
			BackoffMax:     time.Duration(cfg.LLM.BackoffMaxMs) * time.Millisecond,
			Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			MaxOutputRunes: cfg.LLM.MaxOutputRunes,
			RPS:            cfg.LLM.RPS,
		}, logger.Named("generator"))
	}
}

func buildStore(ctx context.Context, cfg config.Config) (roast.Store, func(), error) {
	if cfg.DB.Driver == "postgres" {
		store, err := postgresstore.New(ctx, postgresstore.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifeMins) * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return memorystore.New(), func() {}, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (roast.BlobStore, error) {
	switch cfg.Snapshot.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Snapshot.GCSBucket})
	case "local":
		return localstorage.New(localstorage.Config{BaseDir: cfg.Snapshot.BaseDir})
	case "memory":
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (roast.Publisher, func(), error) {
	switch cfg.Events.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client.Topic(cfg.Events.TopicName))
		return pub, func() {
			pub.Stop()
			_ = client.Close()
		}, nil
	case "memory":
		return memorypublisher.New(), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
