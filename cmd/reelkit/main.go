// reelkit 启动推荐服务：加载配置，装配存储、目录与打分器，并暴露 HTTP 接口。
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/rushteam/reelkit/api"
	"github.com/rushteam/reelkit/catalog"
	"github.com/rushteam/reelkit/config"
	_ "github.com/rushteam/reelkit/config/builders"
	"github.com/rushteam/reelkit/core"
	"github.com/rushteam/reelkit/feedback"
	"github.com/rushteam/reelkit/filter"
	"github.com/rushteam/reelkit/pkg/logging"
	"github.com/rushteam/reelkit/recommend"
	"github.com/rushteam/reelkit/store"
	"github.com/rushteam/reelkit/vector"
)

func main() {
	configPath := flag.String("config", os.Getenv("REELKIT_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger := logging.Logger()
		logger.Fatal().Err(err).Msg("reelkit exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log)
	logger := logging.With("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "store", kv)

	movies, err := openMovies(ctx, cfg, kv)
	if err != nil {
		return err
	}
	if c, ok := movies.(closer); ok {
		defer closeQuietly(logger, "movies", c)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	index := vector.NewIndex()
	metrics := recommend.NewMetrics(reg, index)

	cat, err := openCatalog(cfg, metrics)
	if err != nil {
		return err
	}

	collector, err := openCollector(cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "feedback", collector)

	scorer, err := recommend.NewScorer(
		movies,
		cat,
		index,
		store.NewKVRecommendationStore(kv, cfg.Store.RecommendationKey),
		recommend.WithConfig(cfg.Recommend),
		recommend.WithMetrics(metrics),
		recommend.WithCollector(collector),
		recommend.WithStore(kv),
		recommend.WithDismissed(filter.NewDismissedSet(kv, cfg.Store.DismissedKey, cfg.Store.DismissedCapacity, cfg.Store.DismissedFPRate)),
	)
	if err != nil {
		return err
	}
	if cfg.Pipeline != "" {
		p, err := config.LoadPipeline(cfg.Pipeline, scorer.Resources())
		if err != nil {
			return err
		}
		scorer.SetPipeline(p)
		logger.Info().Str("path", cfg.Pipeline).Int("nodes", len(p.Nodes)).Msg("pipeline loaded")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(api.NewHandler(scorer, logging.With("api")), reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.KeyValueStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	case "badger":
		return store.OpenBadgerStore(store.BadgerConfig{
			Path:     cfg.Badger.Path,
			InMemory: cfg.Badger.InMemory,
			Logger:   logger.With().Str("component", "badger").Logger(),
		})
	default:
		return store.NewMemoryStore(), nil
	}
}

func openMovies(ctx context.Context, cfg *config.Config, kv core.KeyValueStore) (core.MovieStore, error) {
	if cfg.Store.Movies != "postgres" {
		return store.NewKVMovieStore(kv), nil
	}
	pg, err := store.OpenPostgresMovieStore(ctx, store.PostgresConfig{
		DSN:          cfg.Postgres.DSN,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
	})
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}

func openCatalog(cfg *config.Config, metrics *recommend.Metrics) (core.CatalogClient, error) {
	c := cfg.Catalog
	if c.Type == "file" {
		return catalog.LoadFileClient(c.SnapshotPath)
	}
	opts := []catalog.TMDBOption{
		catalog.WithBaseURL(c.BaseURL),
		catalog.WithLanguage(c.Language),
		catalog.WithPages(c.Pages),
		catalog.WithRateLimit(c.RateLimit, c.Burst),
		catalog.WithBreaker(c.Breaker),
		catalog.WithLogger(logging.With("catalog")),
		catalog.WithRequestHook(metrics.CatalogRequest),
	}
	if c.Timeout > 0 {
		opts = append(opts, catalog.WithTimeout(c.Timeout))
	}
	if c.BearerToken != "" {
		opts = append(opts, catalog.WithBearerToken(c.BearerToken))
	}
	return catalog.NewTMDBClient(c.APIKey, opts...), nil
}

func openCollector(cfg *config.Config) (feedback.Collector, error) {
	switch cfg.Feedback.Type {
	case "memory":
		return feedback.NewMemoryCollector(0), nil
	case "kafka":
		kc, err := feedback.NewKafkaCollector(cfg.Feedback.Kafka, logging.With("feedback"))
		if err != nil {
			return nil, fmt.Errorf("feedback: %w", err)
		}
		return kc, nil
	default:
		return feedback.Nop{}, nil
	}
}

type closer interface{ Close() error }

func closeQuietly(logger zerolog.Logger, name string, c closer) {
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Str("resource", name).Msg("close")
	}
}
