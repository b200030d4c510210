// Command server runs the ragd documentation query service.
//
// Configuration is layered: built-in defaults, then an optional YAML
// config file (-config flag, RAGD_CONFIG, ./config.yaml, or
// /etc/ragd/config.yaml), then environment variable overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/animadocs/ragd/pkg/api"
	"github.com/animadocs/ragd/pkg/cache"
	cachememory "github.com/animadocs/ragd/pkg/cache/memory"
	cacheredis "github.com/animadocs/ragd/pkg/cache/redis"
	"github.com/animadocs/ragd/pkg/config"
	"github.com/animadocs/ragd/pkg/embedding"
	"github.com/animadocs/ragd/pkg/health"
	"github.com/animadocs/ragd/pkg/observability"
	"github.com/animadocs/ragd/pkg/pipeline"
	providopenai "github.com/animadocs/ragd/pkg/provider/openai"
	"github.com/animadocs/ragd/pkg/transport"
	"github.com/animadocs/ragd/pkg/vectorstore"
	"github.com/animadocs/ragd/pkg/vectorstore/local"
	"github.com/animadocs/ragd/pkg/vectorstore/qdrant"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	embedder := embedding.NewOpenAIClient(
		cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.APIKey, cfg.Embedding.Timeout)

	var backend vectorstore.Backend
	switch cfg.Store.Type {
	case "qdrant":
		backend = qdrant.New(cfg.Store.Qdrant.URL)
	default:
		backend, err = local.New(cfg.Store.PersistDir)
		if err != nil {
			return fmt.Errorf("opening local vector store: %w", err)
		}
	}
	defer backend.Close()

	prov := providopenai.New(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Timeout)
	defer prov.Close()

	searchCache, err := newCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	if searchCache != nil {
		defer searchCache.Close()
	}

	pipe := pipeline.New(pipeline.Config{
		SourceDirs:       cfg.Sources.Dirs,
		Extensions:       cfg.Sources.Extensions,
		Collection:       cfg.Store.Collection,
		PersistDir:       cfg.Store.PersistDir,
		StoreType:        cfg.Store.Type,
		TopK:             cfg.Retrieval.TopK,
		SimilarityCutoff: cfg.Retrieval.SimilarityCutoff,
		Model:            cfg.LLM.Model,
		MaxTokens:        cfg.LLM.MaxTokens,
		Temperature:      cfg.LLM.Temperature,
		BatchSize:        cfg.Embedding.BatchSize,
		Concurrency:      cfg.Embedding.Concurrency,
		CacheTTL:         cfg.Cache.TTL,
	}, embedder, backend, prov, searchCache, logger)
	defer pipe.Close()

	// The index builds in the background so the server comes up
	// immediately; /health answers 503 until the build completes. A
	// failed startup build is fatal so the restart policy can retry.
	buildErr := make(chan error, 1)
	go func() {
		if err := pipe.Initialize(context.Background(), cfg.Store.RebuildOnStart); err != nil {
			buildErr <- fmt.Errorf("initial index build: %w", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("vectorstore", health.CheckFromError(pipe.HealthCheck))
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !pipe.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not built yet"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if rc, ok := searchCache.(*cacheredis.Cache); ok {
		checker.Register("cache", health.CheckFromError(rc.Ping))
	}

	validation := api.DefaultValidationConfig()
	validation.MaxTopK = cfg.Retrieval.MaxTopK

	handler := transport.NewHandler(pipe, checker, validation, 1<<20)
	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
		handler.Mux().Handle("GET "+metricsPath, promhttp.Handler())
	}

	middlewares := []transport.Middleware{
		transport.Recovery(logger),
		transport.RequestID(),
		transport.Logging(logger),
		observability.MetricsMiddleware(metricsPath),
	}
	if cfg.Auth.Type == "apikey" {
		keys := make([]string, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, k.Key)
		}
		middlewares = append(middlewares, transport.APIKeyAuth(keys, metricsPath))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := transport.NewServer(
		transport.Chain(middlewares...)(handler),
		transport.WithAddr(addr),
		transport.WithReadTimeout(cfg.Server.ReadTimeout),
		transport.WithWriteTimeout(cfg.Server.WriteTimeout),
		transport.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transport.WithLogger(logger),
	)

	logger.Info("ragd starting",
		slog.String("addr", addr),
		slog.String("store", cfg.Store.Type),
		slog.Any("source_dirs", cfg.Sources.Dirs),
		slog.String("embedding_model", cfg.Embedding.Model),
		slog.String("llm_model", cfg.LLM.Model))

	return serveUntil(srv.ListenAndServe, buildErr, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown after build failure", slog.String("error", err.Error()))
		}
	})
}

// serveUntil blocks until the server stops or the startup build fails.
// A failed build is fatal: the server is stopped and the build error is
// returned so the process exits non-zero and the restart policy can
// retry.
func serveUntil(serve func() error, buildErr <-chan error, stop func()) error {
	serveErr := make(chan error, 1)
	go func() { serveErr <- serve() }()

	select {
	case err := <-buildErr:
		stop()
		return err
	case err := <-serveErr:
		return err
	}
}

func newCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "memory":
		return cachememory.New(cfg.Memory.MaxEntries), nil
	case "redis":
		return cacheredis.New(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	default:
		return nil, nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
