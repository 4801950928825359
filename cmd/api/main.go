package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/voxlabs/ttsd/internal/api"
	"github.com/voxlabs/ttsd/internal/cache"
	"github.com/voxlabs/ttsd/internal/config"
	"github.com/voxlabs/ttsd/internal/engine"
	"github.com/voxlabs/ttsd/internal/resident"
)

func main() {
	cfg, err := config.Load(os.Getenv("TTSD_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis audio cache (optional)
	var audioCache *cache.AudioCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, running without audio cache", "error", err)
			rdb.Close()
		} else {
			audioCache = cache.New(rdb, cfg.Redis.ResultTTL)
			defer rdb.Close()
		}
	}

	manager := resident.NewManager(buildLoaders(cfg, logger), logger)
	sweeper := resident.NewSweeper(manager,
		cfg.Residency.SweepInterval, cfg.Residency.UnloadTimeout, logger)

	router := api.NewRouter(manager, audioCache, logger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.KeepAliveTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		slog.Info("starting TTS server", "addr", cfg.Addr(), "models", len(cfg.Models))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
	}

	// Best-effort: release any resident model before exit.
	manager.Evict()
	slog.Info("server stopped")
}

// buildLoaders wires one loader per configured model key.
func buildLoaders(cfg *config.Config, logger *slog.Logger) map[string]engine.Loader {
	loaders := make(map[string]engine.Loader, len(cfg.Models))
	for key, mc := range cfg.Models {
		switch mc.Engine {
		case "worker":
			loaders[key] = engine.NewWorkerLoader(engine.WorkerConfig{
				PythonBin: mc.PythonBin,
				Script:    mc.Script,
				ModelID:   mc.ModelID,
				Device:    mc.Device,
			}, logger)
		case "openai":
			loaders[key] = engine.NewOpenAILoader(engine.OpenAIConfig{
				APIKey:  mc.APIKey,
				BaseURL: mc.BaseURL,
				ModelID: mc.ModelID,
				Voice:   mc.Voice,
			})
		}
	}
	return loaders
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}
