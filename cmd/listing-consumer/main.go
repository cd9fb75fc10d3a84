package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/applicability-scraper/internal/config"
	"github.com/maltedev/applicability-scraper/internal/events"
	"github.com/maltedev/applicability-scraper/internal/images"
	"github.com/maltedev/applicability-scraper/internal/logging"
)

// listing-consumer follows the listings stream and fetches the photos of
// every uploaded article, so the API can run with IMAGES_ENABLED=false.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("consumer stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	downloader := images.NewDownloader(cfg.Ozon.ImageBaseURL, cfg.Images.Dir, logger)

	consumer := events.NewConsumer(rdb, events.ConsumerConfig{
		Stream:   cfg.Redis.Stream,
		Consumer: hostname(),
	}, func(ctx context.Context, event events.UploadedEvent) error {
		saved := downloader.DownloadAll(ctx, event.Articles)
		if saved < len(event.Articles) {
			return fmt.Errorf("downloaded %d of %d images", saved, len(event.Articles))
		}
		return nil
	}, logger)

	return consumer.Run(ctx)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "consumer-1"
	}
	return name
}
