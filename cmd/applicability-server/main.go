package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/applicability-scraper/internal/api"
	"github.com/maltedev/applicability-scraper/internal/applicability"
	"github.com/maltedev/applicability-scraper/internal/browser"
	"github.com/maltedev/applicability-scraper/internal/catalog"
	"github.com/maltedev/applicability-scraper/internal/config"
	"github.com/maltedev/applicability-scraper/internal/events"
	"github.com/maltedev/applicability-scraper/internal/images"
	"github.com/maltedev/applicability-scraper/internal/logging"
	"github.com/maltedev/applicability-scraper/internal/ozon"
	"github.com/maltedev/applicability-scraper/internal/pipeline"
	"github.com/maltedev/applicability-scraper/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractorOpts, err := cfg.ExtractorOptions()
	if err != nil {
		return fmt.Errorf("failed to build extractor options: %w", err)
	}

	// Storage
	store, err := storage.Open(ctx, storage.Config{
		Driver:   cfg.Storage.Driver,
		FilePath: cfg.Storage.FilePath,
		DSN:      cfg.Storage.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	// Browser setup
	b, err := browser.Launch(cfg.Browser.Engine, browserOptions(cfg.Browser))
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer b.Close()

	// Events
	publisher := events.New(events.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Stream:   cfg.Redis.Stream,
	}, logger)
	defer publisher.Close()

	// Services
	extractor := applicability.NewExtractor(b, extractorOpts, logger)
	uploader := ozon.NewClient(ozon.ClientConfig{
		BaseURL:        cfg.Ozon.BaseURL,
		ClientID:       cfg.Ozon.ClientID,
		APIKey:         cfg.Ozon.APIKey,
		RequestsPerSec: cfg.Ozon.RequestsPerSec,
		Timeout:        cfg.Ozon.RequestTimeout,
	}, logger)
	if cfg.Ozon.ClientID == "" || cfg.Ozon.APIKey == "" {
		logger.Warn("ozon credentials are not set, uploads will fail")
	}

	svcCfg := pipeline.Config{
		Extractor:   extractor,
		Transformer: ozon.NewTransformer(listingDefaults(cfg.Ozon)),
		Uploader:    uploader,
		Store:       store,
		Publisher:   publisher,
		BatchSize:   cfg.Ozon.BatchSize,
		Logger:      logger,
	}
	if cfg.Images.Enabled {
		svcCfg.Images = images.NewDownloader(cfg.Ozon.ImageBaseURL, cfg.Images.Dir, logger)
	}
	service := pipeline.NewService(svcCfg)

	lookup := catalog.NewClient(cfg.Catalog.SiteBaseURL, cfg.Catalog.RequestTimeout, logger)

	handlers := api.NewHandlers(service, store, lookup, logger)
	router := api.NewRouter(handlers, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "engine", cfg.Browser.Engine, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func browserOptions(c config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = c.Headless
	opts.Timeout = c.Timeout
	opts.IdleWindow = c.IdleWindow
	opts.ViewportWidth = c.ViewportWidth
	opts.ViewportHeight = c.ViewportHeight
	opts.UserAgent = c.UserAgent
	opts.AcceptLanguage = c.AcceptLanguage
	opts.TimezoneID = c.TimezoneID
	opts.Locale = c.Locale
	opts.ProxyServer = c.ProxyServer
	return opts
}

func listingDefaults(c config.OzonConfig) ozon.ListingDefaults {
	return ozon.ListingDefaults{
		Brand:        c.Brand,
		Price:        c.Price,
		OldPrice:     c.OldPrice,
		Barcode:      c.Barcode,
		CategoryID:   c.CategoryID,
		TypeValue:    c.CategoryValue,
		TypeDictID:   c.DictionaryID,
		Vat:          c.Vat,
		CurrencyCode: c.CurrencyCode,
		Depth:        c.Depth,
		Height:       c.Height,
		Width:        c.Width,
		Weight:       c.Weight,
		ImageBaseURL: c.ImageBaseURL,
	}
}
