package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/applicability-scraper/internal/applicability"
	"github.com/maltedev/applicability-scraper/internal/browser"
	"github.com/maltedev/applicability-scraper/internal/config"
	"github.com/maltedev/applicability-scraper/internal/logging"
)

func main() {
	var (
		targetURL = flag.String("url", "", "Product page URL")
		engine    = flag.String("engine", "", "Browser engine: playwright or rod (default from BROWSER_ENGINE)")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
		policy    = flag.String("on-tab-failure", "", "skip or abort (default from EXTRACTOR_TAB_FAILURE_POLICY)")
	)
	flag.Parse()

	if *targetURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: extract -url <product-url> [-engine playwright|rod]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *engine != "" {
		cfg.Browser.Engine = *engine
	}
	if *policy != "" {
		cfg.Extractor.TabFailurePolicy = *policy
	}
	cfg.Browser.Headless = *headless

	// Logs go to stderr so stdout stays clean JSON.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)

	if err := run(cfg, *targetURL, logger); err != nil {
		logger.Error("extraction failed", "url", *targetURL, "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, targetURL string, logger *slog.Logger) error {
	opts, err := cfg.ExtractorOptions()
	if err != nil {
		return err
	}

	bopts := browser.DefaultOptions()
	bopts.Headless = cfg.Browser.Headless
	bopts.Timeout = cfg.Browser.Timeout
	bopts.IdleWindow = cfg.Browser.IdleWindow
	bopts.ViewportWidth = cfg.Browser.ViewportWidth
	bopts.ViewportHeight = cfg.Browser.ViewportHeight
	bopts.UserAgent = cfg.Browser.UserAgent
	bopts.AcceptLanguage = cfg.Browser.AcceptLanguage
	bopts.TimezoneID = cfg.Browser.TimezoneID
	bopts.Locale = cfg.Browser.Locale
	bopts.ProxyServer = cfg.Browser.ProxyServer

	b, err := browser.Launch(cfg.Browser.Engine, bopts)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := applicability.NewExtractor(b, opts, logger).Run(ctx, targetURL)
	if err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		logger.Warn("some manufacturers were skipped", "skipped", len(report.Failures), "extracted", len(report.Dataset))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report.Dataset)
}
