package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

// Browser owns one Playwright driver and one Chromium process. Every session
// gets its own BrowserContext, so sessions share no cookies, storage or pages.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
	// IdleWindow is how long the network must be quiet for navigation to count as settled.
	IdleWindow time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		IdleWindow:     500 * time.Millisecond,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  slog.Default().With("component", "browser", "engine", EnginePlaywright),
	}, nil
}

// NewSession opens a new isolated browser context with one page.
func (b *Browser) NewSession(ctx context.Context) (applicability.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.browser.IsConnected() {
		b.logger.Error("browser disconnected, cannot open session")
		return nil, &applicability.SessionError{Op: "new context", Err: errors.New("browser disconnected")}
	}

	headers := make(map[string]string, len(b.opts.ExtraHeaders)+1)
	for k, v := range b.opts.ExtraHeaders {
		headers[k] = v
	}
	if b.opts.AcceptLanguage != "" {
		headers["Accept-Language"] = b.opts.AcceptLanguage
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &b.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &b.opts.Locale,
		TimezoneId:        &b.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		b.logger.Error("failed to create browser context", "error", err)
		return nil, &applicability.SessionError{Op: "new context", Err: err}
	}

	page, err := bctx.NewPage()
	if err != nil {
		b.logger.Error("failed to create page", "error", err)
		bctx.Close()
		return nil, &applicability.SessionError{Op: "new page", Err: err}
	}
	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))
	b.logger.Debug("session opened", "contexts", len(b.browser.Contexts()))

	return &playwrightSession{
		browser: b.browser,
		context: bctx,
		page:    page,
		timeout: b.opts.Timeout,
	}, nil
}

// Close shuts down Chromium and the Playwright driver. Open sessions die with it.
func (b *Browser) Close() error {
	var errs []error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chromium: %w", err))
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright driver: %w", err))
		}
	}
	return errors.Join(errs...)
}
