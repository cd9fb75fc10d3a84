package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

// RodBrowser is the go-rod backend. Each session is an incognito browser
// context with a stealth page.
type RodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     *Options
	logger   *slog.Logger
}

func NewRod(opts *Options) (*RodBrowser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	l := launcher.New().Headless(opts.Headless)
	if opts.ProxyServer != "" {
		l = l.Proxy(opts.ProxyServer)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodBrowser{
		launcher: l,
		browser:  browser,
		opts:     opts,
		logger:   slog.Default().With("component", "browser", "engine", EngineRod),
	}, nil
}

func (b *RodBrowser) NewSession(ctx context.Context) (applicability.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, &applicability.SessionError{Op: "new context", Err: err}
	}

	page, err := stealth.Page(incognito)
	if err != nil {
		incognito.Close()
		return nil, &applicability.SessionError{Op: "new page", Err: err}
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.opts.UserAgent,
		AcceptLanguage: b.opts.AcceptLanguage,
	}); err != nil {
		b.logger.Warn("failed to set user agent", "error", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.ViewportWidth,
		Height:            b.opts.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.logger.Warn("failed to set viewport", "error", err)
	}

	return &rodSession{
		root:       b.browser,
		incognito:  incognito,
		page:       page,
		timeout:    b.opts.Timeout,
		idleWindow: b.opts.IdleWindow,
	}, nil
}

func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type rodSession struct {
	root       *rod.Browser
	incognito  *rod.Browser
	page       *rod.Page
	timeout    time.Duration
	idleWindow time.Duration
}

func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	waitIdle := p.WaitRequestIdle(s.idleWindow, nil, nil, nil)
	if err := p.Navigate(url); err != nil {
		return s.classify(ctx, "navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return s.classify(ctx, "wait load", err)
	}
	waitIdle()

	if err := p.GetContext().Err(); err != nil {
		return s.classify(ctx, "wait network idle", err)
	}
	return nil
}

func (s *rodSession) Texts(ctx context.Context, selector string) ([]string, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, s.classify(ctx, "query "+selector, err)
	}

	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := textContent(el)
		if err != nil {
			return nil, s.classify(ctx, "read "+selector, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (s *rodSession) Text(ctx context.Context, selector string) (string, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return "", s.classify(ctx, "query "+selector, err)
	}
	if !has {
		return "", fmt.Errorf("%s: %w", selector, applicability.ErrElementNotFound)
	}

	text, err := textContent(el)
	if err != nil {
		return "", s.classify(ctx, "read "+selector, err)
	}
	return text, nil
}

func (s *rodSession) ClickNth(ctx context.Context, selector string, i int) error {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return s.classify(ctx, "query "+selector, err)
	}
	if i < 0 || i >= len(els) {
		return fmt.Errorf("%s[%d] of %d: %w", selector, i, len(els), applicability.ErrElementNotFound)
	}

	el := els[i].Timeout(s.timeout)
	defer el.CancelTimeout()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.classify(ctx, "click "+selector, err)
	}
	return nil
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	return s.ClickNth(ctx, selector, 0)
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p := s.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return s.classify(ctx, "wait "+selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return s.classify(ctx, "wait visible "+selector, err)
	}
	return nil
}

func (s *rodSession) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return s.classify(ctx, "query "+selector, err)
	}
	if !has {
		return nil
	}

	el = el.Timeout(timeout)
	defer el.CancelTimeout()
	if err := el.WaitInvisible(); err != nil {
		return s.classify(ctx, "wait hidden "+selector, err)
	}
	return nil
}

func (s *rodSession) Close() error {
	pageErr := s.page.Close()
	if err := s.incognito.Close(); err != nil {
		return fmt.Errorf("failed to close incognito context: %w", err)
	}
	if pageErr != nil {
		return fmt.Errorf("failed to close page: %w", pageErr)
	}
	return nil
}

// classify maps rod errors onto the extractor's taxonomy. A failing version
// probe on the root connection means the browser itself is gone.
func (s *rodSession) classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, applicability.ErrWaitTimeout, err)
	}
	if s.root != nil {
		if _, probeErr := (proto.BrowserGetVersion{}).Call(s.root); probeErr != nil {
			return &applicability.SessionError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func textContent(el *rod.Element) (string, error) {
	v, err := el.Property("textContent")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v.Str()), nil
}
