package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

// playwrightSession drives one page. Playwright calls are not context aware,
// so cancellation works by closing the BrowserContext, which aborts them.
type playwrightSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
}

func (s *playwrightSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return s.classify("navigate", err)
	}
	return nil
}

func (s *playwrightSession) Texts(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts, err := s.page.Locator(selector).AllTextContents()
	if err != nil {
		return nil, s.classify("read "+selector, err)
	}
	return trimAll(texts), nil
}

func (s *playwrightSession) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	loc := s.page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return "", s.classify("count "+selector, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%s: %w", selector, applicability.ErrElementNotFound)
	}

	text, err := loc.First().TextContent()
	if err != nil {
		return "", s.classify("read "+selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *playwrightSession) ClickNth(ctx context.Context, selector string, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	loc := s.page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return s.classify("count "+selector, err)
	}
	if i < 0 || i >= n {
		return fmt.Errorf("%s[%d] of %d: %w", selector, i, n, applicability.ErrElementNotFound)
	}

	if err := loc.Nth(i).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(s.timeout.Milliseconds())),
	}); err != nil {
		return s.classify("click "+selector, err)
	}
	return nil
}

func (s *playwrightSession) Click(ctx context.Context, selector string) error {
	return s.ClickNth(ctx, selector, 0)
}

func (s *playwrightSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.waitFor(ctx, selector, playwright.WaitForSelectorStateVisible, timeout)
}

func (s *playwrightSession) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return s.waitFor(ctx, selector, playwright.WaitForSelectorStateHidden, timeout)
}

func (s *playwrightSession) waitFor(ctx context.Context, selector string, state *playwright.WaitForSelectorState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return s.classify("wait "+selector, err)
	}
	return nil
}

func (s *playwrightSession) Close() error {
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

// classify maps Playwright errors onto the extractor's taxonomy.
func (s *playwrightSession) classify(op string, err error) error {
	switch {
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%s: %w: %v", op, applicability.ErrWaitTimeout, err)
	case errors.Is(err, playwright.ErrTargetClosed), s.browser != nil && !s.browser.IsConnected():
		return &applicability.SessionError{Op: op, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func trimAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimSpace(t)
	}
	return out
}
