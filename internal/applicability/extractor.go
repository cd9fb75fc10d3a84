package applicability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TabFailurePolicy decides what happens when a single manufacturer tab fails.
type TabFailurePolicy string

const (
	// TabFailureSkip logs the failed tab and continues with the next one.
	TabFailureSkip TabFailurePolicy = "skip"
	// TabFailureAbort stops at the first failed tab and returns an *ExtractionError.
	TabFailureAbort TabFailurePolicy = "abort"
)

// ParseTabFailurePolicy accepts "skip" or "abort".
func ParseTabFailurePolicy(s string) (TabFailurePolicy, error) {
	switch TabFailurePolicy(s) {
	case TabFailureSkip, TabFailureAbort:
		return TabFailurePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown tab failure policy %q", s)
	}
}

type Options struct {
	Selectors         Selectors
	NavigationTimeout time.Duration
	DialogTimeout     time.Duration
	// CloseTimeout bounds the wait for the dialog to disappear after close is clicked.
	CloseTimeout time.Duration
	// SettleDelay is the fixed wait used when the dialog is still reported visible.
	SettleDelay      time.Duration
	TabFailurePolicy TabFailurePolicy
}

func DefaultOptions() Options {
	return Options{
		Selectors:         DefaultSelectors(),
		NavigationTimeout: 60 * time.Second,
		DialogTimeout:     10 * time.Second,
		CloseTimeout:      3 * time.Second,
		SettleDelay:       time.Second,
		TabFailurePolicy:  TabFailureSkip,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	o.Selectors = o.Selectors.WithDefaults()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = def.NavigationTimeout
	}
	if o.DialogTimeout <= 0 {
		o.DialogTimeout = def.DialogTimeout
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = def.CloseTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = def.SettleDelay
	}
	if o.TabFailurePolicy == "" {
		o.TabFailurePolicy = def.TabFailurePolicy
	}
	return o
}

// Extractor walks the manufacturer tabs of a product page and collects the
// fitment data of every applicability dialog. It keeps no state between calls,
// so one Extractor may serve concurrent calls as long as the Launcher does.
type Extractor struct {
	launcher Launcher
	opts     Options
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewExtractor(launcher Launcher, opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		launcher: launcher,
		opts:     opts.withDefaults(),
		logger:   logger.With("component", "extractor"),
		sleep:    sleepContext,
	}
}

// Extract returns the applicability dataset of the product page at targetURL.
// Skipped tabs are only logged.
func (e *Extractor) Extract(ctx context.Context, targetURL string) (Dataset, error) {
	report, err := e.Run(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	return report.Dataset, nil
}

// Run performs one extraction on a fresh session and reports per-tab failures
// alongside the dataset. The session is released exactly once on every path.
// Cancelling ctx tears the session down immediately and no records are returned.
func (e *Extractor) Run(ctx context.Context, targetURL string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := e.launcher.NewSession(ctx)
	if err != nil {
		var sessErr *SessionError
		if errors.As(err, &sessErr) {
			return nil, err
		}
		return nil, &SessionError{Op: "launch", Err: err}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := sess.Close(); err != nil {
				e.logger.Warn("failed to close browser session", "url", targetURL, "error", err)
			}
		})
	}
	stop := context.AfterFunc(ctx, release)
	defer func() {
		stop()
		release()
	}()

	report, err := e.run(ctx, sess, targetURL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("extraction of %s cancelled: %w", targetURL, ctxErr)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Extractor) run(ctx context.Context, sess Session, targetURL string) (*Report, error) {
	logger := e.logger.With("url", targetURL)
	sel := e.opts.Selectors

	if err := sess.Navigate(ctx, targetURL, e.opts.NavigationTimeout); err != nil {
		var sessErr *SessionError
		if errors.As(err, &sessErr) {
			return nil, err
		}
		return nil, &NavigationError{URL: targetURL, Err: err}
	}

	names, err := sess.Texts(ctx, sel.ManufacturerTab)
	if err != nil {
		return nil, asSessionError("enumerate manufacturers", err)
	}

	report := &Report{
		URL:           targetURL,
		Manufacturers: make([]Manufacturer, len(names)),
		Dataset:       make(Dataset, 0, len(names)),
	}
	for i, name := range names {
		report.Manufacturers[i] = Manufacturer{Index: i, Name: name}
	}

	if len(names) == 0 {
		logger.Info("no manufacturer tabs found")
		return report, nil
	}

	logger.Info("extracting applicability", "manufacturers", len(names))

	for _, m := range report.Manufacturers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := e.extractTab(ctx, sess, m, logger)
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}

			tabErr := &TabError{Manufacturer: m, Err: err}
			report.Failures = append(report.Failures, tabErr)
			logger.Warn("manufacturer skipped",
				"manufacturer", m.Name,
				"index", m.Index,
				"error", err)

			if e.opts.TabFailurePolicy == TabFailureAbort {
				return nil, &ExtractionError{URL: targetURL, Tab: tabErr}
			}
			continue
		}

		report.Dataset = append(report.Dataset, *rec)
		logger.Debug("manufacturer extracted",
			"manufacturer", m.Name,
			"article", rec.Article,
			"rows", rec.Rows())
	}

	logger.Info("extraction finished",
		"manufacturers", len(report.Manufacturers),
		"records", len(report.Dataset),
		"skipped", len(report.Failures))

	return report, nil
}

// extractTab runs one open, read, close cycle of the dialog.
func (e *Extractor) extractTab(ctx context.Context, sess Session, m Manufacturer, logger *slog.Logger) (*Record, error) {
	sel := e.opts.Selectors

	if err := sess.ClickNth(ctx, sel.ManufacturerTab, m.Index); err != nil {
		if errors.Is(err, ErrElementNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrTabMissing, err)
		}
		return nil, fmt.Errorf("click tab: %w", err)
	}

	if err := sess.WaitVisible(ctx, sel.Dialog, e.opts.DialogTimeout); err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrTabInteractionTimeout, err)
		}
		return nil, fmt.Errorf("wait for dialog: %w", err)
	}

	rec, err := e.readDialog(ctx, sess, m)

	// The dialog is a singleton; it has to be gone before the next tab is clicked.
	if closeErr := e.closeDialog(ctx, sess, logger); closeErr != nil && IsFatal(closeErr) {
		return nil, closeErr
	}

	return rec, err
}

func (e *Extractor) readDialog(ctx context.Context, sess Session, m Manufacturer) (*Record, error) {
	sel := e.opts.Selectors
	rec := &Record{Manufacturer: m.Name}

	fields := []struct {
		selector string
		dst      *[]string
	}{
		{sel.Model, &rec.Models},
		{sel.Engine, &rec.Engines},
		{sel.PowerEngine, &rec.PowerEngines},
		{sel.ModelYear, &rec.ModelYears},
	}
	for _, f := range fields {
		texts, err := sess.Texts(ctx, f.selector)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.selector, err)
		}
		if texts == nil {
			texts = []string{}
		}
		*f.dst = texts
	}

	article, err := sess.Text(ctx, sel.Article)
	if err != nil {
		if errors.Is(err, ErrElementNotFound) {
			return nil, ErrMissingArticle
		}
		return nil, fmt.Errorf("read article: %w", err)
	}
	if article == "" {
		return nil, ErrMissingArticle
	}
	rec.Article = article

	return rec, nil
}

// closeDialog clicks the close control and waits until the dialog is hidden.
// The close animation has no completion event, so when the hidden state cannot
// be observed within CloseTimeout the fixed SettleDelay is waited instead.
func (e *Extractor) closeDialog(ctx context.Context, sess Session, logger *slog.Logger) error {
	sel := e.opts.Selectors

	if err := sess.Click(ctx, sel.CloseButton); err != nil {
		if IsFatal(err) {
			return err
		}
		logger.Warn("failed to click dialog close control", "error", err)
	}

	if err := sess.WaitHidden(ctx, sel.Dialog, e.opts.CloseTimeout); err != nil {
		if IsFatal(err) {
			return err
		}
		logger.Debug("dialog still visible, falling back to settle delay",
			"delay", e.opts.SettleDelay,
			"error", err)
		return e.sleep(ctx, e.opts.SettleDelay)
	}

	return nil
}

func asSessionError(op string, err error) error {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return err
	}
	return &SessionError{Op: op, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
