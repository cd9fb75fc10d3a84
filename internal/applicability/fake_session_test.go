package applicability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fakeTab struct {
	name         string
	noDialog     bool
	article      string
	noArticle    bool
	models       []string
	engines      []string
	powerEngines []string
	modelYears   []string
}

// fakeSession models the product page: a tab list and a singleton dialog.
type fakeSession struct {
	mu  sync.Mutex
	sel Selectors

	tabs        []fakeTab
	visibleTabs int // tabs still clickable; defaults to len(tabs)
	navErr      error
	sessionErr  map[int]error // ClickNth failure per tab index
	stuckDialog bool          // dialog never reports hidden
	blockNav    bool          // Navigate blocks until Close

	open        int // index of the open dialog, -1 when closed
	clicks      []int
	dialogOpens int
	violations  int // tab clicked while a dialog was still open
	closeCalls  int
	closed      chan struct{}
}

func newFakeSession(tabs ...fakeTab) *fakeSession {
	return &fakeSession{
		sel:         DefaultSelectors(),
		tabs:        tabs,
		visibleTabs: len(tabs),
		open:        -1,
		closed:      make(chan struct{}),
	}
}

func (f *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if f.blockNav {
		<-f.closed
		return &SessionError{Op: "navigate", Err: fmt.Errorf("target closed")}
	}
	return f.navErr
}

func (f *fakeSession) Texts(ctx context.Context, selector string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if selector == f.sel.ManufacturerTab {
		names := make([]string, 0, len(f.tabs))
		for _, t := range f.tabs {
			names = append(names, t.name)
		}
		return names, nil
	}

	if f.open < 0 {
		return nil, nil
	}
	tab := f.tabs[f.open]
	switch selector {
	case f.sel.Model:
		return tab.models, nil
	case f.sel.Engine:
		return tab.engines, nil
	case f.sel.PowerEngine:
		return tab.powerEngines, nil
	case f.sel.ModelYear:
		return tab.modelYears, nil
	}
	return nil, nil
}

func (f *fakeSession) Text(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if selector != f.sel.Article || f.open < 0 || f.tabs[f.open].noArticle {
		return "", fmt.Errorf("%s: %w", selector, ErrElementNotFound)
	}
	return f.tabs[f.open].article, nil
}

func (f *fakeSession) ClickNth(ctx context.Context, selector string, i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.sessionErr[i]; ok {
		return err
	}
	if i >= f.visibleTabs {
		return fmt.Errorf("%s[%d]: %w", selector, i, ErrElementNotFound)
	}
	if f.open >= 0 {
		f.violations++
	}
	f.clicks = append(f.clicks, i)
	if !f.tabs[i].noDialog {
		f.open = i
		f.dialogOpens++
	}
	return nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if selector == f.sel.CloseButton && f.open >= 0 && !f.stuckDialog {
		f.open = -1
	}
	return nil
}

func (f *fakeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open < 0 {
		return fmt.Errorf("%s visible: %w", selector, ErrWaitTimeout)
	}
	return nil
}

func (f *fakeSession) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stuckDialog && f.open >= 0 {
		// the animation finishes while the extractor sleeps
		f.open = -1
		return fmt.Errorf("%s hidden: %w", selector, ErrWaitTimeout)
	}
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closeCalls++
	if f.closeCalls == 1 {
		close(f.closed)
	}
	return nil
}

func (f *fakeSession) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// fakeLauncher hands out a fresh copy of the page model per session.
type fakeLauncher struct {
	mu       sync.Mutex
	build    func() *fakeSession
	sessions []*fakeSession
	err      error
}

func (l *fakeLauncher) NewSession(ctx context.Context) (Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	s := l.build()
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

func (l *fakeLauncher) last() *fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions[len(l.sessions)-1]
}
