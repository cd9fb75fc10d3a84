package applicability

import (
	"errors"
	"fmt"
)

var (
	// ErrTabInteractionTimeout is reported when a manufacturer dialog does not become visible in time.
	ErrTabInteractionTimeout = errors.New("applicability dialog did not appear")
	// ErrMissingArticle is reported when the dialog opened but carries no article.
	ErrMissingArticle = errors.New("article element missing")
	// ErrTabMissing is reported when the tab list shrank between enumeration and click.
	ErrTabMissing = errors.New("manufacturer tab disappeared")

	// ErrWaitTimeout and ErrElementNotFound are returned by Session implementations.
	ErrWaitTimeout     = errors.New("wait timed out")
	ErrElementNotFound = errors.New("element not found")
)

// NavigationError means the product page never reached a settled state.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// SessionError means the browser or page crashed or disconnected.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session failed during %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// TabError is the failure of a single manufacturer tab.
type TabError struct {
	Manufacturer Manufacturer
	Err          error
}

func (e *TabError) Error() string {
	return fmt.Sprintf("manufacturer %q (tab %d): %v", e.Manufacturer.Name, e.Manufacturer.Index, e.Err)
}

func (e *TabError) Unwrap() error { return e.Err }

// ExtractionError is returned under TabFailureAbort when a tab fails.
type ExtractionError struct {
	URL string
	Tab *TabError
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction of %s aborted: %v", e.URL, e.Tab)
}

func (e *ExtractionError) Unwrap() error { return e.Tab }

// IsFatal reports whether err ends a whole extraction call.
func IsFatal(err error) bool {
	var navErr *NavigationError
	var sessErr *SessionError
	return errors.As(err, &navErr) || errors.As(err, &sessErr)
}
