package applicability

import (
	"context"
	"time"
)

// Session is one isolated browser context with a single open page.
// Implementations must return ErrWaitTimeout (wrapped) when a bounded wait
// expires and *SessionError when the browser itself is gone.
type Session interface {
	// Navigate loads url and blocks until the network has been idle or timeout elapses.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Texts returns the trimmed text content of every element matching selector, in DOM order.
	Texts(ctx context.Context, selector string) ([]string, error)
	// Text returns the trimmed text content of the first match or ErrElementNotFound.
	Text(ctx context.Context, selector string) (string, error)
	// ClickNth clicks the i-th (zero based) element matching selector, querying it afresh.
	ClickNth(ctx context.Context, selector string, i int) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// Launcher hands out fresh sessions. Sessions are never shared between calls.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
}

// Selectors locate the parts of the product page the extractor works with.
type Selectors struct {
	ManufacturerTab string `yaml:"manufacturer_tab"`
	Dialog          string `yaml:"dialog"`
	CloseButton     string `yaml:"close_button"`
	Article         string `yaml:"article"`
	Model           string `yaml:"model"`
	Engine          string `yaml:"engine"`
	PowerEngine     string `yaml:"power_engine"`
	ModelYear       string `yaml:"model_year"`
}

// DefaultSelectors match the lynxauto.info product card.
func DefaultSelectors() Selectors {
	return Selectors{
		ManufacturerTab: ".pcard-list-mark-item",
		Dialog:          ".dialog-applicability",
		CloseButton:     ".close_btn.dialog-applicability-close",
		Article:         ".pcard-model",
		Model:           ".la_model",
		Engine:          ".la_engine",
		PowerEngine:     ".la_power_engine",
		ModelYear:       ".la_model_year",
	}
}

// WithDefaults fills every empty selector from DefaultSelectors and keeps the rest.
func (s Selectors) WithDefaults() Selectors {
	def := DefaultSelectors()
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&s.ManufacturerTab, def.ManufacturerTab},
		{&s.Dialog, def.Dialog},
		{&s.CloseButton, def.CloseButton},
		{&s.Article, def.Article},
		{&s.Model, def.Model},
		{&s.Engine, def.Engine},
		{&s.PowerEngine, def.PowerEngine},
		{&s.ModelYear, def.ModelYear},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	return s
}

// Missing returns the names of empty selectors.
func (s Selectors) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"manufacturer_tab", s.ManufacturerTab},
		{"dialog", s.Dialog},
		{"close_button", s.CloseButton},
		{"article", s.Article},
		{"model", s.Model},
		{"engine", s.Engine},
		{"power_engine", s.PowerEngine},
		{"model_year", s.ModelYear},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
