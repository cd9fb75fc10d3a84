package browser

import (
	"fmt"

	"github.com/maltedev/applicability-scraper/internal/applicability"
)

const (
	EnginePlaywright = "playwright"
	EngineRod        = "rod"
)

// Engine is a running browser that hands out isolated sessions.
type Engine interface {
	applicability.Launcher
	Close() error
}

// Launch starts the named browser engine.
func Launch(engine string, opts *Options) (Engine, error) {
	switch engine {
	case EnginePlaywright, "":
		return New(opts)
	case EngineRod:
		return NewRod(opts)
	default:
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
}
