package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/maltedev/applicability-scraper/internal/ozon"
)

// Store persists uploaded listings keyed by offer id. Appending a listing
// whose offer id is already stored replaces it in place.
type Store interface {
	List(ctx context.Context, search string) ([]ozon.Listing, error)
	Append(ctx context.Context, listings []ozon.Listing) error
	Delete(ctx context.Context, offerID string) error
	Close() error
}

type Config struct {
	Driver   string
	FilePath string
	DSN      string
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "file", "":
		return NewFileStore(cfg.FilePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Matches reports whether the listing name or part number contains search,
// ignoring case. An empty search matches everything.
func Matches(l ozon.Listing, search string) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(l.Name), q) ||
		strings.Contains(strings.ToLower(l.Article()), q)
}

func filter(listings []ozon.Listing, search string) []ozon.Listing {
	out := make([]ozon.Listing, 0, len(listings))
	for _, l := range listings {
		if Matches(l, search) {
			out = append(out, l)
		}
	}
	return out
}
