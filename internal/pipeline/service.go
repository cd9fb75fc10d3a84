package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/maltedev/applicability-scraper/internal/applicability"
	"github.com/maltedev/applicability-scraper/internal/events"
	"github.com/maltedev/applicability-scraper/internal/ozon"
)

var ErrInvalidURL = errors.New("url must be an absolute http(s) url")

type Extractor interface {
	Extract(ctx context.Context, targetURL string) (applicability.Dataset, error)
}

type Uploader interface {
	Upload(ctx context.Context, listings []ozon.Listing, batchSize int) []ozon.BatchResult
}

type ListingWriter interface {
	Append(ctx context.Context, listings []ozon.Listing) error
}

type ImageFetcher interface {
	DownloadAll(ctx context.Context, articles []string) int
}

// Service runs the create-products flow: extract, transform, upload,
// persist, announce.
type Service struct {
	extractor   Extractor
	transformer *ozon.Transformer
	uploader    Uploader
	store       ListingWriter
	publisher   events.Publisher
	images      ImageFetcher
	batchSize   int
	logger      *slog.Logger
}

type Config struct {
	Extractor   Extractor
	Transformer *ozon.Transformer
	Uploader    Uploader
	Store       ListingWriter
	Publisher   events.Publisher
	// Images is optional.
	Images    ImageFetcher
	BatchSize int
	Logger    *slog.Logger
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		extractor:   cfg.Extractor,
		transformer: cfg.Transformer,
		uploader:    cfg.Uploader,
		store:       cfg.Store,
		publisher:   publisher,
		images:      cfg.Images,
		batchSize:   cfg.BatchSize,
		logger:      logger.With("component", "pipeline"),
	}
}

// ValidateURL accepts absolute http and https urls only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

// CreateProducts extracts the applicability dataset of targetURL and uploads
// the first limit listings (all when limit is not positive). Nothing is
// persisted unless every batch was accepted.
func (s *Service) CreateProducts(ctx context.Context, targetURL string, limit int) ([]ozon.Listing, error) {
	if err := ValidateURL(targetURL); err != nil {
		return nil, err
	}

	s.logger.Info("create products", "url", targetURL, "limit", limit)

	dataset, err := s.extractor.Extract(ctx, targetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract applicability: %w", err)
	}

	listings := s.transformer.Transform(dataset)
	if limit > 0 && limit < len(listings) {
		listings = listings[:limit]
	}
	if len(listings) == 0 {
		s.logger.Info("nothing to upload", "url", targetURL, "records", len(dataset))
		return listings, nil
	}

	results := s.uploader.Upload(ctx, listings, s.batchSize)
	if err := ozon.FirstError(results); err != nil {
		return nil, fmt.Errorf("failed to upload listings: %w", err)
	}

	if err := s.store.Append(ctx, listings); err != nil {
		return nil, fmt.Errorf("failed to persist listings: %w", err)
	}

	articles := uniqueArticles(listings)
	event := events.UploadedEvent{
		SourceURL: targetURL,
		OfferIDs:  offerIDs(listings),
		Articles:  articles,
		TaskIDs:   taskIDs(results),
	}
	if err := s.publisher.PublishUploaded(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "url", targetURL, "error", err)
	}

	if s.images != nil {
		saved := s.images.DownloadAll(ctx, articles)
		s.logger.Info("images downloaded", "saved", saved, "articles", len(articles))
	}

	s.logger.Info("products uploaded", "url", targetURL, "count", len(listings))
	return listings, nil
}

func offerIDs(listings []ozon.Listing) []string {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.OfferID
	}
	return ids
}

func uniqueArticles(listings []ozon.Listing) []string {
	seen := make(map[string]bool)
	var articles []string
	for _, l := range listings {
		a := l.Article()
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		articles = append(articles, a)
	}
	return articles
}

func taskIDs(results []ozon.BatchResult) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.TaskID)
	}
	return ids
}
