package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LookupResult is everything the catalog knows about one article.
type LookupResult struct {
	Article       string             `json:"article"`
	Product       ProductInfo        `json:"product"`
	Compatibility []CompatibilityRow `json:"compatibility"`
}

// Client looks articles up on the parts catalog site.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "catalog"),
	}
}

// Lookup searches the catalog for article and, when the product card links
// to a compatibility page, reads that page too.
func (c *Client) Lookup(ctx context.Context, article string) (*LookupResult, error) {
	article = strings.TrimSpace(article)
	if article == "" {
		return nil, ErrProductNotFound
	}

	searchURL := c.baseURL + "/index.php?" + url.Values{
		"route":  {"product/search"},
		"search": {article},
	}.Encode()

	html, err := c.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	info, err := ParseProductInfo(html)
	if err != nil {
		return nil, fmt.Errorf("article %s: %w", article, err)
	}
	info.ImageURL = resolve(searchURL, info.ImageURL)
	info.CompatibilityLink = resolve(searchURL, info.CompatibilityLink)

	result := &LookupResult{
		Article:       article,
		Product:       *info,
		Compatibility: []CompatibilityRow{},
	}

	if info.CompatibilityLink == "" {
		c.logger.Info("no compatibility link", "article", article)
		return result, nil
	}

	html, err = c.fetch(ctx, info.CompatibilityLink)
	if err != nil {
		return nil, err
	}
	result.Compatibility, err = ParseCompatibility(html)
	if err != nil {
		return nil, err
	}

	c.logger.Info("article looked up", "article", article, "compatibility_rows", len(result.Compatibility))
	return result, nil
}

func (c *Client) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	return string(body), nil
}

func resolve(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
