package ozon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const importPath = "/v3/product/import"

// ErrCredentialsMissing is returned when the seller credentials are not set.
var ErrCredentialsMissing = errors.New("ozon credentials are not configured")

// APIError is a non-2xx answer from the seller API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ozon api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ozon api: status %d", e.StatusCode)
}

// BatchResult reports the outcome of one import request.
type BatchResult struct {
	Index  int
	Count  int
	TaskID int64
	Err    error
}

type ClientConfig struct {
	BaseURL        string
	ClientID       string
	APIKey         string
	RequestsPerSec float64
	Timeout        time.Duration
}

type Client struct {
	baseURL  string
	clientID string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With("component", "ozon"),
	}
}

// Upload sends listings in batches of batchSize (all at once when batchSize
// is not positive) and reports every batch. Batches after a cancelled
// context are reported with the context error.
func (c *Client) Upload(ctx context.Context, listings []Listing, batchSize int) []BatchResult {
	if len(listings) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(listings)
	}

	var results []BatchResult
	for start, index := 0, 0; start < len(listings); start, index = start+batchSize, index+1 {
		end := min(start+batchSize, len(listings))
		batch := listings[start:end]

		res := BatchResult{Index: index, Count: len(batch)}
		res.TaskID, res.Err = c.importBatch(ctx, batch)
		if res.Err != nil {
			c.logger.Error("batch upload failed", "batch", index, "count", len(batch), "error", res.Err)
		} else {
			c.logger.Info("batch uploaded", "batch", index, "count", len(batch), "task_id", res.TaskID)
		}
		results = append(results, res)
	}
	return results
}

func (c *Client) importBatch(ctx context.Context, batch []Listing) (int64, error) {
	if c.clientID == "" || c.apiKey == "" {
		return 0, ErrCredentialsMissing
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	body, err := json.Marshal(map[string]any{"items": batch})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal items: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+importPath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("import request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return 0, apiErr
	}

	var out struct {
		Result struct {
			TaskID int64 `json:"task_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Result.TaskID, nil
}

// FirstError returns the first failed batch as an error, or nil.
func FirstError(results []BatchResult) error {
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("batch %d (%d items): %w", r.Index, r.Count, r.Err)
		}
	}
	return nil
}
