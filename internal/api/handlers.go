package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/applicability-scraper/internal/applicability"
	"github.com/maltedev/applicability-scraper/internal/catalog"
	"github.com/maltedev/applicability-scraper/internal/ozon"
	"github.com/maltedev/applicability-scraper/internal/pipeline"
)

type ProductCreator interface {
	CreateProducts(ctx context.Context, targetURL string, limit int) ([]ozon.Listing, error)
}

type ListingStore interface {
	List(ctx context.Context, search string) ([]ozon.Listing, error)
	Delete(ctx context.Context, offerID string) error
}

type ArticleLookup interface {
	Lookup(ctx context.Context, article string) (*catalog.LookupResult, error)
}

type Handlers struct {
	creator ProductCreator
	store   ListingStore
	catalog ArticleLookup
	logger  *slog.Logger
}

func NewHandlers(creator ProductCreator, store ListingStore, lookup ArticleLookup, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		creator: creator,
		store:   store,
		catalog: lookup,
		logger:  logger.With("component", "api"),
	}
}

// CreateProductsRequest asks for the applicability of one product page to be
// uploaded as listings. A zero limit uploads everything.
type CreateProductsRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
}

type CreateProductsResponse struct {
	Message  string         `json:"message"`
	Products []ozon.Listing `json:"products"`
}

// CreateProducts handles POST /api/create-products
func (h *Handlers) CreateProducts(w http.ResponseWriter, r *http.Request) {
	var req CreateProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := pipeline.ValidateURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Limit < 0 {
		h.respondError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}

	h.logger.Info("create products requested", "url", req.URL, "limit", req.Limit)

	products, err := h.creator.CreateProducts(r.Context(), req.URL, req.Limit)
	if err != nil {
		status := createStatus(err)
		h.logger.Error("failed to create products", "url", req.URL, "status", status, "error", err)
		h.respondJSON(w, status, map[string]string{
			"message": "Failed to upload products",
			"error":   err.Error(),
		})
		return
	}

	h.respondJSON(w, http.StatusOK, CreateProductsResponse{
		Message:  "Products uploaded successfully!",
		Products: products,
	})
}

func createStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidURL):
		return http.StatusBadRequest
	case applicability.IsFatal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ListProducts handles GET /api/products
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

// ListCategories handles GET /api/categories. No categories are tracked yet.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, []string{})
}

// DeleteProduct handles DELETE /api/products/{guid}
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "guid")
	if offerID == "" {
		h.respondError(w, http.StatusBadRequest, "product id is required")
		return
	}

	if err := h.store.Delete(r.Context(), offerID); err != nil {
		h.logger.Error("failed to delete product", "offer_id", offerID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// LookupArticle handles GET /api/lookup/{article}
func (h *Handlers) LookupArticle(w http.ResponseWriter, r *http.Request) {
	article := strings.TrimSpace(chi.URLParam(r, "article"))
	if article == "" {
		h.respondError(w, http.StatusBadRequest, "article is required")
		return
	}

	res, err := h.catalog.Lookup(r.Context(), article)
	if errors.Is(err, catalog.ErrProductNotFound) {
		h.respondError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to look up article", "article", article, "error", err)
		h.respondError(w, http.StatusBadGateway, "catalog lookup failed")
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
