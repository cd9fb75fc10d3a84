package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/applicability-scraper/internal/applicability"
	"github.com/maltedev/applicability-scraper/internal/catalog"
	"github.com/maltedev/applicability-scraper/internal/ozon"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateProducts(ctx context.Context, targetURL string, limit int) ([]ozon.Listing, error) {
	args := m.Called(ctx, targetURL, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ozon.Listing), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context, search string) ([]ozon.Listing, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ozon.Listing), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, offerID string) error {
	return m.Called(ctx, offerID).Error(0)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Lookup(ctx context.Context, article string) (*catalog.LookupResult, error) {
	args := m.Called(ctx, article)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.LookupResult), args.Error(1)
}

type testServer struct {
	creator *MockCreator
	store   *MockStore
	lookup  *MockLookup
	handler http.Handler
}

func newTestServer() *testServer {
	s := &testServer{
		creator: new(MockCreator),
		store:   new(MockStore),
		lookup:  new(MockLookup),
	}
	h := NewHandlers(s.creator, s.store, s.lookup, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.handler = NewRouter(h, RouterConfig{})
	return s
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func sampleListings() []ozon.Listing {
	return ozon.NewTransformer(ozon.ListingDefaults{Brand: "LYNXAuto"}).Transform(applicability.Dataset{
		{Manufacturer: "BMW", Article: "L1", Models: []string{"X3"}},
	})
}

const productURL = "https://lynxauto.info/product/L1"

func TestCreateProducts(t *testing.T) {
	s := newTestServer()
	s.creator.On("CreateProducts", mock.Anything, productURL, 5).Return(sampleListings(), nil)

	rec := s.do(http.MethodPost, "/api/create-products", `{"url":"`+productURL+`","limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp CreateProductsResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Products uploaded successfully!", resp.Message)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "L1_0", resp.Products[0].OfferID)
	s.creator.AssertExpectations(t)
}

func TestCreateProductsBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"url":`},
		{"missing url", `{"limit":1}`},
		{"relative url", `{"url":"/product/L1"}`},
		{"unsupported scheme", `{"url":"ftp://lynxauto.info/x"}`},
		{"negative limit", `{"url":"` + productURL + `","limit":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			rec := s.do(http.MethodPost, "/api/create-products", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp["error"])
			s.creator.AssertNotCalled(t, "CreateProducts", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateProductsFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			"navigation failure",
			fmt.Errorf("failed to extract applicability: %w", &applicability.NavigationError{URL: productURL, Err: errors.New("timeout")}),
			http.StatusBadGateway,
		},
		{
			"session failure",
			&applicability.SessionError{Op: "launch", Err: errors.New("no chromium")},
			http.StatusBadGateway,
		},
		{
			"upload failure",
			errors.New("failed to upload listings: batch 0 (1 items): ozon api: status 400"),
			http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.creator.On("CreateProducts", mock.Anything, productURL, 0).Return(nil, tt.err)

			rec := s.do(http.MethodPost, "/api/create-products", `{"url":"`+productURL+`"}`)
			assert.Equal(t, tt.status, rec.Code)

			var resp map[string]string
			decode(t, rec, &resp)
			assert.Equal(t, "Failed to upload products", resp["message"])
			assert.Equal(t, tt.err.Error(), resp["error"])
		})
	}
}

func TestListProducts(t *testing.T) {
	s := newTestServer()
	s.store.On("List", mock.Anything, "bmw").Return(sampleListings(), nil)

	rec := s.do(http.MethodGet, "/api/products?search=bmw", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listings []ozon.Listing
	decode(t, rec, &listings)
	assert.Len(t, listings, 1)
	s.store.AssertExpectations(t)
}

func TestListProductsError(t *testing.T) {
	s := newTestServer()
	s.store.On("List", mock.Anything, "").Return(nil, errors.New("read failed"))

	rec := s.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListCategories(t *testing.T) {
	s := newTestServer()
	rec := s.do(http.MethodGet, "/api/categories", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteProduct(t *testing.T) {
	s := newTestServer()
	s.store.On("Delete", mock.Anything, "L1_0").Return(nil)

	rec := s.do(http.MethodDelete, "/api/products/L1_0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Product deleted successfully"}`, rec.Body.String())
	s.store.AssertExpectations(t)
}

func TestDeleteProductError(t *testing.T) {
	s := newTestServer()
	s.store.On("Delete", mock.Anything, "L1_0").Return(errors.New("write failed"))

	rec := s.do(http.MethodDelete, "/api/products/L1_0", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLookupArticle(t *testing.T) {
	s := newTestServer()
	s.lookup.On("Lookup", mock.Anything, "BC-2044").Return(&catalog.LookupResult{
		Article: "BC-2044",
		Product: catalog.ProductInfo{Name: "Лампа H7", ImageURL: "https://lynxauto.info/image/BC-2044.jpg"},
		Compatibility: []catalog.CompatibilityRow{
			{Manufacturer: "BMW", Model: "X3", Modification: "2.0d"},
		},
	}, nil)

	rec := s.do(http.MethodGet, "/api/lookup/BC-2044", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res catalog.LookupResult
	decode(t, rec, &res)
	assert.Equal(t, "Лампа H7", res.Product.Name)
	assert.Len(t, res.Compatibility, 1)
}

func TestLookupArticleErrors(t *testing.T) {
	s := newTestServer()
	s.lookup.On("Lookup", mock.Anything, "NOPE").Return(nil, fmt.Errorf("article NOPE: %w", catalog.ErrProductNotFound))
	s.lookup.On("Lookup", mock.Anything, "DOWN").Return(nil, errors.New("status 503"))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/lookup/NOPE", "").Code)
	assert.Equal(t, http.StatusBadGateway, s.do(http.MethodGet, "/api/lookup/DOWN", "").Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	rec := s.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
