package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/platform/httpx"
	"github.com/kiosko/pos/internal/repositories"
)

const (
	defaultProductLimit = 25
	maxProductLimit     = 100

	// Scan guns fire bursts; the per-register limit only catches runaways.
	searchRateLimit  = 30
	searchRateWindow = time.Second
)

// ProductHandlers exposes read-only catalog endpoints for the register UI.
type ProductHandlers struct {
	products repositories.ProductRepository
	limiter  rateLimiter
}

// NewProductHandlers constructs catalog handlers.
func NewProductHandlers(products repositories.ProductRepository) *ProductHandlers {
	return &ProductHandlers{
		products: products,
		limiter:  newSimpleRateLimiter(searchRateLimit, searchRateWindow, nil),
	}
}

// Routes registers catalog endpoints under the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/search", h.searchProducts)
}

type productPayload struct {
	ID      string `json:"id"`
	Barcode string `json:"barcode,omitempty"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	Stock   int    `json:"stock"`
	Active  bool   `json:"active"`
}

type productListPayload struct {
	Products []productPayload `json:"products"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}

	filter, ok := h.filterFromQuery(ctx, w, r)
	if !ok {
		return
	}

	products, err := h.products.List(ctx, filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productListPayloadFrom(products))
}

func (h *ProductHandlers) searchProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(strings.TrimSpace(r.Header.Get(registerHeader))) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many catalog searches", http.StatusTooManyRequests))
		return
	}

	filter, ok := h.filterFromQuery(ctx, w, r)
	if !ok {
		return
	}
	filter.Term = strings.TrimSpace(r.URL.Query().Get("q"))
	if filter.Term == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "query parameter q is required", http.StatusBadRequest))
		return
	}

	products, err := h.products.Search(ctx, filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productListPayloadFrom(products))
}

func (h *ProductHandlers) filterFromQuery(ctx context.Context, w http.ResponseWriter, r *http.Request) (repositories.ProductSearchFilter, bool) {
	query := r.URL.Query()

	filter := repositories.ProductSearchFilter{
		ActiveOnly: true,
		Limit:      defaultProductLimit,
	}
	if value := strings.TrimSpace(query.Get("includeInactive")); value != "" {
		include, err := strconv.ParseBool(value)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "includeInactive must be a boolean", http.StatusBadRequest))
			return repositories.ProductSearchFilter{}, false
		}
		filter.ActiveOnly = !include
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return repositories.ProductSearchFilter{}, false
		}
		if limit > maxProductLimit {
			limit = maxProductLimit
		}
		filter.Limit = limit
	}
	return filter, true
}

func productListPayloadFrom(products []domain.Product) productListPayload {
	payload := productListPayload{Products: make([]productPayload, 0, len(products))}
	for _, product := range products {
		payload.Products = append(payload.Products, productPayload{
			ID:      product.ID,
			Barcode: product.Barcode,
			Name:    product.Name,
			Price:   product.Price.String(),
			Stock:   product.Stock,
			Active:  product.Active,
		})
	}
	return payload
}

func (h *ProductHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	var productErr *repositories.ProductError
	if errors.As(err, &productErr) {
		switch productErr.Code {
		case repositories.ProductErrorInvalidInput:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", productErr.Message, http.StatusBadRequest))
			return
		case repositories.ProductErrorNotFound:
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product does not exist", http.StatusNotFound))
			return
		case repositories.ProductErrorUnavailable:
			httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "the catalog store is unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "the catalog request could not be processed", http.StatusInternalServerError))
}
