package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/platform/httpx"
	"github.com/kiosko/pos/internal/repositories"
	"github.com/kiosko/pos/internal/services"
)

const (
	maxSaleRequestBody = 16 * 1024
	registerHeader     = "X-Register-ID"
	defaultSaleLimit   = 50
	maxSaleLimit       = 200
)

// SaleHandlers exposes the sale commit and lookup endpoints.
type SaleHandlers struct {
	carts    services.CartService
	checkout services.CheckoutService
}

// NewSaleHandlers constructs sale handlers.
func NewSaleHandlers(carts services.CartService, checkout services.CheckoutService) *SaleHandlers {
	return &SaleHandlers{
		carts:    carts,
		checkout: checkout,
	}
}

// Routes registers sale endpoints under the provided router.
func (h *SaleHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.commitSale)
	r.Get("/", h.listSales)
	r.Get("/{saleID}", h.getSale)
}

type saleItemInput struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	Quantity  int    `json:"quantity"`
}

type commitSaleRequest struct {
	Items           []saleItemInput `json:"items"`
	DiscountPercent float64         `json:"discountPercent"`
	Method          string          `json:"method"`
	Tendered        string          `json:"tendered"`
	PointOfSaleID   string          `json:"pointOfSaleId"`
	AllowShortfall  bool            `json:"allowShortfall"`
}

type saleLinePayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

type paymentPayload struct {
	Method   string `json:"method"`
	Tendered string `json:"tendered"`
	Change   string `json:"change"`
}

type salePayload struct {
	ID              string            `json:"id"`
	Number          int64             `json:"number"`
	Timestamp       string            `json:"timestamp"`
	Total           string            `json:"total"`
	DiscountPercent float64           `json:"discountPercent"`
	Method          string            `json:"method"`
	PointOfSaleID   string            `json:"pointOfSaleId"`
	Lines           []saleLinePayload `json:"lines,omitempty"`
	Payment         *paymentPayload   `json:"payment,omitempty"`
}

type saleListPayload struct {
	Sales []salePayload `json:"sales"`
}

func (h *SaleHandlers) commitSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil || h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sales_unavailable", "sale service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxSaleRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req commitSaleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
		return
	}

	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_payment_method", "method must be one of CASH, DEBIT_CARD, CREDIT_CARD, TRANSFER", http.StatusBadRequest))
		return
	}

	tendered := domain.Money{}
	if value := strings.TrimSpace(req.Tendered); value != "" {
		tendered, err = domain.ParseMoney(value)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_amount", "tendered must be a decimal amount", http.StatusBadRequest))
			return
		}
	}

	inputs := make([]services.CartItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		inputs = append(inputs, services.CartItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Barcode:   strings.TrimSpace(item.Barcode),
			Quantity:  item.Quantity,
		})
	}

	cart, err := h.carts.BuildCart(ctx, inputs)
	if err != nil {
		h.writeSaleError(ctx, w, err)
		return
	}

	pointOfSale := strings.TrimSpace(req.PointOfSaleID)
	if pointOfSale == "" {
		pointOfSale = strings.TrimSpace(r.Header.Get(registerHeader))
	}

	result, err := h.checkout.Commit(ctx, services.CheckoutRequest{
		Cart:            cart,
		DiscountPercent: req.DiscountPercent,
		Method:          method,
		Tendered:        tendered,
		PointOfSaleID:   pointOfSale,
		AllowShortfall:  req.AllowShortfall,
	})
	if err != nil {
		h.writeSaleError(ctx, w, err)
		return
	}

	payload := salePayloadFrom(result.Sale, result.Lines)
	payload.Payment = &paymentPayload{
		Method:   string(result.Payment.Method),
		Tendered: result.Payment.Tendered.String(),
		Change:   result.Payment.Change.String(),
	}

	writeJSONResponse(w, http.StatusCreated, payload)
}

func (h *SaleHandlers) getSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sales_unavailable", "sale service unavailable", http.StatusServiceUnavailable))
		return
	}

	saleID := strings.TrimSpace(chi.URLParam(r, "saleID"))
	if saleID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sale id is required", http.StatusBadRequest))
		return
	}

	sale, lines, err := h.checkout.FindSale(ctx, saleID)
	if err != nil {
		h.writeSaleError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, salePayloadFrom(sale, lines))
}

func (h *SaleHandlers) listSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("sales_unavailable", "sale service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()

	var from, to time.Time
	var err error
	if value := strings.TrimSpace(query.Get("from")); value != "" {
		from, err = time.Parse(time.RFC3339, value)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
	}
	if value := strings.TrimSpace(query.Get("to")); value != "" {
		to, err = time.Parse(time.RFC3339, value)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
	}

	limit := defaultSaleLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err = strconv.Atoi(value)
		if err != nil || limit <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		if limit > maxSaleLimit {
			limit = maxSaleLimit
		}
	}

	sales, err := h.checkout.ListRecentSales(ctx, from, to, limit)
	if err != nil {
		h.writeSaleError(ctx, w, err)
		return
	}

	payload := saleListPayload{Sales: make([]salePayload, 0, len(sales))}
	for _, sale := range sales {
		payload.Sales = append(payload.Sales, salePayloadFrom(sale, nil))
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func salePayloadFrom(sale domain.Sale, lines []domain.SaleLine) salePayload {
	payload := salePayload{
		ID:              sale.ID,
		Number:          sale.Number,
		Timestamp:       sale.Timestamp.UTC().Format(time.RFC3339Nano),
		Total:           sale.Total.String(),
		DiscountPercent: sale.DiscountPercent,
		Method:          string(sale.Method),
		PointOfSaleID:   sale.PointOfSaleID,
	}
	for _, line := range lines {
		payload.Lines = append(payload.Lines, saleLinePayload{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			Subtotal:  line.Subtotal.String(),
		})
	}
	return payload
}

func (h *SaleHandlers) writeSaleError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrEmptyCartInput), errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", "quantities must be positive", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidDiscount):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_discount", "discountPercent must be between 0 and 100", http.StatusBadRequest))
	case errors.Is(err, domain.ErrUnknownPaymentMethod):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_payment_method", "payment method is not supported", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidTender):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tender", "tendered amount must not be negative", http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "one or more products do not exist", http.StatusNotFound))
	case errors.Is(err, services.ErrInactiveProduct):
		httpx.WriteError(ctx, w, httpx.NewError("product_inactive", "one or more products are inactive", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInsufficientPayment):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_payment", "tendered amount does not cover the total", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInsufficientStock):
		details := map[string]any{}
		if shortfalls := services.ShortfallsFromError(err); len(shortfalls) > 0 {
			entries := make([]map[string]any, 0, len(shortfalls))
			for _, s := range shortfalls {
				entries = append(entries, map[string]any{
					"productId": s.ProductID,
					"name":      s.Name,
					"requested": s.Requested,
					"available": s.Available,
				})
			}
			details["shortfalls"] = entries
		}
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "stock does not cover the requested quantities", http.StatusConflict).WithDetails(details))
	default:
		h.writeStoreError(ctx, w, err)
	}
}

func (h *SaleHandlers) writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	var saleErr *repositories.SaleError
	if errors.As(err, &saleErr) {
		switch saleErr.Code {
		case repositories.SaleErrorNotFound:
			httpx.WriteError(ctx, w, httpx.NewError("sale_not_found", "sale does not exist", http.StatusNotFound))
			return
		case repositories.SaleErrorProductNotFound:
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "one or more products do not exist", http.StatusNotFound))
			return
		case repositories.SaleErrorConflict:
			httpx.WriteError(ctx, w, httpx.NewError("commit_conflict", "the sale could not be committed due to a concurrent update", http.StatusConflict))
			return
		case repositories.SaleErrorUnavailable:
			httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "the sale store is unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "the sale could not be processed", http.StatusInternalServerError))
}
