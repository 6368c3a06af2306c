package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kiosko/pos/internal/domain"
	"github.com/kiosko/pos/internal/platform/httpx"
	"github.com/kiosko/pos/internal/services"
)

const maxAvailabilityRequestBody = 16 * 1024

// InventoryHandlers exposes the advisory stock check endpoint.
type InventoryHandlers struct {
	carts     services.CartService
	inventory services.InventoryService
}

// NewInventoryHandlers constructs inventory handlers.
func NewInventoryHandlers(carts services.CartService, inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{
		carts:     carts,
		inventory: inventory,
	}
}

// Routes registers inventory endpoints under the provided router.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/availability", h.checkAvailability)
}

type availabilityRequest struct {
	Items []saleItemInput `json:"items"`
}

type availabilityFindingPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Covered   bool   `json:"covered"`
}

type availabilityPayload struct {
	Covered  bool                         `json:"covered"`
	Findings []availabilityFindingPayload `json:"findings"`
}

// checkAvailability re-reads stock for the requested lines. The answer is
// advisory; only the commit transaction decides.
func (h *InventoryHandlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil || h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAvailabilityRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req availabilityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
		return
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
		h.writeAvailabilityError(ctx, w, err)
		return
	}

	findings, err := h.inventory.CheckAvailability(ctx, cart)
	if err != nil {
		h.writeAvailabilityError(ctx, w, err)
		return
	}

	payload := availabilityPayload{
		Covered:  true,
		Findings: make([]availabilityFindingPayload, 0, len(findings)),
	}
	for _, finding := range findings {
		if !finding.Covered {
			payload.Covered = false
		}
		payload.Findings = append(payload.Findings, availabilityFindingPayload{
			ProductID: finding.ProductID,
			Name:      finding.Name,
			Requested: finding.Requested,
			Available: finding.Available,
			Covered:   finding.Covered,
		})
	}

	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *InventoryHandlers) writeAvailabilityError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyCartInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "items are required", http.StatusBadRequest))
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quantity", "quantities must be positive", http.StatusBadRequest))
	case errors.Is(err, services.ErrUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "one or more products do not exist", http.StatusNotFound))
	case errors.Is(err, services.ErrInactiveProduct):
		httpx.WriteError(ctx, w, httpx.NewError("product_inactive", "one or more products are inactive", http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "the availability check could not be processed", http.StatusInternalServerError))
	}
}
