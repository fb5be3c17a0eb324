// Package handler is the thin HTTP layer over the cart engine. It delegates
// to the cart service and checkout coordinator without embedding business
// logic so transport concerns remain isolated.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"storefront/internal/auth"
	"storefront/internal/cart/service"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/platform/httputil"
)

type Handler struct {
	cart     *service.Service
	checkout *checkout.Coordinator
	logger   *slog.Logger
}

func New(cart *service.Service, coordinator *checkout.Coordinator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cart: cart, checkout: coordinator, logger: logger}
}

// Register wires the cart routes onto the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/cart", h.handleGetCart)
	r.Delete("/cart", h.handleClearCart)
	r.Post("/cart/toggle", h.handleToggle)
	r.Post("/cart/items", h.handleAddItem)
	r.Delete("/cart/items/{productID}", h.handleRemoveItem)
	r.Post("/cart/items/{productID}/increment", h.handleIncrementItem)
	r.Post("/cart/items/{productID}/decrement", h.handleDecrementItem)
	r.With(auth.ExtractBearer).Post("/cart/checkout", h.handleCheckout)
}

type lineView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
	Type     string          `json:"type,omitempty"`
	Quantity int             `json:"quantity"`
}

type cartView struct {
	Items      []lineView      `json:"items"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
	IsOpen     bool            `json:"is_open"`
}

func (h *Handler) view() cartView {
	lines := h.cart.Lines()
	items := make([]lineView, 0, len(lines))
	for _, l := range lines {
		items = append(items, lineView{
			ID:       l.ProductID,
			Name:     l.Name,
			Price:    l.UnitPriceGross,
			Image:    l.Image,
			Type:     l.Category,
			Quantity: l.Quantity,
		})
	}
	return cartView{
		Items:      items,
		TotalItems: h.cart.TotalItems(),
		Subtotal:   h.cart.Subtotal(),
		Shipping:   h.cart.ShippingFee(),
		Total:      h.cart.Total(),
		IsOpen:     h.cart.IsOpen(),
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

type addItemRequest struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid add-item payload: "+err.Error())
		return
	}

	h.cart.AddItem(r.Context(), req.Product, req.Quantity)
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	h.cart.RemoveItem(r.Context(), chi.URLParam(r, "productID"))
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleIncrementItem(w http.ResponseWriter, r *http.Request) {
	h.cart.IncrementItem(r.Context(), chi.URLParam(r, "productID"))
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleDecrementItem(w http.ResponseWriter, r *http.Request) {
	h.cart.DecrementItem(r.Context(), chi.URLParam(r, "productID"))
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	h.cart.ToggleOpen()
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	httputil.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var addr checkout.AddressData
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid checkout payload: "+err.Error())
		return
	}

	confirmation, err := h.checkout.Submit(r.Context(), addr)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, confirmation)
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *checkout.RejectionError
	switch {
	case errors.Is(err, checkout.ErrAuthenticationRequired):
		httputil.WriteError(w, http.StatusUnauthorized, "authentication_required", "log in to complete the order")
	case errors.Is(err, checkout.ErrCheckoutInFlight):
		httputil.WriteError(w, http.StatusConflict, "checkout_in_flight", "a checkout is already being processed")
	case errors.As(err, &rejected):
		httputil.WriteError(w, http.StatusUnprocessableEntity, "checkout_rejected", rejected.Reason)
	default:
		h.logger.ErrorContext(r.Context(), "checkout failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "order_service_unavailable", "")
	}
}
