package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/mmeshcher/market-system/internal/model"
	"github.com/mmeshcher/market-system/internal/service"
	"github.com/mmeshcher/market-system/internal/validation"
)

type checkoutRequest struct {
	BillingAddress  model.Address `json:"billing_address"`
	ShippingAddress model.Address `json:"shipping_address"`
	ShippingMethod  string        `json:"shipping_method"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentDetails  string        `json:"payment_details"`
	Notes           string        `json:"notes"`
}

// CreateOrder оформляет заказ из корзины текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShippingMethod == "" || req.PaymentMethod == "" {
		h.respondError(w, http.StatusBadRequest, "shipping_method and payment_method are required")
		return
	}

	order, err := h.service.Checkout(r.Context(), userID, service.CheckoutInput{
		BillingAddress:  req.BillingAddress,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  model.ShippingMethod(req.ShippingMethod),
		PaymentMethod:   req.PaymentMethod,
		PaymentDetails:  req.PaymentDetails,
		Notes:           req.Notes,
	})
	if err != nil {
		h.serviceError(w, err, "checkout")
		return
	}

	h.respond(w, http.StatusCreated, map[string]any{"order": toOrderResponse(order)})
}

// GetOrders возвращает список заказов текущего пользователя, новые первыми.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err, "get orders")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.respond(w, http.StatusOK, map[string]any{"orders": resp})
}

func parseOrderID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "orderID"))
	return id, err == nil
}

// GetOrder возвращает заказ по системному идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id, ok := parseOrderID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.service.GetOrderForUser(r.Context(), id, userID, role)
	if err != nil {
		h.serviceError(w, err, "get order")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"order": toOrderResponse(order)})
}

// GetOrderByNumber возвращает заказ по публичному номеру.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	number := chi.URLParam(r, "number")
	if !validation.IsValidOrderNumber(number) {
		h.respondError(w, http.StatusBadRequest, "invalid order number")
		return
	}

	order, err := h.service.GetOrderByNumberForUser(r.Context(), number, userID, role)
	if err != nil {
		h.serviceError(w, err, "get order by number")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"order": toOrderResponse(order)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder отменяет заказ с возвратом остатков на склад.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id, ok := parseOrderID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := h.service.CancelOrder(r.Context(), id, userID, role, req.Reason)
	if err != nil {
		h.serviceError(w, err, "cancel order")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"order": toOrderResponse(order)})
}

// TrackOrder возвращает заказ вместе с историей доставки.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id, ok := parseOrderID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	info, err := h.service.TrackOrderByID(r.Context(), id, userID, role)
	if err != nil {
		h.serviceError(w, err, "track order")
		return
	}

	h.respondTracking(w, info)
}

// TrackOrderByNumber возвращает заказ с историей доставки по публичному номеру.
func (h *Handler) TrackOrderByNumber(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	number := chi.URLParam(r, "number")
	if !validation.IsValidOrderNumber(number) {
		h.respondError(w, http.StatusBadRequest, "invalid order number")
		return
	}

	info, err := h.service.TrackOrder(r.Context(), number, userID, role)
	if err != nil {
		h.serviceError(w, err, "track order by number")
		return
	}

	h.respondTracking(w, info)
}

func (h *Handler) respondTracking(w http.ResponseWriter, info *service.TrackingInfo) {
	payload := map[string]any{"order": toOrderResponse(info.Order)}
	if info.Delivery != nil {
		payload["delivery"] = toDeliveryResponse(info.Delivery)
	}

	h.respond(w, http.StatusOK, payload)
}
