package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err, "get cart")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"cart": toCartResponse(cart)})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// AddToCart добавляет товар в корзину текущего пользователя.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		h.respondError(w, http.StatusBadRequest, "product_id and positive quantity are required")
		return
	}

	cart, err := h.service.AddToCart(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.serviceError(w, err, "add to cart")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"cart": toCartResponse(cart)})
}

func parseProductID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	return id, err == nil && id > 0
}

type updateCartLineRequest struct {
	Quantity int64 `json:"quantity"`
}

// UpdateCartLine устанавливает количество позиции корзины.
func (h *Handler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	productID, ok := parseProductID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req updateCartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		h.respondError(w, http.StatusBadRequest, "positive quantity is required")
		return
	}

	cart, err := h.service.UpdateCartLine(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		h.serviceError(w, err, "update cart line")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"cart": toCartResponse(cart)})
}

// RemoveCartLine удаляет позицию из корзины.
func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	productID, ok := parseProductID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	cart, err := h.service.RemoveCartLine(r.Context(), userID, productID)
	if err != nil {
		h.serviceError(w, err, "remove cart line")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"cart": toCartResponse(cart)})
}

// ClearCart опустошает корзину текущего пользователя.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		h.serviceError(w, err, "clear cart")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

type promoRequest struct {
	Code string `json:"code"`
}

// ApplyPromo применяет промокод к корзине текущего пользователя.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req promoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		h.respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	cart, err := h.service.ApplyPromo(r.Context(), userID, req.Code)
	if err != nil {
		h.serviceError(w, err, "apply promo")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"cart": toCartResponse(cart)})
}

// RemovePromo снимает промокод с корзины текущего пользователя.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	cart, err := h.service.RemovePromo(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err, "remove promo")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"cart": toCartResponse(cart)})
}
