package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/mmeshcher/market-system/internal/model"
	"github.com/mmeshcher/market-system/internal/service"
)

type productRequest struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	DiscountPrice *int64 `json:"discount_price"`
	ImageRef      string `json:"image_ref"`
	Stock         int64  `json:"stock"`
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SKU == "" || req.Name == "" || req.Price <= 0 || req.Stock < 0 {
		h.respondError(w, http.StatusBadRequest, "sku, name, positive price and non-negative stock are required")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), &model.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		ImageRef:      req.ImageRef,
		Stock:         req.Stock,
	})
	if err != nil {
		h.serviceError(w, err, "create product")
		return
	}

	h.respond(w, http.StatusCreated, map[string]any{"product": toProductResponse(product)})
}

// GetProduct возвращает товар каталога по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "get product")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"product": toProductResponse(product)})
}

type orderStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

// SetOrderStatus переводит заказ в новый статус.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.SetOrderStatus(r.Context(), id, model.OrderStatus(req.Status), req.TrackingNumber)
	if err != nil {
		h.serviceError(w, err, "set order status")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"order": toOrderResponse(order)})
}

// DeleteOrder физически удаляет заказ с возвратом остатков.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.serviceError(w, err, "delete order")
		return
	}

	h.respond(w, http.StatusOK, nil)
}

type createDeliveryRequest struct {
	OrderID       string             `json:"order_id"`
	Driver        *model.Driver      `json:"driver"`
	Customer      model.CustomerInfo `json:"customer"`
	ScheduledDate string             `json:"scheduled_date"`
	ScheduledTime string             `json:"scheduled_time"`
}

// CreateDelivery создаёт доставку для заказа, при необходимости сразу с
// назначенным курьером.
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID, err := uuid.FromString(req.OrderID)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if req.Driver != nil && req.Driver.Name == "" {
		h.respondError(w, http.StatusBadRequest, "driver name is required")
		return
	}

	delivery, err := h.service.CreateDelivery(r.Context(), service.CreateDeliveryInput{
		OrderID:       orderID,
		Driver:        req.Driver,
		Customer:      req.Customer,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		h.serviceError(w, err, "create delivery")
		return
	}

	h.respond(w, http.StatusCreated, map[string]any{"delivery": toDeliveryResponse(delivery)})
}

func parseDeliveryID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "deliveryID"), 10, 64)
	return id, err == nil && id > 0
}

// GetDelivery возвращает доставку по идентификатору.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeliveryID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	delivery, err := h.service.GetDelivery(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "get delivery")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"delivery": toDeliveryResponse(delivery)})
}

type assignDriverRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// AssignDriver назначает курьера на доставку.
func (h *Handler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeliveryID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	var req assignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "driver name is required")
		return
	}

	delivery, err := h.service.AssignDriver(r.Context(), id, model.Driver{Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.serviceError(w, err, "assign driver")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"delivery": toDeliveryResponse(delivery)})
}

type deliveryStatusRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// SetDeliveryStatus переводит доставку в новый статус с записью истории.
func (h *Handler) SetDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDeliveryID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	var req deliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	delivery, err := h.service.UpdateDeliveryStatus(r.Context(), id, model.DeliveryStatus(req.Status), req.Location, req.Notes)
	if err != nil {
		h.serviceError(w, err, "set delivery status")
		return
	}

	h.respond(w, http.StatusOK, map[string]any{"delivery": toDeliveryResponse(delivery)})
}
