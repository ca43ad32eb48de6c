// Package handler содержит HTTP-обработчики API интернет-магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/market-system/internal/middleware"
	"github.com/mmeshcher/market-system/internal/model"
	"github.com/mmeshcher/market-system/internal/promo"
	"github.com/mmeshcher/market-system/internal/repository"
	"github.com/mmeshcher/market-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)

	GetCart(ctx context.Context, userID int64) (*model.Cart, error)
	AddToCart(ctx context.Context, userID, productID, qty int64) (*model.Cart, error)
	UpdateCartLine(ctx context.Context, userID, productID, qty int64) (*model.Cart, error)
	RemoveCartLine(ctx context.Context, userID, productID int64) (*model.Cart, error)
	ClearCart(ctx context.Context, userID int64) error
	ApplyPromo(ctx context.Context, userID int64, code string) (*model.Cart, error)
	RemovePromo(ctx context.Context, userID int64) (*model.Cart, error)

	Checkout(ctx context.Context, userID int64, in service.CheckoutInput) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrderForUser(ctx context.Context, id uuid.UUID, userID int64, role model.Role) (*model.Order, error)
	GetOrderByNumberForUser(ctx context.Context, number string, userID int64, role model.Role) (*model.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, userID int64, role model.Role, reason string) (*model.Order, error)
	TrackOrderByID(ctx context.Context, id uuid.UUID, userID int64, role model.Role) (*service.TrackingInfo, error)
	TrackOrder(ctx context.Context, number string, userID int64, role model.Role) (*service.TrackingInfo, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, trackingNumber string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)

	CreateDelivery(ctx context.Context, in service.CreateDeliveryInput) (*model.Delivery, error)
	GetDelivery(ctx context.Context, id int64) (*model.Delivery, error)
	AssignDriver(ctx context.Context, id int64, driver model.Driver) (*model.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, location, notes string) (*model.Delivery, error)
}

// Handler реализует HTTP-обработчики API интернет-магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// respond сериализует payload в JSON-конверт {"success": true, ...}.
func (h *Handler) respond(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

// serviceError транслирует ошибку бизнес-логики в HTTP-статус. Неожиданные
// ошибки логируются и отдаются как 500 с нейтральным сообщением.
func (h *Handler) serviceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrProductExists),
		errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrOrderNotCancellable),
		errors.Is(err, repository.ErrDeliveryExists):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, promo.ErrUnknownCode),
		errors.Is(err, service.ErrMinimumNotMet),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrUnknownShippingMethod),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrInvalidStatusTransition):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartLineNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrDeliveryNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		h.respondError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error(op, zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// requireUser извлекает идентификатор и роль пользователя из контекста.
// Отсутствие означает ошибку конфигурации маршрутов.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (int64, model.Role, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return 0, "", false
	}
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		role = model.RoleUser
	}
	return userID, role, true
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Login == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.serviceError(w, err, "register user")
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, model.RoleUser)
	h.respond(w, http.StatusOK, map[string]any{"user_id": userID})
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Login == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			h.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login user", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.Role)
	h.respond(w, http.StatusOK, map[string]any{"user_id": user.ID})
}
