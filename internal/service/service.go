// Package service реализует бизнес-логику интернет-магазина.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/market-system/internal/model"
	"github.com/mmeshcher/market-system/internal/promo"
)

// ErrEmptyCart возвращается при попытке оформить заказ из пустой корзины.
var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrMinimumNotMet возвращается, если сумма корзины меньше порога промокода.
	ErrMinimumNotMet = errors.New("cart subtotal below promo minimum")
	// ErrAccessDenied возвращается при попытке доступа к чужому заказу.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnknownShippingMethod возвращается для неизвестного способа доставки.
	ErrUnknownShippingMethod = errors.New("unknown shipping method")
	// ErrInvalidStatus возвращается для неизвестного значения статуса.
	ErrInvalidStatus = errors.New("invalid status value")
	// ErrInvalidTransition возвращается для недопустимого перехода статусов.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// shippingCosts — фиксированная стоимость доставки по способам. Самовывоз
// бесплатный.
var shippingCosts = map[model.ShippingMethod]int64{
	model.ShippingStandard: 1590,
	model.ShippingExpress:  3490,
	model.ShippingPickup:   0,
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ReserveStock(ctx context.Context, productID, qty int64) (int64, error)
	ReleaseStock(ctx context.Context, productID, qty int64) error

	GetCart(ctx context.Context, userID int64) (*model.Cart, error)
	AddCartLine(ctx context.Context, userID, productID, qty int64) error
	UpdateCartLineQty(ctx context.Context, userID, productID, qty int64) error
	RemoveCartLine(ctx context.Context, userID, productID int64) error
	ClearCart(ctx context.Context, userID int64) error
	SetCartPromo(ctx context.Context, userID int64, code string, discountBP int64) error
	ClearCartPromo(ctx context.Context, userID int64) error

	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, trackingNumber string) error
	CancelOrder(ctx context.Context, id uuid.UUID, reason string) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	CreateDelivery(ctx context.Context, d *model.Delivery) error
	GetDelivery(ctx context.Context, id int64) (*model.Delivery, error)
	GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*model.Delivery, error)
	AssignDriver(ctx context.Context, id int64, driver model.Driver) error
	UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, location, notes string) (bool, error)
}

// Notifier описывает контракт отправки уведомлений. Отправка выполняется по
// принципу best-effort: её неуспех никогда не откатывает уже зафиксированную
// бизнес-операцию.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, message string) error
}

// Service содержит бизнес-логику интернет-магазина.
type Service struct {
	repo     Repository
	promos   promo.Registry
	notifier Notifier
	logger   *zap.Logger
}

// NewService создаёт новый сервис. notifier может быть nil — тогда
// уведомления не отправляются.
func NewService(repo Repository, promos promo.Registry, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		promos:   promos,
		notifier: notifier,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// notifyUser отправляет уведомление пользователю в отдельной горутине.
// Ошибки только логируются: запрос, породивший уведомление, к этому моменту
// уже завершён успешно.
func (s *Service) notifyUser(userID int64, subject, message string) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := s.repo.GetUserByID(ctx, userID)
		if err != nil {
			s.logger.Warn("notification skipped: user lookup failed",
				zap.Int64("userID", userID), zap.Error(err))
			return
		}

		if err := s.notifier.Send(ctx, user.Login, subject, message); err != nil {
			s.logger.Warn("notification failed",
				zap.Int64("userID", userID), zap.String("subject", subject), zap.Error(err))
		}
	}()
}
